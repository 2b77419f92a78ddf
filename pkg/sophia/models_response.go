package sophia

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StudentID is the upstream "codigo". Sophia sends it as a number, but a
// string is accepted too; the literal text is kept either way.
type StudentID string

func (id *StudentID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*id = ""
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = StudentID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = StudentID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as JSON numbers and anything else as a string.
func (id StudentID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id StudentID) numeric() bool {
	if id == "" || !json.Valid([]byte(id)) {
		return false
	}
	_, err := strconv.ParseFloat(string(id), 64)
	return err == nil
}

func (id StudentID) String() string {
	return string(id)
}

type ClassSection struct {
	Descricao string `json:"descricao"`
}

// Student is one record of GET /api/v1/alunos. Fields not used here are ignored.
type Student struct {
	Codigo StudentID      `json:"codigo"`
	Nome   string         `json:"nome"`
	Turmas []ClassSection `json:"turmas"`
}

// ClassName is the description of the first class section, "" when there is none.
func (s Student) ClassName() string {
	if len(s.Turmas) == 0 {
		return ""
	}
	return s.Turmas[0].Descricao
}

type photoResponse struct {
	Foto string `json:"foto"`
}

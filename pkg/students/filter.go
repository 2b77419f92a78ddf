package students

import (
	"strings"

	"github.com/carbonell/student-search-api/pkg/normalize"
	"github.com/carbonell/student-search-api/pkg/sophia"
)

// High school classes are never served by this API.
const excludedSegment = "EM"

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// keep applies the local filters, in order, to one upstream record.
func keep(st sophia.Student, segment string, tokens []string) bool {
	class := st.ClassName()

	if hasPrefixFold(class, excludedSegment) {
		return false
	}

	if segment != SegmentAll && !hasPrefixFold(class, segment) {
		return false
	}

	return normalize.ContainsAll(st.Nome, tokens)
}

// filterStudents returns the matching records deduplicated by id. The first
// occurrence of an id wins and upstream order is preserved. Records without
// an id are dropped.
func filterStudents(records []sophia.Student, q Query) []sophia.Student {
	tokens := normalize.Tokens(q.NamePartial)

	seen := make(map[sophia.StudentID]struct{}, len(records))
	out := make([]sophia.Student, 0, len(records))

	for _, st := range records {
		if !keep(st, q.Segment, tokens) {
			continue
		}
		if st.Codigo == "" {
			continue
		}
		if _, dup := seen[st.Codigo]; dup {
			continue
		}
		seen[st.Codigo] = struct{}{}
		out = append(out, st)
	}

	return out
}

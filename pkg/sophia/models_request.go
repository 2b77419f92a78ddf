package sophia

type authRequest struct {
	Usuario string `json:"usuario"`
	Senha   string `json:"senha"`
}

package dto

// PersonResponse is the public view of a person.
type PersonResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

// PrincipalResponse describes the authenticated caller.
type PrincipalResponse struct {
	Subject     string   `json:"subject"`
	Authorities []string `json:"authorities"`
}

package domain

// Person is the sample resource served behind authentication.
type Person struct {
	ID      string
	Name    string
	Surname string
}

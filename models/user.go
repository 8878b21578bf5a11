package models

// User is an account record keyed by phone number.
type User struct {
	Phone          string `json:"phone"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	HashedPassword string `json:"-"` // Not exposed in API responses
	TOSAgreement   bool   `json:"tosAgreement"`
}

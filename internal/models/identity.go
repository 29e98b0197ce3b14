package models

import "time"

// Identity is the signed-in principal as issued by the identity service.
// Email and DisplayName are optional (federated accounts may lack one of them).
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Account is the stored form of an identity. PasswordHash is empty for
// accounts created through a federated provider.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Provider     string
	CreatedAt    time.Time
}

func (a Account) Identity() Identity {
	return Identity{ID: a.ID, Email: a.Email, DisplayName: a.DisplayName}
}

// ExternalAccount is what a federated provider asserts about a user.
type ExternalAccount struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// Package registry manages the borrower records the lending ledger lends to.
package registry

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

// Borrower is a registry record. Email is unique across the registry.
type Borrower struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// BuildBorrower assembles a Borrower with a fresh ID, validating every field.
func BuildBorrower(name string, email string, phone string) (Borrower, error) {
	var empty Borrower

	if strings.TrimSpace(name) == "" {
		return empty, ledger.InvalidInput("name", "must not be empty")
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return empty, ledger.InvalidInput("email", "must not be empty")
	}

	if !strings.Contains(email[1:], "@") {
		return empty, ledger.InvalidInput("email", "must contain a local part and a domain")
	}

	return Borrower{
		ID:    uuid.New(),
		Name:  strings.TrimSpace(name),
		Email: email,
		Phone: strings.TrimSpace(phone),
	}, nil
}

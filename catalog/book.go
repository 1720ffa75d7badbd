// Package catalog manages the book records the lending ledger lends from.
// It owns the books table the engine claims copies against, so the copy
// counters live here and the ledger only ever mutates them conditionally.
package catalog

import (
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

var json = jsoniter.ConfigFastest

// Book is a catalog record. ShelfMetadata carries free-form placement data
// as a JSON document, stored as jsonb.
type Book struct {
	ID            uuid.UUID
	Title         string
	Author        string
	ISBN          string
	TotalCopies   int64
	ShelfLocation string
	ShelfMetadata []byte
}

// BuildBook assembles a Book with a fresh ID, validating every field.
// An empty shelfMetadata is normalized to an empty JSON object.
func BuildBook(
	title string,
	author string,
	isbn string,
	totalCopies int64,
	shelfLocation string,
	shelfMetadata []byte,
) (Book, error) {

	var empty Book

	if strings.TrimSpace(title) == "" {
		return empty, ledger.InvalidInput("title", "must not be empty")
	}

	if strings.TrimSpace(author) == "" {
		return empty, ledger.InvalidInput("author", "must not be empty")
	}

	if strings.TrimSpace(isbn) == "" {
		return empty, ledger.InvalidInput("isbn", "must not be empty")
	}

	if totalCopies < 1 {
		return empty, ledger.InvalidInput("totalCopies", "must be at least 1")
	}

	if len(shelfMetadata) == 0 {
		shelfMetadata = []byte("{}")
	}

	if !json.Valid(shelfMetadata) {
		return empty, ledger.InvalidInput("shelfMetadata", "must be valid JSON")
	}

	return Book{
		ID:            uuid.New(),
		Title:         strings.TrimSpace(title),
		Author:        strings.TrimSpace(author),
		ISBN:          strings.TrimSpace(isbn),
		TotalCopies:   totalCopies,
		ShelfLocation: strings.TrimSpace(shelfLocation),
		ShelfMetadata: shelfMetadata,
	}, nil
}

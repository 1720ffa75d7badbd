package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Stable machine-readable codes for domain errors. Callers and API layers
// match on these, never on the human-readable message text.
const (
	CodeBookNotFound           = "BOOK_NOT_FOUND"
	CodeBorrowerNotFound       = "BORROWER_NOT_FOUND"
	CodeBorrowingNotFound      = "BORROWING_NOT_FOUND"
	CodeNoCopiesAvailable      = "BOOK_NOT_AVAILABLE"
	CodeDuplicateActiveLoan    = "BORROWER_ALREADY_HAS_BOOK"
	CodeAlreadyReturned        = "BOOK_ALREADY_RETURNED"
	CodeBorrowerHasActiveLoans = "BORROWER_HAS_ACTIVE_BORROWINGS"
	CodeISBNExists             = "BOOK_ISBN_EXISTS"
	CodeEmailExists            = "BORROWER_EMAIL_EXISTS"
	CodeInvalidInput           = "INVALID_INPUT"
)

// DomainError is a deterministic business failure. Retrying the identical
// call will fail again until the underlying state changes, so callers must
// never retry these automatically.
//
// DomainError values with the same Code match under errors.Is, which allows
// matching a constructed error against the exported sentinels below.
type DomainError struct {
	code    string
	message string
}

// Error returns the human-readable message.
func (e *DomainError) Error() string {
	return e.message
}

// Code returns the stable machine-readable error code.
func (e *DomainError) Code() string {
	return e.code
}

// Is matches DomainErrors by code so that errors.Is(err, ErrNoCopiesAvailable)
// works for errors constructed with the factory functions.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return e.code == other.code
	}

	return false
}

// Sentinels for errors.Is matching. The factory functions below build the
// errors that are actually returned, carrying the offending identifiers in
// the message.
var (
	ErrBookNotFound           = &DomainError{code: CodeBookNotFound, message: "book not found"}
	ErrBorrowerNotFound       = &DomainError{code: CodeBorrowerNotFound, message: "borrower not found"}
	ErrBorrowingNotFound      = &DomainError{code: CodeBorrowingNotFound, message: "borrowing record not found"}
	ErrNoCopiesAvailable      = &DomainError{code: CodeNoCopiesAvailable, message: "no copies of this book are currently available"}
	ErrDuplicateActiveLoan    = &DomainError{code: CodeDuplicateActiveLoan, message: "borrower already has an active borrowing for this book"}
	ErrAlreadyReturned        = &DomainError{code: CodeAlreadyReturned, message: "this book has already been returned"}
	ErrBorrowerHasActiveLoans = &DomainError{code: CodeBorrowerHasActiveLoans, message: "borrower still has active borrowings"}
	ErrISBNExists             = &DomainError{code: CodeISBNExists, message: "a book with this ISBN already exists"}
	ErrEmailExists            = &DomainError{code: CodeEmailExists, message: "a borrower with this email already exists"}
	ErrInvalidInput           = &DomainError{code: CodeInvalidInput, message: "invalid input"}
)

// BookNotFound builds the domain error for a missing book.
func BookNotFound(id uuid.UUID) *DomainError {
	return &DomainError{
		code:    CodeBookNotFound,
		message: fmt.Sprintf("book with ID %q not found", id),
	}
}

// BookNotFoundByISBN builds the domain error for a missing book looked up
// by its ISBN.
func BookNotFoundByISBN(isbn string) *DomainError {
	return &DomainError{
		code:    CodeBookNotFound,
		message: fmt.Sprintf("book with ISBN %q not found", isbn),
	}
}

// BorrowerNotFound builds the domain error for a missing borrower.
func BorrowerNotFound(id uuid.UUID) *DomainError {
	return &DomainError{
		code:    CodeBorrowerNotFound,
		message: fmt.Sprintf("borrower with ID %q not found", id),
	}
}

// BorrowingNotFound builds the domain error for a missing borrowing record.
func BorrowingNotFound(id uuid.UUID) *DomainError {
	return &DomainError{
		code:    CodeBorrowingNotFound,
		message: fmt.Sprintf("borrowing record with ID %q not found", id),
	}
}

// NoCopiesAvailable builds the domain error for a book whose copies are all
// lent out.
func NoCopiesAvailable(bookID uuid.UUID, title string) *DomainError {
	message := fmt.Sprintf("no copies of book %q are currently available", bookID)
	if title != "" {
		message = fmt.Sprintf("no copies of %q are currently available", title)
	}

	return &DomainError{code: CodeNoCopiesAvailable, message: message}
}

// DuplicateActiveLoan builds the domain error for a borrower that already
// holds an open loan of the same book.
func DuplicateActiveLoan(borrowerID uuid.UUID, bookID uuid.UUID) *DomainError {
	return &DomainError{
		code: CodeDuplicateActiveLoan,
		message: fmt.Sprintf(
			"borrower %q already has an active borrowing for book %q", borrowerID, bookID),
	}
}

// AlreadyReturned builds the domain error for a second return of the same
// borrowing.
func AlreadyReturned(borrowingID uuid.UUID) *DomainError {
	return &DomainError{
		code:    CodeAlreadyReturned,
		message: fmt.Sprintf("borrowing %q has already been returned", borrowingID),
	}
}

// BorrowerHasActiveLoans builds the domain error that blocks deleting a
// borrower with open loans.
func BorrowerHasActiveLoans(borrowerID uuid.UUID, count int64) *DomainError {
	return &DomainError{
		code: CodeBorrowerHasActiveLoans,
		message: fmt.Sprintf(
			"cannot delete borrower %q with %d active borrowing(s), all books must be returned first",
			borrowerID, count),
	}
}

// ISBNExists builds the domain error for a duplicate ISBN in the catalog.
func ISBNExists(isbn string) *DomainError {
	return &DomainError{
		code:    CodeISBNExists,
		message: fmt.Sprintf("book with ISBN %q already exists", isbn),
	}
}

// EmailExists builds the domain error for a duplicate borrower email.
func EmailExists(email string) *DomainError {
	return &DomainError{
		code:    CodeEmailExists,
		message: fmt.Sprintf("borrower with email %q already exists", email),
	}
}

// InvalidInput builds the domain error for boundary-validated input that a
// collaborator still rejected.
func InvalidInput(field string, reason string) *DomainError {
	return &DomainError{
		code:    CodeInvalidInput,
		message: fmt.Sprintf("invalid %s: %s", field, reason),
	}
}

// IsDomainError reports whether err is (or wraps) a DomainError.
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// Infrastructure errors. These are transient store failures, distinguished
// from the deterministic DomainError class: callers may retry them with
// backoff, and the engine does so itself for the checkout statement.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyTableName        = errors.New("empty table name supplied")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrQueryingLedgerFailed  = errors.New("querying the ledger failed")
	ErrScanningRowFailed     = errors.New("scanning database row failed")
	ErrCheckoutFailed        = errors.New("checkout execution failed")
	ErrReturnFailed          = errors.New("return execution failed")
	ErrRowsAffectedFailed    = errors.New("getting rows affected count failed")
)

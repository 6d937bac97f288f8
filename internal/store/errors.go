package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all collection implementations.
var (
	// ErrNotFound is returned when no active document matches a query.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate is returned when an insert would reuse an existing primary key.
	ErrDuplicate = errors.New("document already exists")

	// ErrInvalidDocument is returned when a document cannot be stored as given,
	// for example because it is not JSON-encodable.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrUpdateFailed is returned when an update matched no active document.
	ErrUpdateFailed = errors.New("update failed")

	// ErrDeleteFailed is returned when a delete matched no active document.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrTransactionFailed is returned when a transaction fails to commit.
	ErrTransactionFailed = errors.New("transaction failed")
)

// IsNotFoundError reports whether err means "no such document".
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is a primary key collision.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError adds collection and operation context to a store failure.
type StoreError struct {
	Collection string
	Operation  string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s on %s failed: %s: %v", e.Operation, e.Collection, e.Message, e.Err)
	}
	return fmt.Sprintf("%s on %s failed: %s", e.Operation, e.Collection, e.Message)
}

// Unwrap supports errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(collection, operation, message string, err error) *StoreError {
	return &StoreError{
		Collection: collection,
		Operation:  operation,
		Message:    message,
		Err:        err,
	}
}

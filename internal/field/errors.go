package field

import (
	"errors"
	"fmt"
)

// Error codes carried by *Error.
const (
	CodeRequired = "required"
	CodeNull     = "null"
	CodeType     = "type"
	CodeBlank    = "blank"
	CodeChoice   = "choice"
	CodeRule     = "rule"
)

// Error describes why a value was rejected by a field.
// Message is client-facing; Code is stable for programmatic checks.
type Error struct {
	Field   string
	Code    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

func newError(f *Field, code, format string, args ...any) *Error {
	return &Error{Field: f.Name, Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is a field *Error with the given code.
func IsCode(err error, code string) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Code == code
}

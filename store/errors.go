package store

import (
	"errors"
	"fmt"

	"github.com/cppla/postboard/utils"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor may not mutate the record.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicateKey is returned when a unique username or email is already taken.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidCredentials is returned by basic authentication on any mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound is returned when a valid token names a deleted user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnsupportedFormat is returned when an upload cannot be transcoded.
	ErrUnsupportedFormat = utils.ErrUnsupportedFormat
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

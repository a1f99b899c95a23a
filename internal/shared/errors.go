package shared

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// SafeError marks an error whose message may be shown to end users as is.
type SafeError interface {
	error
	Safe() bool
}

// PublicError wraps a user-facing message around an internal cause.
type PublicError struct {
	Message string
	Cause   error
}

// NewPublicError builds a PublicError.
func NewPublicError(message string, cause error) *PublicError {
	return &PublicError{Message: message, Cause: cause}
}

func (e *PublicError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *PublicError) Unwrap() error { return e.Cause }

// Safe implements SafeError.
func (e *PublicError) Safe() bool { return true }

// UserSafeMessage turns an error into text fit for a flash message or form
// banner. Internal failures collapse into a generic sentence.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var public *PublicError
	if errors.As(err, &public) {
		return public.Message
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return "Please check the following fields: " + strings.Join(fields, ", ")
	}
	if errors.Is(err, ErrNotFound) {
		return "The requested record was not found"
	}
	return "Something went wrong, please try again"
}

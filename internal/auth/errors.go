package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for token verification failures. All of them map to 401
// at the middleware layer.
var (
	ErrMissingBearer     = errors.New("authorization header missing or malformed")
	ErrTokenMalformed    = errors.New("token is malformed")
	ErrUnknownKey        = errors.New("token references an unknown key")
	ErrInvalidSignature  = errors.New("token signature verification failed")
	ErrTokenExpired      = errors.New("token is expired")
	ErrTokenNotYetValid  = errors.New("token is not yet valid")
	ErrIssuerMismatch    = errors.New("token issuer mismatch")
	ErrUnsupportedAlg    = errors.New("unsupported signing algorithm")
)

// VerificationError wraps a verification failure with its underlying reason.
type VerificationError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *VerificationError) Is(target error) bool {
	_, ok := target.(*VerificationError)
	return ok || errors.Is(e.Cause, target)
}

// NewVerificationError creates a new VerificationError.
func NewVerificationError(message string, cause error) *VerificationError {
	return &VerificationError{Message: message, Cause: cause}
}

package credentials

import (
	"errors"
	"fmt"
)

// Common errors for credential operations.
var (
	// ErrProviderClosed indicates the provider has been closed.
	ErrProviderClosed = errors.New("credentials: provider closed")

	// ErrNoCredentials indicates no usable credentials were found.
	ErrNoCredentials = errors.New("credentials: no credentials available")

	// ErrLoginFailed indicates the device rejected the login.
	ErrLoginFailed = errors.New("credentials: device login failed")
)

// AuthError is a credential operation failure with context.
type AuthError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("credentials %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("credentials %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new AuthError.
func NewAuthError(op string, statusCode int, err error) *AuthError {
	return &AuthError{Op: op, StatusCode: statusCode, Err: err}
}

package as3client

import (
	"errors"
	"fmt"
)

// Common errors for delivery operations.
var (
	// ErrDeleteAllTenants guards against a delete without tenants,
	// which the appliance interprets as wiping the whole declaration.
	ErrDeleteAllTenants = errors.New("as3client: delete called without tenants, would wipe all declarations")

	// ErrTaskTimeout indicates the async task did not reach a terminal
	// state within the caller's wait bound.
	ErrTaskTimeout = errors.New("as3client: async task timed out")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("as3client: client closed")

	// ErrRequestFailed indicates the appliance answered with a
	// non-success status where success was required.
	ErrRequestFailed = errors.New("as3client: request failed")

	// ErrMissingTaskID indicates an async submission was accepted but
	// carried no task identifier.
	ErrMissingTaskID = errors.New("as3client: async response carried no task id")
)

// ClientError is a delivery failure with request context. The URL is
// stored without userinfo.
type ClientError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("as3 %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("as3 %s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError.
func NewClientError(op, url string, statusCode int, err error) *ClientError {
	return &ClientError{Op: op, URL: url, StatusCode: statusCode, Err: err}
}

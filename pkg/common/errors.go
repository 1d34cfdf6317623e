package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNilMiddleware is returned by Validate for chain entries that cannot be invoked.
	ErrNilMiddleware = errors.New("nil middleware in chain")

	// ErrNextCalledMultipleTimes is returned when a unit calls its continuation more than once.
	ErrNextCalledMultipleTimes = errors.New("next() called multiple times")

	// ErrResponseSent is returned when a response is sent twice.
	ErrResponseSent = errors.New("response already sent")

	// ErrResultAlreadySet is returned when the result slot is written twice.
	ErrResultAlreadySet = errors.New("result already set")
)

// HTTPError represents an error with an HTTP status code and message.
// When a chain fails with an HTTPError, the server uses its status code and
// message for the error response.
type HTTPError struct {
	Name       string // Error name reported to clients (e.g., "NotFoundError")
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
	Err        error  // Underlying cause, if any
}

// Error implements the error interface.
// It returns a string representation of the HTTP error in the format "status: message".
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		Name:       "HTTPError",
		StatusCode: statusCode,
		Message:    message,
	}
}

// WrapHTTPError creates an HTTPError that keeps err as its cause.
func WrapHTTPError(statusCode int, message string, err error) *HTTPError {
	e := NewHTTPError(statusCode, message)
	e.Err = err
	return e
}

// NewNotFoundError creates a 404 error.
func NewNotFoundError(message string) *HTTPError {
	if message == "" {
		message = "This could not be found"
	}
	return &HTTPError{Name: "NotFoundError", StatusCode: http.StatusNotFound, Message: message}
}

// NewAuthenticationError creates a 401 error.
func NewAuthenticationError(message string) *HTTPError {
	if message == "" {
		message = "You must be logged in to access this"
	}
	return &HTTPError{Name: "AuthenticationError", StatusCode: http.StatusUnauthorized, Message: message}
}

// NewAuthorizationError creates a 403 error.
func NewAuthorizationError(message string) *HTTPError {
	if message == "" {
		message = "You are not authorized to access this"
	}
	return &HTTPError{Name: "AuthorizationError", StatusCode: http.StatusForbidden, Message: message}
}

// StatusCode returns the HTTP status code carried by err, or 500.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode > 0 {
		return httpErr.StatusCode
	}
	return http.StatusInternalServerError
}

// ErrorName returns the client-facing name of err.
func ErrorName(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Name != "" {
		return httpErr.Name
	}
	return "Error"
}

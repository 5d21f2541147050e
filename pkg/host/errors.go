package host

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMethod is returned by Route for methods outside SupportedMethods and MethodAll.
	ErrUnsupportedMethod = errors.New("host: unsupported method")
	// ErrInvalidURL is returned by Route for empty URLs or URLs not starting with '/'.
	ErrInvalidURL = errors.New("host: invalid url")
	// ErrNilHandler is returned by Route when no handler is given.
	ErrNilHandler = errors.New("host: nil handler")
	// ErrRouteExists is returned when the method and URL pair is already registered.
	ErrRouteExists = errors.New("host: route already registered")
	// ErrRouteConflict is returned when httprouter rejects a pattern that overlaps an existing one.
	ErrRouteConflict = errors.New("host: route conflicts with an existing route")
	// ErrNilPlugin is returned by Register and Enqueue for nil plugins.
	ErrNilPlugin = errors.New("host: nil plugin")
	// ErrHostReady is returned by the registration calls once Ready has completed.
	ErrHostReady = errors.New("host: already started")
	// ErrDecorationExists is returned when a decoration name is already taken.
	ErrDecorationExists = errors.New("host: decoration already exists")
	// ErrDecorationNotFound is returned by Lookup for unknown names.
	ErrDecorationNotFound = errors.New("host: decoration not found")
	// ErrDecorationType is returned by Lookup when the stored value has another type.
	ErrDecorationType = errors.New("host: decoration has a different type")
	// ErrInvalidDecoration is returned for empty decoration names.
	ErrInvalidDecoration = errors.New("host: invalid decoration name")
)

// HTTPError represents an HTTP error with a status code and message.
// Handlers and schemas return it to control the exact error response.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}

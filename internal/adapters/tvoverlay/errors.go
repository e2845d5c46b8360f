package tvoverlay

import (
	"errors"
	"fmt"
)

// ErrConnection matches every transport-level failure returned by the client.
var ErrConnection = errors.New("tvoverlay: connection failed")

// APIError represents a failed exchange with an overlay device
type APIError struct {
	Host       string
	Port       int
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("TvOverlay API error %d at %s:%d: %s", e.StatusCode, e.Host, e.Port, e.Message)
	}
	return fmt.Sprintf("TvOverlay API error at %s:%d: %s", e.Host, e.Port, e.Message)
}

// ConnectionError is returned when the device cannot be reached or the request
// times out. It is a kind of APIError.
type ConnectionError struct {
	APIError
	Timeout bool
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("Timeout connecting to TvOverlay at %s:%d", e.Host, e.Port)
	}
	return fmt.Sprintf("Error connecting to TvOverlay at %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is lets callers test for ErrConnection without caring about the address.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// As exposes the embedded APIError so errors.As(err, **APIError) matches
// connection failures too.
func (e *ConnectionError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// IsConnectionError checks if the error is a connection-related error
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

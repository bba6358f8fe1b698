package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNoServers is returned when the configured server list is empty.
	ErrNoServers = errors.New("no servers available")
	// ErrEmptyCredentials is returned before any request is made when
	// username or password is empty.
	ErrEmptyCredentials = errors.New("username and password must not be empty")
	// ErrNotAuthenticated is returned when an authenticated operation is
	// attempted with no live session. No request is made.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrConnection wraps transport failures where the server never answered.
	// Always retriable by the caller.
	ErrConnection = errors.New("connection failed")
	// ErrSessionExpired signals a 401 from the poll endpoint. Terminal for the
	// current session; the only condition that forces re-authentication.
	ErrSessionExpired = errors.New("session expired")
)

// APIError carries a server-provided error message verbatim, with the HTTP
// status it arrived on.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (status %d)", e.Status)
	}
	return e.Message
}

// ConnectionError wraps err as a retriable transport failure.
func ConnectionError(err error) error {
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

package adminapi

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRejected means login was refused. Session state is
	// unchanged; the operator retries with another credential.
	ErrAuthRejected = errors.New("invalid admin key")

	// ErrUnauthorized means an authenticated call came back 401/403.
	// The session controller treats this as an expired session and
	// logs out locally.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is a non-ok backend response that is neither an auth
// rejection nor a session expiry.
type StatusError struct {
	Operation string
	Status    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned status %d", e.Operation, e.Status)
}

// IsUnauthorized reports whether err stems from a 401/403 response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

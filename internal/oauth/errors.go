package oauth

import (
	"errors"
	"fmt"
)

// ErrMissingCode is returned when the redirect callback completes without an
// authorization code and without an explicit error from the server.
var ErrMissingCode = errors.New("authorization callback returned no code")

// HTTPError is a non-2xx response from the token endpoint. Message carries
// the server's "error" field (or the raw body when the body is not JSON) and
// Reason carries "error_description" when present.
type HTTPError struct {
	Status  int
	Message string
	Reason  string
}

func (e *HTTPError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("token endpoint returned %d: %s (%s)", e.Status, e.Message, e.Reason)
	}
	return fmt.Sprintf("token endpoint returned %d: %s", e.Status, e.Message)
}

// StateMismatchError signals that the state received on the redirect callback
// differs from the one sent, indicating possible CSRF or interference.
// Always fatal; the flow aborts before any token exchange.
type StateMismatchError struct {
	Local  string
	Remote string
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("oauth state mismatch: sent %q but received %q", e.Local, e.Remote)
}

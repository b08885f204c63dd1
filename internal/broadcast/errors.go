package broadcast

import "errors"

var (
	// ErrSessionNotFound is returned when the session id is not in the live registry.
	ErrSessionNotFound = errors.New("broadcast session not found")
	// ErrUserNotFound is returned when the host or a required target user cannot be resolved.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotHost is returned when a host-only operation is called by anyone else.
	ErrNotHost = errors.New("only the host can modify the broadcast")
)

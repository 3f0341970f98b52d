// internal/types/errors.go
package types

import "errors"

var (
	// ErrUnsupportedScope is returned when a caller supplies any scope
	// other than ScopeUserState. It is raised before any I/O happens.
	ErrUnsupportedScope = errors.New("only the user_state scope is supported")

	// ErrDoesNotExist is returned by GetHistory when the requested block
	// was never touched by the user, or holds no history rows.
	ErrDoesNotExist = errors.New("no state exists for the requested block")

	// ErrNotImplemented is returned by the bulk iteration operations.
	ErrNotImplemented = errors.New("bulk iteration is not implemented")

	// ErrServiceUnavailable wraps backend failures so driver errors do not
	// leak to callers.
	ErrServiceUnavailable = errors.New("state backend unavailable")

	// ErrPermissionDenied is reserved for authorization failures reported
	// by the backend.
	ErrPermissionDenied = errors.New("access to the requested state denied")
)

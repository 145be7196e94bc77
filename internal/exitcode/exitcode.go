// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"errors"

	"taskboard/internal/errs"
)

// Exit codes returned by every command.
const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, out of range, not confirmed).
	UserError = 1

	// AuthError indicates an auth/config error.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)

// For maps an error to its exit code. A nil error is Success.
func For(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, errs.ErrUnauthenticated):
		return AuthError
	case errors.Is(err, errs.ErrRemote),
		errors.Is(err, errs.ErrTimeout),
		errors.Is(err, errs.ErrLocationUnavailable),
		errors.Is(err, errs.ErrNotification):
		return BackendError
	default:
		return UserError
	}
}

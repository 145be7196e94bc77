// Package errs contains sentinel errors shared by the store, synchronizer and side channels.
package errs

import "errors"

var (
	// ErrUnauthenticated indicates there is no signed-in user at call time.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound indicates the remote document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRemote wraps any other remote store failure.
	ErrRemote = errors.New("remote failure")

	// ErrLocationUnavailable indicates no position could be determined and nothing is cached.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrTimeout indicates a location lookup exceeded its deadline with nothing cached.
	ErrTimeout = errors.New("timeout")

	// ErrNotification indicates an outbound webhook call failed.
	ErrNotification = errors.New("notification failed")

	// ErrInvalidTask indicates a task draft failed client-side validation.
	ErrInvalidTask = errors.New("invalid task")

	// ErrNotConfirmed indicates a destructive operation was not confirmed by the user.
	ErrNotConfirmed = errors.New("not confirmed")
)

// Message returns the short text shown to the user for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "not signed in (run: taskboard login)"
	case errors.Is(err, ErrInvalidTask):
		return "task title is required"
	case errors.Is(err, ErrNotFound):
		return "task no longer exists"
	case errors.Is(err, ErrNotConfirmed):
		return "cancelled"
	case errors.Is(err, ErrTimeout):
		return "location lookup timed out"
	case errors.Is(err, ErrLocationUnavailable):
		return "location not available"
	default:
		return "something went wrong, please try again"
	}
}

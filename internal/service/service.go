package service

import "context"

// Store defines the interface for the remote task document store.
// Every call is scoped to the user returned by the store's UserSource.
// Backends never leak SDK types; dates cross this boundary as civil.Date/time.Time.
type Store interface {
	// List returns all tasks of the current user, newest CreatedAt first.
	// Returns errs.ErrUnauthenticated if no user is signed in.
	List(ctx context.Context) ([]Task, error)

	// Create stores a task and returns the id assigned by the store.
	// The task's ID field is ignored.
	Create(ctx context.Context, task Task) (string, error)

	// Update applies a partial update.
	// Returns errs.ErrNotFound if the document does not exist.
	Update(ctx context.Context, id string, patch Patch) error

	// Delete removes a task.
	// Returns errs.ErrNotFound if the document does not exist.
	Delete(ctx context.Context, id string) error
}

// UserSource gives access to the currently authenticated user, or nil.
type UserSource interface {
	CurrentUser() *User
}

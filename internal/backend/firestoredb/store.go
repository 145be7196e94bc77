// Package firestoredb implements service.Store on Cloud Firestore.
package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"taskboard/internal/errs"
	"taskboard/internal/service"
)

const (
	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	usersCollection = "users"
	tasksCollection = "tasks"
)

// Store implements service.Store for the user reported by its UserSource.
type Store struct {
	client *firestore.Client
	users  service.UserSource
}

// New connects to the Firestore database of projectID.
// FIRESTORE_EMULATOR_HOST is honoured by the client library.
func New(ctx context.Context, projectID string, users service.UserSource, opts ...option.ClientOption) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Store{client: client, users: users}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) tasks() (*firestore.CollectionRef, error) {
	u := s.users.CurrentUser()
	if u == nil {
		return nil, errs.ErrUnauthenticated
	}
	return s.client.Collection(usersCollection).Doc(u.UID).Collection(tasksCollection), nil
}

// List implements service.Store.
func (s *Store) List(ctx context.Context) ([]service.Task, error) {
	coll, err := s.tasks()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	snaps, err := coll.OrderBy("createdAt", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		return nil, wrapError(err)
	}

	result := make([]service.Task, 0, len(snaps))
	for _, snap := range snaps {
		var d taskDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("%w: decode task %s: %v", errs.ErrRemote, snap.Ref.ID, err)
		}
		result = append(result, fromDoc(snap.Ref.ID, d))
	}
	return result, nil
}

// Create implements service.Store.
func (s *Store) Create(ctx context.Context, t service.Task) (string, error) {
	coll, err := s.tasks()
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	ref, _, err := coll.Add(ctx, toDoc(t))
	if err != nil {
		return "", wrapError(err)
	}
	return ref.ID, nil
}

// Update implements service.Store.
func (s *Store) Update(ctx context.Context, id string, p service.Patch) error {
	coll, err := s.tasks()
	if err != nil {
		return err
	}
	if p.Empty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	// Update fails with NotFound when the document is missing.
	if _, err := coll.Doc(id).Update(ctx, patchUpdates(p)); err != nil {
		return wrapError(err)
	}
	return nil
}

// Delete implements service.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	coll, err := s.tasks()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if _, err := coll.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return wrapError(err)
	}
	return nil
}

// wrapError maps gRPC failures onto the errs sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", errs.ErrRemote)
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", errs.ErrNotFound, err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: token expired or revoked (run: taskboard login)", errs.ErrUnauthenticated)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: request timed out", errs.ErrRemote)
	}
	return fmt.Errorf("%w: %v", errs.ErrRemote, err)
}

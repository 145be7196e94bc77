// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"taskboard/internal/errs"
	"taskboard/internal/service"
)

// FakeStore is an in-memory implementation of service.Store for testing.
type FakeStore struct {
	mu     sync.Mutex
	tasks  map[string]service.Task
	nextID int
	calls  map[string]int

	// Users scopes calls like a real backend. Nil means always signed in.
	Users service.UserSource

	// Error injection for testing
	ListErr   error
	CreateErr error
	UpdateErr error
	DeleteErr error
	// DeleteErrFor overrides DeleteErr per task id.
	DeleteErrFor map[string]error

	// Gates block the matching call until they receive or close.
	// Entered is signalled (non-blocking) when a gated call starts waiting.
	ListGate   chan struct{}
	UpdateGate chan struct{}
	DeleteGate chan struct{}
	Entered    chan string
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		tasks:        make(map[string]service.Task),
		calls:        make(map[string]int),
		DeleteErrFor: make(map[string]error),
		Entered:      make(chan string, 64),
	}
}

// Put stores a task as if it already existed remotely.
func (f *FakeStore) Put(t service.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = t
}

// Remove deletes a task behind the synchronizer's back.
func (f *FakeStore) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
}

// Get returns a stored task.
func (f *FakeStore) Get(id string) (service.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok
}

// Len returns the number of stored tasks.
func (f *FakeStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

// Calls returns how often method was invoked.
func (f *FakeStore) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (f *FakeStore) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *FakeStore) enter(ctx context.Context, method string, gate chan struct{}) error {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()

	if f.Users != nil && f.Users.CurrentUser() == nil {
		return errs.ErrUnauthenticated
	}
	return f.wait(ctx, method, gate)
}

func (f *FakeStore) wait(ctx context.Context, method string, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case f.Entered <- method:
	default:
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List implements service.Store. The result is captured before ListGate is
// awaited, like a reply that is computed and then delayed in transit.
func (f *FakeStore) List(ctx context.Context) ([]service.Task, error) {
	if err := f.enter(ctx, "List", nil); err != nil {
		return nil, err
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	out := make([]service.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	f.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if err := f.wait(ctx, "List", f.ListGate); err != nil {
		return nil, err
	}
	return out, nil
}

// Create implements service.Store.
func (f *FakeStore) Create(ctx context.Context, t service.Task) (string, error) {
	if err := f.enter(ctx, "Create", nil); err != nil {
		return "", err
	}
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = fmt.Sprintf("task-%03d", f.nextID)
	f.tasks[t.ID] = t
	return t.ID, nil
}

// Update implements service.Store.
func (f *FakeStore) Update(ctx context.Context, id string, p service.Patch) error {
	if err := f.enter(ctx, "Update", f.UpdateGate); err != nil {
		return err
	}
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return errs.ErrNotFound
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.City != nil {
		t.City = *p.City
	}
	f.tasks[id] = t
	return nil
}

// Delete implements service.Store.
func (f *FakeStore) Delete(ctx context.Context, id string) error {
	if err := f.enter(ctx, "Delete", f.DeleteGate); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.DeleteErrFor[id]; ok {
		return err
	}
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.tasks[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

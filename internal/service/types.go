// Package service defines the backend-agnostic interface for the remote task store.
package service

import (
	"time"

	"cloud.google.com/go/civil"
)

// Task represents a single task owned by one user.
type Task struct {
	ID        string // empty until the remote store assigns one
	Title     string
	DueDate   civil.Date
	CreatedAt time.Time
	Completed bool
	City      string
	UserID    string
}

// Persisted reports whether the task has a store-assigned id.
func (t Task) Persisted() bool { return t.ID != "" }

// Draft is the user input for a new task.
type Draft struct {
	Title   string
	DueDate civil.Date
	City    string
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title     *string
	DueDate   *civil.Date
	Completed *bool
	City      *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.DueDate == nil && p.Completed == nil && p.City == nil
}

// User is the authenticated account handle.
type User struct {
	UID         string
	Email       string
	DisplayName string
}

// Package notify delivers task lifecycle and location events to outbound webhooks.
package notify

import (
	"time"

	"taskboard/internal/location"
	"taskboard/internal/service"
)

// Event types.
const (
	TypeTaskCreated     = "task_created"
	TypeTaskDeleted     = "task_deleted"
	TypeLocationUpdated = "location_updated"
)

// LocationUnavailable is sent in place of a snapshot when no location is known.
const LocationUnavailable = "location not available"

// Event is the JSON payload posted to a webhook.
// Location holds either a location.Snapshot or the LocationUnavailable marker.
type Event struct {
	Type          string    `json:"type"`
	UserEmail     string    `json:"userEmail"`
	UserUID       string    `json:"userUid"`
	TaskID        string    `json:"taskId,omitempty"`
	TaskTitle     string    `json:"taskTitle,omitempty"`
	TaskDueDate   string    `json:"taskDueDate,omitempty"`
	TaskCreatedAt string    `json:"taskCreatedAt,omitempty"`
	TaskCompleted *bool     `json:"taskCompleted,omitempty"`
	TaskCity      string    `json:"taskCity,omitempty"`
	Location      any       `json:"location"`
	Timestamp     time.Time `json:"timestamp"`
	EventID       string    `json:"eventId"`
}

func newTaskEvent(typ string, u *service.User, t service.Task) Event {
	e := Event{
		Type:          typ,
		TaskID:        t.ID,
		TaskTitle:     t.Title,
		TaskCompleted: &t.Completed,
		TaskCity:      t.City,
		Location:      LocationUnavailable,
	}
	if t.DueDate.IsValid() {
		e.TaskDueDate = t.DueDate.String()
	}
	if !t.CreatedAt.IsZero() {
		e.TaskCreatedAt = t.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	e.setUser(u)
	return e
}

func newLocationEvent(u *service.User, s location.Snapshot) Event {
	e := Event{Type: TypeLocationUpdated, Location: s}
	e.setUser(u)
	return e
}

func (e *Event) setUser(u *service.User) {
	if u == nil {
		return
	}
	e.UserEmail = u.Email
	e.UserUID = u.UID
}

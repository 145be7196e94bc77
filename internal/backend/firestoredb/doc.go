package firestoredb

import (
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/firestore"

	"taskboard/internal/service"
)

// taskDoc is the stored shape of users/{uid}/tasks/{id}.
type taskDoc struct {
	Title     string    `firestore:"title"`
	DueDate   time.Time `firestore:"dueDate"`
	CreatedAt time.Time `firestore:"createdAt"`
	Completed bool      `firestore:"completed"`
	City      string    `firestore:"city"`
	UserID    string    `firestore:"userId"`
}

// dueTimestamp stores a calendar date as UTC midnight.
func dueTimestamp(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// dueDate reads a stored timestamp back as the UTC calendar date.
func dueDate(ts time.Time) civil.Date {
	return civil.DateOf(ts.UTC())
}

func toDoc(t service.Task) taskDoc {
	return taskDoc{
		Title:     t.Title,
		DueDate:   dueTimestamp(t.DueDate),
		CreatedAt: t.CreatedAt.UTC(),
		Completed: t.Completed,
		City:      t.City,
		UserID:    t.UserID,
	}
}

func fromDoc(id string, d taskDoc) service.Task {
	return service.Task{
		ID:        id,
		Title:     d.Title,
		DueDate:   dueDate(d.DueDate),
		CreatedAt: d.CreatedAt,
		Completed: d.Completed,
		City:      d.City,
		UserID:    d.UserID,
	}
}

func patchUpdates(p service.Patch) []firestore.Update {
	var ups []firestore.Update
	if p.Title != nil {
		ups = append(ups, firestore.Update{Path: "title", Value: *p.Title})
	}
	if p.DueDate != nil {
		ups = append(ups, firestore.Update{Path: "dueDate", Value: dueTimestamp(*p.DueDate)})
	}
	if p.Completed != nil {
		ups = append(ups, firestore.Update{Path: "completed", Value: *p.Completed})
	}
	if p.City != nil {
		ups = append(ups, firestore.Update{Path: "city", Value: *p.City})
	}
	return ups
}

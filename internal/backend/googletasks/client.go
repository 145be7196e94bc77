// Package googletasks implements service.Store on the Google Tasks API.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"taskboard/internal/errs"
	"taskboard/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// Client implements service.Store using the user's default task list.
// Google Tasks has no creation time or city, so both are kept in the notes.
type Client struct {
	svc   *tasks.Service
	users service.UserSource
}

// New creates a Google Tasks client authorized by ts.
func New(ctx context.Context, ts oauth2.TokenSource, users service.UserSource) (*Client, error) {
	svc, err := tasks.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{svc: svc, users: users}, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and endpoint (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint string, users service.UserSource) (*Client, error) {
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient), option.WithEndpoint(endpoint))
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc, users: users}, nil
}

func (c *Client) signedIn() error {
	if c.users.CurrentUser() == nil {
		return errs.ErrUnauthenticated
	}
	return nil
}

// List implements service.Store.
func (c *Client) List(ctx context.Context) ([]service.Task, error) {
	if err := c.signedIn(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	uid := c.users.CurrentUser().UID
	var result []service.Task
	err := c.svc.Tasks.List(DefaultListID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, item := range resp.Items {
				result = append(result, fromAPI(item, uid))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Create implements service.Store.
func (c *Client) Create(ctx context.Context, t service.Task) (string, error) {
	if err := c.signedIn(); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created, err := c.svc.Tasks.Insert(DefaultListID, toAPI(t)).Context(ctx).Do()
	if err != nil {
		return "", wrapError(err)
	}
	return created.Id, nil
}

// Update implements service.Store.
func (c *Client) Update(ctx context.Context, id string, p service.Patch) error {
	if err := c.signedIn(); err != nil {
		return err
	}
	if p.Empty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	patch := &tasks.Task{}
	if p.Title != nil {
		patch.Title = *p.Title
	}
	if p.DueDate != nil {
		patch.Due = formatDue(*p.DueDate)
	}
	if p.Completed != nil {
		patch.Status = statusNeedsAction
		if *p.Completed {
			patch.Status = statusCompleted
		} else {
			patch.NullFields = append(patch.NullFields, "Completed")
		}
	}
	if p.City != nil {
		// notes hold both fields, so the city rewrite needs the current creation time
		cur, err := c.svc.Tasks.Get(DefaultListID, id).Context(ctx).Do()
		if err != nil {
			return wrapError(err)
		}
		created, _ := parseNotes(cur.Notes)
		patch.Notes = formatNotes(created, *p.City)
	}

	if _, err := c.svc.Tasks.Patch(DefaultListID, id, patch).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

// Delete implements service.Store.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.signedIn(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(DefaultListID, id).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

func toAPI(t service.Task) *tasks.Task {
	item := &tasks.Task{
		Title:  t.Title,
		Notes:  formatNotes(t.CreatedAt, t.City),
		Status: statusNeedsAction,
	}
	if t.DueDate.IsValid() {
		item.Due = formatDue(t.DueDate)
	}
	if t.Completed {
		item.Status = statusCompleted
	}
	return item
}

func fromAPI(item *tasks.Task, uid string) service.Task {
	created, city := parseNotes(item.Notes)
	if created.IsZero() {
		created, _ = time.Parse(time.RFC3339, item.Updated)
	}
	t := service.Task{
		ID:        item.Id,
		Title:     item.Title,
		CreatedAt: created,
		Completed: item.Status == statusCompleted,
		City:      city,
		UserID:    uid,
	}
	if due, err := time.Parse(time.RFC3339, item.Due); err == nil {
		t.DueDate = civil.DateOf(due.UTC())
	}
	return t
}

// formatDue renders a date the way the Tasks API stores it: midnight UTC.
func formatDue(d civil.Date) string {
	return d.In(time.UTC).Format(time.RFC3339)
}

const (
	createdPrefix = "created: "
	cityPrefix    = "city: "
)

func formatNotes(created time.Time, city string) string {
	var lines []string
	if !created.IsZero() {
		lines = append(lines, createdPrefix+created.UTC().Format(time.RFC3339Nano))
	}
	if city != "" {
		lines = append(lines, cityPrefix+city)
	}
	return strings.Join(lines, "\n")
}

func parseNotes(notes string) (time.Time, string) {
	var (
		created time.Time
		city    string
	)
	for _, line := range strings.Split(notes, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, createdPrefix):
			created, _ = time.Parse(time.RFC3339Nano, strings.TrimPrefix(line, createdPrefix))
		case strings.HasPrefix(line, cityPrefix):
			city = strings.TrimPrefix(line, cityPrefix)
		}
	}
	return created, city
}

// wrapError maps API errors onto the errs sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", errs.ErrRemote)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", errs.ErrNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: token expired or revoked (run: taskboard login)", errs.ErrUnauthenticated)
		}
	}
	return fmt.Errorf("%w: %v", errs.ErrRemote, err)
}

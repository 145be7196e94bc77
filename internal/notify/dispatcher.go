package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"taskboard/internal/errs"
	"taskboard/internal/location"
	"taskboard/internal/service"
)

// LocationSource supplies the best-effort location attached to task events.
type LocationSource interface {
	GetLocation(ctx context.Context) (location.Snapshot, error)
}

// Config holds webhook endpoints and retry tuning. An empty URL disables that event.
type Config struct {
	CreatedURL  string
	DeletedURL  string
	LocationURL string

	MaxAttempts int
	BaseDelay   time.Duration
	// Timeout bounds one background send, location lookup included.
	Timeout time.Duration
}

// Dispatcher sends events. Task events are fire-once and never surface errors.
type Dispatcher struct {
	cfg    Config
	loc    LocationSource
	client *http.Client
	log    *zap.Logger

	now    func() time.Time
	jitter func() float64

	wg sync.WaitGroup
}

// New creates a dispatcher. loc may be nil, in which case task events carry
// the LocationUnavailable marker.
func New(cfg Config, loc LocationSource, client *http.Client, log *zap.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Dispatcher{
		cfg:    cfg,
		loc:    loc,
		client: client,
		log:    log,
		now:    time.Now,
		jitter: rand.Float64,
	}
}

// SetClock overrides the time source (for testing).
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// SetJitter overrides the random factor source, which must return values in [0,1) (for testing).
func (d *Dispatcher) SetJitter(f func() float64) { d.jitter = f }

// TaskCreated posts a task_created event in the background.
func (d *Dispatcher) TaskCreated(ctx context.Context, u *service.User, t service.Task) {
	d.dispatch(ctx, http.MethodPost, d.cfg.CreatedURL, newTaskEvent(TypeTaskCreated, u, t))
}

// TaskDeleted sends a task_deleted event as a DELETE with a JSON body in the background.
func (d *Dispatcher) TaskDeleted(ctx context.Context, u *service.User, t service.Task) {
	d.dispatch(ctx, http.MethodDelete, d.cfg.DeletedURL, newTaskEvent(TypeTaskDeleted, u, t))
}

func (d *Dispatcher) dispatch(ctx context.Context, method, url string, e Event) {
	if url == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()

		if d.loc != nil {
			if s, err := d.loc.GetLocation(ctx); err == nil {
				e.Location = s
			} else {
				d.log.Debug("event sent without location", zap.String("type", e.Type), zap.Error(err))
			}
		}
		e.Timestamp = d.now().UTC()
		e.EventID = uuid.NewString()

		if err := d.send(ctx, method, url, e); err != nil {
			d.log.Warn("webhook failed",
				zap.String("type", e.Type),
				zap.String("task_id", e.TaskID),
				zap.String("event_id", e.EventID),
				zap.Error(err))
			return
		}
		d.log.Debug("webhook delivered", zap.String("type", e.Type), zap.String("event_id", e.EventID))
	}()
}

// LocationUpdated posts the snapshot, retrying transient failures with
// exponential backoff and jitter. The last error is returned.
func (d *Dispatcher) LocationUpdated(ctx context.Context, u *service.User, s location.Snapshot) error {
	if d.cfg.LocationURL == "" {
		return nil
	}
	e := newLocationEvent(u, s)
	e.Timestamp = d.now().UTC()
	e.EventID = uuid.NewString()

	attempt := 0
	err := retry.Do(ctx, d.backoff(), func(ctx context.Context) error {
		attempt++
		err := d.send(ctx, http.MethodPost, d.cfg.LocationURL, e)
		if err == nil {
			return nil
		}
		d.log.Debug("location webhook attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if isPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		d.log.Warn("location webhook gave up", zap.Int("attempts", attempt), zap.Error(err))
		return err
	}
	return nil
}

// backoff yields base × 2^n × U[0.5,1) for n = 0, 1, ... and stops after MaxAttempts calls.
func (d *Dispatcher) backoff() retry.Backoff {
	n := 0
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		factor := 0.5 + d.jitter()*0.5
		delay := time.Duration(float64(d.cfg.BaseDelay) * math.Pow(2, float64(n)) * factor)
		n++
		return delay, false
	})
	return retry.WithMaxRetries(uint64(d.cfg.MaxAttempts-1), b)
}

// Wait blocks until in-flight background sends finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func isPermanent(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code < 500 && se.code != http.StatusTooManyRequests
}

func (d *Dispatcher) send(ctx context.Context, method, url string, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", errs.ErrNotification, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrNotification, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrNotification, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %w", errs.ErrNotification, &statusError{code: resp.StatusCode})
	}
	return nil
}

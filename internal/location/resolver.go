package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/errs"
	"taskboard/internal/geocode"
)

// Geocoder turns coordinates into a place description.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (geocode.Place, error)
}

// Resolver serves locations from the cache or a fresh locate + reverse-geocode lookup.
type Resolver struct {
	locator  Locator
	geocoder Geocoder
	cache    *Cache
	timeout  time.Duration
	log      *zap.Logger

	now func() time.Time
}

// NewResolver wires a resolver. timeout bounds one whole lookup.
func NewResolver(locator Locator, geocoder Geocoder, cache *Cache, timeout time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{
		locator:  locator,
		geocoder: geocoder,
		cache:    cache,
		timeout:  timeout,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the time source (for testing).
func (r *Resolver) SetClock(now func() time.Time) { r.now = now }

// Cache returns the underlying cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// GetLocation returns a fresh cached snapshot, or looks one up.
// Lookup failures fall back to any cached snapshot, however old.
func (r *Resolver) GetLocation(ctx context.Context) (Snapshot, error) {
	started := r.now()
	if s, ok := r.cache.Fresh(started); ok {
		return s, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snap, err := r.lookup(lookupCtx, started)
	if err != nil {
		if stale, ok := r.cache.Latest(); ok {
			r.log.Warn("location lookup failed, using cached snapshot",
				zap.Time("cached_at", stale.Timestamp), zap.Error(err))
			return stale, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return Snapshot{}, fmt.Errorf("location lookup: %w", errs.ErrTimeout)
		}
		return Snapshot{}, fmt.Errorf("%w: %v", errs.ErrLocationUnavailable, err)
	}

	stored, err := r.cache.Store(snap)
	if err != nil {
		r.log.Error("location cache write failed", zap.Error(err))
		return snap, nil
	}
	if !stored {
		if latest, ok := r.cache.Latest(); ok {
			r.log.Debug("discarding out-of-order location result",
				zap.Time("result_at", snap.Timestamp), zap.Time("cached_at", latest.Timestamp))
			return latest, nil
		}
	}
	return snap, nil
}

func (r *Resolver) lookup(ctx context.Context, started time.Time) (Snapshot, error) {
	coords, err := r.locator.Locate(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	place, err := r.geocoder.Reverse(ctx, coords.Latitude, coords.Longitude)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Snapshot{}, ctxErr
		}
		r.log.Warn("reverse geocode failed, using coordinates", zap.Error(err))
		return Fallback(coords, started), nil
	}

	snap := Snapshot{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		PlaceName: orDefault(place.DisplayName, coords.Label()),
		City:      orDefault(place.City, Unknown),
		State:     orDefault(place.State, Unknown),
		Country:   orDefault(place.Country, Unknown),
		Timestamp: started,
	}
	return snap, nil
}

// Display returns a label for the current location, or a degraded message.
func (r *Resolver) Display(ctx context.Context) string {
	s, err := r.GetLocation(ctx)
	if err != nil {
		return errs.Message(err)
	}
	return s.Display()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

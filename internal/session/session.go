// Package session wires the components serving one signed-in user.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"taskboard/internal/auth"
	"taskboard/internal/backend/firestoredb"
	"taskboard/internal/backend/googletasks"
	"taskboard/internal/config"
	"taskboard/internal/geocode"
	"taskboard/internal/location"
	"taskboard/internal/metrics"
	"taskboard/internal/notify"
	"taskboard/internal/service"
	"taskboard/internal/tasksync"
)

// notifyTimeout bounds one background webhook send, location lookup included.
const notifyTimeout = 30 * time.Second

// Deps are the parts a Session is assembled from.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Identity *auth.Provider
	Store    service.Store
	Locator  location.Locator
	Geocoder location.Geocoder
	// Mirror may be nil to keep the location cache in memory.
	Mirror     location.Mirror
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	// Closers run on Close after everything else has shut down.
	Closers []io.Closer
}

// Session holds the components of one signed-in user.
type Session struct {
	Config   *config.Config
	Settings config.Settings
	Log      *zap.Logger
	Identity *auth.Provider
	Store    service.Store
	Resolver *location.Resolver
	Notifier *notify.Dispatcher
	Sync     *tasksync.Synchronizer
	Metrics  *metrics.Metrics

	closers []io.Closer
}

// New assembles a session from d. The store is wrapped with logging and
// instrumentation middleware.
func New(d Deps) (*Session, error) {
	if d.Config == nil || d.Identity == nil || d.Store == nil {
		return nil, errors.New("session: config, identity and store are required")
	}
	settings := d.Config.Settings
	weekStart, err := config.ParseWeekday(settings.WeekStart)
	if err != nil {
		return nil, err
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}

	store := service.Chain(d.Store,
		service.LoggingMiddleware(log.Named("store")),
		service.InstrumentingMiddleware(m.RequestCount, m.RequestDuration),
	)

	cache := location.NewCache(settings.LocationTTL, d.Mirror)
	resolver := location.NewResolver(d.Locator, d.Geocoder, cache, settings.LocationTimeout, log.Named("location"))

	dispatcher := notify.New(notify.Config{
		CreatedURL:  settings.WebhookCreatedURL,
		DeletedURL:  settings.WebhookDeletedURL,
		LocationURL: settings.WebhookLocationURL,
		MaxAttempts: settings.NotifyMaxAttempts,
		BaseDelay:   settings.NotifyBaseDelay,
		Timeout:     notifyTimeout,
	}, resolver, d.HTTPClient, log.Named("notify"))

	syncer := tasksync.New(store, d.Identity,
		tasksync.WithNotifier(dispatcher),
		tasksync.WithLogger(log.Named("sync")),
		tasksync.WithWeekStart(weekStart),
	)

	return &Session{
		Config:   d.Config,
		Settings: settings,
		Log:      log,
		Identity: d.Identity,
		Store:    store,
		Resolver: resolver,
		Notifier: dispatcher,
		Sync:     syncer,
		Metrics:  m,
		closers:  d.Closers,
	}, nil
}

// Open builds the production session from the stored token and settings.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Session, error) {
	ts, err := auth.TokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	user, err := auth.ResolveUser(ctx, ts)
	if err != nil {
		return nil, err
	}
	provider := auth.NewProvider()
	provider.SignIn(user)

	settings := cfg.Settings
	var (
		store   service.Store
		closers []io.Closer
	)
	switch settings.Backend {
	case config.BackendFirestore:
		if settings.FirestoreProject == "" {
			return nil, errors.New("firestore_project is not set")
		}
		db, err := firestoredb.New(ctx, settings.FirestoreProject, provider, option.WithTokenSource(ts))
		if err != nil {
			return nil, err
		}
		store = db
		closers = append(closers, db)
	case config.BackendGoogleTasks:
		gt, err := googletasks.New(ctx, ts, provider)
		if err != nil {
			return nil, err
		}
		store = gt
	default:
		return nil, fmt.Errorf("invalid backend: %q", settings.Backend)
	}

	var locator location.Locator
	switch settings.Locator {
	case config.LocatorStatic:
		locator = location.StaticLocator{Coordinates: location.Coordinates{
			Latitude:  settings.Latitude,
			Longitude: settings.Longitude,
		}}
	default:
		locator = location.NewIPLocator(settings.LocatorURL, nil)
	}

	return New(Deps{
		Config:   cfg,
		Log:      log,
		Identity: provider,
		Store:    store,
		Locator:  locator,
		Geocoder: geocode.NewNominatim(settings.GeocoderURL, settings.GeocoderUserAgent),
		Mirror:   location.NewFileMirror(cfg.LocationPath()),
		Closers:  closers,
	})
}

// Start restores the durable location snapshot and loads the task set.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Resolver.Cache().Restore(); err != nil {
		s.Log.Warn("location mirror unreadable", zap.Error(err))
	}
	return s.Sync.Start(ctx)
}

// Close signs out, drains pending notifications, exports metrics and
// releases backend clients.
func (s *Session) Close(ctx context.Context) error {
	s.Sync.SignOut()
	var errList []error
	if err := s.Notifier.Wait(ctx); err != nil {
		errList = append(errList, fmt.Errorf("wait for notifications: %w", err))
	}
	s.Identity.SignOut()
	if err := s.Metrics.WriteTextfile(s.Settings.MetricsTextfile); err != nil {
		errList = append(errList, fmt.Errorf("write metrics: %w", err))
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	_ = s.Log.Sync()
	return errors.Join(errList...)
}

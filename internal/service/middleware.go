package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/kit/metrics"
	"go.uber.org/zap"

	"taskboard/internal/errs"
)

// Middleware decorates a Store.
type Middleware func(Store) Store

// Chain wraps s with the given middlewares, outermost first.
func Chain(s Store, mws ...Middleware) Store {
	for i := len(mws) - 1; i >= 0; i-- {
		s = mws[i](s)
	}
	return s
}

// LoggingMiddleware logs every remote call with its duration and error.
func LoggingMiddleware(log *zap.Logger) Middleware {
	return func(next Store) Store {
		return loggingMiddleware{log: log, next: next}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Store
}

func (mw loggingMiddleware) List(ctx context.Context) (tasks []Task, err error) {
	defer func(begin time.Time) {
		mw.log.Debug("store",
			zap.String("method", "List"),
			zap.Int("count", len(tasks)),
			zap.Duration("dur", time.Since(begin)),
			zap.Error(err),
		)
	}(time.Now())
	return mw.next.List(ctx)
}

func (mw loggingMiddleware) Create(ctx context.Context, task Task) (id string, err error) {
	defer func(begin time.Time) {
		mw.log.Debug("store",
			zap.String("method", "Create"),
			zap.String("task_id", id),
			zap.String("title", task.Title),
			zap.Duration("dur", time.Since(begin)),
			zap.Error(err),
		)
	}(time.Now())
	return mw.next.Create(ctx, task)
}

func (mw loggingMiddleware) Update(ctx context.Context, id string, patch Patch) (err error) {
	defer func(begin time.Time) {
		mw.log.Debug("store",
			zap.String("method", "Update"),
			zap.String("task_id", id),
			zap.Duration("dur", time.Since(begin)),
			zap.Error(err),
		)
	}(time.Now())
	return mw.next.Update(ctx, id, patch)
}

func (mw loggingMiddleware) Delete(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		mw.log.Debug("store",
			zap.String("method", "Delete"),
			zap.String("task_id", id),
			zap.Duration("dur", time.Since(begin)),
			zap.Error(err),
		)
	}(time.Now())
	return mw.next.Delete(ctx, id)
}

// InstrumentingMiddleware counts calls by method and outcome and observes latency.
func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Store) Store {
		return instrumentingMiddleware{requestCount: counter, requestLatency: latency, next: next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Store
}

func (mw instrumentingMiddleware) observe(method string, begin time.Time, err error) {
	mw.requestCount.With("method", method, "outcome", outcome(err)).Add(1)
	mw.requestLatency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) List(ctx context.Context) (tasks []Task, err error) {
	defer func(begin time.Time) { mw.observe("list", begin, err) }(time.Now())
	return mw.next.List(ctx)
}

func (mw instrumentingMiddleware) Create(ctx context.Context, task Task) (id string, err error) {
	defer func(begin time.Time) { mw.observe("create", begin, err) }(time.Now())
	return mw.next.Create(ctx, task)
}

func (mw instrumentingMiddleware) Update(ctx context.Context, id string, patch Patch) (err error) {
	defer func(begin time.Time) { mw.observe("update", begin, err) }(time.Now())
	return mw.next.Update(ctx, id, patch)
}

func (mw instrumentingMiddleware) Delete(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) { mw.observe("delete", begin, err) }(time.Now())
	return mw.next.Delete(ctx, id)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "error"
	}
}

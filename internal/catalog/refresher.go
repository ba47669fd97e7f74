package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/florist-bot/internal/domain/product"
)

const instrumentationName = "github.com/xenking/florist-bot/internal/catalog"

// RefresherConfig controls how often the snapshot is re-read.
type RefresherConfig struct {
	// Interval between background refreshes. Defaults to ten minutes.
	Interval time.Duration
	// FetchTimeout bounds a single fetch. Defaults to one minute.
	FetchTimeout time.Duration
}

// Refresher re-reads the catalog from a Source and swaps it into a Store.
// Concurrent refresh requests share a single fetch.
type Refresher struct {
	src      Source
	store    *Store
	interval time.Duration
	timeout  time.Duration
	lg       *zap.Logger
	tracer   trace.Tracer
	group    singleflight.Group

	refreshes metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewRefresher creates a Refresher publishing into store.
func NewRefresher(
	src Source,
	store *Store,
	cfg RefresherConfig,
	lg *zap.Logger,
	mp metric.MeterProvider,
	tp trace.TracerProvider,
) (*Refresher, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = time.Minute
	}

	meter := mp.Meter(instrumentationName)
	refreshes, err := meter.Int64Counter("catalog.refreshes",
		metric.WithDescription("Catalog refresh attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create refresh counter")
	}
	duration, err := meter.Float64Histogram("catalog.refresh.duration",
		metric.WithDescription("Time spent fetching the catalog"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create refresh histogram")
	}
	if _, err := meter.Int64ObservableGauge("catalog.products",
		metric.WithDescription("Products in the current snapshot"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(store.Load().Len()))
			return nil
		}),
	); err != nil {
		return nil, errors.Wrap(err, "create products gauge")
	}

	return &Refresher{
		src:       src,
		store:     store,
		interval:  cfg.Interval,
		timeout:   cfg.FetchTimeout,
		lg:        lg,
		tracer:    tp.Tracer(instrumentationName),
		refreshes: refreshes,
		duration:  duration,
	}, nil
}

// Current returns the published snapshot without fetching.
func (r *Refresher) Current() *product.Catalog {
	return r.store.Load()
}

// Ensure returns the current snapshot, fetching one first if none has been
// loaded yet.
func (r *Refresher) Ensure(ctx context.Context) (*product.Catalog, error) {
	if c := r.store.Load(); c != nil {
		return c, nil
	}
	return r.Refresh(ctx)
}

// Refresh fetches a new snapshot and publishes it. On failure the previous
// snapshot stays in place.
//
// The shared fetch is detached from ctx and bounded by the fetch timeout, so
// a caller giving up does not fail the other callers waiting on it.
func (r *Refresher) Refresh(ctx context.Context) (*product.Catalog, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.refresh(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*product.Catalog), nil
	}
}

func (r *Refresher) refresh(ctx context.Context) (*product.Catalog, error) {
	ctx, span := r.tracer.Start(ctx, "catalog.Refresh")
	defer span.End()

	start := time.Now()
	c, err := r.src.Fetch(ctx)
	r.duration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		r.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrap(err, "fetch catalog")
	}

	r.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	span.SetAttributes(attribute.Int("catalog.products", c.Len()))

	prev := r.store.Swap(c)
	r.lg.Info("Catalog refreshed",
		zap.Int("products", c.Len()),
		zap.Int("previous", prev.Len()),
		zap.Duration("took", time.Since(start)),
	)
	return c, nil
}

// Run refreshes immediately and then every interval until ctx is done.
// Fetch failures are logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context) error {
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
		r.lg.Warn("Catalog refresh failed, keeping previous snapshot",
			zap.Error(err),
			zap.Time("snapshot", r.store.Load().FetchedAt()),
		)
	}
}

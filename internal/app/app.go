package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/florist-bot/internal/bot"
	"github.com/xenking/florist-bot/internal/catalog"
	"github.com/xenking/florist-bot/internal/domain/order"
	"github.com/xenking/florist-bot/internal/domain/product"
	"github.com/xenking/florist-bot/internal/handler"
	"github.com/xenking/florist-bot/internal/shopify"
	"github.com/xenking/florist-bot/internal/storage/postgres"
	"github.com/xenking/florist-bot/internal/telegram"
	"github.com/xenking/florist-bot/pkg/health"
	"github.com/xenking/florist-bot/pkg/httpmiddleware"
	"github.com/xenking/florist-bot/pkg/ratelimit"
)

// Run creates all dependencies, starts the catalog refresher, the bot and the
// HTTP server, and handles graceful shutdown. It is the single wiring point
// for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog.source", cfg.Catalog.Source),
	)
	tp, mp := m.TracerProvider(), m.MeterProvider()

	src, pool, err := newSource(ctx, cfg, product.DefaultVocabulary(), lg, tp, mp)
	if err != nil {
		return errors.Wrap(err, "create catalog source")
	}
	if pool != nil {
		defer pool.Close()
	}

	refresher, err := catalog.NewRefresher(src, catalog.NewStore(),
		catalog.RefresherConfig{Interval: cfg.Catalog.RefreshInterval},
		lg.Named("catalog"), mp, tp,
	)
	if err != nil {
		return errors.Wrap(err, "create refresher")
	}

	handoff := order.NewHandoff(order.HandoffConfig{
		StoreDomain:       cfg.Links.StoreDomain,
		InstagramUsername: cfg.Links.InstagramUsername,
		WhatsAppNumber:    cfg.Links.WhatsAppNumber,
	})
	presenter, err := bot.NewPresenter(refresher, handoff, bot.Config{
		ShopName:       cfg.Telegram.ShopName,
		RecommendLimit: cfg.Recommend.Limit,
	}, tp)
	if err != nil {
		return errors.Wrap(err, "create presenter")
	}

	api, err := telegram.Dial(cfg.Telegram.Token, cfg.Telegram.Debug)
	if err != nil {
		return err
	}
	lg.Info("Connected to Telegram", zap.String("bot", api.Self.UserName))
	tgBot, err := telegram.New(api, presenter, telegram.Config{
		PollTimeout: cfg.Telegram.PollTimeout,
		RateLimit:   ratelimit.Config{Max: cfg.RateLimit.ChatMax, Window: cfg.RateLimit.Window},
	}, lg.Named("telegram"), mp)
	if err != nil {
		return errors.Wrap(err, "create bot")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000), health.Options{})
	healthSvc.Add(health.Liveness, "gc", health.GCMaxPauseCheck(time.Second), health.Options{})
	healthSvc.Add(health.Readiness, "catalog", health.FreshnessCheck(func() (time.Time, bool) {
		c := refresher.Current()
		return c.FetchedAt(), c != nil
	}, cfg.Catalog.MaxAge, time.Now), health.Options{FailureThreshold: 1})
	if pool != nil {
		healthSvc.Add(health.Readiness, "postgres", pool.Ping, health.Options{Timeout: 5 * time.Second})
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, lg.Named("http"), tp, mp, cfg, refresher, handoff, healthSvc),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresher.Run(gctx)
	})
	g.Go(func() error {
		return tgBot.Run(gctx)
	})
	g.Go(func() error {
		healthSvc.Start(gctx, 10*time.Second)
		healthSvc.SetReady(true)

		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		err := server.Shutdown(shutdownCtx)
		healthSvc.Stop()
		if err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

// newRouter serves the health endpoints and the catalog API behind the
// middleware chain.
func newRouter(
	ctx context.Context,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	cfg *Config,
	provider handler.CatalogProvider,
	handoff *order.Handoff,
	healthSvc *health.Health,
) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(handler.Config{DefaultLimit: cfg.Recommend.Limit}, provider, handoff).Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.Instrument("florist-bot", routeFinder, tp, mp),
		httpmiddleware.LogRequests(routeFinder),
	)
}

// newSource builds the configured catalog source. The pool is returned for
// the postgres source so the caller can close it and check it.
func newSource(
	ctx context.Context,
	cfg *Config,
	vocab *product.Vocabulary,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (catalog.Source, *pgxpool.Pool, error) {
	switch cfg.Catalog.Source {
	case SourceShopify:
		client, err := shopify.NewClient(shopify.Config{
			Store:      cfg.Shopify.Store,
			Token:      cfg.Shopify.Token,
			APIVersion: cfg.Shopify.APIVersion,
			Timeout:    cfg.Shopify.Timeout,
		}, vocab, lg.Named("shopify"), tp, mp)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case SourcePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewProductSource(pool, vocab), pool, nil
	case SourceFile:
		return catalog.NewFileSource(cfg.Catalog.File, vocab), nil, nil
	default:
		return nil, nil, errors.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

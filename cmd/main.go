package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/hoopsrank/internal/adapters/acquire"
	"github.com/okian/hoopsrank/internal/adapters/cache"
	"github.com/okian/hoopsrank/internal/adapters/http/api"
	"github.com/okian/hoopsrank/internal/adapters/repository"
	"github.com/okian/hoopsrank/internal/app"
	"github.com/okian/hoopsrank/internal/config"
	"github.com/okian/hoopsrank/internal/tracing"
	"github.com/okian/hoopsrank/pkg/logger"
	"github.com/okian/hoopsrank/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 60 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "hoopsrank exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "hoopsrank",
		Enabled:      cfg.TracingEnabled,
		SamplingRate: cfg.TracingSampleRate,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	if cfg.RefreshSchedule != "" {
		sched, err := app.NewScheduler(svc, newFetcher(cfg), cfg.RefreshSchedule)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = sched.Stop(stopCtx)
		}()
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the store and cache the configuration asks for. An empty
// db_path keeps metric rows in memory; an empty redis_addr caches in process.
func newService(ctx context.Context, cfg *config.Config) (*app.Service, error) {
	var store repository.Store = repository.NewMemoryStore()
	if cfg.DBPath != "" {
		s, err := repository.NewSQLStore(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		store = s
	}

	var c cache.Cache = cache.NewMemoryCache(cfg.CacheTTL())
	if cfg.RedisAddr != "" {
		client, err := cache.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		c = cache.NewRedisCache(client, cfg.CacheTTL(), "")
	}

	return app.New(
		app.WithLogger(logger.Get().Named("service")),
		app.WithStore(store),
		app.WithCache(c),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithCategories(cfg.SimilarityCategories()),
		app.WithSimilarityMinScore(cfg.SimilarityMinScore),
		app.WithSimilarityCeiling(cfg.SimilarityCeiling),
		app.WithSignedFieldSpan(cfg.SignedFieldSpan),
	), nil
}

func newFetcher(cfg *config.Config) acquire.Fetcher {
	return acquire.NewBreakerFetcher(
		acquire.NewFileFetcher(cfg.SnapshotDir),
		uint32(cfg.BreakerMaxRequests), //nolint:gosec // validated positive by config
		cfg.BreakerTimeout(),
	)
}

func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stridefit/stride/internal/api"
	"github.com/stridefit/stride/internal/app/activation"
	"github.com/stridefit/stride/internal/app/engagement"
	"github.com/stridefit/stride/internal/app/streak"
	"github.com/stridefit/stride/internal/domain"
	"github.com/stridefit/stride/internal/health"
	"github.com/stridefit/stride/internal/infra/cache"
	"github.com/stridefit/stride/internal/infra/memstore"
	"github.com/stridefit/stride/internal/infra/metrics"
	"github.com/stridefit/stride/internal/infra/postgres"
	"github.com/stridefit/stride/internal/infra/sqlite"
)

const shutdownTimeout = 15 * time.Second

// Daemon is the core Stride runtime. It wires together all services.
type Daemon struct {
	Config     Config
	Log        *zap.Logger
	Store      domain.Store
	Notifier   *engagement.Notifier
	Streaks    *engagement.StreakService
	Activation *engagement.ActivationService
	Health     *health.Checker
	Server     *api.Server
}

// New loads the config and creates a Daemon.
func New(log *zap.Logger) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(context.Background(), cfg, log)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config, log *zap.Logger) (*Daemon, error) {
	if log == nil {
		log = zap.NewNop()
	}
	loc, err := time.LoadLocation(cfg.Streak.DefaultTimeZone)
	if err != nil {
		return nil, fmt.Errorf("default time zone: %w", err)
	}

	store, dataDir, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	log.Info("storage ready", zap.String("driver", cfg.Storage.Driver), zap.Int("cache_size", cfg.Storage.CacheSize))

	notifier := engagement.NewNotifier(log)
	notifier.Subscribe(metrics.Listener{})
	notifier.Subscribe(engagement.LogListener(log))

	svcOpts := []engagement.Option{
		engagement.WithLogger(log),
		engagement.WithNotifier(notifier),
		engagement.WithMaxMerges(cfg.Streak.MaxMerges),
		engagement.WithRetry(engagement.RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay.Duration,
			MaxDelay:   cfg.Retry.MaxDelay.Duration,
		}),
	}
	streaks := engagement.NewStreakService(store,
		streak.New(streak.WithLocation(loc), streak.WithFreezeCap(cfg.Streak.FreezeCap)),
		svcOpts...)
	act := engagement.NewActivationService(store, activation.New(activation.WithLocation(loc)), svcOpts...)

	checker := health.NewChecker(store, dataDir, cfg.Telemetry.HealthInterval.Duration, log)

	srv := api.NewServer(streaks, act, log, api.Options{
		CORSOrigins:    cfg.API.CORSOrigins,
		RequestTimeout: cfg.API.RequestTimeout.Duration,
		RateLimit:      cfg.API.RateLimit,
		RateBurst:      cfg.API.RateBurst,
	})
	srv.SetHealth(checker)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:     cfg,
		Log:        log,
		Store:      store,
		Notifier:   notifier,
		Streaks:    streaks,
		Activation: act,
		Health:     checker,
		Server:     srv,
	}, nil
}

// openStore opens the configured backend, wrapped in the read cache when
// enabled. dataDir is the local directory the backend writes to, if any.
func openStore(ctx context.Context, cfg StorageConfig) (store domain.Store, dataDir string, err error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		dataDir = cfg.Dir
		if dataDir == "" {
			dataDir = strideHome()
		}
		store, err = sqlite.Open(dataDir)
	case DriverPostgres:
		pc := postgres.DefaultPoolConfig()
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		store, err = postgres.Open(ctx, cfg.PostgresDSN, pc)
	case DriverMemory:
		store = memstore.New()
	default:
		return nil, "", fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	if cfg.CacheSize > 0 && cfg.Driver != DriverMemory {
		store = cache.New(store, cfg.CacheSize, cfg.CacheTTL.Duration)
	}
	return store, dataDir, nil
}

// Addr is the configured listen address.
func (d *Daemon) Addr() string {
	return net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
}

// Serve runs the HTTP server and the health checker until ctx is done or
// SIGINT/SIGTERM arrives, then shuts down gracefully.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", d.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return d.serveListener(ctx, ln)
}

func (d *Daemon) serveListener(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})
	g.Go(func() error {
		d.Log.Info("serving", zap.String("addr", ln.Addr().String()), zap.Bool("metrics", d.Config.Telemetry.Prometheus))
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		d.Log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if cerr := d.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the store.
func (d *Daemon) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}

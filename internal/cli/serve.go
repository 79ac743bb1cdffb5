package cli

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/next-chapter/resume-engine/internal/api"
	"github.com/next-chapter/resume-engine/internal/cache"
	"github.com/next-chapter/resume-engine/internal/cleanup"
	"github.com/next-chapter/resume-engine/internal/config"
	"github.com/next-chapter/resume-engine/internal/metrics"
	"github.com/next-chapter/resume-engine/internal/models"
	"github.com/next-chapter/resume-engine/internal/resume"
	"github.com/next-chapter/resume-engine/internal/storage"
)

const (
	initTimeout     = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the résumé API server",
		Long: `Run the HTTP API and the retention worker. Configuration comes from the
environment (SERVER_PORT, DATABASE_DSN, REDIS_ADDRESS, CATALOG_DIR, ...).
Without DATABASE_DSN history is kept in memory; without REDIS_ADDRESS nothing
is cached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}

			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: cfg.Log.Level,
			})))

			slog.Info("starting nextchapter",
				"host", cfg.Server.Host,
				"port", cfg.Server.Port,
			)

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.Server.Addr())
			if err != nil {
				a.close()
				return errors.Wrapf(err, "failed to listen on %s", cfg.Server.Addr())
			}

			return a.run(cmd.Context(), ln)
		},
	}
}

// app holds everything serve starts and must stop
type app struct {
	engine          *resume.Engine
	cleaner         *cleanup.Cleaner
	httpServer      *http.Server
	shutdownMetrics func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	tr, err := loadTranslator(cfg.Catalog.Dir)
	if err != nil {
		return nil, err
	}
	slog.Info("catalog loaded", "version", tr.Version(), "sports", len(tr.Sports()))

	repo, err := openRepository(initCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var c cache.Cache = cache.Noop{}
	if cfg.Redis.Address != "" {
		rc, err := cache.NewRedisCache(initCtx, cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			repo.Close()
			return nil, errors.Wrap(err, "failed to connect to redis")
		}
		c = rc
		slog.Info("translation cache enabled", "address", cfg.Redis.Address, "ttl", cfg.Redis.TTL)
	}

	recorder, metricsHandler, shutdownMetrics, err := metrics.Setup(initCtx, metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	})
	if err != nil {
		c.Close()
		repo.Close()
		return nil, errors.Wrap(err, "failed to set up metrics")
	}

	engine := resume.NewEngine(tr, repo, resume.WithCache(c), resume.WithRecorder(recorder))

	if cfg.Auth.BootstrapAPIKey != "" {
		if err := bootstrapClient(initCtx, repo, cfg.Auth.BootstrapAPIKey); err != nil {
			engine.Close()
			shutdownMetrics(context.Background())
			return nil, err
		}
	}
	if cfg.Auth.Enabled && cfg.Auth.BootstrapAPIKey == "" && cfg.Database.DSN == "" {
		slog.Warn("auth enabled with an in-memory repository and no BOOTSTRAP_API_KEY: every request will be rejected")
	}

	opts := []api.Option{api.WithRecorder(recorder)}
	if metricsHandler != nil {
		opts = append(opts, api.WithMetricsHandler(metricsHandler))
	}
	server := api.NewServer(cfg.Server, cfg.Auth, engine, repo, opts...)

	return &app{
		engine:  engine,
		cleaner: cleanup.NewCleaner(engine, cfg.Cleanup.Interval, cfg.Cleanup.Retention, recorder),
		httpServer: &http.Server{
			Handler:           server.Router(),
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdownMetrics: shutdownMetrics,
	}, nil
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (storage.Repository, error) {
	if cfg.DSN == "" {
		slog.Warn("DATABASE_DSN not set, translation history is kept in memory")
		return storage.NewMemoryRepository(), nil
	}

	slog.Info("running database migrations", "dir", cfg.MigrationsDir)
	applied, err := storage.MigrateFromDSN(ctx, cfg.DSN, storage.MigrationSource(cfg.MigrationsDir))
	if err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	slog.Info("migrations complete", "applied", applied)

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:      cfg.DSN,
		MaxConns: int32(cfg.MaxConns),
		MinConns: int32(cfg.MinConns),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create database repository")
	}
	slog.Info("database connected successfully")
	return repo, nil
}

// bootstrapClient makes sure the configured key can call every endpoint
func bootstrapClient(ctx context.Context, repo storage.Repository, key string) error {
	client := &models.ApiClient{
		ID:          uuid.New().String(),
		Name:        "bootstrap",
		ApiKey:      key,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		Permissions: []string{"*"},
	}
	if err := repo.UpsertClient(ctx, client); err != nil {
		return errors.Wrap(err, "failed to register bootstrap api key")
	}
	slog.Info("bootstrap api key registered", "key_prefix", client.MaskedApiKey())
	return nil
}

// run serves on ln and runs the retention worker until ctx is done, then shuts
// both down and releases the engine.
func (a *app) run(ctx context.Context, ln net.Listener) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", ln.Addr().String())
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		return a.cleaner.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "http server shutdown")
		}
		return nil
	})

	err := g.Wait()
	slog.Info("nextchapter stopped")
	return err
}

func (a *app) close() {
	if err := a.engine.Close(); err != nil {
		slog.Error("engine close error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownMetrics(ctx); err != nil {
		slog.Error("metrics shutdown error", "error", err)
	}
}

// Command docgraph runs the GraphQL gateway that fronts the document
// store: schema and resolvers, the durable write queue, the dependency
// health supervisor, the authorization cache, and the HTTP/websocket
// surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/avolkov/docgraph/internal/api"
	"github.com/avolkov/docgraph/internal/api/middleware"
	"github.com/avolkov/docgraph/internal/authzcache"
	"github.com/avolkov/docgraph/internal/config"
	"github.com/avolkov/docgraph/internal/dbservice"
	"github.com/avolkov/docgraph/internal/dbservice/migrations"
	"github.com/avolkov/docgraph/internal/gql"
	"github.com/avolkov/docgraph/internal/health"
	"github.com/avolkov/docgraph/internal/pool"
	"github.com/avolkov/docgraph/internal/realtime"
	"github.com/avolkov/docgraph/internal/tracing"
	"github.com/avolkov/docgraph/internal/writequeue"
	"github.com/avolkov/docgraph/pkg/logging"
	"github.com/avolkov/docgraph/pkg/metrics"
)

const (
	serviceName             = "docgraph"
	writeQueuePollInterval  = 250 * time.Millisecond
	dbReadinessPollInterval = 5 * time.Second
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "docgraph: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     serviceName,
		Short:   "GraphQL gateway for the document store",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the GraphQL gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runServe(cfg)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var downTo int64
	var showStatus bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect document-store schema migrations (postgres profile only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Profile != config.ProfilePostgres {
				return fmt.Errorf("migrate: profile %q has no schema to migrate (only postgres does)", cfg.Profile)
			}
			dsn := databaseDSN(cfg)
			logger := logging.New(loggingConfig(cfg))

			switch {
			case showStatus:
				return migrations.Status(dsn, logger)
			case cmd.Flags().Changed("down-to"):
				return migrations.DownTo(dsn, downTo, logger)
			default:
				return migrations.Up(dsn, logger)
			}
		},
	}
	cmd.Flags().Int64Var(&downTo, "down-to", 0, "roll back to this goose version (0 undoes every migration)")
	cmd.Flags().BoolVar(&showStatus, "status", false, "print applied/pending migration status instead of applying")
	return cmd
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the merged configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			fmt.Printf("config valid: profile=%s environment=%s\n", cfg.Profile, cfg.App.Environment)
			return nil
		},
	})
	return configCmd
}

func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		Filename:    cfg.Log.Filename,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		SanitizePII: cfg.Log.SanitizePII,
	}
}

func databaseDSN(cfg *config.Config) string {
	poolCfg := pool.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	}
	return poolCfg.DSN()
}

// runServe wires every component into an HTTP server and blocks until a
// SIGINT/SIGTERM triggers a graceful shutdown.
func runServe(cfg *config.Config) error {
	logger := logging.New(loggingConfig(cfg))
	slog.SetDefault(logger)
	logger.Info("starting docgraph", "profile", cfg.Profile, "environment", cfg.App.Environment, "version", version)

	reg := metrics.NewRegistry(cfg.App.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Environment, logger)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	logger.Info("connecting document store", "profile", cfg.Profile)
	db, err := dbservice.New(ctx, cfg, logger, reg)
	if err != nil {
		logger.Error("failed to connect document store", "error", err)
		return err
	}
	logger.Info("document store connected")

	if cfg.Profile == config.ProfilePostgres {
		if err := migrations.Up(databaseDSN(cfg), logger); err != nil {
			logger.Error("failed to run document store migrations", "error", err)
			logger.Warn("continuing without migrations - manual intervention may be required")
		} else {
			logger.Info("document store migrations complete")
		}
	}

	queue := writequeue.New(writeQueueConfig(cfg), logger, reg.WriteQueue())
	if err := queue.Load(); err != nil {
		logger.Warn("failed to load write-queue snapshot, starting empty", "error", err)
	}

	readiness := &writequeue.ReadinessSnapshot{}
	readiness.Set(true)

	processor := writequeue.NewProcessor(queue, readiness, applyQueuedEntry(db), writeQueuePollInterval, logger)

	var redisClient *redis.Client
	if cfg.Authz.UseSharedTier && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
	}

	authzCfg := authzcache.DefaultConfig()
	authzCfg.Enabled = cfg.Authz.Enabled
	if cfg.Authz.TTL > 0 {
		authzCfg.TTL = cfg.Authz.TTL
	}
	if cfg.Authz.ShardCount > 0 {
		authzCfg.ShardCount = cfg.Authz.ShardCount
	}
	if cfg.Authz.ShardSize > 0 {
		authzCfg.ShardSize = cfg.Authz.ShardSize
	}
	authzCfg.UseSharedTier = cfg.Authz.UseSharedTier
	authz := authzcache.New(authzCfg, authzcache.DemoAuthorizer{}, redisClient, logger, reg.Cache())

	realtimeMetrics := realtime.NewRealtimeMetrics(cfg.App.Name)
	subs := gql.NewSubscriptionBus(logger, realtimeMetrics)
	if err := subs.Start(ctx); err != nil {
		return fmt.Errorf("starting subscription bus: %w", err)
	}

	schema, err := gql.NewSchema()
	if err != nil {
		return fmt.Errorf("building graphql schema: %w", err)
	}

	gqlHandler := gql.NewHandler(schema, db, queue, authz, subs, cfg.GraphQL, cfg.IsProduction(), logger, reg)

	supervisor := health.NewSupervisor(
		healthCheckers(db, readiness),
		health.Config{
			Interval:     cfg.Health.CheckInterval,
			StaleAfter:   cfg.Health.SnapshotTTL,
			MaxStale:     cfg.Health.SnapshotTTL + cfg.Health.StaleWindow,
			CheckTimeout: 5 * time.Second,
		},
		logger,
		reg.Health(),
	)
	supervisor.Start(ctx)

	var playground http.Handler
	if cfg.Server.EnablePlayground {
		playground = gql.NewPlaygroundHandler(schema)
	}

	router := api.NewRouter(api.RouterConfig{
		GraphQLHandler:    gqlHandler,
		SubscriptionBus:   subs,
		PlaygroundHandler: playground,
		Health:            supervisor,
		MetricsHandler:    metricsHandler(cfg),
		Logger:            logger,
		CORSConfig:        middleware.DefaultCORSConfig(),
		RateLimitPerMin:   120,
		RateLimitBurst:    30,
		EnableCORS:        true,
		EnableRateLimit:   true,
		EnableCompression: true,
		IsProduction:      cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	queueCtx, stopQueue := context.WithCancel(context.Background())
	go queue.Run(queueCtx)
	go processor.Run(queueCtx)
	go pollDBReadiness(queueCtx, db, readiness, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	shutdownTimeout := cfg.Server.GracefulShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", "error", err)
	}

	stopQueue()
	supervisor.Stop()
	if err := subs.Stop(shutdownCtx); err != nil {
		logger.Warn("subscription bus shutdown failed", "error", err)
	}
	if err := queue.Persist(); err != nil {
		logger.Error("failed to persist write queue on shutdown", "error", err)
	}
	if err := db.Close(); err != nil {
		logger.Warn("document store close failed", "error", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", "error", err)
	}

	logger.Info("docgraph exited")
	return nil
}

func writeQueueConfig(cfg *config.Config) writequeue.Config {
	wq := writequeue.DefaultConfig()
	if cfg.WriteQueue.SnapshotPath != "" {
		wq.SnapshotPath = cfg.WriteQueue.SnapshotPath
	}
	if cfg.WriteQueue.MaxSize > 0 {
		wq.MaxSize = cfg.WriteQueue.MaxSize
	}
	if cfg.WriteQueue.MaxAttempts > 0 {
		wq.MaxAttempts = cfg.WriteQueue.MaxAttempts
	}
	if cfg.WriteQueue.FlushInterval > 0 {
		wq.FlushInterval = cfg.WriteQueue.FlushInterval
	}
	return wq
}

// applyQueuedEntry replays a durable write-queue entry against the
// document store once it becomes reachable again.
func applyQueuedEntry(db dbservice.Service) writequeue.Applier {
	return func(ctx context.Context, entry *writequeue.Entry) error {
		switch entry.Operation {
		case writequeue.OpCreate:
			_, err := db.Create(ctx, entry.Collection, entry.Payload)
			return err
		case writequeue.OpUpdate:
			return db.Update(ctx, entry.Collection, entry.DocumentID, entry.Payload)
		case writequeue.OpDelete:
			return db.Delete(ctx, entry.Collection, entry.DocumentID)
		default:
			return fmt.Errorf("write queue: unknown operation %q", entry.Operation)
		}
	}
}

// pollDBReadiness keeps the write-queue's readiness snapshot in sync with
// the document store's reachability without the queue ever calling back
// into the pool or health supervisor directly.
func pollDBReadiness(ctx context.Context, db dbservice.Service, readiness *writequeue.ReadinessSnapshot, logger *slog.Logger) {
	ticker := time.NewTicker(dbReadinessPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := db.Health(checkCtx)
			cancel()
			ready := err == nil
			if ready != readiness.IsReady() {
				logger.Info("document store readiness changed", "ready", ready)
			}
			readiness.Set(ready)
		}
	}
}

func healthCheckers(db dbservice.Service, readiness *writequeue.ReadinessSnapshot) []health.Checker {
	return []health.Checker{
		health.NewCheckerFunc("document_store", func(ctx context.Context) error {
			return db.Health(ctx)
		}),
		health.NewCheckerFunc("write_queue", func(ctx context.Context) error {
			if !readiness.IsReady() {
				return fmt.Errorf("write queue: document store unreachable")
			}
			return nil
		}),
	}
}

func metricsHandler(cfg *config.Config) http.Handler {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.NewHTTPMetrics().Handler()
}

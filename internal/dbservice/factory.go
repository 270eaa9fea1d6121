package dbservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avolkov/docgraph/internal/config"
	"github.com/avolkov/docgraph/internal/pool"
	"github.com/avolkov/docgraph/pkg/metrics"
)

// New selects and connects a Service backend according to cfg.Profile.
// The returned Service has already had Connect called successfully.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *metrics.Registry) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var svc Service
	switch cfg.Profile {
	case config.ProfileMock:
		logger.Info("initializing mock document store", "profile", cfg.Profile)
		svc = NewMockService(FailureInjection{})

	case config.ProfileSQLite:
		logger.Info("initializing sqlite document store", "profile", cfg.Profile, "path", cfg.SQLite.Path)
		sqliteSvc, err := NewSQLiteService(cfg.SQLite.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to construct sqlite service: %w", err)
		}
		svc = sqliteSvc

	case config.ProfilePostgres:
		logger.Info("initializing postgres document store", "profile", cfg.Profile, "host", cfg.Database.Host)
		poolCfg := pool.Config{
			Host:              cfg.Database.Host,
			Port:              cfg.Database.Port,
			Database:          cfg.Database.Database,
			User:              cfg.Database.User,
			Password:          cfg.Database.Password,
			SSLMode:           cfg.Database.SSLMode,
			MaxConns:          cfg.Database.MaxConns,
			MinConns:          cfg.Database.MinConns,
			MaxConnLifetime:   cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
			ConnectTimeout:    cfg.Database.ConnectTimeout,
		}
		var dbm *metrics.DatabaseMetrics
		if reg != nil {
			dbm = reg.Database()
		}
		p := pool.New(poolCfg, logger, dbm)
		pgSvc := NewPostgresService(p)
		if cfg.Database.MinCompatVersion != "" {
			pgSvc.versionRange.MinCompatible = cfg.Database.MinCompatVersion
		}
		if cfg.Database.MaxCompatVersion != "" {
			pgSvc.versionRange.MaxCompatible = cfg.Database.MaxCompatVersion
		}
		svc = pgSvc

	default:
		return nil, fmt.Errorf("unknown document store profile %q", cfg.Profile)
	}

	if err := svc.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect %s document store: %w", cfg.Profile, err)
	}
	return svc, nil
}

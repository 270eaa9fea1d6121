package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avolkov/docgraph/internal/retry"
	"github.com/avolkov/docgraph/pkg/metrics"
)

// Conn is the surface the document-store adapter (internal/dbservice) needs
// from a pooled connection: execute statements, run queries, and open
// transactions for document writes that must be atomic with an outbox
// entry.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool is a pgxpool.Pool wrapper that retries the initial connect with
// exponential backoff and reports connection/query metrics. Exec, Query,
// QueryRow and Begin run each statement once; they do not retry.
type Pool struct {
	pool   *pgxpool.Pool
	config Config
	logger *slog.Logger
	dbm    *metrics.DatabaseMetrics

	isClosed atomic.Bool
}

// New creates a Pool. Connect must be called before use.
func New(config Config, logger *slog.Logger, dbm *metrics.DatabaseMetrics) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if dbm == nil {
		dbm = metrics.DefaultRegistry().Database()
	}
	return &Pool{config: config, logger: logger, dbm: dbm}
}

// Connect establishes the underlying pgxpool, retrying the dial itself
// with backoff since a cold-starting Postgres (e.g. during a rolling
// deploy) is a transient, not permanent, condition.
func (p *Pool) Connect(ctx context.Context) error {
	if p.isClosed.Load() {
		return ErrConnectionClosed
	}
	if err := p.config.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	poolConfig, err := pgxpool.ParseConfig(p.config.DSN())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	poolConfig.MaxConns = p.config.MaxConns
	poolConfig.MinConns = p.config.MinConns
	poolConfig.MaxConnLifetime = p.config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = p.config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = p.config.HealthCheckPeriod

	policy := retry.DefaultPolicy()
	policy.OperationName = "pool_connect"
	policy.Logger = p.logger
	policy.Metrics = retryMetricsOrNil()
	policy.Classifier = retry.AlwaysRetryable{}

	start := time.Now()
	var connected *pgxpool.Pool
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		connectCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
		defer cancel()

		np, dialErr := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if dialErr != nil {
			return dialErr
		}
		if pingErr := np.Ping(connectCtx); pingErr != nil {
			np.Close()
			return pingErr
		}
		connected = np
		return nil
	})
	if err != nil {
		p.dbm.ErrorsTotal.WithLabelValues("connect").Inc()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	p.pool = connected
	p.dbm.ConnectionsTotal.Inc()
	p.dbm.ConnectionWaitDurationSeconds.Observe(time.Since(start).Seconds())
	p.logger.Info("connected to postgres pool", "host", p.config.Host, "database", p.config.Database,
		"max_conns", p.config.MaxConns, "min_conns", p.config.MinConns)
	return nil
}

// Close closes the underlying pool. Idempotent.
func (p *Pool) Close() error {
	if p.pool == nil || p.isClosed.Swap(true) {
		return nil
	}
	p.pool.Close()
	p.logger.Info("postgres pool closed")
	return nil
}

// IsConnected reports whether the pool was connected and has not been closed.
func (p *Pool) IsConnected() bool {
	return !p.isClosed.Load() && p.pool != nil
}

// Pool exposes the underlying pgxpool.Pool for ping-based health checks and
// migration runners that need a *sql.DB-style handle.
func (p *Pool) Pool() *pgxpool.Pool {
	return p.pool
}

// Stats snapshots pgxpool's own counters into the metrics gauges.
func (p *Pool) Stats() *pgxpool.Stat {
	if p.pool == nil {
		return nil
	}
	stat := p.pool.Stat()
	p.dbm.ConnectionsActive.Set(float64(stat.AcquiredConns()))
	p.dbm.ConnectionsIdle.Set(float64(stat.IdleConns()))
	return stat
}

// Exec runs a statement that returns no rows, recording query metrics
// labeled by a caller-supplied logical operation name (never the raw SQL,
// to keep cardinality bounded).
func (p *Pool) Exec(ctx context.Context, operation, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if p.pool == nil {
		return pgconn.CommandTag{}, ErrNotConnected
	}
	start := time.Now()
	tag, err := p.pool.Exec(ctx, sql, args...)
	p.recordQuery(operation, start, err)
	return tag, err
}

// Query runs a statement returning rows.
func (p *Pool) Query(ctx context.Context, operation, sql string, args ...interface{}) (pgx.Rows, error) {
	if p.pool == nil {
		return nil, ErrNotConnected
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, sql, args...)
	p.recordQuery(operation, start, err)
	return rows, err
}

// QueryRow runs a statement expected to return at most one row.
func (p *Pool) QueryRow(ctx context.Context, operation, sql string, args ...interface{}) pgx.Row {
	if p.pool == nil {
		return errRow{err: ErrNotConnected}
	}
	start := time.Now()
	row := p.pool.QueryRow(ctx, sql, args...)
	p.recordQuery(operation, start, nil)
	return row
}

// Begin opens a transaction, used by dbservice when a document write and
// its outbox/write-queue bookkeeping must commit atomically.
func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.pool == nil {
		return nil, ErrNotConnected
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		p.dbm.ErrorsTotal.WithLabelValues("begin_tx").Inc()
	}
	return tx, err
}

func (p *Pool) recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	p.dbm.QueryDurationSeconds.WithLabelValues(operation).Observe(duration)
	status := "ok"
	if err != nil {
		status = "error"
		p.dbm.ErrorsTotal.WithLabelValues(operation).Inc()
	}
	p.dbm.QueriesTotal.WithLabelValues(operation, status).Inc()
}

// retryMetricsOrNil returns the process-wide RetryMetrics singleton for the
// connect retry policy; it never returns nil.
func retryMetricsOrNil() *metrics.RetryMetrics {
	return metrics.NewRetryMetrics()
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...interface{}) error { return r.err }

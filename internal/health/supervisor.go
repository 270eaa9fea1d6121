package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avolkov/docgraph/pkg/metrics"
)

// Snapshot is an immutable view of every dependency's last-known status,
// served to readiness probes and the GraphQL health field without
// re-checking dependencies on every request.
type Snapshot struct {
	Overall      Status
	Dependencies map[string]DependencyResult
	GeneratedAt  time.Time
}

// IsReady reports whether every dependency is up.
func (s Snapshot) IsReady() bool {
	return s.Overall == StatusUp
}

// Supervisor runs a set of Checkers on a fixed interval and serves the
// aggregated result from a cached Snapshot. A request arriving after the
// cache has gone stale (older than StaleAfter but younger than MaxStale)
// still gets the cached snapshot immediately while a refresh is kicked off
// in the background — stale-while-revalidate — so a slow dependency check
// never blocks the request path.
type Supervisor struct {
	checkers    []Checker
	interval    time.Duration
	staleAfter  time.Duration
	maxStale    time.Duration
	checkTimeout time.Duration
	logger      *slog.Logger
	hm          *metrics.HealthMetrics

	mu           sync.RWMutex
	snapshot     Snapshot
	refreshing   bool

	stopCh chan struct{}
}

// Config configures the supervisor's cadence.
type Config struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	MaxStale     time.Duration
	CheckTimeout time.Duration
}

// DefaultConfig returns the cadence used when none is configured.
func DefaultConfig() Config {
	return Config{
		Interval:     15 * time.Second,
		StaleAfter:   5 * time.Second,
		MaxStale:     30 * time.Second,
		CheckTimeout: 5 * time.Second,
	}
}

// NewSupervisor creates a Supervisor over the given checkers. Checkers are
// typically wrapped in a CircuitBreaker by the caller before being passed
// in, so a persistently down dependency doesn't get hammered every tick.
func NewSupervisor(checkers []Checker, cfg Config, logger *slog.Logger, hm *metrics.HealthMetrics) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if hm == nil {
		hm = metrics.DefaultRegistry().Health()
	}
	if cfg.Interval == 0 {
		cfg = DefaultConfig()
	}
	s := &Supervisor{
		checkers:     checkers,
		interval:     cfg.Interval,
		staleAfter:   cfg.StaleAfter,
		maxStale:     cfg.MaxStale,
		checkTimeout: cfg.CheckTimeout,
		logger:       logger,
		hm:           hm,
		stopCh:       make(chan struct{}),
	}
	return s
}

// Start runs an initial check synchronously (so the first Snapshot is
// populated before Start returns) and then refreshes on Interval until ctx
// is cancelled or Stop is called.
func (s *Supervisor) Start(ctx context.Context) {
	s.refresh(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.refresh(ctx)
			}
		}
	}()
}

// Stop halts the background refresh loop.
func (s *Supervisor) Stop() {
	close(s.stopCh)
}

// Snapshot returns the most recently computed Snapshot. If it is older
// than StaleAfter but younger than MaxStale, a background refresh is
// kicked off and the stale snapshot is returned immediately. If it is
// older than MaxStale, the caller blocks for a fresh check.
func (s *Supervisor) Snapshot(ctx context.Context) Snapshot {
	s.mu.RLock()
	snap := s.snapshot
	age := time.Since(snap.GeneratedAt)
	s.mu.RUnlock()

	if snap.GeneratedAt.IsZero() || age > s.maxStale {
		s.refresh(ctx)
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.snapshot
	}

	if age > s.staleAfter {
		s.triggerBackgroundRefresh()
	}
	return snap
}

func (s *Supervisor) triggerBackgroundRefresh() {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.refreshing = false
			s.mu.Unlock()
		}()
		s.refresh(context.Background())
	}()
}

func (s *Supervisor) refresh(ctx context.Context) {
	results := make(map[string]DependencyResult, len(s.checkers))
	overall := StatusUp

	for _, checker := range s.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
		start := time.Now()
		err := checker.Check(checkCtx)
		duration := time.Since(start)
		cancel()

		status := StatusUp
		outcome := "success"
		if err != nil {
			status = StatusDown
			overall = StatusDown
			outcome = "failure"
			s.logger.Warn("dependency health check failed", "dependency", checker.Name(), "error", err)
		}

		results[checker.Name()] = DependencyResult{
			Name: checker.Name(), Status: status, Err: err, CheckedAt: time.Now(), Duration: duration,
		}

		s.hm.ChecksTotal.WithLabelValues(checker.Name(), outcome).Inc()
		s.hm.CheckDurationSecs.WithLabelValues(checker.Name()).Observe(duration.Seconds())
		up := 0.0
		if status == StatusUp {
			up = 1.0
		}
		s.hm.DependencyUp.WithLabelValues(checker.Name()).Set(up)
	}

	snap := Snapshot{Overall: overall, Dependencies: results, GeneratedAt: time.Now()}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.hm.SnapshotAgeSecs.Set(0)
}

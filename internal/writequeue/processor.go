package writequeue

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Applier applies a queued entry against the document store. Returning a
// non-nil error causes the entry to be rescheduled (or dead-lettered)
// rather than completed.
type Applier func(ctx context.Context, entry *Entry) error

// ReadinessSnapshot is a one-directional view of whether the database
// dependency is currently connected. The processor reads this atomic
// snapshot rather than calling back into the pool directly, so the
// dependency graph between writequeue and pool/health stays acyclic
// (pool and health never learn about the queue).
type ReadinessSnapshot struct {
	ready atomic.Bool
}

// Set updates the snapshot. Called by whatever owns the authoritative
// connectivity state (the health supervisor or the pool itself).
func (r *ReadinessSnapshot) Set(ready bool) { r.ready.Store(ready) }

// IsReady reports the last-set readiness value.
func (r *ReadinessSnapshot) IsReady() bool { return r.ready.Load() }

// Processor polls the queue for ready entries and applies them while the
// database dependency is reachable, backing off entirely (rather than
// busy-polling failures) when it is not.
type Processor struct {
	queue      *Queue
	readiness  *ReadinessSnapshot
	apply      Applier
	pollEvery  time.Duration
	logger     *slog.Logger
}

// NewProcessor constructs a Processor. pollEvery controls how often the
// processor checks for newly-ready entries when the queue is non-empty;
// a few hundred milliseconds is typical.
func NewProcessor(queue *Queue, readiness *ReadinessSnapshot, apply Applier, pollEvery time.Duration, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if pollEvery <= 0 {
		pollEvery = 250 * time.Millisecond
	}
	return &Processor{queue: queue, readiness: readiness, apply: apply, pollEvery: pollEvery, logger: logger}
}

// Run processes ready entries until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drainReady(ctx)
		}
	}
}

// drainReady applies every currently-ready entry in one pass, stopping
// early if the dependency goes unready mid-drain.
func (p *Processor) drainReady(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !p.readiness.IsReady() {
			return
		}

		entry, ok := p.queue.NextReady(time.Now())
		if !ok {
			return
		}

		err := p.apply(ctx, entry)
		if err == nil {
			if completeErr := p.queue.Complete(entry.ID); completeErr != nil && completeErr != ErrNotFound {
				p.logger.Error("failed to complete write-queue entry", "id", entry.ID, "error", completeErr)
			}
			continue
		}

		outcome, failErr := p.queue.Fail(entry.ID, err)
		if failErr != nil && failErr != ErrNotFound {
			p.logger.Error("failed to record write-queue failure", "id", entry.ID, "error", failErr)
			continue
		}
		if outcome == PermanentFailure {
			p.logger.Error("write-queue entry dead-lettered after exhausting retries",
				"id", entry.ID, "collection", entry.Collection, "operation", entry.Operation, "cause", err)
		} else {
			p.logger.Warn("write-queue entry failed, rescheduled", "id", entry.ID, "cause", err)
		}
	}
}

// Package writequeue implements the durable write-queue (C7): a bounded
// FIFO of pending mutations that buffers writes during a database outage
// and replays them once the connection pool recovers. Entries persist to
// a JSON snapshot via temp-file-then-rename so a crash never loses a
// partially-written file.
package writequeue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/docgraph/pkg/metrics"
)

// Operation is the mutation kind a queued write applies.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue is at MaxSize.
	ErrQueueFull = errors.New("writequeue: queue is full")
	// ErrNotFound is returned by Complete/Fail when id is unknown (already
	// completed, dead-lettered, or never enqueued).
	ErrNotFound = errors.New("writequeue: entry not found")
)

// Entry is a single pending write. Owned by the queue; callers only see a
// copy returned from NextReady.
type Entry struct {
	ID            string          `json:"id"`
	Collection    string          `json:"collection"`
	Operation     Operation       `json:"operation"`
	DocumentID    string          `json:"document_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	AttemptCount  int             `json:"attempt_count"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	LastError     string          `json:"last_error,omitempty"`
}

func (e *Entry) clone() *Entry {
	cp := *e
	cp.Payload = append(json.RawMessage(nil), e.Payload...)
	return &cp
}

// Config controls queue sizing, retry policy, and persistence.
type Config struct {
	SnapshotPath   string
	DeadLetterPath string
	MaxSize        int
	MaxAttempts    int
	FlushInterval  time.Duration
}

// DefaultConfig returns the spec-default sizing: max 1000 entries, 8
// attempts before dead-lettering, a 1s snapshot flush interval.
func DefaultConfig() Config {
	return Config{
		SnapshotPath:   "./data/write_queue.json",
		DeadLetterPath: "./data/write_queue.deadletter.json",
		MaxSize:        1000,
		MaxAttempts:    8,
		FlushInterval:  time.Second,
	}
}

// Queue is a bounded, durable FIFO of pending writes. Safe for concurrent
// use by one processor goroutine and any number of producers.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry
	cfg     Config
	logger  *slog.Logger
	wqm     *metrics.WriteQueueMetrics

	dirty bool
}

// New constructs a Queue. Load must be called separately to recover a
// prior snapshot.
func New(cfg Config, logger *slog.Logger, wqm *metrics.WriteQueueMetrics) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if wqm == nil {
		wqm = metrics.DefaultRegistry().WriteQueue()
	}
	return &Queue{cfg: cfg, logger: logger, wqm: wqm}
}

// Enqueue appends a new entry, generating its id as a time-sortable
// UUIDv7-based string. Returns ErrQueueFull once the queue holds MaxSize
// entries.
func (q *Queue) Enqueue(collection string, op Operation, documentID string, payload json.RawMessage) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.cfg.MaxSize {
		return "", ErrQueueFull
	}

	now := time.Now().UTC()
	entry := &Entry{
		ID:            fmt.Sprintf("wq_%s", uuid.Must(uuid.NewV7()).String()),
		Collection:    collection,
		Operation:     op,
		DocumentID:    documentID,
		Payload:       append(json.RawMessage(nil), payload...),
		EnqueuedAt:    now,
		NextAttemptAt: now,
	}
	q.entries = append(q.entries, entry)
	q.dirty = true
	q.wqm.EnqueuedTotal.Inc()
	q.wqm.Depth.Set(float64(len(q.entries)))
	return entry.ID, nil
}

// NextReady returns the earliest entry whose NextAttemptAt has elapsed,
// FIFO within an attempt_count tier and ordered by NextAttemptAt across
// tiers. Returns (nil, false) if nothing is ready.
func (q *Queue) NextReady(now time.Time) (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best *Entry
	for _, e := range q.entries {
		if e.NextAttemptAt.After(now) {
			continue
		}
		if best == nil ||
			e.NextAttemptAt.Before(best.NextAttemptAt) ||
			(e.NextAttemptAt.Equal(best.NextAttemptAt) && e.EnqueuedAt.Before(best.EnqueuedAt)) {
			best = e
		}
	}
	if best == nil {
		return nil, false
	}
	return best.clone(), true
}

// Complete removes a successfully-applied entry from the queue.
func (q *Queue) Complete(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.dirty = true
			q.wqm.Depth.Set(float64(len(q.entries)))
			q.wqm.RepliedTotal.WithLabelValues("success").Inc()
			return nil
		}
	}
	return ErrNotFound
}

// FailOutcome reports whether a failed entry was rescheduled or moved to
// the dead-letter sink.
type FailOutcome int

const (
	RetryScheduled FailOutcome = iota
	PermanentFailure
)

// Fail records a failed replay attempt. attempt_count increments; once it
// exceeds MaxAttempts the entry is dead-lettered, otherwise its
// next_attempt_at is rescheduled per the exponential formula
// min(2^min(attempt_count,6), 60s).
func (q *Queue) Fail(id string, cause error) (FailOutcome, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.ID != id {
			continue
		}
		e.AttemptCount++
		if cause != nil {
			e.LastError = cause.Error()
		}

		if e.AttemptCount > q.cfg.MaxAttempts {
			dead := e.clone()
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.dirty = true
			q.wqm.Depth.Set(float64(len(q.entries)))
			q.wqm.DeadLetteredTotal.Inc()
			q.wqm.RetryAttemptsTotal.WithLabelValues("permanent_failure").Inc()
			if err := q.appendDeadLetter(dead); err != nil {
				q.logger.Error("failed to persist dead-lettered entry", "id", id, "error", err)
			}
			return PermanentFailure, nil
		}

		e.NextAttemptAt = time.Now().UTC().Add(backoffFor(e.AttemptCount))
		q.dirty = true
		q.wqm.RetryAttemptsTotal.WithLabelValues("retry_scheduled").Inc()
		return RetryScheduled, nil
	}
	return 0, ErrNotFound
}

// Depth returns the current number of buffered entries.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// backoffFor implements next_attempt delay = min(2^min(attempt,6), 60s).
func backoffFor(attemptCount int) time.Duration {
	capped := attemptCount
	if capped > 6 {
		capped = 6
	}
	delay := time.Duration(1<<uint(capped)) * time.Second
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

func (q *Queue) appendDeadLetter(entry *Entry) error {
	if q.cfg.DeadLetterPath == "" {
		return nil
	}
	if dir := filepath.Dir(q.cfg.DeadLetterPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(q.cfg.DeadLetterPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	return enc.Encode(entry)
}

// Persist atomically snapshots the current queue contents to
// cfg.SnapshotPath via a temp file in the same directory followed by
// rename, so a crash mid-write never corrupts the prior snapshot.
func (q *Queue) Persist() error {
	q.mu.Lock()
	if !q.dirty {
		q.mu.Unlock()
		return nil
	}
	snapshot := make([]*Entry, len(q.entries))
	copy(snapshot, q.entries)
	q.mu.Unlock()

	start := time.Now()
	defer func() { q.wqm.PersistDurationSecs.Observe(time.Since(start).Seconds()) }()

	dir := filepath.Dir(q.cfg.SnapshotPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("writequeue: failed to create snapshot directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".write_queue-*.tmp")
	if err != nil {
		return fmt.Errorf("writequeue: failed to create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(snapshot); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writequeue: failed to encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writequeue: failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writequeue: failed to close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, q.cfg.SnapshotPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writequeue: failed to rename snapshot into place: %w", err)
	}

	q.mu.Lock()
	q.dirty = false
	q.mu.Unlock()
	return nil
}

// Load reconstructs the queue from a prior snapshot. A missing snapshot
// file is not an error — the queue simply starts empty. next_attempt_at
// timers are implicitly "rescheduled" because NextReady compares against
// wall-clock time rather than relying on in-process timers.
func (q *Queue) Load() error {
	data, err := os.ReadFile(q.cfg.SnapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("writequeue: failed to read snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("writequeue: failed to decode snapshot: %w", err)
	}

	q.mu.Lock()
	q.entries = entries
	q.dirty = false
	q.wqm.Depth.Set(float64(len(q.entries)))
	q.mu.Unlock()

	q.logger.Info("write queue snapshot loaded", "entries", len(entries), "path", q.cfg.SnapshotPath)
	return nil
}

// Run starts the background persist loop, flushing dirty state every
// FlushInterval until ctx is done, then performs one final blocking
// persist (graceful shutdown must not lose buffered writes).
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := q.Persist(); err != nil {
				q.logger.Error("failed to persist write queue on shutdown", "error", err)
			}
			return
		case <-ticker.C:
			if err := q.Persist(); err != nil {
				q.logger.Error("failed to persist write queue", "error", err)
			}
		}
	}
}

// Package health tracks consecutive storage failures and demotes the engine to
// the legacy backend once a threshold is reached.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/flags"
)

const DefaultThreshold = 3

// MetaStore persists health records. Writes are best effort.
type MetaStore interface {
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
}

// FallbackRecorder is notified when the monitor demotes the backend.
type FallbackRecorder interface {
	LogFallback(failures int, lastErr error)
}

type Option func(*Monitor)

func WithThreshold(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.threshold = n
		}
	}
}

func WithRecorder(r FallbackRecorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

type Snapshot struct {
	Backend      flags.Backend             `json:"backend"`
	Failures     int                       `json:"failures"`
	Threshold    int                       `json:"threshold"`
	LastSuccess  *entities.OperationRecord `json:"last_success,omitempty"`
	LastFailure  *entities.OperationRecord `json:"last_failure,omitempty"`
	LastDualRead *entities.DualReadResult  `json:"last_dual_read,omitempty"`
}

type Monitor struct {
	mu        sync.Mutex
	meta      MetaStore
	flags     flags.Store
	recorder  FallbackRecorder
	threshold int
	now       func() time.Time
	logger    *zap.SugaredLogger

	failures     int
	lastSuccess  *entities.OperationRecord
	lastFailure  *entities.OperationRecord
	lastDualRead *entities.DualReadResult
}

// NewMonitor seeds the in-memory counters from the persisted health records.
func NewMonitor(ctx context.Context, meta MetaStore, flagStore flags.Store, opts ...Option) *Monitor {
	m := &Monitor{
		meta:      meta,
		flags:     flagStore,
		threshold: DefaultThreshold,
		now:       time.Now,
		logger:    zap.S().Named("health"),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.load(ctx, entities.MetaKeyHealthFailures, &m.failures)
	var rec entities.OperationRecord
	if m.load(ctx, entities.MetaKeyHealthLastSuccess, &rec) {
		m.lastSuccess = &rec
	}
	var failed entities.OperationRecord
	if m.load(ctx, entities.MetaKeyHealthLastFailure, &failed) {
		m.lastFailure = &failed
	}
	var dual entities.DualReadResult
	if m.load(ctx, entities.MetaKeyHealthDualRead, &dual) {
		m.lastDualRead = &dual
	}
	return m
}

// MarkSuccess resets the failure counter and records the operation duration.
func (m *Monitor) MarkSuccess(ctx context.Context, op string, startedAt time.Time) {
	now := m.now().UTC()
	rec := entities.OperationRecord{
		Operation:  op,
		At:         now,
		Success:    true,
		DurationMS: now.Sub(startedAt).Milliseconds(),
	}

	m.mu.Lock()
	reset := m.failures != 0
	m.failures = 0
	m.lastSuccess = &rec
	m.mu.Unlock()

	if reset {
		m.save(ctx, entities.MetaKeyHealthFailures, 0)
	}
	m.save(ctx, entities.MetaKeyHealthLastSuccess, rec)
}

// MarkFailure increments the failure counter. Once it reaches the threshold the
// backend is switched to legacy; it reports whether that happened on this call.
// Falling back does not reset the counter.
func (m *Monitor) MarkFailure(ctx context.Context, op string, err error) bool {
	rec := entities.OperationRecord{Operation: op, At: m.now().UTC()}
	if err != nil {
		rec.Error = err.Error()
	}

	m.mu.Lock()
	m.failures++
	failures := m.failures
	rec.Failures = failures
	m.lastFailure = &rec
	m.mu.Unlock()

	m.logger.Warnw("Storage operation failed", "operation", op, "failures", failures, "error", err)
	m.save(ctx, entities.MetaKeyHealthFailures, failures)
	m.save(ctx, entities.MetaKeyHealthLastFailure, rec)

	if failures < m.threshold || m.flags.Backend(ctx) == flags.BackendLegacy {
		return false
	}
	if setErr := m.flags.SetBackend(ctx, flags.BackendLegacy); setErr != nil {
		m.logger.Errorw("Failed to switch to legacy backend", "error", setErr)
		return false
	}
	m.logger.Warnw("Auto-fallback to legacy backend", "failures", failures, "threshold", m.threshold)
	if m.recorder != nil {
		m.recorder.LogFallback(failures, err)
	}
	return true
}

// DualReadCheck compares the id sets produced by both backends. It only logs;
// a mismatch never fails the caller.
func (m *Monitor) DualReadCheck(ctx context.Context, currentIDs, legacyIDs []string, label string) entities.DualReadResult {
	result := entities.DualReadResult{
		At:               m.now().UTC(),
		Context:          label,
		CurrentCount:     len(currentIDs),
		LegacyCount:      len(legacyIDs),
		MissingInCurrent: difference(legacyIDs, currentIDs),
		MissingInLegacy:  difference(currentIDs, legacyIDs),
	}
	result.Match = len(result.MissingInCurrent) == 0 && len(result.MissingInLegacy) == 0

	if result.Match {
		m.logger.Debugw("Dual-read match", "context", label, "count", len(currentIDs))
	} else {
		m.logger.Warnw("Dual-read mismatch",
			"context", label,
			"current_count", result.CurrentCount,
			"legacy_count", result.LegacyCount,
			"missing_in_current", result.MissingInCurrent,
			"missing_in_legacy", result.MissingInLegacy,
		)
	}

	m.mu.Lock()
	m.lastDualRead = &result
	m.mu.Unlock()
	m.save(ctx, entities.MetaKeyHealthDualRead, result)
	return result
}

func (m *Monitor) Snapshot(ctx context.Context) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Backend:      m.flags.Backend(ctx),
		Failures:     m.failures,
		Threshold:    m.threshold,
		LastSuccess:  m.lastSuccess,
		LastFailure:  m.lastFailure,
		LastDualRead: m.lastDualRead,
	}
}

func (m *Monitor) load(ctx context.Context, key string, v any) bool {
	found, err := m.meta.Load(ctx, key, v)
	if err != nil {
		m.logger.Warnw("Failed to load health record", "key", key, "error", err)
		return false
	}
	return found
}

func (m *Monitor) save(ctx context.Context, key string, v any) {
	if err := m.meta.Save(ctx, key, v); err != nil {
		m.logger.Debugw("Failed to persist health record", "key", key, "error", err)
	}
}

// difference returns the sorted ids in a that are absent from b.
func difference(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

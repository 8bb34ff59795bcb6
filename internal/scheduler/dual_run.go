package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// ErrDualRunDisabled is returned by RunNow while the dual-run flag is off.
var ErrDualRunDisabled = errors.New("dual-run is disabled")

const checkTimeout = time.Minute

// DualReader compares the current and legacy backends.
type DualReader interface {
	VerifyDualRead(ctx context.Context, label string) (entities.DualReadResult, error)
}

// DualRunFlag reports whether dual-run diagnostics are enabled.
type DualRunFlag interface {
	DualRun(ctx context.Context) bool
}

// Recorder persists check outcomes.
type Recorder interface {
	LogDualRead(result entities.DualReadResult)
}

// DualRunVerifier periodically compares both backends while dual-run is on.
// The job stays scheduled when the flag is off and skips each tick, so
// toggling the flag at runtime needs no reschedule.
type DualRunVerifier struct {
	reader   DualReader
	flag     DualRunFlag
	recorder Recorder
	schedule string

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
	logger     *zap.SugaredLogger
}

// NewDualRunVerifier creates a verifier. recorder may be nil.
func NewDualRunVerifier(reader DualReader, flag DualRunFlag, recorder Recorder, schedule string) *DualRunVerifier {
	return &DualRunVerifier{
		reader:   reader,
		flag:     flag,
		recorder: recorder,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(parser)),
		logger:   zap.S().Named("scheduler"),
	}
}

// Start schedules the verification job. An empty schedule disables it.
func (s *DualRunVerifier) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if s.schedule == "" {
		s.logger.Info("Dual-run verifier disabled, no schedule configured")
		return nil
	}
	if err := ValidateCronSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		_, _ = s.check(context.Background(), "scheduled")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule dual-run check: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	next, _ := NextRunTime(s.schedule, time.Now())
	s.logger.Infow("Dual-run verifier started",
		"schedule", s.schedule, "description", CronDescription(s.schedule), "next_run", next)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running check to complete.
func (s *DualRunVerifier) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)

	s.isRunning = false
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	s.logger.Info("Dual-run verifier stopped")
}

// RunNow performs a check immediately and returns its result.
func (s *DualRunVerifier) RunNow(ctx context.Context) (entities.DualReadResult, error) {
	return s.check(ctx, "manual")
}

func (s *DualRunVerifier) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next check fires, or nil when stopped.
func (s *DualRunVerifier) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *DualRunVerifier) check(ctx context.Context, label string) (entities.DualReadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if !s.flag.DualRun(ctx) {
		s.logger.Debugw("Dual-run check skipped, flag is off", "label", label)
		return entities.DualReadResult{}, ErrDualRunDisabled
	}

	result, err := s.reader.VerifyDualRead(ctx, label)
	if err != nil {
		s.logger.Errorw("Dual-run check failed", "label", label, "error", err)
		return entities.DualReadResult{}, err
	}

	if result.Match {
		s.logger.Infow("Dual-run check passed", "label", label, "books", result.CurrentCount)
	} else {
		s.logger.Warnw("Dual-run check found differences", "label", label,
			"current", result.CurrentCount, "legacy", result.LegacyCount,
			"missing_in_current", result.MissingInCurrent, "missing_in_legacy", result.MissingInLegacy)
	}
	if s.recorder != nil {
		s.recorder.LogDualRead(result)
	}
	return result, nil
}

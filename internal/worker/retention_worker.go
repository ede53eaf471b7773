package worker

import (
	"context"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/domain"
)

// SettingsLoader returns the current settings document.
type SettingsLoader interface {
	Load(ctx context.Context) (*domain.Settings, error)
}

// Sweeper runs one retention pass.
type Sweeper interface {
	Sweep(ctx context.Context, settings domain.RetentionSettings) (domain.SweepResult, error)
}

// RetentionWorker runs the retention sweep on a cron schedule. Settings are
// read at every tick, so toggling auto cleanup needs no restart.
type RetentionWorker struct {
	cron     string
	settings SettingsLoader
	sweeper  Sweeper
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

// NewRetentionWorker validates expr and builds the worker.
func NewRetentionWorker(expr string, settings SettingsLoader, sweeper Sweeper, logger *zap.Logger) (*RetentionWorker, error) {
	if !gronx.New().IsValid(expr) {
		return nil, &InvalidCronError{Expr: expr}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionWorker{cron: expr, settings: settings, sweeper: sweeper, logger: logger, now: time.Now}, nil
}

// InvalidCronError reports an unparsable schedule.
type InvalidCronError struct {
	Expr string
}

func (e *InvalidCronError) Error() string {
	return "invalid retention cron expression: " + e.Expr
}

// Start launches the schedule loop and returns a function that stops it.
func (w *RetentionWorker) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	w.logger.Info("retention schedule started", zap.String("cron", w.cron))
	go w.scheduleLoop(ctx)
	return cancel
}

func (w *RetentionWorker) scheduleLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(w.cron, w.now(), false)
		if err != nil {
			w.logger.Error("retention next tick failed", zap.String("cron", w.cron), zap.Error(err))
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			w.RunOnce(ctx)
		case <-ctx.Done():
			w.logger.Info("retention schedule stopped")
			return
		}
	}
}

// RunOnce performs a single scheduled pass. It is a no-op unless retention is
// enabled with auto cleanup, and skips when a previous pass is still running.
// ran is false when the pass was skipped.
func (w *RetentionWorker) RunOnce(ctx context.Context) (result domain.SweepResult, ran bool) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return result, false
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	settings, err := w.settings.Load(ctx)
	if err != nil {
		w.logger.Error("retention settings load failed", zap.Error(err))
		return result, false
	}
	if !settings.Retention.Enabled || !settings.Retention.AutoCleanup {
		w.logger.Debug("retention sweep skipped", zap.Bool("enabled", settings.Retention.Enabled),
			zap.Bool("auto_cleanup", settings.Retention.AutoCleanup))
		return result, false
	}

	result, err = w.sweeper.Sweep(ctx, settings.Retention)
	if err != nil {
		w.logger.Error("retention sweep failed", zap.Error(err))
		return result, false
	}
	return result, true
}

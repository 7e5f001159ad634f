package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner invokes the rollover check at process start and then on a
// fixed interval.
type Runner struct {
	manager  *Manager
	interval time.Duration
	logger   *zap.Logger
}

func NewRunner(manager *Manager, interval time.Duration, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Runner{
		manager:  manager,
		interval: interval,
		logger:   logger,
	}
}

// Start blocks until ctx is cancelled. Run it in a goroutine.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Starting lifecycle runner",
		zap.Duration("interval", r.interval),
	)

	r.check(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Lifecycle runner stopped")
			return
		case <-ticker.C:
			r.check(ctx)
		}
	}
}

func (r *Runner) check(ctx context.Context) {
	performed, err := r.manager.CheckAndReset(ctx)
	if err != nil {
		// Worst case the period opens on the next tick; never fatal.
		r.logger.Error("Rollover check failed", zap.Error(err))
		return
	}
	if performed {
		r.logger.Info("Monthly rollover completed")
	}
}

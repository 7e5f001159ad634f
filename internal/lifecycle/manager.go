package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prodash/internal/model"
	"prodash/pkg/metrics"
)

// ProgressStore is the slice of the progress table the rollover needs.
type ProgressStore interface {
	FindByPeriod(ctx context.Context, month, year int) (*model.ProgressRecord, error)
	OpenPeriod(ctx context.Context, month, year int) error
}

// ArchiveStore appends rollover snapshots.
type ArchiveStore interface {
	InsertSnapshot(ctx context.Context, a model.MonthlyArchive) error
}

// TaskSource supplies the full task collection for the closing period's
// counters.
type TaskSource interface {
	FetchAll(ctx context.Context) ([]model.Task, error)
}

// Notifier receives the fire-and-forget monthly summary after a
// successful rollover. Failures are the notifier's problem, never the
// rollover's.
type Notifier interface {
	MonthlySummary(ctx context.Context, a model.MonthlyArchive)
}

// Manager drives the monthly period rollover: exactly one progress
// record exists for the current calendar month, and crossing a month
// boundary archives the previous period and opens a fresh one.
type Manager struct {
	progress ProgressStore
	archives ArchiveStore
	tasks    TaskSource
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(progress ProgressStore, archives ArchiveStore, tasks TaskSource, logger *zap.Logger) *Manager {
	return &Manager{
		progress: progress,
		archives: archives,
		tasks:    tasks,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNotifier attaches the monthly summary notifier.
func (m *Manager) WithNotifier(n Notifier) *Manager {
	m.notifier = n
	return m
}

// WithClock overrides the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CheckAndReset performs the rollover if the current period has no
// progress record yet. It is idempotent: repeated invocations within the
// same period are no-ops, and re-entry after a partial failure resumes
// where the previous attempt stopped (both inserts are keyed on
// (month, year), so nothing duplicates).
//
// Returns true when a reset was performed.
func (m *Manager) CheckAndReset(ctx context.Context) (bool, error) {
	now := m.now()
	month, year := int(now.Month()), now.Year()

	current, err := m.progress.FindByPeriod(ctx, month, year)
	if err != nil {
		metrics.IncrementRollover("failed")
		return false, err
	}
	if current != nil {
		m.logger.Debug("Current period already open, no reset needed",
			zap.Int("month", month),
			zap.Int("year", year),
		)
		metrics.IncrementRollover("noop")
		return false, nil
	}

	prevMonth, prevYear := model.PreviousPeriod(month, year)
	m.logger.Info("Period boundary crossed, rolling over",
		zap.Int("from_month", prevMonth),
		zap.Int("from_year", prevYear),
		zap.Int("to_month", month),
		zap.Int("to_year", year),
	)

	previous, err := m.progress.FindByPeriod(ctx, prevMonth, prevYear)
	if err != nil {
		metrics.IncrementRollover("failed")
		return false, err
	}

	tasks, err := m.tasks.FetchAll(ctx)
	if err != nil {
		metrics.IncrementRollover("failed")
		return false, err
	}
	tasksCount := len(tasks)
	completedCount := 0
	for _, t := range tasks {
		if t.Completed {
			completedCount++
		}
	}

	archive := model.MonthlyArchive{
		Month:               prevMonth,
		Year:                prevYear,
		TasksCount:          tasksCount,
		CompletedTasksCount: completedCount,
	}
	if previous != nil {
		archive.FinalPercentage = previous.TotalPercentage
		archive.Amount = previous.AmountGenerated
	}
	if err := m.archives.InsertSnapshot(ctx, archive); err != nil {
		// Not transactional: a failure here, or between here and
		// OpenPeriod, is repaired by the next invocation.
		metrics.IncrementRollover("failed")
		return false, err
	}

	if err := m.progress.OpenPeriod(ctx, month, year); err != nil {
		metrics.IncrementRollover("failed")
		return false, err
	}

	m.logger.Info("Rollover performed",
		zap.Int("archived_month", prevMonth),
		zap.Int("archived_year", prevYear),
		zap.Float64("final_percentage", archive.FinalPercentage),
		zap.Float64("amount", archive.Amount),
		zap.Int("tasks_count", tasksCount),
		zap.Int("completed_tasks_count", completedCount),
	)
	metrics.IncrementRollover("performed")

	if m.notifier != nil {
		m.notifier.MonthlySummary(ctx, archive)
	}
	return true, nil
}

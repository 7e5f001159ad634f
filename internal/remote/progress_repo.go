package remote

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"prodash/internal/model"
	"prodash/pkg/metrics"
)

type ProgressRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProgressRepository(db *pgxpool.Pool, logger *zap.Logger) *ProgressRepository {
	return &ProgressRepository{db: db, logger: logger}
}

// FindByPeriod returns the progress record for (month, year), or nil when
// none exists. A missing record is not an error, it means the period has
// not been opened yet.
func (r *ProgressRepository) FindByPeriod(ctx context.Context, month, year int) (*model.ProgressRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("find", "progress", time.Since(start)) }()

	query := `
        SELECT id, month, year, total_percentage, amount_generated, created_at, updated_at
        FROM progress
        WHERE month = $1 AND year = $2
    `
	var p model.ProgressRecord
	err := r.db.QueryRow(ctx, query, month, year).Scan(
		&p.ID,
		&p.Month,
		&p.Year,
		&p.TotalPercentage,
		&p.AmountGenerated,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to query progress record",
			zap.Error(err),
			zap.Int("month", month),
			zap.Int("year", year),
		)
		return nil, err
	}
	return &p, nil
}

// OpenPeriod inserts a zeroed progress record for (month, year). The
// unique constraint on (month, year) makes repeated calls a no-op, which
// is what keeps the rollover idempotent under re-entry.
func (r *ProgressRepository) OpenPeriod(ctx context.Context, month, year int) error {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("insert", "progress", time.Since(start)) }()

	query := `
        INSERT INTO progress (month, year, total_percentage, amount_generated)
        VALUES ($1, $2, 0, 0)
        ON CONFLICT (month, year) DO NOTHING
    `
	result, err := r.db.Exec(ctx, query, month, year)
	if err != nil {
		r.logger.Error("Failed to open progress period",
			zap.Error(err),
			zap.Int("month", month),
			zap.Int("year", year),
		)
		return err
	}
	r.logger.Info("Progress period opened",
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

// UpdateTotals rewrites the live aggregation values for the current
// period. Called on every observation, never incrementally.
func (r *ProgressRepository) UpdateTotals(ctx context.Context, month, year int, totalPercentage, amountGenerated float64) error {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("update", "progress", time.Since(start)) }()

	query := `
        UPDATE progress
        SET total_percentage = $3, amount_generated = $4, updated_at = NOW()
        WHERE month = $1 AND year = $2
    `
	result, err := r.db.Exec(ctx, query, month, year, totalPercentage, amountGenerated)
	if err != nil {
		r.logger.Error("Failed to update progress totals",
			zap.Error(err),
			zap.Int("month", month),
			zap.Int("year", year),
		)
		return err
	}
	r.logger.Debug("Progress totals updated",
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Float64("total_percentage", totalPercentage),
		zap.Float64("amount_generated", amountGenerated),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

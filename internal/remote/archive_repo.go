package remote

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"prodash/internal/model"
	"prodash/pkg/metrics"
)

type ArchiveRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewArchiveRepository(db *pgxpool.Pool, logger *zap.Logger) *ArchiveRepository {
	return &ArchiveRepository{db: db, logger: logger}
}

// InsertSnapshot appends the immutable rollover snapshot. Keyed on
// (month, year) so a rollover that is re-entered after a partial failure
// cannot write the same archive twice.
func (r *ArchiveRepository) InsertSnapshot(ctx context.Context, a model.MonthlyArchive) error {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("insert", "monthly_archives", time.Since(start)) }()

	query := `
        INSERT INTO monthly_archives (month, year, final_percentage, amount, tasks_count, completed_tasks_count)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (month, year) DO NOTHING
    `
	result, err := r.db.Exec(ctx, query,
		a.Month,
		a.Year,
		a.FinalPercentage,
		a.Amount,
		a.TasksCount,
		a.CompletedTasksCount,
	)
	if err != nil {
		r.logger.Error("Failed to insert monthly archive",
			zap.Error(err),
			zap.Int("month", a.Month),
			zap.Int("year", a.Year),
		)
		return err
	}
	r.logger.Info("Monthly archive inserted",
		zap.Int("month", a.Month),
		zap.Int("year", a.Year),
		zap.Float64("final_percentage", a.FinalPercentage),
		zap.Float64("amount", a.Amount),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

// List returns all archives, newest first, for historical display.
func (r *ArchiveRepository) List(ctx context.Context) ([]model.MonthlyArchive, error) {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("list", "monthly_archives", time.Since(start)) }()

	query := `
        SELECT id, month, year, final_percentage, amount, tasks_count, completed_tasks_count, created_at
        FROM monthly_archives
        ORDER BY year DESC, month DESC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query monthly archives", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	archives := []model.MonthlyArchive{}
	for rows.Next() {
		var a model.MonthlyArchive
		if err := rows.Scan(
			&a.ID,
			&a.Month,
			&a.Year,
			&a.FinalPercentage,
			&a.Amount,
			&a.TasksCount,
			&a.CompletedTasksCount,
			&a.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan archive row", zap.Error(err))
			return nil, err
		}
		archives = append(archives, a)
	}
	return archives, rows.Err()
}

package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"prodash/internal/model"
	"prodash/pkg/metrics"
)

type ProblemRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProblemRepository(db *pgxpool.Pool, logger *zap.Logger) *ProblemRepository {
	return &ProblemRepository{db: db, logger: logger}
}

func (r *ProblemRepository) Name() string { return "problems" }

var problemColumns = map[string]string{
	"title":    "title",
	"solved":   "solved",
	"solution": "solution",
}

func (r *ProblemRepository) List(ctx context.Context) ([]model.Problem, error) {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("list", "problems", time.Since(start)) }()

	query := `
        SELECT id, title, solved, solution, created_at
        FROM problems
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query problems", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(
			&p.ID,
			&p.Title,
			&p.Solved,
			&p.Solution,
			&p.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan problem row", zap.Error(err))
			return nil, err
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("Problems listed", zap.Int("count", len(problems)))
	return problems, nil
}

func (r *ProblemRepository) Insert(ctx context.Context, p model.Problem) (model.Problem, error) {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("insert", "problems", time.Since(start)) }()

	query := `
        INSERT INTO problems (title, solved, solution)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		p.Title,
		p.Solved,
		p.Solution,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert problem",
			zap.Error(err),
			zap.String("title", p.Title),
		)
		return model.Problem{}, err
	}
	r.logger.Info("Problem inserted",
		zap.String("problem_id", p.ID),
		zap.String("title", p.Title),
	)
	return p, nil
}

func (r *ProblemRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("update", "problems", time.Since(start)) }()

	setClause, args := buildSet(problemColumns, fields)
	if setClause == "" {
		r.logger.Debug("Problem update had no known fields", zap.String("problem_id", id))
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE problems SET %s WHERE id = $%d",
		setClause, len(args),
	)
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update problem",
			zap.Error(err),
			zap.String("problem_id", id),
		)
		return err
	}
	r.logger.Debug("Problem updated",
		zap.String("problem_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

func (r *ProblemRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("delete", "problems", time.Since(start)) }()

	result, err := r.db.Exec(ctx, `DELETE FROM problems WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete problem",
			zap.Error(err),
			zap.String("problem_id", id),
		)
		return err
	}
	r.logger.Info("Problem deleted",
		zap.String("problem_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

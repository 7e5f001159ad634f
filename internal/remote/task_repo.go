package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"prodash/internal/model"
	"prodash/pkg/metrics"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) Name() string { return "tasks" }

// taskColumns whitelists the fields a partial update may touch. Unknown
// keys in the patch are ignored, there is no schema validation layer.
var taskColumns = map[string]string{
	"title":        "title",
	"completed":    "completed",
	"percentage":   "percentage",
	"type":         "type",
	"folder_id":    "folder_id",
	"order_index":  "order_index",
	"event_id":     "event_id",
	"event_time":   "event_time",
	"archived":     "archived",
	"blocked":      "blocked",
	"block_reason": "block_reason",
	"attachments":  "attachments",
}

func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("list", "tasks", time.Since(start)) }()

	query := `
        SELECT id, title, completed, percentage, type, folder_id, order_index,
               event_id, event_time, archived, blocked, block_reason,
               attachments, created_at, updated_at
        FROM tasks
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		var rawAttachments []byte
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Completed,
			&t.Percentage,
			&t.Type,
			&t.FolderID,
			&t.OrderIndex,
			&t.EventID,
			&t.EventTime,
			&t.Archived,
			&t.Blocked,
			&t.BlockReason,
			&rawAttachments,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan task row", zap.Error(err))
			return nil, err
		}
		t.Attachments = model.DecodeAttachments(rawAttachments)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("Tasks listed", zap.Int("count", len(tasks)))
	return tasks, nil
}

func (r *TaskRepository) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("insert", "tasks", time.Since(start)) }()

	r.logger.Debug("Inserting task",
		zap.String("title", t.Title),
		zap.String("type", string(t.Type)),
	)
	query := `
        INSERT INTO tasks (title, completed, percentage, type, folder_id, order_index,
                           event_id, event_time, archived, blocked, block_reason, attachments)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.Title,
		t.Completed,
		t.Percentage,
		t.Type,
		t.FolderID,
		t.OrderIndex,
		t.EventID,
		t.EventTime,
		t.Archived,
		t.Blocked,
		t.BlockReason,
		model.EncodeAttachments(t.Attachments),
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.String("title", t.Title),
		)
		return model.Task{}, err
	}
	r.logger.Info("Task inserted",
		zap.String("task_id", t.ID),
		zap.String("title", t.Title),
	)
	return t, nil
}

func (r *TaskRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("update", "tasks", time.Since(start)) }()

	setClause, args := buildSet(taskColumns, fields)
	if setClause == "" {
		r.logger.Debug("Task update had no known fields", zap.String("task_id", id))
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE tasks SET %s, updated_at = NOW() WHERE id = $%d",
		setClause, len(args),
	)
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.Error(err),
			zap.String("task_id", id),
		)
		return err
	}
	r.logger.Debug("Task updated",
		zap.String("task_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("delete", "tasks", time.Since(start)) }()

	result, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete task",
			zap.Error(err),
			zap.String("task_id", id),
		)
		return err
	}
	r.logger.Info("Task deleted",
		zap.String("task_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

// buildSet assembles a SET clause from the patch, keeping only
// whitelisted columns. Encoded attachment lists are handled by the caller
// passing pre-encoded values.
func buildSet(columns map[string]string, fields map[string]any) (string, []any) {
	parts := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	i := 1
	for key, value := range fields {
		col, ok := columns[key]
		if !ok {
			continue
		}
		if key == "attachments" {
			if list, ok := value.([]model.Attachment); ok {
				value = model.EncodeAttachments(list)
			}
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, value)
		i++
	}
	return strings.Join(parts, ", "), args
}

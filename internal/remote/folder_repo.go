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

type FolderRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewFolderRepository(db *pgxpool.Pool, logger *zap.Logger) *FolderRepository {
	return &FolderRepository{db: db, logger: logger}
}

func (r *FolderRepository) Name() string { return "folders" }

var folderColumns = map[string]string{
	"name":        "name",
	"price":       "price",
	"summary":     "summary",
	"order_index": "order_index",
}

func (r *FolderRepository) List(ctx context.Context) ([]model.Folder, error) {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("list", "folders", time.Since(start)) }()

	query := `
        SELECT id, name, price, summary, order_index, created_at, updated_at
        FROM folders
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query folders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	folders := []model.Folder{}
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(
			&f.ID,
			&f.Name,
			&f.Price,
			&f.Summary,
			&f.OrderIndex,
			&f.CreatedAt,
			&f.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan folder row", zap.Error(err))
			return nil, err
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("Folders listed", zap.Int("count", len(folders)))
	return folders, nil
}

func (r *FolderRepository) Insert(ctx context.Context, f model.Folder) (model.Folder, error) {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("insert", "folders", time.Since(start)) }()

	r.logger.Debug("Inserting folder", zap.String("name", f.Name))
	query := `
        INSERT INTO folders (name, price, summary, order_index)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		f.Name,
		f.Price,
		f.Summary,
		f.OrderIndex,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert folder",
			zap.Error(err),
			zap.String("name", f.Name),
		)
		return model.Folder{}, err
	}
	r.logger.Info("Folder inserted",
		zap.String("folder_id", f.ID),
		zap.String("name", f.Name),
	)
	return f, nil
}

func (r *FolderRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("update", "folders", time.Since(start)) }()

	setClause, args := buildSet(folderColumns, fields)
	if setClause == "" {
		r.logger.Debug("Folder update had no known fields", zap.String("folder_id", id))
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE folders SET %s, updated_at = NOW() WHERE id = $%d",
		setClause, len(args),
	)
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update folder",
			zap.Error(err),
			zap.String("folder_id", id),
		)
		return err
	}
	r.logger.Debug("Folder updated",
		zap.String("folder_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

func (r *FolderRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { metrics.RecordRemoteOp("delete", "folders", time.Since(start)) }()

	result, err := r.db.Exec(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete folder",
			zap.Error(err),
			zap.String("folder_id", id),
		)
		return err
	}
	r.logger.Info("Folder deleted",
		zap.String("folder_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

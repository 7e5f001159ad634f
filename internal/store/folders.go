package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prodash/internal/cache"
	"prodash/internal/model"
)

// FolderStore is the folder collection bound to the `folders` table. It
// owns the detach-on-delete semantics of the weak task reference.
type FolderStore struct {
	*Store[model.Folder]
	tasks *TaskStore
}

func NewFolderStore(table Table[model.Folder], snap cache.Snapshot, tasks *TaskStore, logger *zap.Logger) *FolderStore {
	binding := Binding[model.Folder]{
		ID:    func(f model.Folder) string { return f.ID },
		SetID: func(f *model.Folder, id string) { f.ID = id },
		Stamp: func(f *model.Folder, now time.Time) {
			if f.CreatedAt.IsZero() {
				f.CreatedAt = now
			}
			f.UpdatedAt = now
		},
		Normalize: normalizeFolder,
		Validate:  func(f model.Folder) error { return model.ValidateStruct(f) },
		Apply:     applyFolderPatch,
	}
	return &FolderStore{
		Store: New(table, snap, binding, logger),
		tasks: tasks,
	}
}

func normalizeFolder(f *model.Folder) {
	if f.Price != nil && *f.Price < 0 {
		f.Price = nil
	}
}

func applyFolderPatch(f *model.Folder, fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "name":
			if s, ok := asString(value); ok {
				f.Name = s
			}
		case "price":
			if value == nil {
				f.Price = nil
				continue
			}
			if n, ok := asFloat(value); ok && n >= 0 {
				f.Price = &n
			}
		case "summary":
			if s, ok := asString(value); ok {
				f.Summary = s
			}
		case "order_index":
			if n, ok := asInt(value); ok {
				f.OrderIndex = n
			}
		}
	}
	f.UpdatedAt = time.Now().UTC()
}

// Delete removes a folder after detaching its tasks. The folder
// reference is weak: orphaned tasks survive with folder_id cleared,
// they are never deleted alongside their folder.
func (s *FolderStore) Delete(ctx context.Context, id string) error {
	if s.tasks != nil {
		if err := s.tasks.DetachFolder(ctx, id); err != nil {
			s.logger.Warn("Failed to detach tasks before folder delete",
				zap.String("folder_id", id),
				zap.Error(err),
			)
			return err
		}
	}
	return s.Store.Delete(ctx, id)
}

package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prodash/internal/cache"
	"prodash/internal/model"
)

// TaskStore is the task collection bound to the `tasks` table.
type TaskStore struct {
	*Store[model.Task]
}

func NewTaskStore(table Table[model.Task], snap cache.Snapshot, logger *zap.Logger) *TaskStore {
	binding := Binding[model.Task]{
		ID:    func(t model.Task) string { return t.ID },
		SetID: func(t *model.Task, id string) { t.ID = id },
		Stamp: func(t *model.Task, now time.Time) {
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			t.UpdatedAt = now
		},
		Normalize: normalizeTask,
		Validate:  func(t model.Task) error { return model.ValidateStruct(t) },
		Apply:     applyTaskPatch,
	}
	return &TaskStore{Store: New(table, snap, binding, logger)}
}

// normalizeTask defensively repairs shapes the remote store or an old
// cache snapshot may hand back.
func normalizeTask(t *model.Task) {
	if !t.Type.IsValid() {
		t.Type = model.TypeOther
	}
	if t.Percentage < 0 {
		t.Percentage = 0
	}
	if !t.Blocked {
		t.BlockReason = ""
	}
}

func applyTaskPatch(t *model.Task, fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "title":
			if s, ok := asString(value); ok {
				t.Title = s
			}
		case "completed":
			if b, ok := asBool(value); ok {
				t.Completed = b
			}
		case "percentage":
			if n, ok := asFloat(value); ok && n >= 0 {
				t.Percentage = n
			}
		case "type":
			if s, ok := asString(value); ok && model.TaskType(s).IsValid() {
				t.Type = model.TaskType(s)
			}
		case "folder_id":
			if p, ok := asStringPtr(value); ok {
				t.FolderID = p
			}
		case "order_index":
			if n, ok := asInt(value); ok {
				t.OrderIndex = n
			}
		case "event_id":
			if p, ok := asStringPtr(value); ok {
				t.EventID = p
			}
		case "event_time":
			if p, ok := asTimePtr(value); ok {
				t.EventTime = p
			}
		case "archived":
			if b, ok := asBool(value); ok {
				t.Archived = b
			}
		case "blocked":
			if b, ok := asBool(value); ok {
				t.Blocked = b
				if !b {
					t.BlockReason = ""
				}
			}
		case "block_reason":
			if s, ok := asString(value); ok {
				t.BlockReason = s
			}
		case "attachments":
			if list, ok := value.([]model.Attachment); ok {
				t.Attachments = list
				continue
			}
			var list []model.Attachment
			if reencode(value, &list) {
				t.Attachments = list
			}
		}
		// Unknown keys fall through untouched: there is no schema
		// validation layer on partial updates.
	}
	t.UpdatedAt = time.Now().UTC()
}

// DetachFolder clears the weak folder reference on every task pointing
// at folderID. Called before a folder delete so tasks are orphaned, not
// destroyed.
func (s *TaskStore) DetachFolder(ctx context.Context, folderID string) error {
	for _, t := range s.SnapshotRecords() {
		if t.FolderID != nil && *t.FolderID == folderID {
			if err := s.Update(ctx, t.ID, map[string]any{"folder_id": nil}); err != nil {
				return err
			}
		}
	}
	return nil
}

// TasksInFolder returns the tasks weakly referencing folderID.
func (s *TaskStore) TasksInFolder(folderID string) []model.Task {
	var out []model.Task
	for _, t := range s.SnapshotRecords() {
		if t.FolderID != nil && *t.FolderID == folderID {
			out = append(out, t)
		}
	}
	return out
}

// FindByEventID returns the task linked to an external calendar event.
// Each event maps to at most one task.
func (s *TaskStore) FindByEventID(eventID string) (model.Task, bool) {
	for _, t := range s.SnapshotRecords() {
		if t.EventID != nil && *t.EventID == eventID {
			return t, true
		}
	}
	return model.Task{}, false
}

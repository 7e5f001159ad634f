package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"prodash/internal/aggregate"
	"prodash/internal/collab"
	"prodash/internal/model"
	"prodash/internal/store"
	"prodash/internal/util"
)

// ProgressSink receives the recomputed totals for the current period.
type ProgressSink interface {
	UpdateTotals(ctx context.Context, month, year int, totalPercentage, amountGenerated float64) error
}

// Dashboard ties the entity stores, the aggregation engine and the
// external collaborators together. It subscribes to task and folder
// changes and rewrites the current period's progress record from
// scratch on every observation.
type Dashboard struct {
	tasks    *store.TaskStore
	folders  *store.FolderStore
	problems *store.ProblemStore
	progress ProgressSink
	agent    collab.Agent
	calendar collab.Calendar
	notifier *collab.Notifier
	deduper  *util.Deduper
	logger   *zap.Logger

	monthlyGoal float64
	now         func() time.Time
}

func NewDashboard(
	tasks *store.TaskStore,
	folders *store.FolderStore,
	problems *store.ProblemStore,
	progress ProgressSink,
	agent collab.Agent,
	logger *zap.Logger,
) *Dashboard {
	return &Dashboard{
		tasks:    tasks,
		folders:  folders,
		problems: problems,
		progress: progress,
		agent:    agent,
		logger:   logger,
		now:      time.Now,
	}
}

func (d *Dashboard) WithCalendar(c collab.Calendar) *Dashboard {
	d.calendar = c
	return d
}

func (d *Dashboard) WithNotifier(n *collab.Notifier) *Dashboard {
	d.notifier = n
	return d
}

func (d *Dashboard) WithDeduper(dd *util.Deduper) *Dashboard {
	d.deduper = dd
	return d
}

func (d *Dashboard) WithMonthlyGoal(goal float64) *Dashboard {
	d.monthlyGoal = goal
	return d
}

func (d *Dashboard) WithClock(now func() time.Time) *Dashboard {
	d.now = now
	return d
}

// Start blocks, recomputing the derived metrics on every task or folder
// change until ctx is cancelled. Run it in a goroutine.
func (d *Dashboard) Start(ctx context.Context) {
	taskChanges := d.tasks.Subscribe()
	folderChanges := d.folders.Subscribe()

	d.logger.Info("Dashboard service started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dashboard service stopped")
			return
		case <-taskChanges:
		case <-folderChanges:
		}
		d.Recompute(ctx)
	}
}

// Metrics recomputes the derived values from the current snapshots.
// Always from scratch; running totals would drift.
func (d *Dashboard) Metrics() (totalPercentage, revenue float64) {
	tasks := d.tasks.SnapshotRecords()
	folders := d.folders.SnapshotRecords()

	totalPercentage = aggregate.TotalProgress(tasks)
	if len(folders) == 0 {
		// Approximation path: no folders means no exact attribution.
		revenue = aggregate.EstimateRevenue(totalPercentage, d.monthlyGoal)
	} else {
		revenue = aggregate.Revenue(folders, tasks)
	}
	return totalPercentage, revenue
}

// Recompute pushes fresh totals into the current period's progress
// record. Best effort: a failed write leaves the record stale until the
// next observation.
func (d *Dashboard) Recompute(ctx context.Context) {
	totalPercentage, revenue := d.Metrics()

	now := d.now()
	if err := d.progress.UpdateTotals(ctx, int(now.Month()), now.Year(), totalPercentage, revenue); err != nil {
		d.logger.Warn("Failed to update progress totals",
			zap.Float64("total_percentage", totalPercentage),
			zap.Float64("revenue", revenue),
			zap.Error(err),
		)
		return
	}
	d.logger.Debug("Progress totals recomputed",
		zap.Float64("total_percentage", totalPercentage),
		zap.Float64("revenue", revenue),
	)
}

// CreateTask inserts a task, consulting the agent for a weight and type
// when the caller supplied none. Agent failure silently falls back to
// the default score.
func (d *Dashboard) CreateTask(ctx context.Context, title string, folderID *string) (model.Task, error) {
	score := d.agent.ScoreTask(ctx, title)
	task := model.Task{
		Title:      title,
		Percentage: score.Percentage,
		Type:       score.Type,
		FolderID:   folderID,
	}
	return d.tasks.Create(ctx, task)
}

// CompleteTask marks a task done.
func (d *Dashboard) CompleteTask(ctx context.Context, id string) error {
	return d.tasks.Update(ctx, id, map[string]any{"completed": true})
}

// BlockTask flags a task as blocked, raises a matching problem and
// fires a notification. The problem is an external side effect, not a
// stored relation.
func (d *Dashboard) BlockTask(ctx context.Context, id, reason string) error {
	if err := d.tasks.Update(ctx, id, map[string]any{
		"blocked":      true,
		"block_reason": reason,
	}); err != nil {
		return err
	}

	task, ok := d.tasks.Get(id)
	if !ok {
		return nil
	}
	if _, err := d.problems.Create(ctx, model.Problem{Title: task.Title + ": " + reason}); err != nil {
		d.logger.Warn("Failed to raise problem for blocked task",
			zap.String("task_id", id),
			zap.Error(err),
		)
	}
	if d.notifier != nil {
		d.notifier.TaskBlocked(ctx, task)
	}
	return nil
}

// SolveProblem asks the agent for a solution and stores it. A solved
// problem that names a blocked task does not unblock it automatically;
// that stays a user action.
func (d *Dashboard) SolveProblem(ctx context.Context, id string) error {
	problem, ok := d.problems.Get(id)
	if !ok {
		return nil
	}
	solution, solved := d.agent.SolveProblem(ctx, problem.Title)
	if !solved {
		return nil
	}
	return d.problems.Update(ctx, id, map[string]any{
		"solved":   true,
		"solution": solution,
	})
}

// RefreshFolderSummary feeds the folder's task titles to the agent and
// caches the returned summary on the folder. The engine stores and
// serves the text, it never composes it.
func (d *Dashboard) RefreshFolderSummary(ctx context.Context, folderID string) error {
	tasks := d.tasks.TasksInFolder(folderID)
	titles := make([]string, 0, len(tasks))
	for _, t := range tasks {
		titles = append(titles, t.Title)
	}
	summary := d.agent.Summarize(ctx, titles)
	return d.folders.Update(ctx, folderID, map[string]any{"summary": summary})
}

// Interpret turns free text into a dashboard action via the agent.
// Unknown actions are no-ops.
func (d *Dashboard) Interpret(ctx context.Context, text string) error {
	cmd := d.agent.Interpret(ctx, text)
	switch cmd.Action {
	case "create_task":
		var data struct {
			Title    string  `json:"title"`
			FolderID *string `json:"folder_id"`
		}
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		_, err := d.CreateTask(ctx, data.Title, data.FolderID)
		return err
	case "complete_task":
		var data struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return d.CompleteTask(ctx, data.ID)
	case "create_folder":
		var data struct {
			Name  string   `json:"name"`
			Price *float64 `json:"price"`
		}
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		_, err := d.folders.Create(ctx, model.Folder{Name: data.Name, Price: data.Price})
		return err
	default:
		d.logger.Debug("Interpreted command ignored", zap.String("action", cmd.Action))
		return nil
	}
}

// SyncCalendar pulls the user's events and creates a task for each one
// not yet seen. The stored event id keeps an event mapped to at most one
// task across repeated syncs; the deduper just cheapens the common case.
func (d *Dashboard) SyncCalendar(ctx context.Context, accessToken string) error {
	if d.calendar == nil {
		return nil
	}
	events, err := d.calendar.ListEvents(ctx, accessToken)
	if err != nil {
		d.logger.Warn("Calendar fetch failed", zap.Error(err))
		return err
	}

	created := 0
	for _, ev := range events {
		if d.deduper != nil && !d.deduper.AcquireOnce(ctx, "calendar", ev.ID) {
			continue
		}
		if _, exists := d.tasks.FindByEventID(ev.ID); exists {
			continue
		}

		score := d.agent.ScoreTask(ctx, ev.Summary)
		eventID := ev.ID
		eventTime := ev.Start
		task := model.Task{
			Title:      ev.Summary,
			Percentage: score.Percentage,
			Type:       score.Type,
			EventID:    &eventID,
			EventTime:  &eventTime,
		}
		if _, err := d.tasks.Create(ctx, task); err != nil {
			d.logger.Warn("Failed to create task from calendar event",
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
			continue
		}
		created++
	}

	d.logger.Info("Calendar sync completed",
		zap.Int("events", len(events)),
		zap.Int("tasks_created", created),
	)
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodash/internal/collab"
	"prodash/internal/model"
	"prodash/internal/store"
	"prodash/pkg/logger"
)

// memTable is a minimal in-memory store.Table used to stand up real
// entity stores without a database.
type memTable[T any] struct {
	mu     sync.Mutex
	name   string
	nextID int
	rows   []T
	getID  func(T) string
	setID  func(*T, string)
	apply  func(*T, map[string]any)
}

func (m *memTable[T]) Name() string { return m.name }

func (m *memTable[T]) List(ctx context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *memTable[T]) Insert(ctx context.Context, rec T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.setID(&rec, fmt.Sprintf("%s-%d", m.name, m.nextID))
	m.rows = append(m.rows, rec)
	return rec, nil
}

func (m *memTable[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.getID(m.rows[i]) == id {
			if m.apply != nil {
				m.apply(&m.rows[i], fields)
			}
			return nil
		}
	}
	return fmt.Errorf("%s %s not found", m.name, id)
}

func (m *memTable[T]) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.getID(m.rows[i]) == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// memSnapshot is an in-memory cache.Snapshot.
type memSnapshot struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemSnapshot() *memSnapshot { return &memSnapshot{data: map[string][]byte{}} }

func (m *memSnapshot) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memSnapshot) Load(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	return data, ok, nil
}

func (m *memSnapshot) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// scriptedAgent returns canned answers.
type scriptedAgent struct {
	score    collab.Score
	summary  string
	command  collab.Command
	solution string
}

func (a *scriptedAgent) ScoreTask(ctx context.Context, title string) collab.Score { return a.score }
func (a *scriptedAgent) Summarize(ctx context.Context, titles []string) string    { return a.summary }
func (a *scriptedAgent) Interpret(ctx context.Context, text string) collab.Command {
	return a.command
}
func (a *scriptedAgent) SolveProblem(ctx context.Context, title string) (string, bool) {
	return a.solution, a.solution != ""
}

type recordedTotals struct {
	month, year     int
	totalPercentage float64
	amountGenerated float64
	calls           int
}

func (r *recordedTotals) UpdateTotals(ctx context.Context, month, year int, totalPercentage, amountGenerated float64) error {
	r.month, r.year = month, year
	r.totalPercentage, r.amountGenerated = totalPercentage, amountGenerated
	r.calls++
	return nil
}

type scriptedCalendar struct {
	events []collab.Event
}

func (c *scriptedCalendar) ListEvents(ctx context.Context, accessToken string) ([]collab.Event, error) {
	return c.events, nil
}

func (c *scriptedCalendar) CreateEvent(ctx context.Context, accessToken string, ev collab.Event) (collab.Event, error) {
	return ev, nil
}

type fixture struct {
	dashboard *Dashboard
	tasks     *store.TaskStore
	folders   *store.FolderStore
	problems  *store.ProblemStore
	taskTable *memTable[model.Task]
	progress  *recordedTotals
	agent     *scriptedAgent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	snap := newMemSnapshot()

	taskTable := &memTable[model.Task]{
		name:  "tasks",
		getID: func(rec model.Task) string { return rec.ID },
		setID: func(rec *model.Task, id string) { rec.ID = id },
	}
	folderTable := &memTable[model.Folder]{
		name:  "folders",
		getID: func(rec model.Folder) string { return rec.ID },
		setID: func(rec *model.Folder, id string) { rec.ID = id },
	}
	problemTable := &memTable[model.Problem]{
		name:  "problems",
		getID: func(rec model.Problem) string { return rec.ID },
		setID: func(rec *model.Problem, id string) { rec.ID = id },
	}

	tasks := store.NewTaskStore(taskTable, snap, log)
	folders := store.NewFolderStore(folderTable, snap, tasks, log)
	problems := store.NewProblemStore(problemTable, snap, log)

	progress := &recordedTotals{}
	agent := &scriptedAgent{score: collab.DefaultScore, summary: "a summary"}

	d := NewDashboard(tasks, folders, problems, progress, agent, log).
		WithMonthlyGoal(10000).
		WithClock(func() time.Time {
			return time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC)
		})
	return &fixture{
		dashboard: d,
		tasks:     tasks,
		folders:   folders,
		problems:  problems,
		taskTable: taskTable,
		progress:  progress,
		agent:     agent,
	}
}

func TestMetricsUsesEstimateWithoutFolders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.taskTable.rows = []model.Task{
		{ID: "t1", Title: "a", Completed: true, Percentage: 30},
		{ID: "t2", Title: "b", Completed: true, Percentage: 12},
		{ID: "t3", Title: "c", Percentage: 50},
	}
	_, err := f.tasks.FetchAll(ctx)
	require.NoError(t, err)

	totalPercentage, revenue := f.dashboard.Metrics()
	assert.Equal(t, 42.0, totalPercentage)
	assert.Equal(t, 4200.0, revenue, "no folders means the monthly-goal estimate")
}

func TestMetricsUsesFolderPricesWhenPresent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	price := 8000.0
	_, err := f.folders.Create(ctx, model.Folder{Name: "paid", Price: &price})
	require.NoError(t, err)

	folderID := f.folders.SnapshotRecords()[0].ID
	f.taskTable.rows = []model.Task{
		{ID: "t1", Title: "done", Completed: true, Percentage: 5, FolderID: &folderID},
		{ID: "t2", Title: "todo", Percentage: 5, FolderID: &folderID},
	}
	_, err = f.tasks.FetchAll(ctx)
	require.NoError(t, err)

	_, revenue := f.dashboard.Metrics()
	assert.Equal(t, 4000.0, revenue)
}

func TestRecomputeWritesCurrentPeriodTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.taskTable.rows = []model.Task{{ID: "t1", Title: "a", Completed: true, Percentage: 7}}
	_, err := f.tasks.FetchAll(ctx)
	require.NoError(t, err)

	f.dashboard.Recompute(ctx)
	assert.Equal(t, 1, f.progress.calls)
	assert.Equal(t, 4, f.progress.month)
	assert.Equal(t, 2024, f.progress.year)
	assert.Equal(t, 7.0, f.progress.totalPercentage)
}

func TestCreateTaskUsesAgentScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.agent.score = collab.Score{Percentage: 4, Type: model.TypeCall}

	created, err := f.dashboard.CreateTask(ctx, "call the accountant", nil)
	require.NoError(t, err)
	assert.Equal(t, 4.0, created.Percentage)
	assert.Equal(t, model.TypeCall, created.Type)
}

func TestBlockTaskRaisesProblem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.dashboard.CreateTask(ctx, "deploy", nil)
	require.NoError(t, err)

	require.NoError(t, f.dashboard.BlockTask(ctx, created.ID, "waiting on credentials"))

	got, ok := f.tasks.Get(created.ID)
	require.True(t, ok)
	assert.True(t, got.Blocked)
	assert.Equal(t, "waiting on credentials", got.BlockReason)

	problems := f.problems.SnapshotRecords()
	require.Len(t, problems, 1)
	assert.Equal(t, "deploy: waiting on credentials", problems[0].Title)
}

func TestSolveProblemStoresAgentSolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.agent.solution = "rotate the credentials"
	problem, err := f.problems.Create(ctx, model.Problem{Title: "stuck deploy"})
	require.NoError(t, err)

	require.NoError(t, f.dashboard.SolveProblem(ctx, problem.ID))
	got, ok := f.problems.Get(problem.ID)
	require.True(t, ok)
	assert.True(t, got.Solved)
	assert.Equal(t, "rotate the credentials", got.Solution)
}

func TestRefreshFolderSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	folder, err := f.folders.Create(ctx, model.Folder{Name: "project"})
	require.NoError(t, err)

	require.NoError(t, f.dashboard.RefreshFolderSummary(ctx, folder.ID))
	got, ok := f.folders.Get(folder.ID)
	require.True(t, ok)
	assert.Equal(t, "a summary", got.Summary)
}

func TestInterpretCreateTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.agent.score = collab.Score{Percentage: 2, Type: model.TypeContent}
	f.agent.command = collab.Command{
		Action: "create_task",
		Data:   json.RawMessage(`{"title":"write newsletter"}`),
	}

	require.NoError(t, f.dashboard.Interpret(ctx, "add a newsletter task"))
	tasks := f.tasks.SnapshotRecords()
	require.Len(t, tasks, 1)
	assert.Equal(t, "write newsletter", tasks[0].Title)
	assert.Equal(t, 2.0, tasks[0].Percentage)
}

func TestInterpretUnknownActionIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.agent.command = collab.Command{Action: "unknown"}

	require.NoError(t, f.dashboard.Interpret(ctx, "gibberish"))
	assert.Empty(t, f.tasks.SnapshotRecords())
	assert.Empty(t, f.folders.SnapshotRecords())
}

func TestSyncCalendarMapsEachEventOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := time.Date(2024, 4, 16, 9, 0, 0, 0, time.UTC)
	f.dashboard.WithCalendar(&scriptedCalendar{events: []collab.Event{
		{ID: "evt-1", Summary: "standup", Start: start},
		{ID: "evt-2", Summary: "client call", Start: start.Add(time.Hour)},
	}})

	require.NoError(t, f.dashboard.SyncCalendar(ctx, "tok"))
	require.Len(t, f.tasks.SnapshotRecords(), 2)

	// A second sync of the same events creates nothing new.
	require.NoError(t, f.dashboard.SyncCalendar(ctx, "tok"))
	assert.Len(t, f.tasks.SnapshotRecords(), 2)

	got, ok := f.tasks.FindByEventID("evt-1")
	require.True(t, ok)
	assert.Equal(t, "standup", got.Title)
	require.NotNil(t, got.EventTime)
	assert.True(t, got.EventTime.Equal(start))
}

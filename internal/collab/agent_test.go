package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodash/internal/model"
	"prodash/pkg/logger"
)

func newAgentServer(t *testing.T, handler http.HandlerFunc) (*HTTPAgent, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPAgent(srv.URL, time.Second, logger.NewNop()), srv
}

func TestScoreTask(t *testing.T) {
	agent, _ := newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/score", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refactor the parser", body["title"])
		json.NewEncoder(w).Encode(Score{Percentage: 3, Type: model.TypeDev})
	})

	score := agent.ScoreTask(context.Background(), "refactor the parser")
	assert.Equal(t, 3.0, score.Percentage)
	assert.Equal(t, model.TypeDev, score.Type)
}

func TestScoreTaskDefaultsOnServerError(t *testing.T) {
	agent, _ := newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	score := agent.ScoreTask(context.Background(), "anything")
	assert.Equal(t, DefaultScore, score)
}

func TestScoreTaskDefaultsOnUnreachableService(t *testing.T) {
	agent := NewHTTPAgent("http://127.0.0.1:1", 200*time.Millisecond, logger.NewNop())
	score := agent.ScoreTask(context.Background(), "anything")
	assert.Equal(t, DefaultScore, score)
}

func TestScoreTaskSanitizesNonsense(t *testing.T) {
	agent, _ := newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"percentage": -5, "type": "meeting"})
	})

	score := agent.ScoreTask(context.Background(), "weird answer")
	assert.Equal(t, DefaultScore.Percentage, score.Percentage)
	assert.Equal(t, DefaultScore.Type, score.Type)
}

func TestSummarize(t *testing.T) {
	agent, _ := newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/summarize", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"summary": "two tasks about the parser"})
	})

	got := agent.Summarize(context.Background(), []string{"fix parser", "test parser"})
	assert.Equal(t, "two tasks about the parser", got)
}

func TestSummarizeDefaultsOnFailure(t *testing.T) {
	agent, _ := newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	assert.Equal(t, SummaryUnavailable, agent.Summarize(context.Background(), []string{"x"}))

	agent, _ = newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"summary": ""})
	})
	assert.Equal(t, SummaryUnavailable, agent.Summarize(context.Background(), []string{"x"}))
}

func TestInterpret(t *testing.T) {
	agent, _ := newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/interpret", r.URL.Path)
		json.NewEncoder(w).Encode(Command{
			Action: "create_task",
			Data:   json.RawMessage(`{"title":"buy milk"}`),
		})
	})

	cmd := agent.Interpret(context.Background(), "remind me to buy milk")
	assert.Equal(t, "create_task", cmd.Action)
	assert.JSONEq(t, `{"title":"buy milk"}`, string(cmd.Data))
}

func TestInterpretUnknownOnFailure(t *testing.T) {
	agent, _ := newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	cmd := agent.Interpret(context.Background(), "gibberish")
	assert.Equal(t, "unknown", cmd.Action)
}

func TestSolveProblem(t *testing.T) {
	agent, _ := newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/solve", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"solution": "restart the worker"})
	})

	solution, ok := agent.SolveProblem(context.Background(), "worker stuck")
	require.True(t, ok)
	assert.Equal(t, "restart the worker", solution)
}

func TestSolveProblemReportsNothingUseful(t *testing.T) {
	agent, _ := newAgentServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"solution": ""})
	})
	_, ok := agent.SolveProblem(context.Background(), "unsolvable")
	assert.False(t, ok)
}

func TestCalendarListEvents(t *testing.T) {
	start := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]Event{
			{ID: "evt-1", Summary: "standup", Start: start, End: start.Add(30 * time.Minute)},
		})
	}))
	t.Cleanup(srv.Close)

	cal := NewHTTPCalendar(srv.URL, time.Second, logger.NewNop())
	events, err := cal.ListEvents(context.Background(), "tok-123")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.True(t, events[0].Start.Equal(start))
}

func TestCalendarListEventsSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	cal := NewHTTPCalendar(srv.URL, time.Second, logger.NewNop())
	_, err := cal.ListEvents(context.Background(), "bad-token")
	assert.Error(t, err, "calendar failures surface; sync decides what to do with them")
}

// Package collab holds the narrow clients for the external services the
// engine consumes: the language-model agent, the calendar, and the
// notification channel. None of them is allowed to fail the caller's
// flow; each degrades to a default.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"prodash/internal/model"
	"prodash/pkg/metrics"
)

// Score is the agent's judgement of a task: an additive progress weight
// and an effort type.
type Score struct {
	Percentage float64        `json:"percentage"`
	Type       model.TaskType `json:"type"`
}

// DefaultScore is used whenever the agent cannot be reached or answers
// nonsense.
var DefaultScore = Score{Percentage: 1, Type: model.TypeOther}

// SummaryUnavailable stands in when summarization fails.
const SummaryUnavailable = "summary unavailable"

// Command is the agent's interpretation of a free-text instruction.
type Command struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Agent scores, summarizes and interprets via the external completion
// service. Implementations never return errors for scoring and
// summarization: failure means default.
type Agent interface {
	ScoreTask(ctx context.Context, title string) Score
	Summarize(ctx context.Context, titles []string) string
	Interpret(ctx context.Context, text string) Command
	SolveProblem(ctx context.Context, title string) (string, bool)
}

// HTTPAgent talks to the agent service over HTTP.
type HTTPAgent struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPAgent(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPAgent {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPAgent{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *HTTPAgent) post(ctx context.Context, endpoint string, payload any, out any) error {
	start := time.Now()
	status := "success"
	defer func() { metrics.RecordAgentCallLatency(endpoint, status, time.Since(start)) }()

	b, err := json.Marshal(payload)
	if err != nil {
		status = "failed"
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(b))
	if err != nil {
		status = "failed"
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		status = "failed"
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status = "failed"
		return fmt.Errorf("agent service error: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		status = "failed"
		return err
	}
	return nil
}

// ScoreTask asks the agent to weigh and classify a task title.
func (c *HTTPAgent) ScoreTask(ctx context.Context, title string) Score {
	var score Score
	err := c.post(ctx, "/score", map[string]string{"title": title}, &score)
	if err != nil {
		c.logger.Warn("Agent scoring failed, using default",
			zap.String("title", title),
			zap.Error(err),
		)
		return DefaultScore
	}
	if score.Percentage <= 0 {
		score.Percentage = DefaultScore.Percentage
	}
	if !score.Type.IsValid() {
		score.Type = DefaultScore.Type
	}
	return score
}

// Summarize condenses a task list into a short project summary.
func (c *HTTPAgent) Summarize(ctx context.Context, titles []string) string {
	var out struct {
		Summary string `json:"summary"`
	}
	err := c.post(ctx, "/summarize", map[string]any{"titles": titles}, &out)
	if err != nil || out.Summary == "" {
		c.logger.Warn("Agent summarization failed, using default", zap.Error(err))
		return SummaryUnavailable
	}
	return out.Summary
}

// Interpret maps free text to an action. An unreachable agent yields the
// "unknown" action, which callers treat as a no-op.
func (c *HTTPAgent) Interpret(ctx context.Context, text string) Command {
	var cmd Command
	err := c.post(ctx, "/interpret", map[string]string{"text": text}, &cmd)
	if err != nil || cmd.Action == "" {
		c.logger.Warn("Agent interpretation failed", zap.Error(err))
		return Command{Action: "unknown"}
	}
	return cmd
}

// SolveProblem asks the agent for a solution text. ok is false when the
// agent had nothing useful.
func (c *HTTPAgent) SolveProblem(ctx context.Context, title string) (string, bool) {
	var out struct {
		Solution string `json:"solution"`
	}
	err := c.post(ctx, "/solve", map[string]string{"title": title}, &out)
	if err != nil || out.Solution == "" {
		c.logger.Warn("Agent solving failed",
			zap.String("title", title),
			zap.Error(err),
		)
		return "", false
	}
	return out.Solution, true
}

package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Event is the calendar service's view of an appointment. The engine's
// only contract with it: an event maps to at most one task, via the
// stored event id.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Calendar fetches and creates events on behalf of the user. The access
// token is acquired elsewhere and passed through opaquely.
type Calendar interface {
	ListEvents(ctx context.Context, accessToken string) ([]Event, error)
	CreateEvent(ctx context.Context, accessToken string, ev Event) (Event, error)
}

// HTTPCalendar talks to the calendar service over HTTP.
type HTTPCalendar struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPCalendar(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPCalendar {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCalendar{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *HTTPCalendar) ListEvents(ctx context.Context, accessToken string) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar service error: %d", resp.StatusCode)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *HTTPCalendar) CreateEvent(ctx context.Context, accessToken string, ev Event) (Event, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return Event{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(b))
	if err != nil {
		return Event{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Event{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Event{}, fmt.Errorf("calendar service error: %d", resp.StatusCode)
	}

	var created Event
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return Event{}, err
	}
	return created, nil
}

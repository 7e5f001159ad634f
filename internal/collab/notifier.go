package collab

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prodash/internal/model"
	"prodash/pkg/mq"
)

// Notifier pushes fire-and-forget messages toward the email/notification
// service. No response is ever consumed; publish errors are logged and
// swallowed.
type Notifier struct {
	publisher *mq.Publisher
	logger    *zap.Logger
}

func NewNotifier(publisher *mq.Publisher, logger *zap.Logger) *Notifier {
	return &Notifier{publisher: publisher, logger: logger}
}

// MonthlySummaryPayload is the rollover email body.
type MonthlySummaryPayload struct {
	NotificationID      string    `json:"notification_id"`
	Month               int       `json:"month"`
	Year                int       `json:"year"`
	FinalPercentage     float64   `json:"final_percentage"`
	Amount              float64   `json:"amount"`
	TasksCount          int       `json:"tasks_count"`
	CompletedTasksCount int       `json:"completed_tasks_count"`
	SentAt              time.Time `json:"sent_at"`
}

// MonthlySummary publishes the archived period as an email notification.
func (n *Notifier) MonthlySummary(ctx context.Context, a model.MonthlyArchive) {
	payload := MonthlySummaryPayload{
		NotificationID:      uuid.NewString(),
		Month:               a.Month,
		Year:                a.Year,
		FinalPercentage:     a.FinalPercentage,
		Amount:              a.Amount,
		TasksCount:          a.TasksCount,
		CompletedTasksCount: a.CompletedTasksCount,
		SentAt:              time.Now().UTC(),
	}
	if err := n.publisher.Publish("notify.monthly_summary", payload); err != nil {
		n.logger.Warn("Failed to publish monthly summary notification",
			zap.Int("month", a.Month),
			zap.Int("year", a.Year),
			zap.Error(err),
		)
		return
	}
	n.logger.Info("Monthly summary notification published",
		zap.Int("month", a.Month),
		zap.Int("year", a.Year),
	)
}

// TaskBlockedPayload announces a task that just got blocked.
type TaskBlockedPayload struct {
	NotificationID string    `json:"notification_id"`
	TaskID         string    `json:"task_id"`
	Title          string    `json:"title"`
	BlockReason    string    `json:"block_reason"`
	SentAt         time.Time `json:"sent_at"`
}

// TaskBlocked publishes a blocked-task alert.
func (n *Notifier) TaskBlocked(ctx context.Context, t model.Task) {
	payload := TaskBlockedPayload{
		NotificationID: uuid.NewString(),
		TaskID:         t.ID,
		Title:          t.Title,
		BlockReason:    t.BlockReason,
		SentAt:         time.Now().UTC(),
	}
	if err := n.publisher.Publish("notify.task_blocked", payload); err != nil {
		n.logger.Warn("Failed to publish blocked-task notification",
			zap.String("task_id", t.ID),
			zap.Error(err),
		)
	}
}

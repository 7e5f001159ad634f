package model

import "time"

// ProgressRecord is the materialized aggregation snapshot for one
// (month, year) period. At most one record exists per period. While a
// period is current the record is continuously rewritten from live
// task/folder state; once superseded it is effectively read only.
type ProgressRecord struct {
	ID              string    `json:"id"`
	Month           int       `json:"month" validate:"gte=1,lte=12"`
	Year            int       `json:"year" validate:"gte=2000"`
	TotalPercentage float64   `json:"total_percentage"`
	AmountGenerated float64   `json:"amount_generated"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MonthlyArchive is the immutable snapshot written at rollover. Never
// mutated after creation.
type MonthlyArchive struct {
	ID                  string    `json:"id"`
	Month               int       `json:"month"`
	Year                int       `json:"year"`
	FinalPercentage     float64   `json:"final_percentage"`
	Amount              float64   `json:"amount"`
	TasksCount          int       `json:"tasks_count"`
	CompletedTasksCount int       `json:"completed_tasks_count"`
	CreatedAt           time.Time `json:"created_at"`
}

// PreviousPeriod returns the (month, year) immediately before the given
// period, wrapping January back to December of the prior year.
func PreviousPeriod(month, year int) (int, int) {
	if month == 1 {
		return 12, year - 1
	}
	return month - 1, year
}

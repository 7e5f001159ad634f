package model

import "time"

// Problem is a blocker raised by the user. Solution is filled in by the
// external solving service. Problems stand alone: no stored relation to
// tasks or folders.
type Problem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" validate:"required,min=1,max=500"`
	Solved    bool      `json:"solved"`
	Solution  string    `json:"solution,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

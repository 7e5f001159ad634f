package store

import (
	"time"

	"go.uber.org/zap"

	"prodash/internal/cache"
	"prodash/internal/model"
)

// ProblemStore is the problem collection bound to the `problems` table.
// Problems are an independent aggregate: no stored relation to tasks or
// folders.
type ProblemStore struct {
	*Store[model.Problem]
}

func NewProblemStore(table Table[model.Problem], snap cache.Snapshot, logger *zap.Logger) *ProblemStore {
	binding := Binding[model.Problem]{
		ID:    func(p model.Problem) string { return p.ID },
		SetID: func(p *model.Problem, id string) { p.ID = id },
		Stamp: func(p *model.Problem, now time.Time) {
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
		},
		Validate: func(p model.Problem) error { return model.ValidateStruct(p) },
		Apply:    applyProblemPatch,
	}
	return &ProblemStore{Store: New(table, snap, binding, logger)}
}

func applyProblemPatch(p *model.Problem, fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "title":
			if s, ok := asString(value); ok {
				p.Title = s
			}
		case "solved":
			if b, ok := asBool(value); ok {
				p.Solved = b
			}
		case "solution":
			if s, ok := asString(value); ok {
				p.Solution = s
			}
		}
	}
}

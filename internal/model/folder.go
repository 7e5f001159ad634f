package model

import "time"

// Folder groups tasks into a project. Price, when set, is the full
// contract value of the project. Summary is a cached text produced by the
// external summarization service; the engine stores and serves it but
// never computes it.
type Folder struct {
	ID         string    `json:"id"`
	Name       string    `json:"name" validate:"required,min=1,max=255"`
	Price      *float64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	Summary    string    `json:"summary,omitempty"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PriceValue returns the folder price, zero when unset.
func (f Folder) PriceValue() float64 {
	if f.Price == nil {
		return 0
	}
	return *f.Price
}

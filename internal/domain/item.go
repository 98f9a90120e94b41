package domain

import "time"

type Item struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	TotalCopies     int32     `json:"total_copies"`
	AvailableCopies int32     `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewItem builds a stock entry with every copy on the shelf.
func NewItem(title string, totalCopies int32, now time.Time) (*Item, error) {
	if title == "" || totalCopies < 0 {
		return nil, ErrInvalidInput
	}
	return &Item{
		Title:           title,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanReserve reports whether at least one copy is on the shelf.
func (i Item) CanReserve() bool {
	return i.AvailableCopies > 0
}

// CanRelease reports whether a copy can come back without exceeding the total.
func (i Item) CanRelease() bool {
	return i.AvailableCopies < i.TotalCopies
}

package domain

import "time"

// PlannerEvent is a calendar entry owned by one user.
type PlannerEvent struct {
	ID          string
	UserID      string
	CreatedByID string
	Title       string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	AllDay      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnerID returns the user the event belongs to.
func (e PlannerEvent) OwnerID() string { return e.UserID }

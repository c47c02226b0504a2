package models

import "time"

type RoundStatus string

const (
	RoundStatusPending   RoundStatus = "pending"
	RoundStatusRunning   RoundStatus = "running"
	RoundStatusCompleted RoundStatus = "completed"
)

// TotalRounds is fixed by the tournament format: every event runs exactly five rounds.
const TotalRounds = 5

type Round struct {
	ID          int         `json:"id"`
	EventID     string      `json:"event_id"`
	RoundNumber int         `json:"round_number"`
	Name        string      `json:"name"`
	Status      RoundStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RoundMatchCounts aggregates match states for a round, used by the rounds listing.
type RoundMatchCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Running   int `json:"running"`
}

package models

// Event exposes the slice of the event record this service consumes: the
// scoreboard visibility flag used to gate the leaderboard.
type Event struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ScoreboardVisible bool   `json:"scoreboard_visible"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ProgressStatus string

const (
	ProgressStatusActive     ProgressStatus = "active"
	ProgressStatusEliminated ProgressStatus = "eliminated"
)

// RoundRecord is a single append-only entry in a team's round history.
type RoundRecord struct {
	Round         int     `json:"round"`
	Result        string  `json:"result"`
	Score         float64 `json:"score"`
	OpponentScore float64 `json:"opponent_score"`
	Opponent      string  `json:"opponent"`
	Points        int     `json:"points"`
	Verdict       string  `json:"verdict"`
}

type RoundHistory []RoundRecord

func (h RoundHistory) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal(RoundHistory{})
	}
	return json.Marshal(h)
}

func (h *RoundHistory) Scan(src interface{}) error {
	if src == nil {
		*h = RoundHistory{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported scan type %T for RoundHistory", src)
	}
	return json.Unmarshal(b, h)
}

// TeamProgress is the cumulative per-team, per-event ledger record. Counters are
// only ever mutated additively; the invariant sum(history points) == Points holds
// for every persisted record.
type TeamProgress struct {
	ID         int            `json:"id"`
	TeamID     string         `json:"team_id"`
	EventID    string         `json:"event_id"`
	TeamName   string         `json:"team_name"`
	TotalScore float64        `json:"total_score"`
	Points     int            `json:"points"`
	Wins       int            `json:"wins"`
	Losses     int            `json:"losses"`
	Draws      int            `json:"draws"`
	Status     ProgressStatus `json:"status"`
	History    RoundHistory   `json:"round_history"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

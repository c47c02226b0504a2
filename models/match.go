package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type MatchStatus string

const (
	MatchStatusWaiting   MatchStatus = "waiting"
	MatchStatusRunning   MatchStatus = "running"
	MatchStatusCompleted MatchStatus = "completed"
)

type MatchResult string

const (
	ResultTeamAWin MatchResult = "team_a_win"
	ResultTeamBWin MatchResult = "team_b_win"
	ResultDraw     MatchResult = "draw"
)

// JudgeScores is the structured per-team output of the arbiter, stored as jsonb.
type JudgeScores struct {
	Score        float64 `json:"score"`
	Relevance    string  `json:"relevance"`
	Groundedness string  `json:"groundedness"`
	Accuracy     string  `json:"accuracy"`
	Style        string  `json:"style"`
	Efficiency   string  `json:"efficiency"`
}

func (s JudgeScores) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *JudgeScores) Scan(src interface{}) error {
	if src == nil {
		*s = JudgeScores{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported scan type %T for JudgeScores", src)
	}
	return json.Unmarshal(b, s)
}

// Match is one head-to-head evaluation within a round. TeamBID == nil marks a bye,
// which is resolved at creation time and never goes through the evaluator.
type Match struct {
	ID             int          `json:"id"`
	EventID        string       `json:"event_id"`
	RoundNumber    int          `json:"round_number"`
	TeamAID        string       `json:"team_a_id"`
	TeamBID        *string      `json:"team_b_id,omitempty"`
	TeamAName      string       `json:"team_a_name"`
	TeamBName      string       `json:"team_b_name"`
	TeamAScores    *JudgeScores `json:"team_a_scores,omitempty"`
	TeamBScores    *JudgeScores `json:"team_b_scores,omitempty"`
	TeamALatencyMS int64        `json:"team_a_latency_ms"`
	TeamBLatencyMS int64        `json:"team_b_latency_ms"`
	ScoreA         float64      `json:"score_a"`
	ScoreB         float64      `json:"score_b"`
	Result         *MatchResult `json:"result,omitempty"`
	Verdict        *string      `json:"verdict,omitempty"`
	Status         MatchStatus  `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

func (m *Match) IsBye() bool {
	return m.TeamBID == nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/promptclash/arena/models"
	"github.com/promptclash/arena/repositories"
)

// Points awarded per match outcome.
const (
	PointsWin  = 2
	PointsDraw = 1
	PointsLoss = 0
)

// ProgressService is the team-progress ledger: one cumulative record per
// (team, event), mutated only through additive increments so that concurrent
// match resolutions for different matches commute without locking.
type ProgressService struct {
	progressRepo repositories.ProgressRepository
	logger       *slog.Logger
}

func NewProgressService(progressRepo repositories.ProgressRepository, logger *slog.Logger) *ProgressService {
	return &ProgressService{progressRepo: progressRepo, logger: logger}
}

// SeedTeam creates a zeroed ledger record on a team's first appearance.
// Calling it again for the same (team, event) is a no-op.
func (s *ProgressService) SeedTeam(ctx context.Context, teamID, eventID, teamName string) error {
	return s.progressRepo.Seed(ctx, teamID, eventID, teamName)
}

// ApplyMatchOutcome records a resolved match in both teams' ledgers. For a bye
// only team A is credited. The match must already carry a terminal result.
func (s *ProgressService) ApplyMatchOutcome(ctx context.Context, match *models.Match) error {
	if match.Result == nil {
		return fmt.Errorf("cannot apply outcome of match %d: no result", match.ID)
	}

	verdict := ""
	if match.Verdict != nil {
		verdict = *match.Verdict
	}

	opponentForA := match.TeamBName
	if match.IsBye() {
		opponentForA = "bye"
	}

	deltaA := outcomeDelta(match.TeamAID, match.EventID, teamOutcome(*match.Result, true), models.RoundRecord{
		Round:         match.RoundNumber,
		Score:         match.ScoreA,
		OpponentScore: match.ScoreB,
		Opponent:      opponentForA,
		Verdict:       verdict,
	})
	if err := s.progressRepo.Apply(ctx, deltaA); err != nil {
		return fmt.Errorf("failed to update ledger for team %s: %w", match.TeamAID, err)
	}

	if match.IsBye() {
		return nil
	}

	deltaB := outcomeDelta(*match.TeamBID, match.EventID, teamOutcome(*match.Result, false), models.RoundRecord{
		Round:         match.RoundNumber,
		Score:         match.ScoreB,
		OpponentScore: match.ScoreA,
		Opponent:      match.TeamAName,
		Verdict:       verdict,
	})
	if err := s.progressRepo.Apply(ctx, deltaB); err != nil {
		return fmt.Errorf("failed to update ledger for team %s: %w", *match.TeamBID, err)
	}
	return nil
}

// RevertByeCredit undoes the ledger credit a bye match granted at creation.
// Used only while the round is still pending, when matchups are cleared.
func (s *ProgressService) RevertByeCredit(ctx context.Context, match *models.Match) error {
	if !match.IsBye() {
		return fmt.Errorf("match %d is not a bye", match.ID)
	}
	round := match.RoundNumber
	return s.progressRepo.Apply(ctx, repositories.ProgressDelta{
		TeamID:      match.TeamAID,
		EventID:     match.EventID,
		ScoreDelta:  -match.ScoreA,
		PointsDelta: -PointsWin,
		WinsDelta:   -1,
		DropRound:   &round,
	})
}

func (s *ProgressService) GetTeamProgress(ctx context.Context, teamID, eventID string) (*models.TeamProgress, error) {
	progress, err := s.progressRepo.GetByTeamAndEvent(ctx, teamID, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrProgressNotFound) {
			return nil, ErrProgressNotFound
		}
		return nil, err
	}
	return progress, nil
}

// Leaderboard returns every team of the event ordered by points, wins, then
// total judge score. Visibility gating is the caller's concern.
func (s *ProgressService) Leaderboard(ctx context.Context, eventID string) ([]*models.TeamProgress, error) {
	return s.progressRepo.ListByEventRanked(ctx, eventID)
}

// outcome is a match result seen from one team's side.
type outcome struct {
	result string
	points int
	wins   int
	losses int
	draws  int
}

func teamOutcome(result models.MatchResult, isTeamA bool) outcome {
	won := (result == models.ResultTeamAWin && isTeamA) || (result == models.ResultTeamBWin && !isTeamA)
	switch {
	case won:
		return outcome{result: "win", points: PointsWin, wins: 1}
	case result == models.ResultDraw:
		return outcome{result: "draw", points: PointsDraw, draws: 1}
	default:
		return outcome{result: "loss", points: PointsLoss, losses: 1}
	}
}

func outcomeDelta(teamID, eventID string, o outcome, record models.RoundRecord) repositories.ProgressDelta {
	record.Result = o.result
	record.Points = o.points
	return repositories.ProgressDelta{
		TeamID:      teamID,
		EventID:     eventID,
		ScoreDelta:  record.Score,
		PointsDelta: o.points,
		WinsDelta:   o.wins,
		LossesDelta: o.losses,
		DrawsDelta:  o.draws,
		Record:      &record,
	}
}

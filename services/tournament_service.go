package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/promptclash/arena/live"
	"github.com/promptclash/arena/metrics"
	"github.com/promptclash/arena/models"
	"github.com/promptclash/arena/repositories"
	"github.com/promptclash/arena/rounds"
)

// TournamentService owns the round lifecycle: one-time initialization of the
// five rounds, the pending -> running -> completed state machine, and the
// background fan-out that evaluates a started round. Status transitions are
// single conditional updates, so concurrent admin calls cannot double-start a
// round.
type TournamentService struct {
	roundRepo repositories.RoundRepository
	matchRepo repositories.MatchRepository
	evaluator *EvaluationService
	runner    *Runner
	hub       Broadcaster
	archiver  *ResultArchiver // nil when archiving is not configured
	logger    *slog.Logger
}

func NewTournamentService(
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	evaluator *EvaluationService,
	runner *Runner,
	hub Broadcaster,
	archiver *ResultArchiver,
	logger *slog.Logger,
) *TournamentService {
	if hub == nil {
		hub = NopBroadcaster{}
	}
	return &TournamentService{
		roundRepo: roundRepo,
		matchRepo: matchRepo,
		evaluator: evaluator,
		runner:    runner,
		hub:       hub,
		archiver:  archiver,
		logger:    logger,
	}
}

// InitializeRounds creates the five pending rounds for an event exactly once.
func (s *TournamentService) InitializeRounds(ctx context.Context, eventID string) ([]*models.Round, error) {
	existing, err := s.roundRepo.CountByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count rounds: %w", err)
	}
	if existing > 0 {
		return nil, ErrRoundsAlreadyInitialized
	}

	roundList := make([]*models.Round, 0, models.TotalRounds)
	for number := 1; number <= models.TotalRounds; number++ {
		roundList = append(roundList, &models.Round{
			EventID:     eventID,
			RoundNumber: number,
			Name:        rounds.Name(number),
			Status:      models.RoundStatusPending,
		})
	}

	if err := s.roundRepo.CreateAll(ctx, roundList); err != nil {
		return nil, fmt.Errorf("failed to create rounds: %w", err)
	}
	s.logger.Info("tournament rounds initialized", slog.String("event_id", eventID))
	return roundList, nil
}

// RoundSummary is a round with its match-state aggregates.
type RoundSummary struct {
	models.Round
	Matches models.RoundMatchCounts `json:"matches"`
}

func (s *TournamentService) ListRounds(ctx context.Context, eventID string) ([]*RoundSummary, error) {
	roundList, err := s.roundRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	counts, err := s.matchRepo.CountsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*RoundSummary, 0, len(roundList))
	for _, round := range roundList {
		summaries = append(summaries, &RoundSummary{
			Round:   *round,
			Matches: counts[round.RoundNumber],
		})
	}
	return summaries, nil
}

func (s *TournamentService) ListRoundMatches(ctx context.Context, eventID string, roundNumber int) ([]*models.Match, error) {
	if _, err := s.getRound(ctx, eventID, roundNumber); err != nil {
		return nil, err
	}
	return s.matchRepo.ListByRound(ctx, eventID, roundNumber, nil)
}

// StartRound validates preconditions, atomically flips the round to running,
// and submits the evaluation fan-out to the background runner. It returns the
// number of matches now executing without waiting for them.
func (s *TournamentService) StartRound(ctx context.Context, eventID string, roundNumber int) (int, error) {
	round, err := s.getRound(ctx, eventID, roundNumber)
	if err != nil {
		return 0, err
	}
	if round.Status != models.RoundStatusPending {
		return 0, ErrRoundNotPending
	}

	if roundNumber > 1 {
		previous, err := s.getRound(ctx, eventID, roundNumber-1)
		if err != nil {
			return 0, err
		}
		if previous.Status != models.RoundStatusCompleted {
			return 0, ErrPreviousRoundIncomplete
		}
	}

	waitingStatus := models.MatchStatusWaiting
	waiting, err := s.matchRepo.ListByRound(ctx, eventID, roundNumber, &waitingStatus)
	if err != nil {
		return 0, fmt.Errorf("failed to list waiting matches: %w", err)
	}
	if len(waiting) == 0 {
		return 0, ErrNoWaitingMatches
	}

	// The conditional update is the authoritative gate: if a racing caller
	// flipped the status first, this matches no row and fails cleanly.
	if err := s.roundRepo.MarkRunning(ctx, eventID, roundNumber); err != nil {
		if errors.Is(err, repositories.ErrRoundStatusConflict) {
			return 0, ErrRoundNotPending
		}
		return 0, err
	}

	s.logger.Info("round started",
		slog.String("event_id", eventID),
		slog.Int("round", roundNumber),
		slog.Int("matches", len(waiting)))
	s.hub.Broadcast(eventID, live.Message{
		Type:    live.MessageRoundStarted,
		Payload: map[string]interface{}{"round_number": roundNumber, "matches": len(waiting)},
	})

	taskName := fmt.Sprintf("evaluate-round-%d", roundNumber)
	s.runner.Submit(taskName, func(taskCtx context.Context) error {
		execution, execErr := s.evaluator.ExecuteRound(taskCtx, eventID, roundNumber)
		if execErr != nil {
			return execErr
		}
		if execution.Failed > 0 {
			s.logger.Warn("round finished with degraded matches",
				slog.String("event_id", eventID),
				slog.Int("round", roundNumber),
				slog.Int("failed", execution.Failed))
		}
		return s.finalizeRound(taskCtx, eventID, roundNumber)
	})

	return len(waiting), nil
}

// finalizeRound flips running -> completed once every match of the round is
// terminal, then pushes the update and archives the results.
func (s *TournamentService) finalizeRound(ctx context.Context, eventID string, roundNumber int) error {
	unfinished, err := s.matchRepo.CountUnfinishedByRound(ctx, eventID, roundNumber)
	if err != nil {
		return fmt.Errorf("failed to count unfinished matches: %w", err)
	}
	if unfinished > 0 {
		// Forced penalty outcomes should make this unreachable; if a match is
		// still open the round stays running rather than lying about its state.
		return fmt.Errorf("round %d still has %d unfinished matches", roundNumber, unfinished)
	}

	if err := s.roundRepo.MarkCompleted(ctx, eventID, roundNumber); err != nil {
		if errors.Is(err, repositories.ErrRoundStatusConflict) {
			// A concurrent finalizer got there first; nothing left to do.
			return nil
		}
		return err
	}

	metrics.RoundsCompleted.Inc()
	s.logger.Info("round completed",
		slog.String("event_id", eventID),
		slog.Int("round", roundNumber))
	s.hub.Broadcast(eventID, live.Message{
		Type:    live.MessageRoundCompleted,
		Payload: map[string]interface{}{"round_number": roundNumber},
	})

	if s.archiver != nil {
		matches, err := s.matchRepo.ListByRound(ctx, eventID, roundNumber, nil)
		if err != nil {
			return fmt.Errorf("failed to list matches for archive: %w", err)
		}
		location, err := s.archiver.ArchiveRound(ctx, eventID, roundNumber, matches)
		if err != nil {
			// Archiving is best effort; the round outcome is already durable.
			s.logger.Error("failed to archive round results",
				slog.Int("round", roundNumber),
				slog.Any("error", err))
			return nil
		}
		s.logger.Info("round results archived",
			slog.Int("round", roundNumber),
			slog.String("location", location))
	}
	return nil
}

func (s *TournamentService) getRound(ctx context.Context, eventID string, roundNumber int) (*models.Round, error) {
	round, err := s.roundRepo.GetByEventAndNumber(ctx, eventID, roundNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return round, nil
}

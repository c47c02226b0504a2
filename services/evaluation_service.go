package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/promptclash/arena/fetcher"
	"github.com/promptclash/arena/judge"
	"github.com/promptclash/arena/live"
	"github.com/promptclash/arena/metrics"
	"github.com/promptclash/arena/models"
	"github.com/promptclash/arena/repositories"
	"github.com/promptclash/arena/rounds"
)

// AnswerFetcher fetches one team's answers; implementations never fail, they
// degrade to empty answers.
type AnswerFetcher interface {
	FetchAnswers(ctx context.Context, endpointURL, document string, questions []string, timeout time.Duration) fetcher.Result
}

// MatchJudge scores both answer sets and declares a winner.
type MatchJudge interface {
	Evaluate(ctx context.Context, req judge.Request) (*judge.Verdict, error)
}

// Broadcaster pushes live updates to dashboard clients.
type Broadcaster interface {
	Broadcast(eventID string, msg live.Message)
}

// NopBroadcaster satisfies Broadcaster when no hub is wired.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, live.Message) {}

// EvaluationService resolves matches: it fetches both teams' answers, asks the
// arbiter for a verdict, persists the outcome and updates the ledger. Every
// failure path still drives the match to a terminal state so the round can
// complete.
type EvaluationService struct {
	matchRepo      repositories.MatchRepository
	submissionRepo repositories.SubmissionRepository
	ledger         *ProgressService
	fetcher        AnswerFetcher
	judge          MatchJudge
	hub            Broadcaster
	logger         *slog.Logger
}

func NewEvaluationService(
	matchRepo repositories.MatchRepository,
	submissionRepo repositories.SubmissionRepository,
	ledger *ProgressService,
	answerFetcher AnswerFetcher,
	matchJudge MatchJudge,
	hub Broadcaster,
	logger *slog.Logger,
) *EvaluationService {
	if hub == nil {
		hub = NopBroadcaster{}
	}
	return &EvaluationService{
		matchRepo:      matchRepo,
		submissionRepo: submissionRepo,
		ledger:         ledger,
		fetcher:        answerFetcher,
		judge:          matchJudge,
		hub:            hub,
		logger:         logger,
	}
}

// RoundExecution summarizes one round's fan-out.
type RoundExecution struct {
	Evaluated int
	Failed    int
}

// ExecuteRound bulk-transitions the round's waiting matches to running, then
// evaluates every match concurrently. Each match settles independently: one
// failure never blocks or fails its siblings. Failures are counted, not
// propagated.
func (s *EvaluationService) ExecuteRound(ctx context.Context, eventID string, roundNumber int) (RoundExecution, error) {
	cfg, ok := rounds.Get(roundNumber)
	if !ok {
		return RoundExecution{}, ErrRoundContentMissing
	}

	flipped, err := s.matchRepo.MarkWaitingRunning(ctx, eventID, roundNumber)
	if err != nil {
		return RoundExecution{}, fmt.Errorf("failed to mark matches running: %w", err)
	}

	runningStatus := models.MatchStatusRunning
	matches, err := s.matchRepo.ListByRound(ctx, eventID, roundNumber, &runningStatus)
	if err != nil {
		return RoundExecution{}, fmt.Errorf("failed to list running matches: %w", err)
	}

	s.logger.Info("executing round matches",
		slog.String("event_id", eventID),
		slog.Int("round", roundNumber),
		slog.Int("flipped", flipped),
		slog.Int("matches", len(matches)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0
	for _, match := range matches {
		wg.Add(1)
		go func(match *models.Match) {
			defer wg.Done()
			if err := s.evaluateSettled(ctx, match, cfg); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				s.logger.Error("match evaluation failed",
					slog.Int("match_id", match.ID),
					slog.Any("error", err))
			}
		}(match)
	}
	wg.Wait()

	return RoundExecution{Evaluated: len(matches), Failed: failed}, nil
}

// evaluateSettled guarantees the match reaches a terminal state even if the
// evaluation panics.
func (s *EvaluationService) evaluateSettled(ctx context.Context, match *models.Match, cfg rounds.Config) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("evaluation panicked: %v", rec)
			s.forceFailureOutcome(ctx, match, err)
		}
	}()
	return s.EvaluateMatch(ctx, match, cfg)
}

// EvaluateMatch resolves one match. Byes are already resolved at generation.
// Teams without a registered endpoint lose by default without any external
// call; otherwise both endpoints are fetched concurrently and judged once.
func (s *EvaluationService) EvaluateMatch(ctx context.Context, match *models.Match, cfg rounds.Config) error {
	if match.IsBye() {
		return nil
	}

	subA, err := s.lookupSubmission(ctx, match.TeamAID, match.EventID)
	if err != nil {
		s.forceFailureOutcome(ctx, match, err)
		return err
	}
	subB, err := s.lookupSubmission(ctx, *match.TeamBID, match.EventID)
	if err != nil {
		s.forceFailureOutcome(ctx, match, err)
		return err
	}

	if !subA.HasEndpoint() || !subB.HasEndpoint() {
		return s.resolveMissingEndpoints(ctx, match, subA.HasEndpoint(), subB.HasEndpoint())
	}

	var resultA, resultB fetcher.Result
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resultA = s.fetcher.FetchAnswers(gCtx, *subA.EndpointURL, cfg.Document, cfg.Questions, cfg.FetchTimeout)
		return nil
	})
	g.Go(func() error {
		resultB = s.fetcher.FetchAnswers(gCtx, *subB.EndpointURL, cfg.Document, cfg.Questions, cfg.FetchTimeout)
		return nil
	})
	// Fetches never fail; the group only synchronizes the pair.
	_ = g.Wait()

	verdict, err := s.judge.Evaluate(ctx, judge.Request{
		Context:        cfg.Context,
		Questions:      cfg.Questions,
		GroundTruths:   cfg.GroundTruths,
		TeamAID:        match.TeamAID,
		TeamBID:        *match.TeamBID,
		TeamAAnswers:   resultA.Answers,
		TeamBAnswers:   resultB.Answers,
		TeamALatencyMS: resultA.LatencyMS,
		TeamBLatencyMS: resultB.LatencyMS,
	})
	if err != nil {
		s.forceFailureOutcome(ctx, match, err)
		return err
	}

	result := models.ResultDraw
	switch verdict.Winner {
	case match.TeamAID:
		result = models.ResultTeamAWin
	case *match.TeamBID:
		result = models.ResultTeamBWin
	}

	teamAScores := verdict.TeamA
	teamBScores := verdict.TeamB
	analysis := verdict.Analysis
	match.TeamAScores = &teamAScores
	match.TeamBScores = &teamBScores
	match.TeamALatencyMS = resultA.LatencyMS
	match.TeamBLatencyMS = resultB.LatencyMS
	match.ScoreA = teamAScores.Score
	match.ScoreB = teamBScores.Score
	match.Result = &result
	match.Verdict = &analysis
	match.Status = models.MatchStatusCompleted

	return s.persistOutcome(ctx, match)
}

func (s *EvaluationService) lookupSubmission(ctx context.Context, teamID, eventID string) (*models.Submission, error) {
	sub, err := s.submissionRepo.GetByTeamAndEvent(ctx, teamID, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			// No submission record at all behaves like a missing endpoint.
			return &models.Submission{TeamID: teamID, EventID: eventID}, nil
		}
		return nil, fmt.Errorf("failed to look up submission for team %s: %w", teamID, err)
	}
	return sub, nil
}

// resolveMissingEndpoints settles a match deterministically when one or both
// teams never registered an endpoint. No external service is called.
func (s *EvaluationService) resolveMissingEndpoints(ctx context.Context, match *models.Match, aHas, bHas bool) error {
	var result models.MatchResult
	var verdict string
	switch {
	case !aHas && !bHas:
		result = models.ResultDraw
		verdict = "Neither team registered an API endpoint; the match is a scoreless draw."
	case !aHas:
		result = models.ResultTeamBWin
		match.ScoreB = ByeScore
		verdict = fmt.Sprintf("%s has no registered API endpoint; automatic win for %s.", match.TeamAName, match.TeamBName)
	default:
		result = models.ResultTeamAWin
		match.ScoreA = ByeScore
		verdict = fmt.Sprintf("%s has no registered API endpoint; automatic win for %s.", match.TeamBName, match.TeamAName)
	}

	match.Result = &result
	match.Verdict = &verdict
	match.Status = models.MatchStatusCompleted
	return s.persistOutcome(ctx, match)
}

// forceFailureOutcome drives a failed evaluation to a deterministic terminal
// state: both scores zero, a draw, and a verdict explaining what went wrong.
// The round can then always complete.
func (s *EvaluationService) forceFailureOutcome(ctx context.Context, match *models.Match, cause error) {
	metrics.EvaluationFailures.Inc()

	result := models.ResultDraw
	verdict := fmt.Sprintf("Evaluation failed, match scored as a 0-0 draw: %v", cause)
	match.TeamAScores = nil
	match.TeamBScores = nil
	match.ScoreA = 0
	match.ScoreB = 0
	match.Result = &result
	match.Verdict = &verdict
	match.Status = models.MatchStatusCompleted

	if err := s.persistOutcome(ctx, match); err != nil {
		s.logger.Error("failed to persist penalty outcome",
			slog.Int("match_id", match.ID),
			slog.Any("error", err))
	}
}

func (s *EvaluationService) persistOutcome(ctx context.Context, match *models.Match) error {
	if err := s.matchRepo.UpdateOutcome(ctx, match); err != nil {
		return fmt.Errorf("failed to persist outcome of match %d: %w", match.ID, err)
	}
	if err := s.ledger.ApplyMatchOutcome(ctx, match); err != nil {
		return err
	}

	metrics.MatchesEvaluated.WithLabelValues(string(*match.Result)).Inc()
	s.hub.Broadcast(match.EventID, live.Message{
		Type:    live.MessageMatchCompleted,
		Payload: match,
	})
	return nil
}

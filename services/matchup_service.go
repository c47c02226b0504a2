package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/promptclash/arena/models"
	"github.com/promptclash/arena/repositories"
)

// ByeScore is the automatic score credited to a team left unpaired by an odd
// pool, and to the present team when its opponent has no endpoint.
const ByeScore = 10

const byeVerdict = "Automatic win: no opponent available (bye)."

// MatchupService computes the pairings for a round. Round 1 draws from the
// shortlist pool; later rounds pair Swiss-style within equal-win pools. Teams
// are shuffled uniformly within each pool, so pairings are random but always
// between similarly performing teams.
type MatchupService struct {
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	submissionRepo repositories.SubmissionRepository
	progressRepo   repositories.ProgressRepository
	ledger         *ProgressService
	logger         *slog.Logger

	// shuffle is swappable for deterministic tests; defaults to rand.Shuffle.
	shuffle func(n int, swap func(i, j int))
}

func NewMatchupService(
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	submissionRepo repositories.SubmissionRepository,
	progressRepo repositories.ProgressRepository,
	ledger *ProgressService,
	logger *slog.Logger,
) *MatchupService {
	return &MatchupService{
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		submissionRepo: submissionRepo,
		progressRepo:   progressRepo,
		ledger:         ledger,
		logger:         logger,
		shuffle:        rand.Shuffle,
	}
}

type poolEntry struct {
	teamID   string
	teamName string
}

// Generate creates all matches for a pending round in one atomic insert and
// returns the number created. The last team of an odd pool receives a bye,
// resolved and ledger-credited immediately.
func (s *MatchupService) Generate(ctx context.Context, eventID string, roundNumber int) (int, error) {
	round, err := s.roundRepo.GetByEventAndNumber(ctx, eventID, roundNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return 0, ErrRoundNotFound
		}
		return 0, err
	}
	if round.Status != models.RoundStatusPending {
		return 0, ErrRoundNotPending
	}

	existing, err := s.matchRepo.CountByRound(ctx, eventID, roundNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches for round %d: %w", roundNumber, err)
	}
	if existing > 0 {
		return 0, ErrMatchupsAlreadyExist
	}

	var pool []poolEntry
	if roundNumber == 1 {
		pool, err = s.shortlistPool(ctx, eventID)
	} else {
		pool, err = s.swissPool(ctx, eventID)
	}
	if err != nil {
		return 0, err
	}
	if len(pool) == 0 {
		return 0, ErrNoEligibleTeams
	}

	matches := s.pair(pool, eventID, roundNumber)
	if err := s.matchRepo.CreateAll(ctx, matches); err != nil {
		return 0, fmt.Errorf("failed to persist matchups for round %d: %w", roundNumber, err)
	}

	for _, match := range matches {
		if !match.IsBye() {
			continue
		}
		if err := s.ledger.ApplyMatchOutcome(ctx, match); err != nil {
			return 0, fmt.Errorf("failed to credit bye for team %s: %w", match.TeamAID, err)
		}
		s.logger.Info("bye granted",
			slog.String("event_id", eventID),
			slog.Int("round", roundNumber),
			slog.String("team_id", match.TeamAID))
	}

	return len(matches), nil
}

// Clear deletes the matchups of a pending round so they can be regenerated.
// Bye ledger credits from the cleared matches are reversed first, so a
// clear-then-generate cycle cannot double-count.
func (s *MatchupService) Clear(ctx context.Context, eventID string, roundNumber int) error {
	round, err := s.roundRepo.GetByEventAndNumber(ctx, eventID, roundNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return ErrRoundNotFound
		}
		return err
	}
	if round.Status != models.RoundStatusPending {
		return ErrRoundNotPending
	}

	matches, err := s.matchRepo.ListByRound(ctx, eventID, roundNumber, nil)
	if err != nil {
		return fmt.Errorf("failed to list matches for round %d: %w", roundNumber, err)
	}
	for _, match := range matches {
		if !match.IsBye() {
			continue
		}
		if err := s.ledger.RevertByeCredit(ctx, match); err != nil {
			return fmt.Errorf("failed to revert bye credit for team %s: %w", match.TeamAID, err)
		}
	}

	return s.matchRepo.DeleteByRound(ctx, eventID, roundNumber)
}

// shortlistPool is the round-1 pool: every shortlisted submission, each seeded
// into the ledger on first appearance.
func (s *MatchupService) shortlistPool(ctx context.Context, eventID string) ([]poolEntry, error) {
	subs, err := s.submissionRepo.ListShortlisted(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shortlisted teams: %w", err)
	}

	pool := make([]poolEntry, 0, len(subs))
	for _, sub := range subs {
		if err := s.ledger.SeedTeam(ctx, sub.TeamID, eventID, sub.TeamName); err != nil {
			return nil, err
		}
		pool = append(pool, poolEntry{teamID: sub.TeamID, teamName: sub.TeamName})
	}
	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool, nil
}

// swissPool partitions active teams by win count, shuffles each win pool
// independently, and concatenates pools from most to fewest wins. Pairing
// consecutively afterwards keeps matches within equal records wherever the
// pool sizes allow.
func (s *MatchupService) swissPool(ctx context.Context, eventID string) ([]poolEntry, error) {
	records, err := s.progressRepo.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active teams: %w", err)
	}

	byWins := make(map[int][]poolEntry)
	for _, record := range records {
		byWins[record.Wins] = append(byWins[record.Wins],
			poolEntry{teamID: record.TeamID, teamName: record.TeamName})
	}

	winCounts := make([]int, 0, len(byWins))
	for wins := range byWins {
		winCounts = append(winCounts, wins)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(winCounts)))

	pool := make([]poolEntry, 0, len(records))
	for _, wins := range winCounts {
		group := byWins[wins]
		s.shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		pool = append(pool, group...)
	}
	return pool, nil
}

// pair turns the shuffled pool into ceil(len/2) matches: consecutive pairs
// plus, for an odd pool, a trailing bye resolved at creation.
func (s *MatchupService) pair(pool []poolEntry, eventID string, roundNumber int) []*models.Match {
	matches := make([]*models.Match, 0, (len(pool)+1)/2)
	for i := 0; i+1 < len(pool); i += 2 {
		teamB := pool[i+1]
		matches = append(matches, &models.Match{
			EventID:     eventID,
			RoundNumber: roundNumber,
			TeamAID:     pool[i].teamID,
			TeamAName:   pool[i].teamName,
			TeamBID:     &teamB.teamID,
			TeamBName:   teamB.teamName,
			Status:      models.MatchStatusWaiting,
		})
	}

	if len(pool)%2 == 1 {
		last := pool[len(pool)-1]
		result := models.ResultTeamAWin
		verdict := byeVerdict
		matches = append(matches, &models.Match{
			EventID:     eventID,
			RoundNumber: roundNumber,
			TeamAID:     last.teamID,
			TeamAName:   last.teamName,
			ScoreA:      ByeScore,
			ScoreB:      0,
			Result:      &result,
			Verdict:     &verdict,
			Status:      models.MatchStatusCompleted,
		})
	}
	return matches
}

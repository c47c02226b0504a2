package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/promptclash/arena/models"
)

var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchRoundInvalid = errors.New("match round conflict or invalid")
)

type MatchRepository interface {
	CreateAll(ctx context.Context, matches []*models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByRound(ctx context.Context, eventID string, roundNumber int, statusFilter *models.MatchStatus) ([]*models.Match, error)
	CountByRound(ctx context.Context, eventID string, roundNumber int) (int, error)
	CountUnfinishedByRound(ctx context.Context, eventID string, roundNumber int) (int, error)
	CountsByEvent(ctx context.Context, eventID string) (map[int]models.RoundMatchCounts, error)
	MarkWaitingRunning(ctx context.Context, eventID string, roundNumber int) (int, error)
	UpdateOutcome(ctx context.Context, match *models.Match) error
	DeleteByRound(ctx context.Context, eventID string, roundNumber int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `
	id, event_id, round_number, team_a_id, team_b_id, team_a_name, team_b_name,
	team_a_scores, team_b_scores, team_a_latency_ms, team_b_latency_ms,
	score_a, score_b, result, verdict, status, created_at`

// CreateAll persists a full set of pairings atomically: a round either has all
// its matches or none.
func (r *postgresMatchRepository) CreateAll(ctx context.Context, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO matches
			(event_id, round_number, team_a_id, team_b_id, team_a_name, team_b_name,
			 score_a, score_b, result, verdict, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	for _, match := range matches {
		err := tx.QueryRowContext(ctx, query,
			match.EventID, match.RoundNumber, match.TeamAID, match.TeamBID,
			match.TeamAName, match.TeamBName,
			match.ScoreA, match.ScoreB, match.Result, match.Verdict, match.Status,
		).Scan(&match.ID, &match.CreatedAt)
		if err != nil {
			return r.handleMatchError(err)
		}
	}

	return tx.Commit()
}

// nullJudgeScores scans a nullable jsonb column into an optional JudgeScores.
type nullJudgeScores struct {
	scores *models.JudgeScores
}

func (n *nullJudgeScores) Scan(src interface{}) error {
	if src == nil {
		n.scores = nil
		return nil
	}
	var js models.JudgeScores
	if err := js.Scan(src); err != nil {
		return err
	}
	n.scores = &js
	return nil
}

func scanMatch(scanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	match := &models.Match{}
	var aScores, bScores nullJudgeScores
	var result sql.NullString
	err := scanner.Scan(
		&match.ID, &match.EventID, &match.RoundNumber,
		&match.TeamAID, &match.TeamBID, &match.TeamAName, &match.TeamBName,
		&aScores, &bScores,
		&match.TeamALatencyMS, &match.TeamBLatencyMS,
		&match.ScoreA, &match.ScoreB, &result, &match.Verdict,
		&match.Status, &match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	match.TeamAScores = aScores.scores
	match.TeamBScores = bScores.scores
	if result.Valid {
		mr := models.MatchResult(result.String)
		match.Result = &mr
	}
	return match, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`
	return scanMatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) ListByRound(ctx context.Context, eventID string, roundNumber int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + `
		FROM matches
		WHERE event_id = $1 AND round_number = $2`)

	args := []interface{}{eventID, roundNumber}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(len(args) + 1))
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) CountByRound(ctx context.Context, eventID string, roundNumber int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE event_id = $1 AND round_number = $2`,
		eventID, roundNumber).Scan(&count)
	return count, err
}

func (r *postgresMatchRepository) CountUnfinishedByRound(ctx context.Context, eventID string, roundNumber int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE event_id = $1 AND round_number = $2 AND status <> $3`,
		eventID, roundNumber, models.MatchStatusCompleted).Scan(&count)
	return count, err
}

// CountsByEvent returns per-round total/completed/running aggregates in one query.
func (r *postgresMatchRepository) CountsByEvent(ctx context.Context, eventID string) (map[int]models.RoundMatchCounts, error) {
	query := `
		SELECT round_number,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = $2),
		       COUNT(*) FILTER (WHERE status = $3)
		FROM matches
		WHERE event_id = $1
		GROUP BY round_number`

	rows, err := r.db.QueryContext(ctx, query, eventID,
		models.MatchStatusCompleted, models.MatchStatusRunning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]models.RoundMatchCounts)
	for rows.Next() {
		var roundNumber int
		var c models.RoundMatchCounts
		if scanErr := rows.Scan(&roundNumber, &c.Total, &c.Completed, &c.Running); scanErr != nil {
			return nil, scanErr
		}
		counts[roundNumber] = c
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// MarkWaitingRunning bulk-transitions every waiting match of the round to
// running and reports how many were flipped.
func (r *postgresMatchRepository) MarkWaitingRunning(ctx context.Context, eventID string, roundNumber int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = $1 WHERE event_id = $2 AND round_number = $3 AND status = $4`,
		models.MatchStatusRunning, eventID, roundNumber, models.MatchStatusWaiting)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return int(affected), nil
}

// UpdateOutcome persists the terminal state of an evaluated match.
func (r *postgresMatchRepository) UpdateOutcome(ctx context.Context, match *models.Match) error {
	query := `
		UPDATE matches
		SET team_a_scores = $1, team_b_scores = $2,
		    team_a_latency_ms = $3, team_b_latency_ms = $4,
		    score_a = $5, score_b = $6, result = $7, verdict = $8, status = $9
		WHERE id = $10`

	result, err := r.db.ExecContext(ctx, query,
		match.TeamAScores, match.TeamBScores,
		match.TeamALatencyMS, match.TeamBLatencyMS,
		match.ScoreA, match.ScoreB, match.Result, match.Verdict, match.Status,
		match.ID)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) DeleteByRound(ctx context.Context, eventID string, roundNumber int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM matches WHERE event_id = $1 AND round_number = $2`,
		eventID, roundNumber)
	return err
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" { // foreign_key_violation
			if pqErr.Constraint == "matches_event_round_fkey" {
				return ErrMatchRoundInvalid
			}
		}
	}
	return err
}

package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/promptclash/arena/models"
)

var ErrProgressNotFound = errors.New("team progress not found")

// ProgressDelta is one additive ledger mutation for a (team, event) pair.
// Counters are incremented, never overwritten, so concurrent updates for
// different matches commute. Record, when set, is appended to round_history;
// DropRound, when set, removes every history entry for that round (used to
// reverse bye credit when a pending round's matchups are cleared).
type ProgressDelta struct {
	TeamID      string
	EventID     string
	ScoreDelta  float64
	PointsDelta int
	WinsDelta   int
	LossesDelta int
	DrawsDelta  int
	Record      *models.RoundRecord
	DropRound   *int
}

type ProgressRepository interface {
	Seed(ctx context.Context, teamID, eventID, teamName string) error
	Apply(ctx context.Context, delta ProgressDelta) error
	GetByTeamAndEvent(ctx context.Context, teamID, eventID string) (*models.TeamProgress, error)
	ListActiveByEvent(ctx context.Context, eventID string) ([]*models.TeamProgress, error)
	ListByEventRanked(ctx context.Context, eventID string) ([]*models.TeamProgress, error)
}

type postgresProgressRepository struct {
	db *sql.DB
}

func NewPostgresProgressRepository(db *sql.DB) ProgressRepository {
	return &postgresProgressRepository{db: db}
}

// Seed creates a zeroed ledger record for a team's first appearance. A second
// call for the same (team, event) is a no-op.
func (r *postgresProgressRepository) Seed(ctx context.Context, teamID, eventID, teamName string) error {
	query := `
		INSERT INTO team_progress
			(team_id, event_id, team_name, total_score, points, wins, losses, draws, status, round_history, updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, 0, 0, $4, '[]'::jsonb, NOW())
		ON CONFLICT (team_id, event_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, teamID, eventID, teamName, models.ProgressStatusActive)
	if err != nil {
		return fmt.Errorf("failed to seed progress for team %s: %w", teamID, err)
	}
	return nil
}

func (r *postgresProgressRepository) Apply(ctx context.Context, delta ProgressDelta) error {
	historyExpr := "round_history"
	args := []interface{}{
		delta.ScoreDelta, delta.PointsDelta, delta.WinsDelta, delta.LossesDelta, delta.DrawsDelta,
	}

	switch {
	case delta.Record != nil:
		entry, err := json.Marshal(delta.Record)
		if err != nil {
			return fmt.Errorf("failed to marshal round record: %w", err)
		}
		args = append(args, entry)
		historyExpr = fmt.Sprintf("round_history || $%d::jsonb", len(args))
	case delta.DropRound != nil:
		args = append(args, *delta.DropRound)
		historyExpr = fmt.Sprintf(`COALESCE(
			(SELECT jsonb_agg(entry) FROM jsonb_array_elements(round_history) entry
			 WHERE (entry->>'round')::int <> $%d),
			'[]'::jsonb)`, len(args))
	}

	args = append(args, delta.TeamID, delta.EventID)
	query := fmt.Sprintf(`
		UPDATE team_progress
		SET total_score = total_score + $1,
		    points = points + $2,
		    wins = wins + $3,
		    losses = losses + $4,
		    draws = draws + $5,
		    round_history = %s,
		    updated_at = NOW()
		WHERE team_id = $%d AND event_id = $%d`,
		historyExpr, len(args)-1, len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrProgressNotFound)
}

func (r *postgresProgressRepository) scanProgress(scanner interface{ Scan(...interface{}) error }) (*models.TeamProgress, error) {
	p := &models.TeamProgress{}
	err := scanner.Scan(
		&p.ID, &p.TeamID, &p.EventID, &p.TeamName,
		&p.TotalScore, &p.Points, &p.Wins, &p.Losses, &p.Draws,
		&p.Status, &p.History, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, err
	}
	return p, nil
}

const progressColumns = `
	id, team_id, event_id, team_name, total_score, points, wins, losses, draws,
	status, round_history, updated_at`

func (r *postgresProgressRepository) GetByTeamAndEvent(ctx context.Context, teamID, eventID string) (*models.TeamProgress, error) {
	query := `SELECT` + progressColumns + ` FROM team_progress WHERE team_id = $1 AND event_id = $2`
	return r.scanProgress(r.db.QueryRowContext(ctx, query, teamID, eventID))
}

func (r *postgresProgressRepository) listByQuery(ctx context.Context, query string, args ...interface{}) ([]*models.TeamProgress, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*models.TeamProgress, 0)
	for rows.Next() {
		p, scanErr := r.scanProgress(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *postgresProgressRepository) ListActiveByEvent(ctx context.Context, eventID string) ([]*models.TeamProgress, error) {
	query := `SELECT` + progressColumns + `
		FROM team_progress
		WHERE event_id = $1 AND status = $2
		ORDER BY team_id ASC`
	return r.listByQuery(ctx, query, eventID, models.ProgressStatusActive)
}

// ListByEventRanked orders the leaderboard by points, then wins, then total
// judge score, with team_id as a stable tiebreak.
func (r *postgresProgressRepository) ListByEventRanked(ctx context.Context, eventID string) ([]*models.TeamProgress, error) {
	query := `SELECT` + progressColumns + `
		FROM team_progress
		WHERE event_id = $1
		ORDER BY points DESC, wins DESC, total_score DESC, team_id ASC`
	return r.listByQuery(ctx, query, eventID)
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/promptclash/arena/models"
)

var (
	ErrRoundNotFound = errors.New("round not found")
	// ErrRoundStatusConflict is returned when a conditional status transition
	// matched no row: the round is absent or another caller moved it first.
	ErrRoundStatusConflict = errors.New("round status conflict")
)

type RoundRepository interface {
	CountByEvent(ctx context.Context, eventID string) (int, error)
	CreateAll(ctx context.Context, rounds []*models.Round) error
	GetByEventAndNumber(ctx context.Context, eventID string, number int) (*models.Round, error)
	ListByEvent(ctx context.Context, eventID string) ([]*models.Round, error)
	MarkRunning(ctx context.Context, eventID string, number int) error
	MarkCompleted(ctx context.Context, eventID string, number int) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rounds WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rounds for event %s: %w", eventID, err)
	}
	return count, nil
}

// CreateAll inserts every round in a single transaction: either the full set of
// rounds exists afterwards or none do.
func (r *postgresRoundRepository) CreateAll(ctx context.Context, rounds []*models.Round) error {
	if len(rounds) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO rounds (event_id, round_number, name, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	for _, round := range rounds {
		err := tx.QueryRowContext(ctx, query,
			round.EventID, round.RoundNumber, round.Name, round.Status,
		).Scan(&round.ID, &round.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert round %d: %w", round.RoundNumber, err)
		}
	}

	return tx.Commit()
}

func (r *postgresRoundRepository) scanRound(row *sql.Row) (*models.Round, error) {
	round := &models.Round{}
	err := row.Scan(
		&round.ID, &round.EventID, &round.RoundNumber, &round.Name,
		&round.Status, &round.StartedAt, &round.CompletedAt, &round.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return round, nil
}

func (r *postgresRoundRepository) GetByEventAndNumber(ctx context.Context, eventID string, number int) (*models.Round, error) {
	query := `
		SELECT id, event_id, round_number, name, status, started_at, completed_at, created_at
		FROM rounds
		WHERE event_id = $1 AND round_number = $2`
	return r.scanRound(r.db.QueryRowContext(ctx, query, eventID, number))
}

func (r *postgresRoundRepository) ListByEvent(ctx context.Context, eventID string) ([]*models.Round, error) {
	query := `
		SELECT id, event_id, round_number, name, status, started_at, completed_at, created_at
		FROM rounds
		WHERE event_id = $1
		ORDER BY round_number ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roundsList := make([]*models.Round, 0)
	for rows.Next() {
		round := &models.Round{}
		if scanErr := rows.Scan(
			&round.ID, &round.EventID, &round.RoundNumber, &round.Name,
			&round.Status, &round.StartedAt, &round.CompletedAt, &round.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		roundsList = append(roundsList, round)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return roundsList, nil
}

// MarkRunning flips pending -> running as one conditional update. A racing
// second caller matches no row and gets ErrRoundStatusConflict.
func (r *postgresRoundRepository) MarkRunning(ctx context.Context, eventID string, number int) error {
	query := `
		UPDATE rounds
		SET status = $1, started_at = NOW()
		WHERE event_id = $2 AND round_number = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query,
		models.RoundStatusRunning, eventID, number, models.RoundStatusPending)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoundStatusConflict)
}

// MarkCompleted flips running -> completed, also as a single conditional update.
func (r *postgresRoundRepository) MarkCompleted(ctx context.Context, eventID string, number int) error {
	query := `
		UPDATE rounds
		SET status = $1, completed_at = NOW()
		WHERE event_id = $2 AND round_number = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query,
		models.RoundStatusCompleted, eventID, number, models.RoundStatusRunning)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoundStatusConflict)
}

package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/promptclash/arena/models"
)

var ErrEventNotFound = errors.New("event not found")

// EventRepository reads the collaborator-owned events table.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT id, name, scoreboard_visible FROM events WHERE id = $1`

	event := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&event.ID, &event.Name, &event.ScoreboardVisible)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

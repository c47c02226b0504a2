package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/promptclash/arena/models"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository reads the collaborator-owned submissions table; this
// service never writes to it.
type SubmissionRepository interface {
	GetByTeamAndEvent(ctx context.Context, teamID, eventID string) (*models.Submission, error)
	ListShortlisted(ctx context.Context, eventID string) ([]*models.Submission, error)
}

type postgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &postgresSubmissionRepository{db: db}
}

func (r *postgresSubmissionRepository) GetByTeamAndEvent(ctx context.Context, teamID, eventID string) (*models.Submission, error) {
	query := `
		SELECT team_id, event_id, team_name, endpoint_url, shortlist_status
		FROM submissions
		WHERE team_id = $1 AND event_id = $2`

	sub := &models.Submission{}
	err := r.db.QueryRowContext(ctx, query, teamID, eventID).Scan(
		&sub.TeamID, &sub.EventID, &sub.TeamName, &sub.EndpointURL, &sub.ShortlistStatus,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (r *postgresSubmissionRepository) ListShortlisted(ctx context.Context, eventID string) ([]*models.Submission, error) {
	query := `
		SELECT team_id, event_id, team_name, endpoint_url, shortlist_status
		FROM submissions
		WHERE event_id = $1 AND shortlist_status = $2
		ORDER BY team_id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID, models.ShortlistStatusShortlisted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]*models.Submission, 0)
	for rows.Next() {
		sub := &models.Submission{}
		if scanErr := rows.Scan(
			&sub.TeamID, &sub.EventID, &sub.TeamName, &sub.EndpointURL, &sub.ShortlistStatus,
		); scanErr != nil {
			return nil, scanErr
		}
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/promptclash/arena/models"
	"github.com/promptclash/arena/storage"
)

// ResultArchiver uploads a completed round's full match list to the object
// store for audit. The archive is write-only from this service's perspective.
type ResultArchiver struct {
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewResultArchiver(uploader storage.FileUploader, logger *slog.Logger) *ResultArchiver {
	return &ResultArchiver{uploader: uploader, logger: logger}
}

type roundArchive struct {
	EventID     string          `json:"event_id"`
	RoundNumber int             `json:"round_number"`
	ArchivedAt  time.Time       `json:"archived_at"`
	Matches     []*models.Match `json:"matches"`
}

// ArchiveRound serializes the round's matches and uploads them under a unique
// key. It returns the public location of the archive.
func (a *ResultArchiver) ArchiveRound(ctx context.Context, eventID string, roundNumber int, matches []*models.Match) (string, error) {
	payload, err := json.Marshal(roundArchive{
		EventID:     eventID,
		RoundNumber: roundNumber,
		ArchivedAt:  time.Now().UTC(),
		Matches:     matches,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal round archive: %w", err)
	}

	key := fmt.Sprintf("events/%s/rounds/%d/results-%s.json", eventID, roundNumber, uuid.NewString())
	result, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to upload round archive: %w", err)
	}
	return result.Location, nil
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/promptclash/arena/middleware"
	"github.com/promptclash/arena/repositories"
	"github.com/promptclash/arena/services"
)

type TournamentHandler struct {
	tournaments *services.TournamentService
	matchups    *services.MatchupService
	progress    *services.ProgressService
	eventRepo   repositories.EventRepository
}

func NewTournamentHandler(
	tournaments *services.TournamentService,
	matchups *services.MatchupService,
	progress *services.ProgressService,
	eventRepo repositories.EventRepository,
) *TournamentHandler {
	return &TournamentHandler{
		tournaments: tournaments,
		matchups:    matchups,
		progress:    progress,
		eventRepo:   eventRepo,
	}
}

type eventInput struct {
	EventID string `json:"event_id"`
}

func (in eventInput) validate() error {
	if in.EventID == "" {
		return errors.New("event_id is required")
	}
	return nil
}

// InitializeRoundsHandler handles POST /tournament/rounds/initialize.
func (h *TournamentHandler) InitializeRoundsHandler(w http.ResponseWriter, r *http.Request) {
	var input eventInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := input.validate(); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rounds, err := h.tournaments.InitializeRounds(r.Context(), input.EventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"rounds": rounds}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListRoundsHandler handles GET /tournament/rounds.
func (h *TournamentHandler) ListRoundsHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rounds, err := h.tournaments.ListRounds(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rounds": rounds}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListRoundMatchesHandler handles GET /tournament/rounds/{roundNumber}/matches.
func (h *TournamentHandler) ListRoundMatchesHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundNumber, err := roundNumberFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.tournaments.ListRoundMatches(r.Context(), eventID, roundNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateMatchupsHandler handles POST /tournament/rounds/{roundNumber}/generate.
func (h *TournamentHandler) GenerateMatchupsHandler(w http.ResponseWriter, r *http.Request) {
	roundNumber, err := roundNumberFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input eventInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := input.validate(); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	created, err := h.matchups.Generate(r.Context(), input.EventID, roundNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"matches_created": created}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ClearMatchupsHandler handles DELETE /tournament/rounds/{roundNumber}/clear.
func (h *TournamentHandler) ClearMatchupsHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundNumber, err := roundNumberFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchups.Clear(r.Context(), eventID, roundNumber); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"cleared": true}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartRoundHandler handles POST /tournament/rounds/{roundNumber}/start. The
// evaluation itself runs in the background; the response only confirms the
// round transitioned to running.
func (h *TournamentHandler) StartRoundHandler(w http.ResponseWriter, r *http.Request) {
	roundNumber, err := roundNumberFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input eventInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := input.validate(); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.tournaments.StartRound(r.Context(), input.EventID, roundNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusAccepted, jsonResponse{
		"round_number":    roundNumber,
		"status":          "running",
		"matches_started": matches,
	}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// TeamProgressHandler handles GET /tournament/team-progress/{teamID}.
func (h *TournamentHandler) TeamProgressHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	teamID := chi.URLParam(r, "teamID")
	if teamID == "" {
		badRequestResponse(w, r, errors.New("missing teamID"))
		return
	}

	progress, err := h.progress.GetTeamProgress(r.Context(), teamID, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"progress": progress}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LeaderboardHandler handles GET /tournament/leaderboard. When the event's
// scoreboard is hidden, non-admin callers get a hidden marker instead of the
// standings.
func (h *TournamentHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.eventRepo.GetByID(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			notFoundResponse(w, r)
			return
		}
		serverErrorResponse(w, r, err)
		return
	}

	role := middleware.GetRoleFromContext(r.Context())
	if !event.ScoreboardVisible && role != middleware.RoleAdmin {
		if err := writeJSON(w, http.StatusOK, jsonResponse{"hidden": true}, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}

	leaderboard, err := h.progress.Leaderboard(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"hidden": false, "leaderboard": leaderboard}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

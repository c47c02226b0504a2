package services

import "errors"

// Sentinel errors shared across services and mapped to HTTP statuses in the
// handlers layer. Precondition violations mutate nothing.
var (
	// Not-found failures
	ErrRoundNotFound    = errors.New("round not found")
	ErrEventNotFound    = errors.New("event not found")
	ErrProgressNotFound = errors.New("team progress not found")

	// Lifecycle preconditions
	ErrRoundsAlreadyInitialized = errors.New("rounds already initialized for this event")
	ErrRoundNotPending          = errors.New("round is not in pending status")
	ErrPreviousRoundIncomplete  = errors.New("previous round must be completed first")
	ErrNoWaitingMatches         = errors.New("no waiting matches for this round, generate matchups first")

	// Matchup generation preconditions
	ErrMatchupsAlreadyExist = errors.New("matchups already exist for this round, clear them first")
	ErrNoEligibleTeams      = errors.New("no eligible teams for this round")

	// Round content
	ErrRoundContentMissing = errors.New("no content configured for this round")
)

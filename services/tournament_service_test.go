package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptclash/arena/judge"
	"github.com/promptclash/arena/live"
	"github.com/promptclash/arena/models"
)

type lifecycleFixture struct {
	svc       *TournamentService
	roundRepo *fakeRoundRepo
	matchRepo *fakeMatchRepo
	runner    *Runner
	hub       *recordingBroadcaster
	judge     *stubJudge
	eval      *evalFixture
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	eval := newEvalFixture(t)
	hub := &recordingBroadcaster{}
	runner := NewRunner(testLogger())
	svc := NewTournamentService(newFakeRoundRepo(), eval.matchRepo, eval.svc, runner, hub, nil, testLogger())
	return &lifecycleFixture{
		svc:       svc,
		roundRepo: svc.roundRepo.(*fakeRoundRepo),
		matchRepo: eval.matchRepo,
		runner:    runner,
		hub:       hub,
		judge:     eval.judge,
		eval:      eval,
	}
}

func TestInitializeRoundsCreatesFive(t *testing.T) {
	f := newLifecycleFixture(t)

	created, err := f.svc.InitializeRounds(context.Background(), testEvent)
	require.NoError(t, err)
	require.Len(t, created, models.TotalRounds)

	listed, err := f.roundRepo.ListByEvent(context.Background(), testEvent)
	require.NoError(t, err)
	require.Len(t, listed, models.TotalRounds)
	assert.Equal(t, "Qualifiers", listed[0].Name)
	assert.Equal(t, "Grand Final", listed[4].Name)
	for i, round := range listed {
		assert.Equal(t, i+1, round.RoundNumber)
		assert.Equal(t, models.RoundStatusPending, round.Status)
	}
}

func TestInitializeRoundsRejectsSecondCall(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.svc.InitializeRounds(context.Background(), testEvent)
	require.NoError(t, err)

	_, err = f.svc.InitializeRounds(context.Background(), testEvent)
	assert.ErrorIs(t, err, ErrRoundsAlreadyInitialized)
}

func TestStartRoundRequiresWaitingMatches(t *testing.T) {
	f := newLifecycleFixture(t)
	_, err := f.svc.InitializeRounds(context.Background(), testEvent)
	require.NoError(t, err)

	_, err = f.svc.StartRound(context.Background(), testEvent, 1)
	assert.ErrorIs(t, err, ErrNoWaitingMatches)
}

func TestStartRoundRequiresPreviousCompleted(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	_, err := f.svc.InitializeRounds(ctx, testEvent)
	require.NoError(t, err)

	teamB := "t2"
	require.NoError(t, f.matchRepo.CreateAll(ctx, []*models.Match{{
		EventID: testEvent, RoundNumber: 2,
		TeamAID: "t1", TeamBID: &teamB,
		Status: models.MatchStatusWaiting,
	}}))

	_, err = f.svc.StartRound(ctx, testEvent, 2)
	assert.ErrorIs(t, err, ErrPreviousRoundIncomplete)
}

func TestStartRoundRejectsNonPending(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	_, err := f.svc.InitializeRounds(ctx, testEvent)
	require.NoError(t, err)
	require.NoError(t, f.roundRepo.MarkRunning(ctx, testEvent, 1))

	_, err = f.svc.StartRound(ctx, testEvent, 1)
	assert.ErrorIs(t, err, ErrRoundNotPending)
}

func TestStartRoundUnknownRound(t *testing.T) {
	f := newLifecycleFixture(t)
	_, err := f.svc.StartRound(context.Background(), testEvent, 1)
	assert.ErrorIs(t, err, ErrRoundNotFound)
}

func TestStartRoundRunsToCompletion(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	_, err := f.svc.InitializeRounds(ctx, testEvent)
	require.NoError(t, err)

	for _, teamID := range []string{"alpha", "beta"} {
		f.eval.seedTeam(t, teamID, endpointFor(teamID))
	}
	f.eval.seedMatch(t, "alpha", "beta")

	f.judge.evaluate = func(_ context.Context, req judge.Request) (*judge.Verdict, error) {
		return &judge.Verdict{
			TeamA: scoresOf(8), TeamB: scoresOf(3),
			Winner: req.TeamAID, Analysis: "decisive",
		}, nil
	}

	started, err := f.svc.StartRound(ctx, testEvent, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	// The evaluation fan-out runs in the background; drain it.
	require.True(t, f.runner.Wait(5*time.Second))

	round, err := f.roundRepo.GetByEventAndNumber(ctx, testEvent, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusCompleted, round.Status)

	assert.Len(t, f.hub.ofType(live.MessageRoundStarted), 1)
	assert.Len(t, f.hub.ofType(live.MessageRoundCompleted), 1)
}

func TestRoundCompletesDespiteJudgeOutage(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	_, err := f.svc.InitializeRounds(ctx, testEvent)
	require.NoError(t, err)

	for _, teamID := range []string{"alpha", "beta", "gamma", "delta"} {
		f.eval.seedTeam(t, teamID, endpointFor(teamID))
	}
	f.eval.seedMatch(t, "alpha", "beta")
	f.eval.seedMatch(t, "gamma", "delta")

	// Every judge call fails; the penalty path must still finish the round.
	f.judge.evaluate = func(_ context.Context, _ judge.Request) (*judge.Verdict, error) {
		return nil, assert.AnError
	}

	_, err = f.svc.StartRound(ctx, testEvent, 1)
	require.NoError(t, err)
	require.True(t, f.runner.Wait(5*time.Second))

	round, err := f.roundRepo.GetByEventAndNumber(ctx, testEvent, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusCompleted, round.Status)

	matches, err := f.matchRepo.ListByRound(ctx, testEvent, 1, nil)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, models.MatchStatusCompleted, m.Status)
		require.NotNil(t, m.Result)
		assert.Equal(t, models.ResultDraw, *m.Result)
	}
}

func TestListRoundsIncludesMatchCounts(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	_, err := f.svc.InitializeRounds(ctx, testEvent)
	require.NoError(t, err)

	teamB := "t2"
	require.NoError(t, f.matchRepo.CreateAll(ctx, []*models.Match{
		{EventID: testEvent, RoundNumber: 1, TeamAID: "t1", TeamBID: &teamB, Status: models.MatchStatusCompleted},
		{EventID: testEvent, RoundNumber: 1, TeamAID: "t3", TeamBID: &teamB, Status: models.MatchStatusWaiting},
	}))

	summaries, err := f.svc.ListRounds(ctx, testEvent)
	require.NoError(t, err)
	require.Len(t, summaries, models.TotalRounds)

	assert.Equal(t, 2, summaries[0].Matches.Total)
	assert.Equal(t, 1, summaries[0].Matches.Completed)
	assert.Zero(t, summaries[1].Matches.Total)
}

func TestListRoundMatchesUnknownRound(t *testing.T) {
	f := newLifecycleFixture(t)
	_, err := f.svc.ListRoundMatches(context.Background(), testEvent, 1)
	assert.ErrorIs(t, err, ErrRoundNotFound)
}

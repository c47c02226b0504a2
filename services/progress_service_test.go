package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptclash/arena/models"
)

func TestApplyMatchOutcomeRecordsBothSides(t *testing.T) {
	repo := newFakeProgressRepo()
	svc := NewProgressService(repo, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.SeedTeam(ctx, "alpha", testEvent, "Team alpha"))
	require.NoError(t, svc.SeedTeam(ctx, "beta", testEvent, "Team beta"))

	teamB := "beta"
	result := models.ResultTeamBWin
	verdict := "Beta was sharper."
	match := &models.Match{
		ID: 1, EventID: testEvent, RoundNumber: 2,
		TeamAID: "alpha", TeamBID: &teamB,
		TeamAName: "Team alpha", TeamBName: "Team beta",
		ScoreA: 4.5, ScoreB: 8.0,
		Result: &result, Verdict: &verdict,
		Status: models.MatchStatusCompleted,
	}
	require.NoError(t, svc.ApplyMatchOutcome(ctx, match))

	alpha, err := repo.GetByTeamAndEvent(ctx, "alpha", testEvent)
	require.NoError(t, err)
	assert.Equal(t, PointsLoss, alpha.Points)
	assert.Equal(t, 1, alpha.Losses)
	assert.Equal(t, 4.5, alpha.TotalScore)
	require.Len(t, alpha.History, 1)
	assert.Equal(t, "loss", alpha.History[0].Result)
	assert.Equal(t, 8.0, alpha.History[0].OpponentScore)
	assert.Equal(t, "Team beta", alpha.History[0].Opponent)
	assert.Equal(t, verdict, alpha.History[0].Verdict)

	beta, err := repo.GetByTeamAndEvent(ctx, "beta", testEvent)
	require.NoError(t, err)
	assert.Equal(t, PointsWin, beta.Points)
	assert.Equal(t, 1, beta.Wins)
	assert.Equal(t, 8.0, beta.TotalScore)
	require.Len(t, beta.History, 1)
	assert.Equal(t, "win", beta.History[0].Result)
	assert.Equal(t, PointsWin, beta.History[0].Points)
}

func TestApplyMatchOutcomeRequiresResult(t *testing.T) {
	svc := NewProgressService(newFakeProgressRepo(), testLogger())
	teamB := "beta"
	err := svc.ApplyMatchOutcome(context.Background(), &models.Match{
		ID: 7, TeamAID: "alpha", TeamBID: &teamB,
	})
	assert.Error(t, err)
}

func TestRevertByeCreditRejectsRegularMatch(t *testing.T) {
	svc := NewProgressService(newFakeProgressRepo(), testLogger())
	teamB := "beta"
	err := svc.RevertByeCredit(context.Background(), &models.Match{ID: 3, TeamBID: &teamB})
	assert.Error(t, err)
}

func TestLeaderboardOrdering(t *testing.T) {
	repo := newFakeProgressRepo()
	svc := NewProgressService(repo, testLogger())
	ctx := context.Background()

	seed := func(teamID string, points, wins int, score float64) {
		require.NoError(t, repo.Seed(ctx, teamID, testEvent, "Team "+teamID))
		record := repo.records[progressKey(teamID, testEvent)]
		record.Points = points
		record.Wins = wins
		record.TotalScore = score
	}

	seed("low", 2, 1, 12)
	seed("top", 6, 3, 40)
	seed("mid-b", 4, 2, 30)
	seed("mid-a", 4, 2, 35)

	ranked, err := svc.Leaderboard(ctx, testEvent)
	require.NoError(t, err)
	require.Len(t, ranked, 4)

	order := make([]string, 0, len(ranked))
	for _, p := range ranked {
		order = append(order, p.TeamID)
	}
	// Points first, then wins, then total score as the tiebreak.
	assert.Equal(t, []string{"top", "mid-a", "mid-b", "low"}, order)
}

func TestGetTeamProgressNotFound(t *testing.T) {
	svc := NewProgressService(newFakeProgressRepo(), testLogger())
	_, err := svc.GetTeamProgress(context.Background(), "ghost", testEvent)
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

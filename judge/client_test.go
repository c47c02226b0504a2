package judge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

const validVerdictJSON = `{
  "teamA": {"score": 8.5, "relevance": "on point", "groundedness": "cites the document", "accuracy": "correct", "style": "clear", "efficiency": "fast"},
  "teamB": {"score": 6.0, "relevance": "partial", "groundedness": "some drift", "accuracy": "one miss", "style": "terse", "efficiency": "slow"},
  "winner": "teamA",
  "analysis": "Team A answered every question from the source."
}`

func arbiterStub(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(0), req.Temperature)
		require.Len(t, req.Messages, 2)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func sampleRequest() Request {
	return Request{
		Context:        "shared context",
		Questions:      []string{"q1", "q2"},
		GroundTruths:   []string{"t1", "t2"},
		TeamAID:        "team-alpha",
		TeamBID:        "team-beta",
		TeamAAnswers:   []string{"a1", "a2"},
		TeamBAnswers:   []string{"b1", ""},
		TeamALatencyMS: 1200,
		TeamBLatencyMS: 4800,
	}
}

func TestEvaluateValidVerdict(t *testing.T) {
	server := arbiterStub(t, validVerdictJSON)
	defer server.Close()

	client := New(server.URL, "test-key", "gpt-4o", 5*time.Second, testLogger())
	verdict, err := client.Evaluate(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "team-alpha", verdict.Winner)
	assert.Equal(t, 8.5, verdict.TeamA.Score)
	assert.Equal(t, 6.0, verdict.TeamB.Score)
	assert.Equal(t, "cites the document", verdict.TeamA.Groundedness)
	assert.Equal(t, "Team A answered every question from the source.", verdict.Analysis)
}

func TestEvaluateJSONEmbeddedInProse(t *testing.T) {
	content := "Here is my assessment of the match:\n" + validVerdictJSON + "\nHope that helps!"
	server := arbiterStub(t, content)
	defer server.Close()

	client := New(server.URL, "test-key", "gpt-4o", 5*time.Second, testLogger())
	verdict, err := client.Evaluate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "team-alpha", verdict.Winner)
}

func TestEvaluateDrawWinner(t *testing.T) {
	content := `{
  "teamA": {"score": 7, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s", "efficiency": "e"},
  "teamB": {"score": 7, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s", "efficiency": "e"},
  "winner": "draw",
  "analysis": "Even match."
}`
	server := arbiterStub(t, content)
	defer server.Close()

	client := New(server.URL, "test-key", "gpt-4o", 5*time.Second, testLogger())
	verdict, err := client.Evaluate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, WinnerDraw, verdict.Winner)
}

func TestEvaluateMissingCriterion(t *testing.T) {
	content := `{
  "teamA": {"score": 7, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s"},
  "teamB": {"score": 7, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s", "efficiency": "e"},
  "winner": "teamA",
  "analysis": "x"
}`
	server := arbiterStub(t, content)
	defer server.Close()

	client := New(server.URL, "test-key", "gpt-4o", 5*time.Second, testLogger())
	_, err := client.Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrVerdictParse)
	assert.Contains(t, err.Error(), "teamA.efficiency")
}

func TestEvaluateMissingWinner(t *testing.T) {
	content := `{
  "teamA": {"score": 7, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s", "efficiency": "e"},
  "teamB": {"score": 7, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s", "efficiency": "e"},
  "analysis": "x"
}`
	server := arbiterStub(t, content)
	defer server.Close()

	client := New(server.URL, "test-key", "gpt-4o", 5*time.Second, testLogger())
	_, err := client.Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrVerdictParse)
}

func TestEvaluateInvalidWinnerTag(t *testing.T) {
	content := `{
  "teamA": {"score": 7, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s", "efficiency": "e"},
  "teamB": {"score": 7, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s", "efficiency": "e"},
  "winner": "team-alpha",
  "analysis": "x"
}`
	server := arbiterStub(t, content)
	defer server.Close()

	client := New(server.URL, "test-key", "gpt-4o", 5*time.Second, testLogger())
	_, err := client.Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrVerdictParse)
}

func TestEvaluateScoreOutOfRange(t *testing.T) {
	content := `{
  "teamA": {"score": 11, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s", "efficiency": "e"},
  "teamB": {"score": 7, "relevance": "r", "groundedness": "g", "accuracy": "a", "style": "s", "efficiency": "e"},
  "winner": "teamB",
  "analysis": "x"
}`
	server := arbiterStub(t, content)
	defer server.Close()

	client := New(server.URL, "test-key", "gpt-4o", 5*time.Second, testLogger())
	_, err := client.Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrVerdictParse)
}

func TestEvaluateNoJSONInResponse(t *testing.T) {
	server := arbiterStub(t, "I cannot decide this match, sorry.")
	defer server.Close()

	client := New(server.URL, "test-key", "gpt-4o", 5*time.Second, testLogger())
	_, err := client.Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrVerdictParse)
}

func TestEvaluateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "test-key", "gpt-4o", 5*time.Second, testLogger())
	_, err := client.Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrJudgeRequest)
}

func TestBuildUserPromptMarksEmptyAnswers(t *testing.T) {
	prompt := buildUserPrompt(sampleRequest())
	assert.Contains(t, prompt, "(no answer)")
	assert.Contains(t, prompt, "total latency 1200ms")
	assert.Contains(t, prompt, "Ground truth: t2")
}

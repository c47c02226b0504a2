// Package judge wraps the external LLM arbiter. The client builds a
// deterministic-intent prompt, demands strict JSON back, and translates the
// winner tag to real team ids. It holds no tournament state: a parse failure is
// the caller's problem to degrade, never silently defaulted here.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/promptclash/arena/metrics"
	"github.com/promptclash/arena/models"
)

var (
	ErrJudgeRequest  = errors.New("judge request failed")
	ErrVerdictParse  = errors.New("failed to parse judge verdict")
	WinnerDraw       = "draw"
	validWinnerTags  = map[string]bool{"teamA": true, "teamB": true, "draw": true}
	requiredCriteria = []string{"relevance", "groundedness", "accuracy", "style", "efficiency"}
)

// Request is everything the arbiter needs to score one match.
type Request struct {
	Context        string
	Questions      []string
	GroundTruths   []string
	TeamAID        string
	TeamBID        string
	TeamAAnswers   []string
	TeamBAnswers   []string
	TeamALatencyMS int64
	TeamBLatencyMS int64
}

// Verdict is the parsed arbiter output. Winner is a team id or WinnerDraw.
type Verdict struct {
	TeamA    models.JudgeScores
	TeamB    models.JudgeScores
	Winner   string
	Analysis string
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL, apiKey, model string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout + 10*time.Second},
		logger:     logger,
	}
}

const systemPrompt = `You are the impartial arbiter of a document question-answering tournament.
Two teams answered the same questions about the same source document. Score each
team from 0 to 10 and declare a winner. Judge only against the provided ground
truths and shared context. Respond with a single JSON object and nothing else, in
exactly this shape:
{
  "teamA": {"score": 0, "relevance": "", "groundedness": "", "accuracy": "", "style": "", "efficiency": ""},
  "teamB": {"score": 0, "relevance": "", "groundedness": "", "accuracy": "", "style": "", "efficiency": ""},
  "winner": "teamA" | "teamB" | "draw",
  "analysis": ""
}`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// rawVerdict mirrors the arbiter JSON; criterion fields are kept in a map so
// missing keys can be reported precisely.
type rawVerdict struct {
	TeamA    map[string]json.RawMessage `json:"teamA"`
	TeamB    map[string]json.RawMessage `json:"teamB"`
	Winner   *string                    `json:"winner"`
	Analysis *string                    `json:"analysis"`
}

// Evaluate submits one match to the arbiter and returns the parsed verdict.
func (c *Client) Evaluate(ctx context.Context, req Request) (*Verdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrJudgeRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJudgeRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJudgeRequest, err)
	}
	defer resp.Body.Close()
	metrics.JudgeCallSeconds.Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrJudgeRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrJudgeRequest, resp.StatusCode, truncate(string(body), 200))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerdictParse, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contained no choices", ErrVerdictParse)
	}

	return parseVerdict(chat.Choices[0].Message.Content, req.TeamAID, req.TeamBID)
}

func buildUserPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Shared context:\n")
	b.WriteString(req.Context)
	b.WriteString("\n\nQuestions and ground truths:\n")
	for i, q := range req.Questions {
		truth := ""
		if i < len(req.GroundTruths) {
			truth = req.GroundTruths[i]
		}
		fmt.Fprintf(&b, "%d. Q: %s\n   Ground truth: %s\n", i+1, q, truth)
	}
	writeTeam := func(label string, answers []string, latencyMS int64) {
		fmt.Fprintf(&b, "\n%s (total latency %dms):\n", label, latencyMS)
		for i, a := range answers {
			if a == "" {
				a = "(no answer)"
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, a)
		}
	}
	writeTeam("Team A answers", req.TeamAAnswers, req.TeamALatencyMS)
	writeTeam("Team B answers", req.TeamBAnswers, req.TeamBLatencyMS)
	b.WriteString("\nScore both teams and declare the winner as specified.")
	return b.String()
}

// parseVerdict extracts the first JSON object from the model output and
// validates every required field. Anything missing is a parse error.
func parseVerdict(content, teamAID, teamBID string) (*Verdict, error) {
	objStart := strings.Index(content, "{")
	objEnd := strings.LastIndex(content, "}")
	if objStart < 0 || objEnd <= objStart {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrVerdictParse)
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(content[objStart:objEnd+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerdictParse, err)
	}

	if raw.Winner == nil {
		return nil, fmt.Errorf("%w: missing field winner", ErrVerdictParse)
	}
	if !validWinnerTags[*raw.Winner] {
		return nil, fmt.Errorf("%w: invalid winner tag %q", ErrVerdictParse, *raw.Winner)
	}
	if raw.Analysis == nil {
		return nil, fmt.Errorf("%w: missing field analysis", ErrVerdictParse)
	}

	teamA, err := parseTeamScores("teamA", raw.TeamA)
	if err != nil {
		return nil, err
	}
	teamB, err := parseTeamScores("teamB", raw.TeamB)
	if err != nil {
		return nil, err
	}

	winner := WinnerDraw
	switch *raw.Winner {
	case "teamA":
		winner = teamAID
	case "teamB":
		winner = teamBID
	}

	return &Verdict{
		TeamA:    teamA,
		TeamB:    teamB,
		Winner:   winner,
		Analysis: *raw.Analysis,
	}, nil
}

func parseTeamScores(label string, fields map[string]json.RawMessage) (models.JudgeScores, error) {
	var scores models.JudgeScores
	if fields == nil {
		return scores, fmt.Errorf("%w: missing field %s", ErrVerdictParse, label)
	}

	scoreRaw, ok := fields["score"]
	if !ok {
		return scores, fmt.Errorf("%w: missing field %s.score", ErrVerdictParse, label)
	}
	if err := json.Unmarshal(scoreRaw, &scores.Score); err != nil {
		return scores, fmt.Errorf("%w: %s.score: %w", ErrVerdictParse, label, err)
	}
	if scores.Score < 0 || scores.Score > 10 {
		return scores, fmt.Errorf("%w: %s.score %v out of range", ErrVerdictParse, label, scores.Score)
	}

	targets := map[string]*string{
		"relevance":    &scores.Relevance,
		"groundedness": &scores.Groundedness,
		"accuracy":     &scores.Accuracy,
		"style":        &scores.Style,
		"efficiency":   &scores.Efficiency,
	}
	for _, criterion := range requiredCriteria {
		raw, ok := fields[criterion]
		if !ok {
			return scores, fmt.Errorf("%w: missing field %s.%s", ErrVerdictParse, label, criterion)
		}
		if err := json.Unmarshal(raw, targets[criterion]); err != nil {
			return scores, fmt.Errorf("%w: %s.%s: %w", ErrVerdictParse, label, criterion, err)
		}
	}
	return scores, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

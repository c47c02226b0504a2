// Package fetcher calls a team's externally hosted API with the round's
// questions. The contract is graceful degradation: a broken, slow, or missing
// response never fails the match — the team just gets zero-credit answers.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/promptclash/arena/metrics"
)

// Result carries the normalized answers for one team. Answers always has
// exactly one entry per question.
type Result struct {
	Answers   []string
	LatencyMS int64
}

type answerRequest struct {
	Document  string   `json:"document"`
	Questions []string `json:"questions"`
}

type answerResponse struct {
	Answers []string `json:"answers"`
}

type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func New(logger *slog.Logger) *Client {
	return &Client{
		// Per-request deadlines come from the round config via context; the
		// transport-level timeout is only a safety net.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
	}
}

// FetchAnswers posts the document reference and full ordered question list to
// the team endpoint and returns an answers array aligned by index. On timeout,
// non-2xx status, or a malformed body it returns empty answers of the right
// length and the elapsed latency (the full timeout on abort). It never returns
// an error.
func (c *Client) FetchAnswers(ctx context.Context, endpointURL, document string, questions []string, timeout time.Duration) Result {
	start := time.Now()
	degraded := func(reason string, err error) Result {
		elapsed := time.Since(start)
		if ctx.Err() != nil || elapsed > timeout {
			elapsed = timeout
		}
		c.logger.Warn("endpoint fetch degraded to empty answers",
			slog.String("endpoint", endpointURL),
			slog.String("reason", reason),
			slog.Any("error", err))
		metrics.EndpointFetchSeconds.Observe(elapsed.Seconds())
		return Result{Answers: make([]string, len(questions)), LatencyMS: elapsed.Milliseconds()}
	}

	body, err := json.Marshal(answerRequest{Document: document, Questions: questions})
	if err != nil {
		return degraded("marshal request", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return degraded("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return degraded("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return degraded("non-2xx status", fmt.Errorf("endpoint returned status %d", resp.StatusCode))
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return degraded("read body", err)
	}

	var parsed answerResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return degraded("malformed JSON body", err)
	}

	// Pad or truncate so the answers stay index-aligned with the questions.
	answers := make([]string, len(questions))
	for i := range answers {
		if i < len(parsed.Answers) {
			answers[i] = parsed.Answers[i]
		}
	}

	elapsed := time.Since(start)
	metrics.EndpointFetchSeconds.Observe(elapsed.Seconds())
	return Result{Answers: answers, LatencyMS: elapsed.Milliseconds()}
}

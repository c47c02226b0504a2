package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/promptclash/arena/fetcher"
	"github.com/promptclash/arena/judge"
	"github.com/promptclash/arena/live"
	"github.com/promptclash/arena/models"
	"github.com/promptclash/arena/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeRoundRepo is an in-memory RoundRepository.
type fakeRoundRepo struct {
	mu     sync.Mutex
	rounds []*models.Round
	nextID int
}

func newFakeRoundRepo() *fakeRoundRepo { return &fakeRoundRepo{nextID: 1} }

func (f *fakeRoundRepo) CountByEvent(_ context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, r := range f.rounds {
		if r.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRoundRepo) CreateAll(_ context.Context, rounds []*models.Round) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rounds {
		r.ID = f.nextID
		f.nextID++
		r.CreatedAt = time.Now()
		f.rounds = append(f.rounds, r)
	}
	return nil
}

func (f *fakeRoundRepo) GetByEventAndNumber(_ context.Context, eventID string, number int) (*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rounds {
		if r.EventID == eventID && r.RoundNumber == number {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (f *fakeRoundRepo) ListByEvent(_ context.Context, eventID string) ([]*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Round, 0)
	for _, r := range f.rounds {
		if r.EventID == eventID {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (f *fakeRoundRepo) transition(eventID string, number int, from, to models.RoundStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rounds {
		if r.EventID == eventID && r.RoundNumber == number && r.Status == from {
			r.Status = to
			return nil
		}
	}
	return repositories.ErrRoundStatusConflict
}

func (f *fakeRoundRepo) MarkRunning(_ context.Context, eventID string, number int) error {
	return f.transition(eventID, number, models.RoundStatusPending, models.RoundStatusRunning)
}

func (f *fakeRoundRepo) MarkCompleted(_ context.Context, eventID string, number int) error {
	return f.transition(eventID, number, models.RoundStatusRunning, models.RoundStatusCompleted)
}

// fakeMatchRepo is an in-memory MatchRepository.
type fakeMatchRepo struct {
	mu      sync.Mutex
	matches []*models.Match
	nextID  int
}

func newFakeMatchRepo() *fakeMatchRepo { return &fakeMatchRepo{nextID: 1} }

func (f *fakeMatchRepo) CreateAll(_ context.Context, matches []*models.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range matches {
		m.ID = f.nextID
		f.nextID++
		m.CreatedAt = time.Now()
		copied := *m
		f.matches = append(f.matches, &copied)
	}
	return nil
}

func (f *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.matches {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) ListByRound(_ context.Context, eventID string, roundNumber int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range f.matches {
		if m.EventID != eventID || m.RoundNumber != roundNumber {
			continue
		}
		if statusFilter != nil && m.Status != *statusFilter {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMatchRepo) CountByRound(_ context.Context, eventID string, roundNumber int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.matches {
		if m.EventID == eventID && m.RoundNumber == roundNumber {
			count++
		}
	}
	return count, nil
}

func (f *fakeMatchRepo) CountUnfinishedByRound(_ context.Context, eventID string, roundNumber int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.matches {
		if m.EventID == eventID && m.RoundNumber == roundNumber && m.Status != models.MatchStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeMatchRepo) CountsByEvent(_ context.Context, eventID string) (map[int]models.RoundMatchCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[int]models.RoundMatchCounts)
	for _, m := range f.matches {
		if m.EventID != eventID {
			continue
		}
		c := counts[m.RoundNumber]
		c.Total++
		switch m.Status {
		case models.MatchStatusCompleted:
			c.Completed++
		case models.MatchStatusRunning:
			c.Running++
		}
		counts[m.RoundNumber] = c
	}
	return counts, nil
}

func (f *fakeMatchRepo) MarkWaitingRunning(_ context.Context, eventID string, roundNumber int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flipped := 0
	for _, m := range f.matches {
		if m.EventID == eventID && m.RoundNumber == roundNumber && m.Status == models.MatchStatusWaiting {
			m.Status = models.MatchStatusRunning
			flipped++
		}
	}
	return flipped, nil
}

func (f *fakeMatchRepo) UpdateOutcome(_ context.Context, match *models.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.matches {
		if m.ID == match.ID {
			copied := *match
			f.matches[i] = &copied
			return nil
		}
	}
	return repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) DeleteByRound(_ context.Context, eventID string, roundNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.matches[:0]
	for _, m := range f.matches {
		if m.EventID == eventID && m.RoundNumber == roundNumber {
			continue
		}
		kept = append(kept, m)
	}
	f.matches = kept
	return nil
}

// fakeProgressRepo is an in-memory ProgressRepository.
type fakeProgressRepo struct {
	mu      sync.Mutex
	records map[string]*models.TeamProgress
	nextID  int
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{records: make(map[string]*models.TeamProgress), nextID: 1}
}

func progressKey(teamID, eventID string) string { return teamID + "|" + eventID }

func (f *fakeProgressRepo) Seed(_ context.Context, teamID, eventID, teamName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := progressKey(teamID, eventID)
	if _, ok := f.records[key]; ok {
		return nil
	}
	f.records[key] = &models.TeamProgress{
		ID:       f.nextID,
		TeamID:   teamID,
		EventID:  eventID,
		TeamName: teamName,
		Status:   models.ProgressStatusActive,
		History:  models.RoundHistory{},
	}
	f.nextID++
	return nil
}

func (f *fakeProgressRepo) Apply(_ context.Context, delta repositories.ProgressDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[progressKey(delta.TeamID, delta.EventID)]
	if !ok {
		return repositories.ErrProgressNotFound
	}
	record.TotalScore += delta.ScoreDelta
	record.Points += delta.PointsDelta
	record.Wins += delta.WinsDelta
	record.Losses += delta.LossesDelta
	record.Draws += delta.DrawsDelta
	switch {
	case delta.Record != nil:
		record.History = append(record.History, *delta.Record)
	case delta.DropRound != nil:
		kept := record.History[:0]
		for _, entry := range record.History {
			if entry.Round != *delta.DropRound {
				kept = append(kept, entry)
			}
		}
		record.History = kept
	}
	record.UpdatedAt = time.Now()
	return nil
}

func (f *fakeProgressRepo) GetByTeamAndEvent(_ context.Context, teamID, eventID string) (*models.TeamProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[progressKey(teamID, eventID)]
	if !ok {
		return nil, repositories.ErrProgressNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeProgressRepo) ListActiveByEvent(_ context.Context, eventID string) ([]*models.TeamProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.TeamProgress, 0)
	for _, record := range f.records {
		if record.EventID == eventID && record.Status == models.ProgressStatusActive {
			copied := *record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

func (f *fakeProgressRepo) ListByEventRanked(_ context.Context, eventID string) ([]*models.TeamProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.TeamProgress, 0)
	for _, record := range f.records {
		if record.EventID == eventID {
			copied := *record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.TeamID < b.TeamID
	})
	return out, nil
}

// fakeSubmissionRepo is an in-memory SubmissionRepository.
type fakeSubmissionRepo struct {
	mu   sync.Mutex
	subs map[string]*models.Submission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{subs: make(map[string]*models.Submission)}
}

func (f *fakeSubmissionRepo) add(sub *models.Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[progressKey(sub.TeamID, sub.EventID)] = sub
}

func (f *fakeSubmissionRepo) GetByTeamAndEvent(_ context.Context, teamID, eventID string) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[progressKey(teamID, eventID)]
	if !ok {
		return nil, repositories.ErrSubmissionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeSubmissionRepo) ListShortlisted(_ context.Context, eventID string) ([]*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Submission, 0)
	for _, sub := range f.subs {
		if sub.EventID == eventID && sub.ShortlistStatus == models.ShortlistStatusShortlisted {
			copied := *sub
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

// stubFetcher returns canned answers per endpoint and records calls.
type stubFetcher struct {
	mu      sync.Mutex
	answers map[string]fetcher.Result
	calls   []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{answers: make(map[string]fetcher.Result)}
}

func (s *stubFetcher) FetchAnswers(_ context.Context, endpointURL, _ string, questions []string, _ time.Duration) fetcher.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, endpointURL)
	if result, ok := s.answers[endpointURL]; ok {
		return result
	}
	return fetcher.Result{Answers: make([]string, len(questions))}
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// stubJudge delegates to a configurable function.
type stubJudge struct {
	evaluate func(ctx context.Context, req judge.Request) (*judge.Verdict, error)
}

func (s *stubJudge) Evaluate(ctx context.Context, req judge.Request) (*judge.Verdict, error) {
	if s.evaluate == nil {
		return nil, fmt.Errorf("no stub verdict configured")
	}
	return s.evaluate(ctx, req)
}

func scoresOf(value float64) models.JudgeScores {
	return models.JudgeScores{
		Score: value, Relevance: "r", Groundedness: "g",
		Accuracy: "a", Style: "s", Efficiency: "e",
	}
}

// recordingBroadcaster captures live messages for assertions.
type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []live.Message
}

func (r *recordingBroadcaster) Broadcast(eventID string, msg live.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.EventID = eventID
	r.messages = append(r.messages, msg)
}

func (r *recordingBroadcaster) ofType(messageType string) []live.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]live.Message, 0)
	for _, msg := range r.messages {
		if msg.Type == messageType {
			out = append(out, msg)
		}
	}
	return out
}

package competitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

type fakeRepo struct {
	mu        sync.Mutex
	due       []crawler.Competitor
	latest    map[string]crawler.Benchmark
	saved     []crawler.Benchmark
	events    []crawler.CompetitorEvent
	saveErr   error
	updates   map[string]crawler.MonitoringUpdate
	updateErr error
	listErr   error
	listLimit int
}

func newFakeRepo(due ...crawler.Competitor) *fakeRepo {
	return &fakeRepo{
		due:     due,
		latest:  map[string]crawler.Benchmark{},
		updates: map[string]crawler.MonitoringUpdate{},
	}
}

func (f *fakeRepo) CreateCompetitor(context.Context, crawler.Competitor) error { return nil }

func (f *fakeRepo) ListCompetitors(context.Context, string) ([]crawler.Competitor, error) {
	return f.due, nil
}

func (f *fakeRepo) ListDueCompetitors(_ context.Context, _ time.Time, limit int) ([]crawler.Competitor, error) {
	f.listLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.due, nil
}

func (f *fakeRepo) LatestBenchmark(_ context.Context, competitorID string) (crawler.Benchmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.latest[competitorID]
	if !ok {
		return crawler.Benchmark{}, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) SaveBenchmark(_ context.Context, b crawler.Benchmark, events []crawler.CompetitorEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, b)
	f.latest[b.CompetitorID] = b
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeRepo) InsertEvents(_ context.Context, events []crawler.CompetitorEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeRepo) ListEvents(context.Context, string, int) ([]crawler.CompetitorEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) UpdateMonitoring(_ context.Context, competitorID string, update crawler.MonitoringUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[competitorID] = update
	return f.updateErr
}

type fakeBenchmarker struct {
	results map[string]crawler.Benchmark
	errs    map[string]error
	calls   []string
}

func (f *fakeBenchmarker) Benchmark(_ context.Context, domain string) (crawler.Benchmark, error) {
	f.calls = append(f.calls, domain)
	if err := f.errs[domain]; err != nil {
		return crawler.Benchmark{}, err
	}
	return f.results[domain], nil
}

type fakeNotifier struct {
	got []crawler.CompetitorEvent
	err error
}

func (f *fakeNotifier) Notify(_ context.Context, events []crawler.CompetitorEvent) error {
	f.got = append(f.got, events...)
	return f.err
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

var sweepTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSweepIsolatesFailures(t *testing.T) {
	t.Parallel()

	failing := crawler.Competitor{ID: "c1", Domain: "broken.example", MonitoringFrequency: crawler.FrequencyDaily}
	healthy := crawler.Competitor{ID: "c2", Domain: "rival.example", MonitoringFrequency: crawler.FrequencyWeekly}
	repo := newFakeRepo(failing, healthy)
	repo.latest["c2"] = crawler.Benchmark{ID: "old", Overall: intPtr(75), LLMsTxtScore: intPtr(0)}

	bench := &fakeBenchmarker{
		errs:    map[string]error{"broken.example": errors.New("dns failure")},
		results: map[string]crawler.Benchmark{"rival.example": {Overall: intPtr(60), LLMsTxtScore: intPtr(85)}},
	}
	notifier := &fakeNotifier{}
	s := NewScheduler(repo, bench, &seqIDs{}, fixedClock{sweepTime}, WithNotifier(notifier))

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Processed: 1, Events: 2, Errors: 1}, res)
	require.Equal(t, []string{"broken.example", "rival.example"}, bench.calls)
	require.Equal(t, DefaultBatchSize, repo.listLimit)

	require.Len(t, repo.updates, 2, "both competitors are rescheduled")
	failed := repo.updates["c1"]
	require.Nil(t, failed.LastBenchmarkAt)
	require.Equal(t, sweepTime.Add(24*time.Hour), failed.NextBenchmarkAt)

	ok := repo.updates["c2"]
	require.NotNil(t, ok.LastBenchmarkAt)
	require.Equal(t, sweepTime, *ok.LastBenchmarkAt)
	require.Equal(t, sweepTime.AddDate(0, 0, 7), ok.NextBenchmarkAt)

	require.Len(t, repo.saved, 1)
	saved := repo.saved[0]
	require.Equal(t, "c2", saved.CompetitorID)
	require.Equal(t, "rival.example", saved.Domain)
	require.Equal(t, sweepTime, saved.CreatedAt)
	require.NotEmpty(t, saved.ID)

	require.Equal(t, []string{EventScoreRegression, EventLLMsTxtAdded}, eventTypes(repo.events))
	for _, e := range repo.events {
		require.NotEmpty(t, e.ID)
		require.Equal(t, saved.ID, e.BenchmarkID)
	}
	require.Len(t, notifier.got, 2, "warning and critical events are forwarded")
}

func TestSweepForwardsOnlyWarningAndAbove(t *testing.T) {
	t.Parallel()

	c := crawler.Competitor{ID: "c1", Domain: "rival.example"}
	repo := newFakeRepo(c)
	repo.latest["c1"] = crawler.Benchmark{Overall: intPtr(50), SchemaScore: intPtr(0)}
	bench := &fakeBenchmarker{results: map[string]crawler.Benchmark{
		"rival.example": {Overall: intPtr(70), SchemaScore: intPtr(100)},
	}}
	notifier := &fakeNotifier{}

	res, err := NewScheduler(repo, bench, &seqIDs{}, fixedClock{sweepTime}, WithNotifier(notifier)).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Events)
	require.Len(t, repo.events, 2)
	require.Empty(t, notifier.got, "info events persist but are not forwarded")
}

func TestSweepFirstBenchmarkHasNoEvents(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(crawler.Competitor{ID: "c1", Domain: "new.example", MonitoringFrequency: "hourly"})
	bench := &fakeBenchmarker{results: map[string]crawler.Benchmark{"new.example": {Overall: intPtr(10)}}}

	res, err := NewScheduler(repo, bench, &seqIDs{}, fixedClock{sweepTime}).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Processed: 1}, res)
	require.Empty(t, repo.events)
	require.Equal(t, sweepTime.AddDate(0, 0, 7), repo.updates["c1"].NextBenchmarkAt, "unknown frequency defaults to weekly")
}

func TestSweepNotificationFailureDoesNotFailCompetitor(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(crawler.Competitor{ID: "c1", Domain: "rival.example"})
	repo.latest["c1"] = crawler.Benchmark{BotAccessScore: intPtr(100)}
	bench := &fakeBenchmarker{results: map[string]crawler.Benchmark{"rival.example": {BotAccessScore: intPtr(0)}}}
	notifier := &fakeNotifier{err: errors.New("outbox down")}

	res, err := NewScheduler(repo, bench, &seqIDs{}, fixedClock{sweepTime}, WithNotifier(notifier)).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Processed: 1, Events: 1}, res)
	require.Len(t, notifier.got, 1)
}

func TestSweepRescheduleFailureCountsAsError(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(crawler.Competitor{ID: "c1", Domain: "rival.example"})
	repo.updateErr = errors.New("db down")
	bench := &fakeBenchmarker{results: map[string]crawler.Benchmark{"rival.example": {}}}

	res, err := NewScheduler(repo, bench, &seqIDs{}, fixedClock{sweepTime}).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Errors: 1}, res)
}

func TestSweepListFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.listErr = errors.New("db down")

	_, err := NewScheduler(repo, &fakeBenchmarker{}, &seqIDs{}, fixedClock{sweepTime}, WithBatchSize(5)).Sweep(context.Background())
	require.ErrorContains(t, err, "db down")
	require.Equal(t, 5, repo.listLimit)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(crawler.Competitor{ID: "c1", Domain: "a.example"})
	bench := &fakeBenchmarker{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScheduler(repo, bench, &seqIDs{}, fixedClock{sweepTime}).Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, bench.calls)
}

func TestSweepReemitsEventsAfterFailedSave(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(crawler.Competitor{ID: "c1", Domain: "rival.example"})
	repo.latest["c1"] = crawler.Benchmark{ID: "old", LLMsTxtScore: intPtr(0)}
	repo.saveErr = errors.New("tx aborted")
	bench := &fakeBenchmarker{results: map[string]crawler.Benchmark{"rival.example": {LLMsTxtScore: intPtr(90)}}}
	notifier := &fakeNotifier{}
	s := NewScheduler(repo, bench, &seqIDs{}, fixedClock{sweepTime}, WithNotifier(notifier))

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Errors: 1}, res)
	require.Empty(t, repo.saved)
	require.Empty(t, repo.events)
	require.Empty(t, notifier.got)
	require.Equal(t, "old", repo.latest["c1"].ID)

	repo.saveErr = nil
	res, err = s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Processed: 1, Events: 1}, res)
	require.Equal(t, []string{EventLLMsTxtAdded}, eventTypes(repo.events))
	require.Equal(t, repo.saved[0].ID, repo.events[0].BenchmarkID)
}

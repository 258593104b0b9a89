package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	hashsha "github.com/JakeFAU/ai-readiness-scorer/internal/hash/sha256"
	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
	"github.com/JakeFAU/ai-readiness-scorer/internal/storage/memory"
)

var ingestTime = time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%03d", s.n), nil
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []crawler.EnrichmentTask
	err   error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, task crawler.EnrichmentTask) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.tasks = append(e.tasks, task)
	return nil
}

// panickyScorer fails on one URL and delegates otherwise.
type panickyScorer struct {
	next    Scorer
	failURL string
}

func (s panickyScorer) Score(facts crawler.PageFacts) scoring.Result {
	if facts.URL == s.failURL {
		panic("malformed facts")
	}
	return s.next.Score(facts)
}

func boolPtr(v bool) *bool { return &v }

func floatPtr(v float64) *float64 { return &v }

func goodPage(path string) PageInput {
	return PageInput{PageFacts: crawler.PageFacts{
		URL:             "https://example.com" + path,
		StatusCode:      200,
		Title:           "Complete Guide to AI Search Readiness",
		MetaDescription: strings.Repeat("x", 120),
		CanonicalURL:    "https://example.com" + path,
		WordCount:       1200,
		H1:              []string{"AI Search Readiness"},
		H2:              []string{"What is AI readiness?"},
		HeadingLevels:   []int{1, 2},
		SchemaTypes:     []string{"Organization", "Article", "FAQPage"},
		InternalLinks:   []string{"https://example.com/"},
		ExternalLinks:   []string{"https://www.w3.org/"},
		HasViewport:     true,
		Lang:            "en",
		RobotsMeta:      "index, follow",
		ResponseTimeMs:  300,
		PageSizeBytes:   400_000,
		Author:          "Sam Ortiz",
		PublishedAt:     "2025-01-02",
		HasLists:        true,
		FAQCount:        1,
		SummaryPresent:  true,
		HasLLMsTxt:      boolPtr(true),
		HasRobotsTxt:    boolPtr(true),
		HasSitemap:      boolPtr(true),
		AIBotsChecked:   6,
		FleschScore:     floatPtr(62),
		TextToHTMLRatio: floatPtr(0.25),
	}}
}

type fixture struct {
	repo     *memory.Repository
	blobs    *memory.BlobStore
	enqueuer *recordingEnqueuer
	pipeline *Pipeline
}

func newFixture(t *testing.T, status crawler.JobStatus, scorer Scorer, opts ...Option) fixture {
	t.Helper()
	repo := memory.NewRepository()
	require.NoError(t, repo.CreateJob(context.Background(), crawler.Job{
		ID: testJobID, ProjectID: "proj-1", Status: status, CreatedAt: ingestTime.Add(-time.Hour),
	}))
	if scorer == nil {
		scorer = scoring.MustEngine(nil)
	}
	f := fixture{repo: repo, blobs: memory.NewBlobStore(), enqueuer: &recordingEnqueuer{}}
	base := []Option{WithBlobStore(f.blobs), WithEnqueuer(f.enqueuer), WithHasher(hashsha.New())}
	f.pipeline = New(repo, scorer, fixedClock{ingestTime}, &seqIDs{}, append(base, opts...)...)
	return f
}

func roundedMean(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values))))
}

func TestIngestFinalBatchCompletesJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crawler.JobStatusQueued, nil)
	pages := make([]PageInput, 10)
	for i := range pages {
		pages[i] = goodPage(fmt.Sprintf("/p%d", i))
		if i%3 == 0 {
			pages[i].Title = ""
		}
		if i%4 == 0 {
			pages[i].ImagesTotal = 5
			pages[i].ImagesMissing = 5
		}
	}
	batch := Batch{
		JobID:   testJobID,
		Pages:   pages,
		Stats:   Stats{PagesFound: 10, PagesCrawled: 10},
		IsFinal: true,
	}

	res, err := f.pipeline.IngestBatch(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusComplete, res.Status)
	require.Equal(t, 10, res.PagesInserted)
	require.Equal(t, 10, res.PagesScored)
	require.Zero(t, res.PagesErrored)
	require.Positive(t, res.IssuesInserted)

	job, err := f.repo.GetJob(context.Background(), testJobID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusComplete, job.Status)
	require.NotNil(t, job.CompletedAt)
	require.Equal(t, ingestTime, *job.CompletedAt)
	require.NotNil(t, job.StartedAt)
	require.Equal(t, 10, job.PagesFound)
	require.Equal(t, 10, job.PagesCrawled)
	require.Equal(t, 10, job.PagesScored)

	scores, err := f.repo.ListScores(context.Background(), testJobID)
	require.NoError(t, err)
	require.Len(t, scores, 10)
	var overall, technical, content, ai, perf []int
	for _, s := range scores {
		overall = append(overall, s.Overall)
		technical = append(technical, s.Technical)
		content = append(content, s.Content)
		ai = append(ai, s.AIReadiness)
		perf = append(perf, s.Performance)
	}
	require.NotNil(t, job.Summary)
	require.Equal(t, roundedMean(overall), job.Summary.Overall)
	require.Equal(t, roundedMean(technical), job.Summary.Technical)
	require.Equal(t, roundedMean(content), job.Summary.Content)
	require.Equal(t, roundedMean(ai), job.Summary.AIReadiness)
	require.Equal(t, roundedMean(perf), job.Summary.Performance)
	require.Equal(t, scoring.LetterGrade(job.Summary.Overall), job.Summary.LetterGrade)
	require.Equal(t, 10, job.Summary.Pages)
	require.Less(t, job.Summary.Technical, 100, "missing titles lower technical scores")
}

func TestIngestSequentialBatches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crawler.JobStatusPending, nil)
	ctx := context.Background()

	res, err := f.pipeline.IngestBatch(ctx, Batch{
		JobID: testJobID, BatchIndex: 0,
		Pages: []PageInput{goodPage("/a"), goodPage("/b")},
		Stats: Stats{PagesFound: 6, PagesCrawled: 2},
	})
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusScoring, res.Status)

	res, err = f.pipeline.IngestBatch(ctx, Batch{
		JobID: testJobID, BatchIndex: 1,
		Pages: []PageInput{goodPage("/c")},
		Stats: Stats{PagesFound: 0, PagesCrawled: 1, PagesErrored: 1},
	})
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusScoring, res.Status, "already scoring is not a transition")

	res, err = f.pipeline.IngestBatch(ctx, Batch{JobID: testJobID, BatchIndex: 2, Pages: []PageInput{}, IsFinal: true})
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusComplete, res.Status)

	job, err := f.repo.GetJob(ctx, testJobID)
	require.NoError(t, err)
	require.Equal(t, 6, job.PagesFound)
	require.Equal(t, 3, job.PagesCrawled)
	require.Equal(t, 3, job.PagesScored)
	require.Equal(t, 1, job.PagesErrored)
	require.Equal(t, 3, job.Summary.Pages)
}

func TestIngestCountersNeverUnderReportFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crawler.JobStatusCrawling, nil)
	_, err := f.pipeline.IngestBatch(context.Background(), Batch{
		JobID: testJobID,
		Pages: []PageInput{goodPage("/a"), goodPage("/b")},
	})
	require.NoError(t, err)

	job, err := f.repo.GetJob(context.Background(), testJobID)
	require.NoError(t, err)
	require.Equal(t, 2, job.PagesFound)
	require.Equal(t, 2, job.PagesCrawled)
	require.Equal(t, 2, job.PagesScored)
}

func TestIngestIsolatesScoringFailure(t *testing.T) {
	t.Parallel()

	scorer := panickyScorer{next: scoring.MustEngine(nil), failURL: "https://example.com/bad"}
	f := newFixture(t, crawler.JobStatusCrawling, scorer)
	bad := goodPage("/bad")
	bad.Title = ""

	res, err := f.pipeline.IngestBatch(context.Background(), Batch{
		JobID: testJobID,
		Pages: []PageInput{goodPage("/a"), bad, goodPage("/c")},
		Stats: Stats{PagesFound: 3, PagesCrawled: 3},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.PagesInserted)
	require.Equal(t, 2, res.PagesScored)
	require.Equal(t, 1, res.PagesErrored)

	scores, err := f.repo.ListScores(context.Background(), testJobID)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	for _, s := range scores {
		require.NotEqual(t, "https://example.com/bad", s.URL)
	}
	issues, err := f.repo.ListIssues(context.Background(), testJobID, crawler.IssueFilter{})
	require.NoError(t, err)
	for _, is := range issues {
		require.NotEqual(t, scoring.CodeMissingTitle, is.Code, "no issues for the failed page")
	}

	job, err := f.repo.GetJob(context.Background(), testJobID)
	require.NoError(t, err)
	require.Equal(t, 1, job.PagesErrored)
	require.Equal(t, 2, job.PagesScored)
}

func TestIngestPersistsIssuesAndDetail(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crawler.JobStatusCrawling, nil)
	page := goodPage("/missing")
	page.Title = ""
	page.BrokenLinks = []string{"https://example.com/x", "https://example.com/y"}

	_, err := f.pipeline.IngestBatch(context.Background(), Batch{JobID: testJobID, Pages: []PageInput{page}})
	require.NoError(t, err)

	issues, err := f.repo.ListIssues(context.Background(), testJobID, crawler.IssueFilter{})
	require.NoError(t, err)
	codes := map[string]crawler.Issue{}
	for _, is := range issues {
		codes[is.Code] = is
		require.NotEmpty(t, is.ID)
		require.NotEmpty(t, is.PageID)
		require.Equal(t, ingestTime, is.CreatedAt)
	}
	require.Contains(t, codes, scoring.CodeMissingTitle)
	require.Contains(t, codes, scoring.CodeBrokenLinks)
	require.Equal(t, crawler.SeverityCritical, codes[scoring.CodeMissingTitle].Severity)

	scores, err := f.repo.ListScores(context.Background(), testJobID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	require.Equal(t, scores[0].LetterGrade, scores[0].Detail["letter_grade"])
	require.Equal(t, scoring.Version, scores[0].Detail["scoring_version"])
}

func TestIngestRejectsWithoutSideEffects(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crawler.JobStatusPending, nil)
	ctx := context.Background()

	_, err := f.pipeline.Ingest(ctx, []byte(`{"job_id":"nope","pages":[]}`))
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.pipeline.IngestBatch(ctx, Batch{
		JobID: "0190b5a4-0000-7000-8000-000000000000",
		Pages: []PageInput{goodPage("/a")},
	})
	require.ErrorIs(t, err, ErrJobNotFound)

	job, err := f.repo.GetJob(ctx, testJobID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusPending, job.Status)
	require.Zero(t, job.PagesCrawled)
	scores, err := f.repo.ListScores(ctx, testJobID)
	require.NoError(t, err)
	require.Empty(t, scores)
}

func TestIngestRejectsTerminalJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crawler.JobStatusCancelled, nil)
	_, err := f.pipeline.IngestBatch(context.Background(), Batch{JobID: testJobID, Pages: []PageInput{goodPage("/a")}})
	require.ErrorIs(t, err, ErrJobTerminal)
}

func TestIngestEnqueuesEligiblePages(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crawler.JobStatusCrawling, nil, WithBlobPrefix("raw"))
	long := goodPage("/long")
	long.RawContent = "<html><body>long form content</body></html>"
	short := goodPage("/short")
	short.WordCount = 150
	short.ContentHash = "abc"
	unhashed := goodPage("/unhashed")
	hashed := goodPage("/hashed")
	hashed.ContentHash = "feed"

	res, err := f.pipeline.IngestBatch(context.Background(), Batch{
		JobID: testJobID,
		Pages: []PageInput{long, short, unhashed, hashed},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.EnrichmentQueued)
	f.pipeline.Wait()

	require.Len(t, f.enqueuer.tasks, 2)
	first := f.enqueuer.tasks[0]
	require.Equal(t, "https://example.com/long", first.URL)
	require.Len(t, first.ContentHash, 64, "hash computed from raw content")
	require.True(t, strings.HasPrefix(first.ContentRef, "memory://raw/"+testJobID+"/"))
	require.Zero(t, first.Attempt)
	require.Equal(t, ingestTime, first.EnqueuedAt)

	raw, err := f.blobs.GetObject(context.Background(), first.ContentRef)
	require.NoError(t, err)
	require.Equal(t, long.RawContent, string(raw))

	require.Equal(t, "feed", f.enqueuer.tasks[1].ContentHash)
	require.Empty(t, f.enqueuer.tasks[1].ContentRef)

	page, err := f.repo.GetPage(context.Background(), first.PageID)
	require.NoError(t, err)
	require.Equal(t, first.ContentRef, page.ContentRef)
	require.Equal(t, first.ContentHash, page.ContentHash)
}

func TestIngestEnqueueFailureDoesNotAffectResponse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crawler.JobStatusCrawling, nil, WithMinWordCount(100))
	f.enqueuer.err = errors.New("queue full")
	page := goodPage("/a")
	page.ContentHash = "abc"

	res, err := f.pipeline.IngestBatch(context.Background(), Batch{JobID: testJobID, Pages: []PageInput{page}})
	require.NoError(t, err)
	require.Equal(t, 1, res.EnrichmentQueued)
	f.pipeline.Wait()
	require.Empty(t, f.enqueuer.tasks)
}

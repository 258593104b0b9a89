package quickwin

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
)

func issue(code, page string) crawler.Issue {
	return crawler.Issue{Code: code, PageID: page, JobID: "job-1"}
}

// Priorities: AI_CRAWLERS_BLOCKED 75, MISSING_LLMS_TXT 60, MISSING_TITLE 45,
// MISSING_META_DESCRIPTION 20, MISSING_VIEWPORT 16, THIN_CONTENT 7.5.
func sampleIssues() []crawler.Issue {
	return []crawler.Issue{
		issue(scoring.CodeMissingLLMsTxt, "p1"),
		issue(scoring.CodeMissingLLMsTxt, "p2"),
		issue(scoring.CodeAICrawlersBlocked, "p1"),
		issue(scoring.CodeMissingTitle, "p3"),
		issue(scoring.CodeMissingMeta, "p1"),
		issue(scoring.CodeMissingMeta, "p1"),
		issue(scoring.CodeMissingMeta, "p2"),
		issue(scoring.CodeThinContent, "p2"),
		issue(scoring.CodeMissingViewport, "p2"),
		issue(scoring.CodeLLMClarity, "p1"),
		issue("UNKNOWN_CODE", "p1"),
	}
}

func TestRankOrdersByPriority(t *testing.T) {
	t.Parallel()

	wins := NewRanker(nil).Rank(sampleIssues(), 0)
	require.Len(t, wins, DefaultLimit)

	codes := make([]string, 0, len(wins))
	for _, w := range wins {
		codes = append(codes, w.Code)
	}
	require.Equal(t, []string{
		scoring.CodeAICrawlersBlocked,
		scoring.CodeMissingLLMsTxt,
		scoring.CodeMissingTitle,
		scoring.CodeMissingMeta,
		scoring.CodeMissingViewport,
	}, codes)

	require.InDelta(t, 75.0, wins[0].Priority, 1e-9)
	require.Equal(t, 2, wins[1].AffectedPages)
	require.Equal(t, 2, wins[3].AffectedPages, "duplicate rows on one page count once")
}

func TestRankSkipsZeroImpactCodes(t *testing.T) {
	t.Parallel()

	wins := NewRanker(nil).Rank(sampleIssues(), 100)
	for _, w := range wins {
		require.NotZero(t, w.ScoreImpact, w.Code)
		require.NotEqual(t, scoring.CodeLLMClarity, w.Code)
		require.NotEqual(t, "UNKNOWN_CODE", w.Code)
	}
	require.Len(t, wins, 6)
}

func TestRankIsDeterministic(t *testing.T) {
	t.Parallel()

	ranker := NewRanker(nil)
	want := ranker.Rank(sampleIssues(), 10)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := sampleIssues()
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		require.Equal(t, want, ranker.Rank(shuffled, 10))
	}
}

func TestRankTieBreaks(t *testing.T) {
	t.Parallel()

	// All three are info/-3/low and tie on priority.
	issues := []crawler.Issue{
		issue("TITLE_TOO_SHORT", "p1"),
		issue("TITLE_TOO_LONG", "p2"),
		issue("TITLE_TOO_SHORT", "p3"),
		issue("MISSING_LANG", "p4"),
	}
	wins := NewRanker(nil).Rank(issues, 5)
	require.Len(t, wins, 3)
	require.Equal(t, "TITLE_TOO_SHORT", wins[0].Code)
	require.Equal(t, "MISSING_LANG", wins[1].Code)
	require.Equal(t, "TITLE_TOO_LONG", wins[2].Code)
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, NewRanker(nil).Rank(nil, 5))
}

func TestRankRendersJobLevelText(t *testing.T) {
	t.Parallel()

	issues := []crawler.Issue{
		issue(scoring.CodeBrokenLinks, "p1"),
		issue(scoring.CodeBrokenLinks, "p2"),
		issue(scoring.CodeThinContent, "p2"),
	}
	wins := NewRanker(nil).Rank(issues, 10)
	require.Len(t, wins, 2)

	byCode := map[string]QuickWin{}
	for _, w := range wins {
		require.NotContains(t, w.Message, "{")
		require.NotContains(t, w.Recommendation, "{")
		require.NotEmpty(t, w.Recommendation)
		byCode[w.Code] = w
	}
	require.Equal(t, "Broken links on 2 pages.", byCode[scoring.CodeBrokenLinks].Message)
	require.Equal(t, "Thin content on 1 page.", byCode[scoring.CodeThinContent].Message)
}

func TestRankDefaultCatalogHasNoPlaceholders(t *testing.T) {
	t.Parallel()

	catalog := scoring.DefaultCatalog()
	issues := make([]crawler.Issue, 0, catalog.Len())
	for _, def := range catalog.Definitions() {
		issues = append(issues, issue(def.Code, "p1"))
	}
	for _, w := range NewRanker(catalog).Rank(issues, catalog.Len()) {
		require.NotContains(t, w.Message, "{", w.Code)
		require.NotContains(t, w.Recommendation, "{", w.Code)
	}
}

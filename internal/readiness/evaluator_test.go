package readiness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
)

func TestEvaluateNoIssuesPassesEverything(t *testing.T) {
	t.Parallel()

	results := NewEvaluator(nil).Evaluate(nil)
	require.Len(t, results, 6)
	for _, r := range results {
		require.Equal(t, r.Total, r.Passed, r.Platform)
		require.Equal(t, 100, r.Score)
		require.Equal(t, "A", r.LetterGrade)
		for _, c := range r.Checks {
			require.True(t, c.Pass)
		}
	}
}

func TestEvaluateFailsFactorsWithRaisedIssues(t *testing.T) {
	t.Parallel()

	results := NewEvaluator(nil).Evaluate([]string{
		scoring.CodeAICrawlersBlocked,
		scoring.CodeMissingLLMsTxt,
		scoring.CodeMissingLLMsTxt,
		"NOT_ON_ANY_CHECKLIST",
	})

	byPlatform := map[string]PlatformResult{}
	for _, r := range results {
		byPlatform[r.Platform] = r
	}

	chatgpt := byPlatform["chatgpt"]
	require.Equal(t, 7, chatgpt.Total)
	require.Equal(t, 5, chatgpt.Passed)
	require.Equal(t, 71, chatgpt.Score) // 5/7 = 71.4
	require.Equal(t, "C", chatgpt.LetterGrade)
	for _, c := range chatgpt.Checks {
		wantFail := c.IssueCode == scoring.CodeAICrawlersBlocked || c.IssueCode == scoring.CodeMissingLLMsTxt
		require.Equal(t, !wantFail, c.Pass, c.Factor)
	}

	perplexity := byPlatform["perplexity"]
	require.Equal(t, 5, perplexity.Passed)
	require.Equal(t, 83, perplexity.Score)
	require.Equal(t, "B", perplexity.LetterGrade)
}

func TestEvaluateKeepsTableOrder(t *testing.T) {
	t.Parallel()

	var ids []string
	for _, r := range NewEvaluator(nil).Evaluate(nil) {
		ids = append(ids, r.Platform)
	}
	require.Equal(t, []string{"chatgpt", "perplexity", "claude", "gemini", "google_ai_overviews", "copilot"}, ids)
}

func TestNewRequirementsValidatesIssueCodes(t *testing.T) {
	t.Parallel()

	_, err := NewRequirements(nil, []Platform{{
		ID:           "bogus",
		Requirements: []Requirement{{Factor: "x", IssueCode: "NOT_A_CODE"}},
	}})
	require.ErrorContains(t, err, "NOT_A_CODE")

	_, err = NewRequirements(nil, []Platform{{ID: "empty"}})
	require.Error(t, err)

	p := Platform{ID: "dup", Requirements: []Requirement{{Factor: "t", IssueCode: scoring.CodeMissingTitle}}}
	_, err = NewRequirements(nil, []Platform{p, p})
	require.ErrorContains(t, err, "duplicate")
}

func TestPlatformsReturnsCopy(t *testing.T) {
	t.Parallel()

	reqs := DefaultRequirements()
	platforms := reqs.Platforms()
	platforms[0].Requirements[0].IssueCode = "MUTATED"

	require.NotEqual(t, "MUTATED", reqs.Platforms()[0].Requirements[0].IssueCode)
	results := NewEvaluator(reqs).Evaluate([]string{"MUTATED"})
	require.Equal(t, results[0].Total, results[0].Passed)
}

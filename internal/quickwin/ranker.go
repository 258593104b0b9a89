// Package quickwin ranks a job's issues into actionable recommendations.
package quickwin

import (
	"math"
	"sort"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
)

// DefaultLimit is used when callers pass a non-positive limit.
const DefaultLimit = 5

// QuickWin is one ranked recommendation aggregated over every page that
// raised the same issue code.
type QuickWin struct {
	Code           string           `json:"code"`
	Category       crawler.Category `json:"category"`
	Severity       crawler.Severity `json:"severity"`
	Effort         scoring.Effort   `json:"effort"`
	ScoreImpact    int              `json:"score_impact"`
	AffectedPages  int              `json:"affected_pages"`
	Priority       float64          `json:"priority"`
	Message        string           `json:"message"`
	Recommendation string           `json:"recommendation"`
}

var severityWeight = map[crawler.Severity]float64{
	crawler.SeverityCritical: 3,
	crawler.SeverityWarning:  2,
	crawler.SeverityInfo:     1,
}

var effortWeight = map[scoring.Effort]float64{
	scoring.EffortLow:    1,
	scoring.EffortMedium: 2,
	scoring.EffortHigh:   4,
}

// Ranker orders issues by impact-to-effort ratio.
type Ranker struct {
	catalog *scoring.Catalog
}

// NewRanker builds a ranker over catalog; nil selects the default catalog.
func NewRanker(catalog *scoring.Catalog) *Ranker {
	if catalog == nil {
		catalog = scoring.DefaultCatalog()
	}
	return &Ranker{catalog: catalog}
}

// Rank groups issues by code and returns the top limit entries. Codes with a
// zero score impact or missing from the catalog are skipped. Ordering is
// priority desc, affected pages desc, code asc.
func (r *Ranker) Rank(issues []crawler.Issue, limit int) []QuickWin {
	if limit <= 0 {
		limit = DefaultLimit
	}

	pages := map[string]map[string]struct{}{}
	for _, iss := range issues {
		set, ok := pages[iss.Code]
		if !ok {
			set = map[string]struct{}{}
			pages[iss.Code] = set
		}
		set[iss.PageID] = struct{}{}
	}

	wins := make([]QuickWin, 0, len(pages))
	for code, set := range pages {
		def, ok := r.catalog.Lookup(code)
		if !ok || def.ScoreImpact == 0 {
			continue
		}
		msg, rec := def.Summary(len(set))
		wins = append(wins, QuickWin{
			Code:           def.Code,
			Category:       def.Category,
			Severity:       def.Severity,
			Effort:         def.Effort,
			ScoreImpact:    def.ScoreImpact,
			AffectedPages:  len(set),
			Priority:       Priority(def),
			Message:        msg,
			Recommendation: rec,
		})
	}

	sort.Slice(wins, func(i, j int) bool {
		a, b := wins[i], wins[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.AffectedPages != b.AffectedPages {
			return a.AffectedPages > b.AffectedPages
		}
		return a.Code < b.Code
	})

	if len(wins) > limit {
		wins = wins[:limit]
	}
	return wins
}

// Priority is |scoreImpact| × severityWeight / effortWeight.
func Priority(def scoring.IssueDefinition) float64 {
	effort := effortWeight[def.Effort]
	if effort == 0 {
		effort = effortWeight[scoring.EffortHigh]
	}
	return math.Abs(float64(def.ScoreImpact)) * severityWeight[def.Severity] / effort
}

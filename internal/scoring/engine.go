package scoring

import (
	"fmt"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// Version identifies the rule table revision recorded in score details.
const Version = "2025.1"

// Finding is one failing rule produced by the engine.
type Finding struct {
	Code           string
	Category       crawler.Category
	Severity       crawler.Severity
	Kind           ImpactKind
	Message        string
	Recommendation string
	Impact         int
	Data           map[string]any
}

// Result is the outcome of scoring one page.
type Result struct {
	Technical   int
	Content     int
	AIReadiness int
	Performance int
	Overall     int
	LetterGrade string
	Findings    []Finding
}

// CategoryScores returns the category scores keyed by category.
func (r Result) CategoryScores() map[crawler.Category]int {
	return map[crawler.Category]int{
		crawler.CategoryTechnical:   r.Technical,
		crawler.CategoryContent:     r.Content,
		crawler.CategoryAIReadiness: r.AIReadiness,
		crawler.CategoryPerformance: r.Performance,
	}
}

// Engine evaluates a catalog's rules against page facts. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	catalog *Catalog
	checks  map[string]check
}

// NewEngine binds catalog definitions to the built-in checks. Every
// definition must have a check.
func NewEngine(catalog *Catalog) (*Engine, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	checks := defaultChecks()
	for _, def := range catalog.defs {
		if _, ok := checks[def.Code]; !ok {
			return nil, fmt.Errorf("no check registered for %s", def.Code)
		}
	}
	return &Engine{catalog: catalog, checks: checks}, nil
}

// MustEngine is NewEngine that panics on error.
func MustEngine(catalog *Catalog) *Engine {
	e, err := NewEngine(catalog)
	if err != nil {
		panic(err)
	}
	return e
}

// Catalog returns the catalog the engine evaluates.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Score evaluates every rule against facts. Pages outside 2xx are scored
// for the status rule and performance only; content and AI readiness are 0.
func (e *Engine) Score(facts crawler.PageFacts) Result {
	ok := facts.OK()
	totals := map[crawler.Category]int{}
	var findings []Finding

	for _, def := range e.catalog.defs {
		if !ok && def.Category != crawler.CategoryPerformance && def.Code != CodeHTTPStatus {
			continue
		}
		out := e.checks[def.Code](facts)
		if !out.failed {
			continue
		}
		impact := impactOf(def, out)
		totals[def.Category] += impact
		findings = append(findings, Finding{
			Code:           def.Code,
			Category:       def.Category,
			Severity:       def.Severity,
			Kind:           def.Kind,
			Message:        render(def.Message, out.count, out.value),
			Recommendation: render(def.Recommendation, out.count, out.value),
			Impact:         impact,
			Data:           out.data,
		})
	}

	res := Result{
		Technical:   clamp(100 + totals[crawler.CategoryTechnical]),
		Content:     clamp(100 + totals[crawler.CategoryContent]),
		AIReadiness: clamp(100 + totals[crawler.CategoryAIReadiness]),
		Performance: clamp(100 + totals[crawler.CategoryPerformance]),
		Findings:    findings,
	}
	if !ok {
		res.Content = 0
		res.AIReadiness = 0
	}
	res.Overall = Overall(res.Technical, res.Content, res.AIReadiness, res.Performance)
	res.LetterGrade = LetterGrade(res.Overall)
	return res
}

// Dynamic returns only the LLM-derived findings.
func (r Result) Dynamic() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Kind == ImpactDynamic {
			out = append(out, f)
		}
	}
	return out
}

// Issues converts findings into issue rows for a page.
func (r Result) Issues(jobID, pageID string) []crawler.Issue {
	return IssuesFor(r.Findings, jobID, pageID)
}

// IssuesFor converts a subset of findings into issue rows.
func IssuesFor(findings []Finding, jobID, pageID string) []crawler.Issue {
	out := make([]crawler.Issue, 0, len(findings))
	for _, f := range findings {
		out = append(out, crawler.Issue{
			PageID:         pageID,
			JobID:          jobID,
			Code:           f.Code,
			Category:       f.Category,
			Severity:       f.Severity,
			Message:        f.Message,
			Recommendation: f.Recommendation,
			Data:           f.Data,
		})
	}
	return out
}

// Detail builds the detail document stored with a page score.
func (r Result) Detail(facts crawler.PageFacts) map[string]any {
	codes := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		codes = append(codes, f.Code)
	}
	detail := map[string]any{
		"scoring_version": Version,
		"letter_grade":    r.LetterGrade,
		"issue_codes":     codes,
		"status_code":     facts.StatusCode,
		"extracted": map[string]any{
			"title":              facts.Title,
			"meta_description":   facts.MetaDescription,
			"canonical_url":      facts.CanonicalURL,
			"h1":                 facts.H1,
			"schema_types":       facts.SchemaTypes,
			"word_count":         facts.WordCount,
			"images_missing_alt": facts.ImagesMissing,
			"internal_links":     len(facts.InternalLinks),
			"external_links":     len(facts.ExternalLinks),
		},
	}
	if facts.Lighthouse != nil {
		detail["lighthouse"] = *facts.Lighthouse
	}
	if facts.LLMScores != nil {
		detail["llm_average"] = facts.LLMScores.Average()
	}
	return detail
}

func impactOf(def IssueDefinition, out outcome) int {
	switch def.Kind {
	case ImpactPerItem:
		impact := def.ScoreImpact * out.count
		if impact < def.Cap {
			impact = def.Cap
		}
		return impact
	case ImpactDynamic:
		return -out.count
	default:
		return def.ScoreImpact
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

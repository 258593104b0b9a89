// Package readiness maps a job's issues onto per-platform ranking factors.
package readiness

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
)

// Importance ranks how much a platform relies on a factor.
type Importance string

// Importance levels.
const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceMedium   Importance = "medium"
	ImportanceLow      Importance = "low"
)

// Requirement is one factor on a platform checklist. It passes when
// IssueCode was not raised for the job.
type Requirement struct {
	Factor     string     `json:"factor"`
	Label      string     `json:"label"`
	Importance Importance `json:"importance"`
	IssueCode  string     `json:"issue_code"`
}

// Platform is one AI answer engine and its checklist.
type Platform struct {
	ID           string
	Name         string
	Requirements []Requirement
}

// Requirements is the immutable platform table.
type Requirements struct {
	platforms []Platform
}

// NewRequirements validates every issue code against catalog and freezes
// the table.
func NewRequirements(catalog *scoring.Catalog, platforms []Platform) (*Requirements, error) {
	if catalog == nil {
		catalog = scoring.DefaultCatalog()
	}
	seen := map[string]bool{}
	out := make([]Platform, 0, len(platforms))
	for _, p := range platforms {
		if p.ID == "" {
			return nil, errors.New("platform id is required")
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate platform %q", p.ID)
		}
		seen[p.ID] = true
		if len(p.Requirements) == 0 {
			return nil, fmt.Errorf("platform %s has no requirements", p.ID)
		}
		for _, r := range p.Requirements {
			if _, ok := catalog.Lookup(r.IssueCode); !ok {
				return nil, fmt.Errorf("platform %s factor %s: unknown issue code %q", p.ID, r.Factor, r.IssueCode)
			}
		}
		reqs := make([]Requirement, len(p.Requirements))
		copy(reqs, p.Requirements)
		p.Requirements = reqs
		out = append(out, p)
	}
	return &Requirements{platforms: out}, nil
}

// DefaultRequirements returns the built-in platform table bound to the
// default catalog.
func DefaultRequirements() *Requirements {
	r, err := NewRequirements(scoring.DefaultCatalog(), defaultPlatforms())
	if err != nil {
		panic(err)
	}
	return r
}

// Platforms returns a deep copy of the table.
func (r *Requirements) Platforms() []Platform {
	out := make([]Platform, len(r.platforms))
	for i, p := range r.platforms {
		reqs := make([]Requirement, len(p.Requirements))
		copy(reqs, p.Requirements)
		p.Requirements = reqs
		out[i] = p
	}
	return out
}

func defaultPlatforms() []Platform {
	return []Platform{
		{
			ID:   "chatgpt",
			Name: "ChatGPT",
			Requirements: []Requirement{
				{"bot_access", "GPTBot allowed in robots.txt", ImportanceCritical, scoring.CodeAICrawlersBlocked},
				{"partial_bot_access", "No AI crawlers selectively blocked", ImportanceHigh, scoring.CodeAICrawlersPartial},
				{"llms_txt", "llms.txt published", ImportanceHigh, scoring.CodeMissingLLMsTxt},
				{"structured_data", "Structured data present", ImportanceHigh, scoring.CodeNoStructuredData},
				{"content_depth", "Substantive content", ImportanceMedium, scoring.CodeThinContent},
				{"citations", "Cites external sources", ImportanceMedium, scoring.CodeNoExternalLinks},
				{"server_rendered", "Content readable without JavaScript", ImportanceHigh, scoring.CodeContentRequiresJS},
			},
		},
		{
			ID:   "perplexity",
			Name: "Perplexity",
			Requirements: []Requirement{
				{"bot_access", "PerplexityBot allowed in robots.txt", ImportanceCritical, scoring.CodeAICrawlersBlocked},
				{"citations", "Cites external sources", ImportanceHigh, scoring.CodeNoExternalLinks},
				{"freshness", "Publication date shown", ImportanceHigh, scoring.CodeMissingPublishDate},
				{"direct_answers", "Opens with a concise summary", ImportanceHigh, scoring.CodeMissingSummary},
				{"question_headings", "Question-style headings", ImportanceMedium, scoring.CodeNoQuestionHeadings},
				{"indexable", "Page is indexable", ImportanceCritical, scoring.CodeNoindex},
			},
		},
		{
			ID:   "claude",
			Name: "Claude",
			Requirements: []Requirement{
				{"bot_access", "ClaudeBot allowed in robots.txt", ImportanceCritical, scoring.CodeAICrawlersBlocked},
				{"llms_txt", "llms.txt published", ImportanceHigh, scoring.CodeMissingLLMsTxt},
				{"content_depth", "Substantive content", ImportanceHigh, scoring.CodeThinContent},
				{"readability", "Readable prose", ImportanceMedium, scoring.CodeLowReadability},
				{"authorship", "Named author", ImportanceMedium, scoring.CodeMissingAuthor},
				{"server_rendered", "Content readable without JavaScript", ImportanceHigh, scoring.CodeContentRequiresJS},
			},
		},
		{
			ID:   "gemini",
			Name: "Gemini",
			Requirements: []Requirement{
				{"bot_access", "Google-Extended allowed in robots.txt", ImportanceCritical, scoring.CodeAICrawlersBlocked},
				{"structured_data", "Structured data present", ImportanceHigh, scoring.CodeNoStructuredData},
				{"organization", "Organization schema", ImportanceMedium, scoring.CodeMissingOrgSchema},
				{"sitemap", "XML sitemap published", ImportanceMedium, scoring.CodeMissingSitemap},
				{"mobile", "Mobile viewport", ImportanceMedium, scoring.CodeMissingViewport},
				{"performance", "Lighthouse performance", ImportanceLow, scoring.CodeLHPerformanceLow},
			},
		},
		{
			ID:   "google_ai_overviews",
			Name: "Google AI Overviews",
			Requirements: []Requirement{
				{"indexable", "Page is indexable", ImportanceCritical, scoring.CodeNoindex},
				{"title", "Descriptive title", ImportanceHigh, scoring.CodeMissingTitle},
				{"meta_description", "Meta description", ImportanceMedium, scoring.CodeMissingMeta},
				{"faq_schema", "FAQ markup on Q&A content", ImportanceHigh, scoring.CodeMissingFAQSchema},
				{"structured_data", "Structured data present", ImportanceHigh, scoring.CodeNoStructuredData},
				{"https", "Served over HTTPS", ImportanceHigh, scoring.CodeNotHTTPS},
				{"seo_audit", "Lighthouse SEO", ImportanceMedium, scoring.CodeLHSEOLow},
				{"speed", "Fast server response", ImportanceLow, scoring.CodeSlowResponse},
			},
		},
		{
			ID:   "copilot",
			Name: "Microsoft Copilot",
			Requirements: []Requirement{
				{"bot_access", "AI crawlers allowed in robots.txt", ImportanceCritical, scoring.CodeAICrawlersBlocked},
				{"sitemap", "XML sitemap published", ImportanceHigh, scoring.CodeMissingSitemap},
				{"robots_txt", "robots.txt published", ImportanceMedium, scoring.CodeMissingRobotsTxt},
				{"canonical", "Canonical URL", ImportanceMedium, scoring.CodeMissingCanonical},
				{"article_schema", "Article markup", ImportanceMedium, scoring.CodeMissingArticleSchema},
				{"headings", "H1 heading", ImportanceLow, scoring.CodeMissingH1},
			},
		},
	}
}

// Package scoring implements the rule-based page scoring engine and the
// static issue catalog it evaluates.
package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// ImpactKind selects how a failing rule changes its category score.
type ImpactKind string

// Impact shapes.
const (
	// ImpactFixed applies ScoreImpact once.
	ImpactFixed ImpactKind = "fixed"
	// ImpactPerItem applies ScoreImpact per counted item, bounded by Cap.
	ImpactPerItem ImpactKind = "per_item"
	// ImpactDynamic is derived from LLM scores; ScoreImpact is 0.
	ImpactDynamic ImpactKind = "dynamic"
)

// Effort estimates the work needed to fix an issue.
type Effort string

// Effort levels.
const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// IssueDefinition describes one scoring rule. ScoreImpact is signed (<= 0).
// Message and Recommendation may contain {count} and {value} placeholders.
type IssueDefinition struct {
	Code           string
	Category       crawler.Category
	Severity       crawler.Severity
	ScoreImpact    int
	Kind           ImpactKind
	Cap            int
	Effort         Effort
	Message        string
	Recommendation string
}

// Catalog is the immutable rule table. Build it once at startup and share it.
type Catalog struct {
	defs   []IssueDefinition
	byCode map[string]int
}

// NewCatalog validates and freezes a rule table.
func NewCatalog(defs []IssueDefinition) (*Catalog, error) {
	c := &Catalog{
		defs:   make([]IssueDefinition, len(defs)),
		byCode: make(map[string]int, len(defs)),
	}
	copy(c.defs, defs)
	for i, d := range c.defs {
		if d.Code == "" {
			return nil, fmt.Errorf("definition %d: code is required", i)
		}
		if _, dup := c.byCode[d.Code]; dup {
			return nil, fmt.Errorf("duplicate issue code %q", d.Code)
		}
		if d.ScoreImpact > 0 {
			return nil, fmt.Errorf("%s: score impact must be <= 0", d.Code)
		}
		switch d.Kind {
		case ImpactFixed:
		case ImpactPerItem:
			if d.Cap > 0 || d.Cap > d.ScoreImpact {
				return nil, fmt.Errorf("%s: per-item cap must be <= score impact", d.Code)
			}
		case ImpactDynamic:
			if d.ScoreImpact != 0 {
				return nil, fmt.Errorf("%s: dynamic rules carry a zero score impact", d.Code)
			}
		default:
			return nil, fmt.Errorf("%s: unknown impact kind %q", d.Code, d.Kind)
		}
		switch d.Category {
		case crawler.CategoryTechnical, crawler.CategoryContent, crawler.CategoryAIReadiness, crawler.CategoryPerformance:
		default:
			return nil, fmt.Errorf("%s: unknown category %q", d.Code, d.Category)
		}
		if d.Severity.Rank() == 0 {
			return nil, fmt.Errorf("%s: unknown severity %q", d.Code, d.Severity)
		}
		switch d.Effort {
		case EffortLow, EffortMedium, EffortHigh:
		default:
			return nil, fmt.Errorf("%s: unknown effort %q", d.Code, d.Effort)
		}
		c.byCode[d.Code] = i
	}
	return c, nil
}

// MustCatalog panics when defs are invalid; used for the built-in table.
func MustCatalog(defs []IssueDefinition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCatalog returns the built-in rule table.
func DefaultCatalog() *Catalog {
	return MustCatalog(defaultDefinitions())
}

// Lookup returns the definition for code.
func (c *Catalog) Lookup(code string) (IssueDefinition, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return IssueDefinition{}, false
	}
	return c.defs[i], true
}

// Definitions returns a copy of the table in declaration order.
func (c *Catalog) Definitions() []IssueDefinition {
	out := make([]IssueDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	return len(c.defs)
}

func render(template string, count, value int) string {
	return strings.NewReplacer(
		"{count}", strconv.Itoa(count),
		"{value}", strconv.Itoa(value),
	).Replace(template)
}

func hasPlaceholder(template string) bool {
	return strings.Contains(template, "{count}") || strings.Contains(template, "{value}")
}

// Summary renders the definition's text for an issue raised on pages
// distinct pages. Per-page placeholders have no single job-level value, so
// templated messages collapse to the issue name and the affected page count.
func (d IssueDefinition) Summary(pages int) (message, recommendation string) {
	message = d.Message
	if hasPlaceholder(message) {
		noun := "pages"
		if pages == 1 {
			noun = "page"
		}
		message = fmt.Sprintf("%s on %d %s.", humanize(d.Code), pages, noun)
	}
	recommendation = d.Recommendation
	if hasPlaceholder(recommendation) {
		recommendation = render(recommendation, pages, pages)
	}
	return message, recommendation
}

// humanize turns THIN_CONTENT into "Thin content".
func humanize(code string) string {
	s := strings.ToLower(strings.ReplaceAll(code, "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Issue codes referenced outside the rule table.
const (
	CodeHTTPStatus           = "HTTP_STATUS_ERROR"
	CodeMissingTitle         = "MISSING_TITLE"
	CodeMissingMeta          = "MISSING_META_DESCRIPTION"
	CodeMissingCanonical     = "MISSING_CANONICAL"
	CodeNoindex              = "NOINDEX_DIRECTIVE"
	CodeMissingH1            = "MISSING_H1"
	CodeBrokenLinks          = "BROKEN_LINKS"
	CodeNotHTTPS             = "NOT_HTTPS"
	CodeMissingViewport      = "MISSING_VIEWPORT"
	CodeMissingSitemap       = "MISSING_SITEMAP"
	CodeMissingRobotsTxt     = "MISSING_ROBOTS_TXT"
	CodeThinContent          = "THIN_CONTENT"
	CodeMissingAltText       = "MISSING_ALT_TEXT"
	CodeNoInternalLinks      = "NO_INTERNAL_LINKS"
	CodeNoExternalLinks      = "NO_EXTERNAL_LINKS"
	CodeMissingAuthor        = "MISSING_AUTHOR"
	CodeMissingPublishDate   = "MISSING_PUBLISH_DATE"
	CodeLowReadability       = "LOW_READABILITY"
	CodeNoQuestionHeadings   = "NO_QUESTION_HEADINGS"
	CodeMissingSummary       = "MISSING_SUMMARY"
	CodeLLMClarity           = "LLM_LOW_CLARITY"
	CodeLLMAuthority         = "LLM_LOW_AUTHORITY"
	CodeLLMComprehensive     = "LLM_LOW_COMPREHENSIVENESS"
	CodeLLMStructure         = "LLM_LOW_STRUCTURE"
	CodeLLMCitability        = "LLM_LOW_CITABILITY"
	CodeMissingLLMsTxt       = "MISSING_LLMS_TXT"
	CodeAICrawlersBlocked    = "AI_CRAWLERS_BLOCKED"
	CodeAICrawlersPartial    = "AI_CRAWLERS_PARTIALLY_BLOCKED"
	CodeNoStructuredData     = "NO_STRUCTURED_DATA"
	CodeInvalidSchema        = "INVALID_STRUCTURED_DATA"
	CodeMissingOrgSchema     = "MISSING_ORGANIZATION_SCHEMA"
	CodeMissingFAQSchema     = "MISSING_FAQ_SCHEMA"
	CodeMissingArticleSchema = "MISSING_ARTICLE_SCHEMA"
	CodeContentRequiresJS    = "CONTENT_REQUIRES_JS"
	CodeLHPerformanceLow     = "LH_PERFORMANCE_LOW"
	CodeLHSEOLow             = "LH_SEO_LOW"
	CodeSlowResponse         = "SLOW_RESPONSE"
)

func defaultDefinitions() []IssueDefinition {
	const (
		tech = crawler.CategoryTechnical
		cont = crawler.CategoryContent
		ai   = crawler.CategoryAIReadiness
		perf = crawler.CategoryPerformance
		crit = crawler.SeverityCritical
		warn = crawler.SeverityWarning
		info = crawler.SeverityInfo
	)
	return []IssueDefinition{
		// technical
		{CodeHTTPStatus, tech, crit, -50, ImpactFixed, 0, EffortMedium,
			"Page returned HTTP {value}.",
			"Fix the server response or remove links to this URL so crawlers receive a 2xx page."},
		{CodeMissingTitle, tech, crit, -15, ImpactFixed, 0, EffortLow,
			"Page has no <title>.",
			"Add a unique, descriptive title between 30 and 60 characters."},
		{"TITLE_TOO_LONG", tech, info, -3, ImpactFixed, 0, EffortLow,
			"Title is {value} characters and will be truncated.",
			"Shorten the title to 60 characters or fewer."},
		{"TITLE_TOO_SHORT", tech, info, -3, ImpactFixed, 0, EffortLow,
			"Title is only {value} characters.",
			"Expand the title to at least 30 characters describing the page."},
		{CodeMissingMeta, tech, warn, -10, ImpactFixed, 0, EffortLow,
			"Page has no meta description.",
			"Add a meta description summarising the page in 70-160 characters."},
		{"META_DESCRIPTION_LENGTH", tech, info, -3, ImpactFixed, 0, EffortLow,
			"Meta description is {value} characters.",
			"Keep the meta description between 70 and 160 characters."},
		{CodeMissingCanonical, tech, warn, -8, ImpactFixed, 0, EffortLow,
			"Page has no canonical URL.",
			"Add <link rel=\"canonical\"> pointing at the preferred URL."},
		{"CANONICAL_MISMATCH", tech, info, -3, ImpactFixed, 0, EffortLow,
			"Canonical URL points to a different page.",
			"Confirm the canonical target is intentional; otherwise self-reference this page."},
		{CodeNoindex, tech, crit, -20, ImpactFixed, 0, EffortLow,
			"Page carries a noindex directive.",
			"Remove noindex if this page should appear in search and AI answers."},
		{CodeMissingH1, tech, warn, -8, ImpactFixed, 0, EffortLow,
			"Page has no H1 heading.",
			"Add a single H1 that states the page topic."},
		{"MULTIPLE_H1", tech, info, -3, ImpactFixed, 0, EffortLow,
			"Page has {count} H1 headings.",
			"Use one H1 and demote the others to H2."},
		{"HEADING_HIERARCHY_SKIP", tech, info, -2, ImpactFixed, 0, EffortMedium,
			"Heading levels skip from H{value}.",
			"Nest headings sequentially (H1 > H2 > H3) so the outline is machine-readable."},
		{CodeBrokenLinks, tech, warn, -5, ImpactPerItem, -20, EffortMedium,
			"{count} broken links found.",
			"Update or remove links that return errors."},
		{"REDIRECT_CHAIN", tech, warn, -8, ImpactFixed, 0, EffortMedium,
			"URL passes through {count} redirects.",
			"Link directly to the final URL and collapse redirect chains to one hop."},
		{CodeNotHTTPS, tech, crit, -20, ImpactFixed, 0, EffortHigh,
			"Page is served over plain HTTP.",
			"Serve every page over HTTPS and redirect HTTP requests."},
		{CodeMissingViewport, tech, warn, -8, ImpactFixed, 0, EffortLow,
			"Page has no viewport meta tag.",
			"Add <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">."},
		{"MISSING_LANG", tech, info, -3, ImpactFixed, 0, EffortLow,
			"The <html> element has no lang attribute.",
			"Declare the page language with <html lang=\"...\">."},
		{"MISSING_OG_TAGS", tech, info, -3, ImpactFixed, 0, EffortLow,
			"Page has no Open Graph title or description.",
			"Add og:title and og:description so shared links render with context."},
		{CodeMissingSitemap, tech, warn, -5, ImpactFixed, 0, EffortLow,
			"Site has no XML sitemap.",
			"Publish /sitemap.xml and reference it from robots.txt."},
		{CodeMissingRobotsTxt, tech, warn, -5, ImpactFixed, 0, EffortLow,
			"Site has no robots.txt.",
			"Publish /robots.txt describing crawler access."},

		// content
		{CodeThinContent, cont, warn, -15, ImpactFixed, 0, EffortHigh,
			"Page has only {value} words.",
			"Expand the page to at least 300 words of substantive content."},
		{CodeMissingAltText, cont, warn, -3, ImpactPerItem, -15, EffortLow,
			"{count} images are missing alt text.",
			"Describe every meaningful image with alt text."},
		{CodeNoInternalLinks, cont, warn, -8, ImpactFixed, 0, EffortLow,
			"Page has no internal links.",
			"Link to related pages on the same site."},
		{CodeNoExternalLinks, cont, info, -3, ImpactFixed, 0, EffortLow,
			"Page cites no external sources.",
			"Reference authoritative sources to support claims."},
		{CodeMissingAuthor, cont, info, -3, ImpactFixed, 0, EffortLow,
			"Page does not name an author.",
			"Attribute content to a named author with credentials."},
		{CodeMissingPublishDate, cont, info, -3, ImpactFixed, 0, EffortLow,
			"Page has no publication or update date.",
			"Show when the content was published or last reviewed."},
		{CodeLowReadability, cont, warn, -5, ImpactFixed, 0, EffortMedium,
			"Readability score is {value}.",
			"Use shorter sentences and plainer words."},
		{"NO_STRUCTURED_CONTENT", cont, info, -3, ImpactFixed, 0, EffortMedium,
			"Page has no lists or tables.",
			"Break dense facts into lists or tables that are easy to extract."},
		{CodeNoQuestionHeadings, cont, info, -3, ImpactFixed, 0, EffortMedium,
			"No headings are phrased as questions.",
			"Add question-style headings that match how people ask AI assistants."},
		{CodeMissingSummary, cont, info, -3, ImpactFixed, 0, EffortMedium,
			"Page does not open with a concise summary.",
			"Start with a two or three sentence answer before the detail."},
		{CodeLLMClarity, cont, info, 0, ImpactDynamic, 0, EffortMedium,
			"Clarity scored {value}/100.",
			"Simplify phrasing and define terms on first use."},
		{CodeLLMAuthority, cont, info, 0, ImpactDynamic, 0, EffortHigh,
			"Authority scored {value}/100.",
			"Add expertise signals: author bios, sources, first-hand data."},
		{CodeLLMComprehensive, cont, info, 0, ImpactDynamic, 0, EffortHigh,
			"Comprehensiveness scored {value}/100.",
			"Cover the follow-up questions a reader would ask."},
		{CodeLLMStructure, cont, info, 0, ImpactDynamic, 0, EffortMedium,
			"Structure scored {value}/100.",
			"Organise content under descriptive headings with one idea per section."},
		{CodeLLMCitability, cont, info, 0, ImpactDynamic, 0, EffortMedium,
			"Citability scored {value}/100.",
			"Write self-contained, quotable statements with concrete facts."},

		// ai readiness
		{CodeMissingLLMsTxt, ai, crit, -20, ImpactFixed, 0, EffortLow,
			"Site has no llms.txt.",
			"Publish /llms.txt listing your most important pages for language models."},
		{CodeAICrawlersBlocked, ai, crit, -25, ImpactFixed, 0, EffortLow,
			"robots.txt blocks all {count} AI crawlers checked.",
			"Allow GPTBot, ClaudeBot, PerplexityBot and Google-Extended in robots.txt."},
		{CodeAICrawlersPartial, ai, warn, -10, ImpactFixed, 0, EffortLow,
			"robots.txt blocks {count} AI crawlers.",
			"Review robots.txt and allow the AI crawlers you want to be cited by."},
		{CodeNoStructuredData, ai, warn, -15, ImpactFixed, 0, EffortMedium,
			"Page has no structured data.",
			"Add JSON-LD schema.org markup describing the page."},
		{CodeInvalidSchema, ai, warn, -8, ImpactFixed, 0, EffortMedium,
			"{count} structured data blocks failed to parse.",
			"Validate JSON-LD and fix syntax errors."},
		{CodeMissingOrgSchema, ai, info, -5, ImpactFixed, 0, EffortLow,
			"Structured data does not identify the organisation.",
			"Add Organization schema with name, logo, and sameAs profiles."},
		{CodeMissingFAQSchema, ai, info, -3, ImpactFixed, 0, EffortLow,
			"Question-and-answer content lacks FAQPage markup.",
			"Mark up FAQ sections with FAQPage schema."},
		{CodeMissingArticleSchema, ai, info, -3, ImpactFixed, 0, EffortLow,
			"Article-like content lacks Article markup.",
			"Add Article or BlogPosting schema with author and dates."},
		{"MISSING_BREADCRUMB_SCHEMA", ai, info, -2, ImpactFixed, 0, EffortLow,
			"Page has no BreadcrumbList markup.",
			"Add BreadcrumbList schema to expose site hierarchy."},
		{CodeContentRequiresJS, ai, warn, -10, ImpactFixed, 0, EffortHigh,
			"Only {value}% of the HTML is readable text.",
			"Server-render primary content; many AI crawlers do not execute JavaScript."},

		// performance
		{CodeLHPerformanceLow, perf, warn, -15, ImpactFixed, 0, EffortHigh,
			"Lighthouse performance is {value}.",
			"Reduce render-blocking resources and large script bundles."},
		{"LH_PERFORMANCE_MEDIOCRE", perf, info, -5, ImpactFixed, 0, EffortMedium,
			"Lighthouse performance is {value}.",
			"Optimise images and defer non-critical scripts."},
		{CodeLHSEOLow, perf, warn, -10, ImpactFixed, 0, EffortMedium,
			"Lighthouse SEO is {value}.",
			"Fix the failing Lighthouse SEO audits."},
		{"LH_ACCESSIBILITY_LOW", perf, info, -5, ImpactFixed, 0, EffortMedium,
			"Lighthouse accessibility is {value}.",
			"Fix contrast, labels, and landmark issues reported by Lighthouse."},
		{"LH_BEST_PRACTICES_LOW", perf, info, -5, ImpactFixed, 0, EffortMedium,
			"Lighthouse best practices is {value}.",
			"Address the failing Lighthouse best-practice audits."},
		{CodeSlowResponse, perf, warn, -10, ImpactFixed, 0, EffortHigh,
			"Server responded in {value} ms.",
			"Cache responses or add a CDN so the server answers within 2 seconds."},
		{"LARGE_PAGE_SIZE", perf, warn, -8, ImpactFixed, 0, EffortMedium,
			"Page weighs {value} KB.",
			"Compress assets and remove unused code to stay under 3 MB."},
	}
}

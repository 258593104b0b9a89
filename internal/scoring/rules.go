package scoring

import (
	"math"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// outcome is the result of evaluating one rule against one page.
// count drives per-item impacts; value feeds message templates and dynamic impacts.
type outcome struct {
	failed bool
	count  int
	value  int
	data   map[string]any
}

var pass = outcome{}

func fail(value int, data map[string]any) outcome {
	return outcome{failed: true, count: 1, value: value, data: data}
}

func failCount(count int, data map[string]any) outcome {
	if count <= 0 {
		return pass
	}
	return outcome{failed: true, count: count, value: count, data: data}
}

type check func(f crawler.PageFacts) outcome

// Thresholds used by the built-in rules.
const (
	titleMax           = 60
	titleMin           = 30
	metaMin            = 70
	metaMax            = 160
	thinContentWords   = 300
	readabilityMin     = 50.0
	textRatioMin       = 0.1
	slowResponseMs     = 2000
	largePageBytes     = 3 * 1024 * 1024
	lighthouseLow      = 0.5
	lighthouseGood     = 0.9
	lighthouseAuditMin = 0.7
	llmThreshold       = 60
)

func defaultChecks() map[string]check {
	return map[string]check{
		CodeHTTPStatus: func(f crawler.PageFacts) outcome {
			if f.OK() {
				return pass
			}
			return fail(f.StatusCode, map[string]any{"status_code": f.StatusCode})
		},
		CodeMissingTitle: func(f crawler.PageFacts) outcome {
			if blank(f.Title) {
				return fail(0, nil)
			}
			return pass
		},
		"TITLE_TOO_LONG": func(f crawler.PageFacts) outcome {
			if n := runeLen(f.Title); n > titleMax {
				return fail(n, map[string]any{"length": n})
			}
			return pass
		},
		"TITLE_TOO_SHORT": func(f crawler.PageFacts) outcome {
			if n := runeLen(f.Title); n > 0 && n < titleMin {
				return fail(n, map[string]any{"length": n})
			}
			return pass
		},
		CodeMissingMeta: func(f crawler.PageFacts) outcome {
			if blank(f.MetaDescription) {
				return fail(0, nil)
			}
			return pass
		},
		"META_DESCRIPTION_LENGTH": func(f crawler.PageFacts) outcome {
			n := runeLen(f.MetaDescription)
			if n > 0 && (n < metaMin || n > metaMax) {
				return fail(n, map[string]any{"length": n})
			}
			return pass
		},
		CodeMissingCanonical: func(f crawler.PageFacts) outcome {
			if blank(f.CanonicalURL) {
				return fail(0, nil)
			}
			return pass
		},
		"CANONICAL_MISMATCH": func(f crawler.PageFacts) outcome {
			if blank(f.CanonicalURL) || sameURL(f.CanonicalURL, f.URL) {
				return pass
			}
			return fail(0, map[string]any{"canonical_url": f.CanonicalURL})
		},
		CodeNoindex: func(f crawler.PageFacts) outcome {
			if strings.Contains(strings.ToLower(f.RobotsMeta), "noindex") {
				return fail(0, map[string]any{"robots_meta": f.RobotsMeta})
			}
			return pass
		},
		CodeMissingH1: func(f crawler.PageFacts) outcome {
			if len(f.H1) == 0 {
				return fail(0, nil)
			}
			return pass
		},
		"MULTIPLE_H1": func(f crawler.PageFacts) outcome {
			if len(f.H1) > 1 {
				return outcome{failed: true, count: 1, value: len(f.H1), data: map[string]any{"h1": f.H1}}
			}
			return pass
		},
		"HEADING_HIERARCHY_SKIP": func(f crawler.PageFacts) outcome {
			for i := 1; i < len(f.HeadingLevels); i++ {
				prev, cur := f.HeadingLevels[i-1], f.HeadingLevels[i]
				if cur > prev+1 {
					return fail(prev, map[string]any{"from": prev, "to": cur})
				}
			}
			return pass
		},
		CodeBrokenLinks: func(f crawler.PageFacts) outcome {
			return failCount(len(f.BrokenLinks), map[string]any{"links": f.BrokenLinks})
		},
		"REDIRECT_CHAIN": func(f crawler.PageFacts) outcome {
			if n := len(f.RedirectChain); n > 1 {
				return outcome{failed: true, count: n, value: n, data: map[string]any{"chain": f.RedirectChain}}
			}
			return pass
		},
		CodeNotHTTPS: func(f crawler.PageFacts) outcome {
			u, err := url.Parse(f.URL)
			if err == nil && strings.EqualFold(u.Scheme, "http") {
				return fail(0, nil)
			}
			return pass
		},
		CodeMissingViewport: func(f crawler.PageFacts) outcome {
			if !f.HasViewport {
				return fail(0, nil)
			}
			return pass
		},
		"MISSING_LANG": func(f crawler.PageFacts) outcome {
			if blank(f.Lang) {
				return fail(0, nil)
			}
			return pass
		},
		"MISSING_OG_TAGS": func(f crawler.PageFacts) outcome {
			if blank(f.OGTitle) && blank(f.OGDescription) {
				return fail(0, nil)
			}
			return pass
		},
		CodeMissingSitemap:   knownFalse(func(f crawler.PageFacts) *bool { return f.HasSitemap }),
		CodeMissingRobotsTxt: knownFalse(func(f crawler.PageFacts) *bool { return f.HasRobotsTxt }),

		CodeThinContent: func(f crawler.PageFacts) outcome {
			if f.WordCount < thinContentWords {
				return fail(f.WordCount, map[string]any{"word_count": f.WordCount})
			}
			return pass
		},
		CodeMissingAltText: func(f crawler.PageFacts) outcome {
			return failCount(f.ImagesMissing, map[string]any{"images_total": f.ImagesTotal})
		},
		CodeNoInternalLinks: func(f crawler.PageFacts) outcome {
			if len(f.InternalLinks) == 0 {
				return fail(0, nil)
			}
			return pass
		},
		CodeNoExternalLinks: func(f crawler.PageFacts) outcome {
			if len(f.ExternalLinks) == 0 {
				return fail(0, nil)
			}
			return pass
		},
		CodeMissingAuthor: func(f crawler.PageFacts) outcome {
			if blank(f.Author) {
				return fail(0, nil)
			}
			return pass
		},
		CodeMissingPublishDate: func(f crawler.PageFacts) outcome {
			if blank(f.PublishedAt) {
				return fail(0, nil)
			}
			return pass
		},
		CodeLowReadability: func(f crawler.PageFacts) outcome {
			if f.FleschScore != nil && *f.FleschScore < readabilityMin {
				v := int(math.Round(*f.FleschScore))
				return fail(v, map[string]any{"flesch_score": *f.FleschScore})
			}
			return pass
		},
		"NO_STRUCTURED_CONTENT": func(f crawler.PageFacts) outcome {
			if !f.HasLists && !f.HasTables {
				return fail(0, nil)
			}
			return pass
		},
		CodeNoQuestionHeadings: func(f crawler.PageFacts) outcome {
			if f.FAQCount > 0 || questionHeadings(f) > 0 {
				return pass
			}
			return fail(0, nil)
		},
		CodeMissingSummary: func(f crawler.PageFacts) outcome {
			if !f.SummaryPresent {
				return fail(0, nil)
			}
			return pass
		},
		CodeLLMClarity:       llmDimension("clarity", func(s crawler.LLMScores) int { return s.Clarity }),
		CodeLLMAuthority:     llmDimension("authority", func(s crawler.LLMScores) int { return s.Authority }),
		CodeLLMComprehensive: llmDimension("comprehensiveness", func(s crawler.LLMScores) int { return s.Comprehensiveness }),
		CodeLLMStructure:     llmDimension("structure", func(s crawler.LLMScores) int { return s.Structure }),
		CodeLLMCitability:    llmDimension("citability", func(s crawler.LLMScores) int { return s.Citability }),

		CodeMissingLLMsTxt: knownFalse(func(f crawler.PageFacts) *bool { return f.HasLLMsTxt }),
		CodeAICrawlersBlocked: func(f crawler.PageFacts) outcome {
			n := len(f.AIBotsBlocked)
			if n > 0 && f.AIBotsChecked > 0 && n >= f.AIBotsChecked {
				return outcome{failed: true, count: 1, value: n, data: map[string]any{"bots": f.AIBotsBlocked}}
			}
			return pass
		},
		CodeAICrawlersPartial: func(f crawler.PageFacts) outcome {
			n := len(f.AIBotsBlocked)
			if n > 0 && (f.AIBotsChecked == 0 || n < f.AIBotsChecked) {
				return outcome{failed: true, count: 1, value: n, data: map[string]any{"bots": f.AIBotsBlocked}}
			}
			return pass
		},
		CodeNoStructuredData: func(f crawler.PageFacts) outcome {
			if len(f.SchemaTypes) == 0 {
				return fail(0, nil)
			}
			return pass
		},
		CodeInvalidSchema: func(f crawler.PageFacts) outcome {
			if f.SchemaErrors > 0 {
				return outcome{failed: true, count: 1, value: f.SchemaErrors, data: map[string]any{"errors": f.SchemaErrors}}
			}
			return pass
		},
		CodeMissingOrgSchema: func(f crawler.PageFacts) outcome {
			if len(f.SchemaTypes) == 0 || hasSchema(f, "Organization", "LocalBusiness", "Corporation", "Person") {
				return pass
			}
			return fail(0, nil)
		},
		CodeMissingFAQSchema: func(f crawler.PageFacts) outcome {
			if f.FAQCount == 0 && questionHeadings(f) < 2 {
				return pass
			}
			if hasSchema(f, "FAQPage", "QAPage") {
				return pass
			}
			return fail(0, nil)
		},
		CodeMissingArticleSchema: func(f crawler.PageFacts) outcome {
			if blank(f.Author) && blank(f.PublishedAt) {
				return pass
			}
			if hasSchema(f, "Article", "BlogPosting", "NewsArticle", "TechArticle") {
				return pass
			}
			return fail(0, nil)
		},
		"MISSING_BREADCRUMB_SCHEMA": func(f crawler.PageFacts) outcome {
			if len(f.SchemaTypes) == 0 || hasSchema(f, "BreadcrumbList") {
				return pass
			}
			return fail(0, nil)
		},
		CodeContentRequiresJS: func(f crawler.PageFacts) outcome {
			if f.TextToHTMLRatio != nil && *f.TextToHTMLRatio < textRatioMin {
				pct := int(math.Round(*f.TextToHTMLRatio * 100))
				return fail(pct, map[string]any{"text_to_html_ratio": *f.TextToHTMLRatio})
			}
			return pass
		},

		CodeLHPerformanceLow:      lighthouse("performance", lhPerformance, 0, lighthouseLow),
		"LH_PERFORMANCE_MEDIOCRE": lighthouse("performance", lhPerformance, lighthouseLow, lighthouseGood),
		CodeLHSEOLow:              lighthouse("seo", lhSEO, 0, lighthouseAuditMin),
		"LH_ACCESSIBILITY_LOW":    lighthouse("accessibility", lhAccessibility, 0, lighthouseAuditMin),
		"LH_BEST_PRACTICES_LOW":   lighthouse("best_practices", lhBestPractices, 0, lighthouseAuditMin),
		CodeSlowResponse: func(f crawler.PageFacts) outcome {
			if f.ResponseTimeMs > slowResponseMs {
				return fail(f.ResponseTimeMs, map[string]any{"response_time_ms": f.ResponseTimeMs})
			}
			return pass
		},
		"LARGE_PAGE_SIZE": func(f crawler.PageFacts) outcome {
			if f.PageSizeBytes > largePageBytes {
				return fail(f.PageSizeBytes/1024, map[string]any{"page_size_bytes": f.PageSizeBytes})
			}
			return pass
		},
	}
}

func lhPerformance(l crawler.Lighthouse) float64   { return l.Performance }
func lhSEO(l crawler.Lighthouse) float64           { return l.SEO }
func lhAccessibility(l crawler.Lighthouse) float64 { return l.Accessibility }
func lhBestPractices(l crawler.Lighthouse) float64 { return l.BestPractices }

// knownFalse fires only when the fact was measured and is false.
func knownFalse(get func(crawler.PageFacts) *bool) check {
	return func(f crawler.PageFacts) outcome {
		if v := get(f); v != nil && !*v {
			return fail(0, nil)
		}
		return pass
	}
}

// llmDimension fires when an LLM score is below threshold. The deduction
// is a quarter of the shortfall, rounded.
func llmDimension(name string, get func(crawler.LLMScores) int) check {
	return func(f crawler.PageFacts) outcome {
		if f.LLMScores == nil {
			return pass
		}
		v := get(*f.LLMScores)
		if v >= llmThreshold {
			return pass
		}
		return outcome{
			failed: true,
			count:  (llmThreshold - v + 2) / 4,
			value:  v,
			data:   map[string]any{"dimension": name, "value": v, "threshold": llmThreshold},
		}
	}
}

// lighthouse fires when lo <= score < hi.
func lighthouse(name string, get func(crawler.Lighthouse) float64, lo, hi float64) check {
	return func(f crawler.PageFacts) outcome {
		if f.Lighthouse == nil {
			return pass
		}
		v := get(*f.Lighthouse)
		if v < lo || v >= hi {
			return pass
		}
		pct := int(math.Round(v * 100))
		return fail(pct, map[string]any{"audit": name, "score": v})
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func runeLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func questionHeadings(f crawler.PageFacts) int {
	n := 0
	for _, groups := range [][]string{f.H2, f.H3} {
		for _, h := range groups {
			if strings.HasSuffix(strings.TrimSpace(h), "?") {
				n++
			}
		}
	}
	return n
}

func hasSchema(f crawler.PageFacts, types ...string) bool {
	for _, have := range f.SchemaTypes {
		for _, want := range types {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

func sameURL(a, b string) bool {
	ua, errA := url.Parse(strings.TrimSpace(a))
	ub, errB := url.Parse(strings.TrimSpace(b))
	if errA != nil || errB != nil {
		return a == b
	}
	return strings.EqualFold(ua.Host, ub.Host) &&
		strings.TrimSuffix(ua.Path, "/") == strings.TrimSuffix(ub.Path, "/") &&
		ua.RawQuery == ub.RawQuery
}

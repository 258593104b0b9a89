// Package crawler defines core types shared across subsystems.
package crawler

import (
	"time"
)

// Category names one of the four scoring dimensions.
type Category string

// Scoring categories. Each starts at 100 and is reduced by failing rules.
const (
	CategoryTechnical   Category = "technical"
	CategoryContent     Category = "content"
	CategoryAIReadiness Category = "ai_readiness"
	CategoryPerformance Category = "performance"
)

// Categories lists every category in reporting order.
var Categories = []Category{CategoryTechnical, CategoryContent, CategoryAIReadiness, CategoryPerformance}

// Severity tiers issues and competitor events.
type Severity string

// Severity values, ordered critical > warning > info.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities so callers can compare tiers; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Job is one crawl execution against a project's domain.
type Job struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	Status       JobStatus      `json:"status"`
	PagesFound   int            `json:"pages_found"`
	PagesCrawled int            `json:"pages_crawled"`
	PagesScored  int            `json:"pages_scored"`
	PagesErrored int            `json:"pages_errored"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Summary      *JobSummary    `json:"summary,omitempty"`
}

// JobSummary holds job-level category scores, each the rounded mean of the
// job's page scores for that category.
type JobSummary struct {
	Overall     int    `json:"overall"`
	Technical   int    `json:"technical"`
	Content     int    `json:"content"`
	AIReadiness int    `json:"ai_readiness"`
	Performance int    `json:"performance"`
	LetterGrade string `json:"letter_grade"`
	Pages       int    `json:"pages"`
}

// JobCounters are deltas applied atomically to a job's page counters.
type JobCounters struct {
	PagesFound   int `json:"pages_found"`
	PagesCrawled int `json:"pages_crawled"`
	PagesScored  int `json:"pages_scored"`
	PagesErrored int `json:"pages_errored"`
}

// IsZero reports whether no counter would change.
func (c JobCounters) IsZero() bool {
	return c == JobCounters{}
}

// Lighthouse carries optional lab scores in the 0..1 range.
type Lighthouse struct {
	Performance   float64 `json:"performance" validate:"gte=0,lte=1"`
	SEO           float64 `json:"seo" validate:"gte=0,lte=1"`
	Accessibility float64 `json:"accessibility" validate:"gte=0,lte=1"`
	BestPractices float64 `json:"best_practices" validate:"gte=0,lte=1"`
}

// LLMScores are the content dimensions produced by the enrichment step (0..100).
type LLMScores struct {
	Clarity           int    `json:"clarity" validate:"gte=0,lte=100"`
	Authority         int    `json:"authority" validate:"gte=0,lte=100"`
	Comprehensiveness int    `json:"comprehensiveness" validate:"gte=0,lte=100"`
	Structure         int    `json:"structure" validate:"gte=0,lte=100"`
	Citability        int    `json:"citability" validate:"gte=0,lte=100"`
	ContentHash       string `json:"content_hash,omitempty"`
	Model             string `json:"model,omitempty"`
}

// Average returns the rounded mean of the five dimensions.
func (s LLMScores) Average() int {
	sum := s.Clarity + s.Authority + s.Comprehensiveness + s.Structure + s.Citability
	return (sum*2 + 5) / 10
}

// PageFacts are the normalized facts extracted from one crawled page.
// Pointer fields are unknown when nil; rules that need them do not fire.
type PageFacts struct {
	URL             string   `json:"url" validate:"required,url,max=2048"`
	StatusCode      int      `json:"status_code" validate:"gte=100,lte=599"`
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description"`
	CanonicalURL    string   `json:"canonical_url"`
	WordCount       int      `json:"word_count" validate:"gte=0"`
	ContentHash     string   `json:"content_hash,omitempty"`
	H1              []string `json:"h1,omitempty"`
	H2              []string `json:"h2,omitempty"`
	H3              []string `json:"h3,omitempty"`
	HeadingLevels   []int    `json:"heading_levels,omitempty"`
	SchemaTypes     []string `json:"schema_types,omitempty"`
	SchemaErrors    int      `json:"schema_errors,omitempty" validate:"gte=0"`
	InternalLinks   []string `json:"internal_links,omitempty"`
	ExternalLinks   []string `json:"external_links,omitempty"`
	BrokenLinks     []string `json:"broken_links,omitempty"`
	ImagesTotal     int      `json:"images_total" validate:"gte=0"`
	ImagesMissing   int      `json:"images_missing_alt" validate:"gte=0,ltefield=ImagesTotal"`
	HasViewport     bool     `json:"has_viewport"`
	Lang            string   `json:"lang,omitempty"`
	OGTitle         string   `json:"og_title,omitempty"`
	OGDescription   string   `json:"og_description,omitempty"`
	RobotsMeta      string   `json:"robots_meta,omitempty"`
	RedirectChain   []string `json:"redirect_chain,omitempty"`
	ResponseTimeMs  int      `json:"response_time_ms,omitempty" validate:"gte=0"`
	PageSizeBytes   int      `json:"page_size_bytes,omitempty" validate:"gte=0"`
	Author          string   `json:"author,omitempty"`
	PublishedAt     string   `json:"published_at,omitempty"`
	HasLists        bool     `json:"has_lists"`
	HasTables       bool     `json:"has_tables"`
	FAQCount        int      `json:"faq_count,omitempty"`
	SummaryPresent  bool     `json:"summary_present"`

	HasLLMsTxt      *bool       `json:"has_llms_txt,omitempty"`
	HasRobotsTxt    *bool       `json:"has_robots_txt,omitempty"`
	HasSitemap      *bool       `json:"has_sitemap,omitempty"`
	AIBotsBlocked   []string    `json:"ai_bots_blocked,omitempty"`
	AIBotsChecked   int         `json:"ai_bots_checked,omitempty" validate:"gte=0"`
	FleschScore     *float64    `json:"flesch_score,omitempty"`
	TextToHTMLRatio *float64    `json:"text_to_html_ratio,omitempty"`
	Lighthouse      *Lighthouse `json:"lighthouse,omitempty" validate:"omitempty"`
	LLMScores       *LLMScores  `json:"llm_scores,omitempty" validate:"omitempty"`
}

// OK reports whether the page returned a 2xx status.
func (f PageFacts) OK() bool {
	return f.StatusCode >= 200 && f.StatusCode < 300
}

// Page is persisted once per ingested URL and never mutated afterwards.
type Page struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	Facts       PageFacts `json:"facts"`
	WordCount   int       `json:"word_count"`
	ContentHash string    `json:"content_hash,omitempty"`
	ContentRef  string    `json:"content_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PageScore is one-to-one with a Page.
type PageScore struct {
	ID               string         `json:"id"`
	PageID           string         `json:"page_id"`
	JobID            string         `json:"job_id"`
	URL              string         `json:"url"`
	Overall          int            `json:"overall"`
	Technical        int            `json:"technical"`
	Content          int            `json:"content"`
	AIReadiness      int            `json:"ai_readiness"`
	Performance      int            `json:"performance"`
	LetterGrade      string         `json:"letter_grade"`
	Detail           map[string]any `json:"detail"`
	LLMContentScores *LLMScores     `json:"llm_content_scores,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Issue is one failing rule on one page. Issues are append-only per job.
type Issue struct {
	ID             string         `json:"id"`
	PageID         string         `json:"page_id"`
	JobID          string         `json:"job_id"`
	Code           string         `json:"code"`
	Category       Category       `json:"category"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	Recommendation string         `json:"recommendation"`
	Data           map[string]any `json:"data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// IssueFilter narrows issue listings.
type IssueFilter struct {
	Severity Severity
	Category Category
}

// EnrichmentTask asks the content scorer to process one page.
type EnrichmentTask struct {
	JobID       string    `json:"job_id"`
	PageID      string    `json:"page_id"`
	URL         string    `json:"url"`
	ContentHash string    `json:"content_hash"`
	ContentRef  string    `json:"content_ref"`
	Attempt     int       `json:"attempt"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

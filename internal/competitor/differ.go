// Package competitor diffs competitor benchmarks and runs the monitoring sweep.
package competitor

import (
	"fmt"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// Event types emitted by Diff.
const (
	EventScoreRegression     = "score_regression"
	EventScoreImprovement    = "score_improvement"
	EventScoreChange         = "score_change"
	EventLLMsTxtAdded        = "llms_txt_added"
	EventLLMsTxtRemoved      = "llms_txt_removed"
	EventAICrawlersUnblocked = "ai_crawlers_unblocked"
	EventAICrawlersBlocked   = "ai_crawlers_blocked"
	EventSchemaAdded         = "schema_added"
	EventSchemaRemoved       = "schema_removed"
	EventSitemapAdded        = "sitemap_added"
	EventSitemapRemoved      = "sitemap_removed"
)

const (
	overallThreshold  = 10
	categoryThreshold = 5
)

type categoryField struct {
	name string
	get  func(crawler.Benchmark) *int
}

var categoryFields = []categoryField{
	{"technical", func(b crawler.Benchmark) *int { return b.Technical }},
	{"content", func(b crawler.Benchmark) *int { return b.Content }},
	{"ai_readiness", func(b crawler.Benchmark) *int { return b.AIReadiness }},
	{"performance", func(b crawler.Benchmark) *int { return b.Performance }},
}

type signal struct {
	name            string
	get             func(crawler.Benchmark) *int
	added, removed  string
	addedSeverity   crawler.Severity
	removedSeverity crawler.Severity
	addedSummary    string
	removedSummary  string
}

var signals = []signal{
	{
		name: "llms_txt", get: func(b crawler.Benchmark) *int { return b.LLMsTxtScore },
		added: EventLLMsTxtAdded, removed: EventLLMsTxtRemoved,
		addedSeverity: crawler.SeverityCritical, removedSeverity: crawler.SeverityInfo,
		addedSummary: "%s published an llms.txt", removedSummary: "%s removed its llms.txt",
	},
	{
		name: "bot_access", get: func(b crawler.Benchmark) *int { return b.BotAccessScore },
		added: EventAICrawlersUnblocked, removed: EventAICrawlersBlocked,
		addedSeverity: crawler.SeverityCritical, removedSeverity: crawler.SeverityWarning,
		addedSummary: "%s now allows AI crawlers", removedSummary: "%s now blocks AI crawlers",
	},
	{
		name: "schema", get: func(b crawler.Benchmark) *int { return b.SchemaScore },
		added: EventSchemaAdded, removed: EventSchemaRemoved,
		addedSeverity: crawler.SeverityInfo, removedSeverity: crawler.SeverityInfo,
		addedSummary: "%s added structured data", removedSummary: "%s removed structured data",
	},
	{
		name: "sitemap", get: func(b crawler.Benchmark) *int { return b.SitemapScore },
		added: EventSitemapAdded, removed: EventSitemapRemoved,
		addedSeverity: crawler.SeverityInfo, removedSeverity: crawler.SeverityInfo,
		addedSummary: "%s published a sitemap", removedSummary: "%s removed its sitemap",
	},
}

// Diff compares two snapshots of one domain. A nil previous snapshot has no
// baseline and yields no events. Nil scores on either side are skipped.
// Events are ordered overall, categories, then signals. IDs are left empty.
func Diff(previous *crawler.Benchmark, current crawler.Benchmark) []crawler.CompetitorEvent {
	if previous == nil {
		return nil
	}
	var events []crawler.CompetitorEvent
	newEvent := func(eventType string, sev crawler.Severity, summary string, data map[string]any) {
		events = append(events, crawler.CompetitorEvent{
			CompetitorID: current.CompetitorID,
			BenchmarkID:  current.ID,
			Domain:       current.Domain,
			EventType:    eventType,
			Severity:     sev,
			Summary:      summary,
			Data:         data,
			CreatedAt:    current.CreatedAt,
		})
	}

	if prev, cur, ok := both(previous.Overall, current.Overall); ok {
		delta := cur - prev
		data := map[string]any{"previous": prev, "current": cur, "delta": delta}
		switch {
		case delta <= -overallThreshold:
			newEvent(EventScoreRegression, crawler.SeverityWarning,
				fmt.Sprintf("%s overall score dropped %d points to %d", current.Domain, -delta, cur), data)
		case delta >= overallThreshold:
			newEvent(EventScoreImprovement, crawler.SeverityInfo,
				fmt.Sprintf("%s overall score rose %d points to %d", current.Domain, delta, cur), data)
		}
	}

	for _, f := range categoryFields {
		prev, cur, ok := both(f.get(*previous), f.get(current))
		if !ok {
			continue
		}
		delta := cur - prev
		if abs(delta) < categoryThreshold {
			continue
		}
		newEvent(EventScoreChange, crawler.SeverityInfo,
			fmt.Sprintf("%s %s score changed by %+d to %d", current.Domain, f.name, delta, cur),
			map[string]any{"category": f.name, "previous": prev, "current": cur, "delta": delta})
	}

	for _, s := range signals {
		prev, cur, ok := both(s.get(*previous), s.get(current))
		if !ok {
			continue
		}
		had, has := prev > 0, cur > 0
		data := map[string]any{"signal": s.name, "previous": prev, "current": cur}
		switch {
		case !had && has:
			newEvent(s.added, s.addedSeverity, fmt.Sprintf(s.addedSummary, current.Domain), data)
		case had && !has:
			newEvent(s.removed, s.removedSeverity, fmt.Sprintf(s.removedSummary, current.Domain), data)
		}
	}
	return events
}

// Notifiable keeps events at warning severity or above.
func Notifiable(events []crawler.CompetitorEvent) []crawler.CompetitorEvent {
	var out []crawler.CompetitorEvent
	for _, e := range events {
		if e.Severity.AtLeast(crawler.SeverityWarning) {
			out = append(out, e)
		}
	}
	return out
}

func both(a, b *int) (int, int, bool) {
	if a == nil || b == nil {
		return 0, 0, false
	}
	return *a, *b, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

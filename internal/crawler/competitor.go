package crawler

import "time"

// MonitoringFrequency controls how often a competitor is re-benchmarked.
type MonitoringFrequency string

// Supported frequencies; anything else is treated as weekly.
const (
	FrequencyDaily   MonitoringFrequency = "daily"
	FrequencyWeekly  MonitoringFrequency = "weekly"
	FrequencyMonthly MonitoringFrequency = "monthly"
)

// Next returns the next benchmark time after from.
func (f MonitoringFrequency) Next(from time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return from.Add(24 * time.Hour)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 7)
	}
}

// Competitor is a domain tracked against a project.
type Competitor struct {
	ID                  string              `json:"id"`
	ProjectID           string              `json:"project_id"`
	Domain              string              `json:"domain"`
	MonitoringEnabled   bool                `json:"monitoring_enabled"`
	MonitoringFrequency MonitoringFrequency `json:"monitoring_frequency"`
	NextBenchmarkAt     *time.Time          `json:"next_benchmark_at,omitempty"`
	LastBenchmarkAt     *time.Time          `json:"last_benchmark_at,omitempty"`
}

// Benchmark is a point-in-time snapshot of a competitor domain.
// Nil scores were not measured and are never compared.
type Benchmark struct {
	ID             string    `json:"id"`
	CompetitorID   string    `json:"competitor_id"`
	Domain         string    `json:"domain"`
	Overall        *int      `json:"overall,omitempty"`
	Technical      *int      `json:"technical,omitempty"`
	Content        *int      `json:"content,omitempty"`
	AIReadiness    *int      `json:"ai_readiness,omitempty"`
	Performance    *int      `json:"performance,omitempty"`
	LLMsTxtScore   *int      `json:"llms_txt_score,omitempty"`
	BotAccessScore *int      `json:"bot_access_score,omitempty"`
	SchemaScore    *int      `json:"schema_score,omitempty"`
	SitemapScore   *int      `json:"sitemap_score,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CompetitorEvent records one change between two benchmarks. Append-only.
type CompetitorEvent struct {
	ID           string         `json:"id"`
	CompetitorID string         `json:"competitor_id"`
	BenchmarkID  string         `json:"benchmark_id"`
	Domain       string         `json:"domain"`
	EventType    string         `json:"event_type"`
	Severity     Severity       `json:"severity"`
	Summary      string         `json:"summary"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MonitoringUpdate is applied after each benchmark attempt. LastBenchmarkAt
// is nil when the attempt failed.
type MonitoringUpdate struct {
	NextBenchmarkAt time.Time
	LastBenchmarkAt *time.Time
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

var eventColumns = []string{
	"id", "competitor_id", "benchmark_id", "domain", "event_type", "severity", "summary", "data", "created_at",
}

const selectCompetitor = `
SELECT id, project_id, domain, monitoring_enabled, monitoring_frequency, next_benchmark_at, last_benchmark_at
FROM competitors`

// CreateCompetitor registers a competitor.
func (r *Repository) CreateCompetitor(ctx context.Context, c crawler.Competitor) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO competitors (id, project_id, domain, monitoring_enabled, monitoring_frequency, next_benchmark_at, last_benchmark_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.ProjectID, c.Domain, c.MonitoringEnabled, string(c.MonitoringFrequency), c.NextBenchmarkAt, c.LastBenchmarkAt)
	if err != nil {
		return fmt.Errorf("insert competitor: %w", err)
	}
	return nil
}

// ListCompetitors returns a project's competitors ordered by domain.
func (r *Repository) ListCompetitors(ctx context.Context, projectID string) ([]crawler.Competitor, error) {
	rows, err := r.pool.Query(ctx, selectCompetitor+` WHERE project_id = $1 ORDER BY domain`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	return collectCompetitors(rows)
}

// ListDueCompetitors returns monitored competitors due at now. Competitors
// never scheduled come first.
func (r *Repository) ListDueCompetitors(ctx context.Context, now time.Time, limit int) ([]crawler.Competitor, error) {
	rows, err := r.pool.Query(ctx, selectCompetitor+`
WHERE monitoring_enabled AND (next_benchmark_at IS NULL OR next_benchmark_at <= $1)
ORDER BY next_benchmark_at NULLS FIRST, id
LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due competitors: %w", err)
	}
	return collectCompetitors(rows)
}

func collectCompetitors(rows pgx.Rows) ([]crawler.Competitor, error) {
	defer rows.Close()
	var out []crawler.Competitor
	for rows.Next() {
		var (
			c    crawler.Competitor
			freq string
		)
		if err := rows.Scan(
			&c.ID, &c.ProjectID, &c.Domain, &c.MonitoringEnabled, &freq, &c.NextBenchmarkAt, &c.LastBenchmarkAt,
		); err != nil {
			return nil, fmt.Errorf("scan competitor row: %w", err)
		}
		c.MonitoringFrequency = crawler.MonitoringFrequency(freq)
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestBenchmark returns the newest benchmark of a competitor.
func (r *Repository) LatestBenchmark(ctx context.Context, competitorID string) (crawler.Benchmark, error) {
	var b crawler.Benchmark
	err := r.pool.QueryRow(ctx, `
SELECT id, competitor_id, domain, overall, technical, content, ai_readiness, performance,
	llms_txt_score, bot_access_score, schema_score, sitemap_score, created_at
FROM competitor_benchmarks
WHERE competitor_id = $1
ORDER BY created_at DESC
LIMIT 1`, competitorID).Scan(
		&b.ID, &b.CompetitorID, &b.Domain,
		&b.Overall, &b.Technical, &b.Content, &b.AIReadiness, &b.Performance,
		&b.LLMsTxtScore, &b.BotAccessScore, &b.SchemaScore, &b.SitemapScore,
		&b.CreatedAt,
	)
	if err != nil {
		return crawler.Benchmark{}, notFound(err, "latest benchmark")
	}
	return b, nil
}

// SaveBenchmark inserts a snapshot and the events diffed against it in one
// transaction. Nil scores are stored as NULL.
func (r *Repository) SaveBenchmark(ctx context.Context, b crawler.Benchmark, events []crawler.CompetitorEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin benchmark: %w", err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO competitor_benchmarks (id, competitor_id, domain, overall, technical, content, ai_readiness,
	performance, llms_txt_score, bot_access_score, schema_score, sitemap_score, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, b.CompetitorID, b.Domain, b.Overall, b.Technical, b.Content, b.AIReadiness,
		b.Performance, b.LLMsTxtScore, b.BotAccessScore, b.SchemaScore, b.SitemapScore, b.CreatedAt); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert benchmark: %w", err)
	}
	if err := copyEvents(ctx, tx, events); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit benchmark: %w", err)
	}
	return nil
}

// InsertEvents copies events in one COPY statement.
func (r *Repository) InsertEvents(ctx context.Context, events []crawler.CompetitorEvent) error {
	return copyEvents(ctx, r.pool, events)
}

type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

func copyEvents(ctx context.Context, db copier, events []crawler.CompetitorEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		data, err := jsonb(ev.Data)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			ev.ID, ev.CompetitorID, ev.BenchmarkID, ev.Domain, ev.EventType, string(ev.Severity), ev.Summary, data, ev.CreatedAt,
		})
	}
	if _, err := db.CopyFrom(ctx, pgx.Identifier{"competitor_events"}, eventColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy events: %w", err)
	}
	return nil
}

// ListEvents returns a competitor's events, newest first.
func (r *Repository) ListEvents(ctx context.Context, competitorID string, limit int) ([]crawler.CompetitorEvent, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, competitor_id, benchmark_id, domain, event_type, severity, summary, data, created_at
FROM competitor_events
WHERE competitor_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`, competitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []crawler.CompetitorEvent
	for rows.Next() {
		var (
			ev       crawler.CompetitorEvent
			severity string
			data     []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.CompetitorID, &ev.BenchmarkID, &ev.Domain, &ev.EventType, &severity, &ev.Summary, &data, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev.Severity = crawler.Severity(severity)
		if ev.Data, err = decodeMap(data); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UpdateMonitoring stores the next due time and, on success, the last run.
func (r *Repository) UpdateMonitoring(ctx context.Context, competitorID string, update crawler.MonitoringUpdate) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE competitors SET
	next_benchmark_at = $1,
	last_benchmark_at = COALESCE($2, last_benchmark_at)
WHERE id = $3`, update.NextBenchmarkAt, update.LastBenchmarkAt, competitorID)
	if err != nil {
		return fmt.Errorf("update monitoring: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

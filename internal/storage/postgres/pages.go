package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

var (
	pageColumns  = []string{"id", "job_id", "url", "status_code", "facts", "word_count", "content_hash", "content_ref", "created_at"}
	scoreColumns = []string{
		"id", "page_id", "job_id", "url", "overall", "technical", "content", "ai_readiness", "performance",
		"letter_grade", "detail", "llm_content_scores", "llm_content_hash", "created_at",
	}
	issueColumns = []string{
		"id", "page_id", "job_id", "code", "category", "severity", "message", "recommendation", "data", "created_at",
	}
)

// InsertPages copies all pages in one COPY statement, which either
// commits every row or none.
func (r *Repository) InsertPages(ctx context.Context, pages []crawler.Page) error {
	if len(pages) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(pages))
	for _, p := range pages {
		facts, err := json.Marshal(p.Facts)
		if err != nil {
			return fmt.Errorf("encode facts for %s: %w", p.URL, err)
		}
		rows = append(rows, []any{
			p.ID, p.JobID, p.URL, p.StatusCode, facts, p.WordCount, p.ContentHash, p.ContentRef, p.CreatedAt,
		})
	}
	if _, err := r.pool.CopyFrom(ctx, pgx.Identifier{"pages"}, pageColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy pages: %w", err)
	}
	return nil
}

// GetPage loads one page.
func (r *Repository) GetPage(ctx context.Context, pageID string) (crawler.Page, error) {
	var (
		page  crawler.Page
		facts []byte
	)
	err := r.pool.QueryRow(ctx, `
SELECT id, job_id, url, status_code, facts, word_count, content_hash, content_ref, created_at
FROM pages WHERE id = $1`, pageID).Scan(
		&page.ID,
		&page.JobID,
		&page.URL,
		&page.StatusCode,
		&facts,
		&page.WordCount,
		&page.ContentHash,
		&page.ContentRef,
		&page.CreatedAt,
	)
	if err != nil {
		return crawler.Page{}, notFound(err, "get page")
	}
	if err := json.Unmarshal(facts, &page.Facts); err != nil {
		return crawler.Page{}, fmt.Errorf("decode facts: %w", err)
	}
	return page, nil
}

// InsertScores copies all scores in one COPY statement.
func (r *Repository) InsertScores(ctx context.Context, scores []crawler.PageScore) error {
	if len(scores) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(scores))
	for _, s := range scores {
		detail, err := json.Marshal(s.Detail)
		if err != nil {
			return fmt.Errorf("encode detail for %s: %w", s.URL, err)
		}
		llm, hash, err := encodeLLM(s.LLMContentScores)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			s.ID, s.PageID, s.JobID, s.URL, s.Overall, s.Technical, s.Content, s.AIReadiness, s.Performance,
			s.LetterGrade, detail, llm, hash, s.CreatedAt,
		})
	}
	if _, err := r.pool.CopyFrom(ctx, pgx.Identifier{"page_scores"}, scoreColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy scores: %w", err)
	}
	return nil
}

const selectScore = `
SELECT id, page_id, job_id, url, overall, technical, content, ai_readiness, performance,
	letter_grade, detail, llm_content_scores, created_at
FROM page_scores`

// ListScores returns a job's scores in insertion order.
func (r *Repository) ListScores(ctx context.Context, jobID string) ([]crawler.PageScore, error) {
	rows, err := r.pool.Query(ctx, selectScore+` WHERE job_id = $1 ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var scores []crawler.PageScore
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// GetScoreByPage loads the score of one page.
func (r *Repository) GetScoreByPage(ctx context.Context, pageID string) (crawler.PageScore, error) {
	s, err := scanScore(r.pool.QueryRow(ctx, selectScore+` WHERE page_id = $1`, pageID))
	if err != nil {
		return crawler.PageScore{}, notFound(err, "get score")
	}
	return s, nil
}

// UpdateScore rewrites the mutable columns of a page's score.
func (r *Repository) UpdateScore(ctx context.Context, score crawler.PageScore) error {
	detail, err := json.Marshal(score.Detail)
	if err != nil {
		return fmt.Errorf("encode detail: %w", err)
	}
	llm, hash, err := encodeLLM(score.LLMContentScores)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE page_scores SET
	overall = $1, technical = $2, content = $3, ai_readiness = $4, performance = $5,
	letter_grade = $6, detail = $7, llm_content_scores = $8, llm_content_hash = $9
WHERE page_id = $10`,
		score.Overall, score.Technical, score.Content, score.AIReadiness, score.Performance,
		score.LetterGrade, detail, llm, hash, score.PageID)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindLLMScoresByHash returns LLM scores already computed for identical content.
func (r *Repository) FindLLMScoresByHash(ctx context.Context, contentHash string) (crawler.LLMScores, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
SELECT llm_content_scores FROM page_scores
WHERE llm_content_hash = $1
ORDER BY created_at
LIMIT 1`, contentHash).Scan(&raw)
	if err != nil {
		return crawler.LLMScores{}, notFound(err, "find llm scores")
	}
	var scores crawler.LLMScores
	if err := json.Unmarshal(raw, &scores); err != nil {
		return crawler.LLMScores{}, fmt.Errorf("decode llm scores: %w", err)
	}
	return scores, nil
}

// InsertIssues copies issues in one COPY statement.
func (r *Repository) InsertIssues(ctx context.Context, issues []crawler.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(issues))
	for _, is := range issues {
		data, err := jsonb(is.Data)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			is.ID, is.PageID, is.JobID, is.Code, string(is.Category), string(is.Severity),
			is.Message, is.Recommendation, data, is.CreatedAt,
		})
	}
	if _, err := r.pool.CopyFrom(ctx, pgx.Identifier{"issues"}, issueColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy issues: %w", err)
	}
	return nil
}

// ListIssues returns a job's issues; empty filter fields match everything.
func (r *Repository) ListIssues(ctx context.Context, jobID string, filter crawler.IssueFilter) ([]crawler.Issue, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, page_id, job_id, code, category, severity, message, recommendation, data, created_at
FROM issues
WHERE job_id = $1 AND ($2 = '' OR severity = $2) AND ($3 = '' OR category = $3)
ORDER BY created_at, id`, jobID, string(filter.Severity), string(filter.Category))
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []crawler.Issue
	for rows.Next() {
		var (
			is                 crawler.Issue
			category, severity string
			data               []byte
		)
		if err := rows.Scan(
			&is.ID, &is.PageID, &is.JobID, &is.Code, &category, &severity,
			&is.Message, &is.Recommendation, &data, &is.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan issue row: %w", err)
		}
		is.Category = crawler.Category(category)
		is.Severity = crawler.Severity(severity)
		if is.Data, err = decodeMap(data); err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

// IssueCodes returns the sorted distinct codes raised for a job.
func (r *Repository) IssueCodes(ctx context.Context, jobID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT code FROM issues WHERE job_id = $1 ORDER BY code`, jobID)
	if err != nil {
		return nil, fmt.Errorf("issue codes: %w", err)
	}
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan issue code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func scanScore(row pgx.Row) (crawler.PageScore, error) {
	var (
		s      crawler.PageScore
		detail []byte
		llm    []byte
	)
	if err := row.Scan(
		&s.ID, &s.PageID, &s.JobID, &s.URL,
		&s.Overall, &s.Technical, &s.Content, &s.AIReadiness, &s.Performance,
		&s.LetterGrade, &detail, &llm, &s.CreatedAt,
	); err != nil {
		return crawler.PageScore{}, err
	}
	var err error
	if s.Detail, err = decodeMap(detail); err != nil {
		return crawler.PageScore{}, err
	}
	if len(llm) > 0 {
		var scores crawler.LLMScores
		if err := json.Unmarshal(llm, &scores); err != nil {
			return crawler.PageScore{}, fmt.Errorf("decode llm scores: %w", err)
		}
		s.LLMContentScores = &scores
	}
	return s, nil
}

// encodeLLM returns the jsonb payload and the hash column, both NULL when
// the page has not been enriched.
func encodeLLM(scores *crawler.LLMScores) ([]byte, *string, error) {
	if scores == nil {
		return nil, nil, nil
	}
	raw, err := json.Marshal(scores)
	if err != nil {
		return nil, nil, fmt.Errorf("encode llm scores: %w", err)
	}
	hash := scores.ContentHash
	return raw, &hash, nil
}

package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/quickwin"
)

var severities = []crawler.Severity{crawler.SeverityCritical, crawler.SeverityWarning, crawler.SeverityInfo}

// requireJob loads the path's job so unknown ids answer 404 rather than an
// empty listing.
func (s *Server) requireJob(w http.ResponseWriter, r *http.Request) (crawler.Job, bool) {
	job, err := s.deps.Store.GetJob(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.respondError(w, r, err)
		return crawler.Job{}, false
	}
	return job, true
}

func (s *Server) listScores(w http.ResponseWriter, r *http.Request) {
	job, ok := s.requireJob(w, r)
	if !ok {
		return
	}
	scores, err := s.deps.Store.ListScores(r.Context(), job.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": job.ID, "summary": job.Summary, "scores": scores})
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	filter := crawler.IssueFilter{
		Severity: crawler.Severity(r.URL.Query().Get("severity")),
		Category: crawler.Category(r.URL.Query().Get("category")),
	}
	if filter.Severity != "" && !slices.Contains(severities, filter.Severity) {
		s.respondError(w, r, badRequest{msg: "severity must be one of critical, warning, info"})
		return
	}
	if filter.Category != "" && !slices.Contains(crawler.Categories, filter.Category) {
		s.respondError(w, r, badRequest{msg: "category must be one of technical, content, ai_readiness, performance"})
		return
	}
	job, ok := s.requireJob(w, r)
	if !ok {
		return
	}
	issues, err := s.deps.Store.ListIssues(r.Context(), job.ID, filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": job.ID, "issues": issues})
}

func (s *Server) quickWins(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", quickwin.DefaultLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	job, ok := s.requireJob(w, r)
	if !ok {
		return
	}
	issues, err := s.deps.Store.ListIssues(r.Context(), job.ID, crawler.IssueFilter{})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":     job.ID,
		"quick_wins": s.deps.Ranker.Rank(issues, limit),
	})
}

func (s *Server) platformReadiness(w http.ResponseWriter, r *http.Request) {
	job, ok := s.requireJob(w, r)
	if !ok {
		return
	}
	codes, err := s.deps.Store.IssueCodes(r.Context(), job.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":    job.ID,
		"platforms": s.deps.Evaluator.Evaluate(codes),
	})
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/crawlservice"
)

type createJobRequest struct {
	Config map[string]any `json:"config"`
}

type dispatchFailure struct {
	Error string      `json:"error"`
	Job   crawler.Job `json:"job"`
}

func (s *Server) ingestBatch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.bodyLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "batch exceeds body limit")
			return
		}
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	res, err := s.deps.Ingester.Ingest(r.Context(), raw)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	job, err := s.deps.Jobs.StartJob(r.Context(), chi.URLParam(r, "project_id"), req.Config)
	if err != nil {
		var dispatch *crawlservice.DispatchError
		if errors.As(err, &dispatch) {
			writeJSON(w, http.StatusBadGateway, dispatchFailure{Error: err.Error(), Job: job})
			return
		}
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageLimit(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	jobs, err := s.deps.Store.ListJobs(r.Context(), chi.URLParam(r, "project_id"), limit, offset)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "limit": limit, "offset": offset})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Store.GetJob(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Cancel(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

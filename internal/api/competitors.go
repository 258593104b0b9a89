package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/ingest"
)

const defaultEventLimit = 100

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

type createCompetitorRequest struct {
	Domain              string `json:"domain" validate:"required,fqdn"`
	MonitoringEnabled   *bool  `json:"monitoring_enabled"`
	MonitoringFrequency string `json:"monitoring_frequency" validate:"omitempty,oneof=daily weekly monthly"`
}

// normalizeDomain accepts a bare host or a URL and returns the lowercase host.
func normalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ingest.ValidationError{Fields: []ingest.FieldError{{Field: "body", Message: err.Error()}}}
	}
	fields := make([]ingest.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "failed " + fe.Tag()
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "fqdn":
			msg = "must be a domain name"
		case "oneof":
			msg = "must be one of " + fe.Param()
		}
		fields = append(fields, ingest.FieldError{Field: fe.Field(), Message: msg})
	}
	return &ingest.ValidationError{Fields: fields}
}

func (s *Server) createCompetitor(w http.ResponseWriter, r *http.Request) {
	var req createCompetitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, &ingest.ValidationError{Fields: []ingest.FieldError{{Field: "body", Message: err.Error()}}})
		return
	}
	req.Domain = normalizeDomain(req.Domain)
	if err := validate.Struct(req); err != nil {
		s.respondError(w, r, validationError(err))
		return
	}

	id, err := s.deps.IDs.NewID()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	frequency := crawler.FrequencyWeekly
	if req.MonitoringFrequency != "" {
		frequency = crawler.MonitoringFrequency(req.MonitoringFrequency)
	}
	enabled := req.MonitoringEnabled == nil || *req.MonitoringEnabled
	c := crawler.Competitor{
		ID:                  id,
		ProjectID:           chi.URLParam(r, "project_id"),
		Domain:              req.Domain,
		MonitoringEnabled:   enabled,
		MonitoringFrequency: frequency,
	}
	if enabled {
		// Due on the next sweep.
		now := s.now()
		c.NextBenchmarkAt = &now
	}
	if err := s.deps.Store.CreateCompetitor(r.Context(), c); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listCompetitors(w http.ResponseWriter, r *http.Request) {
	competitors, err := s.deps.Store.ListCompetitors(r.Context(), chi.URLParam(r, "project_id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"competitors": competitors})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultEventLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if limit == 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}
	competitorID := chi.URLParam(r, "competitor_id")
	events, err := s.deps.Store.ListEvents(r.Context(), competitorID, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"competitor_id": competitorID, "events": events})
}

func (s *Server) now() time.Time {
	if s.deps.Clock == nil {
		return time.Now().UTC()
	}
	return s.deps.Clock.Now()
}

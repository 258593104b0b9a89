package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/crawlservice"
	"github.com/JakeFAU/ai-readiness-scorer/internal/ingest"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

const (
	defaultBodyLimit = 32 << 20
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type errorResponse struct {
	Error   string              `json:"error"`
	Details []ingest.FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// respondError maps domain errors onto HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *ingest.ValidationError
	var dispatch *crawlservice.DispatchError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ingest.ErrValidation.Error(), Details: validation.Fields})
	case errors.Is(err, ingest.ErrValidation), errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrJobNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, crawler.ErrInvalidTransition),
		errors.Is(err, ingest.ErrJobTerminal),
		errors.Is(err, store.ErrStatusConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &dispatch):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

var errBadRequest = errors.New("bad request")

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }
func (e badRequest) Unwrap() error { return errBadRequest }

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest{msg: name + " must be a non-negative integer"}
	}
	return n, nil
}

// pageLimit reads limit/offset and clamps limit to maxPageLimit.
func pageLimit(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", defaultPageLimit); err != nil {
		return 0, 0, err
	}
	switch {
	case limit == 0:
		limit = defaultPageLimit
	case limit > maxPageLimit:
		limit = maxPageLimit
	}
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

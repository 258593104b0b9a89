// Package ingest turns crawled page batches into persisted pages, scores,
// and issues while advancing the crawl job lifecycle.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// MaxPagesPerBatch bounds a single batch.
const MaxPagesPerBatch = 500

// ErrValidation marks a batch rejected at the boundary.
var ErrValidation = errors.New("invalid batch")

// FieldError names one failing field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a batch.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Stats are per-batch crawler counters.
type Stats struct {
	PagesFound   int `json:"pages_found" validate:"gte=0"`
	PagesCrawled int `json:"pages_crawled" validate:"gte=0"`
	PagesErrored int `json:"pages_errored" validate:"gte=0"`
}

// PageInput is one crawled page as sent by the crawler. RawContent is
// optional HTML stored in the blob store for enrichment.
type PageInput struct {
	crawler.PageFacts
	RawContent string `json:"raw_content,omitempty"`
}

// Batch is the ingestion payload.
type Batch struct {
	JobID      string      `json:"job_id" validate:"required,uuid"`
	BatchIndex int         `json:"batch_index" validate:"gte=0"`
	Pages      []PageInput `json:"pages" validate:"required,max=500,dive"`
	Stats      Stats       `json:"stats"`
	IsFinal    bool        `json:"is_final"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode strictly parses raw into a Batch and validates it. Unknown fields,
// trailing data, and rule violations all yield a *ValidationError.
func Decode(raw []byte) (Batch, error) {
	var b Batch
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return Batch{}, &ValidationError{Fields: []FieldError{{Field: "body", Message: err.Error()}}}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Batch{}, &ValidationError{Fields: []FieldError{{Field: "body", Message: "unexpected data after batch object"}}}
	}
	if err := Validate(b); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// Validate checks struct rules on an already decoded batch.
func Validate(b Batch) error {
	err := validate.Struct(b)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []FieldError{{Field: "batch", Message: err.Error()}}}
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(fe.Namespace()), Message: describe(fe)})
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return &ValidationError{Fields: fields}
}

// fieldPath drops the root struct name and the embedded facts segment.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ReplaceAll(ns, ".PageFacts", "")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "url":
		return "must be an absolute URL"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "max":
		return "must have at most " + fe.Param() + " items"
	case "ltefield":
		return "must not exceed " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Field     string `json:"field,omitempty"`
	ID        string `json:"id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// respondValidation reports a malformed request field
func respondValidation(w http.ResponseWriter, field string, err error) {
	respondJSON(w, ErrorResponse{
		Error: err.Error(),
		Kind:  string(ledger.KindValidation),
		Field: field,
	}, http.StatusBadRequest)
}

// respondServiceError maps a service error to a status code by its kind.
// Unclassified errors are infrastructure failures; their text stays in the log.
func respondServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var le *ledger.Error
	if !errors.As(err, &le) {
		log.WithContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		respondError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := ErrorResponse{
		Error: err.Error(),
		Kind:  string(le.Kind),
		Field: le.Field,
		ID:    le.ID,
	}

	status := http.StatusInternalServerError
	switch le.Kind {
	case ledger.KindValidation:
		status = http.StatusBadRequest
	case ledger.KindReference:
		// the addressed resource itself is missing; anything else is a bad reference in the body
		status = http.StatusUnprocessableEntity
		if le.Field == "id" {
			status = http.StatusNotFound
		}
	case ledger.KindState:
		status = http.StatusConflict
	case ledger.KindConcurrency:
		status = http.StatusConflict
		resp.Retryable = true
		w.Header().Set("Retry-After", "1")
	case ledger.KindComputation:
		log.WithContext(r.Context()).Error("ledger invariant violated",
			"path", r.URL.Path,
			"id", le.ID,
			"error", err,
		)
	}

	respondJSON(w, resp, status)
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields and trailing data
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request body: unexpected data after JSON object")
	}
	return nil
}

// pathID parses the {id} URL parameter
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

// parseDate accepts YYYY-MM-DD
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// queryDate parses an optional date query parameter
func queryDate(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := parseDate(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseOptionalAmount treats an empty string as zero
func parseOptionalAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return money.Parse(s)
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

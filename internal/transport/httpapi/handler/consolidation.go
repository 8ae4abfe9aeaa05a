package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/consolidation"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

// ConsolidationServiceInterface defines budget and sales record operations
type ConsolidationServiceInterface interface {
	CreateRecord(ctx context.Context, in consolidation.CreateRecordInput) (*consolidation.Record, error)
	UpdateSpent(ctx context.Context, id uuid.UUID, spent decimal.Decimal) (*consolidation.Record, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*consolidation.Record, error)
	ListRecords(ctx context.Context, filters consolidation.Filters) ([]*consolidation.Record, error)
	Report(ctx context.Context, q consolidation.Query) (*consolidation.Report, error)
}

// ConsolidationHandler handles consolidation HTTP requests
type ConsolidationHandler struct {
	service ConsolidationServiceInterface
	logger  *logger.Logger
}

// NewConsolidationHandler creates a new consolidation handler
func NewConsolidationHandler(service ConsolidationServiceInterface, log *logger.Logger) *ConsolidationHandler {
	return &ConsolidationHandler{
		service: service,
		logger:  log,
	}
}

// CreateRecordRequest represents the record creation request
type CreateRecordRequest struct {
	Kind       string `json:"kind"`
	OwnerID    string `json:"owner_id"`
	OwnerName  string `json:"owner_name,omitempty"`
	Type       string `json:"type,omitempty"`
	Category   string `json:"category,omitempty"`
	FiscalYear int    `json:"fiscal_year"`
	Currency   string `json:"currency"`
	Allocated  string `json:"allocated"`
	Spent      string `json:"spent,omitempty"`
	Status     string `json:"status,omitempty"`
}

// UpdateSpentRequest sets the actual amount of a record
type UpdateSpentRequest struct {
	Spent string `json:"spent"`
}

// RecordResponse represents a consolidation record
type RecordResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name,omitempty"`
	Type        string `json:"type,omitempty"`
	Category    string `json:"category,omitempty"`
	FiscalYear  int    `json:"fiscal_year"`
	Currency    string `json:"currency"`
	Allocated   string `json:"allocated"`
	Spent       string `json:"spent"`
	Utilization string `json:"utilization"`
	Status      string `json:"status,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// RecordsListResponse represents the response for listing records
type RecordsListResponse struct {
	Records []RecordResponse `json:"records"`
}

// AggregateResponse is one group of a consolidation report
type AggregateResponse struct {
	Key         string `json:"key"`
	Count       int    `json:"count"`
	Allocated   string `json:"allocated"`
	Spent       string `json:"spent"`
	Utilization string `json:"utilization"`
}

// AlertResponse is one utilization alert
type AlertResponse struct {
	RecordID    string `json:"record_id"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name,omitempty"`
	Category    string `json:"category,omitempty"`
	Severity    string `json:"severity"`
	Utilization string `json:"utilization"`
	Threshold   string `json:"threshold"`
}

// TotalsResponse sums every record of a report
type TotalsResponse struct {
	Count       int    `json:"count"`
	Allocated   string `json:"allocated"`
	Spent       string `json:"spent"`
	Utilization string `json:"utilization"`
}

// ReportResponse represents a consolidation report
type ReportResponse struct {
	Dimension    string              `json:"dimension"`
	Aggregates   []AggregateResponse `json:"aggregates"`
	Alerts       []AlertResponse     `json:"alerts"`
	TopAllocated []RecordResponse    `json:"top_allocated"`
	TopSpent     []RecordResponse    `json:"top_spent"`
	Totals       TotalsResponse      `json:"totals"`
}

// CreateRecord handles POST /consolidation/records
func (h *ConsolidationHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	allocated, err := money.Parse(req.Allocated)
	if err != nil {
		respondValidation(w, "allocated", err)
		return
	}
	spent, err := parseOptionalAmount(req.Spent)
	if err != nil {
		respondValidation(w, "spent", err)
		return
	}

	record, err := h.service.CreateRecord(r.Context(), consolidation.CreateRecordInput{
		Kind:       consolidation.Kind(strings.ToLower(req.Kind)),
		OwnerID:    req.OwnerID,
		OwnerName:  req.OwnerName,
		Type:       req.Type,
		Category:   req.Category,
		FiscalYear: req.FiscalYear,
		Currency:   req.Currency,
		Allocated:  allocated,
		Spent:      spent,
		Status:     req.Status,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toRecordResponse(record), http.StatusCreated)
}

// ListRecords handles GET /consolidation/records?kind=&fiscal_year=&currency=&owner_id=
func (h *ConsolidationHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	year, err := queryInt(r, "fiscal_year")
	if err != nil {
		respondValidation(w, "fiscal_year", err)
		return
	}

	records, err := h.service.ListRecords(r.Context(), consolidation.Filters{
		Kind:       consolidation.Kind(strings.ToLower(q.Get("kind"))),
		FiscalYear: year,
		Currency:   q.Get("currency"),
		OwnerID:    q.Get("owner_id"),
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := RecordsListResponse{Records: make([]RecordResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, toRecordResponse(rec))
	}
	respondJSON(w, resp, http.StatusOK)
}

// GetRecord handles GET /consolidation/records/{id}
func (h *ConsolidationHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	record, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toRecordResponse(record), http.StatusOK)
}

// UpdateSpent handles PUT /consolidation/records/{id}/spent
func (h *ConsolidationHandler) UpdateSpent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	var req UpdateSpentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	spent, err := money.Parse(req.Spent)
	if err != nil {
		respondValidation(w, "spent", err)
		return
	}

	record, err := h.service.UpdateSpent(r.Context(), id, spent)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toRecordResponse(record), http.StatusOK)
}

// GetReport handles GET /consolidation/report?dimension=&fiscal_year=&currency=&kind=&top=
func (h *ConsolidationHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	year, err := queryInt(r, "fiscal_year")
	if err != nil {
		respondValidation(w, "fiscal_year", err)
		return
	}
	top, err := queryInt(r, "top")
	if err != nil || top < 0 {
		respondValidation(w, "top", errors.New("must be a non-negative integer"))
		return
	}

	report, err := h.service.Report(r.Context(), consolidation.Query{
		Dimension:  consolidation.Dimension(strings.ToLower(q.Get("dimension"))),
		FiscalYear: year,
		Currency:   q.Get("currency"),
		Kind:       consolidation.Kind(strings.ToLower(q.Get("kind"))),
		TopN:       top,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := ReportResponse{
		Dimension:    string(report.Query.Dimension),
		Aggregates:   make([]AggregateResponse, 0, len(report.Aggregates)),
		Alerts:       make([]AlertResponse, 0, len(report.Alerts)),
		TopAllocated: toRecordResponses(report.TopAllocated),
		TopSpent:     toRecordResponses(report.TopSpent),
		Totals: TotalsResponse{
			Count:       report.Totals.Count,
			Allocated:   money.Format(report.Totals.Allocated),
			Spent:       money.Format(report.Totals.Spent),
			Utilization: money.Format(report.Totals.Utilization),
		},
	}
	for _, a := range report.Aggregates {
		resp.Aggregates = append(resp.Aggregates, AggregateResponse{
			Key:         a.Key,
			Count:       a.Count,
			Allocated:   money.Format(a.Allocated),
			Spent:       money.Format(a.Spent),
			Utilization: money.Format(a.Utilization),
		})
	}
	for _, a := range report.Alerts {
		resp.Alerts = append(resp.Alerts, AlertResponse{
			RecordID:    a.RecordID.String(),
			OwnerID:     a.OwnerID,
			OwnerName:   a.OwnerName,
			Category:    a.Category,
			Severity:    string(a.Severity),
			Utilization: money.Format(a.Utilization),
			Threshold:   money.Format(a.Threshold),
		})
	}
	respondJSON(w, resp, http.StatusOK)
}

// queryInt parses an optional integer query parameter; absent means zero
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	return n, nil
}

func toRecordResponse(r *consolidation.Record) RecordResponse {
	return RecordResponse{
		ID:          r.ID.String(),
		Kind:        string(r.Kind),
		OwnerID:     r.OwnerID,
		OwnerName:   r.OwnerName,
		Type:        r.Type,
		Category:    r.Category,
		FiscalYear:  r.FiscalYear,
		Currency:    r.Currency,
		Allocated:   money.Format(r.Allocated),
		Spent:       money.Format(r.Spent),
		Utilization: money.Format(r.Utilization()),
		Status:      r.Status,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}

func toRecordResponses(records []consolidation.Record) []RecordResponse {
	out := make([]RecordResponse, 0, len(records))
	for i := range records {
		out = append(out, toRecordResponse(&records[i]))
	}
	return out
}

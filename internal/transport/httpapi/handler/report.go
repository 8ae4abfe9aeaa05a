package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

// ReportServiceInterface builds ledger reports
type ReportServiceInterface interface {
	TrialBalance(ctx context.Context, asOf time.Time) (*ledger.TrialBalance, error)
}

// ReportHandler handles report HTTP requests
type ReportHandler struct {
	service ReportServiceInterface
	logger  *logger.Logger
	now     func() time.Time
}

// NewReportHandler creates a new report handler
func NewReportHandler(service ReportServiceInterface, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  log,
		now:     time.Now,
	}
}

// TrialBalanceRowResponse is one account row of the trial balance
type TrialBalanceRowResponse struct {
	AccountID string `json:"account_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
}

// TrialBalanceResponse represents the trial balance report
type TrialBalanceResponse struct {
	AsOf        string                    `json:"as_of"`
	Rows        []TrialBalanceRowResponse `json:"rows"`
	TotalDebit  string                    `json:"total_debit"`
	TotalCredit string                    `json:"total_credit"`
	Difference  string                    `json:"difference"`
	Balanced    bool                      `json:"balanced"`
}

// GetTrialBalance handles GET /reports/trial-balance?as_of=YYYY-MM-DD
func (h *ReportHandler) GetTrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf := h.now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			respondValidation(w, "as_of", err)
			return
		}
		asOf = t
	}

	tb, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := TrialBalanceResponse{
		AsOf:        formatDate(tb.AsOf),
		Rows:        make([]TrialBalanceRowResponse, 0, len(tb.Rows)),
		TotalDebit:  money.Format(tb.TotalDebit),
		TotalCredit: money.Format(tb.TotalCredit),
		Difference:  money.Format(tb.Difference),
		Balanced:    tb.Balanced,
	}
	for _, row := range tb.Rows {
		resp.Rows = append(resp.Rows, TrialBalanceRowResponse{
			AccountID: row.AccountID.String(),
			Code:      row.Code,
			Name:      row.Name,
			Type:      string(row.Type),
			Debit:     money.Format(row.Debit),
			Credit:    money.Format(row.Credit),
		})
	}
	respondJSON(w, resp, http.StatusOK)
}

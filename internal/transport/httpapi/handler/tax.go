package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/tax"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

// TaxHandler exposes the GST split calculations. It is stateless.
type TaxHandler struct {
	logger *logger.Logger
}

// NewTaxHandler creates a new tax handler
func NewTaxHandler(log *logger.Logger) *TaxHandler {
	return &TaxHandler{logger: log}
}

// SplitRequest asks for the tax on one amount
type SplitRequest struct {
	Base       string `json:"base"`
	Rate       string `json:"rate"`
	InterState bool   `json:"inter_state"`
}

// SummaryRequest asks for the totals of a list of priced items
type SummaryRequest struct {
	InterState bool           `json:"inter_state"`
	Items      []tax.LineItem `json:"items"`
}

// SplitResponse is a tax amount broken into components
type SplitResponse struct {
	CGST  string `json:"cgst"`
	SGST  string `json:"sgst"`
	IGST  string `json:"igst"`
	Total string `json:"total"`
}

// LineTotalsResponse is the computed value of one item
type LineTotalsResponse struct {
	Taxable string        `json:"taxable"`
	Tax     SplitResponse `json:"tax"`
	Total   string        `json:"total"`
}

// SummaryResponse is the computed value of a whole document
type SummaryResponse struct {
	Lines   []LineTotalsResponse `json:"lines"`
	Taxable string               `json:"taxable"`
	Tax     SplitResponse        `json:"tax"`
	Total   string               `json:"total"`
}

// Split handles POST /tax/split
func (h *TaxHandler) Split(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	base, err := money.Parse(req.Base)
	if err != nil {
		respondValidation(w, "base", err)
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		respondValidation(w, "rate", err)
		return
	}

	split, err := tax.SplitTax(base, rate, req.InterState)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toSplitResponse(split), http.StatusOK)
}

// Summary handles POST /tax/summary
func (h *TaxHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	totals, err := tax.Summarize(req.Items, req.InterState)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := SummaryResponse{
		Lines:   make([]LineTotalsResponse, 0, len(totals.Lines)),
		Taxable: money.Format(totals.Taxable),
		Tax:     toSplitResponse(totals.Tax),
		Total:   money.Format(totals.Total),
	}
	for _, l := range totals.Lines {
		resp.Lines = append(resp.Lines, LineTotalsResponse{
			Taxable: money.Format(l.Taxable),
			Tax:     toSplitResponse(l.Tax),
			Total:   money.Format(l.Total),
		})
	}
	respondJSON(w, resp, http.StatusOK)
}

func toSplitResponse(s tax.Split) SplitResponse {
	return SplitResponse{
		CGST:  money.Format(s.CGST),
		SGST:  money.Format(s.SGST),
		IGST:  money.Format(s.IGST),
		Total: money.Format(s.Total),
	}
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// JournalServiceInterface defines the journal entry lifecycle operations
type JournalServiceInterface interface {
	CreateDraft(ctx context.Context, in ledger.DraftInput) (*ledger.JournalEntry, error)
	UpdateDraft(ctx context.Context, id uuid.UUID, in ledger.DraftInput) (*ledger.JournalEntry, error)
	Post(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error)
	Reverse(ctx context.Context, id uuid.UUID, date time.Time) (*ledger.JournalEntry, error)
	GetJournalEntry(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error)
	ListJournalEntries(ctx context.Context, filters ledger.JournalFilters) ([]*ledger.JournalEntry, error)
	GetAccountByCode(ctx context.Context, code string) (*ledger.Account, error)
}

// JournalHandler handles journal entry HTTP requests
type JournalHandler struct {
	service JournalServiceInterface
	logger  *logger.Logger
	now     func() time.Time
}

// NewJournalHandler creates a new journal handler
func NewJournalHandler(service JournalServiceInterface, log *logger.Logger) *JournalHandler {
	return &JournalHandler{
		service: service,
		logger:  log,
		now:     time.Now,
	}
}

// LineRequest is one line of a journal entry request. Either account_id or
// account_code identifies the account; amounts are decimal strings.
type LineRequest struct {
	AccountID   string `json:"account_id,omitempty"`
	AccountCode string `json:"account_code,omitempty"`
	Debit       string `json:"debit,omitempty"`
	Credit      string `json:"credit,omitempty"`
	Description string `json:"description,omitempty"`
}

// JournalEntryRequest represents the draft create and update request
type JournalEntryRequest struct {
	Date        string        `json:"date"`
	Reference   string        `json:"reference,omitempty"`
	Description string        `json:"description,omitempty"`
	Lines       []LineRequest `json:"lines"`
	Post        bool          `json:"post,omitempty"`
}

// ReverseRequest represents the reversal request. An empty date means today.
type ReverseRequest struct {
	Date string `json:"date,omitempty"`
}

// LineResponse is one line of a journal entry
type LineResponse struct {
	AccountID   string `json:"account_id"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description,omitempty"`
}

// JournalEntryResponse represents a journal entry response
type JournalEntryResponse struct {
	ID          string         `json:"id"`
	Number      int64          `json:"number"`
	Date        string         `json:"date"`
	Reference   string         `json:"reference,omitempty"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Lines       []LineResponse `json:"lines"`
	TotalDebit  string         `json:"total_debit"`
	TotalCredit string         `json:"total_credit"`
	ReversalOf  *string        `json:"reversal_of,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	PostedAt    *string        `json:"posted_at,omitempty"`
}

// JournalEntriesListResponse represents the response for listing journal entries
type JournalEntriesListResponse struct {
	Entries []JournalEntryResponse `json:"entries"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// CreateJournalEntry handles POST /journal-entries
func (h *JournalHandler) CreateJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req JournalEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	in, ok := h.draftInput(w, r, req)
	if !ok {
		return
	}

	entry, err := h.service.CreateDraft(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	if req.Post {
		entry, err = h.service.Post(r.Context(), entry.ID)
		if err != nil {
			respondServiceError(w, r, h.logger, err)
			return
		}
	}

	respondJSON(w, toJournalEntryResponse(entry), http.StatusCreated)
}

// ListJournalEntries handles GET /journal-entries?status=&account_id=&from=&to=&limit=&offset=
func (h *JournalHandler) ListJournalEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ledger.JournalFilters{Limit: defaultPageSize}

	if v := q.Get("status"); v != "" {
		s := ledger.EntryStatus(strings.ToLower(v))
		filters.Status = &s
	}
	if v := q.Get("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondValidation(w, "account_id", err)
			return
		}
		filters.AccountID = &id
	}

	var err error
	if filters.From, err = queryDate(r, "from"); err != nil {
		respondValidation(w, "from", err)
		return
	}
	if filters.To, err = queryDate(r, "to"); err != nil {
		respondValidation(w, "to", err)
		return
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxPageSize {
			respondValidation(w, "limit", fmt.Errorf("must be between 1 and %d", maxPageSize))
			return
		}
		filters.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondValidation(w, "offset", fmt.Errorf("must be a non-negative integer"))
			return
		}
		filters.Offset = n
	}

	entries, err := h.service.ListJournalEntries(r.Context(), filters)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := JournalEntriesListResponse{
		Entries: make([]JournalEntryResponse, 0, len(entries)),
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toJournalEntryResponse(e))
	}
	respondJSON(w, resp, http.StatusOK)
}

// GetJournalEntry handles GET /journal-entries/{id}
func (h *JournalHandler) GetJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	entry, err := h.service.GetJournalEntry(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toJournalEntryResponse(entry), http.StatusOK)
}

// UpdateJournalEntry handles PUT /journal-entries/{id}. Only drafts change.
func (h *JournalHandler) UpdateJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	var req JournalEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Post {
		respondValidation(w, "post", fmt.Errorf("use POST /journal-entries/%s/post", id))
		return
	}

	in, ok := h.draftInput(w, r, req)
	if !ok {
		return
	}

	entry, err := h.service.UpdateDraft(r.Context(), id, in)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toJournalEntryResponse(entry), http.StatusOK)
}

// PostJournalEntry handles POST /journal-entries/{id}/post
func (h *JournalHandler) PostJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	entry, err := h.service.Post(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toJournalEntryResponse(entry), http.StatusOK)
}

// ReverseJournalEntry handles POST /journal-entries/{id}/reverse
func (h *JournalHandler) ReverseJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	var req ReverseRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	date := h.now()
	if req.Date != "" {
		if date, err = parseDate(req.Date); err != nil {
			respondValidation(w, "date", err)
			return
		}
	}

	entry, err := h.service.Reverse(r.Context(), id, date)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toJournalEntryResponse(entry), http.StatusCreated)
}

// draftInput converts the request, writing the error response itself when it fails
func (h *JournalHandler) draftInput(w http.ResponseWriter, r *http.Request, req JournalEntryRequest) (ledger.DraftInput, bool) {
	date, err := parseDate(req.Date)
	if err != nil {
		respondValidation(w, "date", err)
		return ledger.DraftInput{}, false
	}

	lines := make([]ledger.Line, 0, len(req.Lines))
	for i, l := range req.Lines {
		field := fmt.Sprintf("lines[%d]", i)

		debit, err := parseOptionalAmount(l.Debit)
		if err != nil {
			respondValidation(w, field+".debit", err)
			return ledger.DraftInput{}, false
		}
		credit, err := parseOptionalAmount(l.Credit)
		if err != nil {
			respondValidation(w, field+".credit", err)
			return ledger.DraftInput{}, false
		}

		var accountID uuid.UUID
		switch {
		case l.AccountID != "":
			if accountID, err = uuid.Parse(l.AccountID); err != nil {
				respondValidation(w, field+".account_id", err)
				return ledger.DraftInput{}, false
			}
		case l.AccountCode != "":
			account, err := h.service.GetAccountByCode(r.Context(), l.AccountCode)
			if err != nil {
				var le *ledger.Error
				if errors.As(err, &le) {
					err = ledger.NewError(le.Kind, le.Err, field+".account_code", le.ID)
				}
				respondServiceError(w, r, h.logger, err)
				return ledger.DraftInput{}, false
			}
			accountID = account.ID
		}
		// a missing account id is reported by the journal engine

		lines = append(lines, ledger.Line{
			AccountID:   accountID,
			Debit:       debit,
			Credit:      credit,
			Description: l.Description,
		})
	}

	return ledger.DraftInput{
		Date:        date,
		Reference:   req.Reference,
		Description: req.Description,
		Lines:       lines,
	}, true
}

func toJournalEntryResponse(e *ledger.JournalEntry) JournalEntryResponse {
	debit, credit := e.Totals()
	resp := JournalEntryResponse{
		ID:          e.ID.String(),
		Number:      e.Number,
		Date:        formatDate(e.Date),
		Reference:   e.Reference,
		Description: e.Description,
		Status:      string(e.Status),
		Lines:       make([]LineResponse, 0, len(e.Lines)),
		TotalDebit:  money.Format(debit),
		TotalCredit: money.Format(credit),
		ReversalOf:  uuidPtrString(e.ReversalOf),
		CreatedAt:   formatTime(e.CreatedAt),
		UpdatedAt:   formatTime(e.UpdatedAt),
		PostedAt:    formatTimePtr(e.PostedAt),
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			AccountID:   l.AccountID.String(),
			Debit:       money.Format(l.Debit),
			Credit:      money.Format(l.Credit),
			Description: l.Description,
		})
	}
	return resp
}

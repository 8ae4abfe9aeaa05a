package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

// AccountServiceInterface defines the chart of accounts and projection operations
type AccountServiceInterface interface {
	CreateAccount(ctx context.Context, in ledger.CreateAccountInput) (*ledger.Account, error)
	UpdateAccount(ctx context.Context, id uuid.UUID, in ledger.UpdateAccountInput) (*ledger.Account, error)
	Reparent(ctx context.Context, accountID uuid.UUID, newParentID *uuid.UUID) (*ledger.Account, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	ListAccounts(ctx context.Context, filters ledger.AccountFilters) ([]*ledger.Account, error)
	BuildHierarchy(ctx context.Context) ([]*ledger.AccountNode, error)
	RollupBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	AccountStatement(ctx context.Context, accountID uuid.UUID, r ledger.DateRange) (*ledger.Statement, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) error
}

// AccountHandler handles chart of accounts HTTP requests
type AccountHandler struct {
	service AccountServiceInterface
	logger  *logger.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service AccountServiceInterface, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		logger:  log,
	}
}

// CreateAccountRequest represents the account creation request
type CreateAccountRequest struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	IsGroup        bool    `json:"is_group"`
	ParentID       *string `json:"parent_id,omitempty"`
	OpeningBalance string  `json:"opening_balance,omitempty"`
	Description    string  `json:"description,omitempty"`
}

// UpdateAccountRequest represents the account update request. Absent fields are left alone.
type UpdateAccountRequest struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Type        *string `json:"type,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ReparentRequest moves an account; a null parent makes it a root
type ReparentRequest struct {
	ParentID *string `json:"parent_id"`
}

// AccountResponse represents an account response
type AccountResponse struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	NormalSide     string  `json:"normal_side"`
	IsGroup        bool    `json:"is_group"`
	ParentID       *string `json:"parent_id,omitempty"`
	OpeningBalance string  `json:"opening_balance"`
	Balance        string  `json:"balance"`
	IsActive       bool    `json:"is_active"`
	Description    string  `json:"description,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// AccountsListResponse represents the response for listing accounts
type AccountsListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

// AccountNodeResponse is one node of the chart tree
type AccountNodeResponse struct {
	AccountResponse
	Rollup   string                `json:"rollup"`
	Children []AccountNodeResponse `json:"children"`
}

// AccountTreeResponse is the whole chart as a forest
type AccountTreeResponse struct {
	Roots []AccountNodeResponse `json:"roots"`
}

// BalanceResponse reports an account's own balance and its roll-up
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Code      string `json:"code"`
	IsGroup   bool   `json:"is_group"`
	Balance   string `json:"balance"`
	Rollup    string `json:"rollup"`
}

// LedgerEntryResponse is one posted row of an account ledger
type LedgerEntryResponse struct {
	ID             string `json:"id"`
	Sequence       int64  `json:"sequence"`
	JournalEntryID string `json:"journal_entry_id"`
	Date           string `json:"date"`
	Debit          string `json:"debit"`
	Credit         string `json:"credit"`
	RunningBalance string `json:"running_balance"`
	Description    string `json:"description,omitempty"`
}

// StatementResponse is an account ledger over a period
type StatementResponse struct {
	Account        AccountResponse       `json:"account"`
	From           *string               `json:"from,omitempty"`
	To             *string               `json:"to,omitempty"`
	OpeningBalance string                `json:"opening_balance"`
	ClosingBalance string                `json:"closing_balance"`
	TotalDebit     string                `json:"total_debit"`
	TotalCredit    string                `json:"total_credit"`
	Entries        []LedgerEntryResponse `json:"entries"`
}

// ReconcileResponse reports the outcome of a ledger replay
type ReconcileResponse struct {
	AccountID  string `json:"account_id"`
	Reconciled bool   `json:"reconciled"`
	Detail     string `json:"detail,omitempty"`
}

// CreateAccount handles POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	opening, err := parseOptionalAmount(req.OpeningBalance)
	if err != nil {
		respondValidation(w, "opening_balance", err)
		return
	}

	parentID, err := parseOptionalID(req.ParentID)
	if err != nil {
		respondValidation(w, "parent_id", err)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), ledger.CreateAccountInput{
		Code:           req.Code,
		Name:           req.Name,
		Type:           ledger.AccountType(strings.ToLower(strings.TrimSpace(req.Type))),
		IsGroup:        req.IsGroup,
		ParentID:       parentID,
		OpeningBalance: opening,
		Description:    req.Description,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, toAccountResponse(account), http.StatusCreated)
}

// ListAccounts handles GET /accounts?type=&active=&group=
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filters ledger.AccountFilters

	if v := q.Get("type"); v != "" {
		t := ledger.AccountType(strings.ToLower(v))
		if !t.IsValid() {
			respondValidation(w, "type", ledger.ErrInvalidAccountType)
			return
		}
		filters.Type = &t
	}
	for key, dst := range map[string]**bool{"active": &filters.IsActive, "group": &filters.IsGroup} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondValidation(w, key, errors.New("must be true or false"))
			return
		}
		*dst = &b
	}

	accounts, err := h.service.ListAccounts(r.Context(), filters)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := AccountsListResponse{Accounts: make([]AccountResponse, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toAccountResponse(a))
	}
	respondJSON(w, resp, http.StatusOK)
}

// GetTree handles GET /accounts/tree
func (h *AccountHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	forest, err := h.service.BuildHierarchy(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := AccountTreeResponse{Roots: make([]AccountNodeResponse, 0, len(forest))}
	for _, n := range forest {
		resp.Roots = append(resp.Roots, toNodeResponse(n))
	}
	respondJSON(w, resp, http.StatusOK)
}

// GetAccount handles GET /accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toAccountResponse(account), http.StatusOK)
}

// UpdateAccount handles PUT /accounts/{id}
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	var req UpdateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := ledger.UpdateAccountInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	}
	if req.Type != nil {
		t := ledger.AccountType(strings.ToLower(strings.TrimSpace(*req.Type)))
		in.Type = &t
	}

	account, err := h.service.UpdateAccount(r.Context(), id, in)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toAccountResponse(account), http.StatusOK)
}

// DeleteAccount handles DELETE /accounts/{id}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reparent handles PUT /accounts/{id}/parent
func (h *AccountHandler) Reparent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	var req ReparentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	parentID, err := parseOptionalID(req.ParentID)
	if err != nil {
		respondValidation(w, "parent_id", err)
		return
	}

	account, err := h.service.Reparent(r.Context(), id, parentID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toAccountResponse(account), http.StatusOK)
}

// GetBalance handles GET /accounts/{id}/balance
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	rollup, err := h.service.RollupBalance(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, BalanceResponse{
		AccountID: account.ID.String(),
		Code:      account.Code,
		IsGroup:   account.IsGroup,
		Balance:   money.Format(account.Balance),
		Rollup:    money.Format(rollup),
	}, http.StatusOK)
}

// GetLedger handles GET /accounts/{id}/ledger?from=&to=
func (h *AccountHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	from, err := queryDate(r, "from")
	if err != nil {
		respondValidation(w, "from", err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		respondValidation(w, "to", err)
		return
	}

	st, err := h.service.AccountStatement(r.Context(), id, ledger.DateRange{From: from, To: to})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := StatementResponse{
		Account:        toAccountResponse(st.Account),
		OpeningBalance: money.Format(st.OpeningBalance),
		ClosingBalance: money.Format(st.ClosingBalance),
		TotalDebit:     money.Format(st.TotalDebit),
		TotalCredit:    money.Format(st.TotalCredit),
		Entries:        make([]LedgerEntryResponse, 0, len(st.Entries)),
	}
	if from != nil {
		s := formatDate(*from)
		resp.From = &s
	}
	if to != nil {
		s := formatDate(*to)
		resp.To = &s
	}
	for _, e := range st.Entries {
		resp.Entries = append(resp.Entries, LedgerEntryResponse{
			ID:             e.ID.String(),
			Sequence:       e.Sequence,
			JournalEntryID: e.JournalEntryID.String(),
			Date:           formatDate(e.Date),
			Debit:          money.Format(e.Debit),
			Credit:         money.Format(e.Credit),
			RunningBalance: money.Format(e.RunningBalance),
			Description:    e.Description,
		})
	}
	respondJSON(w, resp, http.StatusOK)
}

// Reconcile handles POST /accounts/{id}/reconcile. A mismatch is a finding,
// not a request failure, and is reported with 200.
func (h *AccountHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondValidation(w, "id", err)
		return
	}

	err = h.service.Reconcile(r.Context(), id)
	if err != nil && ledger.KindOf(err) != ledger.KindComputation {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := ReconcileResponse{AccountID: id.String(), Reconciled: err == nil}
	if err != nil {
		h.logger.WithContext(r.Context()).Error("account failed reconciliation", "account_id", id, "error", err)
		resp.Detail = err.Error()
	}
	respondJSON(w, resp, http.StatusOK)
}

func parseOptionalID(s *string) (*uuid.UUID, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*s))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func toAccountResponse(a *ledger.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID.String(),
		Code:           a.Code,
		Name:           a.Name,
		Type:           string(a.Type),
		NormalSide:     string(a.Type.NormalSide()),
		IsGroup:        a.IsGroup,
		ParentID:       uuidPtrString(a.ParentID),
		OpeningBalance: money.Format(a.OpeningBalance),
		Balance:        money.Format(a.Balance),
		IsActive:       a.IsActive,
		Description:    a.Description,
		CreatedAt:      formatTime(a.CreatedAt),
		UpdatedAt:      formatTime(a.UpdatedAt),
	}
}

func toNodeResponse(n *ledger.AccountNode) AccountNodeResponse {
	resp := AccountNodeResponse{
		AccountResponse: toAccountResponse(n.Account),
		Rollup:          money.Format(n.Rollup),
		Children:        make([]AccountNodeResponse, 0, len(n.Children)),
	}
	for _, c := range n.Children {
		resp.Children = append(resp.Children, toNodeResponse(c))
	}
	return resp
}

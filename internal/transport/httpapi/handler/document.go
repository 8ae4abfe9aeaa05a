package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

// DocumentServiceInterface turns business documents into journal entries
type DocumentServiceInterface interface {
	RecordDocument(ctx context.Context, docType ledger.DocumentType, in ledger.DocumentInput) (*ledger.JournalEntry, error)
	Registry() *ledger.Registry
}

// DocumentHandler handles business document HTTP requests
type DocumentHandler struct {
	service DocumentServiceInterface
	logger  *logger.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(service DocumentServiceInterface, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  log,
	}
}

// DocumentRequest wraps a document payload with its journal metadata.
// Data is handed to the handler registered for the document type.
type DocumentRequest struct {
	Date        string                 `json:"date"`
	Reference   string                 `json:"reference,omitempty"`
	Description string                 `json:"description,omitempty"`
	Post        bool                   `json:"post,omitempty"`
	Data        map[string]interface{} `json:"data"`
}

// DocumentTypesResponse lists the document types that can be recorded
type DocumentTypesResponse struct {
	Types []string `json:"types"`
}

// RecordDocument handles POST /documents/{type}
func (h *DocumentHandler) RecordDocument(w http.ResponseWriter, r *http.Request) {
	docType := ledger.DocumentType(strings.ToLower(chi.URLParam(r, "type")))

	var req DocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		respondValidation(w, "date", err)
		return
	}

	entry, err := h.service.RecordDocument(r.Context(), docType, ledger.DocumentInput{
		Date:        date,
		Reference:   req.Reference,
		Description: req.Description,
		Data:        req.Data,
		Post:        req.Post,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, toJournalEntryResponse(entry), http.StatusCreated)
}

// ListDocumentTypes handles GET /documents/types
func (h *DocumentHandler) ListDocumentTypes(w http.ResponseWriter, r *http.Request) {
	types := h.service.Registry().Types()
	resp := DocumentTypesResponse{Types: make([]string, 0, len(types))}
	for _, t := range types {
		resp.Types = append(resp.Types, string(t))
	}
	respondJSON(w, resp, http.StatusOK)
}

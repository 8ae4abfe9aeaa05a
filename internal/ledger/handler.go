package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// DocumentType identifies a business document that turns into a journal entry
type DocumentType string

const (
	DocTypeSalesInvoice    DocumentType = "sales_invoice"
	DocTypePurchaseBill    DocumentType = "purchase_bill"
	DocTypePaymentReceived DocumentType = "payment_received"
	DocTypePaymentMade     DocumentType = "payment_made"
)

// AllDocumentTypes returns every supported document type
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocTypeSalesInvoice,
		DocTypePurchaseBill,
		DocTypePaymentReceived,
		DocTypePaymentMade,
	}
}

// IsValid checks if the document type is known
func (t DocumentType) IsValid() bool {
	return slices.Contains(AllDocumentTypes(), t)
}

// Handler turns the raw payload of one document type into journal lines.
//
// Each document type (invoice, bill, payment) implements this interface so new
// document flows can be added without touching the journal engine.
type Handler interface {
	// Type returns the unique document type identifier
	Type() DocumentType

	// Handle generates the lines for the document. The lines MUST balance.
	Handle(ctx context.Context, data map[string]interface{}) ([]Line, error)

	// ValidateData validates the document payload before lines are generated
	ValidateData(ctx context.Context, data map[string]interface{}) error
}

// BaseHandler provides common functionality for handlers
type BaseHandler struct {
	handlerType DocumentType
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(handlerType DocumentType) BaseHandler {
	return BaseHandler{handlerType: handlerType}
}

// Type returns the document type
func (h *BaseHandler) Type() DocumentType {
	return h.handlerType
}

// Registry manages document handlers
type Registry struct {
	handlers map[DocumentType]Handler
	mu       sync.RWMutex
}

// NewRegistry creates a new handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[DocumentType]Handler),
	}
}

// Register registers a handler for a document type
// Returns an error if a handler for this type is already registered
func (r *Registry) Register(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	handlerType := handler.Type()
	if !handlerType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentType, handlerType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[handlerType]; exists {
		return fmt.Errorf("handler for type '%s' already registered", handlerType)
	}

	r.handlers[handlerType] = handler
	return nil
}

// Get retrieves a handler by document type
func (r *Registry) Get(docType DocumentType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[docType]
	if !exists {
		return nil, validationError(fmt.Errorf("%w: %s", ErrUnknownDocumentType, docType), "type")
	}

	return handler, nil
}

// Has checks if a handler is registered for the given document type
func (r *Registry) Has(docType DocumentType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.handlers[docType]
	return exists
}

// Types returns all registered document types, sorted
func (r *Registry) Types() []DocumentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]DocumentType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Handle validates the payload and generates lines with the matching handler
func (r *Registry) Handle(ctx context.Context, docType DocumentType, data map[string]interface{}) ([]Line, error) {
	handler, err := r.Get(docType)
	if err != nil {
		return nil, err
	}

	if err := handler.ValidateData(ctx, data); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	lines, err := handler.Handle(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to generate lines: %w", err)
	}

	return lines, nil
}

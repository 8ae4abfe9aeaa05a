package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerworks/ledgercore/internal/consolidation"
)

// ConsolidationRepository is an in-memory consolidation.Repository
type ConsolidationRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*consolidation.Record
	order   []uuid.UUID
}

var _ consolidation.Repository = (*ConsolidationRepository)(nil)

// NewConsolidationRepository creates an empty repository
func NewConsolidationRepository() *ConsolidationRepository {
	return &ConsolidationRepository{records: make(map[uuid.UUID]*consolidation.Record)}
}

func (r *ConsolidationRepository) CreateRecord(_ context.Context, record *consolidation.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.ID]; ok {
		return fmt.Errorf("record %s already exists", record.ID)
	}
	c := *record
	r.records[record.ID] = &c
	r.order = append(r.order, record.ID)
	return nil
}

func (r *ConsolidationRepository) GetRecord(_ context.Context, id uuid.UUID) (*consolidation.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", consolidation.ErrRecordNotFound, id)
	}
	c := *record
	return &c, nil
}

func (r *ConsolidationRepository) UpdateRecord(_ context.Context, record *consolidation.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.ID]; !ok {
		return fmt.Errorf("%w: %s", consolidation.ErrRecordNotFound, record.ID)
	}
	c := *record
	r.records[record.ID] = &c
	return nil
}

// ListRecords returns matching records in creation order
func (r *ConsolidationRepository) ListRecords(_ context.Context, filters consolidation.Filters) ([]*consolidation.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*consolidation.Record, 0, len(r.order))
	for _, id := range r.order {
		record := r.records[id]
		if !filters.Matches(*record) {
			continue
		}
		c := *record
		out = append(out, &c)
	}
	slices.SortStableFunc(out, func(a, b *consolidation.Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

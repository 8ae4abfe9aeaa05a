package consolidation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

// DefaultTopN is the length of the ranked lists when a query leaves it unset
const DefaultTopN = 5

// Repository persists consolidation records.
// Missing records are reported as ErrRecordNotFound (wrapped).
type Repository interface {
	CreateRecord(ctx context.Context, record *Record) error
	GetRecord(ctx context.Context, id uuid.UUID) (*Record, error)
	UpdateRecord(ctx context.Context, record *Record) error
	ListRecords(ctx context.Context, filters Filters) ([]*Record, error)
}

// Query selects and shapes a consolidation report
type Query struct {
	Dimension  Dimension
	FiscalYear int
	Currency   string
	Kind       Kind
	TopN       int
}

// Totals sums every record in a report
type Totals struct {
	Count       int
	Allocated   decimal.Decimal
	Spent       decimal.Decimal
	Utilization decimal.Decimal
}

// Report is the consolidated view over the records matching a query
type Report struct {
	Query        Query
	Aggregates   []Aggregate
	Alerts       []Alert
	TopAllocated []Record
	TopSpent     []Record
	Totals       Totals
}

// Service serves consolidation reports and record upkeep
type Service struct {
	repo       Repository
	thresholds Thresholds
	topN       int
	logger     *logger.Logger
}

// NewService creates a consolidation service. Invalid thresholds are rejected.
func NewService(repo Repository, thresholds Thresholds, topN int, log *logger.Logger) (*Service, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Service{
		repo:       repo,
		thresholds: thresholds,
		topN:       topN,
		logger:     log.WithField("component", "consolidation"),
	}, nil
}

// Thresholds returns the alert thresholds in use
func (s *Service) Thresholds() Thresholds {
	return s.thresholds
}

// CreateRecordInput describes a new record
type CreateRecordInput struct {
	Kind       Kind
	OwnerID    string
	OwnerName  string
	Type       string
	Category   string
	FiscalYear int
	Currency   string
	Allocated  decimal.Decimal
	Spent      decimal.Decimal
	Status     string
}

// CreateRecord stores a new budget or sales record
func (s *Service) CreateRecord(ctx context.Context, in CreateRecordInput) (*Record, error) {
	now := time.Now().UTC()
	record := &Record{
		ID:         uuid.New(),
		Kind:       in.Kind,
		OwnerID:    strings.TrimSpace(in.OwnerID),
		OwnerName:  strings.TrimSpace(in.OwnerName),
		Type:       strings.TrimSpace(in.Type),
		Category:   strings.TrimSpace(in.Category),
		FiscalYear: in.FiscalYear,
		Currency:   strings.ToUpper(strings.TrimSpace(in.Currency)),
		Allocated:  in.Allocated,
		Spent:      in.Spent,
		Status:     strings.TrimSpace(in.Status),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if record.Status == "" {
		record.Status = "active"
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	s.logger.WithContext(ctx).Info("consolidation record created",
		"record_id", record.ID,
		"kind", record.Kind,
		"owner_id", record.OwnerID,
		"fiscal_year", record.FiscalYear,
	)
	return record, nil
}

// UpdateSpent sets the actual amount of a record
func (s *Service) UpdateSpent(ctx context.Context, id uuid.UUID, spent decimal.Decimal) (*Record, error) {
	record, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	record.Spent = spent
	record.UpdatedAt = time.Now().UTC()
	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	return record, nil
}

// GetRecord retrieves a record by ID
func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	record, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ledger.NewError(ledger.KindReference, ErrRecordNotFound, "id", id.String())
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// ListRecords lists records matching filters
func (s *Service) ListRecords(ctx context.Context, filters Filters) ([]*Record, error) {
	records, err := s.repo.ListRecords(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// Report aggregates the matching records along q.Dimension and derives alerts
// and ranked lists. Nothing computed here is stored, so identical inputs give
// identical reports.
func (s *Service) Report(ctx context.Context, q Query) (*Report, error) {
	if q.Dimension == "" {
		q.Dimension = DimensionType
	}
	key, err := q.Dimension.KeyFunc()
	if err != nil {
		return nil, err
	}
	if q.Kind != "" && !q.Kind.IsValid() {
		return nil, invalid(fmt.Errorf("%w: %q", ErrInvalidKind, q.Kind), "kind")
	}
	if q.TopN <= 0 {
		q.TopN = s.topN
	}

	rows, err := s.repo.ListRecords(ctx, Filters{
		Kind:       q.Kind,
		FiscalYear: q.FiscalYear,
		Currency:   q.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = *r
	}

	report := &Report{
		Query:        q,
		Aggregates:   AggregateBy(records, key),
		Alerts:       GenerateAlerts(records, s.thresholds),
		TopAllocated: TopN(records, q.TopN, func(r Record) decimal.Decimal { return r.Allocated }),
		TopSpent:     TopN(records, q.TopN, func(r Record) decimal.Decimal { return r.Spent }),
		Totals:       totals(records),
	}

	s.logger.WithContext(ctx).Debug("consolidation report built",
		"dimension", q.Dimension,
		"records", len(records),
		"alerts", len(report.Alerts),
	)
	return report, nil
}

func totals(records []Record) Totals {
	t := Totals{Count: len(records), Allocated: decimal.Zero, Spent: decimal.Zero}
	for _, r := range records {
		t.Allocated = t.Allocated.Add(r.Allocated)
		t.Spent = t.Spent.Add(r.Spent)
	}
	t.Utilization = Utilization(t.Allocated, t.Spent)
	return t
}

// Package consolidation rolls budget and sales records up by dimension and
// derives utilization alerts from them.
package consolidation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

var (
	ErrRecordNotFound    = errors.New("consolidation record not found")
	ErrInvalidRecord     = errors.New("invalid consolidation record")
	ErrInvalidKind       = errors.New("invalid record kind")
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrInvalidThresholds = errors.New("warning threshold must be non-negative and below critical")
)

// Kind says which domain owns a record
type Kind string

const (
	KindBudget Kind = "budget"
	KindSale   Kind = "sale"
)

// IsValid checks if the kind is known
func (k Kind) IsValid() bool {
	return k == KindBudget || k == KindSale
}

// Record is one budget line or sales target. Allocated is the plan, Spent the actual.
type Record struct {
	ID         uuid.UUID
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
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Utilization returns the record's spent/allocated percentage
func (r Record) Utilization() decimal.Decimal {
	return Utilization(r.Allocated, r.Spent)
}

// Validate checks record fields
func (r *Record) Validate() error {
	if !r.Kind.IsValid() {
		return invalid(fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind), "kind")
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		return invalid(fmt.Errorf("%w: owner is required", ErrInvalidRecord), "owner_id")
	}
	if r.FiscalYear < 1900 || r.FiscalYear > 9999 {
		return invalid(fmt.Errorf("%w: fiscal year %d", ErrInvalidRecord, r.FiscalYear), "fiscal_year")
	}
	if len(r.Currency) != 3 {
		return invalid(fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidRecord), "currency")
	}
	if r.Allocated.IsNegative() || !money.HasScale(r.Allocated) {
		return invalid(fmt.Errorf("%w: allocated amount", ErrInvalidRecord), "allocated")
	}
	if r.Spent.IsNegative() || !money.HasScale(r.Spent) {
		return invalid(fmt.Errorf("%w: spent amount", ErrInvalidRecord), "spent")
	}
	return nil
}

// Dimension is the record attribute aggregates are grouped by
type Dimension string

const (
	DimensionType     Dimension = "type"
	DimensionCategory Dimension = "category"
	DimensionOwner    Dimension = "owner"
	DimensionStatus   Dimension = "status"
)

// KeyFunc returns the grouping key function for the dimension
func (d Dimension) KeyFunc() (func(Record) string, error) {
	switch d {
	case DimensionType:
		return func(r Record) string { return r.Type }, nil
	case DimensionCategory:
		return func(r Record) string { return r.Category }, nil
	case DimensionOwner:
		return func(r Record) string { return r.OwnerID }, nil
	case DimensionStatus:
		return func(r Record) string { return r.Status }, nil
	default:
		return nil, invalid(fmt.Errorf("%w: %q", ErrInvalidDimension, d), "dimension")
	}
}

// Aggregate summarises one group of records
type Aggregate struct {
	Key         string
	Count       int
	Allocated   decimal.Decimal
	Spent       decimal.Decimal
	Utilization decimal.Decimal
}

// Severity grades an alert
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Thresholds are the utilization percentages that trigger alerts
type Thresholds struct {
	Warning  decimal.Decimal
	Critical decimal.Decimal
}

// DefaultThresholds warns at 75% and escalates at 90%
func DefaultThresholds() Thresholds {
	return Thresholds{
		Warning:  decimal.NewFromInt(75),
		Critical: decimal.NewFromInt(90),
	}
}

// Validate requires 0 <= warning < critical
func (t Thresholds) Validate() error {
	if t.Warning.IsNegative() || !t.Warning.LessThan(t.Critical) {
		return invalid(ErrInvalidThresholds, "thresholds")
	}
	return nil
}

// Alert flags a record whose utilization crossed a threshold. Alerts are
// derived on every read and never stored.
type Alert struct {
	RecordID    uuid.UUID
	OwnerID     string
	OwnerName   string
	Category    string
	Severity    Severity
	Utilization decimal.Decimal
	Threshold   decimal.Decimal
}

// Filters narrow the records a query works on. Zero values match everything.
type Filters struct {
	Kind       Kind
	FiscalYear int
	Currency   string
	OwnerID    string
}

// Matches reports whether r passes the filters
func (f Filters) Matches(r Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.FiscalYear != 0 && r.FiscalYear != f.FiscalYear {
		return false
	}
	if f.Currency != "" && !strings.EqualFold(r.Currency, f.Currency) {
		return false
	}
	if f.OwnerID != "" && r.OwnerID != f.OwnerID {
		return false
	}
	return true
}

func invalid(err error, field string) error {
	return ledger.NewError(ledger.KindValidation, err, field, "")
}

func sortByKey(aggs []Aggregate) {
	slices.SortFunc(aggs, func(a, b Aggregate) int { return strings.Compare(a.Key, b.Key) })
}

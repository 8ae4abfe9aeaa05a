package consolidation

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateRecord(ctx context.Context, record *Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRepository) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) UpdateRecord(ctx context.Context, record *Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRepository) ListRecords(ctx context.Context, filters Filters) ([]*Record, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Record), args.Error(1)
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(repo, DefaultThresholds(), 2, logger.Discard())
	require.NoError(t, err)
	return svc
}

func TestNewService_RejectsInvalidThresholds(t *testing.T) {
	_, err := NewService(new(MockRepository), Thresholds{Warning: dec("90"), Critical: dec("75")}, 5, logger.Discard())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidThresholds)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
}

func TestService_CreateRecord(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		input     CreateRecordInput
		setupMock func(*MockRepository)
		wantErr   error
	}{
		{
			name: "valid budget",
			input: CreateRecordInput{
				Kind: KindBudget, OwnerID: "dept-1", Type: "opex", Category: "travel",
				FiscalYear: 2026, Currency: "inr", Allocated: dec("1000"), Spent: dec("0"),
			},
			setupMock: func(m *MockRepository) {
				m.On("CreateRecord", ctx, mock.MatchedBy(func(r *Record) bool {
					return r.Currency == "INR" && r.Status == "active"
				})).Return(nil)
			},
		},
		{
			name: "unknown kind",
			input: CreateRecordInput{
				Kind: "forecast", OwnerID: "dept-1", FiscalYear: 2026, Currency: "INR",
				Allocated: dec("1"), Spent: dec("0"),
			},
			setupMock: func(m *MockRepository) {},
			wantErr:   ErrInvalidKind,
		},
		{
			name: "negative allocation",
			input: CreateRecordInput{
				Kind: KindSale, OwnerID: "rep-7", FiscalYear: 2026, Currency: "INR",
				Allocated: dec("-5"), Spent: dec("0"),
			},
			setupMock: func(m *MockRepository) {},
			wantErr:   ErrInvalidRecord,
		},
		{
			name: "too many decimals",
			input: CreateRecordInput{
				Kind: KindSale, OwnerID: "rep-7", FiscalYear: 2026, Currency: "INR",
				Allocated: dec("10"), Spent: dec("0.001"),
			},
			setupMock: func(m *MockRepository) {},
			wantErr:   ErrInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			tt.setupMock(repo)
			svc := newTestService(t, repo)

			record, err := svc.CreateRecord(ctx, tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
				repo.AssertNotCalled(t, "CreateRecord", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, record.ID)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_UpdateSpent(t *testing.T) {
	ctx := context.Background()
	existing := &Record{
		ID: uuid.New(), Kind: KindBudget, OwnerID: "dept-1", FiscalYear: 2026,
		Currency: "INR", Allocated: dec("1000"), Spent: dec("100"), Status: "active",
	}

	repo := new(MockRepository)
	repo.On("GetRecord", ctx, existing.ID).Return(existing, nil)
	repo.On("UpdateRecord", ctx, mock.MatchedBy(func(r *Record) bool {
		return r.Spent.Equal(dec("1200"))
	})).Return(nil)

	svc := newTestService(t, repo)
	updated, err := svc.UpdateSpent(ctx, existing.ID, dec("1200"))
	require.NoError(t, err)
	assert.True(t, dec("120").Equal(updated.Utilization()))
	repo.AssertExpectations(t)
}

func TestService_GetRecord_NotFound(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	repo := new(MockRepository)
	repo.On("GetRecord", ctx, id).Return(nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id))

	svc := newTestService(t, repo)
	_, err := svc.GetRecord(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, ledger.KindReference, ledger.KindOf(err))
}

func TestService_Report(t *testing.T) {
	ctx := context.Background()
	rows := []*Record{
		{ID: uuid.New(), Kind: KindBudget, OwnerID: "ops", Type: "opex", Category: "travel", Allocated: dec("1000"), Spent: dec("950"), Status: "active"},
		{ID: uuid.New(), Kind: KindBudget, OwnerID: "eng", Type: "capex", Category: "hardware", Allocated: dec("5000"), Spent: dec("3900"), Status: "active"},
		{ID: uuid.New(), Kind: KindBudget, OwnerID: "eng", Type: "opex", Category: "software", Allocated: dec("2000"), Spent: dec("200"), Status: "closed"},
		{ID: uuid.New(), Kind: KindBudget, OwnerID: "mkt", Type: "opex", Category: "events", Allocated: dec("0"), Spent: dec("500"), Status: "active"},
	}
	filters := Filters{Kind: KindBudget, FiscalYear: 2026, Currency: "INR"}

	repo := new(MockRepository)
	repo.On("ListRecords", ctx, filters).Return(rows, nil)

	svc := newTestService(t, repo)
	report, err := svc.Report(ctx, Query{Dimension: DimensionOwner, FiscalYear: 2026, Currency: "INR", Kind: KindBudget})
	require.NoError(t, err)

	require.Len(t, report.Aggregates, 3)
	assert.Equal(t, "eng", report.Aggregates[0].Key)
	assert.True(t, dec("7000").Equal(report.Aggregates[0].Allocated))
	assert.True(t, dec("4100").Equal(report.Aggregates[0].Spent))
	assert.True(t, dec("58.57").Equal(report.Aggregates[0].Utilization))

	// ops at 95% is critical, eng capex at 78% a warning, mkt has nothing allocated
	require.Len(t, report.Alerts, 2)
	assert.Equal(t, SeverityCritical, report.Alerts[0].Severity)
	assert.Equal(t, "ops", report.Alerts[0].OwnerID)
	assert.Equal(t, SeverityWarning, report.Alerts[1].Severity)

	require.Len(t, report.TopAllocated, 2)
	assert.Equal(t, rows[1].ID, report.TopAllocated[0].ID)
	assert.Equal(t, rows[2].ID, report.TopAllocated[1].ID)

	require.Len(t, report.TopSpent, 2)
	assert.Equal(t, rows[1].ID, report.TopSpent[0].ID)
	assert.Equal(t, rows[0].ID, report.TopSpent[1].ID)

	assert.Equal(t, 4, report.Totals.Count)
	assert.True(t, dec("8000").Equal(report.Totals.Allocated))
	assert.True(t, dec("5550").Equal(report.Totals.Spent))
	assert.True(t, dec("69.38").Equal(report.Totals.Utilization))

	again, err := svc.Report(ctx, Query{Dimension: DimensionOwner, FiscalYear: 2026, Currency: "INR", Kind: KindBudget})
	require.NoError(t, err)
	assert.Equal(t, report, again)
}

func TestService_Report_InvalidDimension(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(t, repo)

	_, err := svc.Report(context.Background(), Query{Dimension: "region"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDimension)
	repo.AssertNotCalled(t, "ListRecords", mock.Anything, mock.Anything)
}

func TestService_Report_DefaultsToTypeDimension(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	repo.On("ListRecords", ctx, Filters{}).Return([]*Record{}, nil)

	svc := newTestService(t, repo)
	report, err := svc.Report(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, DimensionType, report.Query.Dimension)
	assert.Equal(t, 2, report.Query.TopN)
	assert.Empty(t, report.Aggregates)
	assert.True(t, report.Totals.Utilization.Equal(decimal.Zero))
}

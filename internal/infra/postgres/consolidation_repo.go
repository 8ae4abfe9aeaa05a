package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerworks/ledgercore/internal/consolidation"
)

// ConsolidationRepository implements consolidation.Repository using PostgreSQL
type ConsolidationRepository struct {
	pool *pgxpool.Pool
}

var _ consolidation.Repository = (*ConsolidationRepository)(nil)

// NewConsolidationRepository creates a new PostgreSQL consolidation repository
func NewConsolidationRepository(pool *pgxpool.Pool) *ConsolidationRepository {
	return &ConsolidationRepository{pool: pool}
}

const recordColumns = `id, kind, owner_id, owner_name, type, category, fiscal_year, currency,
	allocated::text, spent::text, status, created_at, updated_at`

func (r *ConsolidationRepository) CreateRecord(ctx context.Context, record *consolidation.Record) error {
	query := `
		INSERT INTO consolidation_records (id, kind, owner_id, owner_name, type, category, fiscal_year,
			currency, allocated, spent, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := queryer(ctx, r.pool).Exec(ctx, query,
		record.ID,
		string(record.Kind),
		record.OwnerID,
		record.OwnerName,
		record.Type,
		record.Category,
		record.FiscalYear,
		record.Currency,
		record.Allocated.String(),
		record.Spent.String(),
		record.Status,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (r *ConsolidationRepository) GetRecord(ctx context.Context, id uuid.UUID) (*consolidation.Record, error) {
	row := queryer(ctx, r.pool).QueryRow(ctx,
		`SELECT `+recordColumns+` FROM consolidation_records WHERE id = $1`, id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", consolidation.ErrRecordNotFound, id)
		}
		return nil, err
	}
	return record, nil
}

func (r *ConsolidationRepository) UpdateRecord(ctx context.Context, record *consolidation.Record) error {
	query := `
		UPDATE consolidation_records
		SET owner_name = $2, type = $3, category = $4, allocated = $5, spent = $6, status = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := queryer(ctx, r.pool).Exec(ctx, query,
		record.ID,
		record.OwnerName,
		record.Type,
		record.Category,
		record.Allocated.String(),
		record.Spent.String(),
		record.Status,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", consolidation.ErrRecordNotFound, record.ID)
	}
	return nil
}

// ListRecords returns matching records in creation order
func (r *ConsolidationRepository) ListRecords(ctx context.Context, filters consolidation.Filters) ([]*consolidation.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consolidation_records WHERE 1=1`

	args := make([]interface{}, 0, 4)
	argPos := 1

	if filters.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argPos)
		args = append(args, string(filters.Kind))
		argPos++
	}

	if filters.FiscalYear != 0 {
		query += fmt.Sprintf(" AND fiscal_year = $%d", argPos)
		args = append(args, filters.FiscalYear)
		argPos++
	}

	if filters.Currency != "" {
		query += fmt.Sprintf(" AND currency = $%d", argPos)
		args = append(args, strings.ToUpper(filters.Currency))
		argPos++
	}

	if filters.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argPos)
		args = append(args, filters.OwnerID)
	}

	query += " ORDER BY created_at, id"

	rows, err := queryer(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]*consolidation.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*consolidation.Record, error) {
	var (
		record                 consolidation.Record
		kind                   string
		allocatedStr, spentStr string
	)

	err := row.Scan(
		&record.ID,
		&kind,
		&record.OwnerID,
		&record.OwnerName,
		&record.Type,
		&record.Category,
		&record.FiscalYear,
		&record.Currency,
		&allocatedStr,
		&spentStr,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	record.Kind = consolidation.Kind(kind)

	if record.Allocated, err = parseAmount("allocated", allocatedStr); err != nil {
		return nil, err
	}
	if record.Spent, err = parseAmount("spent", spentStr); err != nil {
		return nil, err
	}
	return &record, nil
}

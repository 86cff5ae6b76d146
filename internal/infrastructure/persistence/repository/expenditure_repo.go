package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/infrastructure/persistence/sqlite"
)

// ExpenditureRepository implements port.ExpenditureRepository
type ExpenditureRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenditureRepository creates a new expenditure record repository
func NewExpenditureRepository(db *sql.DB, logger *zap.Logger) port.ExpenditureRepository {
	return &ExpenditureRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts one expenditure record. Called inside the payment
// transaction so a failure here rolls the payment back.
func (r *ExpenditureRepository) Create(ctx context.Context, rec *port.ExpenditureRecord) error {
	query := `
		INSERT INTO expenditure_records (
			document_type, document_id, department, amount_cents, fiscal_year
		) VALUES (?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		rec.DocumentType,
		rec.DocumentID,
		rec.Department,
		rec.AmountCents,
		rec.FiscalYear,
	)
	if err != nil {
		r.logger.Error("Failed to create expenditure record",
			zap.Int64("document_id", rec.DocumentID), zap.Error(err))
		return fmt.Errorf("failed to create expenditure record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListByDepartment retrieves a department's expenditures for a fiscal year
func (r *ExpenditureRepository) ListByDepartment(ctx context.Context, department string, year int) ([]*port.ExpenditureRecord, error) {
	query := `
		SELECT id, document_type, document_id, department, amount_cents,
			fiscal_year, created_at
		FROM expenditure_records
		WHERE department = ? AND fiscal_year = ?
		ORDER BY created_at DESC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, department, year)
	if err != nil {
		r.logger.Error("Failed to list expenditure records",
			zap.String("department", department), zap.Int("year", year), zap.Error(err))
		return nil, fmt.Errorf("failed to list expenditure records: %w", err)
	}
	defer rows.Close()

	var records []*port.ExpenditureRecord
	for rows.Next() {
		var rec port.ExpenditureRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.DocumentType,
			&rec.DocumentID,
			&rec.Department,
			&rec.AmountCents,
			&rec.FiscalYear,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expenditure record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Verify interface compliance
var _ port.ExpenditureRepository = (*ExpenditureRepository)(nil)

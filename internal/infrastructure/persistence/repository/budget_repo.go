package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/infrastructure/persistence/sqlite"
)

// BudgetRepository implements port.BudgetProvider backed by the
// department_budgets table. Remaining budget is the configured ceiling
// minus the expenditure records already written for the year.
type BudgetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBudgetRepository creates a new budget provider
func NewBudgetRepository(db *sql.DB, logger *zap.Logger) port.BudgetProvider {
	return &BudgetRepository{
		db:     db,
		logger: logger,
	}
}

// GetDepartmentBudgetSummary resolves the purchaser's department and its
// budget position. A nil summary means the department has no tracked
// budget and the ceiling check does not apply.
func (r *BudgetRepository) GetDepartmentBudgetSummary(ctx context.Context, purchaserID string, year int) (*port.BudgetSummary, error) {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	var department string
	err := exec.QueryRowContext(ctx,
		`SELECT department FROM users WHERE id = ?`, purchaserID).Scan(&department)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve purchaser department",
			zap.String("purchaser_id", purchaserID), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve purchaser department: %w", err)
	}

	var budgetCents int64
	err = exec.QueryRowContext(ctx,
		`SELECT budget_cents FROM department_budgets WHERE department = ? AND fiscal_year = ?`,
		department, year).Scan(&budgetCents)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get department budget",
			zap.String("department", department), zap.Int("year", year), zap.Error(err))
		return nil, fmt.Errorf("failed to get department budget: %w", err)
	}

	var spentCents int64
	err = exec.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenditure_records WHERE department = ? AND fiscal_year = ?`,
		department, year).Scan(&spentCents)
	if err != nil {
		r.logger.Error("Failed to sum department expenditures",
			zap.String("department", department), zap.Int("year", year), zap.Error(err))
		return nil, fmt.Errorf("failed to sum department expenditures: %w", err)
	}

	return &port.BudgetSummary{
		BudgetCents:    budgetCents,
		RemainingCents: budgetCents - spentCents,
	}, nil
}

// Verify interface compliance
var _ port.BudgetProvider = (*BudgetRepository)(nil)

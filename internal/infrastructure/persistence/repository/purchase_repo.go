package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/infrastructure/persistence/sqlite"
)

// PurchaseRepository implements port.PurchaseRepository
type PurchaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseRepository creates a new purchase order repository
func NewPurchaseRepository(db *sql.DB, logger *zap.Logger) port.PurchaseRepository {
	return &PurchaseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new purchase order
func (r *PurchaseRepository) Create(ctx context.Context, po *document.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (
			title, creator_id, department, status, reimbursement_stage,
			pending_approver_id, current_node_id, total_cents, paid_cents,
			invoice_images, payment_issue_open, purchase_date, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	images, err := json.Marshal(po.InvoiceImages)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice images: %w", err)
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		po.Title,
		po.CreatorID,
		po.Department,
		po.Status,
		po.ReimbursementStage,
		po.PendingApproverID,
		po.CurrentNodeID,
		po.TotalCents,
		po.PaidCents,
		string(images),
		po.PaymentIssueOpen,
		po.PurchaseDate,
		po.Reason,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order", zap.Error(err))
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	po.ID = id
	return nil
}

const purchaseColumns = `
	id, title, creator_id, department, status, reimbursement_stage,
	pending_approver_id, current_node_id, total_cents, paid_cents,
	invoice_images, payment_issue_open, purchase_date, reason,
	created_at, updated_at
`

// GetByID retrieves a purchase order by ID, nil when absent
func (r *PurchaseRepository) GetByID(ctx context.Context, id int64) (*document.PurchaseOrder, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchase_orders WHERE id = ?`

	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id)
	po, err := scanPurchase(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}
	return po, nil
}

// List retrieves purchase orders, newest first
func (r *PurchaseRepository) List(ctx context.Context, limit, offset int) ([]*document.PurchaseOrder, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchase_orders ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list purchase orders", zap.Error(err))
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []*document.PurchaseOrder
	for rows.Next() {
		po, err := scanPurchase(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// ApplyTransition writes the patch guarded by the loaded row state. The
// predicate covers paid_cents and payment_issue_open as well as status,
// because pay-class actions do not change the status and a status-only
// check would let a racing partial payment be overwritten. Zero affected
// rows means a concurrent action won; the caller decides how to surface
// that.
func (r *PurchaseRepository) ApplyTransition(ctx context.Context, current *document.PurchaseOrder, patch port.PurchasePatch) (bool, error) {
	query := `
		UPDATE purchase_orders
		SET status = ?, reimbursement_stage = ?, pending_approver_id = ?,
			current_node_id = ?, paid_cents = ?, payment_issue_open = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ? AND paid_cents = ? AND payment_issue_open = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		patch.Status,
		patch.ReimbursementStage,
		patch.PendingApproverID,
		patch.CurrentNodeID,
		patch.PaidCents,
		patch.PaymentIssueOpen,
		current.ID,
		current.Status,
		current.PaidCents,
		current.PaymentIssueOpen,
	)
	if err != nil {
		r.logger.Error("Failed to apply purchase transition", zap.Int64("id", current.ID), zap.Error(err))
		return false, fmt.Errorf("failed to apply transition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateInvoiceImages replaces the attached invoice evidence
func (r *PurchaseRepository) UpdateInvoiceImages(ctx context.Context, id int64, images []string) error {
	data, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice images: %w", err)
	}

	query := `UPDATE purchase_orders SET invoice_images = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, string(data), id)
	if err != nil {
		r.logger.Error("Failed to update invoice images", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update invoice images: %w", err)
	}
	return nil
}

// scanPurchase reads one purchase order row via the given Scan function.
func scanPurchase(scan func(dest ...interface{}) error) (*document.PurchaseOrder, error) {
	var po document.PurchaseOrder
	var pendingApprover sql.NullString
	var images string

	err := scan(
		&po.ID,
		&po.Title,
		&po.CreatorID,
		&po.Department,
		&po.Status,
		&po.ReimbursementStage,
		&pendingApprover,
		&po.CurrentNodeID,
		&po.TotalCents,
		&po.PaidCents,
		&images,
		&po.PaymentIssueOpen,
		&po.PurchaseDate,
		&po.Reason,
		&po.CreatedAt,
		&po.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if pendingApprover.Valid {
		po.PendingApproverID = &pendingApprover.String
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &po.InvoiceImages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal invoice images: %w", err)
		}
	}
	return &po, nil
}

// Verify interface compliance
var _ port.PurchaseRepository = (*PurchaseRepository)(nil)

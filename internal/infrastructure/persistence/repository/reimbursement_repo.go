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

// ReimbursementRepository implements port.ReimbursementRepository
type ReimbursementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReimbursementRepository creates a new reimbursement repository
func NewReimbursementRepository(db *sql.DB, logger *zap.Logger) port.ReimbursementRepository {
	return &ReimbursementRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new reimbursement claim
func (r *ReimbursementRepository) Create(ctx context.Context, claim *document.Reimbursement) error {
	query := `
		INSERT INTO reimbursements (
			title, creator_id, department, status, pending_approver_id,
			current_node_id, total_cents, paid_cents, invoice_images,
			purchase_order_id, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	images, err := json.Marshal(claim.InvoiceImages)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice images: %w", err)
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		claim.Title,
		claim.CreatorID,
		claim.Department,
		claim.Status,
		claim.PendingApproverID,
		claim.CurrentNodeID,
		claim.TotalCents,
		claim.PaidCents,
		string(images),
		claim.PurchaseOrderID,
		claim.Reason,
	)
	if err != nil {
		r.logger.Error("Failed to create reimbursement", zap.Error(err))
		return fmt.Errorf("failed to create reimbursement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	claim.ID = id
	return nil
}

const reimbursementColumns = `
	id, title, creator_id, department, status, pending_approver_id,
	current_node_id, total_cents, paid_cents, invoice_images,
	purchase_order_id, reason, created_at, updated_at
`

// GetByID retrieves a reimbursement by ID, nil when absent
func (r *ReimbursementRepository) GetByID(ctx context.Context, id int64) (*document.Reimbursement, error) {
	query := `SELECT ` + reimbursementColumns + ` FROM reimbursements WHERE id = ?`

	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id)
	claim, err := scanReimbursement(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get reimbursement", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get reimbursement: %w", err)
	}
	return claim, nil
}

// List retrieves reimbursements, newest first
func (r *ReimbursementRepository) List(ctx context.Context, limit, offset int) ([]*document.Reimbursement, error) {
	query := `SELECT ` + reimbursementColumns + ` FROM reimbursements ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list reimbursements", zap.Error(err))
		return nil, fmt.Errorf("failed to list reimbursements: %w", err)
	}
	defer rows.Close()

	var claims []*document.Reimbursement
	for rows.Next() {
		claim, err := scanReimbursement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reimbursement: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// ApplyTransition writes the patch guarded by the loaded row state. The
// paid_cents predicate makes concurrent partial payments conflict instead
// of overwriting each other; status alone would not catch them.
func (r *ReimbursementRepository) ApplyTransition(ctx context.Context, current *document.Reimbursement, patch port.ReimbursementPatch) (bool, error) {
	query := `
		UPDATE reimbursements
		SET status = ?, pending_approver_id = ?, current_node_id = ?,
			paid_cents = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ? AND paid_cents = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		patch.Status,
		patch.PendingApproverID,
		patch.CurrentNodeID,
		patch.PaidCents,
		current.ID,
		current.Status,
		current.PaidCents,
	)
	if err != nil {
		r.logger.Error("Failed to apply reimbursement transition", zap.Int64("id", current.ID), zap.Error(err))
		return false, fmt.Errorf("failed to apply transition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateInvoiceImages replaces the attached invoice evidence
func (r *ReimbursementRepository) UpdateInvoiceImages(ctx context.Context, id int64, images []string) error {
	data, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice images: %w", err)
	}

	query := `UPDATE reimbursements SET invoice_images = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, string(data), id)
	if err != nil {
		r.logger.Error("Failed to update invoice images", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update invoice images: %w", err)
	}
	return nil
}

func scanReimbursement(scan func(dest ...interface{}) error) (*document.Reimbursement, error) {
	var claim document.Reimbursement
	var pendingApprover sql.NullString
	var purchaseOrderID sql.NullInt64
	var images string

	err := scan(
		&claim.ID,
		&claim.Title,
		&claim.CreatorID,
		&claim.Department,
		&claim.Status,
		&pendingApprover,
		&claim.CurrentNodeID,
		&claim.TotalCents,
		&claim.PaidCents,
		&images,
		&purchaseOrderID,
		&claim.Reason,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if pendingApprover.Valid {
		claim.PendingApproverID = &pendingApprover.String
	}
	if purchaseOrderID.Valid {
		claim.PurchaseOrderID = &purchaseOrderID.Int64
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &claim.InvoiceImages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal invoice images: %w", err)
		}
	}
	return &claim, nil
}

// Verify interface compliance
var _ port.ReimbursementRepository = (*ReimbursementRepository)(nil)

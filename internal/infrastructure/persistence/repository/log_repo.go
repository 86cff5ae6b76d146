package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/infrastructure/persistence/sqlite"
)

// WorkflowLogRepository implements port.WorkflowLogRepository
type WorkflowLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowLogRepository creates a new workflow log repository
func NewWorkflowLogRepository(db *sql.DB, logger *zap.Logger) port.WorkflowLogRepository {
	return &WorkflowLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one audit entry. There is no update or delete path.
func (r *WorkflowLogRepository) Append(ctx context.Context, entry *document.WorkflowLog) error {
	query := `
		INSERT INTO workflow_logs (
			document_type, document_id, operator_id, action,
			from_status, to_status, comment
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.DocumentType,
		entry.DocumentID,
		entry.OperatorID,
		entry.Action,
		entry.FromStatus,
		entry.ToStatus,
		entry.Comment,
	)
	if err != nil {
		r.logger.Error("Failed to append workflow log", zap.Error(err))
		return fmt.Errorf("failed to append workflow log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByDocument retrieves the audit trail of one document, oldest first
func (r *WorkflowLogRepository) ListByDocument(ctx context.Context, docType document.Type, docID int64) ([]*document.WorkflowLog, error) {
	query := `
		SELECT id, document_type, document_id, operator_id, action,
			from_status, to_status, comment, created_at
		FROM workflow_logs
		WHERE document_type = ? AND document_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, docType, docID)
	if err != nil {
		r.logger.Error("Failed to list workflow logs",
			zap.String("document_type", string(docType)), zap.Int64("document_id", docID), zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow logs: %w", err)
	}
	defer rows.Close()

	var entries []*document.WorkflowLog
	for rows.Next() {
		var entry document.WorkflowLog
		if err := rows.Scan(
			&entry.ID,
			&entry.DocumentType,
			&entry.DocumentID,
			&entry.OperatorID,
			&entry.Action,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Comment,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow log: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Verify interface compliance
var _ port.WorkflowLogRepository = (*WorkflowLogRepository)(nil)

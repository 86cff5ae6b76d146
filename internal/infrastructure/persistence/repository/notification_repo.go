package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new in-app notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts a batch of notification rows
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []*port.InAppNotification) error {
	if len(notifications) == 0 {
		return nil
	}

	query := `
		INSERT INTO notifications (
			recipient_id, event_type, document_type, document_id, content, is_read
		) VALUES (?, ?, ?, ?, ?, 0)
	`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	for _, n := range notifications {
		result, err := exec.ExecContext(ctx, query,
			n.RecipientID,
			n.EventType,
			n.DocumentType,
			n.DocumentID,
			n.Content,
		)
		if err != nil {
			r.logger.Error("Failed to create notification",
				zap.String("recipient_id", n.RecipientID), zap.Error(err))
			return fmt.Errorf("failed to create notification: %w", err)
		}
		if id, err := result.LastInsertId(); err == nil {
			n.ID = id
		}
	}
	return nil
}

// ListByRecipient retrieves a recipient's notifications, newest first
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*port.InAppNotification, error) {
	query := `
		SELECT id, recipient_id, event_type, document_type, document_id,
			content, is_read, created_at
		FROM notifications
		WHERE recipient_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, recipientID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list notifications",
			zap.String("recipient_id", recipientID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*port.InAppNotification
	for rows.Next() {
		var n port.InAppNotification
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.EventType,
			&n.DocumentType,
			&n.DocumentID,
			&n.Content,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkRead marks one notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	query := `UPDATE notifications SET is_read = 1 WHERE id = ?`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/infrastructure/persistence/sqlite"
)

// DirectoryRepository implements port.UserDirectory backed by the users
// and user_roles tables.
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new user directory
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) port.UserDirectory {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// UserIDsByRole retrieves the members of a role
func (r *DirectoryRepository) UserIDsByRole(ctx context.Context, role string) ([]string, error) {
	query := `SELECT user_id FROM user_roles WHERE role = ? ORDER BY user_id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, role)
	if err != nil {
		r.logger.Error("Failed to list role members", zap.String("role", role), zap.Error(err))
		return nil, fmt.Errorf("failed to list role members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RolesByUserID retrieves the roles a user holds
func (r *DirectoryRepository) RolesByUserID(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list user roles", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ContactsByUserIDs retrieves delivery endpoints for the given users.
// Unknown ids are silently skipped.
func (r *DirectoryRepository) ContactsByUserIDs(ctx context.Context, userIDs []string) ([]port.Contact, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(userIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(
		`SELECT id, email, phone FROM users WHERE id IN (%s)`, placeholders)

	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get contacts", zap.Error(err))
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}
	defer rows.Close()

	var contacts []port.Contact
	for rows.Next() {
		var c port.Contact
		var email, phone sql.NullString
		if err := rows.Scan(&c.UserID, &email, &phone); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		c.Email = email.String
		c.Phone = phone.String
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Verify interface compliance
var _ port.UserDirectory = (*DirectoryRepository)(nil)

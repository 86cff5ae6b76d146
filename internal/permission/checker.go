// Package permission implements the role-based permission checker. Grants
// come from configuration: each role maps to a list of permission keys,
// with "purchase.*" style prefixes and a bare "*" wildcard.
package permission

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
)

// DefaultRole applies to every authenticated user regardless of the roles
// they hold in the directory.
const DefaultRole = "default"

// Checker implements port.PermissionChecker from a static role grant table
// plus the user directory's role membership.
type Checker struct {
	grants    map[string][]string
	directory port.UserDirectory
	logger    *zap.Logger
}

// NewChecker creates a permission checker. grants maps role name to the
// permission keys it allows.
func NewChecker(grants map[string][]string, directory port.UserDirectory, logger *zap.Logger) *Checker {
	return &Checker{
		grants:    grants,
		directory: directory,
		logger:    logger,
	}
}

// CheckPermission reports whether the actor holds a role granting the key.
func (c *Checker) CheckPermission(ctx context.Context, actorID, permissionKey string) (bool, error) {
	if granted(c.grants[DefaultRole], permissionKey) {
		return true, nil
	}

	roles, err := c.directory.RolesByUserID(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("resolve roles for %s: %w", actorID, err)
	}

	for _, role := range roles {
		if granted(c.grants[role], permissionKey) {
			return true, nil
		}
	}

	c.logger.Debug("Permission denied",
		zap.String("actor_id", actorID),
		zap.String("permission", permissionKey),
		zap.Strings("roles", roles))
	return false, nil
}

// granted matches a permission key against a grant list. "*" grants
// everything; "purchase.*" grants every key under the purchase prefix.
func granted(grants []string, key string) bool {
	for _, g := range grants {
		if g == "*" || g == key {
			return true
		}
		if strings.HasSuffix(g, ".*") && strings.HasPrefix(key, strings.TrimSuffix(g, "*")) {
			return true
		}
	}
	return false
}

// Verify interface compliance
var _ port.PermissionChecker = (*Checker)(nil)

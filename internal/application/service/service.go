// Package service contains the action handlers that drive document
// lifecycles: guard evaluation, permission checks, workflow traversal,
// the authoritative transactional write, and post-commit side-channel
// dispatch.
package service

import (
	"context"
	"errors"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/domain/flow"
	"github.com/oasuite/procureflow/internal/domain/fsm"
)

// Logger interface for minimal logging dependency.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ActionRequest is the wire contract of an action against a document. The
// document id arrives separately from the route.
type ActionRequest struct {
	Action       document.Action `json:"action"`
	Reason       string          `json:"reason,omitempty"`
	AmountCents  int64           `json:"amount,omitempty"`
	Note         string          `json:"note,omitempty"`
	Comment      string          `json:"comment,omitempty"`
	ToApproverID string          `json:"toApproverId,omitempty"`
}

// PermBudgetOverride lets administrators and finance submit purchases past
// the department ceiling.
const PermBudgetOverride = "finance.budget_override"

// permissionKey derives the permission consulted for an action, e.g.
// "purchase.approve".
func permissionKey(docType document.Type, action document.Action) string {
	return string(docType) + "." + string(action)
}

// guardError normalizes a state machine refusal into the coded guard error
// for the action: an unconfigured trigger means the action is not allowed
// from the current status, while a failed guard already carries its code.
func guardError(action document.Action, err error) error {
	if errors.Is(err, fsm.ErrInvalidTransition) {
		return document.NotAllowed(action)
	}
	return err
}

// resolveApprover picks the pending approver for an approval node. USER
// mode takes the first configured user; ROLE mode asks the directory for
// the role's members. A node that resolves to nobody leaves the document
// waiting without a pending approver.
func resolveApprover(ctx context.Context, directory port.UserDirectory, node *flow.ApprovalNode) *string {
	switch node.Mode {
	case flow.ApproverModeUser:
		if len(node.UserIDs) > 0 {
			id := node.UserIDs[0]
			return &id
		}
	case flow.ApproverModeRole:
		for _, role := range node.Roles {
			ids, err := directory.UserIDsByRole(ctx, role)
			if err == nil && len(ids) > 0 {
				return &ids[0]
			}
		}
	}
	return nil
}

// sideChannelPayload flattens a passed CC/NOTIFY node into an event payload.
func sideChannelPayload(n flow.Node, creatorID, title string) map[string]interface{} {
	payload := map[string]interface{}{
		"node_id":    n.ID(),
		"node_type":  string(n.Type()),
		"creator_id": creatorID,
		"title":      title,
	}
	switch t := n.(type) {
	case *flow.CCNode:
		payload["user_ids"] = t.UserIDs
		payload["roles"] = t.Roles
		payload["send_email"] = t.SendEmail
		payload["email_template"] = t.EmailTemplate
	case *flow.NotifyNode:
		payload["user_ids"] = t.UserIDs
		payload["roles"] = t.Roles
		payload["send_email"] = t.SendEmail
		payload["email_template"] = t.EmailTemplate
	}
	return payload
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oasuite/procureflow/internal/application/dispatcher"
	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/event"
	"github.com/oasuite/procureflow/internal/domain/flow"
)

// Notifier turns dispatched workflow events into deliveries: in-app
// notification rows, email for nodes that ask for it, and an SMS ping to
// the finance channel when a document is fully paid. Delivery is best
// effort; a failed channel is logged and never affects the document.
type Notifier struct {
	notifications port.NotificationRepository
	directory     port.UserDirectory
	email         port.EmailSender
	sms           port.SMSSender
	smsChannel    string
	logger        Logger
}

// NewNotifier creates the event-driven notification fan-out. email and sms
// may be nil when the channel is not configured.
func NewNotifier(
	notifications port.NotificationRepository,
	directory port.UserDirectory,
	email port.EmailSender,
	sms port.SMSSender,
	smsChannel string,
	logger Logger,
) *Notifier {
	return &Notifier{
		notifications: notifications,
		directory:     directory,
		email:         email,
		sms:           sms,
		smsChannel:    smsChannel,
		logger:        logger,
	}
}

// Register subscribes the notifier's handlers on the dispatcher.
func (n *Notifier) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeSideChannelReached, "notifier.side_channel", n.handleSideChannel)
	d.Subscribe(event.TypeDocumentSubmitted, "notifier.status", n.handleStatusChange)
	d.Subscribe(event.TypeDocumentApproved, "notifier.status", n.handleStatusChange)
	d.Subscribe(event.TypeDocumentRejected, "notifier.status", n.handleStatusChange)
	d.Subscribe(event.TypeDocumentPaid, "notifier.status", n.handleStatusChange)
	d.Subscribe(event.TypeDocumentPaid, "notifier.paid_sms", n.handlePaidSMS)
}

// handleSideChannel delivers a CC or NOTIFY node that traversal passed
// through: in-app rows for every resolved recipient, plus email when the
// node requests it.
func (n *Notifier) handleSideChannel(ctx context.Context, evt *event.Event) error {
	creatorID := evt.GetPayloadString("creator_id")
	title := evt.GetPayloadString("title")
	nodeType := evt.GetPayloadString("node_type")

	recipients := n.resolveRecipients(ctx, evt, creatorID)
	if len(recipients) == 0 {
		return nil
	}

	content := fmt.Sprintf("%s: %s", nodeType, title)
	rows := make([]*port.InAppNotification, 0, len(recipients))
	for _, id := range recipients {
		rows = append(rows, &port.InAppNotification{
			RecipientID:  id,
			EventType:    string(evt.Type),
			DocumentType: evt.DocumentType,
			DocumentID:   evt.DocumentID,
			Content:      content,
			CreatedAt:    time.Now(),
		})
	}
	if err := n.notifications.CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("create in-app notifications: %w", err)
	}

	if evt.GetPayloadBool("send_email") && n.email != nil {
		n.sendEmails(ctx, evt, recipients, title)
	}
	return nil
}

// handleStatusChange writes an in-app row for the document creator so the
// applicant always sees their document move.
func (n *Notifier) handleStatusChange(ctx context.Context, evt *event.Event) error {
	creatorID := evt.GetPayloadString("creator_id")
	if creatorID == "" {
		return nil
	}
	title := evt.GetPayloadString("title")
	newStatus := evt.GetPayloadString("new_status")
	row := &port.InAppNotification{
		RecipientID:  creatorID,
		EventType:    string(evt.Type),
		DocumentType: evt.DocumentType,
		DocumentID:   evt.DocumentID,
		Content:      fmt.Sprintf("%s is now %s", title, newStatus),
		CreatedAt:    time.Now(),
	}
	return n.notifications.CreateBatch(ctx, []*port.InAppNotification{row})
}

// handlePaidSMS pings the finance channel when a document is fully paid.
func (n *Notifier) handlePaidSMS(ctx context.Context, evt *event.Event) error {
	if n.sms == nil || n.smsChannel == "" {
		return nil
	}
	title := evt.GetPayloadString("title")
	content := fmt.Sprintf("Payment of %.2f recorded for %s #%d (%s)",
		float64(evt.GetPayloadInt("amount_cents"))/100, evt.DocumentType, evt.DocumentID, title)
	if !n.sms.SendSMSTextMessage(ctx, content, port.SMSTarget{Channel: n.smsChannel}) {
		n.logger.Warn("SMS delivery failed", "document_id", evt.DocumentID, "channel", n.smsChannel)
	}
	return nil
}

// resolveRecipients expands a side-channel node's user ids and roles into
// concrete user ids. The applicant pseudo-role resolves to the document
// creator. Duplicates are collapsed.
func (n *Notifier) resolveRecipients(ctx context.Context, evt *event.Event, creatorID string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	if ids, ok := evt.Payload["user_ids"].([]string); ok {
		for _, id := range ids {
			add(id)
		}
	}
	if roles, ok := evt.Payload["roles"].([]string); ok {
		for _, role := range roles {
			if role == flow.RoleApplicant {
				add(creatorID)
				continue
			}
			ids, err := n.directory.UserIDsByRole(ctx, role)
			if err != nil {
				n.logger.Warn("Role lookup failed", "role", role, "error", err)
				continue
			}
			for _, id := range ids {
				add(id)
			}
		}
	}
	return out
}

func (n *Notifier) sendEmails(ctx context.Context, evt *event.Event, recipients []string, title string) {
	contacts, err := n.directory.ContactsByUserIDs(ctx, recipients)
	if err != nil {
		n.logger.Warn("Contact lookup failed", "error", err)
		return
	}
	subject := fmt.Sprintf("Workflow update: %s", title)
	body := fmt.Sprintf("You have a workflow update on: %s", title)
	if template := evt.GetPayloadString("email_template"); template != "" {
		body = template
	}

	var addresses []string
	for _, c := range contacts {
		if c.Email != "" {
			addresses = append(addresses, c.Email)
		}
	}
	if len(addresses) == 0 {
		return
	}
	if !n.email.SendEmailMessages(ctx, addresses, subject, body) {
		n.logger.Warn("Email delivery failed", "document_id", evt.DocumentID, "recipients", len(addresses))
	}
}

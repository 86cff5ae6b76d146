package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/domain/event"
	"github.com/oasuite/procureflow/internal/domain/flow"
)

type notifierFixture struct {
	notifications *fakeNotificationRepo
	directory     *fakeDirectory
	email         *fakeEmailSender
	sms           *fakeSMSSender
	notifier      *Notifier
}

func newNotifierFixture() *notifierFixture {
	f := &notifierFixture{
		notifications: &fakeNotificationRepo{},
		directory: &fakeDirectory{
			members: map[string][]string{"finance": {"u-eve", "u-frank"}},
			contacts: map[string]port.Contact{
				"u-eve": {UserID: "u-eve", Email: "eve@example.com"},
				"u-cc":  {UserID: "u-cc", Email: "cc@example.com"},
			},
		},
		email: &fakeEmailSender{},
		sms:   &fakeSMSSender{},
	}
	f.notifier = NewNotifier(f.notifications, f.directory, f.email, f.sms, "finance-ops", nopLogger{})
	return f
}

func sideChannelEvent(payload map[string]interface{}) *event.Event {
	base := map[string]interface{}{
		"node_id":    "cc_1",
		"node_type":  "CC",
		"creator_id": "u-alice",
		"title":      "standing desks",
	}
	for k, v := range payload {
		base[k] = v
	}
	return event.NewEvent(event.TypeSideChannelReached, document.TypePurchase, 1, base)
}

func TestNotifierSideChannelFanOut(t *testing.T) {
	f := newNotifierFixture()

	// Users, a directory role, and the applicant pseudo-role all resolve;
	// u-eve appears twice and is delivered once.
	evt := sideChannelEvent(map[string]interface{}{
		"user_ids": []string{"u-cc", "u-eve"},
		"roles":    []string{"finance", flow.RoleApplicant},
	})
	require.NoError(t, f.notifier.handleSideChannel(context.Background(), evt))

	var recipients []string
	for _, row := range f.notifications.rows {
		recipients = append(recipients, row.RecipientID)
	}
	assert.Equal(t, []string{"u-cc", "u-eve", "u-frank", "u-alice"}, recipients)
	assert.Contains(t, f.notifications.rows[0].Content, "standing desks")
	assert.Empty(t, f.email.sent)
}

func TestNotifierSideChannelEmail(t *testing.T) {
	f := newNotifierFixture()

	evt := sideChannelEvent(map[string]interface{}{
		"user_ids":   []string{"u-cc", "u-eve", "u-frank"},
		"send_email": true,
	})
	require.NoError(t, f.notifier.handleSideChannel(context.Background(), evt))

	// Only recipients with a known email address get mail; u-frank has no
	// contact entry.
	require.Len(t, f.email.sent, 1)
	assert.ElementsMatch(t, []string{"cc@example.com", "eve@example.com"}, f.email.sent[0].to)
	assert.Contains(t, f.email.sent[0].text, "standing desks")
}

func TestNotifierSideChannelEmailTemplate(t *testing.T) {
	f := newNotifierFixture()

	evt := sideChannelEvent(map[string]interface{}{
		"user_ids":       []string{"u-eve"},
		"send_email":     true,
		"email_template": "Please review the attached purchase.",
	})
	require.NoError(t, f.notifier.handleSideChannel(context.Background(), evt))

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "Please review the attached purchase.", f.email.sent[0].text)
}

func TestNotifierSideChannelNoRecipients(t *testing.T) {
	f := newNotifierFixture()

	require.NoError(t, f.notifier.handleSideChannel(context.Background(), sideChannelEvent(nil)))
	assert.Empty(t, f.notifications.rows)
}

func TestNotifierStatusChange(t *testing.T) {
	f := newNotifierFixture()

	evt := event.NewEvent(event.TypeDocumentApproved, document.TypePurchase, 9, map[string]interface{}{
		"creator_id": "u-alice",
		"title":      "standing desks",
		"new_status": "approved",
	})
	require.NoError(t, f.notifier.handleStatusChange(context.Background(), evt))

	require.Len(t, f.notifications.rows, 1)
	row := f.notifications.rows[0]
	assert.Equal(t, "u-alice", row.RecipientID)
	assert.Equal(t, int64(9), row.DocumentID)
	assert.Contains(t, row.Content, "approved")
}

func TestNotifierPaidSMS(t *testing.T) {
	f := newNotifierFixture()

	evt := event.NewEvent(event.TypeDocumentPaid, document.TypeReimbursement, 3, map[string]interface{}{
		"creator_id":   "u-carol",
		"title":        "client dinner",
		"amount_cents": int64(45_000),
	})
	require.NoError(t, f.notifier.handlePaidSMS(context.Background(), evt))

	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "finance-ops", f.sms.sent[0].target.Channel)
	assert.Contains(t, f.sms.sent[0].content, "client dinner")
	assert.Contains(t, f.sms.sent[0].content, "450.00")
}

func TestNotifierDisabledChannels(t *testing.T) {
	f := newNotifierFixture()
	f.notifier = NewNotifier(f.notifications, f.directory, nil, nil, "", nopLogger{})

	evt := sideChannelEvent(map[string]interface{}{
		"user_ids":   []string{"u-eve"},
		"send_email": true,
	})
	require.NoError(t, f.notifier.handleSideChannel(context.Background(), evt))
	require.Len(t, f.notifications.rows, 1)
	assert.Empty(t, f.email.sent)

	paid := event.NewEvent(event.TypeDocumentPaid, document.TypePurchase, 1, map[string]interface{}{"title": "x"})
	require.NoError(t, f.notifier.handlePaidSMS(context.Background(), paid))
	assert.Empty(t, f.sms.sent)
}

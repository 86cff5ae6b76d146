package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/domain/event"
	"github.com/oasuite/procureflow/internal/domain/flow"
)

// purchaseWorkflow is a two-stage approval chain with a CC between the
// stages: START -> manager (u-bob) -> CC finance -> finance role -> END.
func purchaseWorkflow() *flow.Workflow {
	nodes := []flow.Node{
		&flow.StartNode{NodeID: "start"},
		&flow.ApprovalNode{NodeID: "approval_mgr", Mode: flow.ApproverModeUser, UserIDs: []string{"u-bob"}},
		&flow.CCNode{NodeID: "cc_finance", UserIDs: []string{"u-cc"}, SendEmail: true},
		&flow.ApprovalNode{NodeID: "approval_fin", Mode: flow.ApproverModeRole, Roles: []string{"finance"}},
		&flow.EndNode{NodeID: "end"},
	}
	edges := []flow.Edge{
		{Source: "start", Target: "approval_mgr"},
		{Source: "approval_mgr", Target: "cc_finance", Condition: flow.EdgeApproved},
		{Source: "approval_mgr", Target: "end", Condition: flow.EdgeRejected},
		{Source: "cc_finance", Target: "approval_fin"},
		{Source: "approval_fin", Target: "end", Condition: flow.EdgeApproved},
		{Source: "approval_fin", Target: "end", Condition: flow.EdgeRejected},
	}
	return &flow.Workflow{
		Name:         "purchase approval",
		DocumentType: string(document.TypePurchase),
		Published:    true,
		Graph:        flow.NewDefinition(nodes, edges),
	}
}

type purchaseFixture struct {
	repo         *fakePurchaseRepo
	logs         *fakeLogRepo
	flows        *fakeFlowRepo
	budget       *fakeBudget
	expenditures *fakeExpenditureRepo
	perms        *fakePerms
	disp         *recordingDispatcher
	svc          PurchaseService
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()
	f := &purchaseFixture{
		repo:         newFakePurchaseRepo(),
		logs:         &fakeLogRepo{},
		flows:        newFakeFlowRepo(),
		budget:       &fakeBudget{},
		expenditures: &fakeExpenditureRepo{},
		perms:        &fakePerms{},
		disp:         &recordingDispatcher{},
	}
	require.NoError(t, f.flows.Create(context.Background(), purchaseWorkflow()))

	directory := &fakeDirectory{members: map[string][]string{"finance": {"u-eve"}}}
	tx := &fakeTx{repos: []restorable{f.repo, f.logs, f.expenditures}}
	f.svc = NewPurchaseService(f.repo, f.logs, f.flows, f.budget, f.expenditures,
		f.perms, directory, tx, f.disp, nopLogger{})
	return f
}

func (f *purchaseFixture) seed(t *testing.T, mutate func(*document.PurchaseOrder)) *document.PurchaseOrder {
	t.Helper()
	doc := &document.PurchaseOrder{
		Title:              "standing desks",
		CreatorID:          "u-alice",
		Department:         "engineering",
		Status:             document.PurchaseDraft,
		ReimbursementStage: document.StageNone,
		TotalCents:         120_000,
		PurchaseDate:       time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(doc)
	}
	require.NoError(t, f.repo.Create(context.Background(), doc))
	return doc
}

func TestPurchaseApprovalChain(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, nil)
	ctx := context.Background()

	// Creator submits; the document pauses on the manager node.
	updated, err := f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmit})
	require.NoError(t, err)
	assert.Equal(t, document.PurchasePendingApproval, updated.Status)
	assert.Equal(t, "approval_mgr", updated.CurrentNodeID)
	require.NotNil(t, updated.PendingApproverID)
	assert.Equal(t, "u-bob", *updated.PendingApproverID)

	// Manager approves; traversal passes the CC node and pauses on the
	// finance approver resolved from the role directory.
	updated, err = f.svc.Apply(ctx, "u-bob", doc.ID, ActionRequest{Action: document.ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, document.PurchasePendingApproval, updated.Status)
	assert.Equal(t, "approval_fin", updated.CurrentNodeID)
	require.NotNil(t, updated.PendingApproverID)
	assert.Equal(t, "u-eve", *updated.PendingApproverID)

	// Finance approves; the traversal reaches END and the order enters
	// the invoice-pending stage.
	updated, err = f.svc.Apply(ctx, "u-eve", doc.ID, ActionRequest{Action: document.ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, document.PurchaseApproved, updated.Status)
	assert.Equal(t, document.StageInvoicePending, updated.ReimbursementStage)
	assert.Empty(t, updated.CurrentNodeID)
	assert.Nil(t, updated.PendingApproverID)

	// Every accepted action appended an audit entry.
	logs, err := f.svc.Logs(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, document.ActionSubmit, logs[0].Action)
	assert.Equal(t, string(document.PurchaseDraft), logs[0].FromStatus)
	assert.Equal(t, document.ActionApprove, logs[2].Action)
	assert.Equal(t, string(document.PurchaseApproved), logs[2].ToStatus)

	// The CC node passed during the first approval produced a side-channel
	// event correlated with the approval event.
	approvals := f.disp.byType(event.TypeDocumentApproved)
	require.Len(t, approvals, 2)
	sides := f.disp.byType(event.TypeSideChannelReached)
	require.Len(t, sides, 1)
	assert.Equal(t, "cc_finance", sides[0].GetPayloadString("node_id"))
	assert.Equal(t, approvals[0].CorrelationID, sides[0].CorrelationID)
}

func TestPurchaseRejectionAndResubmit(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, nil)
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmit})
	require.NoError(t, err)

	updated, err := f.svc.Apply(ctx, "u-bob", doc.ID, ActionRequest{
		Action: document.ActionReject, Comment: "wrong vendor",
	})
	require.NoError(t, err)
	assert.Equal(t, document.PurchaseRejected, updated.Status)
	assert.Nil(t, updated.PendingApproverID)
	assert.Empty(t, updated.CurrentNodeID)

	// Resubmission restarts the chain from the first approver.
	updated, err = f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmit})
	require.NoError(t, err)
	assert.Equal(t, document.PurchasePendingApproval, updated.Status)
	assert.Equal(t, "approval_mgr", updated.CurrentNodeID)
}

func TestPurchaseActorChecks(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, nil)
	ctx := context.Background()

	// Only the creator may submit.
	_, err := f.svc.Apply(ctx, "u-bob", doc.ID, ActionRequest{Action: document.ActionSubmit})
	require.ErrorIs(t, err, document.ErrNotSubmittable)

	_, err = f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmit})
	require.NoError(t, err)

	// Only the pending approver may approve.
	_, err = f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionApprove})
	require.ErrorIs(t, err, document.ErrNotApprovable)

	// Transfer moves the pause point to a different approver.
	updated, err := f.svc.Apply(ctx, "u-bob", doc.ID, ActionRequest{
		Action: document.ActionTransfer, ToApproverID: "u-dave",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.PendingApproverID)
	assert.Equal(t, "u-dave", *updated.PendingApproverID)

	// The original approver lost the pause point along with the right to act.
	_, err = f.svc.Apply(ctx, "u-bob", doc.ID, ActionRequest{Action: document.ActionApprove})
	require.ErrorIs(t, err, document.ErrNotApprovable)
}

func TestPurchasePermissionDenied(t *testing.T) {
	f := newPurchaseFixture(t)
	f.perms.allow = func(actorID, key string) bool { return key != "purchase.approve" }
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchasePendingApproval
		approver := "u-bob"
		d.PendingApproverID = &approver
		d.CurrentNodeID = "approval_mgr"
	})

	_, err := f.svc.Apply(context.Background(), "u-bob", doc.ID, ActionRequest{Action: document.ActionApprove})
	require.ErrorIs(t, err, document.ErrForbidden)
}

func TestPurchaseBudgetCeiling(t *testing.T) {
	f := newPurchaseFixture(t)
	f.budget.summary = &port.BudgetSummary{BudgetCents: 500_000, RemainingCents: 50_000}
	f.perms.allow = func(actorID, key string) bool { return key != PermBudgetOverride }
	doc := f.seed(t, nil)
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmit})
	require.ErrorIs(t, err, document.ErrBudgetExceeded)

	// Holders of the override permission submit past the ceiling.
	f.perms.allow = func(actorID, key string) bool {
		return key != PermBudgetOverride || actorID == "u-alice"
	}
	updated, err := f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmit})
	require.NoError(t, err)
	assert.Equal(t, document.PurchasePendingApproval, updated.Status)
}

func TestPurchaseConcurrentTransitionLoses(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchasePendingApproval
		approver := "u-bob"
		d.PendingApproverID = &approver
		d.CurrentNodeID = "approval_mgr"
	})

	// Another request wins the row between this handler's load and its
	// write; the conditional update refuses and the action fails like one
	// that was never legal.
	f.repo.beforeApply = func() {
		f.repo.docs[doc.ID].Status = document.PurchaseApproved
	}
	_, err := f.svc.Apply(context.Background(), "u-bob", doc.ID, ActionRequest{Action: document.ActionApprove})
	require.ErrorIs(t, err, document.ErrNotApprovable)
	assert.Empty(t, f.logs.entries)
}

func TestPurchaseConcurrentPartialPaymentLoses(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchaseApproved
		d.ReimbursementStage = document.StageReimbursementPending
	})

	// A 400.00 payment lands between this handler's load and its write.
	// Status is unchanged by a partial payment, so the write guard has to
	// catch the row's paid amount moving; otherwise the absolute paid
	// total computed from the stale load would erase the racing payment.
	f.repo.beforeApply = func() {
		f.repo.docs[doc.ID].PaidCents += 40_000
	}
	_, err := f.svc.Apply(context.Background(), "u-eve", doc.ID, ActionRequest{
		Action: document.ActionPay, AmountCents: 80_000,
	})
	require.ErrorIs(t, err, document.ErrNotPayable)

	stored, err := f.repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40_000), stored.PaidCents)
	assert.Empty(t, f.logs.entries)
}

func TestPurchaseConcurrentIssueBlocksPayment(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchaseApproved
		d.ReimbursementStage = document.StageReimbursementPending
	})

	// An issue opened between load and write conflicts the same way a
	// racing payment does.
	f.repo.beforeApply = func() {
		f.repo.docs[doc.ID].PaymentIssueOpen = true
	}
	_, err := f.svc.Apply(context.Background(), "u-eve", doc.ID, ActionRequest{
		Action: document.ActionPay, AmountCents: 120_000,
	})
	require.ErrorIs(t, err, document.ErrNotPayable)

	stored, err := f.repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaymentIssueOpen)
	assert.Zero(t, stored.PaidCents)
}

func TestPurchasePayments(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchaseApproved
		d.ReimbursementStage = document.StageReimbursementPending
	})
	ctx := context.Background()

	// A partial payment accumulates and keeps the order approved.
	updated, err := f.svc.Apply(ctx, "u-eve", doc.ID, ActionRequest{
		Action: document.ActionPay, AmountCents: 40_000,
	})
	require.NoError(t, err)
	assert.Equal(t, document.PurchaseApproved, updated.Status)
	assert.Equal(t, int64(40_000), updated.PaidCents)
	assert.Empty(t, f.expenditures.records)

	// Paying the exact remainder closes the order and derives the
	// expenditure record in the same transaction.
	updated, err = f.svc.Apply(ctx, "u-eve", doc.ID, ActionRequest{
		Action: document.ActionPay, AmountCents: 80_000,
	})
	require.NoError(t, err)
	assert.Equal(t, document.PurchasePaid, updated.Status)
	assert.Equal(t, document.StagePaid, updated.ReimbursementStage)
	require.Len(t, f.expenditures.records, 1)
	rec := f.expenditures.records[0]
	assert.Equal(t, doc.TotalCents, rec.AmountCents)
	assert.Equal(t, "engineering", rec.Department)
	assert.Equal(t, 2026, rec.FiscalYear)

	require.Len(t, f.disp.byType(event.TypeDocumentPaid), 2)
}

func TestPurchaseExpenditureFailureRollsBack(t *testing.T) {
	f := newPurchaseFixture(t)
	f.expenditures.failErr = errors.New("disk full")
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchaseApproved
		d.ReimbursementStage = document.StageReimbursementPending
	})

	_, err := f.svc.Apply(context.Background(), "u-eve", doc.ID, ActionRequest{
		Action: document.ActionPay, AmountCents: 120_000,
	})
	require.ErrorIs(t, err, document.ErrExpenditureFailed)

	// The payment did not stand: status, paid amount, and audit log are
	// all back where they were.
	stored, err := f.repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, document.PurchaseApproved, stored.Status)
	assert.Zero(t, stored.PaidCents)
	assert.Empty(t, f.logs.entries)
	assert.Empty(t, f.disp.byType(event.TypeDocumentPaid))
}

func TestPurchaseIssueBlocksPayment(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchaseApproved
		d.ReimbursementStage = document.StageReimbursementPending
	})
	ctx := context.Background()

	updated, err := f.svc.Apply(ctx, "u-eve", doc.ID, ActionRequest{Action: document.ActionIssue})
	require.NoError(t, err)
	assert.True(t, updated.PaymentIssueOpen)

	_, err = f.svc.Apply(ctx, "u-eve", doc.ID, ActionRequest{
		Action: document.ActionPay, AmountCents: 120_000,
	})
	require.ErrorIs(t, err, document.ErrPaymentIssueOpen)

	updated, err = f.svc.Apply(ctx, "u-eve", doc.ID, ActionRequest{Action: document.ActionResolveIssue})
	require.NoError(t, err)
	assert.False(t, updated.PaymentIssueOpen)

	updated, err = f.svc.Apply(ctx, "u-eve", doc.ID, ActionRequest{
		Action: document.ActionPay, AmountCents: 120_000,
	})
	require.NoError(t, err)
	assert.Equal(t, document.PurchasePaid, updated.Status)
}

func TestPurchaseDispatchOutlivesRequestContext(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, nil)

	// Dispatch happens after the commit, when the request context may
	// already be canceled; deliveries must not inherit the cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmit})
	require.NoError(t, err)
	require.NotEmpty(t, f.disp.ctxErrs)
	for _, ctxErr := range f.disp.ctxErrs {
		assert.NoError(t, ctxErr)
	}
}

func TestPurchaseWorkflowNotConfigured(t *testing.T) {
	f := newPurchaseFixture(t)
	require.NoError(t, f.flows.SetPublished(context.Background(), 1, false))
	doc := f.seed(t, nil)

	_, err := f.svc.Apply(context.Background(), "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmit})
	require.ErrorIs(t, err, document.ErrWorkflowNotConfigured)
}

func TestPurchaseAttachInvoices(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchaseApproved
		d.ReimbursementStage = document.StageInvoicePending
	})
	ctx := context.Background()

	require.ErrorIs(t, f.svc.AttachInvoices(ctx, "u-bob", doc.ID, []string{"inv.png"}), document.ErrForbidden)

	require.NoError(t, f.svc.AttachInvoices(ctx, "u-alice", doc.ID, []string{"inv.png"}))
	stored, err := f.repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"inv.png"}, stored.InvoiceImages)

	paid := f.seed(t, func(d *document.PurchaseOrder) { d.Status = document.PurchasePaid })
	require.ErrorIs(t, f.svc.AttachInvoices(ctx, "u-alice", paid.ID, []string{"late.png"}), document.ErrAlreadyPaid)
}

func TestPurchaseSubmitReimbursementNeedsEvidence(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchaseApproved
		d.ReimbursementStage = document.StageInvoicePending
	})
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmitReimbursement})
	require.ErrorIs(t, err, document.ErrInvoiceFilesRequired)

	// Attaching an invoice and retrying succeeds.
	require.NoError(t, f.svc.AttachInvoices(ctx, "u-alice", doc.ID, []string{"inv.png"}))
	updated, err := f.svc.Apply(ctx, "u-alice", doc.ID, ActionRequest{Action: document.ActionSubmitReimbursement})
	require.NoError(t, err)
	assert.Equal(t, document.StageReimbursementPending, updated.ReimbursementStage)
}

func TestPurchaseUnknownAction(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, nil)

	_, err := f.svc.Apply(context.Background(), "u-alice", doc.ID, ActionRequest{Action: document.Action("frobnicate")})
	require.ErrorIs(t, err, document.ErrUnknownAction)
}

func TestPurchaseNotFound(t *testing.T) {
	f := newPurchaseFixture(t)

	_, err := f.svc.Apply(context.Background(), "u-alice", 404, ActionRequest{Action: document.ActionSubmit})
	require.ErrorIs(t, err, document.ErrNotFound)

	_, err = f.svc.Get(context.Background(), 404)
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestPurchaseApprovalTrail(t *testing.T) {
	f := newPurchaseFixture(t)
	doc := f.seed(t, func(d *document.PurchaseOrder) {
		d.Status = document.PurchasePendingApproval
		d.CurrentNodeID = "approval_fin"
	})

	trail, err := f.svc.ApprovalTrail(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "approval_mgr", trail[0].NodeID)
}

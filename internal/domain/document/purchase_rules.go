package document

import (
	"context"

	"github.com/oasuite/procureflow/internal/domain/fsm"
)

// PayIntent carries the request attributes a guard needs alongside the
// document itself.
type PayIntent struct {
	AmountCents  int64
	ToApproverID string
}

// PurchaseMachine builds the guard table for a purchase order as a state
// machine positioned at the order's current status. Guards close over the
// document and the incoming request, so the returned machine is valid for
// exactly one action evaluation.
func PurchaseMachine(doc *PurchaseOrder, intent PayIntent) *fsm.Machine {
	b := fsm.NewBuilder()

	b.Configure(fsm.State(PurchaseDraft)).
		Permit(fsm.Trigger(ActionSubmit), fsm.State(PurchasePendingApproval))

	// Rejection returns control to the creator; resubmission is the only
	// way back in.
	b.Configure(fsm.State(PurchaseRejected)).
		Permit(fsm.Trigger(ActionSubmit), fsm.State(PurchasePendingApproval))

	b.Configure(fsm.State(PurchasePendingApproval)).
		Permit(fsm.Trigger(ActionApprove), fsm.State(PurchaseApproved)).
		Permit(fsm.Trigger(ActionReject), fsm.State(PurchaseRejected)).
		PermitIf(fsm.Trigger(ActionTransfer), fsm.State(PurchasePendingApproval), func(ctx context.Context) error {
			if intent.ToApproverID == "" {
				return ErrTransferTargetRequired
			}
			return nil
		}).
		Permit(fsm.Trigger(ActionWithdraw), fsm.State(PurchaseDraft))

	b.Configure(fsm.State(PurchaseApproved)).
		PermitIf(fsm.Trigger(ActionSubmitReimbursement), fsm.State(PurchaseApproved), func(ctx context.Context) error {
			switch doc.ReimbursementStage {
			case StageInvoicePending, StageReimbursementRejected:
			default:
				return ErrNotSubmittable
			}
			if !doc.HasInvoiceEvidence() {
				return ErrInvoiceFilesRequired
			}
			return nil
		}).
		PermitIf(fsm.Trigger(ActionPay), fsm.State(PurchasePaid), func(ctx context.Context) error {
			if err := purchasePayGuard(doc, intent); err != nil {
				return err
			}
			if intent.AmountCents != doc.RemainingCents() {
				return fsm.ErrSkip
			}
			return nil
		}).
		PermitIf(fsm.Trigger(ActionPay), fsm.State(PurchaseApproved), func(ctx context.Context) error {
			if err := purchasePayGuard(doc, intent); err != nil {
				return err
			}
			if intent.AmountCents > doc.RemainingCents() {
				return ErrPaymentExceedsRemaining
			}
			return nil
		}).
		Permit(fsm.Trigger(ActionIssue), fsm.State(PurchaseApproved)).
		Permit(fsm.Trigger(ActionResolveIssue), fsm.State(PurchaseApproved))

	// PurchasePaid is terminal: no outgoing transitions.

	return b.Build(fsm.State(doc.Status))
}

// purchasePayGuard holds the invariants shared by full and partial payment.
func purchasePayGuard(doc *PurchaseOrder, intent PayIntent) error {
	if doc.ReimbursementStage != StageReimbursementPending {
		return ErrNotPayable
	}
	if doc.PaymentIssueOpen {
		return ErrPaymentIssueOpen
	}
	if doc.RemainingCents() <= 0 {
		return ErrAlreadyPaid
	}
	if intent.AmountCents <= 0 {
		return ErrNotPayable
	}
	return nil
}

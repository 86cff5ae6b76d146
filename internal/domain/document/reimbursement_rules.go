package document

import (
	"context"

	"github.com/oasuite/procureflow/internal/domain/fsm"
)

// ReimbursementMachine builds the guard table for a standalone
// reimbursement claim, positioned at the claim's current status.
func ReimbursementMachine(doc *Reimbursement, intent PayIntent) *fsm.Machine {
	b := fsm.NewBuilder()

	submitGuard := func(ctx context.Context) error {
		if !doc.HasInvoiceEvidence() {
			return ErrInvoiceFilesRequired
		}
		return nil
	}

	b.Configure(fsm.State(ReimbursementDraft)).
		PermitIf(fsm.Trigger(ActionSubmit), fsm.State(ReimbursementPendingApproval), submitGuard)

	b.Configure(fsm.State(ReimbursementRejected)).
		PermitIf(fsm.Trigger(ActionSubmit), fsm.State(ReimbursementPendingApproval), submitGuard)

	b.Configure(fsm.State(ReimbursementPendingApproval)).
		Permit(fsm.Trigger(ActionApprove), fsm.State(ReimbursementApproved)).
		Permit(fsm.Trigger(ActionReject), fsm.State(ReimbursementRejected)).
		PermitIf(fsm.Trigger(ActionTransfer), fsm.State(ReimbursementPendingApproval), func(ctx context.Context) error {
			if intent.ToApproverID == "" {
				return ErrTransferTargetRequired
			}
			return nil
		}).
		Permit(fsm.Trigger(ActionWithdraw), fsm.State(ReimbursementDraft))

	b.Configure(fsm.State(ReimbursementApproved)).
		PermitIf(fsm.Trigger(ActionPay), fsm.State(ReimbursementPaid), func(ctx context.Context) error {
			if err := reimbursementPayGuard(doc, intent); err != nil {
				return err
			}
			if intent.AmountCents != doc.RemainingCents() {
				return fsm.ErrSkip
			}
			return nil
		}).
		PermitIf(fsm.Trigger(ActionPay), fsm.State(ReimbursementApproved), func(ctx context.Context) error {
			if err := reimbursementPayGuard(doc, intent); err != nil {
				return err
			}
			if intent.AmountCents > doc.RemainingCents() {
				return ErrPaymentExceedsRemaining
			}
			return nil
		})

	// ReimbursementPaid is terminal: no outgoing transitions.

	return b.Build(fsm.State(doc.Status))
}

func reimbursementPayGuard(doc *Reimbursement, intent PayIntent) error {
	if doc.RemainingCents() <= 0 {
		return ErrAlreadyPaid
	}
	if intent.AmountCents <= 0 {
		return ErrNotPayable
	}
	return nil
}

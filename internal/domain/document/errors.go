package document

// Error is a guard violation or lookup failure with a machine-readable
// code. The core never formats user-facing text; the presentation layer
// maps codes to messages.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrNotFound                = &Error{Code: "DOCUMENT_NOT_FOUND", Message: "document does not exist"}
	ErrForbidden               = &Error{Code: "FORBIDDEN", Message: "actor is not permitted to perform this action"}
	ErrUnknownAction           = &Error{Code: "UNKNOWN_ACTION", Message: "action is not recognized"}
	ErrNotSubmittable          = &Error{Code: "NOT_SUBMITTABLE", Message: "document cannot be submitted from its current status"}
	ErrNotApprovable           = &Error{Code: "NOT_APPROVABLE", Message: "document cannot be approved or rejected from its current status"}
	ErrNotTransferable         = &Error{Code: "NOT_TRANSFERABLE", Message: "approval cannot be transferred from the current status"}
	ErrNotWithdrawable         = &Error{Code: "NOT_WITHDRAWABLE", Message: "document cannot be withdrawn from its current status"}
	ErrNotPayable              = &Error{Code: "NOT_PAYABLE", Message: "document cannot be paid in its current state"}
	ErrInvoiceFilesRequired    = &Error{Code: "INVOICE_FILES_REQUIRED", Message: "invoice evidence must be attached first"}
	ErrBudgetExceeded          = &Error{Code: "BUDGET_EXCEEDED", Message: "requested amount exceeds the remaining department budget"}
	ErrAlreadyPaid             = &Error{Code: "ALREADY_PAID", Message: "document is already fully paid"}
	ErrPaymentExceedsRemaining = &Error{Code: "PAYMENT_EXCEEDS_REMAINING", Message: "payment amount exceeds the remaining payable amount"}
	ErrPaymentIssueOpen        = &Error{Code: "PAYMENT_ISSUE_OPEN", Message: "an open payment issue blocks payment"}
	ErrTransferTargetRequired  = &Error{Code: "TRANSFER_TARGET_REQUIRED", Message: "transfer requires a target approver"}
	ErrExpenditureFailed       = &Error{Code: "EXPENDITURE_RECORD_FAILED", Message: "payment was rolled back because the expenditure record could not be written"}
	ErrWorkflowNotConfigured   = &Error{Code: "WORKFLOW_NOT_CONFIGURED", Message: "no published workflow definition exists for this document type"}
)

// NotAllowed returns the coded "not allowed from current status" error for
// an action. Both the guard table and the transactional status re-check
// use it, so the loser of a concurrent race fails identically to a request
// that was never legal.
func NotAllowed(action Action) *Error {
	switch action {
	case ActionSubmit, ActionSubmitReimbursement:
		return ErrNotSubmittable
	case ActionApprove, ActionReject:
		return ErrNotApprovable
	case ActionTransfer:
		return ErrNotTransferable
	case ActionWithdraw:
		return ErrNotWithdrawable
	case ActionPay, ActionIssue, ActionResolveIssue:
		return ErrNotPayable
	default:
		return ErrUnknownAction
	}
}

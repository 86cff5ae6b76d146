package document

// Action is a named operation requested against a document. Actions are
// validated by the guard layer before they reach the workflow engine.
type Action string

const (
	ActionSubmit              Action = "submit"
	ActionApprove             Action = "approve"
	ActionReject              Action = "reject"
	ActionTransfer            Action = "transfer"
	ActionWithdraw            Action = "withdraw"
	ActionSubmitReimbursement Action = "submit_reimbursement"
	ActionPay                 Action = "pay"
	ActionIssue               Action = "issue"
	ActionResolveIssue        Action = "resolve_issue"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Type identifies a document kind.
type Type string

const (
	TypePurchase      Type = "purchase"
	TypeReimbursement Type = "reimbursement"
)

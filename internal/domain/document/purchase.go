package document

import "time"

// PurchaseStatus is the lifecycle status of a purchase order.
type PurchaseStatus string

const (
	PurchaseDraft           PurchaseStatus = "draft"
	PurchasePendingApproval PurchaseStatus = "pending_approval"
	PurchaseApproved        PurchaseStatus = "approved"
	PurchaseRejected        PurchaseStatus = "rejected"
	PurchasePaid            PurchaseStatus = "paid"
)

// ReimbursementStage is the purchase-only sub-status tracking the
// reimbursement of an approved purchase.
type ReimbursementStage string

const (
	StageNone                  ReimbursementStage = "none"
	StageInvoicePending        ReimbursementStage = "invoice_pending"
	StageReimbursementPending  ReimbursementStage = "reimbursement_pending"
	StageReimbursementRejected ReimbursementStage = "reimbursement_rejected"
	StagePaid                  ReimbursementStage = "paid"
)

// PurchaseOrder is a purchase document. It is owned by its creator and
// mutated only through the action handler; every accepted action appends a
// workflow log entry.
type PurchaseOrder struct {
	ID                 int64              `json:"id"`
	Title              string             `json:"title"`
	CreatorID          string             `json:"creator_id"`
	Department         string             `json:"department"`
	Status             PurchaseStatus     `json:"status"`
	ReimbursementStage ReimbursementStage `json:"reimbursement_stage"`
	PendingApproverID  *string            `json:"pending_approver_id,omitempty"`
	CurrentNodeID      string             `json:"current_node_id,omitempty"`
	TotalCents         int64              `json:"total_cents"`
	PaidCents          int64              `json:"paid_cents"`
	InvoiceImages      []string           `json:"invoice_images,omitempty"`
	PaymentIssueOpen   bool               `json:"payment_issue_open"`
	PurchaseDate       time.Time          `json:"purchase_date"`
	Reason             string             `json:"reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// RemainingCents is the payable remainder. Payments accumulate; the order
// becomes fully paid only once the remainder reaches zero.
func (p *PurchaseOrder) RemainingCents() int64 {
	return p.TotalCents - p.PaidCents
}

// FullyPaid reports whether nothing remains to pay.
func (p *PurchaseOrder) FullyPaid() bool {
	return p.RemainingCents() <= 0
}

// HasInvoiceEvidence reports whether any invoice image is attached.
func (p *PurchaseOrder) HasInvoiceEvidence() bool {
	return len(p.InvoiceImages) > 0
}

// FiscalYear is the budget year a purchase draws from.
func (p *PurchaseOrder) FiscalYear() int {
	return p.PurchaseDate.Year()
}

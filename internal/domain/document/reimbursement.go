package document

import "time"

// ReimbursementStatus is the lifecycle status of a standalone reimbursement.
type ReimbursementStatus string

const (
	ReimbursementDraft           ReimbursementStatus = "draft"
	ReimbursementPendingApproval ReimbursementStatus = "pending_approval"
	ReimbursementApproved        ReimbursementStatus = "approved"
	ReimbursementRejected        ReimbursementStatus = "rejected"
	ReimbursementPaid            ReimbursementStatus = "paid"
)

// Reimbursement is an expense claim document, separately guarded from
// purchase orders but driven by the same engine.
type Reimbursement struct {
	ID                int64               `json:"id"`
	Title             string              `json:"title"`
	CreatorID         string              `json:"creator_id"`
	Department        string              `json:"department"`
	Status            ReimbursementStatus `json:"status"`
	PendingApproverID *string             `json:"pending_approver_id,omitempty"`
	CurrentNodeID     string              `json:"current_node_id,omitempty"`
	TotalCents        int64               `json:"total_cents"`
	PaidCents         int64               `json:"paid_cents"`
	InvoiceImages     []string            `json:"invoice_images,omitempty"`
	PurchaseOrderID   *int64              `json:"purchase_order_id,omitempty"`
	Reason            string              `json:"reason,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// RemainingCents is the payable remainder of the claim.
func (r *Reimbursement) RemainingCents() int64 {
	return r.TotalCents - r.PaidCents
}

// HasInvoiceEvidence reports whether any invoice image is attached.
func (r *Reimbursement) HasInvoiceEvidence() bool {
	return len(r.InvoiceImages) > 0
}

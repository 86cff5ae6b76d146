package port

import (
	"context"
	"time"

	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/domain/flow"
)

// PurchasePatch is the authoritative mutation produced by one accepted
// action: exactly one new status plus zero or one new pending approver.
type PurchasePatch struct {
	Status             document.PurchaseStatus
	ReimbursementStage document.ReimbursementStage
	PendingApproverID  *string
	CurrentNodeID      string
	PaidCents          int64
	PaymentIssueOpen   bool
}

// PurchaseRepository defines persistence operations for purchase orders.
type PurchaseRepository interface {
	Create(ctx context.Context, po *document.PurchaseOrder) error
	GetByID(ctx context.Context, id int64) (*document.PurchaseOrder, error)
	List(ctx context.Context, limit, offset int) ([]*document.PurchaseOrder, error)

	// ApplyTransition writes the patch only while the row still matches the
	// loaded document's status, paid amount, and issue flag. A concurrent
	// action that already moved the document — including a partial payment
	// or an issue flag flip, neither of which changes the status — makes
	// this return false instead of silently overwriting it.
	ApplyTransition(ctx context.Context, current *document.PurchaseOrder, patch PurchasePatch) (bool, error)

	// UpdateInvoiceImages replaces the attached invoice evidence.
	UpdateInvoiceImages(ctx context.Context, id int64, images []string) error
}

// ReimbursementPatch mirrors PurchasePatch for reimbursement claims.
type ReimbursementPatch struct {
	Status            document.ReimbursementStatus
	PendingApproverID *string
	CurrentNodeID     string
	PaidCents         int64
}

// ReimbursementRepository defines persistence operations for reimbursements.
type ReimbursementRepository interface {
	Create(ctx context.Context, r *document.Reimbursement) error
	GetByID(ctx context.Context, id int64) (*document.Reimbursement, error)
	List(ctx context.Context, limit, offset int) ([]*document.Reimbursement, error)
	ApplyTransition(ctx context.Context, current *document.Reimbursement, patch ReimbursementPatch) (bool, error)
	UpdateInvoiceImages(ctx context.Context, id int64, images []string) error
}

// WorkflowLogRepository appends and reads the audit trail. Entries are
// append-only; there is no update or delete.
type WorkflowLogRepository interface {
	Append(ctx context.Context, entry *document.WorkflowLog) error
	ListByDocument(ctx context.Context, docType document.Type, docID int64) ([]*document.WorkflowLog, error)
}

// FlowRepository defines persistence operations for workflow definitions.
type FlowRepository interface {
	Create(ctx context.Context, wf *flow.Workflow) error
	GetByID(ctx context.Context, id int64) (*flow.Workflow, error)
	GetPublished(ctx context.Context, docType string) (*flow.Workflow, error)
	Update(ctx context.Context, wf *flow.Workflow) error
	SetPublished(ctx context.Context, id int64, published bool) error
	List(ctx context.Context, limit, offset int) ([]*flow.Workflow, error)
}

// InAppNotification is a notification row shown inside the application.
type InAppNotification struct {
	ID           int64         `json:"id"`
	RecipientID  string        `json:"recipient_id"`
	EventType    string        `json:"event_type"`
	DocumentType document.Type `json:"document_type"`
	DocumentID   int64         `json:"document_id"`
	Content      string        `json:"content"`
	Read         bool          `json:"read"`
	CreatedAt    time.Time     `json:"created_at"`
}

// NotificationRepository defines persistence operations for in-app
// notifications.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []*InAppNotification) error
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*InAppNotification, error)
	MarkRead(ctx context.Context, id int64) error
}

// ExpenditureRecord is the derived financial record written when a document
// becomes fully paid. It is part of the same transaction as the payment;
// if it cannot be written the payment is rolled back.
type ExpenditureRecord struct {
	ID           int64         `json:"id"`
	DocumentType document.Type `json:"document_type"`
	DocumentID   int64         `json:"document_id"`
	Department   string        `json:"department"`
	AmountCents  int64         `json:"amount_cents"`
	FiscalYear   int           `json:"fiscal_year"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ExpenditureRepository defines persistence operations for expenditure
// records.
type ExpenditureRepository interface {
	Create(ctx context.Context, rec *ExpenditureRecord) error
	ListByDepartment(ctx context.Context, department string, year int) ([]*ExpenditureRecord, error)
}

// BudgetSummary is the department spending ceiling for a fiscal year.
type BudgetSummary struct {
	BudgetCents    int64 `json:"budget_cents"`
	RemainingCents int64 `json:"remaining_cents"`
}

// BudgetProvider resolves the purchaser's department budget. A nil summary
// means no budget is tracked and the budget guard does not apply.
type BudgetProvider interface {
	GetDepartmentBudgetSummary(ctx context.Context, purchaserID string, year int) (*BudgetSummary, error)
}

// TransactionManager handles database transactions.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

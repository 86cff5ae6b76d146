package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oasuite/procureflow/internal/application/dispatcher"
	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/domain/event"
	"github.com/oasuite/procureflow/internal/domain/flow"
	"github.com/oasuite/procureflow/internal/domain/fsm"
)

// PurchaseService drives the purchase order lifecycle.
type PurchaseService interface {
	Create(ctx context.Context, actorID string, po *document.PurchaseOrder) error
	Get(ctx context.Context, id int64) (*document.PurchaseOrder, error)
	List(ctx context.Context, limit, offset int) ([]*document.PurchaseOrder, error)

	// Apply validates and executes one action against a purchase order,
	// returning the updated document.
	Apply(ctx context.Context, actorID string, id int64, req ActionRequest) (*document.PurchaseOrder, error)

	// AttachInvoices replaces the invoice evidence on the order. Only the
	// creator may attach, and only before the order is paid.
	AttachInvoices(ctx context.Context, actorID string, id int64, images []string) error

	// Logs returns the append-only audit trail of a purchase order.
	Logs(ctx context.Context, id int64) ([]*document.WorkflowLog, error)

	// ApprovalTrail returns the approval nodes already passed on the way
	// to the document's current pause point, for history display.
	ApprovalTrail(ctx context.Context, id int64) ([]*flow.ApprovalNode, error)
}

type purchaseService struct {
	purchases    port.PurchaseRepository
	logs         port.WorkflowLogRepository
	flows        port.FlowRepository
	budgets      port.BudgetProvider
	expenditures port.ExpenditureRepository
	perms        port.PermissionChecker
	directory    port.UserDirectory
	tx           port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	logger       Logger
}

// NewPurchaseService creates the purchase action handler. All collaborators
// are injected; the service holds no global state.
func NewPurchaseService(
	purchases port.PurchaseRepository,
	logs port.WorkflowLogRepository,
	flows port.FlowRepository,
	budgets port.BudgetProvider,
	expenditures port.ExpenditureRepository,
	perms port.PermissionChecker,
	directory port.UserDirectory,
	tx port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) PurchaseService {
	return &purchaseService{
		purchases:    purchases,
		logs:         logs,
		flows:        flows,
		budgets:      budgets,
		expenditures: expenditures,
		perms:        perms,
		directory:    directory,
		tx:           tx,
		dispatcher:   d,
		logger:       logger,
	}
}

func (s *purchaseService) Create(ctx context.Context, actorID string, po *document.PurchaseOrder) error {
	po.CreatorID = actorID
	po.Status = document.PurchaseDraft
	po.ReimbursementStage = document.StageNone
	po.PaidCents = 0
	if po.PurchaseDate.IsZero() {
		po.PurchaseDate = time.Now()
	}

	if err := s.checkBudget(ctx, actorID, po); err != nil {
		return err
	}
	if err := s.checkPermission(ctx, actorID, "purchase.create"); err != nil {
		return err
	}
	return s.purchases.Create(ctx, po)
}

func (s *purchaseService) Get(ctx context.Context, id int64) (*document.PurchaseOrder, error) {
	return s.loadPurchase(ctx, id)
}

func (s *purchaseService) List(ctx context.Context, limit, offset int) ([]*document.PurchaseOrder, error) {
	return s.purchases.List(ctx, limit, offset)
}

func (s *purchaseService) AttachInvoices(ctx context.Context, actorID string, id int64, images []string) error {
	doc, err := s.loadPurchase(ctx, id)
	if err != nil {
		return err
	}
	if doc.CreatorID != actorID {
		return document.ErrForbidden
	}
	if doc.Status == document.PurchasePaid {
		return document.ErrAlreadyPaid
	}
	return s.purchases.UpdateInvoiceImages(ctx, id, images)
}

func (s *purchaseService) Logs(ctx context.Context, id int64) ([]*document.WorkflowLog, error) {
	if _, err := s.loadPurchase(ctx, id); err != nil {
		return nil, err
	}
	return s.logs.ListByDocument(ctx, document.TypePurchase, id)
}

func (s *purchaseService) ApprovalTrail(ctx context.Context, id int64) ([]*flow.ApprovalNode, error) {
	doc, err := s.loadPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.CurrentNodeID == "" {
		return nil, nil
	}
	wf, err := s.publishedFlow(ctx)
	if err != nil {
		return nil, err
	}
	return flow.HistoricalApprovals(wf.Graph, doc.CurrentNodeID)
}

// Apply runs one action end to end: guard table, actor and permission
// checks, workflow traversal, the single transactional write, and
// post-commit notification dispatch.
func (s *purchaseService) Apply(ctx context.Context, actorID string, id int64, req ActionRequest) (*document.PurchaseOrder, error) {
	doc, err := s.loadPurchase(ctx, id)
	if err != nil {
		return nil, err
	}

	intent := document.PayIntent{AmountCents: req.AmountCents, ToApproverID: req.ToApproverID}
	machine := document.PurchaseMachine(doc, intent)
	target, err := machine.Peek(ctx, fsm.Trigger(req.Action))
	if err != nil {
		return nil, guardError(req.Action, err)
	}

	if err := s.checkActor(doc, actorID, req.Action); err != nil {
		return nil, err
	}
	if req.Action == document.ActionSubmit {
		if err := s.checkBudget(ctx, actorID, doc); err != nil {
			return nil, err
		}
	}
	if err := s.checkPermission(ctx, actorID, permissionKey(document.TypePurchase, req.Action)); err != nil {
		return nil, err
	}

	patch, step, err := s.computePatch(ctx, doc, req, document.PurchaseStatus(target))
	if err != nil {
		return nil, err
	}

	fromStatus := doc.Status
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		// Re-check against the row at the moment of write: the loser of a
		// concurrent race fails exactly like an action that was never
		// legal from this status.
		ok, err := s.purchases.ApplyTransition(txCtx, doc, *patch)
		if err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}
		if !ok {
			return document.NotAllowed(req.Action)
		}

		entry := &document.WorkflowLog{
			DocumentType: document.TypePurchase,
			DocumentID:   doc.ID,
			OperatorID:   actorID,
			Action:       req.Action,
			FromStatus:   string(fromStatus),
			ToStatus:     string(patch.Status),
			Comment:      firstNonEmpty(req.Comment, req.Note, req.Reason),
			CreatedAt:    time.Now(),
		}
		if err := s.logs.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append workflow log: %w", err)
		}

		// Completing a payment derives a financial record in the same
		// transaction; if it cannot be written the payment must not stand.
		if req.Action == document.ActionPay && patch.Status == document.PurchasePaid {
			rec := &port.ExpenditureRecord{
				DocumentType: document.TypePurchase,
				DocumentID:   doc.ID,
				Department:   doc.Department,
				AmountCents:  doc.TotalCents,
				FiscalYear:   doc.FiscalYear(),
				CreatedAt:    time.Now(),
			}
			if err := s.expenditures.Create(txCtx, rec); err != nil {
				s.logger.Error("Expenditure record failed, rolling back payment",
					"purchase_id", doc.ID, "error", err)
				return document.ErrExpenditureFailed
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated := *doc
	updated.Status = patch.Status
	updated.ReimbursementStage = patch.ReimbursementStage
	updated.PendingApproverID = patch.PendingApproverID
	updated.CurrentNodeID = patch.CurrentNodeID
	updated.PaidCents = patch.PaidCents
	updated.PaymentIssueOpen = patch.PaymentIssueOpen
	updated.UpdatedAt = time.Now()

	s.dispatchAfterCommit(ctx, &updated, fromStatus, req, step)
	return &updated, nil
}

func (s *purchaseService) loadPurchase(ctx context.Context, id int64) (*document.PurchaseOrder, error) {
	doc, err := s.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load purchase %d: %w", id, err)
	}
	if doc == nil {
		return nil, document.ErrNotFound
	}
	return doc, nil
}

func (s *purchaseService) publishedFlow(ctx context.Context) (*flow.Workflow, error) {
	wf, err := s.flows.GetPublished(ctx, string(document.TypePurchase))
	if err != nil {
		return nil, fmt.Errorf("load published workflow: %w", err)
	}
	if wf == nil {
		return nil, document.ErrWorkflowNotConfigured
	}
	return wf, nil
}

// checkActor enforces who may perform each action: only the pending
// approver acts on a pending document, only the creator submits or
// withdraws it.
func (s *purchaseService) checkActor(doc *document.PurchaseOrder, actorID string, action document.Action) error {
	switch action {
	case document.ActionApprove, document.ActionReject, document.ActionTransfer:
		if doc.PendingApproverID == nil || *doc.PendingApproverID != actorID {
			return document.NotAllowed(action)
		}
	case document.ActionSubmit, document.ActionWithdraw, document.ActionSubmitReimbursement:
		if doc.CreatorID != actorID {
			return document.NotAllowed(action)
		}
	}
	return nil
}

func (s *purchaseService) checkPermission(ctx context.Context, actorID, key string) error {
	allowed, err := s.perms.CheckPermission(ctx, actorID, key)
	if err != nil {
		return fmt.Errorf("check permission %s: %w", key, err)
	}
	if !allowed {
		return document.ErrForbidden
	}
	return nil
}

// checkBudget applies the department spending ceiling to purchase
// creation and submission. No tracked budget means no ceiling.
func (s *purchaseService) checkBudget(ctx context.Context, actorID string, doc *document.PurchaseOrder) error {
	summary, err := s.budgets.GetDepartmentBudgetSummary(ctx, doc.CreatorID, doc.FiscalYear())
	if err != nil {
		return fmt.Errorf("resolve budget: %w", err)
	}
	if summary == nil || doc.TotalCents <= summary.RemainingCents {
		return nil
	}
	override, err := s.perms.CheckPermission(ctx, actorID, PermBudgetOverride)
	if err != nil {
		return fmt.Errorf("check budget override: %w", err)
	}
	if override {
		s.logger.Info("Budget ceiling overridden",
			"actor_id", actorID, "purchase_id", doc.ID, "total_cents", doc.TotalCents)
		return nil
	}
	return document.ErrBudgetExceeded
}

// computePatch derives the single authoritative mutation for the action.
// For submit/approve/reject the workflow engine decides whether the
// document pauses on another approver or leaves the approval phase; for
// the remaining actions the guard table's target status stands.
func (s *purchaseService) computePatch(ctx context.Context, doc *document.PurchaseOrder, req ActionRequest, target document.PurchaseStatus) (*port.PurchasePatch, *flow.Step, error) {
	patch := &port.PurchasePatch{
		Status:             target,
		ReimbursementStage: doc.ReimbursementStage,
		PendingApproverID:  doc.PendingApproverID,
		CurrentNodeID:      doc.CurrentNodeID,
		PaidCents:          doc.PaidCents,
		PaymentIssueOpen:   doc.PaymentIssueOpen,
	}

	switch req.Action {
	case document.ActionSubmit:
		wf, err := s.publishedFlow(ctx)
		if err != nil {
			return nil, nil, err
		}
		step, err := flow.CalculateNextStep(wf.Graph, "", "", purchaseSnapshot(doc))
		if err != nil {
			return nil, nil, err
		}
		s.applyTraversal(ctx, patch, step,
			document.PurchasePendingApproval, document.PurchaseApproved)
		if patch.Status == document.PurchaseApproved {
			patch.ReimbursementStage = document.StageInvoicePending
		}
		return patch, step, nil

	case document.ActionApprove:
		return s.traverse(ctx, doc, patch, flow.ActionApproved,
			document.PurchaseApproved, document.StageInvoicePending)

	case document.ActionReject:
		return s.traverse(ctx, doc, patch, flow.ActionRejected,
			document.PurchaseRejected, doc.ReimbursementStage)

	case document.ActionTransfer:
		patch.PendingApproverID = &req.ToApproverID
		return patch, nil, nil

	case document.ActionWithdraw:
		patch.PendingApproverID = nil
		patch.CurrentNodeID = ""
		return patch, nil, nil

	case document.ActionSubmitReimbursement:
		patch.ReimbursementStage = document.StageReimbursementPending
		return patch, nil, nil

	case document.ActionPay:
		patch.PaidCents = doc.PaidCents + req.AmountCents
		if patch.Status == document.PurchasePaid {
			patch.ReimbursementStage = document.StagePaid
			patch.PendingApproverID = nil
		}
		return patch, nil, nil

	case document.ActionIssue:
		patch.PaymentIssueOpen = true
		return patch, nil, nil

	case document.ActionResolveIssue:
		patch.PaymentIssueOpen = false
		return patch, nil, nil

	default:
		return nil, nil, document.ErrUnknownAction
	}
}

// traverse advances the workflow from the document's current pause point
// and folds the result into the patch.
func (s *purchaseService) traverse(ctx context.Context, doc *document.PurchaseOrder, patch *port.PurchasePatch, action flow.Action, terminal document.PurchaseStatus, terminalStage document.ReimbursementStage) (*port.PurchasePatch, *flow.Step, error) {
	wf, err := s.publishedFlow(ctx)
	if err != nil {
		return nil, nil, err
	}
	step, err := flow.CalculateNextStep(wf.Graph, doc.CurrentNodeID, action, purchaseSnapshot(doc))
	if err != nil {
		return nil, nil, err
	}
	s.applyTraversal(ctx, patch, step, document.PurchasePendingApproval, terminal)
	if patch.Status == terminal {
		patch.ReimbursementStage = terminalStage
	}
	return patch, step, nil
}

// applyTraversal maps a traversal result onto the patch: another approval
// node keeps the document pending on its resolved approver; END, a dead
// end, or cycle exhaustion leaves the approval phase at the terminal
// status. An unrecognized wait-type node pauses without an approver.
func (s *purchaseService) applyTraversal(ctx context.Context, patch *port.PurchasePatch, step *flow.Step, pending, terminal document.PurchaseStatus) {
	switch next := step.Next.(type) {
	case *flow.ApprovalNode:
		patch.Status = pending
		patch.CurrentNodeID = next.NodeID
		patch.PendingApproverID = resolveApprover(ctx, s.directory, next)
	case *flow.EndNode, nil:
		patch.Status = terminal
		patch.CurrentNodeID = ""
		patch.PendingApproverID = nil
	default:
		patch.Status = pending
		patch.CurrentNodeID = next.ID()
		patch.PendingApproverID = nil
	}
}

// dispatchAfterCommit hands side-channel nodes and lifecycle events to the
// notification collaborators. Everything here is best-effort; failures are
// logged by the dispatcher and never affect the committed transition.
func (s *purchaseService) dispatchAfterCommit(ctx context.Context, doc *document.PurchaseOrder, fromStatus document.PurchaseStatus, req ActionRequest, step *flow.Step) {
	if s.dispatcher == nil {
		return
	}

	// The request context is canceled once the handler returns; deliveries
	// must outlive it.
	ctx = context.WithoutCancel(ctx)

	evt := event.NewEvent(actionEventType(req.Action), document.TypePurchase, doc.ID, map[string]interface{}{
		"from_status":  string(fromStatus),
		"new_status":   string(doc.Status),
		"action":       string(req.Action),
		"creator_id":   doc.CreatorID,
		"title":        doc.Title,
		"amount_cents": req.AmountCents,
	})
	s.dispatcher.DispatchAsync(ctx, evt)

	if step != nil {
		for _, n := range step.SideChannels {
			side := event.NewEventWithCorrelation(event.TypeSideChannelReached,
				document.TypePurchase, doc.ID,
				sideChannelPayload(n, doc.CreatorID, doc.Title), evt.CorrelationID)
			s.dispatcher.DispatchAsync(ctx, side)
		}
	}
}

func actionEventType(action document.Action) event.Type {
	switch action {
	case document.ActionSubmit, document.ActionSubmitReimbursement:
		return event.TypeDocumentSubmitted
	case document.ActionApprove:
		return event.TypeDocumentApproved
	case document.ActionReject:
		return event.TypeDocumentRejected
	case document.ActionWithdraw:
		return event.TypeDocumentWithdrawn
	case document.ActionPay:
		return event.TypeDocumentPaid
	default:
		return event.TypeStatusChanged
	}
}

func purchaseSnapshot(doc *document.PurchaseOrder) map[string]interface{} {
	return map[string]interface{}{
		"totalAmount":  float64(doc.TotalCents) / 100,
		"department":   doc.Department,
		"creatorId":    doc.CreatorID,
		"purchaseDate": doc.PurchaseDate.Format("2006-01-02"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

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

// ReimbursementService drives the reimbursement claim lifecycle. Claims
// share the engine and guard machinery with purchases but follow their own
// workflow definition and guard table.
type ReimbursementService interface {
	Create(ctx context.Context, actorID string, r *document.Reimbursement) error
	Get(ctx context.Context, id int64) (*document.Reimbursement, error)
	List(ctx context.Context, limit, offset int) ([]*document.Reimbursement, error)
	Apply(ctx context.Context, actorID string, id int64, req ActionRequest) (*document.Reimbursement, error)
	AttachInvoices(ctx context.Context, actorID string, id int64, images []string) error
	Logs(ctx context.Context, id int64) ([]*document.WorkflowLog, error)
}

type reimbursementService struct {
	claims       port.ReimbursementRepository
	logs         port.WorkflowLogRepository
	flows        port.FlowRepository
	expenditures port.ExpenditureRepository
	perms        port.PermissionChecker
	directory    port.UserDirectory
	tx           port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	logger       Logger
}

// NewReimbursementService creates the reimbursement action handler.
func NewReimbursementService(
	claims port.ReimbursementRepository,
	logs port.WorkflowLogRepository,
	flows port.FlowRepository,
	expenditures port.ExpenditureRepository,
	perms port.PermissionChecker,
	directory port.UserDirectory,
	tx port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) ReimbursementService {
	return &reimbursementService{
		claims:       claims,
		logs:         logs,
		flows:        flows,
		expenditures: expenditures,
		perms:        perms,
		directory:    directory,
		tx:           tx,
		dispatcher:   d,
		logger:       logger,
	}
}

func (s *reimbursementService) Create(ctx context.Context, actorID string, r *document.Reimbursement) error {
	r.CreatorID = actorID
	r.Status = document.ReimbursementDraft
	r.PaidCents = 0
	if err := s.checkPermission(ctx, actorID, "reimbursement.create"); err != nil {
		return err
	}
	return s.claims.Create(ctx, r)
}

func (s *reimbursementService) Get(ctx context.Context, id int64) (*document.Reimbursement, error) {
	return s.load(ctx, id)
}

func (s *reimbursementService) List(ctx context.Context, limit, offset int) ([]*document.Reimbursement, error) {
	return s.claims.List(ctx, limit, offset)
}

func (s *reimbursementService) AttachInvoices(ctx context.Context, actorID string, id int64, images []string) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if doc.CreatorID != actorID {
		return document.ErrForbidden
	}
	if doc.Status == document.ReimbursementPaid {
		return document.ErrAlreadyPaid
	}
	return s.claims.UpdateInvoiceImages(ctx, id, images)
}

func (s *reimbursementService) Logs(ctx context.Context, id int64) ([]*document.WorkflowLog, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	return s.logs.ListByDocument(ctx, document.TypeReimbursement, id)
}

func (s *reimbursementService) Apply(ctx context.Context, actorID string, id int64, req ActionRequest) (*document.Reimbursement, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	intent := document.PayIntent{AmountCents: req.AmountCents, ToApproverID: req.ToApproverID}
	machine := document.ReimbursementMachine(doc, intent)
	target, err := machine.Peek(ctx, fsm.Trigger(req.Action))
	if err != nil {
		return nil, guardError(req.Action, err)
	}

	if err := s.checkActor(doc, actorID, req.Action); err != nil {
		return nil, err
	}
	if err := s.checkPermission(ctx, actorID, permissionKey(document.TypeReimbursement, req.Action)); err != nil {
		return nil, err
	}

	patch, step, err := s.computePatch(ctx, doc, req, document.ReimbursementStatus(target))
	if err != nil {
		return nil, err
	}

	fromStatus := doc.Status
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := s.claims.ApplyTransition(txCtx, doc, *patch)
		if err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}
		if !ok {
			return document.NotAllowed(req.Action)
		}

		entry := &document.WorkflowLog{
			DocumentType: document.TypeReimbursement,
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

		if req.Action == document.ActionPay && patch.Status == document.ReimbursementPaid {
			rec := &port.ExpenditureRecord{
				DocumentType: document.TypeReimbursement,
				DocumentID:   doc.ID,
				Department:   doc.Department,
				AmountCents:  doc.TotalCents,
				FiscalYear:   doc.CreatedAt.Year(),
				CreatedAt:    time.Now(),
			}
			if err := s.expenditures.Create(txCtx, rec); err != nil {
				s.logger.Error("Expenditure record failed, rolling back payment",
					"reimbursement_id", doc.ID, "error", err)
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
	updated.PendingApproverID = patch.PendingApproverID
	updated.CurrentNodeID = patch.CurrentNodeID
	updated.PaidCents = patch.PaidCents
	updated.UpdatedAt = time.Now()

	s.dispatchAfterCommit(ctx, &updated, fromStatus, req, step)
	return &updated, nil
}

func (s *reimbursementService) load(ctx context.Context, id int64) (*document.Reimbursement, error) {
	doc, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load reimbursement %d: %w", id, err)
	}
	if doc == nil {
		return nil, document.ErrNotFound
	}
	return doc, nil
}

func (s *reimbursementService) publishedFlow(ctx context.Context) (*flow.Workflow, error) {
	wf, err := s.flows.GetPublished(ctx, string(document.TypeReimbursement))
	if err != nil {
		return nil, fmt.Errorf("load published workflow: %w", err)
	}
	if wf == nil {
		return nil, document.ErrWorkflowNotConfigured
	}
	return wf, nil
}

func (s *reimbursementService) checkActor(doc *document.Reimbursement, actorID string, action document.Action) error {
	switch action {
	case document.ActionApprove, document.ActionReject, document.ActionTransfer:
		if doc.PendingApproverID == nil || *doc.PendingApproverID != actorID {
			return document.NotAllowed(action)
		}
	case document.ActionSubmit, document.ActionWithdraw:
		if doc.CreatorID != actorID {
			return document.NotAllowed(action)
		}
	}
	return nil
}

func (s *reimbursementService) checkPermission(ctx context.Context, actorID, key string) error {
	allowed, err := s.perms.CheckPermission(ctx, actorID, key)
	if err != nil {
		return fmt.Errorf("check permission %s: %w", key, err)
	}
	if !allowed {
		return document.ErrForbidden
	}
	return nil
}

func (s *reimbursementService) computePatch(ctx context.Context, doc *document.Reimbursement, req ActionRequest, target document.ReimbursementStatus) (*port.ReimbursementPatch, *flow.Step, error) {
	patch := &port.ReimbursementPatch{
		Status:            target,
		PendingApproverID: doc.PendingApproverID,
		CurrentNodeID:     doc.CurrentNodeID,
		PaidCents:         doc.PaidCents,
	}

	switch req.Action {
	case document.ActionSubmit:
		wf, err := s.publishedFlow(ctx)
		if err != nil {
			return nil, nil, err
		}
		step, err := flow.CalculateNextStep(wf.Graph, "", "", reimbursementSnapshot(doc))
		if err != nil {
			return nil, nil, err
		}
		s.applyTraversal(ctx, patch, step, document.ReimbursementApproved)
		return patch, step, nil

	case document.ActionApprove:
		return s.traverse(ctx, doc, patch, flow.ActionApproved, document.ReimbursementApproved)

	case document.ActionReject:
		return s.traverse(ctx, doc, patch, flow.ActionRejected, document.ReimbursementRejected)

	case document.ActionTransfer:
		patch.PendingApproverID = &req.ToApproverID
		return patch, nil, nil

	case document.ActionWithdraw:
		patch.PendingApproverID = nil
		patch.CurrentNodeID = ""
		return patch, nil, nil

	case document.ActionPay:
		patch.PaidCents = doc.PaidCents + req.AmountCents
		if patch.Status == document.ReimbursementPaid {
			patch.PendingApproverID = nil
		}
		return patch, nil, nil

	default:
		return nil, nil, document.ErrUnknownAction
	}
}

func (s *reimbursementService) traverse(ctx context.Context, doc *document.Reimbursement, patch *port.ReimbursementPatch, action flow.Action, terminal document.ReimbursementStatus) (*port.ReimbursementPatch, *flow.Step, error) {
	wf, err := s.publishedFlow(ctx)
	if err != nil {
		return nil, nil, err
	}
	step, err := flow.CalculateNextStep(wf.Graph, doc.CurrentNodeID, action, reimbursementSnapshot(doc))
	if err != nil {
		return nil, nil, err
	}
	s.applyTraversal(ctx, patch, step, terminal)
	return patch, step, nil
}

func (s *reimbursementService) applyTraversal(ctx context.Context, patch *port.ReimbursementPatch, step *flow.Step, terminal document.ReimbursementStatus) {
	switch next := step.Next.(type) {
	case *flow.ApprovalNode:
		patch.Status = document.ReimbursementPendingApproval
		patch.CurrentNodeID = next.NodeID
		patch.PendingApproverID = resolveApprover(ctx, s.directory, next)
	case *flow.EndNode, nil:
		patch.Status = terminal
		patch.CurrentNodeID = ""
		patch.PendingApproverID = nil
	default:
		patch.Status = document.ReimbursementPendingApproval
		patch.CurrentNodeID = next.ID()
		patch.PendingApproverID = nil
	}
}

func (s *reimbursementService) dispatchAfterCommit(ctx context.Context, doc *document.Reimbursement, fromStatus document.ReimbursementStatus, req ActionRequest, step *flow.Step) {
	if s.dispatcher == nil {
		return
	}

	// The request context is canceled once the handler returns; deliveries
	// must outlive it.
	ctx = context.WithoutCancel(ctx)

	evt := event.NewEvent(actionEventType(req.Action), document.TypeReimbursement, doc.ID, map[string]interface{}{
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
				document.TypeReimbursement, doc.ID,
				sideChannelPayload(n, doc.CreatorID, doc.Title), evt.CorrelationID)
			s.dispatcher.DispatchAsync(ctx, side)
		}
	}
}

func reimbursementSnapshot(doc *document.Reimbursement) map[string]interface{} {
	return map[string]interface{}{
		"totalAmount": float64(doc.TotalCents) / 100,
		"department":  doc.Department,
		"creatorId":   doc.CreatorID,
	}
}

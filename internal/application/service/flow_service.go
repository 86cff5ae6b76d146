package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/domain/flow"
)

// FlowService manages workflow definitions: authoring, validation and the
// publish switch that makes a definition the live one for its document type.
type FlowService interface {
	Create(ctx context.Context, actorID string, wf *flow.Workflow) error
	Get(ctx context.Context, id int64) (*flow.Workflow, error)
	List(ctx context.Context, limit, offset int) ([]*flow.Workflow, error)
	Update(ctx context.Context, actorID string, wf *flow.Workflow) error
	Publish(ctx context.Context, actorID string, id int64) ([]flow.Warning, error)
	Unpublish(ctx context.Context, actorID string, id int64) error
	Validate(ctx context.Context, id int64) ([]flow.Warning, error)
}

// ErrFlowPublished is returned when an edit targets a live definition.
var ErrFlowPublished = &document.Error{Code: "FLOW_PUBLISHED", Message: "published workflow definitions cannot be edited"}

type flowService struct {
	flows  port.FlowRepository
	perms  port.PermissionChecker
	logger Logger
}

// NewFlowService creates the workflow definition manager.
func NewFlowService(flows port.FlowRepository, perms port.PermissionChecker, logger Logger) FlowService {
	return &flowService{flows: flows, perms: perms, logger: logger}
}

func (s *flowService) Create(ctx context.Context, actorID string, wf *flow.Workflow) error {
	if err := s.checkPermission(ctx, actorID, "flow.manage"); err != nil {
		return err
	}
	wf.OwnerID = actorID
	wf.Version = 1
	wf.Published = false
	if wf.Graph == nil {
		wf.Graph = flow.NewDefinition(nil, nil)
	}
	return s.flows.Create(ctx, wf)
}

func (s *flowService) Get(ctx context.Context, id int64) (*flow.Workflow, error) {
	return s.load(ctx, id)
}

func (s *flowService) List(ctx context.Context, limit, offset int) ([]*flow.Workflow, error) {
	return s.flows.List(ctx, limit, offset)
}

func (s *flowService) Update(ctx context.Context, actorID string, wf *flow.Workflow) error {
	if err := s.checkPermission(ctx, actorID, "flow.manage"); err != nil {
		return err
	}
	current, err := s.load(ctx, wf.ID)
	if err != nil {
		return err
	}
	// Published definitions are immutable: in-flight documents reference
	// node IDs in the live graph. Editing requires unpublishing first.
	if current.Published {
		return ErrFlowPublished
	}
	wf.Version = current.Version + 1
	wf.Published = false
	wf.UpdatedAt = time.Now()
	return s.flows.Update(ctx, wf)
}

// Publish makes the definition the live one for its document type, replacing
// any previously published definition. Structural warnings do not block
// publishing; they are returned for the caller to surface.
func (s *flowService) Publish(ctx context.Context, actorID string, id int64) ([]flow.Warning, error) {
	if err := s.checkPermission(ctx, actorID, "flow.manage"); err != nil {
		return nil, err
	}
	wf, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	warnings := wf.Graph.Validate()

	if prev, err := s.flows.GetPublished(ctx, wf.DocumentType); err != nil {
		return nil, fmt.Errorf("load published workflow: %w", err)
	} else if prev != nil && prev.ID != wf.ID {
		if err := s.flows.SetPublished(ctx, prev.ID, false); err != nil {
			return nil, fmt.Errorf("unpublish previous workflow: %w", err)
		}
	}

	if err := s.flows.SetPublished(ctx, wf.ID, true); err != nil {
		return nil, fmt.Errorf("publish workflow: %w", err)
	}
	s.logger.Info("Workflow published",
		"workflow_id", wf.ID, "document_type", wf.DocumentType, "warnings", len(warnings))
	return warnings, nil
}

func (s *flowService) Unpublish(ctx context.Context, actorID string, id int64) error {
	if err := s.checkPermission(ctx, actorID, "flow.manage"); err != nil {
		return err
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	return s.flows.SetPublished(ctx, id, false)
}

func (s *flowService) Validate(ctx context.Context, id int64) ([]flow.Warning, error) {
	wf, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return wf.Graph.Validate(), nil
}

func (s *flowService) load(ctx context.Context, id int64) (*flow.Workflow, error) {
	wf, err := s.flows.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load workflow %d: %w", id, err)
	}
	if wf == nil {
		return nil, document.ErrNotFound
	}
	return wf, nil
}

func (s *flowService) checkPermission(ctx context.Context, actorID, key string) error {
	allowed, err := s.perms.CheckPermission(ctx, actorID, key)
	if err != nil {
		return fmt.Errorf("check permission %s: %w", key, err)
	}
	if !allowed {
		return document.ErrForbidden
	}
	return nil
}

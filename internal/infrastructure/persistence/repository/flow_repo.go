package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/flow"
	"github.com/oasuite/procureflow/internal/infrastructure/persistence/sqlite"
)

// FlowRepository implements port.FlowRepository. The graph is stored as
// the canonical JSON wire form and parsed leniently on read.
type FlowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFlowRepository creates a new workflow definition repository
func NewFlowRepository(db *sql.DB, logger *zap.Logger) port.FlowRepository {
	return &FlowRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new workflow definition
func (r *FlowRepository) Create(ctx context.Context, wf *flow.Workflow) error {
	graph, err := json.Marshal(wf.Graph)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow graph: %w", err)
	}

	query := `
		INSERT INTO workflows (name, document_type, owner_id, version, published, graph)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		wf.Name, wf.DocumentType, wf.OwnerID, wf.Version, wf.Published, string(graph))
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	wf.ID = id
	return nil
}

const workflowColumns = `
	id, name, document_type, owner_id, version, published, graph,
	created_at, updated_at
`

// GetByID retrieves a workflow definition by ID, nil when absent
func (r *FlowRepository) GetByID(ctx context.Context, id int64) (*flow.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = ?`

	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id)
	wf, err := scanWorkflow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return wf, nil
}

// GetPublished retrieves the live definition for a document type, nil when
// none is published
func (r *FlowRepository) GetPublished(ctx context.Context, docType string) (*flow.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE document_type = ? AND published = 1`

	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, docType)
	wf, err := scanWorkflow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get published workflow", zap.String("document_type", docType), zap.Error(err))
		return nil, fmt.Errorf("failed to get published workflow: %w", err)
	}
	return wf, nil
}

// Update replaces the mutable fields of a workflow definition
func (r *FlowRepository) Update(ctx context.Context, wf *flow.Workflow) error {
	graph, err := json.Marshal(wf.Graph)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow graph: %w", err)
	}

	query := `
		UPDATE workflows
		SET name = ?, document_type = ?, version = ?, graph = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		wf.Name, wf.DocumentType, wf.Version, string(graph), wf.ID)
	if err != nil {
		r.logger.Error("Failed to update workflow", zap.Int64("id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return nil
}

// SetPublished flips the publish switch on a definition
func (r *FlowRepository) SetPublished(ctx context.Context, id int64, published bool) error {
	query := `UPDATE workflows SET published = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, published, id)
	if err != nil {
		r.logger.Error("Failed to set workflow published", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set workflow published: %w", err)
	}
	return nil
}

// List retrieves workflow definitions, newest first
func (r *FlowRepository) List(ctx context.Context, limit, offset int) ([]*flow.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var flows []*flow.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		flows = append(flows, wf)
	}
	return flows, rows.Err()
}

func scanWorkflow(scan func(dest ...interface{}) error) (*flow.Workflow, error) {
	var wf flow.Workflow
	var graph string

	err := scan(
		&wf.ID,
		&wf.Name,
		&wf.DocumentType,
		&wf.OwnerID,
		&wf.Version,
		&wf.Published,
		&graph,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	wf.Graph = flow.Parse([]byte(graph))
	return &wf, nil
}

// Verify interface compliance
var _ port.FlowRepository = (*FlowRepository)(nil)

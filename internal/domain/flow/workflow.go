package flow

import "time"

// Workflow is a stored, versioned workflow definition. The graph itself is
// immutable once published; editing bumps the version.
type Workflow struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	DocumentType string      `json:"document_type"`
	OwnerID      string      `json:"owner_id"`
	Version      int         `json:"version"`
	Published    bool        `json:"published"`
	Graph        *Definition `json:"graph"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

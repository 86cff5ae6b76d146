package document

import "time"

// WorkflowLog is one append-only audit entry recording a transition. Log
// rows are never edited or deleted.
type WorkflowLog struct {
	ID           int64     `json:"id"`
	DocumentType Type      `json:"document_type"`
	DocumentID   int64     `json:"document_id"`
	OperatorID   string    `json:"operator_id"`
	Action       Action    `json:"action"`
	FromStatus   string    `json:"from_status"`
	ToStatus     string    `json:"to_status"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

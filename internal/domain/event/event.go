package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/oasuite/procureflow/internal/domain/document"
)

// Event represents a domain event emitted after an authoritative commit.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	DocumentType  document.Type          `json:"document_type"`
	DocumentID    int64                  `json:"document_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with a generated ID and timestamp.
func NewEvent(eventType Type, docType document.Type, docID int64, payload map[string]interface{}) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		DocumentType:  docType,
		DocumentID:    docID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain.
func NewEventWithCorrelation(eventType Type, docType document.Type, docID int64, payload map[string]interface{}, correlationID string) *Event {
	e := NewEvent(eventType, docType, docID, payload)
	e.CorrelationID = correlationID
	return e
}

// GetPayloadString retrieves a string value from the payload.
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload.
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload.
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

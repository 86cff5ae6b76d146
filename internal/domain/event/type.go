package event

// Type identifies the type of domain event.
type Type string

const (
	TypeDocumentSubmitted  Type = "document.submitted"
	TypeDocumentApproved   Type = "document.approved"
	TypeDocumentRejected   Type = "document.rejected"
	TypeDocumentWithdrawn  Type = "document.withdrawn"
	TypeDocumentPaid       Type = "document.paid"
	TypeStatusChanged      Type = "document.status_changed"
	TypeSideChannelReached Type = "workflow.side_channel"
)

// String returns the string representation of the event type.
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants.
func (t Type) IsValid() bool {
	switch t {
	case TypeDocumentSubmitted,
		TypeDocumentApproved,
		TypeDocumentRejected,
		TypeDocumentWithdrawn,
		TypeDocumentPaid,
		TypeStatusChanged,
		TypeSideChannelReached:
		return true
	default:
		return false
	}
}

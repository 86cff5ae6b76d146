package flow

// EdgeCondition tags an edge with the outcome it applies to. An empty
// condition means the edge is always eligible.
type EdgeCondition string

const (
	EdgeApproved       EdgeCondition = "APPROVED"
	EdgeRejected       EdgeCondition = "REJECTED"
	EdgeConditionTrue  EdgeCondition = "CONDITION_TRUE"
	EdgeConditionFalse EdgeCondition = "CONDITION_FALSE"
	EdgeAlways         EdgeCondition = "ALWAYS"
)

// Edge is a directed connection between two nodes.
type Edge struct {
	Source    string        `json:"source"`
	Target    string        `json:"target"`
	Condition EdgeCondition `json:"condition,omitempty"`
}

// isDefault reports whether the edge is eligible regardless of outcome.
func (e Edge) isDefault() bool {
	return e.Condition == "" || e.Condition == EdgeAlways
}

package flow

// NodeType discriminates workflow node variants.
type NodeType string

const (
	NodeTypeStart     NodeType = "START"
	NodeTypeApproval  NodeType = "APPROVAL"
	NodeTypeCC        NodeType = "CC"
	NodeTypeNotify    NodeType = "NOTIFY"
	NodeTypeCondition NodeType = "CONDITION"
	NodeTypeEnd       NodeType = "END"
)

// ApproverMode selects how an approval node resolves its approver.
type ApproverMode string

const (
	ApproverModeUser ApproverMode = "USER"
	ApproverModeRole ApproverMode = "ROLE"
)

// RoleApplicant is the reserved recipient role that resolves to the
// document's originator at dispatch time.
const RoleApplicant = "applicant"

// Node is a typed step in an approval graph.
type Node interface {
	ID() string
	Type() NodeType
}

// StartNode is the single entry point of a graph.
type StartNode struct {
	NodeID string
}

func (n *StartNode) ID() string     { return n.NodeID }
func (n *StartNode) Type() NodeType { return NodeTypeStart }

// ApprovalNode pauses traversal until the resolved approver acts.
type ApprovalNode struct {
	NodeID  string
	Mode    ApproverMode
	UserIDs []string
	Roles   []string
}

func (n *ApprovalNode) ID() string     { return n.NodeID }
func (n *ApprovalNode) Type() NodeType { return NodeTypeApproval }

// CCNode fans out a non-blocking notification; traversal passes through it.
type CCNode struct {
	NodeID        string
	UserIDs       []string
	Roles         []string
	SendEmail     bool
	EmailTemplate string
}

func (n *CCNode) ID() string     { return n.NodeID }
func (n *CCNode) Type() NodeType { return NodeTypeCC }

// NotifyNode is a side-channel notification step, same contract as CC.
type NotifyNode struct {
	NodeID        string
	UserIDs       []string
	Roles         []string
	SendEmail     bool
	EmailTemplate string
}

func (n *NotifyNode) ID() string     { return n.NodeID }
func (n *NotifyNode) Type() NodeType { return NodeTypeNotify }

// ConditionNode is an auto-evaluated branch point; never a pause point.
type ConditionNode struct {
	NodeID      string
	Field       string
	FieldType   FieldType
	Operator    Operator
	Value       interface{}
	SecondValue interface{}
}

func (n *ConditionNode) ID() string     { return n.NodeID }
func (n *ConditionNode) Type() NodeType { return NodeTypeCondition }

// EndNode terminates traversal.
type EndNode struct {
	NodeID string
}

func (n *EndNode) ID() string     { return n.NodeID }
func (n *EndNode) Type() NodeType { return NodeTypeEnd }

// GenericNode preserves nodes with an unrecognized type. Hand-edited
// configurations are tolerated at rest; an unknown node behaves as a
// wait-type pause point during traversal.
type GenericNode struct {
	NodeID   string
	NodeType NodeType
}

func (n *GenericNode) ID() string     { return n.NodeID }
func (n *GenericNode) Type() NodeType { return n.NodeType }

// IsSideChannel reports whether a node is passed through during traversal
// and handed off to notification collaborators instead of pausing the flow.
func IsSideChannel(n Node) bool {
	switch n.Type() {
	case NodeTypeCC, NodeTypeNotify:
		return true
	}
	return false
}

package flow

import "encoding/json"

// Definition is an immutable directed graph of workflow nodes and edges.
// It round-trips losslessly through the persisted JSON exchange format.
type Definition struct {
	nodes   []Node
	edges   []Edge
	byID    map[string]Node
	outgoBy map[string][]Edge
}

// rawNode is the flat wire representation of a node. Which fields are
// meaningful depends on the type tag.
type rawNode struct {
	ID            string        `json:"id"`
	Type          NodeType      `json:"type"`
	Mode          ApproverMode  `json:"mode,omitempty"`
	UserIDs       []string      `json:"userIds,omitempty"`
	Roles         []string      `json:"roles,omitempty"`
	SendEmail     bool          `json:"sendEmail,omitempty"`
	EmailTemplate string        `json:"emailTemplate,omitempty"`
	Field         string        `json:"field,omitempty"`
	FieldType     FieldType     `json:"fieldType,omitempty"`
	Operator      Operator      `json:"operator,omitempty"`
	Value         interface{}   `json:"value,omitempty"`
	SecondValue   interface{}   `json:"secondValue,omitempty"`
}

type rawDefinition struct {
	Nodes []rawNode `json:"nodes"`
	Edges []Edge    `json:"edges"`
}

// NewDefinition builds a definition from already-typed nodes and edges.
func NewDefinition(nodes []Node, edges []Edge) *Definition {
	d := &Definition{
		nodes:   nodes,
		edges:   edges,
		byID:    make(map[string]Node, len(nodes)),
		outgoBy: make(map[string][]Edge),
	}
	for _, n := range nodes {
		d.byID[n.ID()] = n
	}
	for _, e := range edges {
		d.outgoBy[e.Source] = append(d.outgoBy[e.Source], e)
	}
	return d
}

// Parse normalizes a JSON-shaped graph into a definition. Malformed input
// degrades to an empty graph rather than failing; callers must tolerate
// partially specified graphs coming from hand-edited configuration.
func Parse(data []byte) *Definition {
	var raw rawDefinition
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewDefinition(nil, nil)
	}

	nodes := make([]Node, 0, len(raw.Nodes))
	for _, rn := range raw.Nodes {
		nodes = append(nodes, rn.toNode())
	}
	return NewDefinition(nodes, raw.Edges)
}

func (rn rawNode) toNode() Node {
	switch rn.Type {
	case NodeTypeStart:
		return &StartNode{NodeID: rn.ID}
	case NodeTypeApproval:
		return &ApprovalNode{NodeID: rn.ID, Mode: rn.Mode, UserIDs: rn.UserIDs, Roles: rn.Roles}
	case NodeTypeCC:
		return &CCNode{NodeID: rn.ID, UserIDs: rn.UserIDs, Roles: rn.Roles, SendEmail: rn.SendEmail, EmailTemplate: rn.EmailTemplate}
	case NodeTypeNotify:
		return &NotifyNode{NodeID: rn.ID, UserIDs: rn.UserIDs, Roles: rn.Roles, SendEmail: rn.SendEmail, EmailTemplate: rn.EmailTemplate}
	case NodeTypeCondition:
		return &ConditionNode{NodeID: rn.ID, Field: rn.Field, FieldType: rn.FieldType, Operator: rn.Operator, Value: rn.Value, SecondValue: rn.SecondValue}
	case NodeTypeEnd:
		return &EndNode{NodeID: rn.ID}
	default:
		return &GenericNode{NodeID: rn.ID, NodeType: rn.Type}
	}
}

func toRawNode(n Node) rawNode {
	switch t := n.(type) {
	case *StartNode:
		return rawNode{ID: t.NodeID, Type: NodeTypeStart}
	case *ApprovalNode:
		return rawNode{ID: t.NodeID, Type: NodeTypeApproval, Mode: t.Mode, UserIDs: t.UserIDs, Roles: t.Roles}
	case *CCNode:
		return rawNode{ID: t.NodeID, Type: NodeTypeCC, UserIDs: t.UserIDs, Roles: t.Roles, SendEmail: t.SendEmail, EmailTemplate: t.EmailTemplate}
	case *NotifyNode:
		return rawNode{ID: t.NodeID, Type: NodeTypeNotify, UserIDs: t.UserIDs, Roles: t.Roles, SendEmail: t.SendEmail, EmailTemplate: t.EmailTemplate}
	case *ConditionNode:
		return rawNode{ID: t.NodeID, Type: NodeTypeCondition, Field: t.Field, FieldType: t.FieldType, Operator: t.Operator, Value: t.Value, SecondValue: t.SecondValue}
	case *EndNode:
		return rawNode{ID: t.NodeID, Type: NodeTypeEnd}
	default:
		return rawNode{ID: n.ID(), Type: n.Type()}
	}
}

// MarshalJSON writes the definition back into the exchange format.
func (d *Definition) MarshalJSON() ([]byte, error) {
	raw := rawDefinition{
		Nodes: make([]rawNode, 0, len(d.nodes)),
		Edges: d.edges,
	}
	if raw.Edges == nil {
		raw.Edges = []Edge{}
	}
	for _, n := range d.nodes {
		raw.Nodes = append(raw.Nodes, toRawNode(n))
	}
	return json.Marshal(raw)
}

// UnmarshalJSON applies the same lenient normalization as Parse.
func (d *Definition) UnmarshalJSON(data []byte) error {
	*d = *Parse(data)
	return nil
}

// Nodes returns the node list in authoring order.
func (d *Definition) Nodes() []Node { return d.nodes }

// Edges returns the edge list in authoring order.
func (d *Definition) Edges() []Edge { return d.edges }

// Node looks up a node by id.
func (d *Definition) Node(id string) (Node, bool) {
	n, ok := d.byID[id]
	return n, ok
}

// Start returns the graph's START node, or nil when none exists.
func (d *Definition) Start() Node {
	for _, n := range d.nodes {
		if n.Type() == NodeTypeStart {
			return n
		}
	}
	return nil
}

// outgoing returns the edges leaving a node.
func (d *Definition) outgoing(id string) []Edge {
	return d.outgoBy[id]
}

// Warning is an authoring-time validation finding. Warnings never block
// loading or traversal; correctness is enforced lazily at runtime.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

const (
	WarnNoStart        = "NO_START_NODE"
	WarnMultipleStarts = "MULTIPLE_START_NODES"
	WarnUnreachable    = "UNREACHABLE_NODE"
	WarnDanglingEdge   = "DANGLING_EDGE_TARGET"
)

// Validate reports structural problems an administrator should fix before
// publishing: the graph must have exactly one START, every other node should
// be reachable from it, and edges should not point at missing nodes.
func (d *Definition) Validate() []Warning {
	var warnings []Warning

	var startID string
	starts := 0
	for _, n := range d.nodes {
		if n.Type() == NodeTypeStart {
			starts++
			if startID == "" {
				startID = n.ID()
			}
		}
	}
	switch {
	case starts == 0:
		warnings = append(warnings, Warning{Code: WarnNoStart, Message: "graph has no START node"})
	case starts > 1:
		warnings = append(warnings, Warning{Code: WarnMultipleStarts, Message: "graph has more than one START node"})
	}

	for _, e := range d.edges {
		if _, ok := d.byID[e.Target]; !ok {
			warnings = append(warnings, Warning{
				Code:    WarnDanglingEdge,
				Message: "edge target does not exist: " + e.Target,
				NodeID:  e.Source,
			})
		}
	}

	if startID != "" {
		reachable := map[string]bool{startID: true}
		queue := []string{startID}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, e := range d.outgoing(cur) {
				if !reachable[e.Target] {
					reachable[e.Target] = true
					queue = append(queue, e.Target)
				}
			}
		}
		for _, n := range d.nodes {
			if n.Type() != NodeTypeStart && !reachable[n.ID()] {
				warnings = append(warnings, Warning{
					Code:    WarnUnreachable,
					Message: "node is not reachable from START: " + n.ID(),
					NodeID:  n.ID(),
				})
			}
		}
	}

	return warnings
}

package flow

import "fmt"

// Action is the approval outcome driving the first hop of a traversal.
type Action string

const (
	ActionApproved Action = "APPROVED"
	ActionRejected Action = "REJECTED"
)

// maxHops bounds a single traversal. Workflow graphs are user-authored
// configuration and may contain cycles; when the ceiling is hit the
// traversal returns whatever it accumulated instead of crashing the
// document action.
const maxHops = 100

// Step is the result of a traversal: the next pause point, if any, and the
// side-channel nodes passed on the way there.
type Step struct {
	// Next is the node the document pauses on (APPROVAL, END, or another
	// wait-type node). Nil means no next step was found: a dead end, a
	// dangling edge target, or cycle-guard exhaustion. That is not an
	// error; the caller treats it as a blocked transition.
	Next Node

	// SideChannels lists CC/NOTIFY nodes passed during traversal, in order.
	SideChannels []Node
}

// CalculateNextStep walks the graph from the current pause point to the next
// one. An empty currentNodeID starts from the graph's START node. The action
// selects the outgoing edge on the first hop only; condition nodes are
// auto-evaluated against the field snapshot as they are reached.
//
// The computation is pure: identical inputs always produce identical steps.
func CalculateNextStep(def *Definition, currentNodeID string, action Action, context map[string]interface{}) (*Step, error) {
	var current Node
	if currentNodeID == "" {
		current = def.Start()
		if current == nil {
			return nil, fmt.Errorf("%w: graph has no START node", ErrNodeNotFound)
		}
	} else {
		n, ok := def.Node(currentNodeID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, currentNodeID)
		}
		current = n
	}

	step := &Step{}
	firstHop := true

	for hop := 0; hop < maxHops; hop++ {
		edge, ok := selectEdge(def, current, firstHop, action, context)
		firstHop = false
		if !ok {
			// Dead end: no matching edge leaves this node.
			return step, nil
		}

		target, ok := def.Node(edge.Target)
		if !ok {
			// Dangling edge target; tolerate the corrupted graph and stop.
			return step, nil
		}

		if IsSideChannel(target) {
			step.SideChannels = append(step.SideChannels, target)
			current = target
			continue
		}
		if target.Type() == NodeTypeCondition {
			current = target
			continue
		}

		step.Next = target
		return step, nil
	}

	// Cycle guard exhausted; degrade to "no next step".
	return step, nil
}

// selectEdge picks the outgoing edge to follow from the processing node.
func selectEdge(def *Definition, current Node, firstHop bool, action Action, context map[string]interface{}) (Edge, bool) {
	edges := def.outgoing(current.ID())
	if len(edges) == 0 {
		return Edge{}, false
	}

	if cond, ok := current.(*ConditionNode); ok {
		want := EdgeConditionFalse
		if Evaluate(cond, context) {
			want = EdgeConditionTrue
		}
		return pickEdge(edges, EdgeCondition(want))
	}

	if firstHop && action != "" {
		return pickEdge(edges, EdgeCondition(action))
	}

	return pickEdge(edges, "")
}

// pickEdge returns the edge tagged with the wanted condition, falling back
// to an untagged/ALWAYS edge when the specific branch edge is absent.
func pickEdge(edges []Edge, want EdgeCondition) (Edge, bool) {
	if want != "" {
		for _, e := range edges {
			if e.Condition == want {
				return e, true
			}
		}
	}
	for _, e := range edges {
		if e.isDefault() {
			return e, true
		}
	}
	return Edge{}, false
}

// HistoricalApprovals collects every APPROVAL node reachable backward from
// the current node, in breadth-first order. The result feeds audit and
// history display only; it plays no part in control flow.
func HistoricalApprovals(def *Definition, currentNodeID string) ([]*ApprovalNode, error) {
	if _, ok := def.Node(currentNodeID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, currentNodeID)
	}

	sourcesOf := make(map[string][]string)
	for _, e := range def.Edges() {
		sourcesOf[e.Target] = append(sourcesOf[e.Target], e.Source)
	}

	var approvals []*ApprovalNode
	visited := map[string]bool{currentNodeID: true}
	queue := []string{currentNodeID}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, src := range sourcesOf[cur] {
			if visited[src] {
				continue
			}
			visited[src] = true
			queue = append(queue, src)
			if n, ok := def.Node(src); ok {
				if ap, isApproval := n.(*ApprovalNode); isApproval {
					approvals = append(approvals, ap)
				}
			}
		}
	}

	return approvals, nil
}

package flow

import "errors"

// ErrNodeNotFound is returned when a traversal is asked to start from a node
// that does not exist in the graph, or the graph has no START node. The
// presentation layer maps it to the NODE_NOT_FOUND error code.
var ErrNodeNotFound = errors.New("workflow node not found")

// CodeNodeNotFound is the wire-level code for ErrNodeNotFound.
const CodeNodeNotFound = "NODE_NOT_FOUND"

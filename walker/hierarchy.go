package walker

import (
	"context"

	"github.com/PeerDB-io/gcp-inventory/model"
	"github.com/PeerDB-io/gcp-inventory/pagination"
)

// Node is one resource in a hierarchy walk. The root of every walk is a
// project node whose ID is the project id.
type Node struct {
	ID     string
	Type   string
	Parent *Node
	Record model.Record
}

// Ancestor returns the closest ancestor of the given type, or nil.
func (n *Node) Ancestor(typ string) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == typ {
			return p
		}
	}
	return nil
}

const ProjectNode = "project"

// Level lists the children of a parent node, one page per call.
type Level struct {
	Name string
	List func(parent *Node) pagination.ListFunc[*Node]
}

// Hierarchy describes how to reach the leaf resources of a kind below a project.
// Keep filters the items of the last level; Fetch, when set, replaces each kept
// leaf's listing payload with a full detail record, one call per leaf.
type Hierarchy struct {
	Levels []Level
	Keep   func(leaf *Node) bool
	Fetch  func(ctx context.Context, leaf *Node) (model.Record, error)
}

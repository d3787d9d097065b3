package ecs

import "fmt"

// NodeFlags holds the lifecycle state of a node.
type NodeFlags uint8

const (
	NodeCreated NodeFlags = 1 << iota // The entity is alive
)

// eventFlags marks nodes that have per-entity handlers, so dispatch can skip the handler maps for
// everyone else.
type eventFlags uint8

const (
	hasComponentHandlers eventFlags = 1 << iota
	hasTagHandlers
	hasSignalHandlers
)

// EntityNode is the node table entry of one entity id. The node of a live entity points at its
// archetype and the row holding its components.
type EntityNode struct {
	id          int
	pid         int64
	archetype   *Archetype // nil while the id is unused or deleted
	compIndex   int        // Row inside archetype
	scriptIndex int        // Index into the store's script table, 0 if the entity has no scripts
	flags       NodeFlags
	events      eventFlags
}

func (n *EntityNode) ID() int { return n.id }
func (n *EntityNode) Pid() int64 { return n.pid }
func (n *EntityNode) Archetype() *Archetype { return n.archetype }
func (n *EntityNode) CompIndex() int { return n.compIndex }
func (n *EntityNode) Flags() NodeFlags { return n.flags }
func (n *EntityNode) IsCreated() bool { return n.flags&NodeCreated != 0 }

func (n *EntityNode) String() string {
	if n.archetype == nil {
		return fmt.Sprintf("id: %d  (deleted)", n.id)
	}
	return fmt.Sprintf("id: %d  %s", n.id, n.archetype)
}

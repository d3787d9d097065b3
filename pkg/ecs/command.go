package ecs

import (
	"github.com/rotisserie/eris"
)

// ComponentChange is the kind of a recorded component command.
type ComponentChange uint8

const (
	ComponentChangeAdd ComponentChange = iota + 1
	ComponentChangeSet
	ComponentChangeRemove
)

// TagChange is the kind of a recorded tag command.
type TagChange uint8

const (
	TagChangeAdd TagChange = iota + 1
	TagChangeRemove
)

// ScriptChange is the kind of a recorded script command.
type ScriptChange uint8

const (
	ScriptChangeAdd ScriptChange = iota + 1
	ScriptChangeRemove
)

// EntityCommandKind is the kind of a recorded entity command.
type EntityCommandKind uint8

const (
	EntityCreate EntityCommandKind = iota + 1
	EntityDelete
)

// ComponentCommand is a recorded add, set, or remove of component T.
type ComponentCommand[T Component] struct {
	Change    ComponentChange
	EntityID  int
	Component T
}

// TagCommand is a recorded add or remove of a single tag.
type TagCommand struct {
	Change   TagChange
	EntityID int
	TagIndex int
}

// ScriptCommand is a recorded add or remove of a script.
type ScriptCommand struct {
	Change   ScriptChange
	EntityID int
	Type     *ScriptType
	Script   Script
}

// EntityCommand is a recorded entity creation or deletion.
type EntityCommand struct {
	Kind     EntityCommandKind
	EntityID int
}

// EntityChange is the identity an entity will have once playback migrates it.
type EntityChange struct {
	ComponentTypes ComponentTypes
	Tags           Tags
}

// commandsFactory creates an empty command list for one component type.
type commandsFactory func() componentCommands

// componentCommands is the type-erased view of the recorded commands of one component type.
type componentCommands interface {
	componentType() *ComponentType
	len() int
	appendRemove(id int)
	// updateTypes applies the adds and removes to the accumulated entity changes.
	updateTypes(pb *playback) error
	// execute writes the recorded values into the heaps of the migrated entities.
	execute(pb *playback)
	reset()
}

type componentCommandList[T Component] struct {
	ct       *ComponentType
	commands []ComponentCommand[T]
}

func newCommandsFactory[T Component](ct *ComponentType) commandsFactory {
	return func() componentCommands {
		return &componentCommandList[T]{ct: ct}
	}
}

func (l *componentCommandList[T]) componentType() *ComponentType { return l.ct }

func (l *componentCommandList[T]) len() int { return len(l.commands) }

func (l *componentCommandList[T]) appendRemove(id int) {
	l.commands = append(l.commands, ComponentCommand[T]{Change: ComponentChangeRemove, EntityID: id})
}

func (l *componentCommandList[T]) updateTypes(pb *playback) error {
	for _, cmd := range l.commands {
		change, err := pb.change(cmd.EntityID)
		if err != nil {
			return eris.Wrapf(err, "%s command", l.ct.name)
		}
		switch cmd.Change {
		case ComponentChangeAdd:
			change.ComponentTypes.Add(l.ct)
		case ComponentChangeRemove:
			change.ComponentTypes.Remove(l.ct)
		case ComponentChangeSet:
		default:
			return eris.Wrapf(ErrInvalidCommand, "unexpected component change %d for %s on entity %d",
				cmd.Change, l.ct.name, cmd.EntityID)
		}
	}
	return nil
}

// execute writes values in recording order so the last add or set wins. Rows whose entity ended up
// without the component (added then removed, or set without an add) are skipped.
func (l *componentCommandList[T]) execute(pb *playback) {
	nodes := pb.store.nodes
	for _, cmd := range l.commands {
		if cmd.Change == ComponentChangeRemove {
			continue
		}
		node := &nodes[cmd.EntityID]
		h := heapOf[T](node.archetype, l.ct)
		if h == nil {
			continue
		}
		h.set(node.compIndex, cmd.Component)
	}
}

func (l *componentCommandList[T]) reset() {
	clear(l.commands)
	l.commands = l.commands[:0]
}

func (v componentValue[T]) record(data *commandBufferData, ct *ComponentType, change ComponentChange, id int) {
	list := data.commandsFor(ct).(*componentCommandList[T]) //nolint:forcetypeassert // created from T
	list.commands = append(list.commands, ComponentCommand[T]{Change: change, EntityID: id, Component: v.value})
}

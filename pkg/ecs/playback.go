package ecs

import (
	"github.com/rotisserie/eris"
)

// entityChange tracks one entity touched by a playback: its identity when first touched and the
// identity it accumulates from the recorded commands.
type entityChange struct {
	id     int
	old    EntityChange
	target EntityChange
}

// playback is the per-buffer scratch state of Playback. It's reset, not reallocated, between runs.
type playback struct {
	store   *EntityStore
	index   map[int]int // entity id -> position in changes
	changes []entityChange
}

func newPlayback() playback {
	return playback{index: make(map[int]int)}
}

func (pb *playback) reset() {
	clear(pb.index)
	pb.changes = pb.changes[:0]
	pb.store = nil
}

// change returns the accumulator of entity id, seeding it from the entity's current archetype. The
// pointer is valid until the next call.
func (pb *playback) change(id int) (*EntityChange, error) {
	if i, ok := pb.index[id]; ok {
		return &pb.changes[i].target, nil
	}
	node, err := pb.store.aliveNode(id)
	if err != nil {
		return nil, err
	}
	current := EntityChange{ComponentTypes: node.archetype.components, Tags: node.archetype.tags}
	pb.index[id] = len(pb.changes)
	pb.changes = append(pb.changes, entityChange{id: id, old: current, target: current})
	return &pb.changes[len(pb.changes)-1].target, nil
}

// Playback applies the recorded commands in this order: entity creation and deletion, tag changes,
// component additions and removals, one archetype migration per touched entity, component values,
// scripts, and finally the added/removed/tags-changed events of the migrated entities. It stops at the
// first malformed command; changes applied before that point stay applied, and once the migrations
// have run their events are emitted even if a later script command fails. The recorded commands are
// cleared whether or not Playback succeeds.
func (cb *CommandBuffer) Playback() error {
	data, err := cb.usable()
	if err != nil {
		return err
	}
	s := cb.store
	pb := &data.playback
	pb.store = s

	stats := playbackStats{
		entities:   len(data.entityCommands),
		tags:       len(data.tagCommands),
		components: data.componentCommandCount(),
		scripts:    len(data.scriptCommands),
	}
	migrated := false
	defer func() {
		if migrated {
			pb.emitEvents()
		}
		data.reset()
		if !cb.ReuseBuffer {
			s.returnBufferData(data)
			cb.data = nil
			cb.state = bufferPlayed
		}
	}()

	if err := pb.executeEntityCommands(data.entityCommands); err != nil {
		return err
	}
	if err := pb.prepareTagChanges(data.tagCommands); err != nil {
		return err
	}
	for i := range data.changedComponents.All() {
		if err := data.componentCommands[i].updateTypes(pb); err != nil {
			return err
		}
	}
	stats.moved = pb.updateEntityArchetypes()
	migrated = true
	for i := range data.changedComponents.All() {
		data.componentCommands[i].execute(pb)
	}
	if err := pb.executeScriptCommands(data.scriptCommands); err != nil {
		return err
	}

	logPlayback(&s.logger, stats)
	return nil
}

func (pb *playback) executeEntityCommands(commands []EntityCommand) error {
	s := pb.store
	for _, cmd := range commands {
		switch cmd.Kind {
		case EntityCreate:
			if s.isAlive(cmd.EntityID) {
				continue
			}
			s.createEntityNode(cmd.EntityID, s.newPid(cmd.EntityID))
		case EntityDelete:
			if err := s.DeleteEntity(cmd.EntityID); err != nil {
				return eris.Wrap(err, "delete entity command")
			}
		default:
			return eris.Wrapf(ErrInvalidCommand, "unexpected entity command %d on entity %d",
				cmd.Kind, cmd.EntityID)
		}
	}
	return nil
}

func (pb *playback) prepareTagChanges(commands []TagCommand) error {
	for _, cmd := range commands {
		change, err := pb.change(cmd.EntityID)
		if err != nil {
			return eris.Wrap(err, "tag command")
		}
		switch cmd.Change {
		case TagChangeAdd:
			change.Tags.bits.set(cmd.TagIndex)
		case TagChangeRemove:
			change.Tags.bits.clear(cmd.TagIndex)
		default:
			return eris.Wrapf(ErrInvalidCommand, "unexpected tag change %d on entity %d", cmd.Change, cmd.EntityID)
		}
	}
	return nil
}

// updateEntityArchetypes moves every changed entity to its final archetype and returns the number
// of migrations.
func (pb *playback) updateEntityArchetypes() int {
	s := pb.store
	moved := 0
	for i := range pb.changes {
		c := &pb.changes[i]
		if c.target == c.old {
			continue
		}
		s.moveEntity(&s.nodes[c.id], s.GetArchetype(c.target.ComponentTypes, c.target.Tags))
		moved++
	}
	return moved
}

func (pb *playback) executeScriptCommands(commands []ScriptCommand) error {
	s := pb.store
	for _, cmd := range commands {
		node, err := s.aliveNode(cmd.EntityID)
		if err != nil {
			return eris.Wrap(err, "script command")
		}
		switch cmd.Change {
		case ScriptChangeAdd:
			s.addScript(node, cmd.Type, cmd.Script)
		case ScriptChangeRemove:
			s.removeScript(node, cmd.Type)
		default:
			return eris.Wrapf(ErrInvalidCommand, "unexpected script change %d on entity %d",
				cmd.Change, cmd.EntityID)
		}
	}
	return nil
}

// emitEvents reports the structural difference of every migrated entity. Handlers may mutate the
// store, so nodes are looked up again for every event.
func (pb *playback) emitEvents() {
	s := pb.store
	for _, c := range pb.changes {
		if c.target == c.old {
			continue
		}
		for i := range c.target.ComponentTypes.Difference(c.old.ComponentTypes).All() {
			if !s.isAlive(c.id) {
				break
			}
			s.emitComponentChanged(&s.nodes[c.id], ComponentAdded, s.schema.Component(i))
		}
		for i := range c.old.ComponentTypes.Difference(c.target.ComponentTypes).All() {
			if !s.isAlive(c.id) {
				break
			}
			s.emitComponentChanged(&s.nodes[c.id], ComponentRemoved, s.schema.Component(i))
		}
		if c.target.Tags != c.old.Tags && s.isAlive(c.id) {
			s.emitTagsChanged(&s.nodes[c.id], c.target.Tags, c.old.Tags)
		}
	}
}

package ecs

import (
	"github.com/rotisserie/eris"
)

type bufferState uint8

const (
	bufferActive   bufferState = iota
	bufferReturned             // ReturnBuffer was called
	bufferPlayed               // Playback ran without ReuseBuffer
)

// CommandBuffer records structural changes and applies them later with Playback. Recording doesn't
// touch archetypes or the node table, so a buffer can be filled on any goroutine as long as each
// goroutine uses its own buffer. Playback must run on the store's owner goroutine.
//
// Changes of one entity are coalesced: however many tags and components a buffer adds or removes,
// Playback moves the entity to its final archetype exactly once.
type CommandBuffer struct {
	store *EntityStore
	data  *commandBufferData
	state bufferState

	// ReuseBuffer keeps the buffer usable after Playback. Without it the recorded arrays go back to
	// the store's pool and any further use fails with ErrBufferReused.
	ReuseBuffer bool
}

// commandBufferData holds the recorded commands. It's pooled by the store.
type commandBufferData struct {
	componentCommands []componentCommands // Indexed by component schema index, nil until used
	changedComponents ComponentTypes
	tagCommands       []TagCommand
	scriptCommands    []ScriptCommand
	entityCommands    []EntityCommand
	playback          playback
}

func newCommandBufferData() *commandBufferData {
	return &commandBufferData{playback: newPlayback()}
}

// commandsFor returns the command list of ct, creating it on first use.
func (d *commandBufferData) commandsFor(ct *ComponentType) componentCommands {
	if ct.index >= len(d.componentCommands) {
		grown := make([]componentCommands, ct.index+1)
		copy(grown, d.componentCommands)
		d.componentCommands = grown
	}
	list := d.componentCommands[ct.index]
	if list == nil {
		list = ct.newCommands()
		d.componentCommands[ct.index] = list
	}
	d.changedComponents.Add(ct)
	return list
}

func (d *commandBufferData) componentCommandCount() int {
	n := 0
	for i := range d.changedComponents.All() {
		n += d.componentCommands[i].len()
	}
	return n
}

// reset drops all recorded commands and keeps the allocated arrays.
func (d *commandBufferData) reset() {
	for i := range d.changedComponents.All() {
		d.componentCommands[i].reset()
	}
	d.changedComponents = ComponentTypes{}
	d.tagCommands = d.tagCommands[:0]
	clear(d.scriptCommands)
	d.scriptCommands = d.scriptCommands[:0]
	d.entityCommands = d.entityCommands[:0]
	d.playback.reset()
}

// CreateCommandBuffer returns an empty buffer backed by pooled arrays when available. Must be called
// on the owner goroutine.
func (s *EntityStore) CreateCommandBuffer() *CommandBuffer {
	return &CommandBuffer{store: s, data: s.takeBufferData()}
}

func (cb *CommandBuffer) usable() (*commandBufferData, error) {
	switch cb.state {
	case bufferReturned:
		return nil, ErrBufferReturned
	case bufferPlayed:
		return nil, ErrBufferReused
	case bufferActive:
	}
	return cb.data, nil
}

// -------------------------------------------------------------------------------------------------
// Recording
// -------------------------------------------------------------------------------------------------

// AddComponent records adding value to entity id. If the entity already has the component the value
// is overwritten.
func (cb *CommandBuffer) AddComponent(id int, value ComponentValue) error {
	return cb.recordComponent(id, value, ComponentChangeAdd)
}

// SetComponent records overwriting the component of entity id. It doesn't add the component.
func (cb *CommandBuffer) SetComponent(id int, value ComponentValue) error {
	return cb.recordComponent(id, value, ComponentChangeSet)
}

func (cb *CommandBuffer) recordComponent(id int, value ComponentValue, change ComponentChange) error {
	data, err := cb.usable()
	if err != nil {
		return err
	}
	ct := value.componentType(cb.store.schema)
	value.record(data, ct, change, id)
	return nil
}

// RemoveComponent records removing ct from entity id.
func (cb *CommandBuffer) RemoveComponent(id int, ct *ComponentType) error {
	data, err := cb.usable()
	if err != nil {
		return err
	}
	data.commandsFor(ct).appendRemove(id)
	return nil
}

// AddTag records adding tt to entity id.
func (cb *CommandBuffer) AddTag(id int, tt *TagType) error {
	return cb.recordTags(id, NewTags(tt), TagChangeAdd)
}

// RemoveTag records removing tt from entity id.
func (cb *CommandBuffer) RemoveTag(id int, tt *TagType) error {
	return cb.recordTags(id, NewTags(tt), TagChangeRemove)
}

// AddTags records adding every tag in tags to entity id.
func (cb *CommandBuffer) AddTags(id int, tags Tags) error {
	return cb.recordTags(id, tags, TagChangeAdd)
}

// RemoveTags records removing every tag in tags from entity id.
func (cb *CommandBuffer) RemoveTags(id int, tags Tags) error {
	return cb.recordTags(id, tags, TagChangeRemove)
}

func (cb *CommandBuffer) recordTags(id int, tags Tags, change TagChange) error {
	data, err := cb.usable()
	if err != nil {
		return err
	}
	for index := range tags.All() {
		data.tagCommands = append(data.tagCommands, TagCommand{Change: change, EntityID: id, TagIndex: index})
	}
	return nil
}

// AddScript records attaching script to entity id. The script's type must be registered.
func (cb *CommandBuffer) AddScript(id int, script Script) error {
	data, err := cb.usable()
	if err != nil {
		return err
	}
	st, err := cb.store.schema.scriptTypeOfValue(script)
	if err != nil {
		return err
	}
	data.scriptCommands = append(data.scriptCommands,
		ScriptCommand{Change: ScriptChangeAdd, EntityID: id, Type: st, Script: script})
	return nil
}

// RemoveScript records detaching the script of type st from entity id.
func (cb *CommandBuffer) RemoveScript(id int, st *ScriptType) error {
	data, err := cb.usable()
	if err != nil {
		return err
	}
	data.scriptCommands = append(data.scriptCommands,
		ScriptCommand{Change: ScriptChangeRemove, EntityID: id, Type: st})
	return nil
}

// CreateEntity reserves an entity id right away and records its creation. The id can be used in
// further commands of this buffer.
func (cb *CommandBuffer) CreateEntity() (int, error) {
	data, err := cb.usable()
	if err != nil {
		return 0, err
	}
	id := cb.store.reserveBufferID()
	data.entityCommands = append(data.entityCommands, EntityCommand{Kind: EntityCreate, EntityID: id})
	return id, nil
}

// DeleteEntity records deleting entity id.
func (cb *CommandBuffer) DeleteEntity(id int) error {
	data, err := cb.usable()
	if err != nil {
		return err
	}
	data.entityCommands = append(data.entityCommands, EntityCommand{Kind: EntityDelete, EntityID: id})
	return nil
}

// -------------------------------------------------------------------------------------------------
// Inspection and lifecycle
// -------------------------------------------------------------------------------------------------

func (cb *CommandBuffer) ComponentCommandsCount() int {
	if cb.data == nil {
		return 0
	}
	return cb.data.componentCommandCount()
}

func (cb *CommandBuffer) TagCommandsCount() int {
	if cb.data == nil {
		return 0
	}
	return len(cb.data.tagCommands)
}

func (cb *CommandBuffer) ScriptCommandsCount() int {
	if cb.data == nil {
		return 0
	}
	return len(cb.data.scriptCommands)
}

func (cb *CommandBuffer) EntityCommandsCount() int {
	if cb.data == nil {
		return 0
	}
	return len(cb.data.entityCommands)
}

// Clear drops all recorded commands. Ids reserved by CreateEntity stay reserved.
func (cb *CommandBuffer) Clear() error {
	data, err := cb.usable()
	if err != nil {
		return err
	}
	data.reset()
	return nil
}

// ReturnBuffer hands the buffer's arrays back to the store without playing it back. The buffer can't
// be used afterwards. Must be called on the owner goroutine.
func (cb *CommandBuffer) ReturnBuffer() error {
	if cb.data == nil {
		return eris.Wrap(ErrBufferReturned, "buffer was already returned")
	}
	cb.data.reset()
	cb.store.returnBufferData(cb.data)
	cb.data = nil
	cb.state = bufferReturned
	return nil
}

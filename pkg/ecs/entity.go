package ecs

import (
	"github.com/rotisserie/eris"
)

// Entity is a handle to an entity id in a store. The zero value is the null entity. Handles stay
// valid across structural changes since they only hold the id.
type Entity struct {
	store *EntityStore
	id    int
}

func (e Entity) ID() int { return e.id }
func (e Entity) Store() *EntityStore { return e.store }
func (e Entity) IsNull() bool { return e.store == nil }
func (e Entity) IsAlive() bool { return e.store != nil && e.store.isAlive(e.id) }

func (e Entity) node() (*EntityNode, error) {
	if e.store == nil {
		return nil, eris.Wrap(ErrEntityNotFound, "null entity")
	}
	return e.store.aliveNode(e.id)
}

// Pid returns the permanent id, or 0 if the entity isn't alive.
func (e Entity) Pid() int64 {
	node, err := e.node()
	if err != nil {
		return 0
	}
	return node.pid
}

// Archetype returns the entity's archetype, or nil if the entity isn't alive.
func (e Entity) Archetype() *Archetype {
	node, err := e.node()
	if err != nil {
		return nil
	}
	return node.archetype
}

func (e Entity) ComponentTypes() ComponentTypes {
	if arch := e.Archetype(); arch != nil {
		return arch.components
	}
	return ComponentTypes{}
}

func (e Entity) Tags() Tags {
	if arch := e.Archetype(); arch != nil {
		return arch.tags
	}
	return Tags{}
}

// Delete deletes the entity from its store.
func (e Entity) Delete() error {
	if e.store == nil {
		return eris.Wrap(ErrEntityNotFound, "null entity")
	}
	return e.store.DeleteEntity(e.id)
}

// Batch returns an empty batch for the entity.
func (e Entity) Batch() *EntityBatch {
	return newEntityBatch(e.store, e.id)
}

// -------------------------------------------------------------------------------------------------
// Components
// -------------------------------------------------------------------------------------------------

// ComponentValue is a component value paired with its Go type, see With.
type ComponentValue interface {
	componentType(s *Schema) *ComponentType
	component() Component
	writeTo(arch *Archetype, row int, ct *ComponentType)
	record(cb *commandBufferData, ct *ComponentType, change ComponentChange, id int)
}

type componentValue[T Component] struct {
	value T
}

// With wraps a component value so several components can be passed to a single call.
func With[T Component](value T) ComponentValue {
	return componentValue[T]{value: value}
}

func (v componentValue[T]) componentType(s *Schema) *ComponentType {
	return ComponentTypeOf[T](s)
}

func (v componentValue[T]) component() Component { return v.value }

func (v componentValue[T]) writeTo(arch *Archetype, row int, ct *ComponentType) {
	heapOf[T](arch, ct).set(row, v.value)
}

func heapOf[T Component](arch *Archetype, ct *ComponentType) *heap[T] {
	h, _ := arch.heapOf(ct.index).(*heap[T])
	return h
}

// AddComponent adds value to the entity. If the entity already has a T the value is overwritten and
// the change is reported as an update.
func AddComponent[T Component](e Entity, value T) error {
	node, err := e.node()
	if err != nil {
		return err
	}
	s := e.store
	ct := ComponentTypeOf[T](s.schema)

	action := ComponentUpdated
	if !node.archetype.components.Has(ct) {
		components := node.archetype.components
		components.Add(ct)
		s.moveEntity(node, s.GetArchetype(components, node.archetype.tags))
		action = ComponentAdded
	}
	heapOf[T](node.archetype, ct).set(node.compIndex, value)

	s.emitComponentChanged(node, action, ct)
	return nil
}

// SetComponent overwrites the entity's T. The entity must already have a T.
func SetComponent[T Component](e Entity, value T) error {
	node, err := e.node()
	if err != nil {
		return err
	}
	ct := ComponentTypeOf[T](e.store.schema)
	h := heapOf[T](node.archetype, ct)
	if h == nil {
		return eris.Wrapf(ErrComponentNotFound, "entity %d: %s", e.id, ct.name)
	}
	h.set(node.compIndex, value)

	e.store.emitComponentChanged(node, ComponentUpdated, ct)
	return nil
}

// GetComponent returns a copy of the entity's T.
func GetComponent[T Component](e Entity) (T, error) {
	ptr, err := GetComponentPtr[T](e)
	if err != nil {
		var zero T
		return zero, err
	}
	return *ptr, nil
}

// GetComponentPtr returns a pointer to the entity's T inside the heap. The pointer is invalidated
// by the next structural change of the entity's archetype.
func GetComponentPtr[T Component](e Entity) (*T, error) {
	node, err := e.node()
	if err != nil {
		return nil, err
	}
	ct := ComponentTypeOf[T](e.store.schema)
	h := heapOf[T](node.archetype, ct)
	if h == nil {
		return nil, eris.Wrapf(ErrComponentNotFound, "entity %d: %s", e.id, ct.name)
	}
	return h.ptr(node.compIndex), nil
}

// HasComponent reports whether the entity is alive and has a T.
func HasComponent[T Component](e Entity) bool {
	node, err := e.node()
	if err != nil {
		return false
	}
	return node.archetype.components.Has(ComponentTypeOf[T](e.store.schema))
}

// RemoveComponent removes the entity's T. Removing a component the entity doesn't have is a no-op.
func RemoveComponent[T Component](e Entity) error {
	node, err := e.node()
	if err != nil {
		return err
	}
	s := e.store
	ct := ComponentTypeOf[T](s.schema)
	if !node.archetype.components.Has(ct) {
		return nil
	}

	components := node.archetype.components
	components.Remove(ct)
	s.moveEntity(node, s.GetArchetype(components, node.archetype.tags))

	s.emitComponentChanged(node, ComponentRemoved, ct)
	return nil
}

// AddComponents adds or overwrites every value with a single archetype migration.
func AddComponents(e Entity, values ...ComponentValue) error {
	node, err := e.node()
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	s := e.store

	types := make([]*ComponentType, len(values))
	old := node.archetype.components
	components := old
	for i, v := range values {
		types[i] = v.componentType(s.schema)
		components.Add(types[i])
	}

	s.moveEntity(node, s.GetArchetype(components, node.archetype.tags))
	for i, v := range values {
		v.writeTo(node.archetype, node.compIndex, types[i])
	}

	// Handlers may delete the entity or grow the node table, so the node is looked up per event.
	id := node.id
	for _, ct := range types {
		if !s.isAlive(id) {
			return nil
		}
		action := ComponentAdded
		if old.Has(ct) {
			action = ComponentUpdated
		}
		s.emitComponentChanged(&s.nodes[id], action, ct)
	}
	return nil
}

// RemoveComponents removes every type in types with a single archetype migration. Types the entity
// doesn't have are ignored.
func (e Entity) RemoveComponents(types ComponentTypes) error {
	node, err := e.node()
	if err != nil {
		return err
	}
	s := e.store

	old := node.archetype.components
	components := old.Difference(types)
	if components == old {
		return nil
	}
	s.moveEntity(node, s.GetArchetype(components, node.archetype.tags))

	id := node.id
	for i := range old.Difference(components).All() {
		if !s.isAlive(id) {
			return nil
		}
		s.emitComponentChanged(&s.nodes[id], ComponentRemoved, s.schema.Component(i))
	}
	return nil
}

// -------------------------------------------------------------------------------------------------
// Tags
// -------------------------------------------------------------------------------------------------

// AddTag adds tag T to the entity.
func AddTag[T Tag](e Entity) error {
	if e.store == nil {
		return eris.Wrap(ErrEntityNotFound, "null entity")
	}
	return e.AddTags(NewTags(TagTypeOf[T](e.store.schema)))
}

// RemoveTag removes tag T from the entity.
func RemoveTag[T Tag](e Entity) error {
	if e.store == nil {
		return eris.Wrap(ErrEntityNotFound, "null entity")
	}
	return e.RemoveTags(NewTags(TagTypeOf[T](e.store.schema)))
}

// HasTag reports whether the entity is alive and has tag T.
func HasTag[T Tag](e Entity) bool {
	node, err := e.node()
	if err != nil {
		return false
	}
	return node.archetype.tags.Has(TagTypeOf[T](e.store.schema))
}

// AddTags adds all tags with a single archetype migration.
func (e Entity) AddTags(tags Tags) error {
	node, err := e.node()
	if err != nil {
		return err
	}
	e.store.setTags(node, node.archetype.tags.Union(tags))
	return nil
}

// RemoveTags removes all tags with a single archetype migration.
func (e Entity) RemoveTags(tags Tags) error {
	node, err := e.node()
	if err != nil {
		return err
	}
	e.store.setTags(node, node.archetype.tags.Difference(tags))
	return nil
}

func (s *EntityStore) setTags(node *EntityNode, tags Tags) {
	old := node.archetype.tags
	if old == tags {
		return
	}
	s.moveEntity(node, s.GetArchetype(node.archetype.components, tags))
	s.emitTagsChanged(node, tags, old)
}

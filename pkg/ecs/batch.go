package ecs

import (
	"strings"

	"github.com/rotisserie/eris"
)

// EntityBatch collects component and tag changes of a single entity and applies them with one
// archetype migration. Methods chain:
//
//	err := e.Batch().
//		AddComponent(With(Position{X: 1})).
//		AddTag(tagType).
//		RemoveComponent(rotationType).
//		Apply()
type EntityBatch struct {
	store    *EntityStore
	entityID int

	addComponents    ComponentTypes
	removeComponents ComponentTypes
	addTags          Tags
	removeTags       Tags
	values           []batchValue
}

type batchValue struct {
	ct    *ComponentType
	value ComponentValue
}

// NewBatch returns an empty batch for entity id.
func (s *EntityStore) NewBatch(id int) *EntityBatch {
	return newEntityBatch(s, id)
}

func newEntityBatch(s *EntityStore, id int) *EntityBatch {
	return &EntityBatch{store: s, entityID: id}
}

// AddComponent adds or overwrites a component. It cancels an earlier RemoveComponent of the same type.
func (b *EntityBatch) AddComponent(value ComponentValue) *EntityBatch {
	if b.store == nil {
		return b
	}
	ct := value.componentType(b.store.schema)
	b.addComponents.Add(ct)
	b.removeComponents.Remove(ct)
	for i := range b.values {
		if b.values[i].ct == ct {
			b.values[i].value = value
			return b
		}
	}
	b.values = append(b.values, batchValue{ct: ct, value: value})
	return b
}

// RemoveComponent removes a component. It cancels an earlier AddComponent of the same type.
func (b *EntityBatch) RemoveComponent(ct *ComponentType) *EntityBatch {
	b.removeComponents.Add(ct)
	b.addComponents.Remove(ct)
	for i := range b.values {
		if b.values[i].ct == ct {
			b.values = append(b.values[:i], b.values[i+1:]...)
			break
		}
	}
	return b
}

func (b *EntityBatch) AddTag(tt *TagType) *EntityBatch {
	return b.AddTags(NewTags(tt))
}

func (b *EntityBatch) RemoveTag(tt *TagType) *EntityBatch {
	return b.RemoveTags(NewTags(tt))
}

func (b *EntityBatch) AddTags(tags Tags) *EntityBatch {
	b.addTags = b.addTags.Union(tags)
	b.removeTags = b.removeTags.Difference(tags)
	return b
}

func (b *EntityBatch) RemoveTags(tags Tags) *EntityBatch {
	b.removeTags = b.removeTags.Union(tags)
	b.addTags = b.addTags.Difference(tags)
	return b
}

// IsEmpty reports whether the batch has no changes recorded.
func (b *EntityBatch) IsEmpty() bool {
	return b.addComponents.IsEmpty() && b.removeComponents.IsEmpty() &&
		b.addTags.IsEmpty() && b.removeTags.IsEmpty()
}

// Apply moves the entity to its new archetype, writes the added values, emits events, and clears the
// batch. Applying an empty batch does nothing.
func (b *EntityBatch) Apply() error {
	if b.store == nil {
		b.clear()
		return eris.Wrap(ErrEntityNotFound, "apply batch: null entity")
	}
	if b.IsEmpty() {
		return nil
	}
	defer b.clear()

	s := b.store
	node, err := s.aliveNode(b.entityID)
	if err != nil {
		return eris.Wrap(err, "apply batch")
	}

	old := EntityChange{ComponentTypes: node.archetype.components, Tags: node.archetype.tags}
	components := old.ComponentTypes.Union(b.addComponents).Difference(b.removeComponents)
	tags := old.Tags.Union(b.addTags).Difference(b.removeTags)

	s.moveEntity(node, s.GetArchetype(components, tags))
	for _, v := range b.values {
		v.value.writeTo(node.archetype, node.compIndex, v.ct)
	}

	id := node.id
	for _, v := range b.values {
		if !s.isAlive(id) {
			return nil
		}
		action := ComponentAdded
		if old.ComponentTypes.Has(v.ct) {
			action = ComponentUpdated
		}
		s.emitComponentChanged(&s.nodes[id], action, v.ct)
	}
	for i := range old.ComponentTypes.Difference(components).All() {
		if !s.isAlive(id) {
			return nil
		}
		s.emitComponentChanged(&s.nodes[id], ComponentRemoved, s.schema.Component(i))
	}
	if tags != old.Tags && s.isAlive(id) {
		s.emitTagsChanged(&s.nodes[id], tags, old.Tags)
	}
	return nil
}

func (b *EntityBatch) clear() {
	b.addComponents = ComponentTypes{}
	b.removeComponents = ComponentTypes{}
	b.addTags = Tags{}
	b.removeTags = Tags{}
	clear(b.values)
	b.values = b.values[:0]
}

// String renders the pending changes, e.g. "entity: 1 > add: [Position, #TestTag] remove: [Rotation]".
func (b *EntityBatch) String() string {
	if b.store == nil {
		return "entity: 0 > (null)"
	}
	var sb strings.Builder
	sb.WriteString("entity: ")
	sb.WriteString(itoa(b.entityID))
	sb.WriteString(" >")
	if !b.addComponents.IsEmpty() || !b.addTags.IsEmpty() {
		sb.WriteString(" add: ")
		sb.WriteString(formatTypes(b.store.schema, b.addComponents, b.addTags))
	}
	if !b.removeComponents.IsEmpty() || !b.removeTags.IsEmpty() {
		sb.WriteString(" remove: ")
		sb.WriteString(formatTypes(b.store.schema, b.removeComponents, b.removeTags))
	}
	return sb.String()
}

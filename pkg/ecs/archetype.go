package ecs

import (
	"reflect"

	"github.com/argus-labs/entitystore/pkg/assert"
)

// Archetype groups all entities that have exactly the same component types and tags. Component data
// is stored column-wise: one Heap per component type, all parallel to entityIDs. The identity of an
// archetype never changes after creation.
type Archetype struct {
	store      *EntityStore
	index      int // Position in the store's archetype registry
	key        archetypeKey
	components ComponentTypes
	tags       Tags
	heaps      []Heap // Ordered by component schema index
	heapMap    []Heap // Indexed by component schema index, nil for absent types
	entityIDs  []int  // Entity id per row
}

func newArchetype(store *EntityStore, index int, components ComponentTypes, tags Tags) *Archetype {
	heaps := make([]Heap, 0, components.Count())
	size := 0
	for i := range components.All() {
		heaps = append(heaps, store.schema.Component(i).newHeap())
		size = i + 1
	}

	heapMap := make([]Heap, size)
	for _, h := range heaps {
		heapMap[h.Type().index] = h
	}

	return &Archetype{
		store:      store,
		index:      index,
		key:        newArchetypeKey(components, tags),
		components: components,
		tags:       tags,
		heaps:      heaps,
		heapMap:    heapMap,
		entityIDs:  make([]int, 0, heapCapacity),
	}
}

func (a *Archetype) Index() int { return a.index }
func (a *Archetype) ComponentTypes() ComponentTypes { return a.components }
func (a *Archetype) Tags() Tags { return a.tags }
func (a *Archetype) Store() *EntityStore { return a.store }

// Count returns the number of entities in the archetype.
func (a *Archetype) Count() int { return len(a.entityIDs) }

// EntityIDs returns the entity id of every row. The slice is owned by the archetype and must not be
// modified.
func (a *Archetype) EntityIDs() []int { return a.entityIDs }

// Heap returns the heap of ct, or nil if the archetype doesn't store ct.
func (a *Archetype) Heap(ct *ComponentType) Heap {
	if ct == nil {
		return nil
	}
	return a.heapOf(ct.index)
}

// Heaps returns the heaps in schema-index order.
func (a *Archetype) Heaps() []Heap { return a.heaps }

func (a *Archetype) heapOf(index int) Heap {
	if index < 0 || index >= len(a.heapMap) {
		return nil
	}
	return a.heapMap[index]
}

// ComponentSchemaTypes returns the component descriptors in schema-index order.
func (a *Archetype) ComponentSchemaTypes() []*ComponentType {
	types := make([]*ComponentType, len(a.heaps))
	for i, h := range a.heaps {
		types[i] = h.Type()
	}
	return types
}

// TagSchemaTypes returns the tag descriptors in schema-index order.
func (a *Archetype) TagSchemaTypes() []*TagType {
	types := make([]*TagType, 0, a.tags.Count())
	for i := range a.tags.All() {
		types = append(types, a.store.schema.Tag(i))
	}
	return types
}

func (a *Archetype) String() string {
	return formatTypes(a.store.schema, a.components, a.tags)
}

// -------------------------------------------------------------------------------------------------
// Row operations
// -------------------------------------------------------------------------------------------------

// addRow appends a row for id with zero-valued components and returns its index.
func (a *Archetype) addRow(id int) int {
	a.entityIDs = append(a.entityIDs, id)
	for _, h := range a.heaps {
		h.extend()
		assert.That(h.Len() == len(a.entityIDs), "heap %s length doesn't match entities", h.Type().name)
	}
	return len(a.entityIDs) - 1
}

// removeRow swaps the last row into row and truncates. The node of the entity that was moved gets
// its compIndex updated so it keeps pointing at its data.
func (a *Archetype) removeRow(row int) {
	assert.That(row < len(a.entityIDs), "archetype %d has no row %d", a.index, row)

	last := len(a.entityIDs) - 1
	movedID := a.entityIDs[last]
	a.entityIDs[row] = movedID
	a.entityIDs = a.entityIDs[:last]

	for _, h := range a.heaps {
		h.remove(row)
	}

	if row != last {
		a.store.nodes[movedID].compIndex = row
	}
}

// MoveEntityTo relocates the row of entity id from oldArch to newArch and returns the new row.
// Components present in both archetypes are copied, components only in newArch start as zero values
// and components only in oldArch are dropped. The vacated row in oldArch is filled by swapping in its
// last row. Moving to the same archetype is a no-op that returns oldCompIndex.
//
// The caller owns updating the moved entity's own node.
func MoveEntityTo(oldArch *Archetype, id, oldCompIndex int, newArch *Archetype) int {
	if oldArch == newArch {
		return oldCompIndex
	}
	assert.That(oldArch.entityIDs[oldCompIndex] == id, "entity %d isn't at row %d of archetype %d",
		id, oldCompIndex, oldArch.index)

	newCompIndex := newArch.addRow(id)
	for _, dst := range newArch.heaps {
		if src := oldArch.heapOf(dst.Type().index); src != nil {
			src.copyRow(dst, oldCompIndex, newCompIndex)
		}
	}
	oldArch.removeRow(oldCompIndex)
	return newCompIndex
}

// Components returns the dense component slice of T in a, or nil if a doesn't store T. The slice
// aliases the heap: writes through it are visible to the store, and it's invalidated by the next
// structural change of a.
func Components[T Component](a *Archetype) []T {
	ct := a.store.schema.lookupComponent(reflect.TypeFor[T]())
	if ct == nil {
		return nil
	}
	h, ok := a.heapOf(ct.index).(*heap[T])
	if !ok {
		return nil
	}
	return h.components
}

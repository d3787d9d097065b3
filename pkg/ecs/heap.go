package ecs

import (
	"github.com/argus-labs/entitystore/pkg/assert"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

const heapCapacity = 16

// heapFactory creates an empty heap for one component type.
type heapFactory func() Heap

// Heap is the dense component array of one component type inside an archetype. Row i holds the
// component of the entity at row i of the archetype's entity id array.
type Heap interface {
	Type() *ComponentType
	Len() int
	// Get boxes the component at row. Prefer the typed accessors on hot paths.
	Get(row int) Component
	// Read decodes JSON into the component at row.
	Read(row int, data []byte) error
	// Write encodes the component at row as JSON.
	Write(row int) ([]byte, error)

	extend()
	remove(row int)
	setAbstract(row int, value Component)
	copyRow(dst Heap, srcRow, dstRow int)
}

var _ Heap = &heap[Component]{}

// heap stores the values of one component type. The length of components always matches the
// number of entities in the owning archetype.
type heap[T Component] struct {
	ct         *ComponentType
	components []T
}

func newHeapFactory[T Component](ct *ComponentType) heapFactory {
	return func() Heap {
		return &heap[T]{ct: ct, components: make([]T, 0, heapCapacity)}
	}
}

func (h *heap[T]) Type() *ComponentType { return h.ct }

func (h *heap[T]) Len() int { return len(h.components) }

// extend appends a zero value row.
func (h *heap[T]) extend() {
	var zero T
	h.components = append(h.components, zero)
}

func (h *heap[T]) set(row int, value T) {
	assert.That(row < len(h.components), "heap %s isn't extended for row %d", h.ct.name, row)
	h.components[row] = value
}

func (h *heap[T]) get(row int) T {
	assert.That(row < len(h.components), "heap %s has no row %d", h.ct.name, row)
	return h.components[row]
}

// ptr returns a pointer into the heap. It's invalidated by the next structural change of the
// archetype.
func (h *heap[T]) ptr(row int) *T {
	assert.That(row < len(h.components), "heap %s has no row %d", h.ct.name, row)
	return &h.components[row]
}

func (h *heap[T]) setAbstract(row int, value Component) {
	concrete, ok := value.(T)
	assert.That(ok, "heap %s can't store %T", h.ct.name, value)
	h.set(row, concrete)
}

func (h *heap[T]) Get(row int) Component {
	return h.get(row)
}

// remove swaps the last row into row and truncates. The vacated slot is zeroed so the heap doesn't
// keep references alive.
func (h *heap[T]) remove(row int) {
	assert.That(row < len(h.components), "heap %s has no row %d to remove", h.ct.name, row)

	last := len(h.components) - 1
	h.components[row] = h.components[last]

	var zero T
	h.components[last] = zero
	h.components = h.components[:last]
}

// copyRow copies the value at srcRow into dst at dstRow. dst must hold the same component type.
func (h *heap[T]) copyRow(dst Heap, srcRow, dstRow int) {
	target, ok := dst.(*heap[T])
	assert.That(ok, "heap %s copied into heap %s", h.ct.name, dst.Type().name)
	target.components[dstRow] = h.components[srcRow]
}

func (h *heap[T]) Read(row int, data []byte) error {
	if row < 0 || row >= len(h.components) {
		return eris.Errorf("heap %s has no row %d", h.ct.name, row)
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return eris.Wrapf(err, "failed to decode component %s", h.ct.name)
	}
	h.components[row] = value
	return nil
}

func (h *heap[T]) Write(row int) ([]byte, error) {
	if row < 0 || row >= len(h.components) {
		return nil, eris.Errorf("heap %s has no row %d", h.ct.name, row)
	}
	data, err := json.Marshal(h.components[row])
	if err != nil {
		return nil, eris.Wrapf(err, "failed to encode component %s", h.ct.name)
	}
	return data, nil
}

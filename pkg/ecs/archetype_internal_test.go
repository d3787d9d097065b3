package ecs

import (
	"testing"

	. "github.com/argus-labs/entitystore/pkg/ecs/internal/testutils"
	"github.com/argus-labs/entitystore/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetArchetype_Identity(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})

	empty := s.GetArchetype(ComponentTypes{}, Tags{})
	assert.Same(t, s.DefaultArchetype(), empty)
	assert.Equal(t, 0, empty.Index())

	a := s.GetArchetype(NewComponentTypes(types.position, types.rotation), NewTags(types.tag))
	b := s.GetArchetype(NewComponentTypes(types.rotation, types.position), NewTags(types.tag))
	c := s.GetArchetype(NewComponentTypes(types.position, types.rotation), Tags{})

	// Property: the same identity always yields the same instance.
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	// Property: indices are assigned sequentially and match the registry.
	assert.Equal(t, 1, a.Index())
	assert.Equal(t, 2, c.Index())
	assert.Len(t, s.Archetypes(), 3)
	for i, arch := range s.Archetypes() {
		assert.Equal(t, i, arch.Index())
	}
}

func TestGetArchetype_OutOfSequence(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})

	// An entry in the registry the identity map doesn't know about.
	s.archetypes = append(s.archetypes, s.DefaultArchetype())
	assert.Panics(t, func() {
		s.GetArchetype(NewComponentTypes(types.position), Tags{})
	})
	assert.NotPanics(t, func() {
		s.GetArchetype(ComponentTypes{}, Tags{})
	}, "existing identities are still found")
}

func TestArchetype_Enumeration(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})

	arch := s.GetArchetype(NewComponentTypes(types.rotation, types.name), NewTags(types.tag2, types.tag))

	assert.Equal(t, []*ComponentType{types.name, types.rotation}, arch.ComponentSchemaTypes())
	assert.Equal(t, []*TagType{types.tag, types.tag2}, arch.TagSchemaTypes())
	assert.Equal(t, "[EntityName, Rotation, #TestTag, #TestTag2]", arch.String())
	assert.Nil(t, arch.Heap(types.position))
	assert.NotNil(t, arch.Heap(types.rotation))
	assert.Len(t, arch.Heaps(), 2)
	assert.Equal(t, "[]", s.DefaultArchetype().String())
}

func TestMoveEntityTo_SameArchetype(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})

	e := s.CreateEntity()
	arch := e.Archetype()
	row := s.nodes[e.ID()].compIndex

	assert.Equal(t, row, MoveEntityTo(arch, e.ID(), row, arch))
	assert.Equal(t, 1, arch.Count())
}

func TestMoveEntityTo_RoundTrip(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})

	// Fill archetype A with a few entities so the move exercises the swap path.
	entities := make([]Entity, 4)
	for i := range entities {
		entities[i] = s.CreateEntity()
		require.NoError(t, AddComponents(entities[i],
			With(Position{X: float32(i)}), With(Rotation{W: float32(i)})))
	}
	archA := entities[0].Archetype()
	archB := s.GetArchetype(NewComponentTypes(types.position, types.rotation, types.scale), Tags{})

	target := entities[1]
	node := &s.nodes[target.ID()]
	s.moveEntity(node, archB)
	require.NoError(t, SetComponent(target, Scale3{X: 9}))
	s.moveEntity(node, archA)

	// Property: moving A -> B -> A preserves the components present in A.
	pos, err := GetComponent[Position](target)
	require.NoError(t, err)
	rot, err := GetComponent[Rotation](target)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1}, pos)
	assert.Equal(t, Rotation{W: 1}, rot)
	assert.False(t, HasComponent[Scale3](target))

	// Property: the other entities still resolve to their own data.
	for i, e := range entities {
		pos, err := GetComponent[Position](e)
		require.NoError(t, err)
		assert.Equal(t, Position{X: float32(i)}, pos)
	}
	checkStoreInvariants(t, s)
}

func TestArchetype_RemoveRowUpdatesMovedNode(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})

	e1 := s.CreateEntity()
	e2 := s.CreateEntity()
	e3 := s.CreateEntity()
	require.NoError(t, AddComponent(e1, Health{Value: 1}))
	require.NoError(t, AddComponent(e2, Health{Value: 2}))
	require.NoError(t, AddComponent(e3, Health{Value: 3}))

	require.NoError(t, e1.Delete())

	// e3 was the last row and must have been swapped into row 0.
	assert.Equal(t, 0, s.nodes[e3.ID()].compIndex)
	h, err := GetComponent[Health](e3)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Value)
	checkStoreInvariants(t, s)
}

func TestComponents_DenseAccess(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})

	for i := range 3 {
		require.NoError(t, AddComponent(s.CreateEntity(), Health{Value: i}))
	}
	arch := s.Archetypes()[1]

	values := Components[Health](arch)
	require.Len(t, values, 3)
	values[1].Value = 42

	e, ok := s.Entity(arch.EntityIDs()[1])
	require.True(t, ok)
	h, err := GetComponent[Health](e)
	require.NoError(t, err)
	assert.Equal(t, 42, h.Value, "slice aliases the heap")

	assert.Nil(t, Components[Position](arch))
}

// -------------------------------------------------------------------------------------------------
// Model-based fuzzing archetype migrations
// -------------------------------------------------------------------------------------------------
// Moves entities between random archetypes and checks that every entity keeps the values of the
// components it still has and that all rows stay dense.
// -------------------------------------------------------------------------------------------------

func TestArchetype_MigrationFuzz(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)
	s, types := newTestStore(t, Options{})

	const (
		entityCount = 64
		opsMax      = 1 << 12
	)

	pool := []*ComponentType{types.position, types.health, types.scale}
	health := make(map[int]int)
	for range entityCount {
		e := s.CreateEntity()
		health[e.ID()] = 0
	}

	for range opsMax {
		id := testutils.RandMapKey(prng, health)
		node := &s.nodes[id]

		var components ComponentTypes
		for _, ct := range pool {
			if prng.IntN(2) == 0 {
				components.Add(ct)
			}
		}
		s.moveEntity(node, s.GetArchetype(components, Tags{}))

		e := Entity{store: s, id: id}
		if components.Has(types.health) {
			if prng.IntN(2) == 0 {
				value := prng.IntN(1000) + 1
				require.NoError(t, SetComponent(e, Health{Value: value}))
				health[id] = value
			}
		} else {
			health[id] = 0
		}
	}

	for id, want := range health {
		e := Entity{store: s, id: id}
		got, err := GetComponent[Health](e)
		if want == 0 && err != nil {
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, want, got.Value, "entity %d", id)
	}
	checkStoreInvariants(t, s)
}

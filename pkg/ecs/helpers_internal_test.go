package ecs

import (
	"testing"

	. "github.com/argus-labs/entitystore/pkg/ecs/internal/testutils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTypes holds the descriptors registered by newTestSchema. Registration order fixes the indices,
// so formatting output is stable across tests.
type testTypes struct {
	name      *ComponentType
	position  *ComponentType
	rotation  *ComponentType
	scale     *ComponentType
	health    *ComponentType
	inventory *ComponentType

	tag  *TagType
	tag2 *TagType
	tag3 *TagType

	script1 *ScriptType
	script2 *ScriptType
}

func newTestSchema(t *testing.T) (*Schema, testTypes) {
	t.Helper()
	schema := NewSchema()
	types := testTypes{
		name:      ComponentTypeOf[EntityName](schema),
		position:  ComponentTypeOf[Position](schema),
		rotation:  ComponentTypeOf[Rotation](schema),
		scale:     ComponentTypeOf[Scale3](schema),
		health:    ComponentTypeOf[Health](schema),
		inventory: ComponentTypeOf[Inventory](schema),
		tag:       TagTypeOf[TestTag](schema),
		tag2:      TagTypeOf[TestTag2](schema),
		tag3:      TagTypeOf[TestTag3](schema),
		script1:   ScriptTypeOf[*TestScript1](schema),
		script2:   ScriptTypeOf[*TestScript2](schema),
	}
	return schema, types
}

func newTestStore(t *testing.T, opts Options) (*EntityStore, testTypes) {
	t.Helper()
	schema, types := newTestSchema(t)
	return newTestStoreWithOptions(t, schema, opts), types
}

func newTestStoreWithOptions(t *testing.T, schema *Schema, opts Options) *EntityStore {
	t.Helper()
	if opts.Logger == nil {
		logger := zerolog.Nop()
		opts.Logger = &logger
	}
	store, err := NewEntityStore(schema, opts)
	require.NoError(t, err)
	return store
}

// checkStoreInvariants verifies the node table and every archetype agree with each other.
func checkStoreInvariants(t *testing.T, s *EntityStore) {
	t.Helper()

	alive := 0
	for id := range s.nodes {
		node := &s.nodes[id]
		require.Equal(t, id, node.id, "node %d has id %d", id, node.id)
		if !node.IsCreated() {
			assert.Nil(t, node.archetype, "deleted node %d still has an archetype", id)
			continue
		}
		alive++
		require.NotNil(t, node.archetype, "node %d has no archetype", id)
		require.Less(t, node.compIndex, node.archetype.Count(), "node %d row out of range", id)
		assert.Equal(t, id, node.archetype.entityIDs[node.compIndex], "node %d row mismatch", id)
	}
	assert.Equal(t, alive, s.Count(), "entity count mismatch")

	total := 0
	for i, arch := range s.archetypes {
		assert.Equal(t, i, arch.index, "archetype index mismatch")
		for _, h := range arch.heaps {
			assert.Equal(t, arch.Count(), h.Len(), "heap %s of archetype %d isn't dense", h.Type().Name(), i)
		}
		total += arch.Count()
	}
	assert.Equal(t, s.Count(), total, "archetype row total mismatch")
}

package ecs

import (
	"sync"
	"testing"

	. "github.com/argus-labs/entitystore/pkg/ecs/internal/testutils"
	"github.com/argus-labs/entitystore/pkg/testutils"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuffer_Coalesce(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})
	e := s.CreateEntity()

	cb := s.CreateCommandBuffer()
	require.NoError(t, cb.AddComponent(e.ID(), With(Position{X: 1})))
	require.NoError(t, cb.AddComponent(e.ID(), With(EntityName{Value: "hero"})))
	require.NoError(t, cb.AddTag(e.ID(), types.tag))
	require.NoError(t, cb.AddComponent(e.ID(), With(Rotation{W: 1})))
	require.NoError(t, cb.RemoveComponent(e.ID(), types.rotation))
	assert.Equal(t, 4, cb.ComponentCommandsCount())
	assert.Equal(t, 1, cb.TagCommandsCount())

	// Nothing changes until playback.
	assert.Equal(t, "[]", FormatComponents(e))

	moves := s.moves
	require.NoError(t, cb.Playback())
	assert.Equal(t, moves+1, s.moves, "every change of one entity costs a single migration")
	assert.Equal(t, "[EntityName, Position, #TestTag]", FormatComponents(e))

	pos, err := GetComponent[Position](e)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1}, pos)
	checkStoreInvariants(t, s)
}

func TestCommandBuffer_AddThenRemoveCancels(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})
	e := s.CreateEntity()
	require.NoError(t, AddComponent(e, Health{Value: 1}))

	cb := s.CreateCommandBuffer()
	require.NoError(t, cb.AddComponent(e.ID(), With(Position{X: 1})))
	require.NoError(t, cb.RemoveComponent(e.ID(), types.position))
	require.NoError(t, cb.AddTag(e.ID(), types.tag))
	require.NoError(t, cb.RemoveTag(e.ID(), types.tag))

	moves := s.moves
	require.NoError(t, cb.Playback())
	assert.Equal(t, moves, s.moves, "no net change, no migration")
	assert.Equal(t, "[Health]", FormatComponents(e))
}

func TestCommandBuffer_LastWriteWins(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})
	e := s.CreateEntity()
	require.NoError(t, AddComponent(e, Health{Value: 1}))

	cb := s.CreateCommandBuffer()
	require.NoError(t, cb.SetComponent(e.ID(), With(Health{Value: 2})))
	require.NoError(t, cb.AddComponent(e.ID(), With(Health{Value: 3})))
	require.NoError(t, cb.SetComponent(e.ID(), With(Health{Value: 4})))

	// Set without the component present is skipped.
	require.NoError(t, cb.SetComponent(e.ID(), With(Position{X: 1})))
	require.NoError(t, cb.Playback())

	h, err := GetComponent[Health](e)
	require.NoError(t, err)
	assert.Equal(t, 4, h.Value)
	assert.False(t, HasComponent[Position](e))
}

func TestCommandBuffer_CreateAndDelete(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})
	existing := s.CreateEntity()

	cb := s.CreateCommandBuffer()
	id, err := cb.CreateEntity()
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	assert.Equal(t, 3, s.CreateEntity().ID(), "reserved ids aren't handed out twice")

	_, alive := s.Entity(id)
	assert.False(t, alive, "the entity is created on playback")

	require.NoError(t, cb.AddComponent(id, With(EntityName{Value: "spawned"})))
	require.NoError(t, cb.AddTag(id, types.tag))
	require.NoError(t, cb.DeleteEntity(existing.ID()))
	assert.Equal(t, 2, cb.EntityCommandsCount())

	require.NoError(t, cb.Playback())
	e, ok := s.Entity(id)
	require.True(t, ok)
	assert.Equal(t, "[EntityName, #TestTag]", FormatComponents(e))
	assert.False(t, existing.IsAlive())
	checkStoreInvariants(t, s)
}

func TestCommandBuffer_ReservedIDs(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{PidType: PidAsID})

	cb := s.CreateCommandBuffer()
	id, err := cb.CreateEntity()
	require.NoError(t, err)
	require.NoError(t, cb.AddComponent(id, With(EntityName{Value: "spawned"})))
	require.NoError(t, cb.AddTag(id, types.tag))

	tests := []struct {
		name   string
		create func() (Entity, error)
	}{
		{"with id", func() (Entity, error) { return s.CreateEntityWithID(id) }},
		{"with pid as id", func() (Entity, error) { return s.CreateEntityWithPid(int64(id)) }},
		{"from data", func() (Entity, error) {
			return NewEntityConverter(s).DataToEntity(DataEntity{Pid: int64(id)})
		}},
	}
	for _, tt := range tests {
		_, err := tt.create()
		require.Error(t, err, tt.name)
		assert.True(t, eris.Is(err, ErrEntityIDInUse), "%s: got %v", tt.name, err)
	}
	_, alive := s.Entity(id)
	require.False(t, alive, "a reserved id can't be claimed before playback")

	require.NoError(t, cb.Playback())
	e, ok := s.Entity(id)
	require.True(t, ok)
	assert.Equal(t, "[EntityName, #TestTag]", FormatComponents(e), "only the buffer's commands apply")
	assert.Empty(t, s.reserved)

	_, err = s.CreateEntityWithID(id)
	assert.True(t, eris.Is(err, ErrEntityIDInUse), "got %v", err)
	checkStoreInvariants(t, s)
}

func TestCommandBuffer_EventsAfterFailedPlayback(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})
	e := s.CreateEntity()

	var added []ComponentChanged
	s.OnComponentAdded(func(ev ComponentChanged) { added = append(added, ev) })

	cb := s.CreateCommandBuffer()
	require.NoError(t, cb.AddComponent(e.ID(), With(Position{X: 1})))
	require.NoError(t, cb.RemoveScript(99, types.script1))

	err := cb.Playback()
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEntityNotFound), "got %v", err)

	// The migration already happened, so its events still go out.
	assert.True(t, HasComponent[Position](e))
	require.Len(t, added, 1)
	assert.Equal(t, ComponentChanged{Entity: e, Action: ComponentAdded, Type: types.position}, added[0])
	checkStoreInvariants(t, s)
}

func TestCommandBuffer_Errors(t *testing.T) {
	t.Parallel()

	t.Run("delete of a missing entity", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestStore(t, Options{})
		cb := s.CreateCommandBuffer()
		require.NoError(t, cb.DeleteEntity(99))

		err := cb.Playback()
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrEntityNotFound), "got %v", err)
		assert.Contains(t, err.Error(), "entity not found")
	})

	t.Run("component command on a missing entity", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestStore(t, Options{})
		cb := s.CreateCommandBuffer()
		require.NoError(t, cb.AddComponent(42, With(Position{})))

		err := cb.Playback()
		assert.True(t, eris.Is(err, ErrEntityNotFound), "got %v", err)
		assert.Equal(t, 1, s.PooledBufferCount(), "a failed playback still releases the buffer")
	})

	t.Run("unregistered script", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestStore(t, Options{})
		e := s.CreateEntity()
		cb := s.CreateCommandBuffer()

		err := cb.AddScript(e.ID(), ValueScript{})
		assert.Error(t, err)
	})
}

func TestCommandBuffer_Lifecycle(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})
	e := s.CreateEntity()

	t.Run("played buffer can't be reused", func(t *testing.T) {
		cb := s.CreateCommandBuffer()
		require.NoError(t, cb.AddComponent(e.ID(), With(Health{Value: 1})))
		require.NoError(t, cb.Playback())
		assert.Equal(t, 1, s.PooledBufferCount())

		err := cb.AddComponent(e.ID(), With(Health{Value: 2}))
		assert.True(t, eris.Is(err, ErrBufferReused), "got %v", err)
		assert.True(t, eris.Is(cb.Playback(), ErrBufferReused))
		assert.Equal(t, 0, cb.ComponentCommandsCount())
	})

	t.Run("pooled arrays are reused", func(t *testing.T) {
		cb := s.CreateCommandBuffer()
		assert.Equal(t, 0, s.PooledBufferCount())
		assert.Equal(t, 0, cb.ComponentCommandsCount(), "pooled arrays come back empty")
		require.NoError(t, cb.ReturnBuffer())
		assert.Equal(t, 1, s.PooledBufferCount())
	})

	t.Run("returned buffer", func(t *testing.T) {
		cb := s.CreateCommandBuffer()
		require.NoError(t, cb.AddTag(e.ID(), s.schema.Tag(0)))
		require.NoError(t, cb.ReturnBuffer())

		assert.True(t, eris.Is(cb.AddTag(e.ID(), s.schema.Tag(0)), ErrBufferReturned))
		assert.True(t, eris.Is(cb.Playback(), ErrBufferReturned))
		assert.True(t, eris.Is(cb.ReturnBuffer(), ErrBufferReturned))
		assert.False(t, HasTag[TestTag](e), "returned commands are dropped")
	})

	t.Run("reuse buffer", func(t *testing.T) {
		cb := s.CreateCommandBuffer()
		cb.ReuseBuffer = true
		for i := range 3 {
			require.NoError(t, cb.AddComponent(e.ID(), With(Health{Value: i})))
			require.NoError(t, cb.Playback())
			assert.Equal(t, 0, cb.ComponentCommandsCount(), "playback clears the buffer")
		}
		h, err := GetComponent[Health](e)
		require.NoError(t, err)
		assert.Equal(t, 2, h.Value)
		require.NoError(t, cb.ReturnBuffer())
	})

	t.Run("clear", func(t *testing.T) {
		cb := s.CreateCommandBuffer()
		require.NoError(t, cb.AddComponent(e.ID(), With(Position{})))
		require.NoError(t, cb.Clear())
		assert.Equal(t, 0, cb.ComponentCommandsCount())
		require.NoError(t, cb.Playback())
		assert.False(t, HasComponent[Position](e))
	})
}

func TestCommandBuffer_Scripts(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})
	e := s.CreateEntity()

	cb := s.CreateCommandBuffer()
	require.NoError(t, cb.AddScript(e.ID(), &TestScript1{Value: 1}))
	require.NoError(t, cb.AddScript(e.ID(), &TestScript2{Label: "x"}))
	require.NoError(t, cb.RemoveScript(e.ID(), types.script2))
	assert.Equal(t, 3, cb.ScriptCommandsCount())
	require.NoError(t, cb.Playback())

	script, ok := GetScript[*TestScript1](e)
	require.True(t, ok)
	assert.Equal(t, 1, script.Value)
	_, ok = GetScript[*TestScript2](e)
	assert.False(t, ok)
	assert.Same(t, s.DefaultArchetype(), e.Archetype(), "scripts don't migrate the entity")
}

func TestCommandBuffer_Events(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t, Options{})
	e := s.CreateEntity()
	require.NoError(t, AddComponent(e, Health{Value: 1}))

	var components []ComponentChanged
	var tags []TagsChanged
	s.OnComponentChanged(func(ev ComponentChanged) { components = append(components, ev) })
	s.OnTagsChanged(func(ev TagsChanged) { tags = append(tags, ev) })

	cb := s.CreateCommandBuffer()
	require.NoError(t, cb.AddComponent(e.ID(), With(Position{})))
	require.NoError(t, cb.SetComponent(e.ID(), With(Position{X: 1})))
	require.NoError(t, cb.RemoveComponent(e.ID(), types.health))
	require.NoError(t, cb.AddTags(e.ID(), NewTags(types.tag, types.tag2)))
	require.NoError(t, cb.RemoveTags(e.ID(), NewTags(types.tag2)))
	require.NoError(t, cb.Playback())

	require.Len(t, components, 2, "structural changes only")
	assert.Equal(t, ComponentChanged{Entity: e, Action: ComponentAdded, Type: types.position}, components[0])
	assert.Equal(t, ComponentChanged{Entity: e, Action: ComponentRemoved, Type: types.health}, components[1])
	require.Len(t, tags, 1)
	assert.Equal(t, NewTags(types.tag), tags[0].AddedTags())
}

func TestCommandBuffer_ConcurrentRecording(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})

	const (
		workers   = 8
		perWorker = 100
	)
	buffers := make([]*CommandBuffer, workers)
	for i := range buffers {
		buffers[i] = s.CreateCommandBuffer()
	}

	var wg sync.WaitGroup
	for w, cb := range buffers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				id, err := cb.CreateEntity()
				if err != nil {
					panic(err)
				}
				if err := cb.AddComponent(id, With(Health{Value: w*perWorker + i})); err != nil {
					panic(err)
				}
			}
		}()
	}
	wg.Wait()

	for _, cb := range buffers {
		require.NoError(t, cb.Playback())
	}

	assert.Equal(t, workers*perWorker, s.Count())
	seen := make(map[int]bool)
	for _, e := range s.Entities() {
		h, err := GetComponent[Health](e)
		require.NoError(t, err)
		require.False(t, seen[h.Value], "value %d recorded twice", h.Value)
		seen[h.Value] = true
	}
	checkStoreInvariants(t, s)
}

// -------------------------------------------------------------------------------------------------
// Exhaustive buffer equivalence
// -------------------------------------------------------------------------------------------------
// Enumerates every sequence of component and tag commands on one entity and checks that playing
// them back from a buffer ends in the same state as applying them directly, with at most one
// migration.
// -------------------------------------------------------------------------------------------------

func TestCommandBuffer_ExhaustiveEquivalence(t *testing.T) {
	t.Parallel()

	const steps = 3
	for g := testutils.NewExhaustive(); !g.Done(); {
		direct, types := newTestStore(t, Options{})
		buffered, _ := newTestStore(t, Options{})
		de := direct.CreateEntity()
		be := buffered.CreateEntity()

		if g.Bool() {
			require.NoError(t, AddComponent(de, Position{X: -1}))
			require.NoError(t, AddComponent(be, Position{X: -1}))
		}
		if g.Bool() {
			require.NoError(t, AddTag[TestTag](de))
			require.NoError(t, AddTag[TestTag](be))
		}

		cb := buffered.CreateCommandBuffer()
		for step := range steps {
			value := Position{X: float32(step + 1)}
			switch testutils.Pick(g, bufferOps) {
			case bufferAdd:
				require.NoError(t, AddComponent(de, value))
				require.NoError(t, cb.AddComponent(be.ID(), With(value)))
			case bufferSet:
				if HasComponent[Position](de) {
					require.NoError(t, SetComponent(de, value))
				}
				require.NoError(t, cb.SetComponent(be.ID(), With(value)))
			case bufferRemove:
				require.NoError(t, RemoveComponent[Position](de))
				require.NoError(t, cb.RemoveComponent(be.ID(), types.position))
			case bufferAddTag:
				require.NoError(t, AddTag[TestTag](de))
				require.NoError(t, cb.AddTag(be.ID(), types.tag))
			case bufferRemoveTag:
				require.NoError(t, RemoveTag[TestTag](de))
				require.NoError(t, cb.RemoveTag(be.ID(), types.tag))
			}
		}

		moves := buffered.moves
		require.NoError(t, cb.Playback())
		assert.LessOrEqual(t, buffered.moves-moves, 1)

		require.Equal(t, FormatComponents(de), FormatComponents(be))
		if HasComponent[Position](de) {
			want, err := GetComponent[Position](de)
			require.NoError(t, err)
			got, err := GetComponent[Position](be)
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	}
}

type bufferOp uint8

const (
	bufferAdd bufferOp = iota
	bufferSet
	bufferRemove
	bufferAddTag
	bufferRemoveTag
)

var bufferOps = []bufferOp{bufferAdd, bufferSet, bufferRemove, bufferAddTag, bufferRemoveTag}

/*
Package ecs implements an in-process archetype entity store.

Entities are plain integer ids. Each live entity belongs to exactly one Archetype, identified by the
set of component types and tags the entity has. An archetype stores its entities column-wise: one
dense Heap per component type, parallel to an array of entity ids. Adding or removing a component
or tag moves the entity's row to the archetype of its new identity.

	schema := ecs.NewSchema()
	store, err := ecs.NewEntityStore(schema, ecs.Options{})
	...
	e := store.CreateEntity()
	err = ecs.AddComponents(e, ecs.With(Position{X: 1}), ecs.With(EntityName{Value: "hero"}))
	err = ecs.AddTag[Player](e)

# Type registry

A Schema assigns every component, tag, and script type a dense index in registration order. Those
indices key the fixed-width ComponentTypes and Tags bit-sets that make up an archetype's identity.
Types register explicitly with RegisterComponent and friends, or lazily through ComponentTypeOf.

# Deferred changes

Structural changes can't be made while iterating archetypes or from other goroutines. A
CommandBuffer records them instead; Playback applies them on the owner goroutine and coalesces all
changes of an entity into a single archetype migration. Buffers come from and return to a pool
owned by the store.

# Single-entity batches

EntityBatch is the synchronous counterpart for one entity: it collects additions and removals and
applies them with one migration.

# Events

Store-wide subscribers observe component and tag changes of every entity. Per-entity handlers and
typed signals are registered on a single entity and are dropped when the entity is deleted.

# Concurrency

An EntityStore is not safe for concurrent use. The Schema and entity id reservation are, which is
what lets command buffers record on worker goroutines.
*/
package ecs

package ecs

import (
	"iter"

	"github.com/kelindar/bitmap"
)

// ArchetypeQuery selects the archetypes whose component set contains every required type and none of
// the excluded ones, optionally narrowed by tags. Matching archetype indices are cached in a bitmap
// and only archetypes created since the last call are tested again.
//
// The store must not be structurally changed while iterating a query.
type ArchetypeQuery struct {
	store *EntityStore

	required     ComponentTypes
	excluded     ComponentTypes
	requiredTags Tags
	excludedTags Tags

	matches bitmap.Bitmap
	checked int // Number of archetypes already tested
}

// Query creates a query over the store's archetypes.
func (s *EntityStore) Query(required, excluded ComponentTypes) *ArchetypeQuery {
	return &ArchetypeQuery{store: s, required: required, excluded: excluded}
}

// WithTags narrows the query to archetypes having all of tags.
func (q *ArchetypeQuery) WithTags(tags Tags) *ArchetypeQuery {
	q.requiredTags = q.requiredTags.Union(tags)
	q.invalidate()
	return q
}

// WithoutTags narrows the query to archetypes having none of tags.
func (q *ArchetypeQuery) WithoutTags(tags Tags) *ArchetypeQuery {
	q.excludedTags = q.excludedTags.Union(tags)
	q.invalidate()
	return q
}

func (q *ArchetypeQuery) invalidate() {
	q.matches.Clear()
	q.checked = 0
}

func (q *ArchetypeQuery) match(a *Archetype) bool {
	return a.components.HasAll(q.required) &&
		!a.components.Intersects(q.excluded) &&
		a.tags.HasAll(q.requiredTags) &&
		!a.tags.Intersects(q.excludedTags)
}

func (q *ArchetypeQuery) refresh() {
	archetypes := q.store.archetypes
	for i := q.checked; i < len(archetypes); i++ {
		if q.match(archetypes[i]) {
			q.matches.Set(uint32(i)) //nolint:gosec // archetype count fits in uint32
		}
	}
	q.checked = len(archetypes)
}

// Archetypes returns the matching archetypes in registry order.
func (q *ArchetypeQuery) Archetypes() []*Archetype {
	q.refresh()
	archetypes := make([]*Archetype, 0, q.matches.Count())
	q.matches.Range(func(i uint32) {
		archetypes = append(archetypes, q.store.archetypes[i])
	})
	return archetypes
}

// Count returns the number of entities in all matching archetypes.
func (q *ArchetypeQuery) Count() int {
	n := 0
	for _, a := range q.Archetypes() {
		n += a.Count()
	}
	return n
}

// Entities yields every entity of the matching archetypes.
func (q *ArchetypeQuery) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, a := range q.Archetypes() {
			for _, id := range a.entityIDs {
				if !yield(Entity{store: q.store, id: id}) {
					return
				}
			}
		}
	}
}

// ForEach1 calls fn with a pointer to the T1 of every matching entity that has one. Iteration walks
// the archetype heaps directly.
func ForEach1[T1 Component](q *ArchetypeQuery, fn func(e Entity, c1 *T1)) {
	for _, a := range q.Archetypes() {
		c1 := Components[T1](a)
		if c1 == nil {
			continue
		}
		for row, id := range a.entityIDs {
			fn(Entity{store: q.store, id: id}, &c1[row])
		}
	}
}

// ForEach2 calls fn with pointers to the T1 and T2 of every matching entity that has both.
func ForEach2[T1, T2 Component](q *ArchetypeQuery, fn func(e Entity, c1 *T1, c2 *T2)) {
	for _, a := range q.Archetypes() {
		c1 := Components[T1](a)
		c2 := Components[T2](a)
		if c1 == nil || c2 == nil {
			continue
		}
		for row, id := range a.entityIDs {
			fn(Entity{store: q.store, id: id}, &c1[row], &c2[row])
		}
	}
}

package ecs

import (
	"iter"
	"math/bits"
)

const (
	bitsetWords = 4
	bitsetSize  = bitsetWords * 64
)

// bitset is a fixed-width set of schema indices. It's a value type so it can be copied freely,
// compared with == and used as part of a map key without hashing a variable-length slice.
type bitset [bitsetWords]uint64

func (b *bitset) set(i int) { b[i>>6] |= 1 << (uint(i) & 63) }
func (b *bitset) clear(i int) { b[i>>6] &^= 1 << (uint(i) & 63) }
func (b bitset) has(i int) bool { return i >= 0 && i < bitsetSize && b[i>>6]&(1<<(uint(i)&63)) != 0 }
func (b bitset) isEmpty() bool { return b == bitset{} }
func (b bitset) union(o bitset) bitset {
	for i := range b {
		b[i] |= o[i]
	}
	return b
}

func (b bitset) difference(o bitset) bitset {
	for i := range b {
		b[i] &^= o[i]
	}
	return b
}

func (b bitset) intersects(o bitset) bool {
	for i := range b {
		if b[i]&o[i] != 0 {
			return true
		}
	}
	return false
}

func (b bitset) hasAll(o bitset) bool {
	for i := range b {
		if b[i]&o[i] != o[i] {
			return false
		}
	}
	return true
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// all yields the set indices in ascending order.
func (b bitset) all() iter.Seq[int] {
	return func(yield func(int) bool) {
		for wi, w := range b {
			for w != 0 {
				bit := bits.TrailingZeros64(w)
				if !yield(wi*64 + bit) {
					return
				}
				w &= w - 1
			}
		}
	}
}

// ComponentTypes is the set of component types an archetype stores, keyed by schema index.
type ComponentTypes struct{ bits bitset }

// NewComponentTypes builds a set from component descriptors.
func NewComponentTypes(types ...*ComponentType) ComponentTypes {
	var ct ComponentTypes
	for _, t := range types {
		ct.Add(t)
	}
	return ct
}

func (c *ComponentTypes) Add(t *ComponentType) { c.bits.set(t.index) }
func (c *ComponentTypes) Remove(t *ComponentType) { c.bits.clear(t.index) }
func (c ComponentTypes) Has(t *ComponentType) bool {
	return t != nil && c.bits.has(t.index)
}
func (c ComponentTypes) HasIndex(index int) bool { return c.bits.has(index) }
func (c ComponentTypes) Count() int { return c.bits.count() }
func (c ComponentTypes) IsEmpty() bool { return c.bits.isEmpty() }

func (c ComponentTypes) Union(o ComponentTypes) ComponentTypes {
	return ComponentTypes{c.bits.union(o.bits)}
}

func (c ComponentTypes) Difference(o ComponentTypes) ComponentTypes {
	return ComponentTypes{c.bits.difference(o.bits)}
}

func (c ComponentTypes) Intersects(o ComponentTypes) bool { return c.bits.intersects(o.bits) }

// HasAll returns true if every type in o is also in c.
func (c ComponentTypes) HasAll(o ComponentTypes) bool { return c.bits.hasAll(o.bits) }

// All yields the schema indices in ascending order.
func (c ComponentTypes) All() iter.Seq[int] { return c.bits.all() }

// Tags is the set of tag types an archetype carries, keyed by schema index.
type Tags struct{ bits bitset }

// NewTags builds a set from tag descriptors.
func NewTags(types ...*TagType) Tags {
	var t Tags
	for _, tt := range types {
		t.Add(tt)
	}
	return t
}

func (t *Tags) Add(tt *TagType) { t.bits.set(tt.index) }
func (t *Tags) Remove(tt *TagType) { t.bits.clear(tt.index) }
func (t Tags) Has(tt *TagType) bool {
	return tt != nil && t.bits.has(tt.index)
}
func (t Tags) HasIndex(index int) bool { return t.bits.has(index) }
func (t Tags) Count() int { return t.bits.count() }
func (t Tags) IsEmpty() bool { return t.bits.isEmpty() }
func (t Tags) Union(o Tags) Tags { return Tags{t.bits.union(o.bits)} }
func (t Tags) Difference(o Tags) Tags { return Tags{t.bits.difference(o.bits)} }
func (t Tags) Intersects(o Tags) bool { return t.bits.intersects(o.bits) }
func (t Tags) HasAll(o Tags) bool { return t.bits.hasAll(o.bits) }
func (t Tags) All() iter.Seq[int] { return t.bits.all() }

// archetypeKey identifies an archetype. Both halves are fixed-size arrays so the key is comparable.
type archetypeKey struct {
	components bitset
	tags       bitset
}

func newArchetypeKey(components ComponentTypes, tags Tags) archetypeKey {
	return archetypeKey{components: components.bits, tags: tags.bits}
}

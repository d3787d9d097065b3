package testutils

import "github.com/argus-labs/entitystore/pkg/assert"

const exhaustiveDepth = 32

// Exhaustive enumerates every sequence of bounded choices a test body makes. Use it as
//
//	for g := NewExhaustive(); !g.Done(); {
//		n := g.Intn(3)
//		...
//	}
//
// Each pass records the choices it made together with their bounds. Done advances to the next
// sequence by bumping the right-most choice that is still below its bound and truncating the rest,
// so sequences come out in lexicographic order and the loop ends once every choice is at its bound.
// Background: https://matklad.github.io/2021/11/07/generate-all-the-things.html
type Exhaustive struct {
	started bool
	choices [exhaustiveDepth]struct{ value, bound uint32 }
	pos     int
	depth   int
}

func NewExhaustive() *Exhaustive {
	return &Exhaustive{}
}

// Done reports whether all sequences have been produced. The first call always returns false.
func (g *Exhaustive) Done() bool {
	if !g.started {
		g.started = true
		return false
	}
	for i := g.depth - 1; i >= 0; i-- {
		if g.choices[i].value < g.choices[i].bound {
			g.choices[i].value++
			g.depth = i + 1
			g.pos = 0
			return false
		}
	}
	return true
}

func (g *Exhaustive) next(bound uint32) uint32 {
	assert.That(g.pos < exhaustiveDepth, "exhaustive: more than %d choices per pass", exhaustiveDepth)
	if g.pos == g.depth {
		g.choices[g.pos].value = 0
		g.depth++
	}
	g.choices[g.pos].bound = bound
	g.pos++
	return g.choices[g.pos-1].value
}

// Intn returns a value in [0, bound] (inclusive).
func (g *Exhaustive) Intn(bound int) int {
	return int(g.next(uint32(bound))) //nolint:gosec // bound is small in tests
}

// Bool returns both false and true across passes.
func (g *Exhaustive) Bool() bool {
	return g.Intn(1) == 1
}

// Pick returns every element of the slice across passes.
func Pick[T any](g *Exhaustive, items []T) T {
	assert.That(len(items) > 0, "exhaustive: pick from empty slice")
	return items[g.Intn(len(items)-1)]
}

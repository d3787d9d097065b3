//go:build !release

// Package assert holds internal invariant checks. In development builds a failed check panics with
// the formatted message. Building with `-tags release` compiles the checks down to no-ops.
package assert

import "fmt"

// That panics when cond is false.
func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if cond {
		return
	}
	panic(fmt.Sprintf("invariant violated: "+format, args...))
}

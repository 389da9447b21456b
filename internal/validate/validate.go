// Package validate provides assertion-style precondition checks for the group package's
// collective entry points. Failures panic with an *errkind.ArgumentError; every public
// Group method recovers these via errkind.Catch at its top, turning them back into
// ordinary Go errors before they cross the API boundary. The panic/recover convention for
// synchronous argument validation is grounded on gomlx's types/exceptions package, which
// uses the same pattern to keep deeply nested validation code free of error-plumbing
// noise while still surfacing a normal error to the caller.
package validate

import (
	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/tensor"
)

// Require panics with an ArgumentError built from format/args if cond is false.
func Require(cond bool, format string, args ...interface{}) {
	if !cond {
		errkind.Throw(errkind.Argf(format, args...))
	}
}

// NonEmpty requires that buffers has at least one element.
func NonEmpty(buffers []tensor.ArrayBuffer, op string) {
	Require(len(buffers) > 0, "%s: buffer list must not be empty", op)
}

// SameTypeAndShape requires that every buffer in buffers shares one DType and Shape.
func SameTypeAndShape(buffers []tensor.ArrayBuffer, op string) {
	Require(tensor.SameTypeAndShape(buffers), "%s: all buffers must share dtype and shape", op)
}

// RootRank requires 0 <= rootRank < size.
func RootRank(rootRank, size int, op string) {
	Require(rootRank >= 0 && rootRank < size, "%s: rootRank %d out of range [0,%d)", op, rootRank, size)
}

// Rank requires 0 <= rank < size.
func Rank(rank, size int, op string) {
	Require(rank >= 0 && rank < size, "%s: rank %d out of range [0,%d)", op, rank, size)
}

// Tag requires tag >= 0.
func Tag(tag int, op string) {
	Require(tag >= 0, "%s: tag %d must not be negative", op, tag)
}

// RootSideLen requires that, on the root rank, a per-rank buffer list (Gather's output,
// Scatter's input) has exactly size elements; non-root ranks must instead pass an empty
// list: only the root populates the per-rank list.
func RootSideLen(isRoot bool, list []tensor.ArrayBuffer, size int, op string) {
	if isRoot {
		Require(len(list) == size, "%s: root must provide exactly %d buffers, got %d", op, size, len(list))
	} else {
		Require(len(list) == 0, "%s: non-root ranks must not provide a per-rank buffer list", op)
	}
}

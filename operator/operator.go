// Package operator defines the Hermitian positive-definite linear-map
// contract the solver core treats as an opaque collaborator
// (spec.md §6, "Operator interface"). In production this wraps a
// lattice-Dirac operator; this module ships only small reference
// operators (reference.go) for the solver's own tests.
package operator

import (
	"github.com/andrei-pokrovsky/hermcg/field"
	"github.com/andrei-pokrovsky/hermcg/precision"
)

// Field is the vector type Operator.Apply operates on.
type Field = field.Field

// OverlapFunc is the auxiliary-worker callback an Operator invokes
// between its internal communication and compute phases, used by the
// block core to overlap an unrelated block caxpy with the operator's
// own latency (spec.md §5, REDESIGN FLAGS). It replaces the original
// implementation's process-wide worker pointer with an explicit
// argument: the operator's only contract to the worker is to invoke
// it exactly OverlapSlices() times, in order, before Apply returns.
type OverlapFunc func()

// Operator is a Hermitian positive-definite linear map A on Field,
// with cumulative FLOP accounting reset by the solver at solve
// boundaries.
type Operator interface {
	// Apply computes out <- A*in. scratch fields may be used internally
	// and are supplied by the caller's buffer manager; the solver cores
	// always pass two, which may alias each other (spec.md §4.4).
	Apply(out, in Field, scratch ...Field) error

	// ApplyWithOverlap is Apply, but additionally invokes overlap
	// exactly OverlapSlices() times while the operator is in flight, if
	// overlap is non-nil. Single-RHS solves never need this and may
	// pass a nil overlap.
	ApplyWithOverlap(out, in Field, overlap OverlapFunc, scratch ...Field) error

	// Flops returns the cumulative floating-point operation count
	// since the last ResetFlops.
	Flops() int64
	// ResetFlops zeroes the cumulative FLOP counter.
	ResetFlops()

	// Staggered reports whether this operator is a staggered-type
	// discretization; it affects the buffer manager's scratch
	// allocation (spec.md §4.4) and the block core's auxiliary-worker
	// slice count (OverlapSlices).
	Staggered() bool
	// Precision is the working precision this operator instance was
	// created for.
	Precision() precision.Precision
	// OverlapSlices is n_update: the number of column-slices the block
	// core's auxiliary worker partitions its deferred caxpy into while
	// overlapping with this operator (2 for staggered, 4 otherwise).
	OverlapSlices() int
}

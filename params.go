// Package hermcg implements the numerical control loop of a
// mixed-precision Conjugate Gradient solver for Hermitian
// positive-definite linear systems A x = b, and its block variant
// BlockCGrQ for A X = B over several right-hand sides at once. The
// discretized operator, field kernels, communication/reduction
// primitives, field allocation, GPU kernel launching, profiling and
// CLI/config loading are all external collaborators reached only
// through the field, operator and densemat package interfaces; this
// package is otherwise independent of their internals.
package hermcg

import (
	"github.com/andrei-pokrovsky/hermcg/precision"
	"github.com/andrei-pokrovsky/hermcg/residual"
)

// Precision re-exports precision.Precision for convenience.
type Precision = precision.Precision

const (
	Half   = precision.Half
	Single = precision.Single
	Double = precision.Double
)

// ReliablePolicy selects between the two reliable-update trigger
// rules of spec.md §4.1. Both must coexist as the source mixes them
// only via a compile-time choice; this module keeps them as a runtime
// enumeration instead.
type ReliablePolicy int

const (
	// ReliableClassical uses the rNorm/maxrx/maxrr/delta test.
	ReliableClassical ReliablePolicy = iota
	// ReliableAlternative uses the d/d_new error-bound estimators.
	ReliableAlternative
)

// BlockAggregation selects how the block core reduces n per-column
// residual norms into the single aggregate rNorm the reliable-update
// test consumes (spec.md §4.2 step 8).
type BlockAggregation int

const (
	// AggregateMin is the conservative policy: trigger a reliable
	// update only once every column's residual is small.
	AggregateMin BlockAggregation = iota
	// AggregateMax is the aggressive policy: trigger as soon as any
	// column's residual is small.
	AggregateMax
)

// Params is the solver's configuration, equivalent to the teacher's
// Settings struct (solve.go) generalized to the mixed-precision,
// Hermitian, block-capable core described in spec.md §3.
type Params struct {
	Tol   float64
	TolHQ float64
	// ResidualType selects which of {L2, heavy-quark} must converge.
	ResidualType residual.Type

	MaxIter int

	// Delta is the reliable-update trigger threshold, 0 <= Delta <= 1.
	// Delta == 0 disables reliable updates.
	Delta float64
	// ReliablePolicy selects the classical or alternative trigger rule.
	ReliablePolicy ReliablePolicy
	// BlockAggregation selects the block core's min/max column-residual
	// aggregation for the reliable-update test.
	BlockAggregation BlockAggregation

	MaxResIncrease      int
	MaxResIncreaseTotal int

	Precision        Precision
	PrecisionSloppy  Precision

	// UseSloppyPartialAccumulator: when true, x_sloppy is a separate
	// sloppy buffer; when false, x_sloppy aliases x.
	UseSloppyPartialAccumulator bool

	// Pipeline enables fused triple/quadruple reductions in the
	// single-RHS path.
	Pipeline bool

	ComputeTrueRes     bool
	ComputeNullVector  bool

	// NumSrc is the number of right-hand sides: 1 selects the
	// single-RHS path, >1 the block path.
	NumSrc int

	// HeavyQuarkCheck is the iteration frequency (in iterations) of
	// heavy-quark residual recomputation.
	HeavyQuarkCheck int

	// ReorthogonalizeQP, if true, explicitly re-enforces Q* P = I after
	// a block reliable update (spec.md §9, Open Questions: "its
	// necessity is empirical", kept as a tunable here).
	ReorthogonalizeQP bool
	// HermitizePAp, if true, explicitly Hermitizes P* A P every
	// iteration in the block core (spec.md §4.2 step 2).
	HermitizePAp bool

	// BlockSolverEnabled gates the block path; a NumSrc > 1 request
	// with this false is a fatal usage error (spec.md §7).
	BlockSolverEnabled bool
}

// DefaultParams returns Params with the teacher's style of sane,
// explicit defaults (cf. solve.go's defaultSettings) rather than Go's
// implicit zero values, since a zero Tol or MaxIter here would make
// the solver silently never stop or stop immediately.
func DefaultParams() Params {
	return Params{
		Tol:                 1e-10,
		TolHQ:               1e-10,
		ResidualType:        residual.L2,
		MaxIter:             1000,
		Delta:               0.1,
		ReliablePolicy:      ReliableClassical,
		BlockAggregation:    AggregateMin,
		MaxResIncrease:      1,
		MaxResIncreaseTotal: 10,
		NumSrc:              1,
		HeavyQuarkCheck:     10,
		BlockSolverEnabled:  true,
	}
}

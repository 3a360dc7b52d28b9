// Package residual implements the residual/convergence predicates of
// spec.md §4.3: idempotent, side-effect-free checks of the current L2
// and heavy-quark residuals against configured tolerances.
package residual

// Type is a bitset selecting which residual kinds must converge,
// mirroring spec.md §3's residual_type.
type Type uint8

const (
	L2 Type = 1 << iota
	HeavyQuark
)

func (t Type) Has(bit Type) bool { return t&bit != 0 }

// Stop returns tol^2 * bnorm2, the L2 stopping threshold of spec.md §4.1.
func Stop(tol, bnorm2 float64) float64 { return tol * tol * bnorm2 }

// L2Converged reports whether the current squared residual r2 has
// reached stop, or whether an L2-breakdown fallback is already active
// (in which case L2 convergence is considered moot and always true).
func L2Converged(r2, stop float64, l2Breakdown bool) bool {
	return l2Breakdown || r2 <= stop
}

// HeavyQuarkConverged reports whether the heavy-quark residual has
// reached tolHQ. stepsSinceReliable and delta gate the check per
// spec.md §4.1: the heavy-quark residual is only trustworthy
// immediately after a reliable update (stepsSinceReliable == 0), and
// only when reliable updates are enabled at all (delta > 0).
func HeavyQuarkConverged(stepsSinceReliable int, delta, hqRes, tolHQ float64) bool {
	return stepsSinceReliable == 0 && delta > 0 && hqRes <= tolHQ
}

// Converged combines the per-kind predicates according to which kinds
// residualType requires.
func Converged(residualType Type, l2Done, hqDone bool) bool {
	ok := true
	if residualType.Has(L2) {
		ok = ok && l2Done
	}
	if residualType.Has(HeavyQuark) {
		ok = ok && hqDone
	}
	return ok
}

// ColumnConverged is the block core's per-column predicate of
// spec.md §4.2: ||r_j||^2 <= stop_j.
func ColumnConverged(r2j, stopj float64) bool { return r2j <= stopj }

// AllColumnsConverged reports whether every column has converged.
func AllColumnsConverged(r2, stop []float64) bool {
	for i := range r2 {
		if !ColumnConverged(r2[i], stop[i]) {
			return false
		}
	}
	return true
}

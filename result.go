package hermcg

import "time"

// Result is the reporting surface spec.md §6 describes the solver
// populating on completion.
type Result struct {
	Secs    float64
	GFlops  float64
	Iter    int
	TrueRes float64
	// TrueResHQ is the heavy-quark true residual; zero if not computed.
	TrueResHQ float64

	// TrueResOffset is the block path's per-column analogue of TrueRes,
	// filled when ComputeTrueRes is set. TrueResHQOffset is never
	// filled, since the block path does not support the heavy-quark
	// residual. Both are nil in the single-RHS path.
	TrueResOffset   []float64
	TrueResHQOffset []float64

	// RUpdate is the number of reliable updates performed, exposed as
	// a diagnostic the way the original QUDA solver tracks it
	// internally (inv_cg_quda.cpp).
	RUpdate int

	// Warning is set (non-nil) on a clean, non-fatal early exit:
	// ErrMaxIter or a drift-budget exhaustion. It is not returned as
	// an error from Solve. Usage errors, including the block path's
	// zero-source condition, panic instead; the only error Solve
	// returns is ErrResidualIncrease from the block path when the
	// initial residual Gram matrix cannot be factorized.
	Warning error
}

func (r *Result) finish(start time.Time, flops int64) {
	r.Secs = time.Since(start).Seconds()
	if r.Secs > 0 {
		r.GFlops = float64(flops) / r.Secs / 1e9
	}
}

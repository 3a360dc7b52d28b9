package hermcg

import "errors"

// Usage errors are fatal and signalled by panicking, mirroring the
// teacher's own precondition panics ("iterative: ...") in
// bicg.go/bicgstab.go/gmres.go. They indicate a programming error by
// the caller, not a numerical condition.
func usageError(msg string) { panic("hermcg: " + msg) }

// Degenerate and drift-budget conditions are returned, not panicked;
// the solver never throws from within the main loop (spec.md §7).
var (
	// ErrResidualIncrease is returned when the true-residual growth
	// budget is exhausted without a heavy-quark fallback available.
	ErrResidualIncrease = errors.New("hermcg: residual increase budget exceeded")
	// ErrHeavyQuarkResidualIncrease is returned when the heavy-quark
	// residual keeps growing across reliable updates once L2breakdown
	// is active.
	ErrHeavyQuarkResidualIncrease = errors.New("hermcg: heavy-quark residual increase budget exceeded")
	// ErrMaxIter is a warning-only condition: the caller may choose to
	// treat it as success with the best iterate found so far.
	ErrMaxIter = errors.New("hermcg: maximum iteration count reached")
)

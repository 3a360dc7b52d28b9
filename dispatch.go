package hermcg

import (
	"github.com/andrei-pokrovsky/hermcg/field"
	"github.com/andrei-pokrovsky/hermcg/operator"
)

// validNumSrc is the set of block widths the source's static
// polymorphism monomorphized over. This module keeps n as a runtime
// value (spec.md §9, REDESIGN FLAGS) rather than instantiating one
// Go type per size, but still rejects anything outside the validated
// set: small-dense Cholesky/inverse cost is host-side O(n^3) work and
// widths outside this set were never exercised by the source.
var validNumSrc = func() map[int]bool {
	m := make(map[int]bool)
	for n := 1; n <= 16; n++ {
		m[n] = true
	}
	for _, n := range []int{24, 32, 48, 64} {
		m[n] = true
	}
	return m
}()

// Solver dispatches between the single-right-hand-side and block CG
// cores by Params.NumSrc, mirroring the source's top-level
// compile-time dispatch (invertQuda's solver-type switch) as a
// runtime choice.
type Solver struct {
	Kernels  field.Kernels
	NewField NewFieldFunc

	single *SingleCG
	block  *BlockCG
}

// NewSolver constructs a Solver. newField allocates a fresh Field of
// a requested precision for both the single-RHS and block paths; for
// NumSrc > 1 the caller is expected to request composite fields of
// matching width via its own closure.
func NewSolver(k field.Kernels, newField NewFieldFunc) *Solver {
	return &Solver{
		Kernels:  k,
		NewField: newField,
		single:   NewSingleCG(k, newField),
		block:    NewBlockCG(k, newField),
	}
}

// Solve routes to SingleCG.Solve or BlockCG.Solve according to
// p.NumSrc, after validating it against the supported block widths
// and the BlockSolverEnabled gate.
func (s *Solver) Solve(mat, matSloppy operator.Operator, x, b field.Field, p Params) (Result, error) {
	if !validNumSrc[p.NumSrc] {
		usageError("unsupported NumSrc (must be 1-16, 24, 32, 48, or 64)")
	}

	if p.NumSrc == 1 {
		if x.CompositeDim() != 1 || b.CompositeDim() != 1 {
			usageError("NumSrc == 1 requires non-composite x and b")
		}
		return s.single.Solve(mat, matSloppy, x, b, p)
	}

	if !p.BlockSolverEnabled {
		usageError("NumSrc > 1 requires Params.BlockSolverEnabled")
	}
	if x.CompositeDim() != p.NumSrc || b.CompositeDim() != p.NumSrc {
		usageError("x and b composite dimensions must equal NumSrc")
	}
	return s.block.Solve(mat, matSloppy, x, b, p)
}

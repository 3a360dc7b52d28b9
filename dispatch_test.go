package hermcg

import (
	"testing"

	"github.com/andrei-pokrovsky/hermcg/field"
	"github.com/andrei-pokrovsky/hermcg/operator"
	"github.com/stretchr/testify/require"
)

func TestSolverDispatchesSingleRHS(t *testing.T) {
	op := operator.NewDiagonalOperator([]float64{1, 2, 3, 4}, Double)
	newField := func(prec Precision) field.Field { return field.NewDenseField(4, prec, false) }
	s := NewSolver(field.DenseKernels{}, newField)

	x := denseFieldOf(0, 0, 0, 0)
	b := denseFieldOf(1, 1, 1, 1)

	p := DefaultParams() // NumSrc defaults to 1

	result, err := s.Solve(op, op, x, b, p)
	require.NoError(t, err)
	require.Nil(t, result.TrueResOffset)
}

func TestSolverDispatchesBlock(t *testing.T) {
	const dim = 4
	op := operator.NewIdentityOperator(dim, Double)
	newField := func(prec Precision) field.Field { return field.NewCompositeField(3, dim, prec, false) }
	s := NewSolver(field.DenseKernels{}, newField)

	x := compositeOf(Double, make([]complex128, dim), make([]complex128, dim), make([]complex128, dim))
	b := compositeOf(Double,
		[]complex128{1, 0, 0, 0},
		[]complex128{0, 1, 0, 0},
		[]complex128{0, 0, 1, 0},
	)

	p := DefaultParams()
	p.NumSrc = 3

	result, err := s.Solve(op, op, x, b, p)
	require.NoError(t, err)
	require.Nil(t, result.Warning)
	require.LessOrEqual(t, result.Iter, p.MaxIter)
}

func TestSolverRejectsUnsupportedNumSrc(t *testing.T) {
	op := operator.NewIdentityOperator(4, Double)
	newField := func(prec Precision) field.Field { return field.NewDenseField(4, prec, false) }
	s := NewSolver(field.DenseKernels{}, newField)

	x := denseFieldOf(0, 0, 0, 0)
	b := denseFieldOf(1, 0, 0, 0)

	p := DefaultParams()
	p.NumSrc = 17 // outside {1..16, 24, 32, 48, 64}

	require.Panics(t, func() {
		_, _ = s.Solve(op, op, x, b, p)
	})
}

func TestSolverRejectsMismatchedCompositeDim(t *testing.T) {
	const dim = 4
	op := operator.NewIdentityOperator(dim, Double)
	newField := func(prec Precision) field.Field { return field.NewCompositeField(2, dim, prec, false) }
	s := NewSolver(field.DenseKernels{}, newField)

	x := compositeOf(Double, make([]complex128, dim), make([]complex128, dim))
	b := denseFieldOf(1, 0, 0, 0) // not composite

	p := DefaultParams()
	p.NumSrc = 2

	require.Panics(t, func() {
		_, _ = s.Solve(op, op, x, b, p)
	})
}

package hermcg

import (
	"testing"

	"golang.org/x/exp/rand"

	"github.com/andrei-pokrovsky/hermcg/field"
	"github.com/andrei-pokrovsky/hermcg/operator"
	"github.com/andrei-pokrovsky/hermcg/residual"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

func denseField(n int, prec Precision) field.Field {
	return field.NewDenseField(n, prec, false)
}

func denseFieldOf(vs ...complex128) *field.DenseField {
	f := field.NewDenseField(len(vs), Double, false)
	copy(f.Data, vs)
	return f
}

func newSingleCGFixture(n int) (*SingleCG, NewFieldFunc) {
	newField := func(prec Precision) field.Field { return denseField(n, prec) }
	return NewSingleCG(field.DenseKernels{}, newField), newField
}

// S1: A = diag(1,2,3,4), b = (1,1,1,1), x0 = 0. Expect x ≈ (1, 1/2, 1/3, 1/4)
// within a handful of iterations.
func TestSingleCGDiagonal(t *testing.T) {
	op := operator.NewDiagonalOperator([]float64{1, 2, 3, 4}, Double)
	cg, _ := newSingleCGFixture(4)

	x := denseFieldOf(0, 0, 0, 0)
	b := denseFieldOf(1, 1, 1, 1)

	p := DefaultParams()
	p.Tol = 1e-10
	p.BlockSolverEnabled = false

	result, err := cg.Solve(op, op, x, b, p)
	require.NoError(t, err)
	require.Nil(t, result.Warning)
	require.LessOrEqual(t, result.Iter, 4)

	want := []float64{1, 0.5, 1.0 / 3, 0.25}
	for i, w := range want {
		require.InDelta(t, w, real(x.Data[i]), 1e-8)
	}
}

// S2: A = I (dim 16), b a random unit vector, x0 = 0. Expect exactly one
// iteration and x = b.
func TestSingleCGIdentityConvergesInOneIteration(t *testing.T) {
	const n = 16
	op := operator.NewIdentityOperator(n, Double)
	cg, _ := newSingleCGFixture(n)

	rnd := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(7)}
	bvals := make([]complex128, n)
	for i := range bvals {
		bvals[i] = complex(rnd.Rand(), 0)
	}
	scale := 1 / floats.Norm(realParts(bvals), 2)
	for i := range bvals {
		bvals[i] *= complex(scale, 0)
	}
	b := denseFieldOf(bvals...)
	x := denseField(n, Double).(*field.DenseField)

	p := DefaultParams()
	p.Tol = 1e-10
	p.BlockSolverEnabled = false

	result, err := cg.Solve(op, op, x, b, p)
	require.NoError(t, err)
	require.Equal(t, 1, result.Iter)
	for i := range x.Data {
		require.InDelta(t, real(b.Data[i]), real(x.Data[i]), 1e-9)
	}
}

func realParts(vs []complex128) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = real(v)
	}
	return out
}

// S4: b = 0, nonzero x0, compute_null_vector = false. Returns x = b = 0,
// true_res = 0, zero iterations.
func TestSingleCGZeroSource(t *testing.T) {
	op := operator.NewIdentityOperator(3, Double)
	cg, _ := newSingleCGFixture(3)

	x := denseFieldOf(5, 5, 5)
	b := denseFieldOf(0, 0, 0)

	p := DefaultParams()
	p.BlockSolverEnabled = false

	result, err := cg.Solve(op, op, x, b, p)
	require.NoError(t, err)
	require.Equal(t, 0, result.Iter)
	require.InDelta(t, 0, result.TrueRes, 1e-12)
	for _, v := range x.Data {
		require.Equal(t, complex128(0), v)
	}
}

// S3 (scaled down from the spec's 1024x1024 for test runtime): mixed
// precision single-RHS solve on a random SPD system should converge
// with at least one reliable update under a tight delta.
func TestSingleCGMixedPrecisionReliableUpdate(t *testing.T) {
	const n = 48
	rnd := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(3)}
	M := make([]complex128, n*n)
	for i := range M {
		M[i] = complex(rnd.Rand(), rnd.Rand())
	}
	matDouble := operator.NewSPDFromGram(n, n, M, Double)
	matSingle := operator.NewSPDFromGram(n, n, M, Single)

	newField := func(prec Precision) field.Field { return denseField(n, prec) }
	cg := NewSingleCG(field.DenseKernels{}, newField)

	xTrue := make([]complex128, n)
	for i := range xTrue {
		xTrue[i] = complex(1, 0)
	}
	bd := make([]complex128, n)
	for i := 0; i < n; i++ {
		var sum complex128
		for j := 0; j < n; j++ {
			sum += matDouble.A[i*n+j] * xTrue[j]
		}
		bd[i] = sum
	}
	b := denseFieldOf(bd...)
	x := denseField(n, Double).(*field.DenseField)

	p := DefaultParams()
	p.Tol = 1e-8
	p.Delta = 0.1
	p.Precision = Double
	p.PrecisionSloppy = Single
	p.BlockSolverEnabled = false
	p.ComputeTrueRes = true
	p.MaxIter = 10000

	result, err := cg.Solve(matDouble, matSingle, x, b, p)
	require.NoError(t, err)
	require.LessOrEqual(t, result.TrueRes, p.Tol*10) // allow slack: single-precision sloppy op
	require.GreaterOrEqual(t, result.RUpdate, 1)
}

// Heavy-quark residual convergence is only re-checked right after a
// reliable update (spec.md §4.1), so this exercises the code path
// without pinning down exactly which iteration declares convergence:
// either the combined criterion is satisfied before MaxIter, or the
// solver exits cleanly with ErrMaxIter while still reporting a tiny
// true residual.
func TestSingleCGHeavyQuarkResidual(t *testing.T) {
	op := operator.NewDiagonalOperator([]float64{1, 2, 3, 4}, Double)
	cg, _ := newSingleCGFixture(4)

	x := denseFieldOf(0, 0, 0, 0)
	b := denseFieldOf(1, 1, 1, 1)

	p := DefaultParams()
	p.ResidualType = residual.L2 | residual.HeavyQuark
	p.TolHQ = 1e-8
	p.Tol = 1e-10
	p.BlockSolverEnabled = false
	p.ComputeTrueRes = true

	result, err := cg.Solve(op, op, x, b, p)
	require.NoError(t, err)
	if result.Warning == nil {
		require.LessOrEqual(t, result.TrueRes, p.Tol*10)
	} else {
		require.Equal(t, ErrMaxIter, result.Warning)
		require.LessOrEqual(t, result.TrueRes, 1e-6)
	}
}

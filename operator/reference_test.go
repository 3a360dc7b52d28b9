package operator

import (
	"testing"

	"golang.org/x/exp/rand"

	"github.com/andrei-pokrovsky/hermcg/field"
	"github.com/andrei-pokrovsky/hermcg/precision"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func denseVec(vs ...complex128) *field.DenseField {
	f := field.NewDenseField(len(vs), precision.Double, false)
	copy(f.Data, vs)
	return f
}

func TestDiagonalOperatorApply(t *testing.T) {
	op := NewDiagonalOperator([]float64{1, 2, 3, 4}, precision.Double)
	x := denseVec(1, 1, 1, 1)
	out := denseVec(0, 0, 0, 0)
	require.NoError(t, op.Apply(out, x))
	require.Equal(t, []complex128{1, 2, 3, 4}, out.Data)
	require.EqualValues(t, 8*16, op.Flops())
	op.ResetFlops()
	require.EqualValues(t, 0, op.Flops())
}

func TestIdentityOperatorApply(t *testing.T) {
	op := NewIdentityOperator(3, precision.Double)
	x := denseVec(1, 2, 3)
	out := denseVec(0, 0, 0)
	require.NoError(t, op.Apply(out, x))
	require.Equal(t, x.Data, out.Data)
}

func TestSPDFromGramIsHermitian(t *testing.T) {
	rnd := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(1)}
	m, n := 5, 3
	M := make([]complex128, m*n)
	for i := range M {
		M[i] = complex(rnd.Rand(), rnd.Rand())
	}
	op := NewSPDFromGram(m, n, M, precision.Double)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			require.InDelta(t, real(op.A[i*n+j]), real(conj(op.A[j*n+i])), 1e-12)
			require.InDelta(t, imag(op.A[i*n+j]), imag(conj(op.A[j*n+i])), 1e-12)
		}
	}
	// Diagonal entries of a Gram matrix are real and non-negative.
	for i := 0; i < n; i++ {
		require.GreaterOrEqual(t, real(op.A[i*n+i]), -1e-12)
		require.InDelta(t, 0, imag(op.A[i*n+i]), 1e-12)
	}
}

func TestApplyWithOverlapInvokesWorkerOncePerSlice(t *testing.T) {
	op := NewIdentityOperator(8, precision.Double).SetStaggered(true)
	cols := make([]*field.DenseField, 4)
	for i := range cols {
		cols[i] = denseVec(1, 1, 1, 1, 1, 1, 1, 1)
	}
	in := &field.CompositeField{Cols: cols}
	outCols := make([]*field.DenseField, 4)
	for i := range outCols {
		outCols[i] = denseVec(0, 0, 0, 0, 0, 0, 0, 0)
	}
	out := &field.CompositeField{Cols: outCols}

	calls := 0
	require.NoError(t, op.ApplyWithOverlap(out, in, func() { calls++ }))
	require.Equal(t, op.OverlapSlices(), calls)
	require.Equal(t, 2, op.OverlapSlices())

	for i := range out.Cols {
		require.Equal(t, in.Cols[i].Data, out.Cols[i].Data)
	}
}

func TestOverlapSlicesByStaggered(t *testing.T) {
	op := NewIdentityOperator(2, precision.Double)
	require.Equal(t, 4, op.OverlapSlices())
	op.SetStaggered(true)
	require.Equal(t, 2, op.OverlapSlices())
}

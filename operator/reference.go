package operator

import (
	"sync/atomic"

	"github.com/andrei-pokrovsky/hermcg/field"
	"github.com/andrei-pokrovsky/hermcg/precision"
)

// DenseOperator is a reference Operator backed by a dense row-major
// Hermitian positive-definite complex matrix, used by the solver's
// own tests in place of a real lattice-Dirac operator. It mirrors the
// teacher's randomSPD test-fixture idiom (cg_test.go, bicgstab_test.go)
// generalized from real symmetric to complex Hermitian.
type DenseOperator struct {
	N         int
	A         []complex128 // row-major N x N, Hermitian
	staggered bool
	prec      precision.Precision
	flops     int64
}

// NewDiagonalOperator builds a real-diagonal Hermitian operator, used
// by scenarios S1 (diag(1,2,3,4)) and S5 (diag(1..16)).
func NewDiagonalOperator(diag []float64, prec precision.Precision) *DenseOperator {
	n := len(diag)
	a := make([]complex128, n*n)
	for i, d := range diag {
		a[i*n+i] = complex(d, 0)
	}
	return &DenseOperator{N: n, A: a, prec: prec}
}

// NewIdentityOperator builds A = I of the given dimension (scenario S2).
func NewIdentityOperator(n int, prec precision.Precision) *DenseOperator {
	diag := make([]float64, n)
	for i := range diag {
		diag[i] = 1
	}
	return NewDiagonalOperator(diag, prec)
}

// NewSPDFromGram builds A = M* M for an arbitrary complex row-major
// m x n matrix M (m >= n), guaranteeing A is Hermitian positive
// semi-definite (strictly definite for M of full column rank),
// mirroring the random-SPD fixture construction pattern used across
// the retrieved gonum-based test files.
func NewSPDFromGram(m, n int, M []complex128, prec precision.Precision) *DenseOperator {
	a := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum complex128
			for k := 0; k < m; k++ {
				sum += conj(M[k*n+i]) * M[k*n+j]
			}
			a[i*n+j] = sum
		}
	}
	return &DenseOperator{N: n, A: a, prec: prec}
}

func conj(v complex128) complex128 { return complex(real(v), -imag(v)) }

func (op *DenseOperator) Staggered() bool             { return op.staggered }
func (op *DenseOperator) Precision() precision.Precision { return op.prec }
func (op *DenseOperator) Flops() int64                { return atomic.LoadInt64(&op.flops) }
func (op *DenseOperator) ResetFlops()                 { atomic.StoreInt64(&op.flops, 0) }

func (op *DenseOperator) OverlapSlices() int {
	if op.staggered {
		return 2
	}
	return 4
}

// SetStaggered marks this operator as staggered-type, affecting
// buffer-manager scratch allocation and the block core's worker
// slice count.
func (op *DenseOperator) SetStaggered(s bool) *DenseOperator { op.staggered = s; return op }

func (op *DenseOperator) matVec(dst, src []complex128) {
	n := op.N
	for i := 0; i < n; i++ {
		var sum complex128
		row := op.A[i*n : i*n+n]
		for j := 0; j < n; j++ {
			sum += row[j] * src[j]
		}
		dst[i] = sum
	}
	atomic.AddInt64(&op.flops, int64(8*n*n))
}

func (op *DenseOperator) Apply(out, in field.Field, scratch ...field.Field) error {
	return op.ApplyWithOverlap(out, in, nil, scratch...)
}

// ApplyWithOverlap applies A column-by-column for composite fields,
// invoking overlap OverlapSlices() times, evenly spaced across the
// columns, exactly as the concurrency model in spec.md §5 requires:
// all slices complete, in order, before Apply returns.
func (op *DenseOperator) ApplyWithOverlap(out, in field.Field, overlap OverlapFunc, scratch ...field.Field) error {
	n := op.OverlapSlices()
	cols := in.CompositeDim()
	if cols == 1 {
		d := in.Component(0).(*field.DenseField)
		o := out.Component(0).(*field.DenseField)
		op.matVec(o.Data, d.Data)
		if overlap != nil {
			for i := 0; i < n; i++ {
				overlap()
			}
		}
		return nil
	}

	slice := (cols + n - 1) / n
	if slice == 0 {
		slice = 1
	}
	done := 0
	for s := 0; s < n; s++ {
		lo, hi := s*slice, (s+1)*slice
		if hi > cols {
			hi = cols
		}
		for c := lo; c < hi; c++ {
			d := in.Component(c).(*field.DenseField)
			o := out.Component(c).(*field.DenseField)
			op.matVec(o.Data, d.Data)
			done++
		}
		if overlap != nil {
			overlap()
		}
	}
	for ; done < cols; done++ {
		d := in.Component(done).(*field.DenseField)
		o := out.Component(done).(*field.DenseField)
		op.matVec(o.Data, d.Data)
	}
	return nil
}

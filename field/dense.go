package field

import (
	"fmt"

	"github.com/andrei-pokrovsky/hermcg/precision"
	"gonum.org/v1/gonum/blas/cblas128"
	gonumblas "gonum.org/v1/gonum/blas/gonum"
)

func init() {
	cblas128.Use(gonumblas.Implementation{})
}

// DenseField is a host-memory reference Field: a single dense
// complex128 column vector. It is the backing type the solver's own
// tests use in place of a real distributed color-spinor field.
type DenseField struct {
	Data      []complex128
	prec      precision.Precision
	staggered bool
}

// NewDenseField allocates a zeroed DenseField of the given logical
// length.
func NewDenseField(n int, prec precision.Precision, staggered bool) *DenseField {
	return &DenseField{Data: make([]complex128, n), prec: prec, staggered: staggered}
}

func (f *DenseField) Precision() precision.Precision { return f.prec }
func (f *DenseField) Len() int                       { return len(f.Data) }
func (f *DenseField) CompositeDim() int               { return 1 }
func (f *DenseField) Staggered() bool                 { return f.staggered }
func (f *DenseField) Component(i int) Field {
	if i != 0 {
		panic("field: DenseField has a single component")
	}
	return f
}

// Clone returns a deep copy with the same precision and length.
func (f *DenseField) Clone() *DenseField {
	g := &DenseField{Data: make([]complex128, len(f.Data)), prec: f.prec, staggered: f.staggered}
	copy(g.Data, f.Data)
	return g
}


// CompositeField is the block solver's n-wide field: n independent
// DenseField columns sharing length and precision.
type CompositeField struct {
	Cols []*DenseField
}

// NewCompositeField allocates n zeroed columns of logical length dim.
func NewCompositeField(n, dim int, prec precision.Precision, staggered bool) *CompositeField {
	cols := make([]*DenseField, n)
	for i := range cols {
		cols[i] = NewDenseField(dim, prec, staggered)
	}
	return &CompositeField{Cols: cols}
}

func (c *CompositeField) Precision() precision.Precision { return c.Cols[0].Precision() }
func (c *CompositeField) Len() int                        { return c.Cols[0].Len() }
func (c *CompositeField) CompositeDim() int                { return len(c.Cols) }
func (c *CompositeField) Staggered() bool                  { return c.Cols[0].Staggered() }
func (c *CompositeField) Component(i int) Field            { return c.Cols[i] }

// Clone returns a deep copy.
func (c *CompositeField) Clone() *CompositeField {
	cols := make([]*DenseField, len(c.Cols))
	for i, col := range c.Cols {
		cols[i] = col.Clone()
	}
	return &CompositeField{Cols: cols}
}

func asDense(f Field) *DenseField {
	d, ok := f.(*DenseField)
	if !ok {
		panic(fmt.Sprintf("field: expected *DenseField, got %T", f))
	}
	return d
}

func asComposite(f Field) *CompositeField {
	c, ok := f.(*CompositeField)
	if !ok {
		panic(fmt.Sprintf("field: expected *CompositeField, got %T", f))
	}
	return c
}

// DenseKernels implements Kernels over DenseField/CompositeField using
// gonum's complex128 level-1 BLAS (cblas128), the natural complex
// analogue of the teacher's real-valued gonum/floats usage.
type DenseKernels struct{}

func (DenseKernels) Copy(dst, src Field) {
	if dst == src {
		return
	}
	if n := dst.CompositeDim(); n > 1 {
		for i := 0; i < n; i++ {
			DenseKernels{}.Copy(dst.Component(i), src.Component(i))
		}
		return
	}
	d, s := asDense(dst), asDense(src)
	copy(d.Data, s.Data)
}

func (DenseKernels) Zero(f Field) {
	if n := f.CompositeDim(); n > 1 {
		for i := 0; i < n; i++ {
			DenseKernels{}.Zero(f.Component(i))
		}
		return
	}
	d := asDense(f)
	for i := range d.Data {
		d.Data[i] = 0
	}
}

func (DenseKernels) Norm2(x Field) float64 {
	xd := asDense(x)
	n := cblas128.Implementation().Dznrm2(len(xd.Data), xd.Data, 1)
	return n * n
}

func (DenseKernels) ReDotProduct(x, y Field) float64 {
	return real(DenseKernels{}.CDotProduct(x, y))
}

func (DenseKernels) CDotProduct(x, y Field) complex128 {
	xd, yd := asDense(x), asDense(y)
	return cblas128.Implementation().Zdotc(len(xd.Data), xd.Data, 1, yd.Data, 1)
}

func (DenseKernels) Axpy(alpha complex128, x, y Field) {
	xd, yd := asDense(x), asDense(y)
	cblas128.Implementation().Zaxpy(len(xd.Data), alpha, xd.Data, 1, yd.Data, 1)
}

func (DenseKernels) Xpy(x, y Field) { DenseKernels{}.Axpy(1, x, y) }

func (DenseKernels) Xpay(x Field, alpha complex128, y Field) {
	yd := asDense(y)
	cblas128.Implementation().Zscal(len(yd.Data), alpha, yd.Data, 1)
	DenseKernels{}.Axpy(1, x, y)
}

func (DenseKernels) Caxpy(alpha complex128, x, y Field) { DenseKernels{}.Axpy(alpha, x, y) }

func (DenseKernels) XmyNorm(x, y Field) float64 {
	xd, yd := asDense(x), asDense(y)
	for i := range yd.Data {
		yd.Data[i] = xd.Data[i] - yd.Data[i]
	}
	return DenseKernels{}.Norm2(yd)
}

func (DenseKernels) AxpyZpbx(alpha float64, x, p, r Field, beta float64) {
	DenseKernels{}.Axpy(complex(alpha, 0), p, x)
	pd, rd := asDense(p), asDense(r)
	for i := range pd.Data {
		pd.Data[i] = rd.Data[i] + complex(beta, 0)*pd.Data[i]
	}
}

func (DenseKernels) AxpyNorm(alpha float64, x, y Field) float64 {
	DenseKernels{}.Axpy(complex(alpha, 0), x, y)
	return DenseKernels{}.Norm2(y)
}

func (DenseKernels) AxpyCGNorm(alpha float64, Ap, r Field) (r2, rNewMinusOldDot float64) {
	rd := asDense(r)
	old := make([]complex128, len(rd.Data))
	copy(old, rd.Data)
	DenseKernels{}.Axpy(complex(-alpha, 0), Ap, r)
	r2 = DenseKernels{}.Norm2(r)
	var cross complex128
	for i, v := range rd.Data {
		cross += conjf(v) * (v - old[i])
	}
	return r2, real(cross)
}

func (DenseKernels) TripleCGReduction(r, p, Ap Field) (r2, Ap2, pAp float64) {
	r2 = DenseKernels{}.Norm2(r)
	Ap2 = DenseKernels{}.Norm2(Ap)
	pAp = DenseKernels{}.ReDotProduct(p, Ap)
	return
}

func (DenseKernels) QuadrupleCGReduction(r, p, Ap Field) (r2, Ap2, pAp, p2 float64) {
	r2, Ap2, pAp = DenseKernels{}.TripleCGReduction(r, p, Ap)
	p2 = DenseKernels{}.Norm2(p)
	return
}

func (DenseKernels) TripleCGUpdate(alpha, beta float64, p, r, x Field) {
	DenseKernels{}.Axpy(complex(alpha, 0), p, x)
	pd, rd := asDense(p), asDense(r)
	for i := range pd.Data {
		pd.Data[i] = rd.Data[i] + complex(beta, 0)*pd.Data[i]
	}
}

func (DenseKernels) HeavyQuarkResidualNorm(x, r Field) HeavyQuarkTriple {
	xd, rd := asDense(x), asDense(r)
	var xx, rr float64
	for i := range xd.Data {
		xx += real(conjf(xd.Data[i]) * xd.Data[i])
		rr += real(conjf(rd.Data[i]) * rd.Data[i])
	}
	if xx == 0 {
		xx = 1
	}
	return HeavyQuarkTriple{X: xx, Y: rr, Z: rr / xx}
}

func (DenseKernels) HDotProduct(r Field) [][]complex128 {
	c := asComposite(r)
	n := len(c.Cols)
	h := make([][]complex128, n)
	for i := range h {
		h[i] = make([]complex128, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := DenseKernels{}.CDotProduct(c.Cols[i], c.Cols[j])
			h[i][j] = v
			h[j][i] = conjf(v)
		}
	}
	return h
}

func (DenseKernels) HDotProductAnorm(r, ar Field) [][]complex128 {
	rc, arc := asComposite(r), asComposite(ar)
	n := len(rc.Cols)
	h := make([][]complex128, n)
	for i := range h {
		h[i] = make([]complex128, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := DenseKernels{}.CDotProduct(rc.Cols[i], arc.Cols[j])
			h[i][j] = v
			if i != j {
				h[j][i] = DenseKernels{}.CDotProduct(rc.Cols[j], arc.Cols[i])
			}
		}
	}
	return h
}

// CaxpyU performs y <- y + x*coeff with coeff treated as upper
// triangular: coeff[i][j] is used only for j >= i.
func (DenseKernels) CaxpyU(coeff [][]complex128, x, y Field) {
	xc, yc := asComposite(x), asComposite(y)
	n := len(xc.Cols)
	for j := 0; j < n; j++ {
		for i := 0; i <= j; i++ {
			if coeff[i][j] == 0 {
				continue
			}
			DenseKernels{}.Axpy(coeff[i][j], xc.Cols[i], yc.Cols[j])
		}
	}
}

// CaxpyzL performs z <- x + y*coeff with coeff treated as lower
// triangular: coeff[i][j] is used only for j <= i (S* from the
// block core's step-wise re-orthogonalization).
func (DenseKernels) CaxpyzL(coeff [][]complex128, x, y, z Field) {
	xc, yc, zc := asComposite(x), asComposite(y), asComposite(z)
	n := len(xc.Cols)
	for j := 0; j < n; j++ {
		zd := zc.Cols[j]
		copy(zd.Data, xc.Cols[j].Data)
		for i := j; i < n; i++ {
			if coeff[i][j] == 0 {
				continue
			}
			DenseKernels{}.Axpy(coeff[i][j], yc.Cols[i], zd)
		}
	}
}

func conjf(v complex128) complex128 { return complex(real(v), -imag(v)) }

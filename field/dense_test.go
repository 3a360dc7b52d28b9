package field

import (
	"testing"

	"github.com/andrei-pokrovsky/hermcg/precision"
	"github.com/stretchr/testify/require"
)

func vec(vs ...complex128) *DenseField {
	f := NewDenseField(len(vs), precision.Double, false)
	copy(f.Data, vs)
	return f
}

func TestDenseKernelsNorm2(t *testing.T) {
	k := DenseKernels{}
	x := vec(3, 4)
	require.InDelta(t, 25, k.Norm2(x), 1e-12)
}

func TestDenseKernelsCDotProduct(t *testing.T) {
	k := DenseKernels{}
	x := vec(complex(1, 1))
	y := vec(complex(2, 0))
	// <x,y> = conj(x)*y = (1-i)*2 = 2-2i.
	got := k.CDotProduct(x, y)
	require.InDelta(t, 2, real(got), 1e-12)
	require.InDelta(t, -2, imag(got), 1e-12)
}

func TestDenseKernelsCopyZero(t *testing.T) {
	k := DenseKernels{}
	x := vec(1, 2, 3)
	y := vec(0, 0, 0)
	k.Copy(y, x)
	require.Equal(t, x.Data, y.Data)

	k.Zero(y)
	for _, v := range y.Data {
		require.Equal(t, complex128(0), v)
	}
}

func TestDenseKernelsCopyNoOpOnAlias(t *testing.T) {
	k := DenseKernels{}
	x := vec(1, 2, 3)
	k.Copy(x, x)
	require.Equal(t, []complex128{1, 2, 3}, x.Data)
}

func TestDenseKernelsAxpyXpy(t *testing.T) {
	k := DenseKernels{}
	x := vec(1, 2)
	y := vec(10, 10)
	k.Axpy(2, x, y)
	require.Equal(t, []complex128{12, 14}, y.Data)

	k.Xpy(x, y)
	require.Equal(t, []complex128{13, 16}, y.Data)
}

func TestDenseKernelsXpay(t *testing.T) {
	k := DenseKernels{}
	x := vec(1, 1)
	y := vec(2, 2)
	k.Xpay(x, 3, y) // y = x + 3*y
	require.Equal(t, []complex128{7, 7}, y.Data)
}

func TestDenseKernelsXmyNorm(t *testing.T) {
	k := DenseKernels{}
	x := vec(5, 5)
	y := vec(1, 1)
	n := k.XmyNorm(x, y) // y = x - y = (4,4); norm2 = 32
	require.InDelta(t, 32, n, 1e-12)
	require.Equal(t, []complex128{4, 4}, y.Data)
}

func TestDenseKernelsAxpyZpbx(t *testing.T) {
	k := DenseKernels{}
	x := vec(0, 0)
	p := vec(1, 1)
	r := vec(2, 2)
	k.AxpyZpbx(1, x, p, r, 2) // x += 1*p; p = r + 2*p
	require.Equal(t, []complex128{1, 1}, x.Data)
	require.Equal(t, []complex128{4, 4}, p.Data)
}

func TestDenseKernelsAxpyCGNorm(t *testing.T) {
	k := DenseKernels{}
	Ap := vec(1, 0)
	r := vec(5, 5)
	r2, cross := k.AxpyCGNorm(2, Ap, r) // r = r - 2*Ap = (3,5)
	require.Equal(t, []complex128{3, 5}, r.Data)
	require.InDelta(t, 9+25, r2, 1e-12)
	// cross = Re<r_new, r_new - r_old> = Re<(3,5),(-2,0)> = Re(conj(3)*(-2)+conj(5)*0) = -6
	require.InDelta(t, -6, cross, 1e-9)
}

func TestDenseKernelsHeavyQuarkResidualNorm(t *testing.T) {
	k := DenseKernels{}
	x := vec(2, 0)
	r := vec(1, 0)
	hq := k.HeavyQuarkResidualNorm(x, r)
	require.InDelta(t, 4, hq.X, 1e-12)
	require.InDelta(t, 1, hq.Y, 1e-12)
	require.InDelta(t, 0.25, hq.Z, 1e-12)
}

func TestDenseKernelsHDotProduct(t *testing.T) {
	k := DenseKernels{}
	c := &CompositeField{Cols: []*DenseField{vec(1, 0), vec(0, 1)}}
	h := k.HDotProduct(c)
	require.Len(t, h, 2)
	require.InDelta(t, 1, real(h[0][0]), 1e-12)
	require.InDelta(t, 0, real(h[0][1]), 1e-12)
	require.InDelta(t, 1, real(h[1][1]), 1e-12)
}

func TestDenseKernelsCaxpyU(t *testing.T) {
	k := DenseKernels{}
	x := &CompositeField{Cols: []*DenseField{vec(1, 0), vec(0, 1)}}
	y := &CompositeField{Cols: []*DenseField{vec(0, 0), vec(0, 0)}}
	coeff := [][]complex128{
		{1, 2},
		{0, 3},
	}
	// y[0] += x[0]*coeff[0][0] = (1,0)
	// y[1] += x[0]*coeff[0][1] + x[1]*coeff[1][1] = 2*(1,0) + 3*(0,1) = (2,3)
	k.CaxpyU(coeff, x, y)
	require.Equal(t, []complex128{1, 0}, y.Cols[0].Data)
	require.Equal(t, []complex128{2, 3}, y.Cols[1].Data)
}

func TestDenseKernelsCaxpyzL(t *testing.T) {
	k := DenseKernels{}
	x := &CompositeField{Cols: []*DenseField{vec(1, 1), vec(2, 2)}}
	y := &CompositeField{Cols: []*DenseField{vec(10, 10), vec(20, 20)}}
	z := &CompositeField{Cols: []*DenseField{vec(0, 0), vec(0, 0)}}
	coeff := [][]complex128{
		{2, 0},
		{3, 4},
	}
	// z[0] = x[0] + y[0]*coeff[0][0] + y[1]*coeff[1][0] = (1,1)+(20,20)+(60,60) = (81,81)
	// z[1] = x[1] + y[1]*coeff[1][1] = (2,2)+(80,80) = (82,82)
	k.CaxpyzL(coeff, x, y, z)
	require.Equal(t, []complex128{81, 81}, z.Cols[0].Data)
	require.Equal(t, []complex128{82, 82}, z.Cols[1].Data)
}

func TestCompositeFieldClone(t *testing.T) {
	c := &CompositeField{Cols: []*DenseField{vec(1, 2), vec(3, 4)}}
	clone := c.Clone()
	clone.Cols[0].Data[0] = 99
	require.Equal(t, complex128(1), c.Cols[0].Data[0])
	require.Equal(t, 2, clone.CompositeDim())
}

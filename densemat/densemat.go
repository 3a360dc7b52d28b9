// Package densemat implements the small dense complex-matrix
// linear algebra the block CG core needs on its n x n state matrices
// (spec.md §6, "Dense-matrix interface"): Hermitian positive-definite
// Cholesky, triangular inverse, and conjugate-transpose (adjoint).
//
// gonum.org/v1/gonum/mat and gonum.org/v1/gonum/lapack64 (used for the
// real symmetric case by kubernetes-kubernetes__cholesky.go and
// ...__qr.go in the retrieved pack) have no complex Hermitian
// Cholesky/QR entry point, so this package hand-rolls the O(n^3)
// factorization the block core needs for n in the low tens; see
// DESIGN.md for the full justification. The API shape below
// (Factorize returning an ok bool, LTo/UTo extraction methods)
// mirrors gonum/mat's own Cholesky type.
package densemat

import "math"

// Dense is a row-major n x n complex matrix.
type Dense struct {
	N    int
	Data []complex128
}

// NewDense allocates a zeroed n x n matrix.
func NewDense(n int) *Dense {
	return &Dense{N: n, Data: make([]complex128, n*n)}
}

func (m *Dense) At(i, j int) complex128    { return m.Data[i*m.N+j] }
func (m *Dense) Set(i, j int, v complex128) { m.Data[i*m.N+j] = v }

// ColNormSq returns the squared column norm sum_i |m(i,j)|^2 of column
// j, used by the block core to read off per-right-hand-side residual
// norms from the upper-triangular accumulator C (spec.md §4.2 step 8).
func (m *Dense) ColNormSq(j int) complex128 {
	var sum complex128
	for i := 0; i < m.N; i++ {
		v := m.At(i, j)
		sum += v * conj(v)
	}
	return sum
}

// Zero clears all entries in place.
func (m *Dense) Zero() {
	for i := range m.Data {
		m.Data[i] = 0
	}
}

// CopyFrom copies the entries of a into the receiver, which must have
// the same dimension.
func (m *Dense) CopyFrom(a *Dense) {
	copy(m.Data, a.Data)
}

// IsUpperTriangular reports whether all strictly-lower entries are
// (numerically) zero, within tol.
func (m *Dense) IsUpperTriangular(tol float64) bool {
	for i := 1; i < m.N; i++ {
		for j := 0; j < i; j++ {
			if cmplxAbs(m.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

func conj(v complex128) complex128 { return complex(real(v), -imag(v)) }
func cmplxAbs(v complex128) float64 { return math.Hypot(real(v), imag(v)) }

// Adjoint sets dst to the conjugate transpose of a. dst and a must not
// alias.
func Adjoint(dst, a *Dense) {
	n := a.N
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dst.Set(j, i, conj(a.At(i, j)))
		}
	}
}

// Mul sets dst = a*b. dst must not alias a or b.
func Mul(dst, a, b *Dense) {
	n := a.N
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum complex128
			for k := 0; k < n; k++ {
				sum += a.At(i, k) * b.At(k, j)
			}
			dst.Set(i, j, sum)
		}
	}
}

// HermitizeUpper reflects the upper triangle of m (including the real
// diagonal) onto the lower triangle, enforcing exact Hermitian
// symmetry after a computation that by construction only filled the
// upper triangle (spec.md §3: H is computed from its upper triangle).
func (m *Dense) HermitizeUpper() {
	n := m.N
	for i := 0; i < n; i++ {
		m.Set(i, i, complex(real(m.At(i, i)), 0))
		for j := i + 1; j < n; j++ {
			m.Set(j, i, conj(m.At(i, j)))
		}
	}
}

// HermitizeAverage sets m <- (m + m*)/2, used to enforce Hermiticity
// on P* A P when BLOCKSOLVER_EXPLICIT_PAP_HERMITIAN-style correction
// is requested (spec.md §4.2 step 2).
func (m *Dense) HermitizeAverage() {
	n := m.N
	for i := 0; i < n; i++ {
		m.Set(i, i, complex(real(m.At(i, i)), 0))
		for j := i + 1; j < n; j++ {
			avg := (m.At(i, j) + conj(m.At(j, i))) / 2
			m.Set(i, j, avg)
			m.Set(j, i, conj(avg))
		}
	}
}

// Cholesky is the lower-triangular factor L of a Hermitian
// positive-definite matrix H = L L*. Factorize reports false (instead
// of panicking or dividing by zero) when H is numerically singular or
// indefinite, so that callers like the block core's scenario S6
// (rank-deficient residual block) can fall back cleanly rather than
// crash on a zero pivot.
type Cholesky struct {
	l  *Dense
	ok bool
}

// Factorize computes the Cholesky factorization of the Hermitian
// matrix h (only its upper triangle, including the diagonal, is
// read; the lower triangle is assumed to be its conjugate). It
// reports whether h is numerically positive definite.
func (c *Cholesky) Factorize(h *Dense) bool {
	n := h.N
	if c.l == nil || c.l.N != n {
		c.l = NewDense(n)
	} else {
		c.l.Zero()
	}
	l := c.l

	const pivotTol = 1e-300
	for j := 0; j < n; j++ {
		var diag complex128
		if j > 0 {
			for k := 0; k < j; k++ {
				diag += l.At(j, k) * conj(l.At(j, k))
			}
		}
		hjj := h.At(j, j)
		d := real(hjj) - real(diag)
		if d <= pivotTol || math.IsNaN(d) {
			c.ok = false
			return false
		}
		ljj := math.Sqrt(d)
		l.Set(j, j, complex(ljj, 0))

		for i := j + 1; i < n; i++ {
			var sum complex128
			hij := h.At(j, i) // upper triangle element H(j,i); H Hermitian => H(i,j)=conj(H(j,i))
			for k := 0; k < j; k++ {
				sum += l.At(i, k) * conj(l.At(j, k))
			}
			l.Set(i, j, (conj(hij)-sum)/complex(ljj, 0))
		}
	}
	c.ok = true
	return true
}

// Ok reports whether the last Factorize succeeded.
func (c *Cholesky) Ok() bool { return c.ok }

// LTo copies the lower-triangular factor into dst.
func (c *Cholesky) LTo(dst *Dense) {
	if !c.ok {
		panic("densemat: Cholesky factorization not ok")
	}
	dst.CopyFrom(c.l)
}

// UTo copies the upper-triangular factor L* into dst.
func (c *Cholesky) UTo(dst *Dense) {
	if !c.ok {
		panic("densemat: Cholesky factorization not ok")
	}
	Adjoint(dst, c.l)
}

// TriangularInverse computes dst = L^-1 for a lower-triangular L,
// using forward substitution. dst must not alias L.
func TriangularInverse(dst, l *Dense) {
	n := l.N
	dst.Zero()
	for j := 0; j < n; j++ {
		dst.Set(j, j, 1/l.At(j, j))
		for i := j + 1; i < n; i++ {
			var sum complex128
			for k := j; k < i; k++ {
				sum += l.At(i, k) * dst.At(k, j)
			}
			dst.Set(i, j, -sum/l.At(i, i))
		}
	}
}

// UpperTriangularInverse computes dst = U^-1 for an upper-triangular
// U, used to invert S (spec.md §3's upper-triangular re-orthogonalization
// factor) without a separate adjoint round trip.
func UpperTriangularInverse(dst, u *Dense) {
	adj := NewDense(u.N)
	Adjoint(adj, u)
	linv := NewDense(u.N)
	TriangularInverse(linv, adj)
	Adjoint(dst, linv)
}

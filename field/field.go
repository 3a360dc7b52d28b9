// Package field defines the abstract vector-field and field-kernel
// contracts the solver core is built against (spec.md §6, "Field
// kernel interface"). In production these are backed by distributed
// lattice-Dirac color-spinor fields on accelerators; the core only
// ever sees the interfaces in this package. DenseField and
// DenseKernels (dense.go) are a host-memory reference implementation
// used by the solver's own tests and by small reference operators.
package field

import "github.com/andrei-pokrovsky/hermcg/precision"

// Field is an opaque vector in a Hilbert space over the complex
// numbers. All fields passed together to a Kernels reduction must
// share Len(). A composite field (CompositeDim() > 1) is the block
// solver's n-wide residual/search-direction block; Component(i)
// returns its i-th column as a Field in its own right.
type Field interface {
	Precision() precision.Precision
	Len() int
	CompositeDim() int
	Staggered() bool
	Component(i int) Field
}

// HeavyQuarkTriple is the packed triple returned by
// Kernels.HeavyQuarkResidualNorm; only the third component (Z) is the
// heavy-quark residual itself, per spec.md §4.3. X and Y are exposed
// because the underlying fused kernel computes them as a byproduct.
type HeavyQuarkTriple struct {
	X, Y, Z float64
}

// Kernels is the set of fused field operations the solver core uses.
// Names follow spec.md §6 literally so that the mapping from spec to
// code needs no translation table.
type Kernels interface {
	// Copy sets dst <- src; a no-op when dst and src alias the same
	// underlying buffer (spec.md §9, aliasing map).
	Copy(dst, src Field)
	// Zero sets f <- 0.
	Zero(f Field)

	Norm2(x Field) float64
	ReDotProduct(x, y Field) float64
	CDotProduct(x, y Field) complex128

	// Axpy computes y <- y + alpha*x.
	Axpy(alpha complex128, x, y Field)
	// Xpy computes y <- y + x.
	Xpy(x, y Field)
	// Xpay computes y <- x + alpha*y.
	Xpay(x Field, alpha complex128, y Field)
	// Caxpy is Axpy under a different name used for the block core's
	// full (non-triangular) coefficient updates.
	Caxpy(alpha complex128, x, y Field)

	// XmyNorm computes y <- x - y and returns norm2(y).
	XmyNorm(x, y Field) float64

	// AxpyZpbx computes x <- x + alpha*p; p <- r + beta*p.
	AxpyZpbx(alpha float64, x, p, r Field, beta float64)

	// AxpyNorm computes y <- y + alpha*x and returns norm2(y).
	AxpyNorm(alpha float64, x, y Field) float64

	// AxpyCGNorm computes r <- r - alpha*Ap and returns the packed pair
	// (norm2(r_new), Re<r_new, r_new-r_old>) in a single fused reduction.
	AxpyCGNorm(alpha float64, Ap, r Field) (r2, rNewMinusOldDot float64)

	// TripleCGReduction fuses the three reductions the pipelined
	// single-RHS core needs without forming r_new: returns
	// (<r,r>, <Ap,Ap>, <p,Ap>).
	TripleCGReduction(r, p, Ap Field) (r2, Ap2, pAp float64)

	// QuadrupleCGReduction is TripleCGReduction extended with <p,p>,
	// needed by the alternative reliable-update policy under pipelining.
	QuadrupleCGReduction(r, p, Ap Field) (r2, Ap2, pAp, p2 float64)

	// TripleCGUpdate performs the fused update
	// x <- x + alpha*p; p <- r + beta*p; r is left untouched (the
	// caller has already applied r <- r - alpha*Ap).
	TripleCGUpdate(alpha, beta float64, p, r, x Field)

	// HeavyQuarkResidualNorm returns the packed triple of spec.md §4.3
	// for the pair (x, r).
	HeavyQuarkResidualNorm(x, r Field) HeavyQuarkTriple

	// HDotProduct returns the n x n Hermitian Gram matrix R* R of a
	// composite field, only the upper triangle computed and the lower
	// filled in by conjugation, per spec.md §3.
	HDotProduct(r Field) [][]complex128
	// HDotProductAnorm is HDotProduct for the A-weighted inner product
	// <Rx, Rx> against a second composite field holding A R.
	HDotProductAnorm(r, ar Field) [][]complex128

	// CaxpyU performs the block-triangular update
	// y <- y + x*coeff, where coeff is upper-triangular n x n.
	CaxpyU(coeff [][]complex128, x, y Field)
	// CaxpyzL performs the block-triangular update
	// z <- x + y*coeff, where coeff is lower-triangular n x n.
	CaxpyzL(coeff [][]complex128, x, y, z Field)
}

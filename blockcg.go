package hermcg

import (
	"log/slog"
	"math"
	"time"

	"github.com/andrei-pokrovsky/hermcg/densemat"
	"github.com/andrei-pokrovsky/hermcg/field"
	"github.com/andrei-pokrovsky/hermcg/operator"
	"github.com/andrei-pokrovsky/hermcg/residual"
)

// BlockCG is the BlockCGrQ core of spec.md §4.2: a multi-right-hand-side
// CG variant that keeps the residual block orthonormalized (Q, with
// upper-triangular accumulator C) via a Cholesky/QR step every
// iteration, grounded on inv_cg_quda.cpp's CG::solve_n / block_reliable.
type BlockCG struct {
	Kernels  field.Kernels
	NewField NewFieldFunc
	Logger   *slog.Logger

	buf blockBuffers
	n   int

	H, C, Cold, S, Linv, pAp, alpha, beta *densemat.Dense
	cholH, cholP                          densemat.Cholesky
}

// NewBlockCG constructs a BlockCG solver.
func NewBlockCG(k field.Kernels, newField NewFieldFunc) *BlockCG {
	return &BlockCG{
		Kernels:  k,
		NewField: newField,
		Logger:   slog.Default().With(slog.String("solver", "blockcg")),
	}
}

func (s *BlockCG) ensureMatrices(n int) {
	if s.n == n {
		return
	}
	s.n = n
	s.H = densemat.NewDense(n)
	s.C = densemat.NewDense(n)
	s.Cold = densemat.NewDense(n)
	s.S = densemat.NewDense(n)
	s.Linv = densemat.NewDense(n)
	s.pAp = densemat.NewDense(n)
	s.alpha = densemat.NewDense(n)
	s.beta = densemat.NewDense(n)
}

// cholesky factorizes h in place into c, falling back to successive
// diagonal loading if h is numerically singular or indefinite (spec.md
// §8 scenario S6: identical right-hand sides make the residual Gram
// matrix rank deficient). The load is absolute: 1e-14 is added to the
// diagonal, growing tenfold per retry up to 1e-8. Returns false only
// if the largest load still fails to produce a positive-definite
// matrix.
func cholesky(c *densemat.Cholesky, h *densemat.Dense) bool {
	if c.Factorize(h) {
		return true
	}
	n := h.N
	loaded := densemat.NewDense(n)
	eps := 1e-14
	for try := 0; try < 7; try++ {
		loaded.CopyFrom(h)
		for i := 0; i < n; i++ {
			loaded.Set(i, i, loaded.At(i, i)+complex(eps, 0))
		}
		if c.Factorize(loaded) {
			return true
		}
		eps *= 10
	}
	return false
}

// hermitianInverse computes dst = m^-1 for a Hermitian positive
// definite m via its Cholesky factor: m^-1 = (L^-1)* L^-1. Returns
// false if m is not (even after diagonal loading) positive definite.
func hermitianInverse(c *densemat.Cholesky, dst, m *densemat.Dense) bool {
	if !cholesky(c, m) {
		return false
	}
	n := m.N
	l := densemat.NewDense(n)
	c.LTo(l)
	linv := densemat.NewDense(n)
	densemat.TriangularInverse(linv, l)
	adj := densemat.NewDense(n)
	densemat.Adjoint(adj, linv)
	densemat.Mul(dst, adj, linv)
	return true
}

// blockCaxpy performs x <- x + p*coeff restricted to columns
// [loCol,hiCol) of p (rows [loCol,hiCol) of the full n x n, not
// triangular, coefficient matrix), used for both
// the eager and overlap-deferred forms of the X-update step (spec.md
// §4.2 step 16).
func blockCaxpy(k field.Kernels, coeff *densemat.Dense, p, x field.Field, loCol, hiCol int) {
	n := coeff.N
	for i := loCol; i < hiCol; i++ {
		for j := 0; j < n; j++ {
			c := coeff.At(i, j)
			if c == 0 {
				continue
			}
			k.Caxpy(c, p.Component(i), x.Component(j))
		}
	}
}

func fullCaxpy(k field.Kernels, coeff *densemat.Dense, p, x field.Field) {
	blockCaxpy(k, coeff, p, x, 0, coeff.N)
}

// blockUpdateWorker is the auxiliary-worker overlap hook of spec.md
// §5/§9 (REDESIGN FLAGS): an explicit OverlapFunc argument replacing
// the original's process-wide dslash::aux_worker pointer. It partitions
// the deferred x_sloppy <- x_sloppy + P*alpha update into the
// operator's OverlapSlices() column ranges of P.
type blockUpdateWorker struct {
	k          field.Kernels
	xSloppy, p field.Field
	coeff      *densemat.Dense
	n, nSlices int
	cursor     int
}

func (w *blockUpdateWorker) reset(k field.Kernels, xSloppy, p field.Field, coeff *densemat.Dense, nSlices int) {
	w.k, w.xSloppy, w.p, w.coeff, w.nSlices, w.cursor = k, xSloppy, p, coeff, nSlices, 0
	w.n = p.CompositeDim()
}

func (w *blockUpdateWorker) step() {
	slice := (w.n + w.nSlices - 1) / w.nSlices
	if slice == 0 {
		slice = 1
	}
	lo := w.cursor * slice
	hi := lo + slice
	if hi > w.n {
		hi = w.n
	}
	if lo < hi {
		blockCaxpy(w.k, w.coeff, w.p, w.xSloppy, lo, hi)
	}
	w.cursor++
}

// Solve overwrites x (an n-wide composite field) with an approximate
// solution of A X = B.
func (s *BlockCG) Solve(mat, matSloppy operator.Operator, x, b field.Field, p Params) (Result, error) {
	if !p.BlockSolverEnabled {
		usageError("block solver requested but BlockSolverEnabled is false")
	}
	if p.ResidualType.Has(residual.HeavyQuark) {
		usageError("heavy-quark residual is not supported by the block solver")
	}

	start := time.Now()
	k := s.Kernels
	n := x.CompositeDim()
	if n != b.CompositeDim() {
		usageError("x and b composite dimensions differ")
	}
	s.ensureMatrices(n)

	stop := make([]float64, n)
	b2 := make([]float64, n)
	b2total := 0.0
	for i := 0; i < n; i++ {
		b2[i] = k.Norm2(b.Component(i))
		stop[i] = residual.Stop(p.Tol, b2[i])
		b2total += b2[i]
	}
	if b2total == 0 {
		usageError("zero right-hand side is undefined for the block solver")
	}

	s.buf.ensure(x, s.NewField, p, matSloppy.Staggered())
	buf := &s.buf
	R, Y, Ap, Swap := buf.R, buf.Y, buf.Ap, buf.Swap
	tmp, tmp2, tmp3 := buf.Tmp, buf.Tmp2, buf.Tmp3
	xSloppy := buf.XSloppy
	P, Q := buf.P, buf.Q

	// Step 2: R = B - A X, using Y as a reference-precision temporary.
	mat.Apply(R, x, Y, tmp3)
	for i := 0; i < n; i++ {
		k.Xpay(b.Component(i), complex(-1, 0), R.Component(i))
	}

	// Step 3: Y = X. Step 4: x_sloppy = 0 (zeroing x itself when aliased).
	k.Copy(Y, x)
	k.Zero(xSloppy)

	// Step 5: H = R* R.
	denseFromRows(s.H, k.HDotProduct(R))
	if !cholesky(&s.cholH, s.H) {
		s.Logger.Error("initial residual Gram matrix is not positive definite")
		return Result{}, ErrResidualIncrease
	}
	// Step 6/7: L L* = H; C = L*; Linv = C^-1.
	s.cholH.UTo(s.C)
	densemat.UpperTriangularInverse(s.Linv, s.C)

	// Step 8: Q = R * Linv via upper-triangular caxpy_U. R is reference
	// precision; copy through the sloppy-precision scratch first.
	k.Copy(Swap, R)
	k.Zero(Q)
	k.CaxpyU(coeffOf(s.Linv), Swap, Q)

	// Step 9: P = Q.
	k.Copy(P, Q)

	rNorm := aggInit(p.BlockAggregation)
	for i := 0; i < n; i++ {
		rNorm = aggUpdate(rNorm, math.Sqrt(real(s.H.At(i, i))), p.BlockAggregation)
	}
	maxrx, maxrr := rNorm, rNorm

	delta := p.Delta
	rUpdate := 0
	iter := 0

	converged := blockDiagonalConverged(s.C, stop)
	justReliableUpdated := true
	var worker blockUpdateWorker
	var resultWarning error

	for !converged && iter < p.MaxIter {
		var overlap operator.OverlapFunc
		if iter > 0 && !justReliableUpdated {
			worker.reset(k, xSloppy, Swap, s.alpha, matSloppy.OverlapSlices())
			overlap = worker.step
		}
		justReliableUpdated = false

		matSloppy.ApplyWithOverlap(Ap, P, overlap, tmp, tmp2)

		// Step 13: pAp = P* A P.
		denseFromRows(s.pAp, k.HDotProductAnorm(P, Ap))
		if p.HermitizePAp {
			s.pAp.HermitizeAverage()
		}

		// Step 14/15: beta = -pAp^-1; alpha = beta*C = -pAp^-1 C.
		if !hermitianInverse(&s.cholP, s.beta, s.pAp) {
			s.Logger.Warn("P* A P lost positive definiteness; forcing a reliable update", slog.Int("iter", iter))
			s.beta.Zero()
		}
		negate(s.beta)
		densemat.Mul(s.alpha, s.beta, s.C)

		// Step 17: Q = Q + Ap*beta (the accumulated minus sign already
		// lives in beta).
		fullCaxpy(k, s.beta, Ap, Q)

		// Step 18/19/20: H = Q* Q; L L* = H; S = L*; Linv = S^-1.
		denseFromRows(s.H, k.HDotProduct(Q))
		if !cholesky(&s.cholH, s.H) {
			resultWarning = ErrResidualIncrease
			s.Logger.Warn("residual block became rank deficient; stopping with current iterate")
			fullCaxpy(k, s.alpha, P, xSloppy)
			justReliableUpdated = true
			break
		}
		s.cholH.UTo(s.S)
		densemat.UpperTriangularInverse(s.Linv, s.S)

		// Step 21: Q = Q * Linv, via caxpy_U into Swap then pointer swap.
		k.Zero(Swap)
		k.CaxpyU(coeffOf(s.Linv), Q, Swap)
		Q, Swap = Swap, Q

		// Step 22/23: C_old = C; C = S * C.
		s.Cold.CopyFrom(s.C)
		densemat.Mul(s.C, s.S, s.Cold)

		// Step 24: per-column residuals are the squared column norms of C.
		r2 := aggInit(p.BlockAggregation)
		for i := 0; i < n; i++ {
			r2 = aggUpdate(r2, real(s.C.ColNormSq(i)), p.BlockAggregation)
		}

		doReliable := blockReliableTest(&rNorm, &maxrx, &maxrr, r2, delta)

		if doReliable {
			s.Logger.Debug("reliable update", slog.Int("iter", iter))

			// Step 16 (deferred): flush this iteration's own X-update now.
			fullCaxpy(k, s.alpha, P, xSloppy)
			for i := 0; i < n; i++ {
				k.Xpy(xSloppy.Component(i), Y.Component(i))
			}

			mat.Apply(R, Y, x, tmp3)
			for i := 0; i < n; i++ {
				k.Xpay(b.Component(i), complex(-1, 0), R.Component(i))
			}
			k.Zero(xSloppy)

			denseFromRows(s.H, k.HDotProduct(R))
			if !cholesky(&s.cholH, s.H) {
				resultWarning = ErrResidualIncrease
				s.Logger.Warn("residual block became rank deficient after reliable update")
				justReliableUpdated = true
				break
			}
			s.cholH.UTo(s.C)
			densemat.UpperTriangularInverse(s.Linv, s.C)

			k.Copy(Swap, R)
			k.Zero(Q)
			k.CaxpyU(coeffOf(s.Linv), Swap, Q)

			// Reliable-update step 9: S = C * C_old^-1 (eq. 6.1 of the
			// BlockCGrQ paper).
			coldInv := densemat.NewDense(n)
			densemat.UpperTriangularInverse(coldInv, s.Cold)
			densemat.Mul(s.S, s.C, coldInv)

			rNorm = aggInit(p.BlockAggregation)
			for i := 0; i < n; i++ {
				rNorm = aggUpdate(rNorm, math.Sqrt(real(s.H.At(i, i))), p.BlockAggregation)
			}
			maxrx, maxrr = rNorm, rNorm
			rUpdate++
			justReliableUpdated = true
		}

		// Step 28: P = Q + P*S*, via caxpyz_L into Swap then pointer swap.
		k.CaxpyzL(coeffOf(adjointOf(s.S)), Q, P, Swap)
		P, Swap = Swap, P

		if p.ReorthogonalizeQP && doReliable {
			reorthogonalizeQP(k, Q, P, n)
		}

		iter++
		converged = blockDiagonalConverged(s.C, stop)
	}

	// The X-update overlapped with the final matSloppy call is still
	// pending unless the last iteration already flushed it eagerly (a
	// reliable update, or an exit on a rank-deficient residual block);
	// Swap holds the P that alpha belongs to.
	if !justReliableUpdated {
		fullCaxpy(k, s.alpha, Swap, xSloppy)
	}
	for i := 0; i < n; i++ {
		k.Xpy(xSloppy.Component(i), Y.Component(i))
	}
	k.Copy(x, Y)

	result := Result{Iter: iter, RUpdate: rUpdate}
	if resultWarning == nil && iter == p.MaxIter {
		resultWarning = ErrMaxIter
		s.Logger.Warn("exceeded maximum iterations", slog.Int("maxiter", p.MaxIter))
	}
	result.Warning = resultWarning

	if p.ComputeTrueRes {
		result.TrueResOffset = make([]float64, n)
		mat.Apply(R, x, Y, tmp3)
		for i := 0; i < n; i++ {
			num := k.XmyNorm(b.Component(i), R.Component(i))
			result.TrueResOffset[i] = math.Sqrt(num / b2[i])
		}
	}

	flops := mat.Flops() + matSloppy.Flops()
	mat.ResetFlops()
	matSloppy.ResetFlops()
	result.finish(start, flops)

	return result, nil
}

// denseFromRows copies a Kernels fused-Gram-matrix result into a
// densemat.Dense, so the block core can drive HDotProduct/
// HDotProductAnorm (the interface's fused reductions for exactly this
// purpose) instead of re-deriving the Gram matrix one CDotProduct at a
// time.
func denseFromRows(dst *densemat.Dense, rows [][]complex128) {
	for i, row := range rows {
		for j, v := range row {
			dst.Set(i, j, v)
		}
	}
}

func negate(m *densemat.Dense) {
	for i := range m.Data {
		m.Data[i] = -m.Data[i]
	}
}

// coeffOf converts a densemat.Dense into the [][]complex128 shape the
// field.Kernels triangular caxpy methods expect.
func coeffOf(m *densemat.Dense) [][]complex128 {
	rows := make([][]complex128, m.N)
	for i := range rows {
		rows[i] = make([]complex128, m.N)
		for j := 0; j < m.N; j++ {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}

func adjointOf(m *densemat.Dense) *densemat.Dense {
	adj := densemat.NewDense(m.N)
	densemat.Adjoint(adj, m)
	return adj
}

// aggInit/aggUpdate implement the block core's compile-time "reliable
// policy" of spec.md §4.2 step 8 as a runtime BlockAggregation enum:
// AggregateMin starts from +Inf and tracks the smallest per-column
// value (conservative: update only once every column is small);
// AggregateMax starts from 0 and tracks the largest (aggressive).
func aggInit(policy BlockAggregation) float64 {
	if policy == AggregateMin {
		return math.Inf(1)
	}
	return 0
}

func aggUpdate(acc, v float64, policy BlockAggregation) float64 {
	if policy == AggregateMin {
		if v < acc {
			return v
		}
		return acc
	}
	if v > acc {
		return v
	}
	return acc
}

// blockReliableTest mirrors block_reliable from inv_cg_quda.cpp: track
// maxrx/maxrr against the aggregate residual and trigger when the
// aggregate has dropped by a factor of delta relative to the largest
// residual seen since the last update.
func blockReliableTest(rNorm, maxrx, maxrr *float64, r2, delta float64) bool {
	*rNorm = math.Sqrt(r2)
	if *rNorm > *maxrx {
		*maxrx = *rNorm
	}
	if *rNorm > *maxrr {
		*maxrr = *rNorm
	}
	return *rNorm < delta*(*maxrr)
}

// blockDiagonalConverged reports whether every column's squared
// residual norm (the squared column norm of C) is within its stopping
// threshold.
func blockDiagonalConverged(c *densemat.Dense, stop []float64) bool {
	r2 := make([]float64, c.N)
	for i := range r2 {
		r2[i] = real(c.ColNormSq(i))
	}
	return residual.AllColumnsConverged(r2, stop)
}

// reorthogonalizeQP explicitly restores Q* P = I after a reliable
// update: O = I - Q* P; P <- P + Q O (spec.md §4.2 step 12, a tunable
// per spec.md §9 Open Questions).
func reorthogonalizeQP(k field.Kernels, q, p field.Field, n int) {
	o := densemat.NewDense(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := k.CDotProduct(q.Component(i), p.Component(j))
			if i == j {
				v = 1 - v
			} else {
				v = -v
			}
			o.Set(i, j, v)
		}
	}
	fullCaxpy(k, o, q, p)
}

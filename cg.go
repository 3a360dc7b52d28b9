package hermcg

import (
	"log/slog"
	"math"
	"time"

	"github.com/andrei-pokrovsky/hermcg/field"
	"github.com/andrei-pokrovsky/hermcg/operator"
	"github.com/andrei-pokrovsky/hermcg/residual"
)

// SingleCG is the single-right-hand-side mixed-precision CG core of
// spec.md §4.1, grounded on inv_cg_quda.cpp's CG::operator() and
// generalized to the abstract field.Kernels/operator.Operator
// contracts.
type SingleCG struct {
	Kernels  field.Kernels
	NewField NewFieldFunc
	Logger   *slog.Logger

	buf singleBuffers
}

// NewSingleCG constructs a SingleCG solver. newField allocates fresh
// Field instances of a requested precision with the caller's logical
// length/staggered-ness already fixed in its closure.
func NewSingleCG(k field.Kernels, newField NewFieldFunc) *SingleCG {
	return &SingleCG{
		Kernels:  k,
		NewField: newField,
		Logger:   slog.Default().With(slog.String("solver", "cg")),
	}
}

// Solve overwrites x with an approximate solution of A x = b. x holds
// the initial guess on entry (may be zero).
func (s *SingleCG) Solve(mat, matSloppy operator.Operator, x, b field.Field, p Params) (Result, error) {
	start := time.Now()
	k := s.Kernels

	b2 := k.Norm2(b)
	if b2 == 0 && !p.ComputeNullVector {
		s.Logger.Warn("inverting on zero-field source")
		k.Copy(x, b)
		return Result{TrueRes: 0}, nil
	}

	s.buf.ensure(x, s.NewField, p, matSloppy.Staggered())
	buf := &s.buf
	r, y, Ap, tmp, tmp3 := buf.R, buf.Y, buf.Ap, buf.Tmp, buf.Tmp3
	rSloppy, xSloppy, pp := buf.RSloppy, buf.XSloppy, buf.P

	u := p.PrecisionSloppy.Eps()
	uhigh := p.Precision.Eps()
	deps := math.Sqrt(u)
	const dfac = 1.1

	alternative := p.ReliablePolicy == ReliableAlternative

	var Anorm, dinit, d, dNew, xNorm, xnorm, pnorm, ppnorm float64
	if alternative {
		mat.Apply(r, b, y, tmp3)
		Anorm = math.Sqrt(k.Norm2(r) / b2)
	}

	mat.Apply(r, x, y, tmp3)
	r2 := k.XmyNorm(b, r)
	if b2 == 0 {
		b2 = r2
	}

	if buf.xSloppyAliasesX(x) {
		k.Zero(y)
	} else {
		k.Copy(y, x)
		k.Zero(xSloppy)
	}

	delta := p.Delta
	useHQ := p.ResidualType.Has(residual.HeavyQuark)
	heavyQuarkRestart := false

	stop := residual.Stop(p.Tol, b2)

	var hqRes, hqResOld float64
	if useHQ {
		hqRes = math.Sqrt(k.HeavyQuarkResidualNorm(x, r).Z)
		hqResOld = hqRes
	}
	heavyQuarkCheck := p.HeavyQuarkCheck
	if heavyQuarkCheck <= 0 {
		heavyQuarkCheck = 1
	}

	var alpha, beta, pAp float64
	rUpdate := 0

	rNorm := math.Sqrt(r2)
	r0Norm := rNorm
	maxrx, maxrr := rNorm, rNorm
	xNorm = math.Sqrt(k.Norm2(x))

	maxResIncrease := p.MaxResIncrease
	if useHQ {
		maxResIncrease = 0
	}
	maxResIncreaseTotal := p.MaxResIncreaseTotal
	hqMaxResIncrease := maxResIncrease + 1

	resIncrease, resIncreaseTotal, hqResIncrease := 0, 0, 0
	l2Breakdown := false

	k.Copy(rSloppy, r)
	k.Copy(pp, rSloppy)

	if alternative {
		dinit = uhigh * (rNorm + Anorm*xNorm)
		d = dinit
	}

	iter := 0
	converged := convergenceBoth(p, r2, stop, l2Breakdown, 1, delta, hqRes)

	stepsSinceReliable := 1

	var resultWarning error

	for !converged && iter < p.MaxIter {
		matSloppy.Apply(Ap, pp, tmp, buf.Tmp2)

		var r2Old float64
		var sigma float64
		breakdown := false

		if p.Pipeline {
			var Ap2 float64
			if alternative {
				var p2 float64
				r2, Ap2, pAp, p2 = k.QuadrupleCGReduction(rSloppy, pp, Ap)
				ppnorm = p2
			} else {
				r2, Ap2, pAp = k.TripleCGReduction(rSloppy, pp, Ap)
			}
			r2Old = r2
			alpha = r2 / pAp
			sigma = alpha * (alpha*Ap2 - pAp)
			if sigma < 0 || stepsSinceReliable == 0 {
				r2 = k.AxpyNorm(-alpha, Ap, rSloppy)
				sigma = r2
				breakdown = true
			}
			r2 = sigma
		} else {
			r2Old = r2
			pAp = k.ReDotProduct(pp, Ap)
			alpha = r2 / pAp
			r2New, cross := k.AxpyCGNorm(alpha, Ap, rSloppy)
			r2 = r2New
			if cross >= 0 {
				sigma = cross
			} else {
				sigma = r2
			}
		}

		rNorm = math.Sqrt(r2)
		var updateX, updateR bool
		if alternative {
			updateX = (d <= deps*math.Sqrt(r2Old) || dfac*dinit > deps*r0Norm) &&
				(dNew > deps*rNorm) && (dNew > dfac*dinit)
			updateR = false
		} else {
			if rNorm > maxrx {
				maxrx = rNorm
			}
			if rNorm > maxrr {
				maxrr = rNorm
			}
			updateX = rNorm < delta*r0Norm && r0Norm <= maxrx
			updateR = (rNorm < delta*maxrr && r0Norm <= maxrr) || updateX
		}

		hqDoneNow := residual.HeavyQuarkConverged(0, delta, hqRes, p.TolHQ)
		if convergenceBoth(p, r2, stop, l2Breakdown, 0, delta, hqRes) && delta >= p.Tol {
			updateX = true
		}
		if useHQ && l2Breakdown && hqDoneNow && delta >= p.Tol {
			updateX = true
		}

		if !(updateR || updateX) {
			beta = sigma / r2Old

			if p.Pipeline && !breakdown {
				k.Axpy(complex(-alpha, 0), Ap, rSloppy)
				k.TripleCGUpdate(alpha, beta, pp, rSloppy, xSloppy)
			} else {
				k.AxpyZpbx(alpha, xSloppy, pp, rSloppy, beta)
			}

			if useHQ && iter%heavyQuarkCheck == 0 {
				if xSloppy != x {
					k.Copy(tmp, y)
					k.Xpy(xSloppy, tmp)
					hqRes = math.Sqrt(k.HeavyQuarkResidualNorm(tmp, rSloppy).Z)
				} else {
					k.Copy(r, rSloppy)
					hqRes = math.Sqrt(k.HeavyQuarkResidualNorm(x, r).Z)
				}
			}

			if alternative {
				d = dNew
				pnorm += alpha * alpha * ppnorm
				xnorm = math.Sqrt(pnorm)
				dNew = d + u*rNorm + uhigh*Anorm*xnorm
			}
			stepsSinceReliable++
		} else {
			k.Axpy(complex(alpha, 0), pp, xSloppy)
			if !buf.xSloppyAliasesX(x) {
				k.Copy(x, xSloppy)
			}
			k.Xpy(x, y)
			mat.Apply(r, y, x, tmp3)
			r2 = k.XmyNorm(b, r)

			k.Copy(rSloppy, r)
			k.Zero(xSloppy)

			if alternative {
				dinit = uhigh * (math.Sqrt(r2) + Anorm*math.Sqrt(k.Norm2(y)))
				d = dNew
				xnorm = 0
				pnorm = 0
				dNew = dinit
			} else {
				rNorm = math.Sqrt(r2)
				maxrr = rNorm
				maxrx = rNorm
			}

			if useHQ {
				hqRes = math.Sqrt(k.HeavyQuarkResidualNorm(y, r).Z)
			}

			if math.Sqrt(r2) > r0Norm && updateX {
				resIncrease++
				resIncreaseTotal++
				s.Logger.Warn("true residual norm increased after reliable update",
					slog.Float64("new", math.Sqrt(r2)), slog.Float64("previous", r0Norm),
					slog.Int("total_increases", resIncreaseTotal))
				if resIncrease > maxResIncrease || resIncreaseTotal > maxResIncreaseTotal {
					if useHQ {
						l2Breakdown = true
					} else {
						s.Logger.Warn("solver exiting due to too many true residual norm increases")
						resultWarning = ErrResidualIncrease
						break
					}
				}
			} else {
				resIncrease = 0
			}
			r0Norm = math.Sqrt(r2)

			if useHQ && l2Breakdown {
				delta = 0
				s.Logger.Warn("restarting without reliable updates for heavy-quark residual")
				heavyQuarkRestart = true
				if hqRes > hqResOld {
					hqResIncrease++
					s.Logger.Warn("heavy-quark residual norm increased",
						slog.Float64("new", hqRes), slog.Float64("previous", hqResOld))
					if hqResIncrease > hqMaxResIncrease {
						s.Logger.Warn("solver exiting due to too many heavy-quark residual norm increases")
						resultWarning = ErrHeavyQuarkResidualIncrease
						break
					}
				}
			}

			if useHQ && heavyQuarkRestart {
				k.Copy(pp, rSloppy)
				heavyQuarkRestart = false
			} else {
				rp := k.CDotProduct(rSloppy, pp) / complex(r2, 0)
				k.Caxpy(-rp, rSloppy, pp)
				beta = r2 / r2Old
				k.Xpay(rSloppy, complex(beta, 0), pp)
			}

			stepsSinceReliable = 0
			rUpdate++
			hqResOld = hqRes
		}

		iter++

		l2Done := residual.L2Converged(r2, stop, l2Breakdown)
		hqDone := residual.HeavyQuarkConverged(stepsSinceReliable, delta, hqRes, p.TolHQ)
		converged = residual.Converged(p.ResidualType, l2Done, hqDone)
	}

	if !buf.xSloppyAliasesX(x) {
		k.Copy(x, xSloppy)
	}
	k.Xpy(y, x)

	result := Result{Iter: iter, RUpdate: rUpdate}
	if resultWarning == nil && iter == p.MaxIter {
		resultWarning = ErrMaxIter
		s.Logger.Warn("exceeded maximum iterations", slog.Int("maxiter", p.MaxIter))
	}
	result.Warning = resultWarning

	if p.ComputeTrueRes {
		mat.Apply(r, x, y, tmp3)
		result.TrueRes = math.Sqrt(k.XmyNorm(b, r) / b2)
		result.TrueResHQ = math.Sqrt(k.HeavyQuarkResidualNorm(x, r).Z)
	}

	flops := mat.Flops() + matSloppy.Flops()
	mat.ResetFlops()
	matSloppy.ResetFlops()
	result.finish(start, flops)

	return result, nil
}

// convergenceBoth mirrors the original's free function convergence():
// combines L2 and (optionally) heavy-quark done-ness exactly the way
// residual.Converged does, but is kept local since it needs
// stepsSinceReliable which is loop-local state.
func convergenceBoth(p Params, r2, stop float64, l2Breakdown bool, stepsSinceReliable int, delta, hqRes float64) bool {
	l2Done := residual.L2Converged(r2, stop, l2Breakdown)
	hqDone := residual.HeavyQuarkConverged(stepsSinceReliable, delta, hqRes, p.TolHQ)
	return residual.Converged(p.ResidualType, l2Done, hqDone)
}


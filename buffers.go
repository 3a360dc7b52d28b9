package hermcg

import "github.com/andrei-pokrovsky/hermcg/field"

// NewFieldFunc allocates a fresh Field of the given precision with
// the caller's logical length/composite-dimension/staggered-ness
// baked in. Field allocation is an external collaborator (spec.md
// §1); the core only ever calls this factory, mirroring the way the
// original ColorSpinorField::Create(csParam) call is the allocator
// the solver defers to.
type NewFieldFunc func(prec Precision) field.Field

// singleBuffers is the mixed-precision buffer manager of spec.md §4.4
// for the single-RHS path: it decides, once per solver lifetime,
// whether r_sloppy, x_sloppy, tmp2, tmp3 alias an existing field or
// need their own allocation, and never revisits that decision.
type singleBuffers struct {
	init bool

	R, Y, Ap, P         field.Field
	Tmp, Tmp2, Tmp3     field.Field
	RSloppy, XSloppy    field.Field
}

// ensure performs the one-time allocation/aliasing resolution. x is
// the caller's solution field (its precision is "precision(x)" in
// spec.md's notation); staggered comes from the operator.
func (b *singleBuffers) ensure(x field.Field, newField NewFieldFunc, p Params, staggered bool) {
	if b.init {
		return
	}

	b.R = newField(p.Precision)
	b.Y = newField(p.Precision)
	b.Ap = newField(p.PrecisionSloppy)
	b.Tmp = newField(p.PrecisionSloppy)

	// tmp2 is needed only for non-staggered (Wilson-like multi-GPU)
	// operators; otherwise it aliases tmp.
	if staggered {
		b.Tmp2 = b.Tmp
	} else {
		b.Tmp2 = newField(p.PrecisionSloppy)
	}

	// tmp3 (reference precision) is needed only when precision !=
	// precision_sloppy and the operator is non-staggered; otherwise it
	// aliases tmp.
	if p.Precision != p.PrecisionSloppy && !staggered {
		b.Tmp3 = newField(p.Precision)
	} else {
		b.Tmp3 = b.Tmp
	}

	// r_sloppy = r iff precision_sloppy == precision(x).
	if p.PrecisionSloppy == x.Precision() {
		b.RSloppy = b.R
	} else {
		b.RSloppy = newField(p.PrecisionSloppy)
	}

	// x_sloppy = x iff precision_sloppy == precision(x) OR
	// !use_sloppy_partial_accumulator.
	if p.PrecisionSloppy == x.Precision() || !p.UseSloppyPartialAccumulator {
		b.XSloppy = x
	} else {
		b.XSloppy = newField(p.PrecisionSloppy)
	}

	b.P = newField(p.PrecisionSloppy)

	b.init = true
}

// xSloppyAliasesX reports whether x_sloppy is the caller's own x
// buffer, in which case the solver skips copying x_sloppy into x, and
// at start-up zeroes y instead of copying x into it (spec.md §9,
// aliasing map).
func (b *singleBuffers) xSloppyAliasesX(x field.Field) bool { return b.XSloppy == x }

// blockBuffers is the block path's analogue of singleBuffers: every
// field is an n-wide composite field (spec.md §4.2/§4.4).
type blockBuffers struct {
	init bool

	R, Y, Ap, P, Q         field.Field
	Swap                   field.Field // scratch composite buffer reused for Q's and P's pointer-swap updates
	Tmp, Tmp2, Tmp3        field.Field
	XSloppy                field.Field
	XSloppySaved           field.Field // allocated (or aliased) like XSloppy; BlockCG.Solve does not read or write it
}

func (b *blockBuffers) ensure(x field.Field, newField NewFieldFunc, p Params, staggered bool) {
	if b.init {
		return
	}

	b.R = newField(p.Precision)
	b.Y = newField(p.Precision)
	b.Ap = newField(p.PrecisionSloppy)
	b.Q = newField(p.PrecisionSloppy)
	b.P = newField(p.PrecisionSloppy)
	b.Swap = newField(p.PrecisionSloppy)
	b.Tmp = newField(p.PrecisionSloppy)

	if staggered {
		b.Tmp2 = b.Tmp
	} else {
		b.Tmp2 = newField(p.PrecisionSloppy)
	}
	if p.Precision != p.PrecisionSloppy && !staggered {
		b.Tmp3 = newField(p.Precision)
	} else {
		b.Tmp3 = b.Tmp
	}

	if p.PrecisionSloppy == x.Precision() || !p.UseSloppyPartialAccumulator {
		b.XSloppy = x
		b.XSloppySaved = x
	} else {
		b.XSloppy = newField(p.PrecisionSloppy)
		b.XSloppySaved = newField(p.PrecisionSloppy)
	}

	b.init = true
}

package smt

import (
	"math"
)

// FPKind tags the IEEE-754 format of an FP expression (spec §3 "Floating
// point expression").
type FPKind uint8

const (
	FPSingle FPKind = iota // binary32
	FPDouble                // binary64
)

func (k FPKind) width() Width {
	if k == FPSingle {
		return 32
	}
	return 64
}

// FP is an opaque handle into the IEEE-754 expression algebra, width- and
// type-tagged the same way BV is width-tagged. Concrete FP values fold
// eagerly through Go's math package; symbolic ones build an expression node
// that the solver does not evaluate.
type FP struct {
	kind  FPKind
	isConst bool
	value float64 // holds either the float32 or float64 value

	// symbolic node, mirrors BV's binary/unary shape
	name string
	fop  fpOp
	lhs  *FP
	rhs  *FP
}

type fpOp uint8

const (
	fpAdd fpOp = iota
	fpSub
	fpMul
	fpDiv
	fpNeg
	fpAbs
	fpSqrt
)

func mustSameFPKind(a, b *FP) {
	if a.kind != b.kind {
		panic("smt: FP kind mismatch")
	}
}

// NewFPConst builds a constant FP value of the given kind, rounding to the
// kind's precision immediately (so a FPSingle constant never carries double
// precision bits).
func NewFPConst(v float64, k FPKind) *FP {
	if k == FPSingle {
		v = float64(float32(v))
	}
	return &FP{kind: k, isConst: true, value: v}
}

// NewFPSymbol builds a fresh unconstrained symbolic FP value.
func NewFPSymbol(name string, k FPKind) *FP {
	return &FP{kind: k, name: name}
}

// Kind reports the expression's IEEE-754 format.
func (f *FP) Kind() FPKind { return f.kind }

// IsConst reports whether the expression is a known point value.
func (f *FP) IsConst() (float64, bool) {
	if f.isConst {
		return f.value, true
	}
	return 0, false
}

func (f *FP) roundToKind(v float64) float64 {
	if f.kind == FPSingle {
		return float64(float32(v))
	}
	return v
}

func fpArith(op fpOp, a, b *FP) *FP {
	mustSameFPKind(a, b)
	if av, ok := a.IsConst(); ok {
		if bv, ok := b.IsConst(); ok {
			return NewFPConst(foldFPArith(op, av, bv), a.kind)
		}
	}
	return &FP{kind: a.kind, fop: op, lhs: a, rhs: b}
}

func foldFPArith(op fpOp, a, b float64) float64 {
	switch op {
	case fpAdd:
		return a + b
	case fpSub:
		return a - b
	case fpMul:
		return a * b
	case fpDiv:
		return a / b
	default:
		panic("smt: unsupported fp binary op in fold")
	}
}

// Add, Sub, Mul, Div: IEEE-754 arithmetic under the expression's rounding
// mode (the oracle always evaluates round-to-nearest-even, per
// state.State.FPRoundingMode default, see SPEC_FULL.md §9).
func (f *FP) Add(o *FP) *FP { return fpArith(fpAdd, f, o) }
func (f *FP) Sub(o *FP) *FP { return fpArith(fpSub, f, o) }
func (f *FP) Mul(o *FP) *FP { return fpArith(fpMul, f, o) }
func (f *FP) Div(o *FP) *FP { return fpArith(fpDiv, f, o) }

// Neg, Abs, Sqrt: unary IEEE-754 operations.
func (f *FP) Neg() *FP {
	if v, ok := f.IsConst(); ok {
		return NewFPConst(-v, f.kind)
	}
	return &FP{kind: f.kind, fop: fpNeg, lhs: f}
}

func (f *FP) Abs() *FP {
	if v, ok := f.IsConst(); ok {
		return NewFPConst(math.Abs(v), f.kind)
	}
	return &FP{kind: f.kind, fop: fpAbs, lhs: f}
}

func (f *FP) Sqrt() *FP {
	if v, ok := f.IsConst(); ok {
		return NewFPConst(math.Sqrt(v), f.kind)
	}
	return &FP{kind: f.kind, fop: fpSqrt, lhs: f}
}

// Eq, Lt, Le report IEEE-754 comparisons as a 1-bit BV. NaN compares false
// against everything including itself, matching IEEE-754 semantics.
func (f *FP) Eq(o *FP) *BV { return fpCmp(f, o, func(a, b float64) bool { return a == b }) }
func (f *FP) Lt(o *FP) *BV { return fpCmp(f, o, func(a, b float64) bool { return a < b }) }
func (f *FP) Le(o *FP) *BV { return fpCmp(f, o, func(a, b float64) bool { return a <= b }) }

func fpCmp(a, b *FP, pred func(a, b float64) bool) *BV {
	mustSameFPKind(a, b)
	if av, ok := a.IsConst(); ok {
		if bv, ok := b.IsConst(); ok {
			return FromBool(pred(av, bv))
		}
	}
	// Symbolic FP comparisons are left as a 1-bit marker BV symbol named
	// "fpcmp", unrelated to the operands; the solver treats it as an
	// unconstrained symbol.
	return &BV{width: 1, kind: kindSymbol, name: "fpcmp"}
}

// ToBits reinterprets the FP value as a same-width BV bit pattern
// (spec §4.4 IEEE-754 reinterpret-cast primitives).
func (f *FP) ToBits() *BV {
	if v, ok := f.IsConst(); ok {
		if f.kind == FPSingle {
			return NewConst(uint64(math.Float32bits(float32(v))), 32)
		}
		return NewConst(math.Float64bits(v), 64)
	}
	return &BV{width: f.kind.width(), kind: kindSymbol, name: "fpbits:" + f.name}
}

// FPFromBits reinterprets a BV bit pattern as an FP value of kind k. Panics
// if the BV's width does not match the kind's width.
func FPFromBits(b *BV, k FPKind) *FP {
	if b.width != k.width() {
		panic("smt: FPFromBits width mismatch")
	}
	if v, ok := b.IsConst(); ok {
		if k == FPSingle {
			return NewFPConst(float64(math.Float32frombits(uint32(v))), k)
		}
		return NewFPConst(math.Float64frombits(v), k)
	}
	return &FP{kind: k, name: "frombits:" + b.name}
}

// ToBV converts (with truncation toward zero, per IEEE-754 convertToInteger)
// the FP value into an iw-bit integer BV.
func (f *FP) ToBV(iw Width, signed bool) *BV {
	if v, ok := f.IsConst(); ok {
		if signed {
			return NewConst(uint64(int64(v))&mask(iw), iw)
		}
		return NewConst(uint64(v)&mask(iw), iw)
	}
	return &BV{width: iw, kind: kindSymbol, name: "fptoint:" + f.name}
}

// FPFromBV converts an integer BV into an FP value of kind k.
func FPFromBV(b *BV, k FPKind, signed bool) *FP {
	if v, ok := b.IsConst(); ok {
		if signed {
			return NewFPConst(float64(int64(signExtendU64(v, b.width))), k)
		}
		return NewFPConst(float64(v), k)
	}
	return &FP{kind: k, name: "intfromfp:" + b.name}
}

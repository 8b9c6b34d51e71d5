// Package smt provides the bit-vector / IEEE-754 expression algebra and the
// bounded-enumeration solver facade the rest of the engine treats as its SMT
// oracle (spec §4.1, §3 "Bit-vector expression").
//
// No SMT solver binding (z3, boolector, bitwuzla...) appears anywhere in the
// example corpus this engine was grown from, so the facade is its own
// self-contained oracle: constants fold eagerly, and anything symbolic is
// resolved by a bounded search over concrete assignments (see solver.go).
// The strategy — fast concrete path, then bounded enumeration, where a
// search that finds no model is reported as unsatisfiable — mirrors the
// teacher's QuickCheck/ExhaustiveCheck sweep.
package smt

import (
	"fmt"
	"math/bits"
)

// Width is a bit-vector width in bits.
type Width uint32

// exprKind tags the shape of an expr node.
type exprKind uint8

const (
	kindConst exprKind = iota
	kindSymbol
	kindUnary
	kindBinary
	kindExtend
	kindSlice
	kindConcat
	kindIte
)

type unaryOp uint8

const (
	opNot unaryOp = iota
	opNeg
)

type binaryOp uint8

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opUDiv
	opSDiv
	opURem
	opSRem
	opAnd
	opOr
	opXor
	opLsl
	opLsr
	opAsr
	opRor
	opEq
	opUlt
	opUle
	opSlt
	opSle
	opUaddo
	opSaddo
	opUsubo
	opSsubo
	opUadds
	opSadds
	opUsubs
	opSsubs
)

// BV is an opaque handle into the expression algebra, carrying its own
// width. Two BVs are only comparable in shape (Equal), never by identity:
// the same concrete value built twice yields structurally equal but
// distinct handles, exactly as an SMT solver's term DAG would.
type BV struct {
	width Width
	kind  exprKind

	// kindConst
	value uint64 // low 64 bits; width > 64 unsupported (firmware words are <= 64 bits)

	// kindSymbol
	name string

	// kindUnary / kindBinary
	uop unaryOp
	bop binaryOp
	lhs *BV
	rhs *BV

	// kindExtend: signed controls zero- vs sign-extension
	signed bool

	// kindSlice
	low, high uint32

	// kindConcat uses lhs (high part), rhs (low part)

	// kindIte
	cond *BV
	then *BV
	els  *BV
}

// Width returns the bit width of the expression.
func (b *BV) Width() Width { return b.width }

func mustSameWidth(a, b *BV) {
	if a.width != b.width {
		panic(fmt.Sprintf("smt: width mismatch: %d vs %d", a.width, b.width))
	}
}

func mask(w Width) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

// NewConst builds a constant bit-vector of the given width. Panics if value
// does not fit in width (constructor-checked widths per spec §9).
func NewConst(value uint64, w Width) *BV {
	if w == 0 || w > 64 {
		panic("smt: unsupported width")
	}
	if w < 64 && value > mask(w) {
		panic(fmt.Sprintf("smt: constant %d does not fit in %d bits", value, w))
	}
	return &BV{width: w, kind: kindConst, value: value}
}

// NewSymbol builds a fresh unconstrained symbol of the given width. Callers
// (the register file / RAM array) are responsible for memoizing by name so
// repeat reads return the same handle (spec §3 register file invariant).
func NewSymbol(name string, w Width) *BV {
	if w == 0 || w > 64 {
		panic("smt: unsupported width")
	}
	return &BV{width: w, kind: kindSymbol, name: name}
}

// FromBool lifts a Go bool to a 1-bit BV.
func FromBool(b bool) *BV {
	if b {
		return NewConst(1, 1)
	}
	return NewConst(0, 1)
}

// IsConst reports whether the expression is provably a point value, and if
// so returns it (the "get_constant" fast path of spec §4.1).
func (b *BV) IsConst() (uint64, bool) {
	if b.kind == kindConst {
		return b.value, true
	}
	return 0, false
}

func binary(op binaryOp, a, b *BV, resultWidth Width) *BV {
	return &BV{width: resultWidth, kind: kindBinary, bop: op, lhs: a, rhs: b}
}

func arith(op binaryOp, a, b *BV) *BV {
	mustSameWidth(a, b)
	if av, ok := a.IsConst(); ok {
		if bv, ok := b.IsConst(); ok {
			return NewConst(foldArith(op, av, bv, a.width), a.width)
		}
	}
	return binary(op, a, b, a.width)
}

func cmp(op binaryOp, a, b *BV) *BV {
	mustSameWidth(a, b)
	if av, ok := a.IsConst(); ok {
		if bv, ok := b.IsConst(); ok {
			return FromBool(foldCmp(op, av, bv, a.width))
		}
	}
	return binary(op, a, b, 1)
}

// Add, Sub, Mul: wrapping two's-complement arithmetic, width-preserving.
func (b *BV) Add(o *BV) *BV { return arith(opAdd, b, o) }
func (b *BV) Sub(o *BV) *BV { return arith(opSub, b, o) }
func (b *BV) Mul(o *BV) *BV { return arith(opMul, b, o) }

// UDiv / SDiv / URem / SRem implement unsigned and two's-complement signed
// division and remainder.
func (b *BV) UDiv(o *BV) *BV { return arith(opUDiv, b, o) }
func (b *BV) SDiv(o *BV) *BV { return arith(opSDiv, b, o) }
func (b *BV) URem(o *BV) *BV { return arith(opURem, b, o) }
func (b *BV) SRem(o *BV) *BV { return arith(opSRem, b, o) }

// And, Or, Xor: bitwise.
func (b *BV) And(o *BV) *BV { return arith(opAnd, b, o) }
func (b *BV) Or(o *BV) *BV  { return arith(opOr, b, o) }
func (b *BV) Xor(o *BV) *BV { return arith(opXor, b, o) }

// Not is bitwise complement (width-preserving unary op).
func (b *BV) Not() *BV {
	if v, ok := b.IsConst(); ok {
		return NewConst((^v) & mask(b.width), b.width)
	}
	return &BV{width: b.width, kind: kindUnary, uop: opNot, lhs: b}
}

// Neg is two's-complement negation.
func (b *BV) Neg() *BV {
	if v, ok := b.IsConst(); ok {
		return NewConst((-v) & mask(b.width), b.width)
	}
	return &BV{width: b.width, kind: kindUnary, uop: opNeg, lhs: b}
}

// Lsl, Lsr, Asr: logical/arithmetic shifts. The shift amount BV must share
// the operand's width (spec invariant: every binary operation requires
// equal widths).
func (b *BV) Lsl(amt *BV) *BV { return arith(opLsl, b, amt) }
func (b *BV) Lsr(amt *BV) *BV { return arith(opLsr, b, amt) }
func (b *BV) Asr(amt *BV) *BV { return arith(opAsr, b, amt) }

// Ror rotates right by amt, implemented per spec §4.4 as
// (x >> s) | (x << (W - s)).
func (b *BV) Ror(amt *BV) *BV {
	mustSameWidth(b, amt)
	w := NewConst(uint64(b.width), b.width)
	inv := w.Sub(amt)
	return b.Lsr(amt).Or(b.Lsl(inv))
}

// ZeroExtend widens to w (w must be >= current width), padding with zero.
func (b *BV) ZeroExtend(w Width) *BV {
	if w < b.width {
		panic("smt: ZeroExtend to smaller width")
	}
	if w == b.width {
		return b
	}
	if v, ok := b.IsConst(); ok {
		return NewConst(v&mask(b.width), w)
	}
	return &BV{width: w, kind: kindExtend, signed: false, lhs: b}
}

// SignExtend widens to w (w must be >= current width), replicating the sign
// bit.
func (b *BV) SignExtend(w Width) *BV {
	if w < b.width {
		panic("smt: SignExtend to smaller width")
	}
	if w == b.width {
		return b
	}
	if v, ok := b.IsConst(); ok {
		sv := signExtendU64(v, b.width)
		return NewConst(uint64(sv)&mask(w), w)
	}
	return &BV{width: w, kind: kindExtend, signed: true, lhs: b}
}

// Resize changes the width to w: truncating (keep low w bits) if w <
// current width, zero-extending if w > current width. Used for the
// BitFieldExtract round-trip law in spec §8.
func (b *BV) Resize(w Width) *BV {
	if w == b.width {
		return b
	}
	if w < b.width {
		return b.Slice(0, uint32(w)-1)
	}
	return b.ZeroExtend(w)
}

// Slice extracts bits [low, high] inclusive, width = high-low+1. Panics if
// low > high (spec §4.4 BitFieldExtract precondition).
func (b *BV) Slice(low, high uint32) *BV {
	if low > high {
		panic("smt: Slice requires low <= high")
	}
	w := Width(high - low + 1)
	if v, ok := b.IsConst(); ok {
		shifted := v >> low
		return NewConst(shifted&mask(w), w)
	}
	return &BV{width: w, kind: kindSlice, lhs: b, low: low, high: high}
}

// Concat joins hi (most-significant) and lo (least-significant) into a
// wider BV.
func Concat(hi, lo *BV) *BV {
	w := hi.width + lo.width
	if hv, ok := hi.IsConst(); ok {
		if lv, ok := lo.IsConst(); ok {
			return NewConst(((hv&mask(hi.width))<<lo.width)|(lv&mask(lo.width)), w)
		}
	}
	return &BV{width: w, kind: kindConcat, lhs: hi, rhs: lo}
}

// Eq, Ult, Ule, Slt, Sle: comparisons producing a width-1 BV.
func (b *BV) Eq(o *BV) *BV  { return cmp(opEq, b, o) }
func (b *BV) Ult(o *BV) *BV { return cmp(opUlt, b, o) }
func (b *BV) Ule(o *BV) *BV { return cmp(opUle, b, o) }
func (b *BV) Slt(o *BV) *BV { return cmp(opSlt, b, o) }
func (b *BV) Sle(o *BV) *BV { return cmp(opSle, b, o) }

// Uaddo, Saddo, Usubo, Ssubo: overflow predicates producing a width-1 BV.
func (b *BV) Uaddo(o *BV) *BV { return cmp(opUaddo, b, o) }
func (b *BV) Saddo(o *BV) *BV { return cmp(opSaddo, b, o) }
func (b *BV) Usubo(o *BV) *BV { return cmp(opUsubo, b, o) }
func (b *BV) Ssubo(o *BV) *BV { return cmp(opSsubo, b, o) }

// Uadds, Sadds, Usubs, Ssubs: saturating arithmetic, clamping at the
// unsigned or signed extreme per spec §4.4.
func (b *BV) Uadds(o *BV) *BV { return arith(opUadds, b, o) }
func (b *BV) Sadds(o *BV) *BV { return arith(opSadds, b, o) }
func (b *BV) Usubs(o *BV) *BV { return arith(opUsubs, b, o) }
func (b *BV) Ssubs(o *BV) *BV { return arith(opSsubs, b, o) }

// Ite selects then/else by cond (a 1-bit BV). Folds eagerly when cond is
// constant.
func Ite(cond, then, els *BV) *BV {
	mustSameWidth(then, els)
	if cv, ok := cond.IsConst(); ok {
		if cv != 0 {
			return then
		}
		return els
	}
	return &BV{width: then.width, kind: kindIte, cond: cond, then: then, els: els}
}

// CountOnes, CountZeroes, CountLeadingOnes, CountLeadingZeroes are total
// lambdas over the word width (spec §4.4): constant operands fold via
// math/bits, symbolic operands materialize as a bit-by-bit sum expression
// built from slices and adds so the enumeration oracle can still evaluate
// them under an assignment.
func (b *BV) CountOnes() *BV {
	if v, ok := b.IsConst(); ok {
		return NewConst(uint64(bits.OnesCount64(v&mask(b.width))), b.width)
	}
	return bitSum(b, func(bit *BV) *BV { return bit })
}

func (b *BV) CountZeroes() *BV {
	if v, ok := b.IsConst(); ok {
		return NewConst(uint64(int(b.width)-bits.OnesCount64(v&mask(b.width))), b.width)
	}
	return bitSum(b, func(bit *BV) *BV { return bit.Xor(NewConst(1, 1)).ZeroExtend(1) })
}

func (b *BV) CountLeadingZeroes() *BV {
	if v, ok := b.IsConst(); ok {
		v &= mask(b.width)
		if v == 0 {
			return NewConst(uint64(b.width), b.width)
		}
		shifted := v << (64 - uint(b.width))
		return NewConst(uint64(bits.LeadingZeros64(shifted)), b.width)
	}
	return bitSumLeading(b, true)
}

func (b *BV) CountLeadingOnes() *BV {
	if v, ok := b.IsConst(); ok {
		inv := (^v) & mask(b.width)
		if inv == 0 {
			return NewConst(uint64(b.width), b.width)
		}
		shifted := inv << (64 - uint(b.width))
		return NewConst(uint64(bits.LeadingZeros64(shifted)), b.width)
	}
	return bitSumLeading(b, false)
}

func bitSum(b *BV, pick func(*BV) *BV) *BV {
	var sum *BV
	for i := uint32(0); i < uint32(b.width); i++ {
		bit := b.Slice(i, i)
		term := pick(bit).ZeroExtend(b.width)
		if sum == nil {
			sum = term
		} else {
			sum = sum.Add(term)
		}
	}
	return sum
}

// bitSumLeading builds a symbolic leading-count via nested ITEs from the MSB
// down, matching the "total lambda" requirement of spec §4.4 without a
// native clz primitive.
func bitSumLeading(b *BV, zeroes bool) *BV {
	w := b.width
	acc := NewConst(uint64(w), w)
	for i := int(w) - 1; i >= 0; i-- {
		bit := b.Slice(uint32(i), uint32(i))
		var isBoundary *BV
		if zeroes {
			isBoundary = bit.Eq(NewConst(1, 1))
		} else {
			isBoundary = bit.Eq(NewConst(0, 1))
		}
		countHere := NewConst(uint64(int(w)-1-i), w)
		acc = Ite(isBoundary, countHere, acc)
	}
	return acc
}

func signExtendU64(v uint64, w Width) int64 {
	shift := 64 - uint(w)
	return int64(v<<shift) >> shift
}

func foldArith(op binaryOp, a, b uint64, w Width) uint64 {
	m := mask(w)
	a &= m
	b &= m
	switch op {
	case opAdd:
		return (a + b) & m
	case opSub:
		return (a - b) & m
	case opMul:
		return (a * b) & m
	case opUDiv:
		if b == 0 {
			return m
		}
		return (a / b) & m
	case opSDiv:
		if b == 0 {
			return m
		}
		sa, sb := signExtendU64(a, w), signExtendU64(b, w)
		return uint64(sa/sb) & m
	case opURem:
		if b == 0 {
			return a
		}
		return (a % b) & m
	case opSRem:
		if b == 0 {
			return a
		}
		sa, sb := signExtendU64(a, w), signExtendU64(b, w)
		return uint64(sa%sb) & m
	case opAnd:
		return a & b
	case opOr:
		return a | b
	case opXor:
		return a ^ b
	case opLsl:
		if b >= uint64(w) {
			return 0
		}
		return (a << b) & m
	case opLsr:
		if b >= uint64(w) {
			return 0
		}
		return (a >> b) & m
	case opAsr:
		sa := signExtendU64(a, w)
		if b >= uint64(w) {
			if sa < 0 {
				return m
			}
			return 0
		}
		return uint64(sa>>b) & m
	case opRor:
		n := uint(b) % uint(w)
		return ((a >> n) | (a << (uint(w) - n))) & m
	case opUadds:
		sum := a + b
		if sum&^m != 0 || sum < a {
			return m
		}
		return sum
	case opSadds:
		sa, sb := signExtendU64(a, w), signExtendU64(b, w)
		sum := sa + sb
		maxV := int64(1)<<(w-1) - 1
		minV := -(int64(1) << (w - 1))
		if sum > maxV {
			return uint64(maxV) & m
		}
		if sum < minV {
			return uint64(minV) & m
		}
		return uint64(sum) & m
	case opUsubs:
		if a < b {
			return 0
		}
		return (a - b) & m
	case opSsubs:
		sa, sb := signExtendU64(a, w), signExtendU64(b, w)
		diff := sa - sb
		maxV := int64(1)<<(w-1) - 1
		minV := -(int64(1) << (w - 1))
		if diff > maxV {
			return uint64(maxV) & m
		}
		if diff < minV {
			return uint64(minV) & m
		}
		return uint64(diff) & m
	default:
		panic("smt: unsupported arithmetic op in fold")
	}
}

func foldCmp(op binaryOp, a, b uint64, w Width) bool {
	m := mask(w)
	a &= m
	b &= m
	switch op {
	case opEq:
		return a == b
	case opUlt:
		return a < b
	case opUle:
		return a <= b
	case opSlt:
		return signExtendU64(a, w) < signExtendU64(b, w)
	case opSle:
		return signExtendU64(a, w) <= signExtendU64(b, w)
	case opUaddo:
		return (a+b)&^m != 0 || a+b < a
	case opSaddo:
		sa, sb := signExtendU64(a, w), signExtendU64(b, w)
		sum := sa + sb
		maxV := int64(1)<<(w-1) - 1
		minV := -(int64(1) << (w - 1))
		return sum > maxV || sum < minV
	case opUsubo:
		return a < b
	case opSsubo:
		sa, sb := signExtendU64(a, w), signExtendU64(b, w)
		diff := sa - sb
		maxV := int64(1)<<(w-1) - 1
		minV := -(int64(1) << (w - 1))
		return diff > maxV || diff < minV
	default:
		panic("smt: unsupported comparison op in fold")
	}
}

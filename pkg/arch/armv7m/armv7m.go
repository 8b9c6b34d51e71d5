// Package armv7m decodes the Thumb-2 instruction subset ARMv7-M concrete
// scenarios in SPEC_FULL.md §8 exercise: ADC (register) T2, LDR (immediate)
// T4, the PUSH/POP T1 register-list encodings, and IT. It is a narrow front
// end rather than a full Thumb-2 disassembler: anything outside that
// subset is reported as an ArchError, the same "fail loudly on an
// unrecognized opcode" posture z80-optimizer/pkg/inst/catalog.go takes for
// an unmapped byte.
//
// Encoding bit layouts are taken straight from the ARMv7-M Architecture
// Reference Manual; the exact register/flag semantics (which adds combine
// into the carry-out, the Thumb bit masked off the value POP loads into
// PC) are cross-checked
// against original_source/symex/src/arch/arm/v7/test.rs.
package armv7m

import (
	"fmt"

	"github.com/symex-go/symex/pkg/arch"
	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/state"
)

// ArchError reports a byte sequence this front end cannot lower.
type ArchError struct {
	Address uint64
	Bytes   []byte
	Reason  string
}

func (e *ArchError) Error() string {
	return fmt.Sprintf("armv7m: %#x: %s (bytes %x)", e.Address, e.Reason, e.Bytes)
}

const width = smt.Width(32)

// Cycle costs approximate a single-issue Cortex-M4 pipeline: register ALU
// ops retire in one cycle, a load stalls one extra cycle for the memory
// response, and PUSH/POP cost one cycle plus one per transferred register.
const (
	cycleALU = 1
	cycleIT  = 1
	cycleLoad = 2
)

var gprNames = []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc"}

func regName(n uint32) string { return gprNames[n&0xF] }

// Arch is the ARMv7-M front end.
type Arch struct{}

// New returns the ARMv7-M architecture front end.
func New() *Arch { return &Arch{} }

func (Arch) Name() string { return "armv7m" }

func (Arch) RegisterWidths() map[string]smt.Width {
	w := make(map[string]smt.Width, len(gprNames))
	for _, n := range gprNames {
		w[n] = width
	}
	return w
}

func (Arch) FlagNames() []string { return []string{"N", "Z", "C", "V"} }

func (Arch) FPRegisterKinds() map[string]smt.FPKind { return nil }

func (Arch) RegisterName(role arch.RegisterRole) string {
	switch role {
	case arch.ProgramCounter:
		return "pc"
	case arch.StackPointer:
		return "sp"
	case arch.ReturnAddress:
		return "lr"
	default:
		panic("armv7m: unknown register role")
	}
}

func (Arch) InstructionAlignment() uint64 { return 2 }

func (Arch) AddHooks(*hooks.Container) {}

func (Arch) InitiateState(*state.State) {}

// builder accumulates an Instruction's Operation list, assigning each
// value-producing op the Local index equal to its own position (matching
// ga.Instruction.NumLocals' "one slot per op" sizing).
type builder struct {
	ops []ga.Operation
}

func (b *builder) emit(op ga.Op, dest ga.Operand, operands ...ga.Operand) ga.Operand {
	b.ops = append(b.ops, ga.NewOperation(op, dest, operands...))
	return dest
}

// local appends op with a Local dest sized to the builder's current length
// and returns an operand referring back to it.
func (b *builder) local(op ga.Op, operands ...ga.Operand) ga.Operand {
	dest := ga.Local(len(b.ops))
	b.emit(op, dest, operands...)
	return dest
}

// Translate decodes the Thumb-2 instruction at the front of bytes.
func (a *Arch) Translate(bytes []byte, address uint64) (ga.Instruction, error) {
	if len(bytes) < 2 {
		return ga.Instruction{}, &ArchError{Address: address, Bytes: bytes, Reason: "short read"}
	}
	h0 := uint32(bytes[0]) | uint32(bytes[1])<<8

	// Thumb-2 32-bit instructions have bits [15:11] in 0b11101/0b11110/0b11111.
	if top := h0 >> 11; top == 0b11101 || top == 0b11110 || top == 0b11111 {
		if len(bytes) < 4 {
			return ga.Instruction{}, &ArchError{Address: address, Bytes: bytes, Reason: "short 32-bit read"}
		}
		h1 := uint32(bytes[2]) | uint32(bytes[3])<<8
		return a.translate32(h0, h1, bytes[:4], address)
	}
	return a.translate16(h0, bytes[:2], address)
}

func (a *Arch) translate16(h0 uint32, raw []byte, address uint64) (ga.Instruction, error) {
	switch {
	// PUSH: 1011 010 M register_list
	case h0&0xFE00 == 0xB400:
		m := (h0 >> 8) & 1
		list := h0 & 0xFF
		return a.lowerPush(list, m == 1, raw, address), nil

	// POP: 1011 110 P register_list
	case h0&0xFE00 == 0xBC00:
		p := (h0 >> 8) & 1
		list := h0 & 0xFF
		return a.lowerPop(list, p == 1, raw, address), nil

	// IT: 1011 1111 firstcond mask, mask != 0000 (mask == 0000 is the
	// NOP-hint space, not an IT block).
	case h0&0xFF00 == 0xBF00 && h0&0xF != 0:
		firstcond := (h0 >> 4) & 0xF
		mask := h0 & 0xF
		return a.lowerIT(firstcond, mask, raw, address), nil
	}
	return ga.Instruction{}, &ArchError{Address: address, Bytes: raw, Reason: "unrecognized 16-bit Thumb encoding"}
}

func (a *Arch) translate32(h0, h1 uint32, raw []byte, address uint64) (ga.Instruction, error) {
	switch {
	// ADC (register) T2: 11101011010 S nnnn | 0 imm3 dddd imm2 tt mmmm
	case h0&0xFFE0 == 0xEB40:
		s := (h0 >> 4) & 1
		rn := h0 & 0xF
		rd := (h1 >> 8) & 0xF
		rm := h1 & 0xF
		imm3 := (h1 >> 12) & 0x7
		imm2 := (h1 >> 6) & 0x3
		shiftType := (h1 >> 4) & 0x3
		if imm3 != 0 || imm2 != 0 || shiftType != 0 {
			return ga.Instruction{}, &ArchError{Address: address, Bytes: raw, Reason: "shifted ADC operand2 not supported"}
		}
		return a.lowerAdcRegister(rd, rn, rm, s == 1, raw, address), nil

	// LDR (immediate) T4: 111110000101 nnnn | tttt 1PUWiiiiiiii
	case h0&0xFFF0 == 0xF850 && h1&0x0800 != 0:
		rn := h0 & 0xF
		rt := (h1 >> 12) & 0xF
		p := (h1 >> 10) & 1
		u := (h1 >> 9) & 1
		w := (h1 >> 8) & 1
		imm8 := h1 & 0xFF
		return a.lowerLdrImmediate(rt, rn, imm8, p == 1, u == 1, w == 1, raw, address), nil
	}
	return ga.Instruction{}, &ArchError{Address: address, Bytes: raw, Reason: "unrecognized 32-bit Thumb-2 encoding"}
}

// lowerAdcRegister builds Rd := Rn + Rm + C, and when s is set recomputes
// N/Z/C/V from both constituent additions: the carry-out and signed-overflow
// predicates of an add-with-carry are the logical OR of the two underlying
// unsigned/signed-overflow additions (Rn+Rm, then +carry-in), matching
// test_adc_set_flag's unsigned-overflow scenario (0x80000000+0x80000000+0).
func (a *Arch) lowerAdcRegister(rd, rn, rm uint32, s bool, raw []byte, address uint64) ga.Instruction {
	b := &builder{}
	rnOp := ga.Register(regName(rn))
	rmOp := ga.Register(regName(rm))
	cIn := ga.Flag("C")

	sum := b.local(ga.OpAdd, rnOp, rmOp)
	cExt := b.local(ga.OpZeroExtend, cIn, ga.Immediate(uint64(width), 32))
	result := b.local(ga.OpAdd, sum, cExt)

	if s {
		c1 := b.local(ga.OpUaddo, rnOp, rmOp)
		c2 := b.local(ga.OpUaddo, sum, cExt)
		v1 := b.local(ga.OpSaddo, rnOp, rmOp)
		v2 := b.local(ga.OpSaddo, sum, cExt)
		cFlag := b.local(ga.OpOr, c1, c2)
		vFlag := b.local(ga.OpOr, v1, v2)
		zFlag := b.local(ga.OpEq, result, ga.Immediate(0, uint32(width)))
		// OpSlice's low/high operands are read as raw Values, so their own
		// declared Width is immaterial; 0 would do as well but 1 keeps
		// Operand.String readable in traces.
		top := uint64(width) - 1
		nFlag := b.local(ga.OpSlice, result, ga.Immediate(top, 1), ga.Immediate(top, 1))

		b.emit(ga.OpMov, ga.Flag("C"), cFlag)
		b.emit(ga.OpMov, ga.Flag("V"), vFlag)
		b.emit(ga.OpMov, ga.Flag("Z"), zFlag)
		b.emit(ga.OpMov, ga.Flag("N"), nFlag)
	}
	b.emit(ga.OpMov, ga.Register(regName(rd)), result)

	return ga.Instruction{Mnemonic: "adc", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleALU}
}

// lowerLdrImmediate builds Rt := [address], followed by the writeback
// Rn := address when w is set. index selects pre- vs post-indexing; add
// selects whether imm is added to or subtracted from Rn for the accessed
// address (the writeback target always matches the accessed address for
// pre-indexed loads, and the accessed-plus-imm address for post-indexed
// ones).
func (a *Arch) lowerLdrImmediate(rt, rn, imm uint32, index, add, writeback bool, raw []byte, address uint64) ga.Instruction {
	b := &builder{}
	rnOp := ga.Register(regName(rn))

	disp := int64(imm)
	if !add {
		disp = -disp
	}

	var loadAddrDisp int64
	if index {
		loadAddrDisp = disp
	}
	loadOperand := ga.Memory(rnOp, nil, 1, loadAddrDisp, uint32(width))
	value := b.local(ga.OpLoad, loadOperand)
	b.emit(ga.OpMov, ga.Register(regName(rt)), value)

	if writeback {
		offsetAddr := b.local(ga.OpAdd, rnOp, ga.Immediate(uint64(disp)&0xFFFFFFFF, uint32(width)))
		b.emit(ga.OpMov, ga.Register(regName(rn)), offsetAddr)
	}

	return ga.Instruction{Mnemonic: "ldr", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleLoad}
}

// lowerPush stores each set bit of list (R0-R7, low to high) plus LR (when
// m is set) at ascending addresses starting at SP-4*count, lowest register
// at the lowest address,
// then commits SP -= 4*popcount(list|LR) — the ARMv7-M "STMDB SP!"
// semantics PUSH is a T1 alias of.
func (a *Arch) lowerPush(list uint32, includeLR bool, raw []byte, address uint64) ga.Instruction {
	regs := registerList(list, includeLR, "lr")
	b := &builder{}
	spOp := ga.Register("sp")

	count := uint64(len(regs))
	newSP := b.local(ga.OpSub, spOp, ga.Immediate(4*count, uint32(width)))

	for i, r := range regs {
		disp := int64(i) * 4
		mem := ga.Memory(newSP, nil, 1, disp, uint32(width))
		b.emit(ga.OpStore, ga.Operand{}, mem, ga.Register(r))
	}
	b.emit(ga.OpMov, spOp, newSP)

	return ga.Instruction{Mnemonic: "push", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: uint32(1 + len(regs))}
}

// lowerPop loads each set bit of list (R0-R7, low to high) plus PC (when p
// is set) from ascending addresses at the current SP, advances SP by the
// same amount, and — when the saved register is PC — masks the Thumb bit
// off the loaded value before committing it (DESIGN.md's fetch-only
// Thumb-bit-masking decision still requires the value written to PC itself
// be the architecturally-masked one on a POP, per the ARMv7-M manual's
// BXWritePC behavior, distinct from the fetch-time mask pkg/state applies).
func (a *Arch) lowerPop(list uint32, includePC bool, raw []byte, address uint64) ga.Instruction {
	regs := registerList(list, includePC, "pc")
	b := &builder{}
	spOp := ga.Register("sp")

	for i, r := range regs {
		disp := int64(i) * 4
		mem := ga.Memory(spOp, nil, 1, disp, uint32(width))
		loaded := b.local(ga.OpLoad, mem)
		if r == "pc" {
			masked := b.local(ga.OpAnd, loaded, ga.Immediate(^uint64(1)&0xFFFFFFFF, uint32(width)))
			b.emit(ga.OpMov, ga.Register("pc"), masked)
		} else {
			b.emit(ga.OpMov, ga.Register(r), loaded)
		}
	}
	newSP := b.local(ga.OpAdd, spOp, ga.Immediate(4*uint64(len(regs)), uint32(width)))
	b.emit(ga.OpMov, spOp, newSP)

	return ga.Instruction{Mnemonic: "pop", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: uint32(1 + len(regs))}
}

// itConditions returns, for each instruction covered by an IT block
// (including the IT-qualified instruction itself, which is never
// inverted), whether that instruction's condition is the logical inverse
// of firstcond. mask's lowest set bit marks how many instructions the
// block covers; the bits above it give the then/else pattern.
func itConditions(firstcond, mask uint32) []bool {
	term := 0
	for ; term < 4; term++ {
		if mask&(1<<uint(term)) != 0 {
			break
		}
	}
	n := 4 - term
	invert := make([]bool, n)
	firstBit := firstcond & 1
	for i := 1; i < n; i++ {
		b := (mask >> uint(4-i)) & 1
		invert[i] = b != firstBit
	}
	return invert
}

// emitCondition builds a 1-bit operand that evaluates to the truth value
// of the given ARM condition code (cond<3:0>, standard EQ..AL encoding)
// against the current N/Z/C/V flags.
func emitCondition(b *builder, cond uint32) ga.Operand {
	n := ga.Flag("N")
	z := ga.Flag("Z")
	c := ga.Flag("C")
	v := ga.Flag("V")
	one := ga.Immediate(1, 1)
	invert := func(x ga.Operand) ga.Operand { return b.local(ga.OpXor, x, one) }

	switch cond {
	case 0: // EQ
		return z
	case 1: // NE
		return invert(z)
	case 2: // CS/HS
		return c
	case 3: // CC/LO
		return invert(c)
	case 4: // MI
		return n
	case 5: // PL
		return invert(n)
	case 6: // VS
		return v
	case 7: // VC
		return invert(v)
	case 8: // HI
		return b.local(ga.OpAnd, c, invert(z))
	case 9: // LS
		return invert(b.local(ga.OpAnd, c, invert(z)))
	case 10: // GE
		return invert(b.local(ga.OpXor, n, v))
	case 11: // LT
		return b.local(ga.OpXor, n, v)
	case 12: // GT
		return b.local(ga.OpAnd, invert(z), invert(b.local(ga.OpXor, n, v)))
	case 13: // LE
		return b.local(ga.OpOr, z, b.local(ga.OpXor, n, v))
	default: // AL and reserved: always taken
		return ga.Immediate(1, 1)
	}
}

// lowerIT decodes IT{x}{y}{z} cond and emits a single OpConditionalExecution
// carrying one guard operand per instruction the block covers, each
// evaluated against the flags live at the IT instruction itself. Thumb-2
// nesting (an IT inside another IT's scope) isn't modeled: ARMv7-M
// permits it only in deprecated/unpredictable encodings this front end
// doesn't need to decode.
func (a *Arch) lowerIT(firstcond, mask uint32, raw []byte, address uint64) ga.Instruction {
	b := &builder{}
	inverts := itConditions(firstcond, mask)
	guards := make([]ga.Operand, len(inverts))
	for i, inv := range inverts {
		cond := firstcond
		if inv {
			cond ^= 1
		}
		guards[i] = emitCondition(b, cond)
	}
	b.emit(ga.OpConditionalExecution, ga.Operand{}, guards...)
	return ga.Instruction{Mnemonic: "it", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleIT}
}

// registerList expands an 8-bit R0-R7 bitmap (low bit = R0) into register
// names in ascending order, appending extra when included last.
func registerList(list uint32, includeExtra bool, extra string) []string {
	var regs []string
	for i := uint32(0); i < 8; i++ {
		if list&(1<<i) != 0 {
			regs = append(regs, regName(i))
		}
	}
	if includeExtra {
		regs = append(regs, extra)
	}
	return regs
}

// Package armv6m decodes the Thumb-1-only subset ARMv6-M supports: no
// 32-bit Thumb-2 encodings exist on this core, so ADCS and LDR (immediate)
// are their narrower 16-bit forms (ADCS always sets flags, LDR has no
// writeback) while PUSH/POP are identical to pkg/arch/armv7m's T1
// encodings. Bit layouts are the Thumb-1 tables of the ARMv6-M
// Architecture Reference Manual.
package armv6m

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
	return fmt.Sprintf("armv6m: %#x: %s (bytes %x)", e.Address, e.Reason, e.Bytes)
}

const width = smt.Width(32)

// Cycle costs approximate a single-issue Cortex-M0 pipeline: register ALU
// ops and IT retire in one cycle, a load stalls one extra cycle for the
// memory response, and PUSH/POP cost one cycle plus one per transferred
// register.
const (
	cycleALU = 1
	cycleIT  = 1
	cycleLoad = 2
)

var gprNames = []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc"}

func regName(n uint32) string { return gprNames[n&0xF] }
func loRegName(n uint32) string { return gprNames[n&0x7] }

// Arch is the ARMv6-M front end.
type Arch struct{}

// New returns the ARMv6-M architecture front end.
func New() *Arch { return &Arch{} }

func (Arch) Name() string { return "armv6m" }

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
		panic("armv6m: unknown register role")
	}
}

func (Arch) InstructionAlignment() uint64 { return 2 }

func (Arch) AddHooks(*hooks.Container) {}

func (Arch) InitiateState(*state.State) {}

type builder struct {
	ops []ga.Operation
}

func (b *builder) emit(op ga.Op, dest ga.Operand, operands ...ga.Operand) {
	b.ops = append(b.ops, ga.NewOperation(op, dest, operands...))
}

func (b *builder) local(op ga.Op, operands ...ga.Operand) ga.Operand {
	dest := ga.Local(len(b.ops))
	b.emit(op, dest, operands...)
	return dest
}

// Translate decodes the 16-bit Thumb-1 instruction at the front of bytes.
// Every Thumb-2 32-bit encoding (first halfword top 5 bits in
// 0b11101/0b11110/0b11111) is rejected: ARMv6-M has no Thumb-2 decoder.
func (a *Arch) Translate(bytes []byte, address uint64) (ga.Instruction, error) {
	if len(bytes) < 2 {
		return ga.Instruction{}, &ArchError{Address: address, Bytes: bytes, Reason: "short read"}
	}
	h0 := uint32(bytes[0]) | uint32(bytes[1])<<8
	raw := bytes[:2]

	if top := h0 >> 11; top == 0b11101 || top == 0b11110 || top == 0b11111 {
		return ga.Instruction{}, &ArchError{Address: address, Bytes: raw, Reason: "32-bit Thumb-2 encoding not available on ARMv6-M"}
	}

	switch {
	// ADCS Rdn, Rm: 0100000101 Rm(3) Rdn(3)
	case h0&0xFFC0 == 0x4140:
		rm := (h0 >> 3) & 0x7
		rdn := h0 & 0x7
		return a.lowerAdcs(rdn, rm, raw, address), nil

	// LDR (immediate) T1: 01101 imm5 Rn(3) Rt(3)
	case h0&0xF800 == 0x6800:
		imm5 := (h0 >> 6) & 0x1F
		rn := (h0 >> 3) & 0x7
		rt := h0 & 0x7
		return a.lowerLdrImmediate(rt, rn, imm5*4, raw, address), nil

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
	return ga.Instruction{}, &ArchError{Address: address, Bytes: raw, Reason: "unrecognized 16-bit Thumb-1 encoding"}
}

// lowerAdcs builds Rdn := Rdn + Rm + C and always recomputes N/Z/C/V: every
// 16-bit Thumb-1 data-processing encoding implicitly sets flags outside an
// IT block, unlike the Thumb-2 ADC (register) form which carries an
// explicit S bit.
func (a *Arch) lowerAdcs(rdn, rm uint32, raw []byte, address uint64) ga.Instruction {
	b := &builder{}
	rdnOp := ga.Register(loRegName(rdn))
	rmOp := ga.Register(loRegName(rm))
	cIn := ga.Flag("C")

	sum := b.local(ga.OpAdd, rdnOp, rmOp)
	cExt := b.local(ga.OpZeroExtend, cIn, ga.Immediate(uint64(width), uint32(width)))
	result := b.local(ga.OpAdd, sum, cExt)

	c1 := b.local(ga.OpUaddo, rdnOp, rmOp)
	c2 := b.local(ga.OpUaddo, sum, cExt)
	v1 := b.local(ga.OpSaddo, rdnOp, rmOp)
	v2 := b.local(ga.OpSaddo, sum, cExt)
	cFlag := b.local(ga.OpOr, c1, c2)
	vFlag := b.local(ga.OpOr, v1, v2)
	zFlag := b.local(ga.OpEq, result, ga.Immediate(0, uint32(width)))
	top := uint64(width) - 1
	nFlag := b.local(ga.OpSlice, result, ga.Immediate(top, 1), ga.Immediate(top, 1))

	b.emit(ga.OpMov, ga.Flag("C"), cFlag)
	b.emit(ga.OpMov, ga.Flag("V"), vFlag)
	b.emit(ga.OpMov, ga.Flag("Z"), zFlag)
	b.emit(ga.OpMov, ga.Flag("N"), nFlag)
	b.emit(ga.OpMov, ga.Register(loRegName(rdn)), result)

	return ga.Instruction{Mnemonic: "adcs", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleALU}
}

func (a *Arch) lowerLdrImmediate(rt, rn, imm uint32, raw []byte, address uint64) ga.Instruction {
	b := &builder{}
	mem := ga.Memory(ga.Register(loRegName(rn)), nil, 1, int64(imm), uint32(width))
	value := b.local(ga.OpLoad, mem)
	b.emit(ga.OpMov, ga.Register(loRegName(rt)), value)
	return ga.Instruction{Mnemonic: "ldr", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleLoad}
}

func (a *Arch) lowerPush(list uint32, includeLR bool, raw []byte, address uint64) ga.Instruction {
	regs := registerList(list, includeLR, "lr")
	b := &builder{}
	spOp := ga.Register("sp")

	count := uint64(len(regs))
	newSP := b.local(ga.OpSub, spOp, ga.Immediate(4*count, uint32(width)))
	for i, r := range regs {
		mem := ga.Memory(newSP, nil, 1, int64(i)*4, uint32(width))
		b.emit(ga.OpStore, ga.Operand{}, mem, ga.Register(r))
	}
	b.emit(ga.OpMov, spOp, newSP)
	return ga.Instruction{Mnemonic: "push", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: uint32(1 + count)}
}

func (a *Arch) lowerPop(list uint32, includePC bool, raw []byte, address uint64) ga.Instruction {
	regs := registerList(list, includePC, "pc")
	b := &builder{}
	spOp := ga.Register("sp")

	for i, r := range regs {
		mem := ga.Memory(spOp, nil, 1, int64(i)*4, uint32(width))
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
// evaluated against the flags live at the IT instruction itself (ARMv6-M
// has no Thumb-2 IT-block nesting to worry about).
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

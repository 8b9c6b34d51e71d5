// Package riscv32 decodes the RV32I base integer subset SPEC_FULL.md §8
// exercises (ADD register-register wraparound, BEQ taken/not-taken) plus
// the rest of the base ISA needed to round out a firmware-sized program:
// OP-IMM, OP, branches, loads/stores, LUI/AUIPC, and JAL/JALR. Field
// layouts follow the RISC-V unprivileged ISA manual; the per-instruction
// "lower register operands, then dispatch on funct3/funct7" shape mirrors
// original_source/symex/src/arch/risc_v/decoder_implementations.rs's
// risc_v_register_to_ga_operand convention, adapted here into GA Operation
// sequences instead of Rust match arms.
package riscv32

import (
	"fmt"

	"github.com/symex-go/symex/pkg/arch"
	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/state"
)

// ArchError reports a 4-byte word this front end cannot lower.
type ArchError struct {
	Address uint64
	Word    uint32
	Reason  string
}

func (e *ArchError) Error() string {
	return fmt.Sprintf("riscv32: %#x: %s (word %#08x)", e.Address, e.Reason, e.Word)
}

const width = smt.Width(32)

// Cycle costs approximate a single-issue in-order RV32I core: every
// instruction here is a single pipeline pass except loads, which stall
// for the memory response, and JAL/JALR, which pay for the redirect.
const (
	cycleALU    = 1
	cycleBranch = 1
	cycleLoad   = 2
	cycleStore  = 1
	cycleJump   = 2
)

func regName(n uint32) string { return fmt.Sprintf("x%d", n&0x1F) }

// Arch is the RV32I front end.
type Arch struct{}

// New returns the RV32I architecture front end.
func New() *Arch { return &Arch{} }

func (Arch) Name() string { return "riscv32" }

func (Arch) RegisterWidths() map[string]smt.Width {
	w := make(map[string]smt.Width, 33)
	for i := 0; i < 32; i++ {
		w[regName(uint32(i))] = width
	}
	w["pc"] = width
	return w
}

func (Arch) FlagNames() []string { return nil }

func (Arch) FPRegisterKinds() map[string]smt.FPKind { return nil }

func (Arch) RegisterName(role arch.RegisterRole) string {
	switch role {
	case arch.ProgramCounter:
		return "pc"
	case arch.StackPointer:
		return "x2"
	case arch.ReturnAddress:
		return "x1"
	default:
		panic("riscv32: unknown register role")
	}
}

func (Arch) InstructionAlignment() uint64 { return 4 }

func (Arch) AddHooks(*hooks.Container) {}

// InitiateState hardwires x0 to the constant zero RV32I requires: any write
// to x0 is architecturally discarded, so the register is seeded once here
// and every lowered write-to-x0 is simply skipped at decode time (see
// writeRd).
func (Arch) InitiateState(st *state.State) {
	st.Registers.Set("x0", smt.NewConst(0, width))
}

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

// writeRd emits the final write of value into register rd, unless rd is
// x0 (hardwired zero: the write is architecturally a no-op).
func (b *builder) writeRd(rd uint32, value ga.Operand) {
	if rd == 0 {
		return
	}
	b.emit(ga.OpMov, ga.Register(regName(rd)), value)
}

// Translate decodes the 4-byte RV32I instruction at the front of bytes.
func (a *Arch) Translate(bytes []byte, address uint64) (ga.Instruction, error) {
	if len(bytes) < 4 {
		return ga.Instruction{}, &ArchError{Address: address, Reason: "short read"}
	}
	word := uint32(bytes[0]) | uint32(bytes[1])<<8 | uint32(bytes[2])<<16 | uint32(bytes[3])<<24
	raw := bytes[:4]

	opcode := word & 0x7F
	rd := (word >> 7) & 0x1F
	funct3 := (word >> 12) & 0x7
	rs1 := (word >> 15) & 0x1F
	rs2 := (word >> 20) & 0x1F
	funct7 := (word >> 25) & 0x7F

	switch opcode {
	case 0x33: // OP (register-register)
		return a.lowerOp(rd, rs1, rs2, funct3, funct7, raw, address)
	case 0x13: // OP-IMM
		imm := signExtend(word>>20, 12)
		return a.lowerOpImm(rd, rs1, funct3, word, imm, raw, address)
	case 0x63: // BRANCH
		imm := bImmediate(word)
		return a.lowerBranch(rs1, rs2, funct3, imm, raw, address)
	case 0x03: // LOAD
		imm := signExtend(word>>20, 12)
		return a.lowerLoad(rd, rs1, funct3, imm, raw, address)
	case 0x23: // STORE
		imm := sImmediate(word)
		return a.lowerStore(rs1, rs2, funct3, imm, raw, address)
	case 0x37: // LUI
		return a.lowerLui(rd, word, raw, address), nil
	case 0x17: // AUIPC
		return a.lowerAuipc(rd, word, address, raw), nil
	case 0x6F: // JAL
		imm := jImmediate(word)
		return a.lowerJal(rd, imm, address, raw), nil
	case 0x67: // JALR
		imm := signExtend(word>>20, 12)
		return a.lowerJalr(rd, rs1, imm, address, raw), nil
	}
	return ga.Instruction{}, &ArchError{Address: address, Word: word, Reason: "unrecognized opcode"}
}

// signExtend sign-extends the low bits-wide field of v to 32 bits, returned
// as an unsigned representation of the resulting 32-bit two's-complement
// value (for building ga.Immediate operands, which carry raw bit patterns).
func signExtend(v uint32, bits uint) uint32 {
	shift := 32 - bits
	return uint32(int32(v<<shift) >> shift)
}

func bImmediate(word uint32) uint32 {
	imm12 := (word >> 31) & 1
	imm11 := (word >> 7) & 1
	imm10_5 := (word >> 25) & 0x3F
	imm4_1 := (word >> 8) & 0xF
	raw := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
	return signExtend(raw, 13)
}

func jImmediate(word uint32) uint32 {
	imm20 := (word >> 31) & 1
	imm19_12 := (word >> 12) & 0xFF
	imm11 := (word >> 20) & 1
	imm10_1 := (word >> 21) & 0x3FF
	raw := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
	return signExtend(raw, 21)
}

func sImmediate(word uint32) uint32 {
	hi := (word >> 25) & 0x7F
	lo := (word >> 7) & 0x1F
	raw := (hi << 5) | lo
	return signExtend(raw, 12)
}

func imm32(v uint32) ga.Operand { return ga.Immediate(uint64(v), uint32(width)) }

// lowerOp handles the 10 RV32I register-register ALU instructions. ADD's
// wraparound scenario needs no special casing: smt.BV.Add already wraps
// modulo 2^32, matching RV32I's two's-complement semantics directly.
func (a *Arch) lowerOp(rd, rs1, rs2, funct3, funct7 uint32, raw []byte, address uint64) (ga.Instruction, error) {
	b := &builder{}
	rs1Op := ga.Register(regName(rs1))
	rs2Op := ga.Register(regName(rs2))

	var result ga.Operand
	mnemonic := ""
	switch {
	case funct3 == 0x0 && funct7 == 0x00:
		result, mnemonic = b.local(ga.OpAdd, rs1Op, rs2Op), "add"
	case funct3 == 0x0 && funct7 == 0x20:
		result, mnemonic = b.local(ga.OpSub, rs1Op, rs2Op), "sub"
	case funct3 == 0x1:
		result, mnemonic = b.local(ga.OpLsl, rs1Op, rs2Op), "sll"
	case funct3 == 0x2:
		result, mnemonic = b.local(ga.OpSlt, rs1Op, rs2Op), "slt"
	case funct3 == 0x3:
		result, mnemonic = b.local(ga.OpUlt, rs1Op, rs2Op), "sltu"
	case funct3 == 0x4:
		result, mnemonic = b.local(ga.OpXor, rs1Op, rs2Op), "xor"
	case funct3 == 0x5 && funct7 == 0x00:
		result, mnemonic = b.local(ga.OpLsr, rs1Op, rs2Op), "srl"
	case funct3 == 0x5 && funct7 == 0x20:
		result, mnemonic = b.local(ga.OpAsr, rs1Op, rs2Op), "sra"
	case funct3 == 0x6:
		result, mnemonic = b.local(ga.OpOr, rs1Op, rs2Op), "or"
	case funct3 == 0x7:
		result, mnemonic = b.local(ga.OpAnd, rs1Op, rs2Op), "and"
	default:
		return ga.Instruction{}, &ArchError{Address: address, Reason: "unrecognized OP funct3/funct7"}
	}
	b.writeRd(rd, result)
	return ga.Instruction{Mnemonic: mnemonic, Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleALU}, nil
}

func (a *Arch) lowerOpImm(rd, rs1, funct3, word, imm uint32, raw []byte, address uint64) (ga.Instruction, error) {
	b := &builder{}
	rs1Op := ga.Register(regName(rs1))
	shamt := (word >> 20) & 0x1F

	var result ga.Operand
	mnemonic := ""
	switch funct3 {
	case 0x0:
		result, mnemonic = b.local(ga.OpAdd, rs1Op, imm32(imm)), "addi"
	case 0x2:
		result, mnemonic = b.local(ga.OpSlt, rs1Op, imm32(imm)), "slti"
	case 0x3:
		result, mnemonic = b.local(ga.OpUlt, rs1Op, imm32(imm)), "sltiu"
	case 0x4:
		result, mnemonic = b.local(ga.OpXor, rs1Op, imm32(imm)), "xori"
	case 0x6:
		result, mnemonic = b.local(ga.OpOr, rs1Op, imm32(imm)), "ori"
	case 0x7:
		result, mnemonic = b.local(ga.OpAnd, rs1Op, imm32(imm)), "andi"
	case 0x1:
		result, mnemonic = b.local(ga.OpLsl, rs1Op, imm32(shamt)), "slli"
	case 0x5:
		if (word>>25)&0x7F == 0x20 {
			result, mnemonic = b.local(ga.OpAsr, rs1Op, imm32(shamt)), "srai"
		} else {
			result, mnemonic = b.local(ga.OpLsr, rs1Op, imm32(shamt)), "srli"
		}
	default:
		return ga.Instruction{}, &ArchError{Address: address, Reason: "unrecognized OP-IMM funct3"}
	}
	b.writeRd(rd, result)
	return ga.Instruction{Mnemonic: mnemonic, Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleALU}, nil
}

// lowerBranch builds the GA branch: cond is the architecturally-correct
// comparison for funct3 (a 1-bit value), an OpIte selects between
// PC+imm (taken) and PC+4 (not taken) on cond, and a single OpBranch
// jumps to the selected target.
func (a *Arch) lowerBranch(rs1, rs2, funct3, imm uint32, raw []byte, address uint64) (ga.Instruction, error) {
	b := &builder{}
	rs1Op := ga.Register(regName(rs1))
	rs2Op := ga.Register(regName(rs2))

	var cond ga.Operand
	mnemonic := ""
	switch funct3 {
	case 0x0:
		cond, mnemonic = b.local(ga.OpEq, rs1Op, rs2Op), "beq"
	case 0x1:
		eq := b.local(ga.OpEq, rs1Op, rs2Op)
		cond, mnemonic = b.local(ga.OpEq, eq, ga.Immediate(0, 1)), "bne"
	case 0x4:
		cond, mnemonic = b.local(ga.OpSlt, rs1Op, rs2Op), "blt"
	case 0x5:
		lt := b.local(ga.OpSlt, rs1Op, rs2Op)
		cond, mnemonic = b.local(ga.OpEq, lt, ga.Immediate(0, 1)), "bge"
	case 0x6:
		cond, mnemonic = b.local(ga.OpUlt, rs1Op, rs2Op), "bltu"
	case 0x7:
		lt := b.local(ga.OpUlt, rs1Op, rs2Op)
		cond, mnemonic = b.local(ga.OpEq, lt, ga.Immediate(0, 1)), "bgeu"
	default:
		return ga.Instruction{}, &ArchError{Address: address, Reason: "unrecognized BRANCH funct3"}
	}

	target := b.local(ga.OpAdd, ga.PC(), imm32(imm))
	fallthroughTarget := b.local(ga.OpAdd, ga.PC(), imm32(4))
	selected := b.local(ga.OpIte, cond, target, fallthroughTarget)
	b.emit(ga.OpBranch, ga.Operand{}, selected)
	return ga.Instruction{Mnemonic: mnemonic, Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleBranch}, nil
}

func (a *Arch) lowerLoad(rd, rs1, funct3, imm uint32, raw []byte, address uint64) (ga.Instruction, error) {
	b := &builder{}
	rs1Op := ga.Register(regName(rs1))

	var mnemonic string
	var mem ga.Operand
	var extend ga.Op
	var memWidth uint32
	switch funct3 {
	case 0x0:
		mnemonic, memWidth, extend = "lb", 8, ga.OpSignExtend
	case 0x1:
		mnemonic, memWidth, extend = "lh", 16, ga.OpSignExtend
	case 0x2:
		mnemonic, memWidth, extend = "lw", 32, ga.OpZeroExtend // already full width, extend is a no-op resize
	case 0x4:
		mnemonic, memWidth, extend = "lbu", 8, ga.OpZeroExtend
	case 0x5:
		mnemonic, memWidth, extend = "lhu", 16, ga.OpZeroExtend
	default:
		return ga.Instruction{}, &ArchError{Address: address, Reason: "unrecognized LOAD funct3"}
	}
	mem = ga.Memory(rs1Op, nil, 1, int64(int32(imm)), memWidth)
	loaded := b.local(ga.OpLoad, mem)
	var result ga.Operand
	if memWidth == uint32(width) {
		result = loaded
	} else {
		result = b.local(extend, loaded, imm32(uint32(width)))
	}
	b.writeRd(rd, result)
	return ga.Instruction{Mnemonic: mnemonic, Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleLoad}, nil
}

func (a *Arch) lowerStore(rs1, rs2, funct3, imm uint32, raw []byte, address uint64) (ga.Instruction, error) {
	b := &builder{}
	rs1Op := ga.Register(regName(rs1))
	rs2Op := ga.Register(regName(rs2))

	var mnemonic string
	var storeWidth uint32
	switch funct3 {
	case 0x0:
		mnemonic, storeWidth = "sb", 8
	case 0x1:
		mnemonic, storeWidth = "sh", 16
	case 0x2:
		mnemonic, storeWidth = "sw", 32
	default:
		return ga.Instruction{}, &ArchError{Address: address, Reason: "unrecognized STORE funct3"}
	}
	mem := ga.Memory(rs1Op, nil, 1, int64(int32(imm)), storeWidth)
	value := rs2Op
	if storeWidth != uint32(width) {
		value = b.local(ga.OpResize, rs2Op, imm32(storeWidth))
	}
	b.emit(ga.OpStore, ga.Operand{}, mem, value)
	return ga.Instruction{Mnemonic: mnemonic, Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleStore}, nil
}

func (a *Arch) lowerLui(rd, word uint32, raw []byte, address uint64) ga.Instruction {
	b := &builder{}
	b.writeRd(rd, imm32(word&0xFFFFF000))
	return ga.Instruction{Mnemonic: "lui", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleALU}
}

func (a *Arch) lowerAuipc(rd, word uint32, address uint64, raw []byte) ga.Instruction {
	b := &builder{}
	sum := b.local(ga.OpAdd, ga.PC(), imm32(word&0xFFFFF000))
	b.writeRd(rd, sum)
	return ga.Instruction{Mnemonic: "auipc", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleALU}
}

func (a *Arch) lowerJal(rd uint32, imm uint32, address uint64, raw []byte) ga.Instruction {
	b := &builder{}
	link := b.local(ga.OpAdd, ga.PC(), imm32(4))
	b.writeRd(rd, link)
	target := b.local(ga.OpAdd, ga.PC(), imm32(imm))
	b.emit(ga.OpBranch, ga.Operand{}, target)
	return ga.Instruction{Mnemonic: "jal", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleJump}
}

func (a *Arch) lowerJalr(rd, rs1, imm uint32, address uint64, raw []byte) ga.Instruction {
	b := &builder{}
	link := b.local(ga.OpAdd, ga.PC(), imm32(4))
	rawTarget := b.local(ga.OpAdd, ga.Register(regName(rs1)), imm32(imm))
	target := b.local(ga.OpAnd, rawTarget, imm32(^uint32(1)))
	b.writeRd(rd, link)
	b.emit(ga.OpBranch, ga.Operand{}, target)
	return ga.Instruction{Mnemonic: "jalr", Bytes: raw, Address: address, Ops: b.ops, MaxCycle: cycleJump}
}

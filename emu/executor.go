package emu

import (
	"fmt"
	"io"

	"github.com/sarchlab/cyclesim/insts"
)

// Outcome is the architectural effect of one instruction beyond its register
// writes.
type Outcome struct {
	// NextPC is the index of the next instruction in program order.
	NextPC int

	// Taken is true when NextPC is not the fall-through instruction.
	Taken bool

	// Halted is true for EXIT.
	Halted bool

	// Store is set for STR; HasStore tells whether it is valid.
	Store    StoreRequest
	HasStore bool
}

// Executor executes instructions against a register file. It reads the
// current PC from the register file but leaves updating it to the caller, so
// an instruction that cannot retire yet can be executed again.
type Executor struct {
	regFile    *RegFile
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit
	stdout     io.Writer
}

// NewExecutor creates an Executor. PRINTR output goes to stdout.
func NewExecutor(regFile *RegFile, stdout io.Writer) *Executor {
	return &Executor{
		regFile:    regFile,
		alu:        NewALU(regFile),
		lsu:        NewLoadStoreUnit(regFile),
		branchUnit: NewBranchUnit(regFile),
		stdout:     stdout,
	}
}

// Execute runs instr as the instruction at the current PC. Loads read through
// port.
func (e *Executor) Execute(instr *insts.Instr, port LoadPort) Outcome {
	pc := e.regFile.PC()
	out := Outcome{NextPC: pc + 1}

	op := instr.Opcode()
	switch op {
	case insts.OpADD, insts.OpSUB, insts.OpMUL, insts.OpSDIV,
		insts.OpAND, insts.OpORR, insts.OpEOR:
		e.alu.Binary(op, instr.Sink(0).MustRegister(),
			e.alu.Value(instr.Source(0)), e.alu.Value(instr.Source(1)))

	case insts.OpNEG:
		e.alu.NEG(instr.Sink(0).MustRegister(), e.alu.Value(instr.Source(0)))

	case insts.OpMVN:
		e.alu.MVN(instr.Sink(0).MustRegister(), e.alu.Value(instr.Source(0)))

	case insts.OpMOV:
		e.alu.MOV(instr.Sink(0).MustRegister(), e.alu.Value(instr.Source(0)))

	case insts.OpCMP:
		e.alu.CMP(e.alu.Value(instr.Source(0)), e.alu.Value(instr.Source(1)))

	case insts.OpLDR:
		e.lsu.LDR(instr.Sink(0).MustRegister(), instr.Source(0).MustMemoryAddr(), port)

	case insts.OpSTR:
		out.Store = e.lsu.STR(instr.Source(0).MustRegister(), instr.Sink(0).MustMemoryAddr())
		out.HasStore = true

	case insts.OpB:
		out.NextPC = int(instr.Source(0).MustCodeAddr())

	case insts.OpBL:
		out.NextPC = e.branchUnit.BL(pc, instr.Source(0).MustCodeAddr())

	case insts.OpBX:
		out.NextPC = e.branchUnit.BX(instr.Source(0).MustRegister())

	case insts.OpCBZ, insts.OpCBNZ:
		isZero := e.regFile.ReadReg(instr.Source(0).MustRegister()) == 0
		if isZero == (op == insts.OpCBZ) {
			out.NextPC = int(instr.Source(1).MustCodeAddr())
		}

	case insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBLE, insts.OpBGT, insts.OpBGE:
		cond, _ := CondFor(op)
		if e.branchUnit.CheckCondition(cond) {
			out.NextPC = int(instr.Source(0).MustCodeAddr())
		}

	case insts.OpPRINTR:
		reg := instr.Source(0).MustRegister()
		_, _ = fmt.Fprintf(e.stdout, "%s=%d\n", reg, e.regFile.ReadReg(reg))

	case insts.OpNOP:

	case insts.OpEXIT:
		out.NextPC = pc
		out.Halted = true

	default:
		panic(fmt.Sprintf("emu: cannot execute %s", instr))
	}

	// A data operation may name PC as its destination.
	if writesRegister(op) && instr.Sink(0).IsRegister(insts.PC) {
		out.NextPC = int(e.regFile.ReadReg(insts.PC))
	}

	out.Taken = !out.Halted && out.NextPC != pc+1
	return out
}

func writesRegister(op insts.Opcode) bool {
	switch op {
	case insts.OpADD, insts.OpSUB, insts.OpMUL, insts.OpSDIV,
		insts.OpAND, insts.OpORR, insts.OpEOR,
		insts.OpNEG, insts.OpMVN, insts.OpMOV, insts.OpLDR:
		return true
	default:
		return false
	}
}

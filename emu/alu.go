package emu

import (
	"math"

	"github.com/sarchlab/cyclesim/insts"
)

// ALU implements the arithmetic, bitwise and compare operations.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Value resolves a Register or Immediate operand to a word.
func (a *ALU) Value(o insts.Operand) insts.Word {
	if o.Kind() == insts.KindImmediate {
		return o.MustImmediate()
	}
	return a.regFile.ReadReg(o.MustRegister())
}

// Compute evaluates a two-operand ALU opcode. Arithmetic wraps on overflow.
func Compute(op insts.Opcode, x, y insts.Word) insts.Word {
	switch op {
	case insts.OpADD:
		return x + y
	case insts.OpSUB:
		return x - y
	case insts.OpMUL:
		return x * y
	case insts.OpSDIV:
		return SDiv(x, y)
	case insts.OpAND:
		return x & y
	case insts.OpORR:
		return x | y
	case insts.OpEOR:
		return x ^ y
	default:
		panic("emu: " + op.String() + " is not a binary ALU operation")
	}
}

// SDiv is signed division truncating toward zero. Division by zero yields
// zero and MinInt64 / -1 yields MinInt64.
func SDiv(x, y insts.Word) insts.Word {
	if y == 0 {
		return 0
	}
	if x == math.MinInt64 && y == -1 {
		return math.MinInt64
	}
	return x / y
}

// Binary performs Rd = x op y.
func (a *ALU) Binary(op insts.Opcode, rd insts.RegisterID, x, y insts.Word) {
	a.regFile.WriteReg(rd, Compute(op, x, y))
}

// NEG performs Rd = -x.
func (a *ALU) NEG(rd insts.RegisterID, x insts.Word) {
	a.regFile.WriteReg(rd, -x)
}

// MVN performs Rd = ^x.
func (a *ALU) MVN(rd insts.RegisterID, x insts.Word) {
	a.regFile.WriteReg(rd, ^x)
}

// MOV performs Rd = x.
func (a *ALU) MOV(rd insts.RegisterID, x insts.Word) {
	a.regFile.WriteReg(rd, x)
}

// CMP computes x - y and sets the NZCV flags without keeping the result.
func (a *ALU) CMP(x, y insts.Word) {
	a.setSubFlags(uint64(x), uint64(y), uint64(x-y))
}

// setSubFlags sets NZCV flags for 64-bit subtraction.
func (a *ALU) setSubFlags(op1, op2, result uint64) {
	var f Flags

	f.N = (result >> 63) == 1
	f.Z = result == 0

	// C: set if no borrow occurred
	f.C = op1 >= op2

	// V: subtracting a negative from a positive gave a negative, or the
	// other way round
	op1Sign := op1 >> 63
	op2Sign := op2 >> 63
	resultSign := result >> 63
	f.V = (op1Sign != op2Sign) && (op2Sign == resultSign)

	a.regFile.SetFlags(f)
}

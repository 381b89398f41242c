// Package emu provides functional emulation of the simulated instruction set.
package emu

import "github.com/sarchlab/cyclesim/insts"

// CPSR flag bits.
const (
	FlagN insts.Word = 1 << 31
	FlagZ insts.Word = 1 << 30
	FlagC insts.Word = 1 << 29
	FlagV insts.Word = 1 << 28
)

// RegFile holds every architectural register, indexed by insts.RegisterID.
// The general-purpose registers come first, followed by FP, SP, LR, PC and
// CPSR.
type RegFile struct {
	regs [insts.RegisterCount]insts.Word
}

// Flags is the decoded view of the CPSR condition flags.
type Flags struct {
	// N is the negative flag.
	N bool
	// Z is the zero flag.
	Z bool
	// C is the carry flag.
	C bool
	// V is the overflow flag.
	V bool
}

// ReadReg reads a register value.
func (r *RegFile) ReadReg(reg insts.RegisterID) insts.Word {
	return r.regs[reg]
}

// WriteReg writes a register value.
func (r *RegFile) WriteReg(reg insts.RegisterID, value insts.Word) {
	r.regs[reg] = value
}

// PC returns the program counter as an index into the program's code.
func (r *RegFile) PC() int {
	return int(r.regs[insts.PC])
}

// SetPC sets the program counter.
func (r *RegFile) SetPC(pc int) {
	r.regs[insts.PC] = insts.Word(pc)
}

// Flags decodes CPSR.
func (r *RegFile) Flags() Flags {
	cpsr := r.regs[insts.CPSR]
	return Flags{
		N: cpsr&FlagN != 0,
		Z: cpsr&FlagZ != 0,
		C: cpsr&FlagC != 0,
		V: cpsr&FlagV != 0,
	}
}

// SetFlags encodes f into CPSR, leaving the other CPSR bits untouched.
func (r *RegFile) SetFlags(f Flags) {
	cpsr := r.regs[insts.CPSR] &^ (FlagN | FlagZ | FlagC | FlagV)
	if f.N {
		cpsr |= FlagN
	}
	if f.Z {
		cpsr |= FlagZ
	}
	if f.C {
		cpsr |= FlagC
	}
	if f.V {
		cpsr |= FlagV
	}
	r.regs[insts.CPSR] = cpsr
}

// Reset zeroes every register.
func (r *RegFile) Reset() {
	r.regs = [insts.RegisterCount]insts.Word{}
}

package emu

import "github.com/sarchlab/cyclesim/insts"

// Cond is a branch condition evaluated against the CPSR flags.
type Cond uint8

// Condition codes used by the conditional branches.
const (
	CondEQ Cond = iota // Equal (Z == 1)
	CondNE             // Not Equal (Z == 0)
	CondGE             // Signed greater than or equal (N == V)
	CondLT             // Signed less than (N != V)
	CondGT             // Signed greater than (Z == 0 && N == V)
	CondLE             // Signed less than or equal (Z == 1 || N != V)
	CondAL             // Always
)

var branchConds = map[insts.Opcode]Cond{
	insts.OpBEQ: CondEQ,
	insts.OpBNE: CondNE,
	insts.OpBGE: CondGE,
	insts.OpBLT: CondLT,
	insts.OpBGT: CondGT,
	insts.OpBLE: CondLE,
}

// CondFor returns the condition tested by a conditional branch opcode.
func CondFor(op insts.Opcode) (Cond, bool) {
	cond, ok := branchConds[op]
	return cond, ok
}

// BranchUnit implements branch target and condition evaluation.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// BL saves the return address (the instruction after pc) to LR and returns
// the branch target.
func (b *BranchUnit) BL(pc int, target insts.Word) int {
	b.regFile.WriteReg(insts.LR, insts.Word(pc+1))
	return int(target)
}

// BX returns the target held in register rn.
func (b *BranchUnit) BX(rn insts.RegisterID) int {
	return int(b.regFile.ReadReg(rn))
}

// CheckCondition evaluates a condition code against the current flags.
func (b *BranchUnit) CheckCondition(cond Cond) bool {
	f := b.regFile.Flags()

	switch cond {
	case CondEQ:
		return f.Z
	case CondNE:
		return !f.Z
	case CondGE:
		return f.N == f.V
	case CondLT:
		return f.N != f.V
	case CondGT:
		return !f.Z && (f.N == f.V)
	case CondLE:
		return f.Z || (f.N != f.V)
	case CondAL:
		return true
	default:
		return false
	}
}

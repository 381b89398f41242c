// Package latency provides instruction timing for the cycle-level model.
//
// Each opcode belongs to a latency class whose cycle count comes from a
// TimingConfig.
package latency

import (
	"github.com/sarchlab/cyclesim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given instruction.
func (t *Table) GetLatency(inst *insts.Instr) uint64 {
	if inst == nil {
		return 1
	}

	switch op := inst.Opcode(); {
	case op == insts.OpMUL:
		return t.config.MultiplyLatency

	case op == insts.OpSDIV:
		return t.config.DivideLatency

	case op == insts.OpLDR:
		return t.config.LoadLatency

	case op == insts.OpSTR:
		return t.config.StoreLatency

	case op == insts.OpPRINTR:
		return t.config.PrintLatency

	case inst.IsControl():
		return t.config.BranchLatency

	case op == insts.OpNOP || op == insts.OpEXIT:
		return uint64(inst.Cycles())

	default:
		return t.config.ALULatency
	}
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instr) bool {
	return t.IsLoadOp(inst) || t.IsStoreOp(inst)
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst *insts.Instr) bool {
	return inst != nil && inst.Opcode() == insts.OpLDR
}

// IsStoreOp returns true if the instruction writes memory.
func (t *Table) IsStoreOp(inst *insts.Instr) bool {
	return inst != nil && inst.MemStores() > 0
}

// IsBranchOp returns true if the instruction reads or writes the PC.
func (t *Table) IsBranchOp(inst *insts.Instr) bool {
	return inst != nil && inst.IsControl()
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}

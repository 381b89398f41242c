// Package insts provides the instruction model of the simulated load/store
// machine.
//
// An instruction is built once, validated against its opcode's fixed operand
// template, and then shared read-only by every pipeline stage. The package
// covers:
//   - Opcodes and the static mnemonic tables
//   - Operands (Register, Immediate, Memory, Code, Unused)
//   - Architectural register ids and their display names
//   - Instr construction and formatting
//   - Program, the immutable bundle handed over by the loader
//
// Usage:
//
//	instr, err := insts.Create(insts.OpADD, []insts.Operand{
//		insts.Register(0), insts.Register(1), insts.Immediate(42),
//	}, insts.SourceLocation{Line: 3, Column: 5})
//	fmt.Println(instr) // ADD R0, R1, 42 ; 3:5
package insts

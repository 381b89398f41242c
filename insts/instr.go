package insts

import (
	"fmt"
	"strings"
)

// Operand slot limits. They are fixed for every opcode; arity is enforced at
// construction instead of growing a list.
const (
	MaxSourceCount = 3
	MaxSinkCount   = 2
)

// SourceLocation points into the assembly source for diagnostics.
type SourceLocation struct {
	Line   int
	Column int
}

// IsKnown reports whether the location was set.
func (l SourceLocation) IsKnown() bool {
	return l.Line > 0
}

func (l SourceLocation) String() string {
	if !l.IsKnown() {
		return "?:?"
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Instr is a validated instruction. It is immutable after Create and is meant
// to be shared by pointer between the program, the instruction queue and the
// pipeline stages.
type Instr struct {
	opcode    Opcode
	source    [MaxSourceCount]Operand
	sourceCnt uint8
	sink      [MaxSinkCount]Operand
	sinkCnt   uint8
	cycles    uint8
	memStores uint8
	isControl bool
	loc       SourceLocation
}

// slot describes one explicit operand: the kinds it accepts and whether it is
// placed in the sink or the source array.
type slot struct {
	accepted []OperandKind
	sink     bool
}

func (s slot) accepts(kind OperandKind) bool {
	for _, k := range s.accepted {
		if k == kind {
			return true
		}
	}
	return false
}

// template is the fixed operand contract of an opcode. Registers read or
// written implicitly are appended after the explicit operands.
type template struct {
	operands        []slot
	implicitSources []RegisterID
	implicitSinks   []RegisterID
}

func src(kinds ...OperandKind) slot { return slot{accepted: kinds} }
func dst(kinds ...OperandKind) slot { return slot{accepted: kinds, sink: true} }

var (
	binaryOp = &template{
		operands: []slot{dst(KindRegister), src(KindRegister), src(KindRegister, KindImmediate)},
	}
	condBranch = &template{
		operands:        []slot{src(KindCode)},
		implicitSources: []RegisterID{CPSR, PC},
		implicitSinks:   []RegisterID{PC},
	}
	compareBranch = &template{
		operands:        []slot{src(KindRegister), src(KindCode)},
		implicitSources: []RegisterID{PC},
		implicitSinks:   []RegisterID{PC},
	}
	noOperands = &template{}
)

var templates = [numOpcodes]*template{
	OpADD:  binaryOp,
	OpSUB:  binaryOp,
	OpMUL:  binaryOp,
	OpSDIV: binaryOp,
	OpAND:  binaryOp,
	OpORR:  binaryOp,
	OpEOR:  binaryOp,
	OpNEG: {
		operands: []slot{dst(KindRegister), src(KindRegister)},
	},
	OpMVN: {
		operands: []slot{dst(KindRegister), src(KindImmediate, KindRegister)},
	},
	OpMOV: {
		operands: []slot{dst(KindRegister), src(KindImmediate, KindRegister)},
	},
	OpLDR: {
		operands: []slot{dst(KindRegister), src(KindMemory)},
	},
	OpSTR: {
		operands: []slot{src(KindRegister), dst(KindMemory)},
	},
	OpB: {
		operands:      []slot{src(KindCode)},
		implicitSinks: []RegisterID{PC},
	},
	OpBX: {
		operands:      []slot{src(KindRegister)},
		implicitSinks: []RegisterID{PC},
	},
	OpBL: {
		operands:        []slot{src(KindCode)},
		implicitSources: []RegisterID{PC},
		implicitSinks:   []RegisterID{LR, PC},
	},
	OpCBZ:  compareBranch,
	OpCBNZ: compareBranch,
	OpCMP: {
		operands:        []slot{src(KindRegister), src(KindImmediate, KindRegister)},
		implicitSources: []RegisterID{CPSR},
		implicitSinks:   []RegisterID{CPSR},
	},
	OpBEQ: condBranch,
	OpBNE: condBranch,
	OpBLT: condBranch,
	OpBLE: condBranch,
	OpBGT: condBranch,
	OpBGE: condBranch,
	OpNOP: noOperands,
	OpPRINTR: {
		operands: []slot{src(KindRegister)},
	},
	OpEXIT: noOperands,
}

// Arity returns the number of explicit operands the opcode takes.
func Arity(op Opcode) int {
	if !op.Valid() {
		return 0
	}
	return len(templates[op].operands)
}

// Create validates operands against the opcode's template and builds the
// instruction. The returned error is an *OperandError for count and kind
// mismatches.
func Create(op Opcode, operands []Operand, loc SourceLocation) (*Instr, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("unknown opcode %d at %s", op, loc)
	}

	t := templates[op]
	if len(operands) != len(t.operands) {
		return nil, &OperandError{
			Opcode:   op,
			Loc:      loc,
			Expected: len(t.operands),
			Actual:   len(operands),
		}
	}

	instr := &Instr{opcode: op, cycles: 1, loc: loc}

	for i, s := range t.operands {
		operand := operands[i]
		if !s.accepts(operand.kind) {
			return nil, &OperandError{
				Opcode:     op,
				Loc:        loc,
				Index:      i + 1,
				Accepted:   s.accepted,
				ActualKind: operand.kind,
			}
		}

		if s.sink {
			instr.addSink(operand)
		} else {
			instr.addSource(operand)
		}
	}

	for _, reg := range t.implicitSources {
		instr.addSource(Register(reg))
	}
	for _, reg := range t.implicitSinks {
		instr.addSink(Register(reg))
	}

	if op == OpSTR {
		instr.memStores = 1
	}
	instr.isControl = instr.Reads(PC) || instr.Writes(PC)

	return instr, nil
}

// MustCreate is like Create but panics on error. It is meant for fixed
// instructions built by code rather than from user input.
func MustCreate(op Opcode, operands ...Operand) *Instr {
	instr, err := Create(op, operands, SourceLocation{})
	if err != nil {
		panic(err)
	}
	return instr
}

// Shared location-less instructions.
var (
	NOP  = MustCreate(OpNOP)
	EXIT = MustCreate(OpEXIT)
)

func (i *Instr) addSource(o Operand) {
	i.source[i.sourceCnt] = o
	i.sourceCnt++
}

func (i *Instr) addSink(o Operand) {
	i.sink[i.sinkCnt] = o
	i.sinkCnt++
}

// Opcode returns the instruction opcode.
func (i *Instr) Opcode() Opcode { return i.opcode }

// SourceCount returns the number of populated source slots.
func (i *Instr) SourceCount() int { return int(i.sourceCnt) }

// SinkCount returns the number of populated sink slots.
func (i *Instr) SinkCount() int { return int(i.sinkCnt) }

// Source returns source slot n. Slots past SourceCount are Unused.
func (i *Instr) Source(n int) Operand { return i.source[n] }

// Sink returns sink slot n. Slots past SinkCount are Unused.
func (i *Instr) Sink(n int) Operand { return i.sink[n] }

// Sources returns a copy of the populated source operands.
func (i *Instr) Sources() []Operand {
	return append([]Operand(nil), i.source[:i.sourceCnt]...)
}

// Sinks returns a copy of the populated sink operands.
func (i *Instr) Sinks() []Operand {
	return append([]Operand(nil), i.sink[:i.sinkCnt]...)
}

// Cycles returns the execution latency of the instruction.
func (i *Instr) Cycles() int { return int(i.cycles) }

// MemStores returns 1 for instructions that write memory, otherwise 0.
func (i *Instr) MemStores() int { return int(i.memStores) }

// IsControl reports whether the instruction reads or writes PC. Nothing may
// be reordered across a control instruction.
func (i *Instr) IsControl() bool { return i.isControl }

// Loc returns the source location; it is unknown for built-in instructions.
func (i *Instr) Loc() SourceLocation { return i.loc }

// Reads reports whether reg appears among the populated sources.
func (i *Instr) Reads(reg RegisterID) bool {
	for n := 0; n < int(i.sourceCnt); n++ {
		if i.source[n].IsRegister(reg) {
			return true
		}
	}
	return false
}

// Writes reports whether reg appears among the populated sinks.
func (i *Instr) Writes(reg RegisterID) bool {
	for n := 0; n < int(i.sinkCnt); n++ {
		if i.sink[n].IsRegister(reg) {
			return true
		}
	}
	return false
}

// String renders the instruction as written, followed by its location when
// known, e.g. "STR R1, [3] ; 7:5".
func (i *Instr) String() string {
	var sb strings.Builder
	sb.WriteString(i.opcode.String())

	if !i.opcode.Valid() {
		return sb.String()
	}

	t := templates[i.opcode]
	srcIdx, sinkIdx := 0, 0
	for n, s := range t.operands {
		if n == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}

		if s.sink {
			sb.WriteString(i.sink[sinkIdx].String())
			sinkIdx++
		} else {
			sb.WriteString(i.source[srcIdx].String())
			srcIdx++
		}
	}

	if i.loc.IsKnown() {
		sb.WriteString(" ; ")
		sb.WriteString(i.loc.String())
	}

	return sb.String()
}

// Package loader assembles program text into an insts.Program.
//
// A source file has a .data section of named words and a .text section of
// instructions:
//
//	.data
//	count: 10
//	total .word 0
//
//	.text
//	.global main
//	main:   LDR R0, [count]
//	loop:   SUB R0, R0, #1
//	        CBNZ R0, loop      ; comments start with ';' or '//'
//	        STR R0, [total]
//
// Integers are decimal unless written with a 0x, 0o or 0b prefix, so 010 is
// ten. Data items get consecutive offsets from 0 in declaration order. Labels may
// be used before they are defined. EXIT cannot be written in source; the
// loader appends it after the last instruction.
package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/cyclesim/insts"
)

type section int

const (
	sectionText section = iota
	sectionData
)

type pendingInstr struct {
	op       insts.Opcode
	operands []*operand
	loc      insts.SourceLocation
}

type assembler struct {
	generalRegs int
	section     section

	data       map[string]insts.Data
	nextOffset insts.Word

	labels  map[string]int
	pending []pendingInstr

	entry    string
	entryLoc insts.SourceLocation
}

// Load reads and assembles the program at path.
func Load(path string, generalRegs int) (*insts.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	prog, err := Parse(string(src), generalRegs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return prog, nil
}

// Parse assembles src. Register operands must name one of the first
// generalRegs general registers or a named register.
func Parse(src string, generalRegs int) (*insts.Program, error) {
	if generalRegs <= 0 || generalRegs > insts.MaxGeneralRegisters {
		return nil, fmt.Errorf("general register count must be in 1..%d, got %d",
			insts.MaxGeneralRegisters, generalRegs)
	}

	file, err := parseSource(src)
	if err != nil {
		return nil, err
	}

	a := &assembler{
		generalRegs: generalRegs,
		data:        make(map[string]insts.Data),
		labels:      make(map[string]int),
	}

	for _, line := range file.Lines {
		if err := a.assembleLine(line); err != nil {
			return nil, err
		}
	}

	return a.finish()
}

func (a *assembler) assembleLine(line *sourceLine) error {
	if line.Stmt != nil && line.Stmt.Directive != nil && !isWord(line.Stmt.Directive) {
		if line.Label != nil {
			return syntaxErrorf(location(line.Label.Pos),
				"label %q cannot precede %s", line.Label.Name, line.Stmt.Directive.Name)
		}
		return a.directive(line.Stmt.Directive)
	}

	if a.section == sectionData {
		return a.dataLine(line)
	}
	return a.textLine(line)
}

func isWord(d *directive) bool {
	return strings.EqualFold(d.Name, ".word")
}

func (a *assembler) directive(d *directive) error {
	name := strings.ToLower(d.Name)
	switch name {
	case ".data", ".text":
		if d.Arg != nil {
			return syntaxErrorf(location(d.Arg.Pos), "unexpected %q after %s", d.Arg.text(), name)
		}
		a.section = sectionText
		if name == ".data" {
			a.section = sectionData
		}
	case ".global", ".globl":
		if d.Arg == nil || d.Arg.Ident == nil {
			return syntaxErrorf(location(d.Pos), "%s expects one label", d.Name)
		}
		if a.entry != "" {
			return syntaxErrorf(location(d.Pos), "entry point already set to %q", a.entry)
		}
		a.entry = *d.Arg.Ident
		a.entryLoc = location(d.Arg.Pos)
	default:
		return syntaxErrorf(location(d.Pos), "unknown directive %q", d.Name)
	}

	return nil
}

func (a *assembler) dataLine(line *sourceLine) error {
	var (
		name    string
		nameLoc insts.SourceLocation
		value   *symbol
		stmt    = line.Stmt
	)

	switch {
	case line.Label != nil:
		name, nameLoc = line.Label.Name, location(line.Label.Pos)
		if stmt == nil {
			return syntaxErrorf(nameLoc, "missing value for %q", name)
		}
		switch {
		case stmt.Value != nil:
			value = &symbol{Pos: stmt.Value.Pos, Int: &stmt.Value.Text}
		case stmt.Directive != nil:
			if stmt.Directive.Arg == nil {
				return syntaxErrorf(location(stmt.Directive.Pos), "missing value for %q", name)
			}
			value = stmt.Directive.Arg
		case stmt.Instr != nil && len(stmt.Instr.Operands) == 0:
			value = &symbol{Pos: stmt.Instr.Pos, Ident: &stmt.Instr.Mnemonic}
		default:
			return syntaxErrorf(nameLoc, "expected 'name: value' or 'name .word value'")
		}
	case stmt != nil && stmt.Word != nil && isWord(stmt.Word.Word):
		name, nameLoc = stmt.Word.Name, location(stmt.Word.Pos)
		if stmt.Word.Word.Arg == nil {
			return syntaxErrorf(location(stmt.Word.Word.Pos), "missing value for %q", name)
		}
		value = stmt.Word.Word.Arg
	case stmt == nil:
		return nil
	default:
		return syntaxErrorf(stmtLoc(stmt), "expected 'name: value' or 'name .word value'")
	}

	if err := a.checkVariableName(name, nameLoc); err != nil {
		return err
	}

	if value.Int == nil {
		return syntaxErrorf(location(value.Pos), "invalid integer %q", value.text())
	}
	v, err := parseInteger(*value.Int)
	if err != nil {
		return syntaxErrorf(location(value.Pos), "invalid integer %q", *value.Int)
	}

	a.data[name] = insts.Data{Value: v, Offset: a.nextOffset}
	a.nextOffset++

	return nil
}

func (a *assembler) checkVariableName(name string, loc insts.SourceLocation) error {
	switch {
	case insts.LooksLikeRegister(name):
		return syntaxErrorf(loc, "illegal variable name %q: it is a register", name)
	case insts.IsMnemonic(name) || strings.EqualFold(name, insts.OpEXIT.String()):
		return syntaxErrorf(loc, "illegal variable name %q: it is a mnemonic", name)
	}

	if _, dup := a.data[name]; dup {
		return syntaxErrorf(loc, "duplicate variable declaration %q", name)
	}
	return nil
}

func (a *assembler) textLine(line *sourceLine) error {
	if line.Label != nil {
		if err := a.defineLabel(line.Label); err != nil {
			return err
		}
	}

	stmt := line.Stmt
	switch {
	case stmt == nil:
		return nil
	case stmt.Instr != nil:
		return a.instruction(stmt.Instr)
	case stmt.Word != nil:
		return syntaxErrorf(location(stmt.Word.Pos), "%s is only valid in .data", stmt.Word.Word.Name)
	case stmt.Directive != nil:
		return syntaxErrorf(location(stmt.Directive.Pos), "%s is only valid in .data", stmt.Directive.Name)
	default:
		return syntaxErrorf(location(stmt.Value.Pos), "unexpected integer %q", stmt.Value.Text)
	}
}

func (a *assembler) defineLabel(l *labelDef) error {
	loc := location(l.Pos)
	if insts.LooksLikeRegister(l.Name) {
		return syntaxErrorf(loc, "illegal label %q: it is a register", l.Name)
	}

	if _, dup := a.labels[l.Name]; dup {
		return syntaxErrorf(loc, "duplicate label %q", l.Name)
	}

	a.labels[l.Name] = len(a.pending)
	return nil
}

func (a *assembler) instruction(in *instruction) error {
	op, ok := insts.OpcodeFromMnemonic(in.Mnemonic)
	if !ok {
		return syntaxErrorf(location(in.Pos), "unknown mnemonic %q", in.Mnemonic)
	}

	for _, o := range in.Operands {
		if o.Bare != nil {
			return syntaxErrorf(location(o.Pos), "invalid operand %q: immediates start with #", *o.Bare)
		}
	}

	a.pending = append(a.pending, pendingInstr{op: op, operands: in.Operands, loc: location(in.Pos)})
	return nil
}

// resolve turns a parsed operand into an insts.Operand. It runs after the
// whole file is read so labels may be used before they are defined.
func (a *assembler) resolve(o *operand) (insts.Operand, error) {
	loc := location(o.Pos)

	switch {
	case o.Imm != nil:
		v, err := parseInteger(*o.Imm)
		if err != nil {
			return insts.Unused, syntaxErrorf(loc, "invalid immediate %q", "#"+*o.Imm)
		}
		return insts.Immediate(v), nil

	case o.Mem != nil:
		d, ok := a.data[*o.Mem]
		if !ok {
			return insts.Unused, syntaxErrorf(loc, "unknown variable %q", *o.Mem)
		}
		return insts.Memory(d.Offset), nil

	case insts.LooksLikeRegister(*o.Name):
		reg, err := insts.RegisterFromName(*o.Name, a.generalRegs)
		if err != nil {
			return insts.Unused, syntaxErrorf(loc, "%v", err)
		}
		return insts.Register(reg), nil

	default:
		pos, ok := a.labels[*o.Name]
		if !ok {
			return insts.Unused, syntaxErrorf(loc, "unknown label %q", *o.Name)
		}
		return insts.Code(insts.Word(pos)), nil
	}
}

func (a *assembler) finish() (*insts.Program, error) {
	code := make([]*insts.Instr, 0, len(a.pending)+1)
	for _, pi := range a.pending {
		operands := make([]insts.Operand, len(pi.operands))
		for i, o := range pi.operands {
			resolved, err := a.resolve(o)
			if err != nil {
				return nil, err
			}
			operands[i] = resolved
		}

		instr, err := insts.Create(pi.op, operands, pi.loc)
		if err != nil {
			return nil, err
		}
		code = append(code, instr)
	}
	code = append(code, insts.EXIT)

	entry := 0
	if a.entry != "" {
		pos, ok := a.labels[a.entry]
		if !ok {
			return nil, syntaxErrorf(a.entryLoc, "unknown entry label %q", a.entry)
		}
		entry = pos
	}

	return insts.NewProgram(code, a.data, entry)
}

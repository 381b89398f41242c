package insts

import (
	"fmt"
	"sort"
)

// Data is a named word in the data section.
type Data struct {
	Value  Word
	Offset Word
}

// Program is the immutable result of loading: the code, the data table and
// the entry point. It is shared read-only by every consumer.
type Program struct {
	code       []*Instr
	dataItems  map[string]Data
	entryPoint int
	dataSize   Word
}

// NewProgram checks the loader contract and builds a Program. Code must be
// non-empty, the entry point and every Code operand must index into code,
// every Memory operand must name a declared data offset, and data offsets
// must be unique and non-negative.
func NewProgram(code []*Instr, dataItems map[string]Data, entryPoint int) (*Program, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: no code", ErrInvalidProgram)
	}

	if entryPoint < 0 || entryPoint >= len(code) {
		return nil, fmt.Errorf("%w: entry point %d outside code of length %d",
			ErrInvalidProgram, entryPoint, len(code))
	}

	p := &Program{
		code:       append([]*Instr(nil), code...),
		dataItems:  make(map[string]Data, len(dataItems)),
		entryPoint: entryPoint,
	}

	offsets := make(map[Word]string, len(dataItems))
	for name, d := range dataItems {
		if d.Offset < 0 {
			return nil, fmt.Errorf("%w: data item %q has negative offset %d",
				ErrInvalidProgram, name, d.Offset)
		}
		if other, dup := offsets[d.Offset]; dup {
			return nil, fmt.Errorf("%w: data items %q and %q share offset %d",
				ErrInvalidProgram, other, name, d.Offset)
		}
		offsets[d.Offset] = name
		p.dataItems[name] = d

		if d.Offset+1 > p.dataSize {
			p.dataSize = d.Offset + 1
		}
	}

	for pos, instr := range code {
		if instr == nil {
			return nil, fmt.Errorf("%w: missing instruction at %d", ErrInvalidProgram, pos)
		}
		if err := p.checkOperands(instr, offsets); err != nil {
			return nil, fmt.Errorf("%w: instruction %d (%s): %v", ErrInvalidProgram, pos, instr, err)
		}
	}

	return p, nil
}

func (p *Program) checkOperands(instr *Instr, offsets map[Word]string) error {
	operands := append(instr.Sources(), instr.Sinks()...)
	for _, o := range operands {
		switch o.Kind() {
		case KindCode:
			if o.value < 0 || o.value >= Word(len(p.code)) {
				return fmt.Errorf("code address %d out of range", o.value)
			}
		case KindMemory:
			if _, ok := offsets[o.value]; !ok {
				return fmt.Errorf("memory address %d is not a declared data offset", o.value)
			}
		}
	}
	return nil
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.code)
}

// Instr returns the shared instruction at pos.
func (p *Program) Instr(pos int) *Instr {
	return p.code[pos]
}

// Code returns a copy of the instruction sequence. The instructions
// themselves are shared.
func (p *Program) Code() []*Instr {
	return append([]*Instr(nil), p.code...)
}

// EntryPoint returns the index of the first instruction to execute.
func (p *Program) EntryPoint() int {
	return p.entryPoint
}

// Data looks up a data item by name.
func (p *Program) Data(name string) (Data, bool) {
	d, ok := p.dataItems[name]
	return d, ok
}

// DataNames returns the data item names ordered by offset.
func (p *Program) DataNames() []string {
	names := make([]string, 0, len(p.dataItems))
	for name := range p.dataItems {
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool {
		return p.dataItems[names[a]].Offset < p.dataItems[names[b]].Offset
	})
	return names
}

// DataItems returns a copy of the data table.
func (p *Program) DataItems() map[string]Data {
	items := make(map[string]Data, len(p.dataItems))
	for name, d := range p.dataItems {
		items[name] = d
	}
	return items
}

// DataSize returns one past the highest declared data offset.
func (p *Program) DataSize() Word {
	return p.dataSize
}

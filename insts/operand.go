package insts

import (
	"fmt"
	"strconv"
)

// OperandKind is the tag of an Operand, independent of the value it carries.
type OperandKind uint8

// Operand kinds.
const (
	KindUnused OperandKind = iota
	KindRegister
	KindImmediate
	KindMemory
	KindCode
)

var kindNames = [...]string{
	KindUnused:    "Unused",
	KindRegister:  "Register",
	KindImmediate: "Immediate",
	KindMemory:    "Memory",
	KindCode:      "Code",
}

// String returns the kind name used in diagnostics.
func (k OperandKind) String() string {
	if int(k) >= len(kindNames) {
		return "Invalid"
	}
	return kindNames[k]
}

// Operand is a tagged value used as an instruction source or sink.
//
// Memory and Code operands carry resolved addresses: a data-section offset
// and an index into the program's code respectively.
type Operand struct {
	kind  OperandKind
	value Word
}

// Unused is the operand of an unpopulated slot.
var Unused = Operand{}

// Register returns a register operand.
func Register(reg RegisterID) Operand {
	return Operand{kind: KindRegister, value: Word(reg)}
}

// Immediate returns an immediate operand.
func Immediate(value Word) Operand {
	return Operand{kind: KindImmediate, value: value}
}

// Memory returns an operand addressing the data word at addr.
func Memory(addr Word) Operand {
	return Operand{kind: KindMemory, value: addr}
}

// Code returns an operand targeting the instruction at index addr.
func Code(addr Word) Operand {
	return Operand{kind: KindCode, value: addr}
}

// Kind returns the operand kind.
func (o Operand) Kind() OperandKind {
	return o.kind
}

// IsUnused reports whether the operand is the Unused placeholder.
func (o Operand) IsUnused() bool {
	return o.kind == KindUnused
}

// IsRegister reports whether o is a register operand naming reg.
func (o Operand) IsRegister(reg RegisterID) bool {
	return o.kind == KindRegister && RegisterID(o.value) == reg
}

func (o Operand) expect(kind OperandKind) error {
	if o.kind != kind {
		return fmt.Errorf("%w: operand is not a %s but of type %s",
			ErrOperandKind, kind, o.kind)
	}
	return nil
}

// Register returns the register id of a Register operand.
func (o Operand) Register() (RegisterID, error) {
	if err := o.expect(KindRegister); err != nil {
		return 0, err
	}
	return RegisterID(o.value), nil
}

// Immediate returns the value of an Immediate operand.
func (o Operand) Immediate() (Word, error) {
	if err := o.expect(KindImmediate); err != nil {
		return 0, err
	}
	return o.value, nil
}

// MemoryAddr returns the data address of a Memory operand.
func (o Operand) MemoryAddr() (Word, error) {
	if err := o.expect(KindMemory); err != nil {
		return 0, err
	}
	return o.value, nil
}

// CodeAddr returns the code index of a Code operand.
func (o Operand) CodeAddr() (Word, error) {
	if err := o.expect(KindCode); err != nil {
		return 0, err
	}
	return o.value, nil
}

// MustRegister is like Register but panics on a kind mismatch.
func (o Operand) MustRegister() RegisterID {
	reg, err := o.Register()
	if err != nil {
		panic(err)
	}
	return reg
}

// MustImmediate is like Immediate but panics on a kind mismatch.
func (o Operand) MustImmediate() Word {
	v, err := o.Immediate()
	if err != nil {
		panic(err)
	}
	return v
}

// MustMemoryAddr is like MemoryAddr but panics on a kind mismatch.
func (o Operand) MustMemoryAddr() Word {
	v, err := o.MemoryAddr()
	if err != nil {
		panic(err)
	}
	return v
}

// MustCodeAddr is like CodeAddr but panics on a kind mismatch.
func (o Operand) MustCodeAddr() Word {
	v, err := o.CodeAddr()
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the operand in assembly form.
func (o Operand) String() string {
	switch o.kind {
	case KindRegister:
		return RegisterID(o.value).String()
	case KindImmediate:
		return strconv.FormatInt(o.value, 10)
	case KindMemory, KindCode:
		return "[" + strconv.FormatInt(o.value, 10) + "]"
	default:
		return "Unused"
	}
}

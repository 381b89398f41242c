package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// Word is the machine word: register contents, immediates and memory cells.
type Word = int64

// RegisterID identifies an architectural register.
type RegisterID uint16

// MaxGeneralRegisters bounds the number of numbered general-purpose registers.
// The configured count (see RegisterFromName) may be lower.
const MaxGeneralRegisters = 32

// Named architectural registers. They are numbered after the general-purpose
// registers so that R0..R31 map directly to their index.
const (
	FP RegisterID = MaxGeneralRegisters + iota
	SP
	LR
	PC
	CPSR

	// RegisterCount is the size of a register file holding every register.
	RegisterCount = int(CPSR) + 1
)

var namedRegisters = map[RegisterID]string{
	FP:   "FP",
	SP:   "SP",
	LR:   "LR",
	PC:   "PC",
	CPSR: "CPSR",
}

var registerNames = map[string]RegisterID{
	"FP":   FP,
	"SP":   SP,
	"LR":   LR,
	"PC":   PC,
	"CPSR": CPSR,
}

// String renders the architectural name of a named register, otherwise R<n>.
func (r RegisterID) String() string {
	if name, ok := namedRegisters[r]; ok {
		return name
	}
	return "R" + strconv.Itoa(int(r))
}

// IsNamed reports whether r is one of SP, LR, PC, FP or CPSR.
func (r RegisterID) IsNamed() bool {
	_, ok := namedRegisters[r]
	return ok
}

// IsGeneral reports whether r is a numbered general-purpose register.
func (r RegisterID) IsGeneral() bool {
	return r < MaxGeneralRegisters
}

// RegisterFromName parses a register name. Named registers are matched
// case-insensitively; numbered registers use the R<n> form and must be below
// generalCount.
func RegisterFromName(name string, generalCount int) (RegisterID, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if reg, ok := registerNames[upper]; ok {
		return reg, nil
	}

	if len(upper) < 2 || upper[0] != 'R' {
		return 0, fmt.Errorf("%q is not a register", name)
	}

	n, err := strconv.Atoi(upper[1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%q is not a register", name)
	}

	if generalCount > MaxGeneralRegisters {
		generalCount = MaxGeneralRegisters
	}
	if n >= generalCount {
		return 0, fmt.Errorf("illegal register %q: only %d general registers", name, generalCount)
	}

	return RegisterID(n), nil
}

// LooksLikeRegister reports whether name has the shape of a register name,
// regardless of the configured register count.
func LooksLikeRegister(name string) bool {
	upper := strings.ToUpper(name)
	if _, ok := registerNames[upper]; ok {
		return true
	}

	if len(upper) < 2 || upper[0] != 'R' {
		return false
	}
	for _, c := range upper[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

package insts

import "strings"

// Opcode identifies an instruction mnemonic.
type Opcode uint8

// Opcodes of the simulated instruction set.
const (
	OpUnknown Opcode = iota

	// Arithmetic
	OpADD
	OpSUB
	OpMUL
	OpSDIV
	OpNEG

	// Bitwise
	OpAND
	OpORR
	OpEOR
	OpMVN

	// Data movement
	OpMOV
	OpLDR
	OpSTR

	// Control
	OpB
	OpBX
	OpBL
	OpCBZ
	OpCBNZ
	OpCMP
	OpBEQ
	OpBNE
	OpBLT
	OpBLE
	OpBGT
	OpBGE

	// Misc
	OpNOP
	OpPRINTR

	// OpEXIT is the poison pill that halts the pipeline. It is not part of
	// the public mnemonic table and can't be written in source programs.
	OpEXIT

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpUnknown: "UNKNOWN",
	OpADD:     "ADD",
	OpSUB:     "SUB",
	OpMUL:     "MUL",
	OpSDIV:    "SDIV",
	OpNEG:     "NEG",
	OpAND:     "AND",
	OpORR:     "ORR",
	OpEOR:     "EOR",
	OpMVN:     "MVN",
	OpMOV:     "MOV",
	OpLDR:     "LDR",
	OpSTR:     "STR",
	OpB:       "B",
	OpBX:      "BX",
	OpBL:      "BL",
	OpCBZ:     "CBZ",
	OpCBNZ:    "CBNZ",
	OpCMP:     "CMP",
	OpBEQ:     "BEQ",
	OpBNE:     "BNE",
	OpBLT:     "BLT",
	OpBLE:     "BLE",
	OpBGT:     "BGT",
	OpBGE:     "BGE",
	OpNOP:     "NOP",
	OpPRINTR:  "PRINTR",
	OpEXIT:    "EXIT",
}

// mnemonics is the reverse of opcodeNames, restricted to the public opcodes.
var mnemonics = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op := OpADD; op < numOpcodes; op++ {
		if op == OpEXIT {
			continue
		}
		m[opcodeNames[op]] = op
	}
	return m
}()

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	if op >= numOpcodes {
		return opcodeNames[OpUnknown]
	}
	return opcodeNames[op]
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	return op > OpUnknown && op < numOpcodes
}

// OpcodeFromMnemonic looks up a public mnemonic, ignoring case.
func OpcodeFromMnemonic(mnemonic string) (Opcode, bool) {
	op, ok := mnemonics[strings.ToUpper(mnemonic)]
	return op, ok
}

// IsMnemonic reports whether name is a public mnemonic.
func IsMnemonic(name string) bool {
	_, ok := OpcodeFromMnemonic(name)
	return ok
}

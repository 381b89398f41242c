package emu

import (
	"fmt"

	"github.com/sarchlab/cyclesim/insts"
)

// Memory is a flat, word-addressed data memory. Every cell reads as zero
// until written.
type Memory struct {
	words []insts.Word
}

// NewMemory creates a zero-filled memory of size words.
func NewMemory(size int) *Memory {
	return &Memory{words: make([]insts.Word, size)}
}

// Size returns the number of words.
func (m *Memory) Size() int {
	return len(m.words)
}

// Contains reports whether addr is a valid word address.
func (m *Memory) Contains(addr insts.Word) bool {
	return addr >= 0 && addr < insts.Word(len(m.words))
}

func (m *Memory) mustContain(addr insts.Word) {
	if !m.Contains(addr) {
		panic(fmt.Sprintf("memory address %d out of range [0, %d)", addr, len(m.words)))
	}
}

// Read returns the word at addr. An address outside the memory is a
// programming error and panics.
func (m *Memory) Read(addr insts.Word) insts.Word {
	m.mustContain(addr)
	return m.words[addr]
}

// Write stores value at addr. An address outside the memory panics.
func (m *Memory) Write(addr, value insts.Word) {
	m.mustContain(addr)
	m.words[addr] = value
}

// Load implements LoadPort by reading the array directly.
func (m *Memory) Load(addr insts.Word) insts.Word {
	return m.Read(addr)
}

// Clear zero-fills the memory.
func (m *Memory) Clear() {
	for i := range m.words {
		m.words[i] = 0
	}
}

// LoadData zero-fills the memory and writes every data item of prog at its
// offset. It can be called again for a new run.
func (m *Memory) LoadData(prog *insts.Program) error {
	if prog.DataSize() > insts.Word(len(m.words)) {
		return fmt.Errorf("data section needs %d words, memory has %d",
			prog.DataSize(), len(m.words))
	}

	m.Clear()
	for _, d := range prog.DataItems() {
		m.words[d.Offset] = d.Value
	}

	return nil
}

// Snapshot returns a copy of the whole memory.
func (m *Memory) Snapshot() []insts.Word {
	return append([]insts.Word(nil), m.words...)
}

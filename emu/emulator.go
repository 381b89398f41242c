package emu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/cyclesim/insts"
)

var (
	// ErrPCOutOfRange is returned when control reaches an index outside the
	// program's code.
	ErrPCOutOfRange = errors.New("pc out of range")

	// ErrMaxInstructions is returned when the instruction limit is reached
	// before EXIT.
	ErrMaxInstructions = errors.New("max instructions reached")

	// ErrNoProgram is returned when stepping before LoadProgram.
	ErrNoProgram = errors.New("no program loaded")
)

// DefaultMemorySize is the memory size in words used when none is given.
const DefaultMemorySize = 1024

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program executed EXIT.
	Exited bool

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes a program functionally, one instruction per step, with
// stores written straight to memory. It serves as the reference for the
// timing model.
type Emulator struct {
	regFile  *RegFile
	memory   *Memory
	executor *Executor
	program  *insts.Program

	stdout io.Writer

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
	halted           bool
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom writer for PRINTR output.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithMemorySize sets the memory size in words.
func WithMemorySize(words int) EmulatorOption {
	return func(e *Emulator) {
		e.memory = NewMemory(words)
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new functional emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		stdout:  os.Stdout,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = NewMemory(DefaultMemorySize)
	}
	e.executor = NewExecutor(e.regFile, e.stdout)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Halted reports whether EXIT has been executed.
func (e *Emulator) Halted() bool {
	return e.halted
}

// LoadProgram initializes memory from the program's data table, clears the
// registers and sets PC to the entry point.
func (e *Emulator) LoadProgram(prog *insts.Program) error {
	if err := e.memory.LoadData(prog); err != nil {
		return fmt.Errorf("failed to load program data: %w", err)
	}

	e.program = prog
	e.regFile.Reset()
	e.regFile.SetPC(prog.EntryPoint())
	e.instructionCount = 0
	e.halted = false

	return nil
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.program == nil {
		return StepResult{Err: ErrNoProgram}
	}
	if e.halted {
		return StepResult{Exited: true}
	}
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.regFile.PC()
	if pc < 0 || pc >= e.program.Len() {
		return StepResult{Err: fmt.Errorf("%w: %d", ErrPCOutOfRange, pc)}
	}

	out := e.executor.Execute(e.program.Instr(pc), e.memory)
	e.instructionCount++

	if out.HasStore {
		e.memory.Write(out.Store.Addr, out.Store.Value)
	}

	if out.Halted {
		e.halted = true
		return StepResult{Exited: true}
	}

	e.regFile.SetPC(out.NextPC)
	return StepResult{}
}

// Run executes instructions until EXIT or an error.
func (e *Emulator) Run() error {
	for {
		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Exited {
			return nil
		}
	}
}

// Package pipeline provides the cycle-level model of a two-stage in-order
// core: a fetch stage feeding an instruction queue and an execute stage
// draining it into the register file and the memory subsystem.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/timing/cache"
	"github.com/sarchlab/cyclesim/timing/latency"
	"github.com/sarchlab/cyclesim/timing/memsys"
)

// FetchStatus describes what the fetch stage did in a cycle.
type FetchStatus int

// Fetch statuses.
const (
	// FetchOK means one instruction was enqueued.
	FetchOK FetchStatus = iota
	// FetchQueueFull means the queue had no room.
	FetchQueueFull
	// FetchWaitControl means a control instruction is still unresolved.
	FetchWaitControl
	// FetchStopped means EXIT has been fetched.
	FetchStopped
	// FetchOutOfRange means the fetch PC is outside the program.
	FetchOutOfRange
)

// FetchStage walks the program and enqueues one instruction per cycle.
type FetchStage struct {
	program *insts.Program
	queue   *InstrQueue
	pc      int
	waiting bool
	stopped bool
}

// NewFetchStage creates a fetch stage starting at the program entry point.
func NewFetchStage(program *insts.Program, queue *InstrQueue) *FetchStage {
	return &FetchStage{
		program: program,
		queue:   queue,
		pc:      program.EntryPoint(),
	}
}

// PC returns the index of the next instruction to fetch.
func (s *FetchStage) PC() int {
	return s.pc
}

// Fetch enqueues the instruction at the fetch PC if it can. After a control
// instruction it waits for Redirect; after EXIT it stops for good.
func (s *FetchStage) Fetch() FetchStatus {
	switch {
	case s.stopped:
		return FetchStopped
	case s.waiting:
		return FetchWaitControl
	case s.pc < 0 || s.pc >= s.program.Len():
		return FetchOutOfRange
	case s.queue.IsFull():
		return FetchQueueFull
	}

	instr := s.program.Instr(s.pc)
	s.queue.Enqueue(instr)
	s.pc++

	switch {
	case instr.Opcode() == insts.OpEXIT:
		s.stopped = true
	case instr.IsControl():
		s.waiting = true
	}

	return FetchOK
}

// Redirect resumes fetching at pc once a control instruction has resolved.
func (s *FetchStage) Redirect(pc int) {
	s.pc = pc
	s.waiting = false
}

// Reset restarts fetching at the entry point.
func (s *FetchStage) Reset() {
	s.pc = s.program.EntryPoint()
	s.waiting = false
	s.stopped = false
}

// ExecuteStatus describes what the execute stage did in a cycle.
type ExecuteStatus int

// Execute statuses.
const (
	// ExecuteIdle means the queue was empty.
	ExecuteIdle ExecuteStatus = iota
	// ExecuteBusy means the head instruction is still in its latency.
	ExecuteBusy
	// ExecuteStoreStall means the store buffer refused the head store.
	ExecuteStoreStall
	// ExecuteRetired means the head instruction completed and was dequeued.
	ExecuteRetired
)

// ExecuteResult holds the result of one execute-stage cycle.
type ExecuteResult struct {
	Status  ExecuteStatus
	Instr   *insts.Instr
	PC      int
	Outcome emu.Outcome
}

// ExecuteStage retires the instruction at the head of the queue once its
// latency has elapsed. It keeps the architectural PC in the register file:
// between control instructions the queue holds consecutive instructions, so
// the PC of the head is always known.
type ExecuteStage struct {
	queue        *InstrQueue
	regFile      *emu.RegFile
	executor     *emu.Executor
	memsys       *memsys.MemorySubsystem
	latencyTable *latency.Table
	dcache       *cache.Cache

	started   bool
	remaining uint64
	nextSeq   uint64
}

// NewExecuteStage creates an execute stage. latencyTable and dcache may be
// nil; without a table every instruction takes its own cycle count.
func NewExecuteStage(
	queue *InstrQueue,
	regFile *emu.RegFile,
	executor *emu.Executor,
	ms *memsys.MemorySubsystem,
	latencyTable *latency.Table,
	dcache *cache.Cache,
) *ExecuteStage {
	return &ExecuteStage{
		queue:        queue,
		regFile:      regFile,
		executor:     executor,
		memsys:       ms,
		latencyTable: latencyTable,
		dcache:       dcache,
	}
}

func (s *ExecuteStage) latencyOf(instr *insts.Instr) uint64 {
	lat := uint64(instr.Cycles())
	if s.latencyTable != nil {
		lat = s.latencyTable.GetLatency(instr)
	}

	if s.dcache != nil {
		switch {
		case instr.Opcode() == insts.OpLDR:
			addr := instr.Source(0).MustMemoryAddr()
			if _, forwarded := s.memsys.StoreBuffer().Query(addr); !forwarded {
				lat = s.dcache.Access(addr, false).Latency
			}
		case instr.MemStores() > 0:
			s.dcache.Access(instr.Sink(0).MustMemoryAddr(), true)
		}
	}

	if lat == 0 {
		lat = 1
	}
	return lat
}

// Execute advances the head instruction by one cycle.
func (s *ExecuteStage) Execute() ExecuteResult {
	if s.queue.IsEmpty() {
		return ExecuteResult{Status: ExecuteIdle}
	}

	instr := s.queue.Peek()
	pc := s.regFile.PC()
	if !s.started {
		s.started = true
		s.remaining = s.latencyOf(instr)
	}

	if s.remaining > 1 {
		s.remaining--
		return ExecuteResult{Status: ExecuteBusy, Instr: instr, PC: pc}
	}

	out := s.executor.Execute(instr, s.memsys)
	if out.HasStore {
		err := s.memsys.Store(out.Store.Addr, out.Store.Value, s.nextSeq)
		if errors.Is(err, memsys.ErrStoreBufferFull) {
			return ExecuteResult{Status: ExecuteStoreStall, Instr: instr, PC: pc}
		}
		if err != nil {
			panic(fmt.Sprintf("store at %d: %v", pc, err))
		}
		s.nextSeq++
	}

	s.queue.Dequeue()
	s.started = false
	if !out.Halted {
		s.regFile.SetPC(out.NextPC)
	}

	return ExecuteResult{Status: ExecuteRetired, Instr: instr, PC: pc, Outcome: out}
}

// Reset forgets any partially executed instruction and restarts store
// sequence numbering.
func (s *ExecuteStage) Reset() {
	s.started = false
	s.remaining = 0
	s.nextSeq = 0
}

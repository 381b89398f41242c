package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"

	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/timing/cache"
	"github.com/sarchlab/cyclesim/timing/latency"
	"github.com/sarchlab/cyclesim/timing/memsys"
)

// ErrMaxCyclesExceeded is returned by Run when the cycle limit is reached
// before the program exits.
var ErrMaxCyclesExceeded = errors.New("max cycles exceeded")

// DefaultQueueCapacity is the instruction queue capacity used when none is
// given.
const DefaultQueueCapacity = 8

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// QueueFullStalls counts cycles fetch could not enqueue.
	QueueFullStalls uint64
	// ControlStalls counts cycles fetch waited for a control instruction.
	ControlStalls uint64
	// StoreStalls counts cycles a store waited for store buffer room.
	StoreStalls uint64
	// LatencyStalls counts cycles the head instruction was still executing.
	LatencyStalls uint64
	// LoadsForwarded counts loads served from the store buffer.
	LoadsForwarded uint64
	// StoresCommitted counts stores written to memory.
	StoresCommitted uint64
	// CacheHits and CacheMisses count data cache lookups.
	CacheHits   uint64
	CacheMisses uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger. Retired instructions are logged at V(1).
func WithLogger(logger logr.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithLatencyTable sets a custom latency table for instruction timing.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithStdout sets the writer for PRINTR output.
func WithStdout(w io.Writer) PipelineOption {
	return func(p *Pipeline) {
		p.stdout = w
	}
}

// WithQueueCapacity sets the instruction queue capacity.
func WithQueueCapacity(capacity int) PipelineOption {
	return func(p *Pipeline) {
		p.queueCapacity = capacity
	}
}

// WithMaxCycles limits Run to the given number of cycles. 0 means no limit.
func WithMaxCycles(cycles uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = cycles
	}
}

// WithDCache enables the L1 data cache model with the given configuration.
func WithDCache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		p.dcache = cache.New(config)
	}
}

// Pipeline drives the fetch stage, the execute stage and the memory
// subsystem one cycle at a time.
type Pipeline struct {
	program *insts.Program
	regFile *emu.RegFile
	memsys  *memsys.MemorySubsystem
	queue   *InstrQueue

	fetchStage   *FetchStage
	executeStage *ExecuteStage

	latencyTable  *latency.Table
	dcache        *cache.Cache
	stdout        io.Writer
	logger        logr.Logger
	queueCapacity int
	maxCycles     uint64

	stats  Statistics
	halted bool
	err    error
}

// NewPipeline creates a pipeline that runs prog against ms. The memory
// subsystem must already be initialized with prog.
func NewPipeline(prog *insts.Program, ms *memsys.MemorySubsystem, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		program:       prog,
		regFile:       &emu.RegFile{},
		memsys:        ms,
		stdout:        os.Stdout,
		logger:        logr.Discard(),
		queueCapacity: DefaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.queue = NewInstrQueue(p.queueCapacity)
	p.fetchStage = NewFetchStage(prog, p.queue)
	p.executeStage = NewExecuteStage(
		p.queue,
		p.regFile,
		emu.NewExecutor(p.regFile, p.stdout),
		ms,
		p.latencyTable,
		p.dcache,
	)
	p.regFile.SetPC(prog.EntryPoint())

	return p
}

// RegFile returns the architectural register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Queue returns the instruction queue.
func (p *Pipeline) Queue() *InstrQueue {
	return p.queue
}

// MemorySubsystem returns the memory subsystem.
func (p *Pipeline) MemorySubsystem() *memsys.MemorySubsystem {
	return p.memsys
}

// DCache returns the data cache, or nil when none is configured.
func (p *Pipeline) DCache() *cache.Cache {
	return p.dcache
}

// PC returns the PC of the oldest instruction not yet retired.
func (p *Pipeline) PC() int {
	return p.regFile.PC()
}

// Halted returns true once EXIT has retired.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Done returns true once EXIT has retired and every store has committed.
func (p *Pipeline) Done() bool {
	return p.halted && p.memsys.Drained()
}

// Err returns the error that stopped the pipeline, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	stats := p.stats

	msStats := p.memsys.Stats()
	stats.LoadsForwarded = msStats.LoadsForwarded
	stats.StoresCommitted = msStats.StoresCommitted

	if p.dcache != nil {
		cacheStats := p.dcache.Stats()
		stats.CacheHits = cacheStats.Hits
		stats.CacheMisses = cacheStats.Misses
	}

	return stats
}

// Run ticks the pipeline until the program exits and the store buffer has
// drained.
func (p *Pipeline) Run() error {
	for !p.Done() {
		if p.err != nil {
			return p.err
		}
		if p.maxCycles > 0 && p.stats.Cycles >= p.maxCycles {
			return fmt.Errorf("%w: %d", ErrMaxCyclesExceeded, p.maxCycles)
		}
		p.Tick()
	}

	p.logger.Info("pipeline done",
		"cycles", p.stats.Cycles, "instructions", p.stats.Instructions)

	return p.err
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if done or stopped by an error.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.Done() && p.err == nil; i++ {
		p.Tick()
	}
	return !p.Done() && p.err == nil
}

// Tick executes one cycle: execute, then fetch, then one memory subsystem
// cycle. Executing first lets a resolved control instruction redirect fetch
// in the same cycle.
func (p *Pipeline) Tick() {
	if p.Done() || p.err != nil {
		return
	}

	p.stats.Cycles++

	if !p.halted {
		p.tickExecute()
	}
	if !p.halted {
		p.tickFetch()
	}

	p.memsys.DoCycle()
}

func (p *Pipeline) tickExecute() {
	result := p.executeStage.Execute()

	switch result.Status {
	case ExecuteBusy:
		p.stats.LatencyStalls++

	case ExecuteStoreStall:
		p.stats.StoreStalls++

	case ExecuteRetired:
		p.stats.Instructions++
		p.logger.V(1).Info("retired",
			"cycle", p.stats.Cycles, "pc", result.PC, "instr", result.Instr.String())

		switch {
		case result.Outcome.Halted:
			p.halted = true
			p.logger.Info("halted", "cycle", p.stats.Cycles, "pc", result.PC)
		case result.Instr.IsControl():
			p.fetchStage.Redirect(result.Outcome.NextPC)
		}
	}
}

func (p *Pipeline) tickFetch() {
	switch p.fetchStage.Fetch() {
	case FetchQueueFull:
		p.stats.QueueFullStalls++

	case FetchWaitControl:
		p.stats.ControlStalls++

	case FetchOutOfRange:
		if p.queue.IsEmpty() {
			p.err = fmt.Errorf("%w: %d", emu.ErrPCOutOfRange, p.fetchStage.PC())
		}
	}
}

// Reset reinitializes memory from the program and restarts execution at the
// entry point, so the same pipeline can run the program again.
func (p *Pipeline) Reset() error {
	if err := p.memsys.Init(p.program); err != nil {
		return err
	}

	p.regFile.Reset()
	p.regFile.SetPC(p.program.EntryPoint())
	p.queue.Reset()
	p.fetchStage.Reset()
	p.executeStage.Reset()
	if p.dcache != nil {
		p.dcache.Reset()
	}

	p.stats = Statistics{}
	p.halted = false
	p.err = nil

	return nil
}

// Package core provides the cycle-level CPU core model.
// It wires a memory subsystem and a pipeline for one program and provides a
// high-level interface over them.
package core

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"

	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/timing/latency"
	"github.com/sarchlab/cyclesim/timing/memsys"
	"github.com/sarchlab/cyclesim/timing/pipeline"
)

// Option is a functional option for configuring the Core.
type Option func(*Core)

// WithLogger sets the logger passed to the pipeline and memory subsystem.
func WithLogger(logger logr.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// WithStdout sets the writer for PRINTR output.
func WithStdout(w io.Writer) Option {
	return func(c *Core) {
		c.stdout = w
	}
}

// Core represents a cycle-level CPU core running one program.
type Core struct {
	// Pipeline is the underlying pipeline.
	Pipeline *pipeline.Pipeline

	config  *Config
	program *insts.Program
	memsys  *memsys.MemorySubsystem
	logger  logr.Logger
	stdout  io.Writer
}

// NewCore validates config and prog, initializes memory from the program's
// data and builds the pipeline.
func NewCore(config *Config, prog *insts.Program, opts ...Option) (*Core, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid core config: %w", err)
	}
	if err := checkRegisters(prog, config.GeneralRegisters); err != nil {
		return nil, err
	}

	c := &Core{
		config:  config.Clone(),
		program: prog,
		logger:  logr.Discard(),
		stdout:  os.Stdout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.memsys = memsys.New(memsys.Config{
		MemorySize:          config.MemorySize,
		StoreBufferCapacity: config.StoreBufferCapacity,
		CommitWidth:         config.StoreCommitWidth,
		CommitLatency:       config.StoreCommitLatency,
	}, memsys.WithLogger(c.logger.WithName("memsys")))

	if err := c.memsys.Init(prog); err != nil {
		return nil, err
	}

	pipeOpts := []pipeline.PipelineOption{
		pipeline.WithLogger(c.logger.WithName("pipeline")),
		pipeline.WithStdout(c.stdout),
		pipeline.WithQueueCapacity(config.InstrQueueCapacity),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(c.config.Timing)),
		pipeline.WithMaxCycles(config.MaxCycles),
	}
	if config.DCache != nil {
		pipeOpts = append(pipeOpts, pipeline.WithDCache(*config.DCache))
	}

	c.Pipeline = pipeline.NewPipeline(prog, c.memsys, pipeOpts...)

	return c, nil
}

// checkRegisters rejects programs that name general registers beyond the
// configured count.
func checkRegisters(prog *insts.Program, generalCount int) error {
	for pos, instr := range prog.Code() {
		operands := append(instr.Sources(), instr.Sinks()...)
		for _, o := range operands {
			reg, err := o.Register()
			if err != nil {
				continue
			}
			if reg.IsGeneral() && int(reg) >= generalCount {
				return fmt.Errorf("%w: instruction %d (%s) uses %s but only %d general registers exist",
					insts.ErrInvalidProgram, pos, instr, reg, generalCount)
			}
		}
	}
	return nil
}

// Config returns a copy of the core configuration.
func (c *Core) Config() *Config {
	return c.config.Clone()
}

// MemorySubsystem returns the memory subsystem.
func (c *Core) MemorySubsystem() *memsys.MemorySubsystem {
	return c.memsys
}

// RegFile returns the architectural register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.Pipeline.RegFile()
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Halted returns true once the program has executed EXIT.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Done returns true once the program has exited and all stores committed.
func (c *Core) Done() bool {
	return c.Pipeline.Done()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() pipeline.Statistics {
	return c.Pipeline.Stats()
}

// SimulatedTime returns the simulated run time in seconds at the configured
// frequency.
func (c *Core) SimulatedTime() float64 {
	return float64(c.Stats().Cycles) / float64(c.config.Frequency)
}

// Run executes the core until the program exits and its stores drain.
func (c *Core) Run() error {
	c.logger.Info("run started",
		"instructions", c.program.Len(), "entry", c.program.EntryPoint())

	if err := c.Pipeline.Run(); err != nil {
		return fmt.Errorf("simulation stopped after %d cycles: %w", c.Stats().Cycles, err)
	}

	return nil
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// Reset restores memory and registers so the program can run again.
func (c *Core) Reset() error {
	return c.Pipeline.Reset()
}

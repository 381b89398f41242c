// Package benchmarks runs assembly microbenchmarks on the core model and
// checks every run against the functional emulator.
package benchmarks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/cyclesim/checkpoint"
	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/loader"
	"github.com/sarchlab/cyclesim/timing/core"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	SimulatedCycles     uint64  `json:"simulated_cycles"`
	InstructionsRetired uint64  `json:"instructions_retired"`
	CPI                 float64 `json:"cpi"`

	QueueFullStalls uint64 `json:"queue_full_stalls"`
	ControlStalls   uint64 `json:"control_stalls"`
	StoreStalls     uint64 `json:"store_stalls"`
	LatencyStalls   uint64 `json:"latency_stalls"`

	LoadsForwarded  uint64 `json:"loads_forwarded"`
	StoresCommitted uint64 `json:"stores_committed"`
	DCacheHits      uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses    uint64 `json:"dcache_misses,omitempty"`

	// Output is what the program printed.
	Output string `json:"output"`

	// Verified is set when output, registers and memory match the
	// functional emulator and the expected output.
	Verified bool `json:"verified"`

	// Mismatch describes the first difference found during verification.
	Mismatch string `json:"mismatch,omitempty"`

	// Error is set when the benchmark could not be assembled or run.
	Error string `json:"error,omitempty"`

	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	Name        string
	Description string

	// Source is the assembly text of the program.
	Source string

	// ExpectedOutput is the PRINTR output the program must produce. Empty
	// skips the check.
	ExpectedOutput string
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Core is the core configuration every benchmark runs on. Nil uses
	// core.DefaultConfig.
	Core *core.Config

	// Output is where to write results (default: os.Stdout).
	Output io.Writer

	Logger logr.Logger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Core:   core.DefaultConfig(),
		Output: os.Stdout,
		Logger: logr.Discard(),
	}
}

// Harness runs benchmarks and reports their results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Core == nil {
		config.Core = core.DefaultConfig()
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}

	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds several benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll runs every benchmark in the order they were added.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		h.config.Logger.Info("benchmark finished",
			"name", result.Name, "cycles", result.SimulatedCycles, "verified", result.Verified)
		results = append(results, result)
	}

	return results
}

func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	prog, err := loader.Parse(bench.Source, h.config.Core.GeneralRegisters)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	stdout := &bytes.Buffer{}
	c, err := core.NewCore(h.config.Core, prog,
		core.WithStdout(stdout),
		core.WithLogger(h.config.Logger.WithName(bench.Name)),
	)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	runErr := c.Run()
	result.WallTime = time.Since(start)

	stats := c.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.QueueFullStalls = stats.QueueFullStalls
	result.ControlStalls = stats.ControlStalls
	result.StoreStalls = stats.StoreStalls
	result.LatencyStalls = stats.LatencyStalls
	result.LoadsForwarded = stats.LoadsForwarded
	result.StoresCommitted = stats.StoresCommitted
	result.DCacheHits = stats.CacheHits
	result.DCacheMisses = stats.CacheMisses
	result.Output = stdout.String()

	if runErr != nil {
		result.Error = runErr.Error()
		return result
	}

	mismatch, err := h.verify(bench, prog, c, result.Output)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Mismatch = mismatch
	result.Verified = mismatch == ""

	return result
}

// verify replays prog on the functional emulator and compares the final
// architectural state with the core's. got is the core's output.
func (h *Harness) verify(
	bench Benchmark, prog *insts.Program, c *core.Core, got string,
) (string, error) {
	stdout := &bytes.Buffer{}
	ref := emu.NewEmulator(
		emu.WithStdout(stdout),
		emu.WithMemorySize(h.config.Core.MemorySize),
	)
	if err := ref.LoadProgram(prog); err != nil {
		return "", fmt.Errorf("failed to load reference program: %w", err)
	}
	if err := ref.Run(); err != nil {
		return "", fmt.Errorf("reference run failed: %w", err)
	}

	if bench.ExpectedOutput != "" && got != bench.ExpectedOutput {
		return fmt.Sprintf("output %q, expected %q", got, bench.ExpectedOutput), nil
	}
	if got != stdout.String() {
		return fmt.Sprintf("output %q, emulator printed %q", got, stdout.String()), nil
	}

	for reg := insts.RegisterID(0); int(reg) < h.config.Core.GeneralRegisters; reg++ {
		want, have := ref.RegFile().ReadReg(reg), c.RegFile().ReadReg(reg)
		if want != have {
			return fmt.Sprintf("%s = %d, emulator has %d", reg, have, want), nil
		}
	}

	diff, err := checkpoint.Diff(ref.Memory().Snapshot(),
		c.MemorySubsystem().Memory().Snapshot())
	if err != nil {
		return "", err
	}
	if diff != "" {
		return "memory differs from emulator:\n" + diff, nil
	}

	return "", nil
}

// PrintResults prints results in human-readable form.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output

	_, _ = fmt.Fprintln(w, "=== cyclesim Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "  Error: %s\n\n", r.Error)
			continue
		}
		_, _ = fmt.Fprintf(w, "  Verified: %v\n", r.Verified)
		if r.Mismatch != "" {
			_, _ = fmt.Fprintf(w, "  Mismatch: %s\n", r.Mismatch)
		}
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(w, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(w, "  Queue Full Stalls:    %d\n", r.QueueFullStalls)
		_, _ = fmt.Fprintf(w, "  Control Stalls:       %d\n", r.ControlStalls)
		_, _ = fmt.Fprintf(w, "  Store Stalls:         %d\n", r.StoreStalls)
		_, _ = fmt.Fprintf(w, "  Latency Stalls:       %d\n", r.LatencyStalls)
		_, _ = fmt.Fprintln(w, "  --- Memory ---")
		_, _ = fmt.Fprintf(w, "  Loads Forwarded:      %d\n", r.LoadsForwarded)
		_, _ = fmt.Fprintf(w, "  Stores Committed:     %d\n", r.StoresCommitted)

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(w, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(w, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(w, "  Misses: %d\n", r.DCacheMisses)
		}

		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV prints results as CSV with a header row.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	w := h.config.Output

	_, _ = fmt.Fprintln(w,
		"name,cycles,instructions,cpi,queue_full_stalls,control_stalls,store_stalls,latency_stalls,loads_forwarded,stores_committed,dcache_hits,dcache_misses,verified")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%v\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.QueueFullStalls,
			r.ControlStalls,
			r.StoreStalls,
			r.LatencyStalls,
			r.LoadsForwarded,
			r.StoresCommitted,
			r.DCacheHits,
			r.DCacheMisses,
			r.Verified,
		)
	}
}

// PrintJSON prints results as an indented JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

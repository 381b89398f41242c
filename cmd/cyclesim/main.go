// Package main provides the cyclesim command, which assembles a program and
// runs it on the cycle-level core model.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/cyclesim/checkpoint"
	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/loader"
	"github.com/sarchlab/cyclesim/timing/core"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath    string
	verbosity     int
	checkpointDir string
	maxCycles     uint64
	cpuProfile    string
	memProfile    string
	programPath   string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("cyclesim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to core configuration file (.json, .yaml or .yml)")
	fs.IntVar(&opts.verbosity, "v", 0, "Log verbosity (1 logs retired instructions, 2 adds store commits)")
	fs.StringVar(&opts.checkpointDir, "checkpoint", "", "Directory of the checkpoint store to compare against")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Stop after this many cycles (overrides the config)")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile of the simulation to file")
	fs.StringVar(&opts.memProfile, "memprofile", "", "Write a heap profile to file after the simulation")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: cyclesim [options] <program.s>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one program path")
	}
	opts.programPath = fs.Arg(0)

	return opts, nil
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	stopProfile, err := startCPUProfile(opts.cpuProfile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	simErr := simulate(opts, stdout, stderr)
	stopProfile()

	if err := writeMemProfile(opts.memProfile); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if simErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", simErr)
		return 1
	}

	return 0
}

func startCPUProfile(path string) (stop func(), err error) {
	if path == "" {
		return func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

func writeMemProfile(path string) error {
	if path == "" {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create memory profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}

	return nil
}

func loadConfig(opts *options) (*core.Config, error) {
	config := core.DefaultConfig()
	if opts.configPath != "" {
		var err error
		config, err = core.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	if opts.maxCycles > 0 {
		config.MaxCycles = opts.maxCycles
	}

	return config, nil
}

func simulate(opts *options, stdout, stderr io.Writer) error {
	logger := newLogger(stderr, opts.verbosity)

	config, err := loadConfig(opts)
	if err != nil {
		return err
	}

	prog, err := loader.Load(opts.programPath, config.GeneralRegisters)
	if err != nil {
		return err
	}

	c, err := core.NewCore(config, prog,
		core.WithLogger(logger.WithName("core")),
		core.WithStdout(stdout),
	)
	if err != nil {
		return err
	}

	runErr := c.Run()
	printStats(stdout, opts.programPath, c)
	if runErr != nil {
		return runErr
	}

	if opts.checkpointDir != "" {
		return compareCheckpoint(opts.checkpointDir, checkpoint.Fingerprint(prog),
			c.MemorySubsystem().Memory().Snapshot(), stdout)
	}

	return nil
}

func printStats(w io.Writer, programPath string, c *core.Core) {
	stats := c.Stats()

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Program: %s\n", programPath)
	fmt.Fprintf(w, "Total Instructions: %d\n", stats.Instructions)
	fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(w, "CPI: %.2f\n", stats.CPI())
	fmt.Fprintf(w, "Simulated Time: %.3f us\n", c.SimulatedTime()*1e6)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Stalls:\n")
	fmt.Fprintf(w, "  Queue full:  %d\n", stats.QueueFullStalls)
	fmt.Fprintf(w, "  Control:     %d\n", stats.ControlStalls)
	fmt.Fprintf(w, "  Store:       %d\n", stats.StoreStalls)
	fmt.Fprintf(w, "  Latency:     %d\n", stats.LatencyStalls)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Memory:\n")
	fmt.Fprintf(w, "  Loads forwarded:  %d\n", stats.LoadsForwarded)
	fmt.Fprintf(w, "  Stores committed: %d\n", stats.StoresCommitted)
	if c.Config().DCache != nil {
		fmt.Fprintf(w, "  DCache hits:      %d\n", stats.CacheHits)
		fmt.Fprintf(w, "  DCache misses:    %d\n", stats.CacheMisses)
	}
}

// compareCheckpoint diffs image against the image stored for key, then
// stores image in its place.
func compareCheckpoint(dir string, key checkpoint.Key, image []insts.Word, w io.Writer) error {
	store, err := checkpoint.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	previous, err := store.Load(key)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		fmt.Fprintf(w, "\nCheckpoint: none stored for %s\n", key)
	case err != nil:
		return err
	default:
		diff, err := checkpoint.Diff(previous, image)
		if err != nil {
			return err
		}
		if diff == "" {
			fmt.Fprintf(w, "\nCheckpoint: memory matches %s\n", key)
		} else {
			fmt.Fprintf(w, "\nCheckpoint: memory differs from %s\n%s", key, diff)
		}
	}

	return store.Save(key, image)
}

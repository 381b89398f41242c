// Command benchmark runs the cyclesim microbenchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv      Output results in CSV format (default: human-readable)
//	-json     Output results as JSON
//	-config   Core configuration file (.json, .yaml or .yml)
//	-dcache   Enable the default L1 data cache
//	-core     Run only the core subset (loop, matrix multiply, branches)
//
// Example:
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv -dcache > results.csv
//
// Every benchmark is replayed on the functional emulator; the command exits
// with status 1 if any run fails verification.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/cyclesim/benchmarks"
	"github.com/sarchlab/cyclesim/timing/cache"
	"github.com/sarchlab/cyclesim/timing/core"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	configPath := flag.String("config", "", "Path to core configuration file")
	withDCache := flag.Bool("dcache", false, "Enable the default L1 data cache")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout

	if *configPath != "" {
		coreConfig, err := core.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config.Core = coreConfig
	}
	if *withDCache && config.Core.DCache == nil {
		dcache := cache.DefaultConfig()
		config.Core.DCache = &dcache
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("cyclesim Benchmark Harness")
		fmt.Println("==========================")
		fmt.Printf("D-Cache: %v\n", config.Core.DCache != nil)
		fmt.Printf("Store buffer: %d entries, commit width %d, commit latency %d\n",
			config.Core.StoreBufferCapacity, config.Core.StoreCommitWidth, config.Core.StoreCommitLatency)
		fmt.Println("")
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}

	for _, r := range results {
		if !r.Verified {
			os.Exit(1)
		}
	}
}

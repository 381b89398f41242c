// Package main provides the entry point for cyclesim.
// cyclesim is a cycle-level model of a single-issue core with a store buffer.
//
// For the full CLI, use: go run ./cmd/cyclesim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("cyclesim - cycle-level core simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: cyclesim [options] <program.s>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config      Path to core configuration file (.json, .yaml or .yml)")
	fmt.Println("  -v           Log verbosity")
	fmt.Println("  -checkpoint  Directory of the checkpoint store")
	fmt.Println("  -max-cycles  Stop after this many cycles")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/cyclesim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/cyclesim' instead.")
	}
}

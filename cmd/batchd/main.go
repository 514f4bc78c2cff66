package main

// ============================================================================
// batchd entry point. All logic lives in internal/cli; this file only wires
// the root command and top-level error handling.
// ============================================================================

import (
	"fmt"
	"os"

	"github.com/batchd-io/batchd/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := cli.BuildCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

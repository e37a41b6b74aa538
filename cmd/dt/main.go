// Package main provides the CLI entry point for dt, a pipeline language
// for tabular data.
//
// Usage:
//
//	dt "read('sales.csv') | filter(quantity > 10) | select(price)"
//	dt -f clean.dt -o clean.parquet      # run a script, save the result
//	dt --preload sales=sales.csv -i     # bind a file, then open the REPL
//	dt                                  # start the REPL
package main

import (
	"fmt"
	"os"

	"github.com/system0x7/dt/pkg/repl"
)

// Version info set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", repl.Friendly(err))
		os.Exit(1)
	}
}

// Package main is the entrypoint for the salespipe CLI.
package main

import (
	"os"

	"github.com/driftwood-labs/salespipe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

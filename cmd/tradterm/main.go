// Package main provides the entry point for the tradterm CLI.
package main

import (
	"os"

	"github.com/tradterm/tradterm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

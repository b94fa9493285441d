// Package main is the entry point for the spendctl CLI.
package main

import (
	"os"

	"spendplan/cmd/spendctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

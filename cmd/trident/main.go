// Package main provides the entry point for the trident CLI.
package main

import (
	"os"

	"github.com/trident-search/trident/cmd/trident/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

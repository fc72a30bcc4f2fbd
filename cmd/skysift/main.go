// Package main provides the entry point for the skysift CLI.
package main

import (
	"os"

	"github.com/skysift/skysift/cmd/skysift/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

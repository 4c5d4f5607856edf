// Package main is the entry point for the breathscan CLI.
//
// Usage:
//
//	breathscan [flags] <command> [args]
//
// Commands:
//
//	analyze    - Run the bronchitis risk pipeline on an audio file
//	serve      - Start the HTTP analysis service
//	labels     - Print the loaded label taxonomy
//	config     - Configuration management (init, show)
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/medwave/breathscan/cmd/breathscan/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

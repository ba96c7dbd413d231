// Package main is the entry point for the sip-agent reference process.
package main

import (
	"fmt"
	"os"

	"otuscore.dev/sip/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

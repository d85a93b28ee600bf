// Package main provides envctl, the HelioWatch command-line client.
package main

import (
	"fmt"
	"os"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "envctl:", err)
		os.Exit(1)
	}
}

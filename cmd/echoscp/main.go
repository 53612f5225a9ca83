package main

import (
	"fmt"
	"os"
)

// Populated at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "echoscp:", err)
		os.Exit(1)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command meower is a command-line client for the Meower social
// platform.
package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/meower/cmd/meower/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an error carrying
		// the exit code; no extra "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}

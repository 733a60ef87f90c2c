// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the meower CLI command tree.
package commands

import (
	"fmt"

	"github.com/bureau-foundation/meower/cmd/meower/cli"
	"github.com/bureau-foundation/meower/lib/version"
)

// Root builds the complete meower command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "meower",
		Description: `meower: a command-line client for the Meower social platform.

Log in once with 'meower login'; later commands reuse the saved
session token.`,
		Subcommands: []*cli.Command{
			loginCommand(),
			signupCommand(),
			logoutCommand(),
			chatsCommand(),
			sendCommand(),
			tailCommand(),
			replayCommand(),
			uploadCommand(),
			statsCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print the build version",
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			fmt.Println(version.Full())
			return nil
		},
	}
}

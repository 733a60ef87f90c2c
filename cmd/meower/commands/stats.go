// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/meower/cmd/meower/cli"
	"github.com/bureau-foundation/meower/messaging"
)

func statsCommand() *cli.Command {
	var flags commonFlags
	return &cli.Command{
		Name:    "stats",
		Summary: "Show server-wide user, post and chat counts",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			env, err := flags.load()
			if err != nil {
				return err
			}
			path, err := sessionPath(env.config)
			if err != nil {
				return err
			}
			saved, err := loadSession(path)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			// REST only; statistics do not need the socket.
			api, err := messaging.NewClient(messaging.ClientConfig{
				APIURL: env.config.APIURL,
				Logger: env.logger,
			})
			if err != nil {
				return err
			}
			session, err := api.SessionFromToken(saved.Username, saved.Token)
			if err != nil {
				return err
			}
			statistics, err := session.GetStatistics(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("users: %d\nposts: %d\nchats: %d\n", statistics.Users, statistics.Posts, statistics.Chats)
			return nil
		},
	}
}

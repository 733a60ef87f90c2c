// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/meower/cmd/meower/cli"
	"github.com/bureau-foundation/meower/messaging"
)

func chatsCommand() *cli.Command {
	var flags commonFlags
	return &cli.Command{
		Name:    "chats",
		Summary: "List the chats you belong to",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("chats", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			env, err := flags.load()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			connected, err := env.resume(ctx)
			if err != nil {
				return err
			}
			defer connected.Close()

			chats, err := connected.Session().GetChats(ctx)
			if err != nil {
				return err
			}
			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "ID\tNAME\tOWNER\tMEMBERS\tLAST ACTIVE")
			seen := make(map[string]bool, len(chats))
			for _, chat := range chats {
				// The session appends the home and livechat sentinels,
				// and livechat can appear twice.
				if seen[chat.ID] {
					continue
				}
				seen[chat.ID] = true
				fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\n",
					chat.ID, chatName(chat), chat.Owner, len(chat.Members), formatUnix(chat.LastActive))
			}
			return writer.Flush()
		},
	}
}

// chatName is the nickname, or the member list for a direct chat.
func chatName(chat *messaging.Chat) string {
	if chat.Nickname != "" {
		return chat.Nickname
	}
	return strings.Join(chat.Members, ", ")
}

func formatUnix(seconds int64) string {
	if seconds == 0 {
		return "-"
	}
	return time.Unix(seconds, 0).Local().Format(time.DateTime)
}

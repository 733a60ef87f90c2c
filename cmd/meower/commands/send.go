// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/meower/cmd/meower/cli"
	"github.com/bureau-foundation/meower/messaging"
)

func sendCommand() *cli.Command {
	var (
		flags       commonFlags
		replyTo     []string
		attachments []string
	)
	return &cli.Command{
		Name:    "send",
		Summary: "Post a message to a chat",
		Usage:   "meower send <chat> <message...> [flags]",
		Examples: []cli.Example{
			{Description: "Post to home", Command: "meower send home hello everyone"},
			{Description: "Reply to a post", Command: "meower send home 'me too' --reply-to 3f1c..."},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringSliceVar(&replyTo, "reply-to", nil, "post id to reply to (repeatable)")
			flagSet.StringSliceVar(&attachments, "attachment", nil, "uploaded attachment id (repeatable, see 'meower upload')")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: meower send <chat> <message...>")
			}
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

			chat, err := connected.Session().GetChat(ctx, args[0])
			if err != nil {
				return err
			}
			post, err := chat.SendMessage(ctx, messaging.MessageOptions{
				Content:     strings.Join(args[1:], " "),
				ReplyTo:     replyTo,
				Attachments: attachments,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, newRenderer().post(post))
			return nil
		},
	}
}

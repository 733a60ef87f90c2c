// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/meower/capture"
	"github.com/bureau-foundation/meower/cmd/meower/cli"
	"github.com/bureau-foundation/meower/socket"
	"github.com/bureau-foundation/meower/transport"
)

func replayCommand() *cli.Command {
	var (
		flags  commonFlags
		chatID string
	)
	return &cli.Command{
		Name:    "replay",
		Summary: "Play back a capture recorded with 'tail --record'",
		Description: `Play back a capture recorded with 'meower tail --record'.

The inbound frames are dispatched through a socket client exactly as
they were live, so the output matches what tail printed. No network
connection is made.`,
		Usage: "meower replay <capture> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("replay", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&chatID, "chat", "", "only show events for this chat id")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: meower replay <capture>")
			}
			env, err := flags.load()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			count, err := replayFile(ctx, args[0], os.Stdout, chatID, env.logger)
			if err != nil {
				return err
			}
			env.logger.Info("replay finished", "path", args[0], "frames", count)
			return nil
		},
	}
}

// replayFile dispatches the inbound frames of the capture at path
// through an offline socket client, printing events to out. It returns
// the number of frames replayed.
func replayFile(ctx context.Context, path string, out io.Writer, chatID string, logger *slog.Logger) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	reader, err := capture.NewReader(file)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	clientEnd, serverEnd := transport.Pipe()
	sock, err := socket.New(socket.Config{
		SocketURL: "replay://" + path,
		Token:     "replay",
		Dialer: transport.DialerFunc(func(context.Context, string) (transport.Conn, error) {
			return clientEnd, nil
		}),
		Logger: logger,
	})
	if err != nil {
		return 0, err
	}
	closed := watch(sock, out, chatID)
	if err := sock.Connect(ctx); err != nil {
		return 0, err
	}
	defer sock.Disconnect()

	count, replayErr := capture.Replay(ctx, reader, serverEnd)
	serverEnd.Close()
	if replayErr != nil {
		return count, replayErr
	}

	// The close is seen after the read loop has dispatched every frame.
	select {
	case <-closed:
		return count, nil
	case <-ctx.Done():
		return count, ctx.Err()
	}
}

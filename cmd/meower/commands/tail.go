// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/meower/capture"
	"github.com/bureau-foundation/meower/client"
	"github.com/bureau-foundation/meower/cmd/meower/cli"
)

func tailCommand() *cli.Command {
	var (
		flags         commonFlags
		chatID        string
		recordPath    string
		metricsListen string
	)
	return &cli.Command{
		Name:    "tail",
		Summary: "Stream live posts and events",
		Description: `Stream live posts and events from the socket until interrupted.

With --record, every frame in both directions is written to a capture
file that 'meower replay' can play back.`,
		Examples: []cli.Example{
			{Description: "Follow home", Command: "meower tail --chat home"},
			{Description: "Record a session", Command: "meower tail --record session.mcap"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&chatID, "chat", "", "only show events for this chat id")
			flagSet.StringVar(&recordPath, "record", "", "write a capture of every frame to this file")
			flagSet.StringVar(&metricsListen, "metrics-listen", "", "serve socket metrics at http://ADDR/metrics")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			env, err := flags.load()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			var recorder *capture.Writer
			if recordPath != "" {
				file, err := os.OpenFile(recordPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return err
				}
				defer file.Close()
				recorder, err = capture.NewWriter(file, nil)
				if err != nil {
					return err
				}
				defer func() {
					if err := recorder.Close(); err != nil {
						env.logger.Error("finishing capture", "path", recordPath, "error", err)
						return
					}
					env.logger.Info("capture written", "path", recordPath, "frames", recorder.Count())
				}()
			}

			var registry *prometheus.Registry
			if metricsListen != "" {
				registry = prometheus.NewRegistry()
				address, stop, err := serveMetrics(metricsListen, registry)
				if err != nil {
					return err
				}
				defer stop()
				env.logger.Info("serving metrics", "address", address.String())
			}

			connected, err := env.resume(ctx, func(options *client.Options) {
				if recorder != nil {
					options.Recorder = recorder
				}
				if registry != nil {
					options.Registerer = registry
				}
			})
			if err != nil {
				return err
			}
			defer connected.Close()

			// Frames dispatched before watch registers are not printed;
			// the capture still has them.
			closed := watch(connected.Socket(), os.Stdout, chatID)
			env.logger.Info("tailing", "username", connected.Session().Username(), "chat", chatID)

			select {
			case <-ctx.Done():
				return nil
			case err := <-closed:
				if err != nil {
					env.logger.Error("socket connection lost", "error", err)
					return &cli.ExitError{Code: 2}
				}
				env.logger.Info("server closed the connection")
				return nil
			}
		},
	}
}

// serveMetrics serves registry on address until stop is called. It
// returns the bound address.
func serveMetrics(address string, registry *prometheus.Registry) (net.Addr, func(), error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	return listener.Addr(), func() { server.Close() }, nil
}

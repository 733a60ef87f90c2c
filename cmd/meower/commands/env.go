// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/meower/client"
	"github.com/bureau-foundation/meower/cmd/meower/cli"
	"github.com/bureau-foundation/meower/lib/config"
	"github.com/bureau-foundation/meower/lib/version"
	"github.com/bureau-foundation/meower/transport"
)

// commonFlags are accepted by every command that talks to a server.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "config file (default $"+config.EnvVar+")")
	flagSet.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// env is the loaded configuration and logger for one command run.
type env struct {
	config *config.Config
	logger *slog.Logger
}

func (c *commonFlags) load() (*env, error) {
	loaded, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		loaded.LogLevel = c.logLevel
	}
	level, err := loaded.Level()
	if err != nil {
		return nil, err
	}
	return &env{config: loaded, logger: cli.NewCommandLogger(level)}, nil
}

// options maps the configuration onto client options.
func (e *env) options() client.Options {
	return client.Options{
		Username:   e.config.Username,
		APIURL:     e.config.APIURL,
		SocketURL:  e.config.SocketURL,
		UploadsURL: e.config.UploadsURL,
		Dialer: &transport.WebSocketDialer{
			Header: http.Header{"User-Agent": []string{version.UserAgent()}},
			Logger: e.logger,
		},
		Logger: e.logger,
	}
}

// resume connects with the saved session and saves the token the
// server issued for the new connection. configure adjusts the client
// options before connecting.
func (e *env) resume(ctx context.Context, configure ...func(*client.Options)) (*client.Client, error) {
	path, err := sessionPath(e.config)
	if err != nil {
		return nil, err
	}
	saved, err := loadSession(path)
	if err != nil {
		return nil, err
	}
	options := e.options()
	options.Username = saved.Username
	for _, apply := range configure {
		apply(&options)
	}
	connected, err := client.Resume(ctx, options, saved.Token)
	if err != nil {
		return nil, fmt.Errorf("resuming saved session (run 'meower login' if it expired): %w", err)
	}
	session := connected.Session()
	if err := saveSession(path, session.Username(), session.Token()); err != nil {
		e.logger.Warn("saving refreshed session token", "path", path, "error", err)
	}
	return connected, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

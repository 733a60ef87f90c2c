// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/meower/client"
	"github.com/bureau-foundation/meower/cmd/meower/cli"
	"github.com/bureau-foundation/meower/lib/secret"
)

type credentialFlags struct {
	commonFlags
	passwordFile string
}

func (c *credentialFlags) register(flagSet *pflag.FlagSet) {
	c.commonFlags.register(flagSet)
	flagSet.StringVar(&c.passwordFile, "password-file", "", `read the password from a file ("-" for stdin)`)
}

func loginCommand() *cli.Command {
	var flags credentialFlags
	return &cli.Command{
		Name:    "login",
		Summary: "Log in and save the session token",
		Usage:   "meower login [username] [flags]",
		Examples: []cli.Example{
			{Description: "Prompt for the password", Command: "meower login Tester"},
			{Description: "Read the password from a file", Command: "meower login Tester --password-file ~/.meower-password"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			return authenticate(&flags, args, func(options client.Options) (*client.Client, error) {
				ctx, cancel := signalContext()
				defer cancel()
				return client.Login(ctx, options)
			})
		},
	}
}

func signupCommand() *cli.Command {
	var (
		flags   credentialFlags
		captcha string
	)
	return &cli.Command{
		Name:    "signup",
		Summary: "Create an account and save the session token",
		Usage:   "meower signup <username> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("signup", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&captcha, "captcha", "", "captcha response token")
			return flagSet
		},
		Run: func(args []string) error {
			return authenticate(&flags, args, func(options client.Options) (*client.Client, error) {
				options.Captcha = captcha
				ctx, cancel := signalContext()
				defer cancel()
				return client.Signup(ctx, options)
			})
		},
	}
}

func logoutCommand() *cli.Command {
	var flags commonFlags
	return &cli.Command{
		Name:    "logout",
		Summary: "Remove the saved session token",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("logout", pflag.ContinueOnError)
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
			return removeSession(path)
		},
	}
}

// authenticate resolves the username and password, runs connect, and
// saves the resulting session.
func authenticate(flags *credentialFlags, args []string, connect func(client.Options) (*client.Client, error)) error {
	if len(args) > 1 {
		return fmt.Errorf("unexpected argument: %s", args[1])
	}
	env, err := flags.load()
	if err != nil {
		return err
	}
	options := env.options()
	if len(args) == 1 {
		options.Username = args[0]
	}
	if options.Username == "" {
		return fmt.Errorf("username is required (argument or username in the config file)")
	}

	passwordFile := flags.passwordFile
	if passwordFile == "" {
		passwordFile = env.config.PasswordFile
	}
	password, err := readPassword(passwordFile)
	if err != nil {
		return err
	}
	defer password.Close()
	options.Password = password

	connected, err := connect(options)
	if err != nil {
		return err
	}
	defer connected.Close()

	session := connected.Session()
	path, err := sessionPath(env.config)
	if err != nil {
		return err
	}
	if err := saveSession(path, session.Username(), session.Token()); err != nil {
		return err
	}
	env.logger.Info("logged in", "username", session.Username(), "session", path)
	return nil
}

func readPassword(passwordFile string) (*secret.Buffer, error) {
	if passwordFile != "" {
		return secret.ReadFromPath(passwordFile)
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, fmt.Errorf("no terminal available for interactive password prompt (use --password-file)")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	buffer, err := secret.FromBytes(passwordBytes)
	if err != nil {
		secret.Zero(passwordBytes)
		return nil, err
	}
	return buffer, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/meower/cmd/meower/cli"
	"github.com/bureau-foundation/meower/uploads"
)

func uploadCommand() *cli.Command {
	var (
		flags    commonFlags
		category string
	)
	return &cli.Command{
		Name:    "upload",
		Summary: "Upload a file and print its attachment id",
		Usage:   "meower upload <file> [flags]",
		Examples: []cli.Example{
			{Description: "Upload an image, then attach it", Command: "meower send home 'look' --attachment $(meower upload cat.png)"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("upload", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&category, "category", string(uploads.CategoryAttachments),
				"upload category: attachments, icons, emojis, stickers")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: meower upload <file>")
			}
			parsed, err := uploads.ParseCategory(category)
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

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

			uploader := connected.Uploads()
			attachment, err := uploader.Upload(ctx, filepath.Base(args[0]), file, parsed)
			if err != nil {
				return err
			}
			env.logger.Info("uploaded", "id", attachment.ID, "url", uploader.FileURL(attachment, parsed))
			fmt.Println(attachment.ID)
			return nil
		},
	}
}

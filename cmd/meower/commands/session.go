// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/meower/lib/config"
)

// savedSession is the on-disk session file. It holds a live token and
// is written mode 0600.
type savedSession struct {
	Username string    `json:"username"`
	Token    string    `json:"token"`
	SavedAt  time.Time `json:"saved_at"`
}

// sessionPath is the configured session file, or
// $XDG_CONFIG_HOME/meower/session.json.
func sessionPath(cfg *config.Config) (string, error) {
	if cfg.SessionFile != "" {
		return cfg.SessionFile, nil
	}
	directory, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating session file: %w", err)
	}
	return filepath.Join(directory, "meower", "session.json"), nil
}

func saveSession(path, username, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	data, err := json.MarshalIndent(savedSession{
		Username: username,
		Token:    token,
		SavedAt:  time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	temporary := path + ".tmp"
	if err := os.WriteFile(temporary, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(temporary, path); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

func loadSession(path string) (*savedSession, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("not logged in (no session at %s); run 'meower login'", path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("parsing session file %s: %w", path, err)
	}
	if saved.Token == "" {
		return nil, fmt.Errorf("session file %s has no token; run 'meower login'", path)
	}
	return &saved, nil
}

func removeSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

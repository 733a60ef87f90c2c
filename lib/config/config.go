// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the meower client configuration.
//
// Configuration comes from exactly one file, named by the --config flag
// or the MEOWER_CONFIG environment variable. There is no search path.
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas allowed; anything else is read as YAML. Missing
// fields take the public Meower endpoints as defaults.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "MEOWER_CONFIG"

// Default endpoints of the public Meower deployment.
const (
	DefaultAPIURL     = "https://api.meower.org"
	DefaultSocketURL  = "wss://server.meower.org"
	DefaultUploadsURL = "https://uploads.meower.org"
)

// Config is the client configuration file.
type Config struct {
	// APIURL is the REST base URL, without a trailing slash.
	APIURL string `yaml:"api_url" json:"api_url"`

	// SocketURL is the socket base URL. The client appends the
	// protocol version and token query.
	SocketURL string `yaml:"socket_url" json:"socket_url"`

	// UploadsURL is the upload server base URL.
	UploadsURL string `yaml:"uploads_url" json:"uploads_url"`

	// Username is the default account for login.
	Username string `yaml:"username" json:"username"`

	// PasswordFile, when set, is read instead of prompting.
	PasswordFile string `yaml:"password_file" json:"password_file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// SessionFile overrides where the CLI persists its token.
	SessionFile string `yaml:"session_file" json:"session_file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		APIURL:     DefaultAPIURL,
		SocketURL:  DefaultSocketURL,
		UploadsURL: DefaultUploadsURL,
		LogLevel:   "info",
	}
}

// Load reads path, or the file named by MEOWER_CONFIG when path is
// empty. With neither set it returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := Parse(data, filepath.Ext(path), config); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes data into config according to the file extension.
// Fields absent from data keep whatever config already holds.
func Parse(data []byte, extension string, config *Config) error {
	switch strings.ToLower(extension) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), config); err != nil {
			return fmt.Errorf("parsing JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("parsing YAML: %w", err)
		}
	}
	config.APIURL = strings.TrimRight(config.APIURL, "/")
	config.SocketURL = strings.TrimRight(config.SocketURL, "/")
	config.UploadsURL = strings.TrimRight(config.UploadsURL, "/")
	return config.Validate()
}

// Validate checks that every endpoint is set and the log level parses.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.SocketURL == "" {
		return fmt.Errorf("socket_url is required")
	}
	if c.UploadsURL == "" {
		return fmt.Errorf("uploads_url is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level converts LogLevel to a slog level. Empty means info.
func (c *Config) Level() (slog.Level, error) {
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of the meower binary.
//
// Values are stamped at link time:
//
//	go build -ldflags "-X github.com/bureau-foundation/meower/lib/version.Commit=$(git rev-parse --short HEAD)" ./cmd/meower
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release version.
	Version = "0.1.0-dev"

	// Commit is the short git SHA of the build.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Info returns the one-line version string.
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, BuildTime)
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s", Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on every HTTP request and the socket handshake.
func UserAgent() string {
	return "meower-go/" + Version
}

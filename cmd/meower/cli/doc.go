// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the meower binary:
// a tree of [Command] values with pflag flag sets, generated help,
// typo suggestions for unknown commands and flags, and the shared
// logger and exit-code conventions.
package cli

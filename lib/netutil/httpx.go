// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small I/O helpers shared by the REST, upload and
// socket layers.
//
// ReadResponse and ErrorBody bound every HTTP body read at
// MaxResponseSize so a misbehaving server cannot exhaust memory.
// IsExpectedCloseError separates ordinary connection teardown from
// failures worth logging.
package netutil

import (
	"io"
)

// MaxResponseSize bounds JSON response bodies: 32 MB. The largest
// Meower responses are paginated post lists, far below this.
const MaxResponseSize int64 = 32 << 20

// ReadResponse reads an HTTP response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody reads a response body for use in an error message. Read
// errors are ignored; a partial body is still useful diagnostics.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}

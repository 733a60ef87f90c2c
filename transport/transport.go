// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "context"

// Conn is a bidirectional, message-framed connection.
type Conn interface {
	// ReadMessage blocks until the next frame arrives, the connection
	// closes, or ctx is cancelled. Cancelling ctx may close the
	// connection; callers cancel only when tearing it down.
	ReadMessage(ctx context.Context) ([]byte, error)

	// WriteMessage sends one frame. Safe for concurrent use; frames
	// are never interleaved.
	WriteMessage(ctx context.Context, data []byte) error

	// Close closes the connection. Blocked and later reads and writes
	// fail. Idempotent.
	Close() error
}

// Dialer opens connections to a server URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f(ctx, url).
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

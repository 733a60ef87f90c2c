// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"errors"
	"fmt"
)

// ErrNotOpen is returned by Send and Request when the socket has no
// open connection. Nothing is queued.
var ErrNotOpen = errors.New("socket: not open")

// ConnectionError reports a transport failure: a dial that did not
// complete, a write on a broken connection, or a connection that closed
// before an expected event.
type ConnectionError struct {
	// URL is the socket URL without its query string.
	URL string

	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("socket: connection to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

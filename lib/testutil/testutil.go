// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds channel helpers for tests that wait on
// goroutines: the socket read loop, the heartbeat, the facade's auth
// wait. Each helper has a bounded wait so a broken test fails instead
// of hanging the suite.
package testutil

import (
	"fmt"
	"time"
)

// Timeout bounds every wait in this package.
const Timeout = 5 * time.Second

// TB is the subset of testing.TB the helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Receive returns the next value from ch, failing the test if none
// arrives within Timeout or ch is closed.
//
//	post := testutil.Receive(t, posts, "post event")
func Receive[T any](t TB, ch <-chan T, format string, args ...any) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for %s", fmt.Sprintf(format, args...))
		}
		return value
	case <-time.After(Timeout):
		t.Fatalf("timed out after %v waiting for %s", Timeout, fmt.Sprintf(format, args...))
	}
	panic("unreachable")
}

// NoReceive fails the test if ch yields a value within wait. Use a
// short wait; the helper always blocks for the whole duration.
func NoReceive[T any](t TB, ch <-chan T, wait time.Duration, format string, args ...any) {
	t.Helper()
	select {
	case value, ok := <-ch:
		if ok {
			t.Fatalf("unexpected %s: %v", fmt.Sprintf(format, args...), value)
		}
	case <-time.After(wait):
	}
}

// Closed waits for ch to be closed or to deliver, failing after Timeout.
func Closed(t TB, ch <-chan struct{}, format string, args ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(Timeout):
		t.Fatalf("timed out after %v waiting for %s", Timeout, fmt.Sprintf(format, args...))
	}
}

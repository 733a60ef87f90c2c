// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time-driven code be tested without sleeping.
//
// Components that schedule periodic work (the socket heartbeat is the
// main one) take a Clock instead of reaching for the time package.
// Production wiring passes Real(). Tests pass Fake(start) and move time
// forward explicitly:
//
//	fake := clock.Fake(time.Unix(0, 0))
//	client, _ := socket.New(socket.Config{Clock: fake, ...})
//	// ... connect ...
//	fake.WaitForTimers(1)         // heartbeat ticker registered
//	fake.Advance(30 * time.Second) // exactly one ping is sent
//
// WaitForTimers closes the race between a goroutine registering its
// ticker and the test advancing past the deadline.
package clock

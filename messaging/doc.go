// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is a client for the Meower REST API.
//
// A [Client] holds the API base URL and HTTP transport and performs the
// unauthenticated calls ([Client.Login], [Client.Signup]). Both return a
// [Session], which carries the account token and three identity caches
// (chats, posts, users). Get-by-id accessors consult the cache first and
// only go to the network on a miss.
//
// Server records are wrapped in [Chat], [Post] and [User]. A wrapper is
// built only from a record that passes the shape check for its type;
// anything else fails with a [*ShapeError] carrying the raw body.
// Wrappers are values: a mutating call such as [Post.Pin] returns a new
// wrapper built from the server's response and leaves the receiver as it
// was, so a failed call never leaves a half-updated object behind.
//
// Two chats exist in every session without asking the server: "home",
// the public global chat, and "livechat". Their records are synthesized
// locally and pre-seeded into the chat cache, so [Session.GetChat] on
// either id never performs I/O. Chat-scoped endpoints route "home" to
// its own top-level paths (/home, /home/typing).
//
// Server-side failures surface as [*APIError]: any response whose JSON
// body has a truthy "error" field, or any non-2xx status. Use
// [IsAPIError] to test for a specific error type:
//
//	if messaging.IsAPIError(err, messaging.ErrTypeNotFound) { ... }
package messaging

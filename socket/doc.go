// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package socket is the Meower real-time client. One [Client] owns one
// transport connection at a time, authenticates by carrying the token in
// the connection URL, keeps the connection alive with a 30 second ping,
// and turns inbound frames into typed events.
//
// Every inbound frame is handled on the connection's read goroutine, in
// order, one frame at a time:
//
//  1. Frames that are not a JSON object with a non-empty "cmd" are
//     dropped.
//  2. Handlers registered with [Client.OnPacket] see the packet.
//  3. A fixed table maps known commands (post, update_post,
//     delete_post, typing, ulist, auth, create_chat, delete_chat,
//     post_reaction_add, post_reaction_remove) to typed events.
//     Unknown commands stop after step 2.
//  4. A packet carrying a listener id completes the matching
//     [Client.Request], if one is waiting.
//
// Handlers run synchronously on the read goroutine. A handler that does
// network I/O, or that calls [Client.Disconnect] or [Client.Reconnect],
// must do so on a goroutine of its own.
//
// The server pushes an "auth" packet after connecting. The client
// stores the token it carries; later reconnects and entity wrappers use
// it.
package socket

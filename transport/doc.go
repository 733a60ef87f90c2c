// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries whole JSON frames between the socket client
// and a Meower server.
//
// [Conn] is a message-oriented connection: every ReadMessage returns
// exactly one frame the peer wrote with one WriteMessage. [Dialer]
// opens a Conn to a URL. The socket package depends only on these
// interfaces, so the same read loop runs against a real server and
// against tests.
//
// [WebSocketDialer] is the production implementation on
// gorilla/websocket. [Pipe] returns two connected in-memory Conns and
// [MemoryDialer] hands the server end of each dialed pipe to the test,
// which then plays the server's side of the protocol.
package transport

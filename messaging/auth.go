// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

// Auth is the credential a wrapper uses for its mutating calls: the
// client to send through, the token to send, and the acting username.
// It carries no cache; wrappers never write back into a Session.
type Auth struct {
	client   *Client
	token    string
	username string
}

// Token returns the token requests are sent with.
func (a Auth) Token() string { return a.token }

// Username returns the acting account's username.
func (a Auth) Username() string { return a.username }

// Client returns the client requests are sent through.
func (a Auth) Client() *Client { return a.client }

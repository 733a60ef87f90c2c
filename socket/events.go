// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import "encoding/json"

// PostDeletion is the payload of delete_post.
type PostDeletion struct {
	PostID string `json:"post_id"`
	ChatID string `json:"chat_id"`
}

// Typing is the payload of typing.
type Typing struct {
	ChatID   string `json:"chat_id"`
	Username string `json:"username"`
}

// ChatDeletion is the payload of delete_chat.
type ChatDeletion struct {
	ChatID string `json:"chat_id"`
}

// ReactionEvent is the payload of post_reaction_add and
// post_reaction_remove.
type ReactionEvent struct {
	ChatID   string `json:"chat_id"`
	PostID   string `json:"post_id"`
	Emoji    string `json:"emoji"`
	Username string `json:"username"`

	// Added is true for post_reaction_add.
	Added bool `json:"-"`
}

// AuthEvent is the payload of auth, pushed once per connection.
type AuthEvent struct {
	// Token supersedes whatever token the connection was opened with.
	Token string

	// Username is the canonical (display-cased) account name.
	Username string

	// Account is the account's user record.
	Account json.RawMessage

	Relationships []json.RawMessage

	// Chats holds the record of every chat the account belongs to.
	Chats []json.RawMessage

	// Raw is the whole val of the packet.
	Raw json.RawMessage
}

type wireAuth struct {
	Token         *string           `json:"token"`
	Username      string            `json:"username"`
	Account       json.RawMessage   `json:"account"`
	Relationships []json.RawMessage `json:"relationships"`
	Chats         []json.RawMessage `json:"chats"`
}

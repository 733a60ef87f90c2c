// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

// Attachment describes an uploaded file attached to a post.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
	Size     int64  `json:"size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Emote is a custom emoji or sticker. ChatID is the chat that owns it.
type Emote struct {
	ID       string `json:"_id"`
	ChatID   string `json:"chat_id,omitempty"`
	Name     string `json:"name"`
	Animated bool   `json:"animated"`
}

// Reaction is one emoji's tally on a post.
type Reaction struct {
	Emoji       string `json:"emoji"`
	Count       int    `json:"count"`
	UserReacted bool   `json:"user_reacted"`
}

// Statistics is the body of /statistics.
type Statistics struct {
	Users int64 `json:"users"`
	Posts int64 `json:"posts"`
	Chats int64 `json:"chats"`
}

// MessageOptions is the body of a new post or reply. Attachments and
// Stickers hold upload ids.
type MessageOptions struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`
	Stickers    []string `json:"stickers,omitempty"`
	ReplyTo     []string `json:"reply_to,omitempty"`
	Nonce       string   `json:"nonce,omitempty"`
}

// ReportOptions is the body of a post or user report.
type ReportOptions struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
}

// EditOptions changes a post's content. Nil fields keep the post's
// current value.
type EditOptions struct {
	Content     *string
	Attachments []string
	Nonce       string
}

// ChatUpdate changes chat settings. Nil fields keep the chat's current
// value.
type ChatUpdate struct {
	Nickname     *string
	Icon         *string
	IconColor    *string
	AllowPinning *bool
}

// CreateChatRequest is the body of POST /chats.
type CreateChatRequest struct {
	Nickname     string `json:"nickname"`
	Icon         string `json:"icon,omitempty"`
	IconColor    string `json:"icon_color,omitempty"`
	AllowPinning bool   `json:"allow_pinning"`
}

// RelationshipState is the caller's relationship with another user.
type RelationshipState int

const (
	RelationshipNone    RelationshipState = 0
	RelationshipBlocked RelationshipState = 2
)

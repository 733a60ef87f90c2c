// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ChatType distinguishes group chats from direct messages.
type ChatType int

const (
	ChatTypeChat ChatType = 0
	ChatTypeDM   ChatType = 1
)

// Ids of the chats every session has without asking the server.
const (
	HomeChatID     = "home"
	LivechatChatID = "livechat"
)

// Chat is a snapshot of a chat.
type Chat struct {
	ID           string
	Type         ChatType
	Nickname     string
	Owner        string
	Icon         string
	IconColor    string
	AllowPinning bool
	Deleted      bool
	Members      []string
	// Created and LastActive are unix seconds.
	Created    int64
	LastActive int64
	Emojis     []Emote
	Stickers   []Emote

	auth Auth
	raw  json.RawMessage
}

type wireChat struct {
	ID           *string   `json:"_id"`
	Type         *int      `json:"type"`
	Nickname     *string   `json:"nickname"`
	Owner        *string   `json:"owner"`
	Icon         *string   `json:"icon"`
	IconColor    *string   `json:"icon_color"`
	AllowPinning *bool     `json:"allow_pinning"`
	Deleted      *bool     `json:"deleted"`
	Members      *[]string `json:"members"`
	Created      *int64    `json:"created"`
	LastActive   *int64    `json:"last_active"`
	Emojis       []Emote   `json:"emojis"`
	Stickers     []Emote   `json:"stickers"`
}

// NewChat validates raw and wraps it. Direct-message records omit
// nickname and owner; group chats must carry both. icon and
// icon_color are optional.
func NewChat(auth Auth, raw []byte) (*Chat, error) {
	var wire wireChat
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, shapeError("chat", raw, err)
	}
	required := []struct {
		name    string
		present bool
	}{
		{"_id", wire.ID != nil},
		{"type", wire.Type != nil},
		{"allow_pinning", wire.AllowPinning != nil},
		{"deleted", wire.Deleted != nil},
		{"members", wire.Members != nil},
		{"created", wire.Created != nil},
		{"last_active", wire.LastActive != nil},
	}
	for _, field := range required {
		if !field.present {
			return nil, missingField("chat", field.name, raw)
		}
	}
	chatType := ChatType(*wire.Type)
	if chatType != ChatTypeDM {
		if wire.Nickname == nil {
			return nil, missingField("chat", "nickname", raw)
		}
		if wire.Owner == nil {
			return nil, missingField("chat", "owner", raw)
		}
	}

	return &Chat{
		ID:           *wire.ID,
		Type:         chatType,
		Nickname:     valueOrEmpty(wire.Nickname),
		Owner:        valueOrEmpty(wire.Owner),
		Icon:         valueOrEmpty(wire.Icon),
		IconColor:    valueOrEmpty(wire.IconColor),
		AllowPinning: *wire.AllowPinning,
		Deleted:      *wire.Deleted,
		Members:      nonNil(*wire.Members),
		Created:      *wire.Created,
		LastActive:   *wire.LastActive,
		Emojis:       nonNil(wire.Emojis),
		Stickers:     nonNil(wire.Stickers),
		auth:         auth,
		raw:          bytes.Clone(raw),
	}, nil
}

func valueOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// sentinelChat synthesizes the record for home or livechat.
func sentinelChat(id string) json.RawMessage {
	record, err := json.Marshal(map[string]any{
		"_id":           id,
		"allow_pinning": false,
		"created":       0,
		"deleted":       false,
		"icon":          "",
		"icon_color":    "",
		"last_active":   0,
		"members":       []string{},
		"nickname":      id,
		"owner":         "",
		"type":          int(ChatTypeChat),
		"emojis":        []Emote{},
		"stickers":      []Emote{},
	})
	if err != nil {
		panic("messaging: encoding sentinel chat: " + err.Error())
	}
	return record
}

// Raw returns a copy of the record the chat was built from.
func (c *Chat) Raw() json.RawMessage { return bytes.Clone(c.raw) }

// Auth returns the credential the chat's operations are sent with.
func (c *Chat) Auth() Auth { return c.auth }

// IsHome reports whether c is the global home chat.
func (c *Chat) IsHome() bool { return c.ID == HomeChatID }

func (c *Chat) path() string { return "/chats/" + url.PathEscape(c.ID) }

func (c *Chat) memberPath(username string) string {
	return c.path() + "/members/" + url.PathEscape(username)
}

// postsPath is where the chat's posts are listed and sent. Home has a
// top-level endpoint of its own.
func postsPath(chatID string) string {
	if chatID == HomeChatID {
		return "/home"
	}
	return "/posts/" + url.PathEscape(chatID)
}

func (c *Chat) refresh(body []byte) (*Chat, error) {
	return NewChat(c.auth, body)
}

// mutate sends one chat-returning request and wraps the response.
func (c *Chat) mutate(ctx context.Context, operation, method, path string, body any) (*Chat, error) {
	response, err := c.auth.client.doRequest(ctx, method, path, c.auth.token, body)
	if err != nil {
		return nil, fmt.Errorf("messaging: %s chat %s: %w", operation, c.ID, err)
	}
	updated, err := c.refresh(response)
	if err != nil {
		return nil, fmt.Errorf("messaging: %s chat %s: %w", operation, c.ID, err)
	}
	return updated, nil
}

// Leave leaves the chat, or closes it for a direct message.
func (c *Chat) Leave(ctx context.Context) error {
	if _, err := c.auth.client.doRequest(ctx, http.MethodDelete, c.path(), c.auth.token, nil); err != nil {
		return fmt.Errorf("messaging: leave chat %s: %w", c.ID, err)
	}
	return nil
}

// Update changes the chat's settings and returns the updated chat.
func (c *Chat) Update(ctx context.Context, update ChatUpdate) (*Chat, error) {
	request := struct {
		Nickname     string `json:"nickname"`
		Icon         string `json:"icon"`
		IconColor    string `json:"icon_color"`
		AllowPinning bool   `json:"allow_pinning"`
	}{c.Nickname, c.Icon, c.IconColor, c.AllowPinning}
	if update.Nickname != nil {
		request.Nickname = *update.Nickname
	}
	if update.Icon != nil {
		request.Icon = *update.Icon
	}
	if update.IconColor != nil {
		request.IconColor = *update.IconColor
	}
	if update.AllowPinning != nil {
		request.AllowPinning = *update.AllowPinning
	}
	return c.mutate(ctx, "update", http.MethodPatch, c.path(), request)
}

// AddMember adds username to the chat and returns the updated chat.
func (c *Chat) AddMember(ctx context.Context, username string) (*Chat, error) {
	return c.mutate(ctx, "add member to", http.MethodPut, c.memberPath(username), nil)
}

// RemoveMember removes username from the chat and returns the updated
// chat.
func (c *Chat) RemoveMember(ctx context.Context, username string) (*Chat, error) {
	return c.mutate(ctx, "remove member from", http.MethodDelete, c.memberPath(username), nil)
}

// TransferOwnership makes username the owner and returns the updated
// chat.
func (c *Chat) TransferOwnership(ctx context.Context, username string) (*Chat, error) {
	return c.mutate(ctx, "transfer ownership of", http.MethodPost, c.memberPath(username)+"/transfer", nil)
}

// SendTyping tells the chat's members the caller is typing.
func (c *Chat) SendTyping(ctx context.Context) error {
	path := c.path() + "/typing"
	if c.IsHome() {
		path = "/home/typing"
	}
	if _, err := c.auth.client.doRequest(ctx, http.MethodPost, path, c.auth.token, nil); err != nil {
		return fmt.Errorf("messaging: typing in chat %s: %w", c.ID, err)
	}
	return nil
}

// SendMessage posts a message to the chat.
func (c *Chat) SendMessage(ctx context.Context, options MessageOptions) (*Post, error) {
	post, err := sendMessage(ctx, c.auth, c.ID, options)
	if err != nil {
		return nil, fmt.Errorf("messaging: send to chat %s: %w", c.ID, err)
	}
	return post, nil
}

func sendMessage(ctx context.Context, auth Auth, chatID string, options MessageOptions) (*Post, error) {
	body, err := auth.client.doRequest(ctx, http.MethodPost, postsPath(chatID), auth.token, options)
	if err != nil {
		return nil, err
	}
	return NewPost(auth, body)
}

// GetMessages returns one page (1-based, newest first) of the chat's
// posts.
func (c *Chat) GetMessages(ctx context.Context, page int) ([]*Post, error) {
	path := postsPath(c.ID) + "?autoget=1&page=" + strconv.Itoa(pageOrFirst(page))
	posts, err := fetchPostList(ctx, c.auth, path)
	if err != nil {
		return nil, fmt.Errorf("messaging: messages of chat %s: %w", c.ID, err)
	}
	return posts, nil
}

// Search returns one page of posts matching query. The server only
// indexes home, so any other chat fails without a request.
func (c *Chat) Search(ctx context.Context, query string, page int) ([]*Post, error) {
	if !c.IsHome() {
		return nil, fmt.Errorf("messaging: search is only available in home, not chat %s", c.ID)
	}
	path := "/search/home/?autoget&q=" + url.QueryEscape(query) + "&page=" + strconv.Itoa(pageOrFirst(page))
	posts, err := fetchPostList(ctx, c.auth, path)
	if err != nil {
		return nil, fmt.Errorf("messaging: search home: %w", err)
	}
	return posts, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"encoding/json"
	"strings"

	"github.com/bureau-foundation/meower/messaging"
)

// commands maps each known command to its typed handler. Commands not
// listed reach OnPacket handlers only.
var commands = map[string]func(*Client, Packet){
	"post":                 (*Client).handlePost,
	"update_post":          (*Client).handlePostUpdate,
	"delete_post":          (*Client).handlePostDelete,
	"typing":               (*Client).handleTyping,
	"ulist":                (*Client).handleUserList,
	"auth":                 (*Client).handleAuth,
	"create_chat":          (*Client).handleChatCreate,
	"delete_chat":          (*Client).handleChatDelete,
	"post_reaction_add":    (*Client).handleReactionAdd,
	"post_reaction_remove": (*Client).handleReactionRemove,
}

// dispatch processes one inbound frame.
func (c *Client) dispatch(data []byte) {
	packet, ok := parsePacket(data)
	if !ok {
		c.drop("malformed frame", "", data)
		return
	}
	c.metrics.packets.WithLabelValues(packetLabel(packet.Cmd)).Inc()

	c.packetHandlers.emit(packet)
	if handle, known := commands[packet.Cmd]; known {
		handle(c, packet)
	}
	if packet.Listener != "" {
		c.fulfill(packet)
	}
}

// drop discards a frame or payload that cannot be used.
func (c *Client) drop(reason, cmd string, data []byte) {
	c.metrics.dropped.Inc()
	const limit = 200
	if len(data) > limit {
		data = data[:limit]
	}
	c.logger.Debug("socket dropped "+reason, "cmd", cmd, "frame", string(data))
}

func (c *Client) handlePost(packet Packet) {
	post, err := messaging.NewPost(c.auth(), packet.Val)
	if err != nil {
		c.drop("malformed post", packet.Cmd, packet.Val)
		return
	}
	c.postHandlers.emit(post)
}

func (c *Client) handlePostUpdate(packet Packet) {
	post, err := messaging.NewPost(c.auth(), packet.Val)
	if err != nil {
		c.drop("malformed post", packet.Cmd, packet.Val)
		return
	}
	c.postUpdateHandlers.emit(post)
}

func (c *Client) handlePostDelete(packet Packet) {
	var deletion PostDeletion
	if err := json.Unmarshal(packet.Val, &deletion); err != nil || deletion.PostID == "" {
		c.drop("malformed post deletion", packet.Cmd, packet.Val)
		return
	}
	c.postDeleteHandlers.emit(deletion)
}

func (c *Client) handleTyping(packet Packet) {
	var typing Typing
	if err := json.Unmarshal(packet.Val, &typing); err != nil || typing.ChatID == "" {
		c.drop("malformed typing", packet.Cmd, packet.Val)
		return
	}
	c.typingHandlers.emit(typing)
}

// handleUserList replaces the online-user list from a
// semicolon-delimited string such as "alice;bob;".
func (c *Client) handleUserList(packet Packet) {
	var list string
	if err := json.Unmarshal(packet.Val, &list); err != nil {
		c.drop("malformed ulist", packet.Cmd, packet.Val)
		return
	}
	users := []string{}
	for name := range strings.SplitSeq(list, ";") {
		if name != "" {
			users = append(users, name)
		}
	}

	c.mu.Lock()
	c.onlineUsers = users
	c.mu.Unlock()
	c.metrics.online.Set(float64(len(users)))

	c.userListHandlers.emit(append([]string(nil), users...))
}

// handleAuth stores the fresh token before any handler runs, so
// handlers and everything after them use it.
func (c *Client) handleAuth(packet Packet) {
	var wire wireAuth
	if err := json.Unmarshal(packet.Val, &wire); err != nil || wire.Token == nil || *wire.Token == "" {
		c.drop("malformed auth", packet.Cmd, nil)
		return
	}

	c.mu.Lock()
	c.token = *wire.Token
	if wire.Username != "" {
		c.username = wire.Username
	}
	c.mu.Unlock()
	c.logger.Info("socket authenticated", "username", wire.Username)

	event := AuthEvent{
		Token:         *wire.Token,
		Username:      wire.Username,
		Account:       wire.Account,
		Relationships: wire.Relationships,
		Chats:         wire.Chats,
		Raw:           packet.Val,
	}
	if event.Relationships == nil {
		event.Relationships = []json.RawMessage{}
	}
	if event.Chats == nil {
		event.Chats = []json.RawMessage{}
	}
	c.authHandlers.emit(event)
}

func (c *Client) handleChatCreate(packet Packet) {
	chat, err := messaging.NewChat(c.auth(), packet.Val)
	if err != nil {
		c.drop("malformed chat", packet.Cmd, packet.Val)
		return
	}
	c.chatCreateHandlers.emit(chat)
}

func (c *Client) handleChatDelete(packet Packet) {
	var deletion ChatDeletion
	if err := json.Unmarshal(packet.Val, &deletion); err != nil || deletion.ChatID == "" {
		c.drop("malformed chat deletion", packet.Cmd, packet.Val)
		return
	}
	c.chatDeleteHandlers.emit(deletion)
}

func (c *Client) handleReactionAdd(packet Packet)    { c.handleReaction(packet, true) }
func (c *Client) handleReactionRemove(packet Packet) { c.handleReaction(packet, false) }

func (c *Client) handleReaction(packet Packet, added bool) {
	var reaction ReactionEvent
	if err := json.Unmarshal(packet.Val, &reaction); err != nil || reaction.PostID == "" || reaction.Emoji == "" {
		c.drop("malformed reaction", packet.Cmd, packet.Val)
		return
	}
	reaction.Added = added
	c.reactionHandlers.emit(reaction)
}

// OnPacket registers a handler for every valid inbound packet, known
// command or not. The returned function unregisters it.
func (c *Client) OnPacket(handler func(Packet)) func() { return c.packetHandlers.add(handler) }

// OnPost registers a handler for new posts.
func (c *Client) OnPost(handler func(*messaging.Post)) func() { return c.postHandlers.add(handler) }

// OnPostUpdate registers a handler for edited posts.
func (c *Client) OnPostUpdate(handler func(*messaging.Post)) func() {
	return c.postUpdateHandlers.add(handler)
}

// OnPostDelete registers a handler for deleted posts.
func (c *Client) OnPostDelete(handler func(PostDeletion)) func() {
	return c.postDeleteHandlers.add(handler)
}

// OnTyping registers a handler for typing indicators.
func (c *Client) OnTyping(handler func(Typing)) func() { return c.typingHandlers.add(handler) }

// OnUserList registers a handler called with the online-user list each
// time a ulist packet replaces it.
func (c *Client) OnUserList(handler func([]string)) func() { return c.userListHandlers.add(handler) }

// OnAuth registers a handler for the auth packet. The stored token has
// already been replaced when it runs.
func (c *Client) OnAuth(handler func(AuthEvent)) func() { return c.authHandlers.add(handler) }

// OnChatCreate registers a handler for chats the account was added to.
func (c *Client) OnChatCreate(handler func(*messaging.Chat)) func() {
	return c.chatCreateHandlers.add(handler)
}

// OnChatDelete registers a handler for chats deleted or left.
func (c *Client) OnChatDelete(handler func(ChatDeletion)) func() {
	return c.chatDeleteHandlers.add(handler)
}

// OnReaction registers a handler for reactions added to or removed from
// posts.
func (c *Client) OnReaction(handler func(ReactionEvent)) func() {
	return c.reactionHandlers.add(handler)
}

// OnOpen registers a handler run each time a connection opens,
// including after Reconnect.
func (c *Client) OnOpen(handler func()) func() {
	return c.openHandlers.add(func(struct{}) { handler() })
}

// OnClose registers a handler run each time a connection closes. The
// error is nil for Disconnect, Reconnect, and a normal server close;
// otherwise it is a *ConnectionError.
func (c *Client) OnClose(handler func(error)) func() { return c.closeHandlers.add(handler) }

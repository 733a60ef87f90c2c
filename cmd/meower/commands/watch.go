// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/bureau-foundation/meower/messaging"
	"github.com/bureau-foundation/meower/socket"
)

// watch prints socket events to out, restricted to chatID when it is
// not empty. The returned channel receives the socket's close error
// (nil for a normal close) once.
func watch(sock *socket.Client, out io.Writer, chatID string) <-chan error {
	render := newRenderer()
	matches := func(id string) bool { return chatID == "" || id == chatID }
	emit := func(line string) { fmt.Fprintln(out, line) }

	sock.OnPost(func(post *messaging.Post) {
		if matches(post.ChatID) {
			emit(render.post(post))
		}
	})
	sock.OnPostUpdate(func(post *messaging.Post) {
		if matches(post.ChatID) {
			emit(render.post(post))
		}
	})
	sock.OnPostDelete(func(event socket.PostDeletion) {
		if matches(event.ChatID) {
			emit(render.notice("post %s deleted in %s", event.PostID, event.ChatID))
		}
	})
	sock.OnTyping(func(event socket.Typing) {
		if matches(event.ChatID) {
			emit(render.notice("%s is typing in %s", event.Username, event.ChatID))
		}
	})
	sock.OnReaction(func(event socket.ReactionEvent) {
		if !matches(event.ChatID) {
			return
		}
		action := "removed"
		if event.Added {
			action = "added"
		}
		emit(render.notice("%s %s %s on %s", event.Username, action, event.Emoji, event.PostID))
	})
	sock.OnChatCreate(func(chat *messaging.Chat) {
		if matches(chat.ID) {
			emit(render.notice("joined chat %s (%s)", chat.ID, chatName(chat)))
		}
	})
	sock.OnChatDelete(func(event socket.ChatDeletion) {
		if matches(event.ChatID) {
			emit(render.notice("left chat %s", event.ChatID))
		}
	})
	if chatID == "" {
		sock.OnUserList(func(users []string) {
			emit(render.notice("%d online: %s", len(users), strings.Join(users, ", ")))
		})
	}

	closed := make(chan error, 1)
	sock.OnClose(func(err error) {
		select {
		case closed <- err:
		default:
		}
	})
	return closed
}

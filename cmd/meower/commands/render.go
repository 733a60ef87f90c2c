// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/meower/messaging"
)

// renderer formats posts and socket events as single terminal lines.
// lipgloss drops the colors when stdout is not a terminal.
type renderer struct {
	timestamp lipgloss.Style
	chat      lipgloss.Style
	username  lipgloss.Style
	meta      lipgloss.Style
	event     lipgloss.Style
}

func newRenderer() *renderer {
	return &renderer{
		timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		chat:      lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		username:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		meta:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
		event:     lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	}
}

func (r *renderer) post(post *messaging.Post) string {
	var builder strings.Builder
	builder.WriteString(r.timestamp.Render(post.Time().Local().Format(time.TimeOnly)))
	builder.WriteByte(' ')
	builder.WriteString(r.chat.Render(post.ChatID))
	builder.WriteByte(' ')
	builder.WriteString(r.username.Render("<" + post.Username + ">"))
	builder.WriteByte(' ')
	builder.WriteString(post.Content)

	var details []string
	if len(post.ReplyTo) > 0 && post.ReplyTo[0] != nil {
		details = append(details, "reply to "+post.ReplyTo[0].Username)
	}
	if count := len(post.Attachments); count > 0 {
		details = append(details, plural(count, "attachment"))
	}
	if count := len(post.Stickers); count > 0 {
		details = append(details, plural(count, "sticker"))
	}
	if post.LastEdited != nil {
		details = append(details, "edited")
	}
	if len(details) > 0 {
		builder.WriteByte(' ')
		builder.WriteString(r.meta.Render("(" + strings.Join(details, ", ") + ")"))
	}
	builder.WriteString(" ")
	builder.WriteString(r.meta.Render(post.ID))
	return builder.String()
}

// notice formats a non-post event.
func (r *renderer) notice(format string, args ...any) string {
	return r.event.Render("* " + fmt.Sprintf(format, args...))
}

func plural(count int, noun string) string {
	if count == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", count, noun)
}

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
	"time"
)

// PostType distinguishes chat posts from inbox notices.
type PostType int

const (
	PostTypeNormal PostType = 1
	PostTypeInbox  PostType = 2
)

// Post is a snapshot of one post. ID and PostID carry the same value;
// the server keys posts under both names.
type Post struct {
	ID       string
	PostID   string
	Pinned   bool
	Deleted  bool
	Content  string
	ChatID   string
	Username string
	Type     PostType
	// Timestamp is unix seconds.
	Timestamp int64
	// LastEdited is unix seconds, nil for posts never edited.
	LastEdited *int64
	Nonce      string

	// The slices below are never nil.
	Attachments []Attachment
	ReplyTo     []*Post
	Stickers    []Emote
	Emojis      []Emote
	Reactions   []Reaction

	auth Auth
	raw  json.RawMessage
}

type wirePost struct {
	ID        *string `json:"_id"`
	PostID    *string `json:"post_id"`
	Pinned    *bool   `json:"pinned"`
	Deleted   *bool   `json:"isDeleted"`
	Content   *string `json:"p"`
	Origin    *string `json:"post_origin"`
	Username  *string `json:"u"`
	Type      *int    `json:"type"`
	Timestamp *struct {
		Epoch *int64 `json:"e"`
	} `json:"t"`
	LastEdited  *int64            `json:"last_edited"`
	Nonce       string            `json:"nonce"`
	Attachments []Attachment      `json:"attachments"`
	ReplyTo     []json.RawMessage `json:"reply_to"`
	Stickers    []Emote           `json:"stickers"`
	Emojis      []Emote           `json:"emojis"`
	Reactions   []Reaction        `json:"reactions"`
}

// NewPost validates raw and wraps it. Replies embedded in reply_to are
// validated the same way; null entries (replies to deleted posts) are
// skipped.
func NewPost(auth Auth, raw []byte) (*Post, error) {
	var wire wirePost
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, shapeError("post", raw, err)
	}
	required := []struct {
		name    string
		present bool
	}{
		{"_id", wire.ID != nil},
		{"post_id", wire.PostID != nil},
		{"pinned", wire.Pinned != nil},
		{"isDeleted", wire.Deleted != nil},
		{"p", wire.Content != nil},
		{"post_origin", wire.Origin != nil},
		{"u", wire.Username != nil},
		{"type", wire.Type != nil},
		{"t", wire.Timestamp != nil},
		{"t.e", wire.Timestamp != nil && wire.Timestamp.Epoch != nil},
	}
	for _, field := range required {
		if !field.present {
			return nil, missingField("post", field.name, raw)
		}
	}

	replies := make([]*Post, 0, len(wire.ReplyTo))
	for _, record := range wire.ReplyTo {
		if len(record) == 0 || string(record) == "null" {
			continue
		}
		reply, err := NewPost(auth, record)
		if err != nil {
			return nil, err
		}
		replies = append(replies, reply)
	}

	return &Post{
		ID:          *wire.ID,
		PostID:      *wire.PostID,
		Pinned:      *wire.Pinned,
		Deleted:     *wire.Deleted,
		Content:     *wire.Content,
		ChatID:      *wire.Origin,
		Username:    *wire.Username,
		Type:        PostType(*wire.Type),
		Timestamp:   *wire.Timestamp.Epoch,
		LastEdited:  wire.LastEdited,
		Nonce:       wire.Nonce,
		Attachments: nonNil(wire.Attachments),
		ReplyTo:     replies,
		Stickers:    nonNil(wire.Stickers),
		Emojis:      nonNil(wire.Emojis),
		Reactions:   nonNil(wire.Reactions),
		auth:        auth,
		raw:         bytes.Clone(raw),
	}, nil
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

// Raw returns a copy of the record the post was built from.
func (p *Post) Raw() json.RawMessage { return bytes.Clone(p.raw) }

// Auth returns the credential the post's operations are sent with.
func (p *Post) Auth() Auth { return p.auth }

// Time returns Timestamp as a time.Time.
func (p *Post) Time() time.Time { return time.Unix(p.Timestamp, 0) }

func (p *Post) path() string { return "/posts/" + url.PathEscape(p.ID) }

// queryPath addresses the post by query parameter, as the edit and
// delete endpoints require.
func (p *Post) queryPath() string { return "/posts?id=" + url.QueryEscape(p.ID) }

// refresh builds the post that replaces p after a successful call.
func (p *Post) refresh(body []byte) (*Post, error) {
	return NewPost(p.auth, body)
}

// Delete deletes the post.
func (p *Post) Delete(ctx context.Context) error {
	if _, err := p.auth.client.doRequest(ctx, http.MethodDelete, p.queryPath(), p.auth.token, nil); err != nil {
		return fmt.Errorf("messaging: delete post %s: %w", p.ID, err)
	}
	return nil
}

// Pin pins the post in its chat and returns the updated post.
func (p *Post) Pin(ctx context.Context) (*Post, error) {
	body, err := p.auth.client.doRequest(ctx, http.MethodPost, p.path()+"/pin", p.auth.token, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: pin post %s: %w", p.ID, err)
	}
	updated, err := p.refresh(body)
	if err != nil {
		return nil, fmt.Errorf("messaging: pin post %s: %w", p.ID, err)
	}
	return updated, nil
}

// Unpin unpins the post and returns the updated post.
func (p *Post) Unpin(ctx context.Context) (*Post, error) {
	body, err := p.auth.client.doRequest(ctx, http.MethodDelete, p.path()+"/pin", p.auth.token, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: unpin post %s: %w", p.ID, err)
	}
	updated, err := p.refresh(body)
	if err != nil {
		return nil, fmt.Errorf("messaging: unpin post %s: %w", p.ID, err)
	}
	return updated, nil
}

// Report files a report against the post.
func (p *Post) Report(ctx context.Context, options ReportOptions) error {
	if _, err := p.auth.client.doRequest(ctx, http.MethodPost, p.path()+"/report", p.auth.token, options); err != nil {
		return fmt.Errorf("messaging: report post %s: %w", p.ID, err)
	}
	return nil
}

// Edit replaces the post's content and returns the updated post.
// Unset options keep the current content and attachments.
func (p *Post) Edit(ctx context.Context, options EditOptions) (*Post, error) {
	content := p.Content
	if options.Content != nil {
		content = *options.Content
	}
	attachments := options.Attachments
	if attachments == nil {
		attachments = make([]string, 0, len(p.Attachments))
		for _, attachment := range p.Attachments {
			attachments = append(attachments, attachment.ID)
		}
	}
	request := struct {
		Content     string   `json:"content"`
		Attachments []string `json:"attachments"`
		Nonce       string   `json:"nonce,omitempty"`
	}{content, attachments, options.Nonce}

	body, err := p.auth.client.doRequest(ctx, http.MethodPatch, p.queryPath(), p.auth.token, request)
	if err != nil {
		return nil, fmt.Errorf("messaging: edit post %s: %w", p.ID, err)
	}
	updated, err := p.refresh(body)
	if err != nil {
		return nil, fmt.Errorf("messaging: edit post %s: %w", p.ID, err)
	}
	return updated, nil
}

// Reply posts a reply to p in p's chat. The reply references p through
// reply_to; any ReplyTo ids already in options are kept after it.
func (p *Post) Reply(ctx context.Context, options MessageOptions) (*Post, error) {
	options.ReplyTo = append([]string{p.ID}, options.ReplyTo...)
	reply, err := sendMessage(ctx, p.auth, p.ChatID, options)
	if err != nil {
		return nil, fmt.Errorf("messaging: reply to post %s: %w", p.ID, err)
	}
	return reply, nil
}

func (p *Post) reactionPath(emoji string) string {
	return p.path() + "/reactions/" + url.PathEscape(emoji)
}

// React adds the caller's emoji reaction. The endpoint returns no post,
// so the returned post is p with the reaction applied locally: a known
// emoji has its count incremented, an unknown one is appended with a
// count of one.
func (p *Post) React(ctx context.Context, emoji string) (*Post, error) {
	if _, err := p.auth.client.doRequest(ctx, http.MethodPost, p.reactionPath(emoji), p.auth.token, nil); err != nil {
		return nil, fmt.Errorf("messaging: react to post %s: %w", p.ID, err)
	}

	reactions := append([]Reaction(nil), p.Reactions...)
	index := reactionIndex(reactions, emoji)
	if index < 0 {
		reactions = append(reactions, Reaction{Emoji: emoji, Count: 1, UserReacted: true})
	} else {
		reactions[index].Count++
		reactions[index].UserReacted = true
	}
	return p.withReactions(reactions), nil
}

// RemoveReaction removes the caller's emoji reaction. An emoji absent
// from the local list leaves the reactions unchanged.
func (p *Post) RemoveReaction(ctx context.Context, emoji string) (*Post, error) {
	if _, err := p.auth.client.doRequest(ctx, http.MethodDelete, p.reactionPath(emoji)+"/@me", p.auth.token, nil); err != nil {
		return nil, fmt.Errorf("messaging: remove reaction from post %s: %w", p.ID, err)
	}

	reactions := append([]Reaction(nil), p.Reactions...)
	if index := reactionIndex(reactions, emoji); index >= 0 {
		reactions[index].Count--
		reactions[index].UserReacted = false
	}
	return p.withReactions(reactions), nil
}

func reactionIndex(reactions []Reaction, emoji string) int {
	for i, reaction := range reactions {
		if reaction.Emoji == emoji {
			return i
		}
	}
	return -1
}

// withReactions copies p with a new reaction list, rewriting the
// reactions field of the raw record to match.
func (p *Post) withReactions(reactions []Reaction) *Post {
	updated := *p
	updated.Reactions = nonNil(reactions)

	var fields map[string]json.RawMessage
	if json.Unmarshal(p.raw, &fields) == nil {
		if encoded, err := json.Marshal(updated.Reactions); err == nil {
			fields["reactions"] = encoded
			if raw, err := json.Marshal(fields); err == nil {
				updated.raw = raw
			}
		}
	}
	return &updated
}

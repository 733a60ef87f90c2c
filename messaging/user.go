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

// User is a snapshot of a Meower account.
type User struct {
	// ID is the display-cased username; it is also the record key.
	ID          string
	Avatar      string
	AvatarColor string
	Banned      bool
	// Created and LastSeen are unix seconds.
	Created  int64
	LastSeen int64
	Flags    int64
	// Username is the lowercase canonical username.
	Username    string
	Level       int
	Permissions int64
	// PFPData is the index of the built-in profile picture.
	PFPData int
	Quote   string
	UUID    string

	auth Auth
	raw  json.RawMessage
}

type wireUser struct {
	ID          *string `json:"_id"`
	Avatar      *string `json:"avatar"`
	AvatarColor *string `json:"avatar_color"`
	Banned      *bool   `json:"banned"`
	Created     *int64  `json:"created"`
	Flags       *int64  `json:"flags"`
	LastSeen    *int64  `json:"last_seen"`
	Username    *string `json:"lower_username"`
	Level       *int    `json:"lvl"`
	Permissions *int64  `json:"permissions"`
	PFPData     *int    `json:"pfp_data"`
	Quote       *string `json:"quote"`
	UUID        *string `json:"uuid"`
}

// NewUser validates raw and wraps it. Every field is required.
func NewUser(auth Auth, raw []byte) (*User, error) {
	var wire wireUser
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, shapeError("user", raw, err)
	}
	required := []struct {
		name    string
		present bool
	}{
		{"_id", wire.ID != nil},
		{"avatar", wire.Avatar != nil},
		{"avatar_color", wire.AvatarColor != nil},
		{"banned", wire.Banned != nil},
		{"created", wire.Created != nil},
		{"flags", wire.Flags != nil},
		{"last_seen", wire.LastSeen != nil},
		{"lower_username", wire.Username != nil},
		{"lvl", wire.Level != nil},
		{"permissions", wire.Permissions != nil},
		{"pfp_data", wire.PFPData != nil},
		{"quote", wire.Quote != nil},
		{"uuid", wire.UUID != nil},
	}
	for _, field := range required {
		if !field.present {
			return nil, missingField("user", field.name, raw)
		}
	}

	return &User{
		ID:          *wire.ID,
		Avatar:      *wire.Avatar,
		AvatarColor: *wire.AvatarColor,
		Banned:      *wire.Banned,
		Created:     *wire.Created,
		LastSeen:    *wire.LastSeen,
		Flags:       *wire.Flags,
		Username:    *wire.Username,
		Level:       *wire.Level,
		Permissions: *wire.Permissions,
		PFPData:     *wire.PFPData,
		Quote:       *wire.Quote,
		UUID:        *wire.UUID,
		auth:        auth,
		raw:         bytes.Clone(raw),
	}, nil
}

// Raw returns a copy of the record the user was built from.
func (u *User) Raw() json.RawMessage { return bytes.Clone(u.raw) }

func (u *User) path() string { return "/users/" + url.PathEscape(u.ID) }

// Report files a report against the user.
func (u *User) Report(ctx context.Context, options ReportOptions) error {
	if _, err := u.auth.client.doRequest(ctx, http.MethodPost, u.path()+"/report", u.auth.token, options); err != nil {
		return fmt.Errorf("messaging: report user %s: %w", u.ID, err)
	}
	return nil
}

// ChangeRelationship sets the caller's relationship with the user.
func (u *User) ChangeRelationship(ctx context.Context, state RelationshipState) error {
	body := map[string]RelationshipState{"state": state}
	if _, err := u.auth.client.doRequest(ctx, http.MethodPatch, u.path()+"/relationship", u.auth.token, body); err != nil {
		return fmt.Errorf("messaging: change relationship with %s: %w", u.ID, err)
	}
	return nil
}

// GetPosts returns one page (1-based) of the user's public posts.
func (u *User) GetPosts(ctx context.Context, page int) ([]*Post, error) {
	path := u.path() + "/posts?autoget=1&page=" + strconv.Itoa(pageOrFirst(page))
	posts, err := fetchPostList(ctx, u.auth, path)
	if err != nil {
		return nil, fmt.Errorf("messaging: posts of %s: %w", u.ID, err)
	}
	return posts, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
)

// Session is an authenticated view of the API. It owns the token, the
// account snapshot and the chat, post and user caches. Safe for
// concurrent use.
type Session struct {
	client *Client

	mu       sync.RWMutex
	token    string
	username string
	account  *User

	chats *recordCache
	posts *recordCache
	users *recordCache
}

func newSession(client *Client, token string, account *User) *Session {
	session := &Session{
		client: client,
		token:  token,
		chats:  newRecordCache(),
		posts:  newRecordCache(),
		users:  newRecordCache(),
	}
	if account != nil {
		session.account = account
		session.username = account.ID
		session.users.set(account.ID, account.raw)
	}
	session.chats.set(HomeChatID, sentinelChat(HomeChatID))
	session.chats.set(LivechatChatID, sentinelChat(LivechatChatID))
	return session
}

// Client returns the underlying unauthenticated client.
func (s *Session) Client() *Client { return s.client }

// Token returns the token sent with every request.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken replaces the token. Wrappers already handed out keep the
// token they were created with.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Username returns the acting account's username.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Account returns the account snapshot, or nil for a session created
// from a token whose account has not been delivered yet.
func (s *Session) Account() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// SetAccount validates raw as a user record and makes it the session's
// account.
func (s *Session) SetAccount(raw json.RawMessage) error {
	account, err := NewUser(s.Auth(), raw)
	if err != nil {
		return fmt.Errorf("messaging: set account: %w", err)
	}
	s.mu.Lock()
	s.account = account
	s.username = account.ID
	s.mu.Unlock()
	s.users.set(account.ID, raw)
	return nil
}

// Auth returns the credential wrappers created now should carry.
func (s *Session) Auth() Auth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client.Auth(s.token, s.username)
}

// CacheChat validates raw as a chat and stores it under its id.
func (s *Session) CacheChat(raw json.RawMessage) (*Chat, error) {
	chat, err := NewChat(s.Auth(), raw)
	if err != nil {
		return nil, err
	}
	s.chats.set(chat.ID, raw)
	return chat, nil
}

// ForgetChat evicts a chat from the cache.
func (s *Session) ForgetChat(id string) { s.chats.delete(id) }

// CachePost validates raw as a post and stores it under its id.
func (s *Session) CachePost(raw json.RawMessage) (*Post, error) {
	post, err := NewPost(s.Auth(), raw)
	if err != nil {
		return nil, err
	}
	s.posts.set(post.ID, raw)
	return post, nil
}

// ForgetPost evicts a post from the cache.
func (s *Session) ForgetPost(id string) { s.posts.delete(id) }

// CacheUser validates raw as a user and stores it under its id.
func (s *Session) CacheUser(raw json.RawMessage) (*User, error) {
	user, err := NewUser(s.Auth(), raw)
	if err != nil {
		return nil, err
	}
	s.users.set(user.ID, raw)
	return user, nil
}

// CachedPost reports whether a post is in the cache, without I/O.
func (s *Session) CachedPost(id string) bool {
	_, ok := s.posts.get(id)
	return ok
}

// getResource is the shared cache-then-network path of the get-by-id
// accessors. wrap validates a record; only valid records are cached.
func getResource[T any](ctx context.Context, s *Session, cache *recordCache, id, path string, wrap func(Auth, []byte) (T, error)) (T, error) {
	auth := s.Auth()
	if record, ok := cache.get(id); ok {
		return wrap(auth, record)
	}
	var zero T
	body, err := s.client.doRequest(ctx, http.MethodGet, path, auth.token, nil)
	if err != nil {
		return zero, err
	}
	resource, err := wrap(auth, body)
	if err != nil {
		return zero, err
	}
	cache.set(id, body)
	return resource, nil
}

// GetChat returns a chat, from the cache when present. home and
// livechat are always cached.
func (s *Session) GetChat(ctx context.Context, id string) (*Chat, error) {
	chat, err := getResource(ctx, s, s.chats, id, "/chats/"+url.PathEscape(id), NewChat)
	if err != nil {
		return nil, fmt.Errorf("messaging: get chat %s: %w", id, err)
	}
	return chat, nil
}

// GetChats returns the chats the account belongs to, followed by home
// and livechat. The two are appended even when the server list already
// contains them.
func (s *Session) GetChats(ctx context.Context) ([]*Chat, error) {
	auth := s.Auth()
	body, err := s.client.doRequest(ctx, http.MethodGet, "/chats", auth.token, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: get chats: %w", err)
	}
	records, err := autogetRecords("chat", body)
	if err != nil {
		return nil, fmt.Errorf("messaging: get chats: %w", err)
	}

	chats := make([]*Chat, 0, len(records)+2)
	for _, record := range records {
		chat, err := NewChat(auth, record)
		if err != nil {
			return nil, fmt.Errorf("messaging: get chats: %w", err)
		}
		s.chats.set(chat.ID, record)
		chats = append(chats, chat)
	}
	for _, id := range []string{HomeChatID, LivechatChatID} {
		record, ok := s.chats.get(id)
		if !ok {
			record = sentinelChat(id)
		}
		chat, err := NewChat(auth, record)
		if err != nil {
			return nil, fmt.Errorf("messaging: get chats: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// CreateChat creates a group chat owned by the caller.
func (s *Session) CreateChat(ctx context.Context, request CreateChatRequest) (*Chat, error) {
	if request.Nickname == "" {
		return nil, fmt.Errorf("messaging: chat nickname is required")
	}
	auth := s.Auth()
	body, err := s.client.doRequest(ctx, http.MethodPost, "/chats", auth.token, request)
	if err != nil {
		return nil, fmt.Errorf("messaging: create chat: %w", err)
	}
	chat, err := NewChat(auth, body)
	if err != nil {
		return nil, fmt.Errorf("messaging: create chat: %w", err)
	}
	s.chats.set(chat.ID, body)
	return chat, nil
}

// GetPost returns a post, from the cache when present.
func (s *Session) GetPost(ctx context.Context, id string) (*Post, error) {
	post, err := getResource(ctx, s, s.posts, id, "/posts?id="+url.QueryEscape(id), NewPost)
	if err != nil {
		return nil, fmt.Errorf("messaging: get post %s: %w", id, err)
	}
	return post, nil
}

// GetUser returns a user, from the cache when present.
func (s *Session) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := getResource(ctx, s, s.users, id, "/users/"+url.PathEscape(id), NewUser)
	if err != nil {
		return nil, fmt.Errorf("messaging: get user %s: %w", id, err)
	}
	return user, nil
}

// SearchUsers returns one page (1-based) of users matching query.
// Results are not cached.
func (s *Session) SearchUsers(ctx context.Context, query string, page int) ([]*User, error) {
	auth := s.Auth()
	path := "/search/users/?autoget&q=" + url.QueryEscape(query) + "&page=" + strconv.Itoa(pageOrFirst(page))
	body, err := s.client.doRequest(ctx, http.MethodGet, path, auth.token, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: search users: %w", err)
	}
	records, err := autogetRecords("user", body)
	if err != nil {
		return nil, fmt.Errorf("messaging: search users: %w", err)
	}
	users := make([]*User, 0, len(records))
	for _, record := range records {
		user, err := NewUser(auth, record)
		if err != nil {
			return nil, fmt.Errorf("messaging: search users: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}

// GetStatistics returns server-wide counts.
func (s *Session) GetStatistics(ctx context.Context) (*Statistics, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/statistics", s.Token(), nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: get statistics: %w", err)
	}
	var wire struct {
		Users *int64 `json:"users"`
		Posts *int64 `json:"posts"`
		Chats *int64 `json:"chats"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("messaging: get statistics: %w", shapeError("statistics", body, err))
	}
	for name, value := range map[string]*int64{"users": wire.Users, "posts": wire.Posts, "chats": wire.Chats} {
		if value == nil {
			return nil, fmt.Errorf("messaging: get statistics: %w", missingField("statistics", name, body))
		}
	}
	return &Statistics{Users: *wire.Users, Posts: *wire.Posts, Chats: *wire.Chats}, nil
}

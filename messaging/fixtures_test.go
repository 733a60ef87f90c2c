// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bureau-foundation/meower/lib/secret"
)

func userRecord() map[string]any {
	return map[string]any{
		"_id":            "Tester",
		"avatar":         "av1",
		"avatar_color":   "#ff00ff",
		"banned":         false,
		"created":        1700000000,
		"flags":          0,
		"last_seen":      1700000500,
		"lower_username": "tester",
		"lvl":            0,
		"permissions":    0,
		"pfp_data":       24,
		"quote":          "meow",
		"uuid":           "7c3a2d1e-0000-4000-8000-000000000001",
	}
}

func postRecord() map[string]any {
	return map[string]any{
		"_id":         "post-1",
		"post_id":     "post-1",
		"pinned":      false,
		"isDeleted":   false,
		"p":           "hello world",
		"post_origin": "chat-1",
		"t":           map[string]any{"e": 1700000100},
		"type":        1,
		"u":           "Tester",
	}
}

func chatRecord() map[string]any {
	return map[string]any{
		"_id":           "chat-1",
		"allow_pinning": true,
		"created":       1700000000,
		"deleted":       false,
		"icon":          "",
		"icon_color":    "000000",
		"last_active":   1700000900,
		"members":       []string{"Tester", "Friend"},
		"nickname":      "cats",
		"owner":         "Tester",
		"type":          0,
	}
}

// with returns a copy of record with the given fields replaced or, for
// nil values, removed.
func with(record map[string]any, changes map[string]any) map[string]any {
	result := maps.Clone(record)
	for key, value := range changes {
		if value == nil {
			delete(result, key)
			continue
		}
		result[key] = value
	}
	return result
}

func mustJSON(t *testing.T, value any) []byte {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	return data
}

func writeJSON(writer http.ResponseWriter, status int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(value)
}

func assertToken(t *testing.T, request *http.Request, want string) {
	t.Helper()
	if got := request.Header.Get("token"); got != want {
		t.Errorf("token header = %q, want %q", got, want)
	}
}

// requestLog records every request a test server receives.
type requestLog struct {
	count atomic.Int32
	last  atomic.Pointer[http.Request]
}

func (l *requestLog) wrap(handler http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		l.count.Add(1)
		l.last.Store(request)
		handler(writer, request)
	}
}

// newTestSession starts a server and returns a session for "Tester"
// with token "test-token".
func newTestSession(t *testing.T, handler http.HandlerFunc) (*Session, *requestLog) {
	t.Helper()
	log := &requestLog{}
	server := httptest.NewServer(log.wrap(handler))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{APIURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	session, err := client.SessionFromToken("Tester", "test-token")
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}
	return session, log
}

func testPassword(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.FromBytes([]byte(value))
	if err != nil {
		t.Fatalf("secret.FromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func notFound(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusNotFound, map[string]any{"error": true, "type": "notFound"})
}

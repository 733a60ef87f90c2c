// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/meower/capture"
	"github.com/bureau-foundation/meower/lib/clock"
	"github.com/bureau-foundation/meower/lib/config"
	"github.com/bureau-foundation/meower/messaging"
)

func TestSessionFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	if err := saveSession(path, "Tester", "token-1"); err != nil {
		t.Fatalf("saveSession: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("session file mode = %o, want 600", mode)
	}

	saved, err := loadSession(path)
	if err != nil {
		t.Fatalf("loadSession: %v", err)
	}
	if saved.Username != "Tester" || saved.Token != "token-1" {
		t.Errorf("saved = %+v", saved)
	}

	if err := saveSession(path, "Tester", "token-2"); err != nil {
		t.Fatalf("saveSession overwrite: %v", err)
	}
	if saved, _ := loadSession(path); saved.Token != "token-2" {
		t.Errorf("token after overwrite = %q", saved.Token)
	}

	if err := removeSession(path); err != nil {
		t.Fatalf("removeSession: %v", err)
	}
	if err := removeSession(path); err != nil {
		t.Errorf("removeSession of a missing file: %v", err)
	}
	if _, err := loadSession(path); err == nil || !strings.Contains(err.Error(), "meower login") {
		t.Errorf("loadSession after logout = %v", err)
	}
}

func TestLoadSessionRejectsEmptyToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"username":"Tester","token":""}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSession(path); err == nil {
		t.Error("expected an error for a session without a token")
	}
}

func TestSessionPath(t *testing.T) {
	cfg := config.Default()
	cfg.SessionFile = "/tmp/custom.json"
	if path, err := sessionPath(cfg); err != nil || path != "/tmp/custom.json" {
		t.Errorf("sessionPath with override = %q, %v", path, err)
	}

	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	cfg.SessionFile = ""
	path, err := sessionPath(cfg)
	if err != nil {
		t.Fatalf("sessionPath: %v", err)
	}
	if path != filepath.Join("/xdg", "meower", "session.json") {
		t.Errorf("sessionPath = %q", path)
	}
}

func TestRenderPost(t *testing.T) {
	auth := testAuth(t)
	post, err := messaging.NewPost(auth, []byte(`{
		"_id": "post-1", "post_id": "post-1", "post_origin": "home",
		"u": "Tester", "p": "hello there", "t": {"e": 1700000000},
		"type": 1, "isDeleted": false, "pinned": false,
		"attachments": [{"id": "a1", "filename": "cat.png"}],
		"last_edited": 1700000100
	}`))
	if err != nil {
		t.Fatalf("NewPost: %v", err)
	}
	line := newRenderer().post(post)
	for _, want := range []string{"home", "<Tester>", "hello there", "1 attachment", "edited", "post-1"} {
		if !strings.Contains(line, want) {
			t.Errorf("rendered post %q lacks %q", line, want)
		}
	}
}

func TestReplayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.mcap")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	writer, err := capture.NewWriter(file, clock.Fake(time.Unix(1700000000, 0)))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	frames := []string{
		`{"cmd":"ulist","val":"Tester;Friend;"}`,
		`{"cmd":"typing","val":{"chat_id":"home","username":"Friend"}}`,
		`{"cmd":"typing","val":{"chat_id":"chat-9","username":"Other"}}`,
		`{"cmd":"delete_post","val":{"post_id":"post-7","chat_id":"home"}}`,
	}
	for _, frame := range frames {
		writer.RecordFrame(true, []byte(frame))
	}
	writer.RecordFrame(false, []byte(`{"cmd":"ping","val":""}`))
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out bytes.Buffer
	count, err := replayFile(ctx, path, &out, "home", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("replayFile: %v", err)
	}
	if count != len(frames) {
		t.Errorf("replayed %d frames, want %d", count, len(frames))
	}

	output := out.String()
	if !strings.Contains(output, "Friend is typing in home") {
		t.Errorf("output lacks the home typing event:\n%s", output)
	}
	if !strings.Contains(output, "post post-7 deleted in home") {
		t.Errorf("output lacks the deletion:\n%s", output)
	}
	if strings.Contains(output, "Other") {
		t.Errorf("chat filter let another chat through:\n%s", output)
	}
	if strings.Contains(output, "online") {
		t.Errorf("user list printed despite a chat filter:\n%s", output)
	}
}

func TestRootHasCommands(t *testing.T) {
	root := Root()
	names := make(map[string]bool)
	for _, command := range root.Subcommands {
		names[command.Name] = true
	}
	for _, want := range []string{"login", "signup", "logout", "chats", "send", "tail", "replay", "upload", "stats", "version"} {
		if !names[want] {
			t.Errorf("root lacks %q", want)
		}
	}
}

func testAuth(t *testing.T) messaging.Auth {
	t.Helper()
	api, err := messaging.NewClient(messaging.ClientConfig{APIURL: "http://meower.invalid"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return api.Auth("token", "Tester")
}

func TestServeMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "meower_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	address, stop, err := serveMetrics("127.0.0.1:0", registry)
	if err != nil {
		t.Fatalf("serveMetrics: %v", err)
	}
	defer stop()

	response, err := http.Get("http://" + address.String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "meower_test_total 1") {
		t.Errorf("metrics body lacks the counter:\n%s", body)
	}
}

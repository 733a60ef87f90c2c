// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/meower/lib/clock"
	"github.com/bureau-foundation/meower/lib/testutil"
	"github.com/bureau-foundation/meower/messaging"
	"github.com/bureau-foundation/meower/transport"
)

const postJSON = `{"_id":"post-1","post_id":"post-1","pinned":false,"isDeleted":false,` +
	`"p":"meow","post_origin":"home","t":{"e":1700000100},"type":1,"u":"Friend"}`

const chatJSON = `{"_id":"chat-1","type":0,"nickname":"cats","owner":"Tester","allow_pinning":true,` +
	`"deleted":false,"members":["Tester"],"created":1700000000,"last_active":1700000000}`

type harness struct {
	client *Client
	dialer *transport.MemoryDialer
	clock  *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dialer := transport.NewMemoryDialer()
	fake := clock.Fake(time.Unix(1700000000, 0))
	client, err := New(Config{
		SocketURL:  "wss://server.test/",
		Token:      "rest-token",
		Username:   "Tester",
		APIURL:     "http://api.test",
		Dialer:     dialer,
		Clock:      fake,
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(client.Disconnect)
	return &harness{client: client, dialer: dialer, clock: fake}
}

// connect opens the client and returns the server end.
func (h *harness) connect(t *testing.T) transport.Accepted {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	if err := h.client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	accepted, err := h.dialer.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return accepted
}

func writeFrame(t *testing.T, server transport.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	if err := server.WriteMessage(ctx, []byte(frame)); err != nil {
		t.Fatalf("server write %s: %v", frame, err)
	}
}

func readFrame(t *testing.T, server transport.Conn) Packet {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	data, err := server.ReadMessage(ctx)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	var packet Packet
	if err := json.Unmarshal(data, &packet); err != nil {
		t.Fatalf("client sent invalid JSON %q: %v", data, err)
	}
	return packet
}

// flush round-trips a marker packet so every earlier frame has been
// dispatched when it returns.
func flush(t *testing.T, h *harness, server transport.Conn) {
	t.Helper()
	seen := make(chan struct{}, 1)
	remove := h.client.OnPacket(func(packet Packet) {
		if packet.Cmd == "test_sync" {
			seen <- struct{}{}
		}
	})
	defer remove()
	writeFrame(t, server, `{"cmd":"test_sync","val":""}`)
	testutil.Closed(t, seen, "sync marker")
}

func TestConnectURLCarriesToken(t *testing.T) {
	h := newHarness(t)
	h.client.mu.Lock()
	h.client.token = "tok/en+1"
	h.client.mu.Unlock()

	accepted := h.connect(t)
	if want := "wss://server.test/?v=1&token=tok%2Fen%2B1"; accepted.URL != want {
		t.Errorf("URL = %q, want %q", accepted.URL, want)
	}
	if h.client.State() != StateOpen {
		t.Errorf("State = %v, want open", h.client.State())
	}
}

func TestHeartbeat(t *testing.T) {
	h := newHarness(t)
	server := h.connect(t).Conn

	if h.clock.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want the heartbeat ticker", h.clock.PendingCount())
	}

	h.clock.Advance(29 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	if data, err := server.ReadMessage(ctx); err == nil {
		t.Fatalf("frame before the interval elapsed: %s", data)
	}
	cancel()

	for range 2 {
		h.clock.Advance(time.Second)
		ping := readFrame(t, server)
		if ping.Cmd != "ping" || string(ping.Val) != `""` {
			t.Errorf("heartbeat = %+v, want ping with empty string val", ping)
		}
		h.clock.Advance(29 * time.Second)
	}

	h.client.Disconnect()
	h.clock.WaitForIdle(0)
}

func TestHeartbeatRawFrame(t *testing.T) {
	h := newHarness(t)
	server := h.connect(t).Conn
	h.clock.Advance(HeartbeatInterval)

	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	data, err := server.ReadMessage(ctx)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != `{"cmd":"ping","val":""}` {
		t.Errorf("ping frame = %s", data)
	}
}

func TestTypedEvents(t *testing.T) {
	h := newHarness(t)
	posts := make(chan *messaging.Post, 1)
	updates := make(chan *messaging.Post, 1)
	deletions := make(chan PostDeletion, 1)
	typing := make(chan Typing, 1)
	chats := make(chan *messaging.Chat, 1)
	chatDeletions := make(chan ChatDeletion, 1)
	reactions := make(chan ReactionEvent, 2)
	h.client.OnPost(func(post *messaging.Post) { posts <- post })
	h.client.OnPostUpdate(func(post *messaging.Post) { updates <- post })
	h.client.OnPostDelete(func(deletion PostDeletion) { deletions <- deletion })
	h.client.OnTyping(func(event Typing) { typing <- event })
	h.client.OnChatCreate(func(chat *messaging.Chat) { chats <- chat })
	h.client.OnChatDelete(func(deletion ChatDeletion) { chatDeletions <- deletion })
	h.client.OnReaction(func(event ReactionEvent) { reactions <- event })
	server := h.connect(t).Conn

	writeFrame(t, server, `{"cmd":"post","val":`+postJSON+`}`)
	if post := testutil.Receive(t, posts, "post"); post.ID != "post-1" || post.Content != "meow" || post.ChatID != "home" {
		t.Errorf("post = %+v", post)
	}

	writeFrame(t, server, `{"cmd":"update_post","val":`+postJSON+`}`)
	testutil.Receive(t, updates, "update_post")

	writeFrame(t, server, `{"cmd":"delete_post","val":{"post_id":"post-1","chat_id":"home"}}`)
	if deletion := testutil.Receive(t, deletions, "delete_post"); deletion != (PostDeletion{PostID: "post-1", ChatID: "home"}) {
		t.Errorf("deletion = %+v", deletion)
	}

	writeFrame(t, server, `{"cmd":"typing","val":{"chat_id":"chat-1","username":"Friend"}}`)
	if event := testutil.Receive(t, typing, "typing"); event != (Typing{ChatID: "chat-1", Username: "Friend"}) {
		t.Errorf("typing = %+v", event)
	}

	writeFrame(t, server, `{"cmd":"create_chat","val":`+chatJSON+`}`)
	if chat := testutil.Receive(t, chats, "create_chat"); chat.Nickname != "cats" {
		t.Errorf("chat = %+v", chat)
	}

	writeFrame(t, server, `{"cmd":"delete_chat","val":{"chat_id":"chat-1"}}`)
	if deletion := testutil.Receive(t, chatDeletions, "delete_chat"); deletion.ChatID != "chat-1" {
		t.Errorf("chat deletion = %+v", deletion)
	}

	writeFrame(t, server, `{"cmd":"post_reaction_add","val":{"chat_id":"home","post_id":"post-1","emoji":"😺","username":"Friend"}}`)
	writeFrame(t, server, `{"cmd":"post_reaction_remove","val":{"chat_id":"home","post_id":"post-1","emoji":"😺","username":"Friend"}}`)
	if added := testutil.Receive(t, reactions, "reaction add"); !added.Added || added.Emoji != "😺" {
		t.Errorf("reaction add = %+v", added)
	}
	if removed := testutil.Receive(t, reactions, "reaction remove"); removed.Added || removed.PostID != "post-1" {
		t.Errorf("reaction remove = %+v", removed)
	}
}

func TestPostWrapperUsesAuthToken(t *testing.T) {
	h := newHarness(t)
	posts := make(chan *messaging.Post, 1)
	h.client.OnPost(func(post *messaging.Post) { posts <- post })
	server := h.connect(t).Conn

	writeFrame(t, server, `{"cmd":"auth","val":{"token":"socket-token","username":"Tester"}}`)
	writeFrame(t, server, `{"cmd":"post","val":`+postJSON+`}`)
	post := testutil.Receive(t, posts, "post")
	if post.Auth().Token() != "socket-token" {
		t.Errorf("post wrapper token = %q, want the auth token", post.Auth().Token())
	}
}

func TestAuthEvent(t *testing.T) {
	h := newHarness(t)
	events := make(chan AuthEvent, 4)
	tokenSeen := make(chan string, 4)
	h.client.OnAuth(func(event AuthEvent) {
		tokenSeen <- h.client.Token()
		events <- event
	})
	server := h.connect(t).Conn

	writeFrame(t, server, `{"cmd":"auth","val":{"username":"Tester","token":"fresh",`+
		`"account":{"_id":"Tester"},"relationships":[],"chats":[`+chatJSON+`]}}`)
	flush(t, h, server)

	event := testutil.Receive(t, events, "auth event")
	if event.Token != "fresh" || event.Username != "Tester" || len(event.Chats) != 1 {
		t.Errorf("auth event = %+v", event)
	}
	if string(event.Account) != `{"_id":"Tester"}` {
		t.Errorf("Account = %s", event.Account)
	}
	if got := testutil.Receive(t, tokenSeen, "token at emission"); got != "fresh" {
		t.Errorf("token during OnAuth = %q, want it already replaced", got)
	}
	testutil.NoReceive(t, events, 20*time.Millisecond, "second auth emission")
	if h.client.Token() != "fresh" {
		t.Errorf("Token = %q, want fresh", h.client.Token())
	}
}

func TestUserList(t *testing.T) {
	h := newHarness(t)
	lists := make(chan []string, 1)
	h.client.OnUserList(func(users []string) { lists <- users })
	server := h.connect(t).Conn

	writeFrame(t, server, `{"cmd":"ulist","val":"Tester;Friend;;"}`)
	want := []string{"Tester", "Friend"}
	if got := testutil.Receive(t, lists, "ulist"); !slices.Equal(got, want) {
		t.Errorf("ulist event = %v, want %v", got, want)
	}
	if got := h.client.OnlineUsers(); !slices.Equal(got, want) {
		t.Errorf("OnlineUsers = %v, want %v", got, want)
	}
	if got := promtest.ToFloat64(h.client.metrics.online); got != 2 {
		t.Errorf("online gauge = %v", got)
	}

	writeFrame(t, server, `{"cmd":"ulist","val":""}`)
	if got := testutil.Receive(t, lists, "empty ulist"); len(got) != 0 {
		t.Errorf("empty ulist = %v", got)
	}
}

func TestUnknownCommandReachesPacketHandlersOnly(t *testing.T) {
	h := newHarness(t)
	packets := make(chan Packet, 4)
	typed := make(chan struct{}, 4)
	h.client.OnPacket(func(packet Packet) { packets <- packet })
	h.client.OnPost(func(*messaging.Post) { typed <- struct{}{} })
	h.client.OnTyping(func(Typing) { typed <- struct{}{} })
	server := h.connect(t).Conn

	writeFrame(t, server, `{"cmd":"new_feature","val":{"x":1}}`)
	packet := testutil.Receive(t, packets, "unknown packet")
	if packet.Cmd != "new_feature" || string(packet.Val) != `{"x":1}` {
		t.Errorf("packet = %+v", packet)
	}
	testutil.NoReceive(t, typed, 20*time.Millisecond, "typed event for unknown command")
	if got := promtest.ToFloat64(h.client.metrics.packets.WithLabelValues("other")); got != 1 {
		t.Errorf("packets{cmd=other} = %v", got)
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	h := newHarness(t)
	var packets []string
	posts := make(chan *messaging.Post, 1)
	h.client.OnPacket(func(packet Packet) { packets = append(packets, packet.Cmd) })
	h.client.OnPost(func(post *messaging.Post) { posts <- post })
	server := h.connect(t).Conn

	for _, frame := range []string{
		`not json`,
		`null`,
		`[]`,
		`{}`,
		`{"cmd":""}`,
		`{"cmd":5}`,
		`{"cmd":"post","val":{"_id":"half a post"}}`,
		`{"cmd":"typing","val":"nope"}`,
		`{"cmd":"ulist","val":{"not":"a string"}}`,
		`{"cmd":"auth","val":{"username":"no token"}}`,
	} {
		writeFrame(t, server, frame)
	}
	flush(t, h, server)

	want := []string{"post", "typing", "ulist", "auth", "test_sync"}
	if !slices.Equal(packets, want) {
		t.Errorf("packets = %v, want %v", packets, want)
	}
	testutil.NoReceive(t, posts, 10*time.Millisecond, "post from a malformed payload")
	if got := promtest.ToFloat64(h.client.metrics.dropped); got != 10 {
		t.Errorf("dropped = %v, want 10", got)
	}
	if h.client.Token() != "rest-token" {
		t.Errorf("malformed auth changed the token to %q", h.client.Token())
	}
	if h.client.State() != StateOpen {
		t.Errorf("State = %v after malformed frames", h.client.State())
	}
}

func TestRequestCorrelation(t *testing.T) {
	h := newHarness(t)
	server := h.connect(t).Conn

	type result struct {
		packet Packet
		err    error
	}
	results := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
		defer cancel()
		packet, err := h.client.Request(ctx, Packet{Cmd: "get_profile", Val: json.RawMessage(`"Friend"`)})
		results <- result{packet, err}
	}()

	request := readFrame(t, server)
	if request.Cmd != "get_profile" || request.Listener == "" {
		t.Fatalf("request = %+v, want a listener id", request)
	}

	writeFrame(t, server, `{"cmd":"other","val":"","listener":"someone-else"}`)
	writeFrame(t, server, `{"cmd":"profile","val":{"ok":true},"listener":"`+request.Listener+`"}`)
	got := testutil.Receive(t, results, "request result")
	if got.err != nil {
		t.Fatalf("Request: %v", got.err)
	}
	if got.packet.Cmd != "profile" || got.packet.Listener != request.Listener {
		t.Errorf("response = %+v", got.packet)
	}
	// A second response for the same id has nobody to complete.
	writeFrame(t, server, `{"cmd":"profile","val":{},"listener":"`+request.Listener+`"}`)
	flush(t, h, server)
	if h.client.PendingRequests() != 0 {
		t.Errorf("PendingRequests = %d, want 0", h.client.PendingRequests())
	}
}

func TestRequestCancelled(t *testing.T) {
	h := newHarness(t)
	server := h.connect(t).Conn
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, err := h.client.Request(ctx, Packet{Cmd: "slow", Listener: "fixed-id"})
		errs <- err
	}()
	readFrame(t, server)
	cancel()
	if err := testutil.Receive(t, errs, "cancelled request"); !errors.Is(err, context.Canceled) {
		t.Errorf("Request = %v, want context.Canceled", err)
	}
	if h.client.PendingRequests() != 0 {
		t.Errorf("PendingRequests = %d after cancellation", h.client.PendingRequests())
	}
}

func TestSendRequiresOpen(t *testing.T) {
	h := newHarness(t)
	if err := h.client.Send(context.Background(), Packet{Cmd: "ping"}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send before Connect = %v, want ErrNotOpen", err)
	}
	if _, err := h.client.Request(context.Background(), Packet{Cmd: "x"}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Request before Connect = %v, want ErrNotOpen", err)
	}
	if h.client.PendingRequests() != 0 {
		t.Error("failed Request left a pending entry")
	}

	h.connect(t)
	h.client.Disconnect()
	if err := h.client.Send(context.Background(), Packet{Cmd: "ping"}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send after Disconnect = %v, want ErrNotOpen", err)
	}
	if h.client.State() != StateClosed {
		t.Errorf("State = %v, want closed", h.client.State())
	}
}

func TestConnectFailure(t *testing.T) {
	h := newHarness(t)
	refused := errors.New("connection refused")
	h.dialer.FailWith(refused)

	err := h.client.Connect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || !errors.Is(err, refused) {
		t.Fatalf("Connect = %v, want ConnectionError wrapping the dial error", err)
	}
	if connErr.URL != "wss://server.test" {
		t.Errorf("ConnectionError.URL = %q", connErr.URL)
	}
	if h.client.State() != StateDisconnected {
		t.Errorf("State = %v, want disconnected", h.client.State())
	}
	if h.clock.PendingCount() != 0 {
		t.Error("failed connect started a heartbeat")
	}
}

func TestReconnectUsesCurrentToken(t *testing.T) {
	h := newHarness(t)
	opens := make(chan struct{}, 4)
	closes := make(chan error, 4)
	h.client.OnOpen(func() { opens <- struct{}{} })
	h.client.OnClose(func(err error) { closes <- err })

	first := h.connect(t)
	testutil.Receive(t, opens, "first open")
	writeFrame(t, first.Conn, `{"cmd":"auth","val":{"token":"rotated","username":"Tester"}}`)
	flush(t, h, first.Conn)

	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	if err := h.client.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if err := testutil.Receive(t, closes, "close on reconnect"); err != nil {
		t.Errorf("OnClose error = %v, want nil", err)
	}
	testutil.Receive(t, opens, "second open")

	second, err := h.dialer.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if second.URL != "wss://server.test/?v=1&token=rotated" {
		t.Errorf("reconnect URL = %q", second.URL)
	}
	if _, err := first.Conn.ReadMessage(ctx); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("old connection read = %v, want closed", err)
	}
	if h.clock.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want only the new heartbeat", h.clock.PendingCount())
	}
	if got := promtest.ToFloat64(h.client.metrics.reconnects); got != 1 {
		t.Errorf("reconnects = %v", got)
	}

	h.clock.Advance(HeartbeatInterval)
	if ping := readFrame(t, second.Conn); ping.Cmd != "ping" {
		t.Errorf("heartbeat after reconnect = %+v", ping)
	}
}

func TestServerClose(t *testing.T) {
	h := newHarness(t)
	closes := make(chan error, 1)
	h.client.OnClose(func(err error) { closes <- err })
	server := h.connect(t).Conn

	server.Close()
	if err := testutil.Receive(t, closes, "close event"); err != nil {
		t.Errorf("OnClose = %v, want nil for a normal close", err)
	}
	if h.client.State() != StateClosed {
		t.Errorf("State = %v, want closed", h.client.State())
	}
	h.clock.WaitForIdle(0)

	// Disconnect after a server close does not fire OnClose again.
	h.client.Disconnect()
	testutil.NoReceive(t, closes, 20*time.Millisecond, "second close event")
}

func TestConnectionLostReportsError(t *testing.T) {
	broken := errors.New("network unreachable")
	conn := &failingConn{err: broken}
	client, err := New(Config{
		SocketURL: "wss://server.test",
		Token:     "t",
		Dialer: transport.DialerFunc(func(context.Context, string) (transport.Conn, error) {
			return conn, nil
		}),
		Clock: clock.Fake(time.Unix(0, 0)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	closes := make(chan error, 1)
	client.OnClose(func(err error) { closes <- err })
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	got := testutil.Receive(t, closes, "close event")
	if !IsConnectionError(got) || !errors.Is(got, broken) {
		t.Errorf("OnClose = %v, want ConnectionError wrapping the read error", got)
	}
}

type failingConn struct{ err error }

func (f *failingConn) ReadMessage(context.Context) ([]byte, error)  { return nil, f.err }
func (f *failingConn) WriteMessage(context.Context, []byte) error    { return f.err }
func (f *failingConn) Close() error                                  { return nil }

func TestConnectTwiceFails(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	if err := h.client.Connect(context.Background()); err == nil {
		t.Error("second Connect succeeded")
	}
}

func TestUnsubscribe(t *testing.T) {
	h := newHarness(t)
	var calls int
	remove := h.client.OnPacket(func(Packet) { calls++ })
	server := h.connect(t).Conn

	writeFrame(t, server, `{"cmd":"a","val":""}`)
	flush(t, h, server)
	remove()
	remove()
	writeFrame(t, server, `{"cmd":"b","val":""}`)
	flush(t, h, server)
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (a and the first sync)", calls)
	}
}

func TestRecorderSeesBothDirections(t *testing.T) {
	recorder := &memoryRecorder{frames: make(chan recordedFrame, 8)}
	dialer := transport.NewMemoryDialer()
	fake := clock.Fake(time.Unix(0, 0))
	client, err := New(Config{SocketURL: "wss://server.test", Token: "t", Dialer: dialer, Clock: fake, Recorder: recorder})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Disconnect()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	accepted, _ := dialer.Accept(context.Background())

	writeFrame(t, accepted.Conn, `{"cmd":"x","val":""}`)
	in := testutil.Receive(t, recorder.frames, "inbound frame")
	if !in.inbound || string(in.data) != `{"cmd":"x","val":""}` {
		t.Errorf("inbound = %+v", in)
	}

	fake.Advance(HeartbeatInterval)
	readFrame(t, accepted.Conn)
	out := testutil.Receive(t, recorder.frames, "outbound frame")
	if out.inbound || string(out.data) != `{"cmd":"ping","val":""}` {
		t.Errorf("outbound = %+v", out)
	}
}

type recordedFrame struct {
	inbound bool
	data    []byte
}

type memoryRecorder struct{ frames chan recordedFrame }

func (r *memoryRecorder) RecordFrame(inbound bool, data []byte) {
	r.frames <- recordedFrame{inbound, append([]byte(nil), data...)}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Token: "t"}); err == nil {
		t.Error("New without SocketURL succeeded")
	}
	if _, err := New(Config{SocketURL: "wss://x"}); err == nil {
		t.Error("New without Token succeeded")
	}
}

func TestMetricsShareRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	for range 2 {
		if _, err := New(Config{SocketURL: "wss://x", Token: "t", Registerer: registry}); err != nil {
			t.Fatalf("New with a shared registry: %v", err)
		}
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/meower/lib/clock"
	meowerconfig "github.com/bureau-foundation/meower/lib/config"
	"github.com/bureau-foundation/meower/lib/netutil"
	"github.com/bureau-foundation/meower/lib/version"
	"github.com/bureau-foundation/meower/messaging"
	"github.com/bureau-foundation/meower/transport"
)

// HeartbeatInterval is the period of the keepalive ping.
const HeartbeatInterval = 30 * time.Second

// ProtocolVersion is sent as the v query parameter.
const ProtocolVersion = "1"

// State is the lifecycle state of a Client's connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Recorder receives every frame read from or written to the
// connection. Calls come from the read goroutine and from senders;
// implementations must be safe for concurrent use.
type Recorder interface {
	RecordFrame(inbound bool, data []byte)
}

// Config configures a Client.
type Config struct {
	// SocketURL is the server's base URL, e.g. wss://server.meower.org.
	SocketURL string

	// Token authenticates the connection. The server's auth packet
	// replaces it.
	Token string

	// Username is the acting account used for entity wrappers until the
	// auth packet names it.
	Username string

	// Messaging builds the Post and Chat wrappers handed to event
	// handlers. When nil, one is built from APIURL and HTTPClient.
	Messaging *messaging.Client

	// APIURL is the REST base URL for wrappers, used when Messaging is
	// nil. Defaults to the public API.
	APIURL string

	// HTTPClient is used when Messaging is nil.
	HTTPClient *http.Client

	// Dialer opens the connection. Defaults to a
	// transport.WebSocketDialer.
	Dialer transport.Dialer

	// Clock drives the heartbeat. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives the socket's metrics. Nil leaves them
	// unregistered.
	Registerer prometheus.Registerer

	// Recorder, when set, sees every frame.
	Recorder Recorder
}

// Client is a Meower socket connection. Create with New, register
// handlers, then Connect.
type Client struct {
	baseURL   string
	messaging *messaging.Client
	dialer    transport.Dialer
	clock     clock.Clock
	logger    *slog.Logger
	recorder  Recorder
	metrics   *metrics

	mu          sync.Mutex
	state       State
	token       string
	username    string
	onlineUsers []string
	conn        *connection

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan Packet

	packetHandlers     handlerSet[Packet]
	postHandlers       handlerSet[*messaging.Post]
	postUpdateHandlers handlerSet[*messaging.Post]
	postDeleteHandlers handlerSet[PostDeletion]
	typingHandlers     handlerSet[Typing]
	userListHandlers   handlerSet[[]string]
	authHandlers       handlerSet[AuthEvent]
	chatCreateHandlers handlerSet[*messaging.Chat]
	chatDeleteHandlers handlerSet[ChatDeletion]
	reactionHandlers   handlerSet[ReactionEvent]
	openHandlers       handlerSet[struct{}]
	closeHandlers      handlerSet[error]
}

// connection is one dialed transport and the goroutines serving it.
type connection struct {
	conn   transport.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates config and returns a disconnected Client.
func New(config Config) (*Client, error) {
	if config.SocketURL == "" {
		return nil, fmt.Errorf("socket: SocketURL is required")
	}
	if _, err := url.Parse(config.SocketURL); err != nil {
		return nil, fmt.Errorf("socket: invalid SocketURL: %w", err)
	}
	if config.Token == "" {
		return nil, fmt.Errorf("socket: Token is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	apiClient := config.Messaging
	if apiClient == nil {
		var err error
		apiURL := config.APIURL
		if apiURL == "" {
			apiURL = meowerconfig.DefaultAPIURL
		}
		apiClient, err = messaging.NewClient(messaging.ClientConfig{
			APIURL:     apiURL,
			HTTPClient: config.HTTPClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("socket: %w", err)
		}
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = &transport.WebSocketDialer{
			Header: http.Header{"User-Agent": []string{version.UserAgent()}},
			Logger: logger,
		}
	}
	socketClock := config.Clock
	if socketClock == nil {
		socketClock = clock.Real()
	}
	collectors, err := newMetrics(config.Registerer)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   strings.TrimRight(config.SocketURL, "/"),
		messaging: apiClient,
		dialer:    dialer,
		clock:     socketClock,
		logger:    logger,
		recorder:  config.Recorder,
		metrics:   collectors,
		token:     config.Token,
		username:  config.Username,
		pending:   make(map[string]chan Packet),
	}, nil
}

// Connect is New followed by Client.Connect.
func Connect(ctx context.Context, config Config) (*Client, error) {
	client, err := New(config)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// connectURL is <base>/?v=1&token=<token>.
func (c *Client) connectURL(token string) string {
	return c.baseURL + "/?v=" + ProtocolVersion + "&token=" + url.QueryEscape(token)
}

// Connect dials the server with the stored token. OnOpen handlers run
// before the first frame is read.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen || c.state == StateClosing {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("socket: connect while %s", state)
	}
	c.state = StateConnecting
	token := c.token
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, c.connectURL(token))
	if err != nil {
		c.setState(StateDisconnected)
		return &ConnectionError{URL: c.baseURL, Err: err}
	}

	connCtx, cancel := context.WithCancel(context.Background())
	current := &connection{conn: conn, cancel: cancel}
	ticker := c.clock.NewTicker(HeartbeatInterval)

	c.mu.Lock()
	c.conn = current
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Info("socket connected", "url", c.baseURL)
	c.openHandlers.emit(struct{}{})

	current.wg.Add(2)
	go func() {
		defer current.wg.Done()
		c.heartbeat(connCtx, ticker)
	}()
	go func() {
		defer current.wg.Done()
		c.readLoop(connCtx, current)
	}()
	return nil
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the stored token: the one from the last auth packet, or
// the configured one before any arrived.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Username returns the acting account name.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// OnlineUsers returns a copy of the last ulist received.
func (c *Client) OnlineUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.onlineUsers...)
}

// auth is the credential for wrappers built from inbound packets.
func (c *Client) auth() messaging.Auth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messaging.Auth(c.token, c.username)
}

// Send writes one packet. It fails with ErrNotOpen when there is no
// open connection and with *ConnectionError when the write fails.
func (c *Client) Send(ctx context.Context, packet Packet) error {
	c.mu.Lock()
	current, state := c.conn, c.state
	c.mu.Unlock()
	if state != StateOpen || current == nil {
		return fmt.Errorf("socket: send %s: %w", packet.Cmd, ErrNotOpen)
	}

	data, err := json.Marshal(packet)
	if err != nil {
		return fmt.Errorf("socket: encoding %s packet: %w", packet.Cmd, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := current.conn.WriteMessage(ctx, data); err != nil {
		return &ConnectionError{URL: c.baseURL, Err: err}
	}
	if c.recorder != nil {
		c.recorder.RecordFrame(false, data)
	}
	return nil
}

// Request sends packet and waits for the inbound packet carrying the
// same listener id. An empty Listener is filled with a fresh UUID.
func (c *Client) Request(ctx context.Context, packet Packet) (Packet, error) {
	if packet.Listener == "" {
		packet.Listener = uuid.NewString()
	}
	response := make(chan Packet, 1)

	c.pendingMu.Lock()
	if _, exists := c.pending[packet.Listener]; exists {
		c.pendingMu.Unlock()
		return Packet{}, fmt.Errorf("socket: listener %q already pending", packet.Listener)
	}
	c.pending[packet.Listener] = response
	c.pendingMu.Unlock()
	defer c.forgetPending(packet.Listener, response)

	if err := c.Send(ctx, packet); err != nil {
		return Packet{}, err
	}
	select {
	case reply := <-response:
		return reply, nil
	case <-ctx.Done():
		return Packet{}, fmt.Errorf("socket: waiting for %s response: %w", packet.Cmd, ctx.Err())
	}
}

// forgetPending removes the entry for id if it still belongs to
// response.
func (c *Client) forgetPending(id string, response chan Packet) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending[id] == response {
		delete(c.pending, id)
	}
}

// PendingRequests returns the number of requests awaiting a response.
func (c *Client) PendingRequests() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

// fulfill completes and removes the request waiting on packet's
// listener id.
func (c *Client) fulfill(packet Packet) {
	c.pendingMu.Lock()
	response, ok := c.pending[packet.Listener]
	if ok {
		delete(c.pending, packet.Listener)
	}
	c.pendingMu.Unlock()
	if ok {
		response <- packet
	}
}

// Disconnect closes the connection, waits for its goroutines to exit,
// and fires OnClose. Idempotent.
func (c *Client) Disconnect() {
	if c.teardown() {
		c.closeHandlers.emit(nil)
	}
}

// Reconnect tears down the current connection, if any, and dials again
// with the current stored token.
func (c *Client) Reconnect(ctx context.Context) error {
	c.metrics.reconnects.Inc()
	if c.teardown() {
		c.closeHandlers.emit(nil)
	}
	c.logger.Info("socket reconnecting", "url", c.baseURL)
	return c.Connect(ctx)
}

// teardown detaches and closes the current connection and waits for
// its heartbeat and read loop to exit. It reports whether there was a
// connection to close.
func (c *Client) teardown() bool {
	c.mu.Lock()
	current := c.conn
	if current == nil {
		if c.state != StateConnecting {
			c.state = StateClosed
		}
		c.mu.Unlock()
		return false
	}
	c.conn = nil
	c.state = StateClosing
	c.mu.Unlock()

	current.cancel()
	current.conn.Close()
	current.wg.Wait()

	c.setState(StateClosed)
	c.logger.Info("socket disconnected", "url", c.baseURL)
	return true
}

func (c *Client) heartbeat(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() != StateOpen {
				continue
			}
			if err := c.Send(ctx, pingPacket); err != nil {
				c.logger.Debug("socket heartbeat failed", "error", err)
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, current *connection) {
	for {
		data, err := current.conn.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Torn down by Disconnect or Reconnect.
				return
			}
			c.connectionLost(current, err)
			return
		}
		if c.recorder != nil {
			c.recorder.RecordFrame(true, data)
		}
		c.dispatch(data)
	}
}

// connectionLost handles a connection the server or network closed.
// OnClose receives nil for a normal close.
func (c *Client) connectionLost(current *connection, err error) {
	c.mu.Lock()
	if c.conn != current {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateClosed
	c.mu.Unlock()

	current.cancel()
	current.conn.Close()

	if netutil.IsExpectedCloseError(err) {
		c.logger.Info("socket closed by server", "url", c.baseURL)
		err = nil
	} else {
		c.logger.Warn("socket connection lost", "url", c.baseURL, "error", err)
		err = &ConnectionError{URL: c.baseURL, Err: err}
	}
	c.closeHandlers.emit(err)
}

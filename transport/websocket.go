// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultWriteWait bounds a single frame write when the caller's
	// context has no earlier deadline.
	DefaultWriteWait = 10 * time.Second

	// DefaultHandshakeTimeout bounds the opening HTTP upgrade.
	DefaultHandshakeTimeout = 15 * time.Second

	// DefaultReadLimit is the largest inbound frame accepted. Auth
	// packets carry the account's chats and relationships and can be
	// large.
	DefaultReadLimit = 8 << 20
)

// Compile-time interface checks.
var (
	_ Dialer = (*WebSocketDialer)(nil)
	_ Conn   = (*webSocketConn)(nil)
)

// WebSocketDialer dials WebSocket servers. The zero value is usable.
type WebSocketDialer struct {
	// Header is sent with the upgrade request (User-Agent, Origin).
	Header http.Header

	// HandshakeTimeout defaults to DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// WriteWait defaults to DefaultWriteWait.
	WriteWait time.Duration

	// ReadLimit defaults to DefaultReadLimit.
	ReadLimit int64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dial performs the WebSocket handshake with url.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	handshakeTimeout := d.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	writeWait := d.WriteWait
	if writeWait <= 0 {
		writeWait = DefaultWriteWait
	}
	readLimit := d.ReadLimit
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, response, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("transport: websocket handshake with %s: status %d: %w", redactQuery(url), response.StatusCode, err)
		}
		return nil, fmt.Errorf("transport: websocket dial %s: %w", redactQuery(url), err)
	}
	conn.SetReadLimit(readLimit)

	logger.Debug("websocket connected", "url", redactQuery(url))
	return &webSocketConn{conn: conn, writeWait: writeWait}, nil
}

type webSocketConn struct {
	conn      *websocket.Conn
	writeWait time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *webSocketConn) ReadMessage(ctx context.Context) ([]byte, error) {
	// gorilla reads cannot be interrupted except by closing the
	// connection.
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (c *webSocketConn) WriteMessage(ctx context.Context, data []byte) error {
	deadline := time.Now().Add(c.writeWait)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal-closure frame, best effort, then closes the
// underlying network connection.
func (c *webSocketConn) Close() error {
	c.closeOnce.Do(func() {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

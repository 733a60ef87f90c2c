// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the one-call entry point to Meower. Login, Signup
// and Resume authenticate over REST, open the socket with the session's
// token, and wire socket events into the session caches:
//
//   - auth: the token replaces the session's, the account is cached,
//     and every listed chat is cached.
//   - create_chat caches the chat; delete_chat evicts it.
//   - post and update_post cache the post; delete_post evicts it.
//
// Login and Resume return once the server's auth packet has arrived, so
// the returned session carries the token the server issued for this
// connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/meower/lib/clock"
	"github.com/bureau-foundation/meower/lib/config"
	"github.com/bureau-foundation/meower/lib/secret"
	"github.com/bureau-foundation/meower/messaging"
	"github.com/bureau-foundation/meower/socket"
	"github.com/bureau-foundation/meower/transport"
	"github.com/bureau-foundation/meower/uploads"
)

// Options configures Login, Signup and Resume. Zero URLs select the
// public Meower deployment.
type Options struct {
	Username string

	// Password is read, not closed; the caller keeps ownership.
	Password *secret.Buffer

	// Captcha is the captcha response for Signup.
	Captcha string

	APIURL     string
	SocketURL  string
	UploadsURL string

	HTTPClient *http.Client
	Dialer     transport.Dialer
	Clock      clock.Clock
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Recorder   socket.Recorder
}

func (o Options) withDefaults() Options {
	if o.APIURL == "" {
		o.APIURL = config.DefaultAPIURL
	}
	if o.SocketURL == "" {
		o.SocketURL = config.DefaultSocketURL
	}
	if o.UploadsURL == "" {
		o.UploadsURL = config.DefaultUploadsURL
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Client is an authenticated REST session with a connected socket.
type Client struct {
	session *messaging.Session
	socket  *socket.Client
	options Options
	logger  *slog.Logger

	mu      sync.Mutex
	uploads *uploads.Client
}

// Login authenticates with username and password, connects the socket,
// and waits for the server's auth packet.
func Login(ctx context.Context, options Options) (*Client, error) {
	options = options.withDefaults()
	api, err := newAPI(options)
	if err != nil {
		return nil, err
	}
	session, err := api.Login(ctx, options.Username, options.Password)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return connect(ctx, options, api, session, true)
}

// Signup creates an account, then connects the socket with the signup
// token. It does not wait for the auth packet.
func Signup(ctx context.Context, options Options) (*Client, error) {
	options = options.withDefaults()
	api, err := newAPI(options)
	if err != nil {
		return nil, err
	}
	session, err := api.Signup(ctx, options.Username, options.Password, options.Captcha)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return connect(ctx, options, api, session, false)
}

// Resume connects with a token saved from an earlier session. The
// account is filled in from the auth packet. options.Password is
// ignored.
func Resume(ctx context.Context, options Options, token string) (*Client, error) {
	options = options.withDefaults()
	api, err := newAPI(options)
	if err != nil {
		return nil, err
	}
	session, err := api.SessionFromToken(options.Username, token)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	client, err := connect(ctx, options, api, session, true)
	if err != nil {
		return nil, err
	}
	if session.Account() == nil {
		client.Close()
		return nil, fmt.Errorf("client: auth packet carried no account")
	}
	return client, nil
}

func newAPI(options Options) (*messaging.Client, error) {
	api, err := messaging.NewClient(messaging.ClientConfig{
		APIURL:     options.APIURL,
		HTTPClient: options.HTTPClient,
		Logger:     options.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return api, nil
}

func connect(ctx context.Context, options Options, api *messaging.Client, session *messaging.Session, waitForAuth bool) (*Client, error) {
	sock, err := socket.New(socket.Config{
		SocketURL:  options.SocketURL,
		Token:      session.Token(),
		Username:   session.Username(),
		Messaging:  api,
		Dialer:     options.Dialer,
		Clock:      options.Clock,
		Logger:     options.Logger,
		Registerer: options.Registerer,
		Recorder:   options.Recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	client := &Client{
		session: session,
		socket:  sock,
		options: options,
		logger:  options.Logger,
	}
	authenticated := make(chan struct{}, 1)
	closed := make(chan error, 1)
	client.wire(authenticated)
	stopWatchingClose := sock.OnClose(func(err error) {
		select {
		case closed <- err:
		default:
		}
	})
	defer stopWatchingClose()

	if err := sock.Connect(ctx); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	if waitForAuth {
		select {
		case <-authenticated:
		case err := <-closed:
			if err == nil {
				err = errors.New("closed before auth")
			}
			return nil, fmt.Errorf("client: waiting for auth: %w", &socket.ConnectionError{
				URL: strings.TrimRight(options.SocketURL, "/"),
				Err: err,
			})
		case <-ctx.Done():
			sock.Disconnect()
			return nil, fmt.Errorf("client: waiting for auth: %w", ctx.Err())
		}
	}

	if err := client.refreshUploads(); err != nil {
		sock.Disconnect()
		return nil, err
	}
	return client, nil
}

// wire subscribes the session caches to socket events. authenticated
// receives a value after each auth packet has been applied.
func (c *Client) wire(authenticated chan<- struct{}) {
	c.socket.OnAuth(func(event socket.AuthEvent) {
		c.session.SetToken(event.Token)
		if len(event.Account) > 0 {
			if err := c.session.SetAccount(event.Account); err != nil {
				c.logger.Warn("auth packet account rejected", "error", err)
			}
		}
		for _, record := range event.Chats {
			if _, err := c.session.CacheChat(record); err != nil {
				c.logger.Debug("auth packet chat rejected", "error", err)
			}
		}
		if err := c.refreshUploads(); err != nil {
			c.logger.Warn("updating uploads token", "error", err)
		}
		select {
		case authenticated <- struct{}{}:
		default:
		}
	})
	c.socket.OnChatCreate(func(chat *messaging.Chat) {
		c.session.CacheChat(chat.Raw())
	})
	c.socket.OnChatDelete(func(deletion socket.ChatDeletion) {
		c.session.ForgetChat(deletion.ChatID)
	})
	c.socket.OnPost(func(post *messaging.Post) {
		c.session.CachePost(post.Raw())
	})
	c.socket.OnPostUpdate(func(post *messaging.Post) {
		c.session.CachePost(post.Raw())
	})
	c.socket.OnPostDelete(func(deletion socket.PostDeletion) {
		c.session.ForgetPost(deletion.PostID)
	})
}

// refreshUploads rebuilds the uploads client with the session's current
// token.
func (c *Client) refreshUploads() error {
	uploadsClient, err := uploads.New(uploads.Config{
		BaseURL:    c.options.UploadsURL,
		Token:      c.session.Token(),
		HTTPClient: c.options.HTTPClient,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	c.mu.Lock()
	c.uploads = uploadsClient
	c.mu.Unlock()
	return nil
}

// Session returns the REST session.
func (c *Client) Session() *messaging.Session { return c.session }

// Socket returns the socket client, for registering event handlers.
func (c *Client) Socket() *socket.Client { return c.socket }

// Uploads returns a file server client carrying the current token.
func (c *Client) Uploads() *uploads.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploads
}

// Close disconnects the socket.
func (c *Client) Close() { c.socket.Disconnect() }

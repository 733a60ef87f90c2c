// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/meower/lib/netutil"
	"github.com/bureau-foundation/meower/lib/secret"
	"github.com/bureau-foundation/meower/lib/version"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// APIURL is the REST base URL (e.g., "https://api.meower.org").
	APIURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is an unauthenticated Meower API client. It is shared by every
// Session and wrapper created from it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new unauthenticated client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.APIURL == "" {
		return nil, fmt.Errorf("messaging: APIURL is required")
	}
	// Request URLs are built by concatenation; parsing here only rejects
	// malformed input early.
	if _, err := url.Parse(config.APIURL); err != nil {
		return nil, fmt.Errorf("messaging: invalid APIURL %q: %w", config.APIURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.APIURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// authResponse is the body of /auth/login and /signup.
type authResponse struct {
	Token   string          `json:"token"`
	Account json.RawMessage `json:"account"`
}

// Login authenticates with username and password. The password buffer
// is read but not closed; the caller keeps ownership.
func (c *Client) Login(ctx context.Context, username string, password *secret.Buffer) (*Session, error) {
	if username == "" {
		return nil, fmt.Errorf("messaging: username is required for login")
	}
	if password == nil {
		return nil, fmt.Errorf("messaging: password is required for login")
	}

	request := map[string]string{
		"username": username,
		"password": password.String(),
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/auth/login", "", request)
	if err != nil {
		return nil, fmt.Errorf("messaging: login failed: %w", err)
	}
	session, err := c.sessionFromAuth(body)
	if err != nil {
		return nil, fmt.Errorf("messaging: login failed: %w", err)
	}

	c.logger.Info("logged in to meower", "username", session.Username())
	return session, nil
}

// Signup creates an account and returns a session for it. captcha is
// the captcha response key; servers without captcha accept "".
func (c *Client) Signup(ctx context.Context, username string, password *secret.Buffer, captcha string) (*Session, error) {
	if username == "" {
		return nil, fmt.Errorf("messaging: username is required for signup")
	}
	if password == nil {
		return nil, fmt.Errorf("messaging: password is required for signup")
	}

	request := map[string]string{
		"username": username,
		"password": password.String(),
		"captcha":  captcha,
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/signup", "", request)
	if err != nil {
		return nil, fmt.Errorf("messaging: signup failed: %w", err)
	}
	session, err := c.sessionFromAuth(body)
	if err != nil {
		return nil, fmt.Errorf("messaging: signup failed: %w", err)
	}

	c.logger.Info("registered meower account", "username", session.Username())
	return session, nil
}

func (c *Client) sessionFromAuth(body []byte) (*Session, error) {
	var response authResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, shapeError("auth response", body, err)
	}
	if response.Token == "" {
		return nil, missingField("auth response", "token", body)
	}
	account, err := NewUser(c.Auth(response.Token, ""), response.Account)
	if err != nil {
		return nil, err
	}
	return newSession(c, response.Token, account), nil
}

// SessionFromToken creates a session from a previously issued token.
// The account is unknown until SetAccount is called, typically with the
// account delivered by the socket's auth event. username is used for
// wrappers created before then.
func (c *Client) SessionFromToken(username, token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("messaging: token is required")
	}
	session := newSession(c, token, nil)
	session.username = username
	return session, nil
}

// Auth binds a token and acting username to this client for use by
// entity wrappers.
func (c *Client) Auth(token, username string) Auth {
	return Auth{client: c, token: token, username: username}
}

// doRequest performs one JSON request. path is appended to the base URL
// verbatim and may carry a query string. An empty token sends no token
// header. A non-2xx status or an error-flagged body returns *APIError.
func (c *Client) doRequest(ctx context.Context, method, path, token string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("token", token)
	}
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	flagged, errorType := errorFlagged(responseBody)
	success := response.StatusCode >= 200 && response.StatusCode < 300
	if success && !flagged {
		return responseBody, nil
	}

	c.logger.Debug("meower api error",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"type", errorType,
	)
	return nil, &APIError{
		Type:       errorType,
		StatusCode: response.StatusCode,
		Body:       responseBody,
	}
}

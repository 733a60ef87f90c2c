// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package uploads is a client for the Meower file server, which stores
// post attachments, chat icons, stickers and emojis. Uploaded files are
// referenced from posts and chats by the id the server assigns.
package uploads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/meower/lib/netutil"
	"github.com/bureau-foundation/meower/lib/version"
	"github.com/bureau-foundation/meower/messaging"
)

// Category selects the bucket a file is uploaded to.
type Category string

const (
	CategoryAttachments Category = "attachments"
	CategoryIcons       Category = "icons"
	CategoryStickers    Category = "stickers"
	CategoryEmojis      Category = "emojis"
)

// ParseCategory validates a category name.
func ParseCategory(name string) (Category, error) {
	switch category := Category(name); category {
	case CategoryAttachments, CategoryIcons, CategoryStickers, CategoryEmojis:
		return category, nil
	}
	return "", fmt.Errorf("uploads: unknown category %q (want attachments, icons, stickers or emojis)", name)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the file server, e.g. https://uploads.meower.org.
	BaseURL string

	// Token is sent as a bearer token.
	Token string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client uploads files with one account's token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New validates config and returns a Client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("uploads: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("uploads: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if config.Token == "" {
		return nil, fmt.Errorf("uploads: Token is required")
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
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Upload sends content as a multipart "file" field named filename and
// returns the stored attachment. content is streamed, not buffered. A
// non-2xx response returns *messaging.APIError.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader, category Category) (*messaging.Attachment, error) {
	if filename == "" {
		return nil, fmt.Errorf("uploads: filename is required")
	}
	if category == "" {
		category = CategoryAttachments
	}

	bodyReader, bodyWriter := io.Pipe()
	form := multipart.NewWriter(bodyWriter)
	go func() {
		part, err := form.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = form.Close()
		}
		bodyWriter.CloseWithError(err)
	}()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+string(category), bodyReader)
	if err != nil {
		bodyReader.Close()
		return nil, fmt.Errorf("uploads: creating request: %w", err)
	}
	request.Header.Set("Content-Type", form.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("uploads: uploading %s: %w", filename, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("uploads: reading response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		c.logger.Debug("upload rejected", "filename", filename, "category", category, "status", response.StatusCode)
		apiErr := &messaging.APIError{StatusCode: response.StatusCode, Body: body}
		var typed struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(body, &typed) == nil {
			apiErr.Type = typed.Type
		}
		return nil, fmt.Errorf("uploads: uploading %s: %w", filename, apiErr)
	}

	var attachment messaging.Attachment
	if err := json.Unmarshal(body, &attachment); err != nil {
		return nil, fmt.Errorf("uploads: decoding response: %w", &messaging.ShapeError{Entity: "attachment", Body: body})
	}
	if attachment.ID == "" {
		return nil, fmt.Errorf("uploads: decoding response: %w", &messaging.ShapeError{Entity: "attachment", Field: "id", Body: body})
	}
	if attachment.Filename == "" {
		attachment.Filename = filename
	}

	c.logger.Info("uploaded file", "id", attachment.ID, "category", category, "size", attachment.Size)
	return &attachment, nil
}

// FileURL returns where a stored file can be downloaded:
// <base>/<category>/<id>/<filename>.
func (c *Client) FileURL(attachment *messaging.Attachment, category Category) string {
	if category == "" {
		category = CategoryAttachments
	}
	return c.baseURL + "/" + string(category) + "/" + url.PathEscape(attachment.ID) + "/" + url.PathEscape(attachment.Filename)
}

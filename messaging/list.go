// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"net/http"
)

// autogetRecords extracts the record array from a paginated list
// response: {"autoget": [...], "page#": n, "pages": m}.
func autogetRecords(entity string, body []byte) ([]json.RawMessage, error) {
	var envelope struct {
		Autoget *[]json.RawMessage `json:"autoget"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, shapeError(entity+" list", body, err)
	}
	if envelope.Autoget == nil {
		return nil, missingField(entity+" list", "autoget", body)
	}
	return *envelope.Autoget, nil
}

func fetchPostList(ctx context.Context, auth Auth, path string) ([]*Post, error) {
	body, err := auth.client.doRequest(ctx, http.MethodGet, path, auth.token, nil)
	if err != nil {
		return nil, err
	}
	records, err := autogetRecords("post", body)
	if err != nil {
		return nil, err
	}
	posts := make([]*Post, 0, len(records))
	for _, record := range records {
		post, err := NewPost(auth, record)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func pageOrFirst(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "net/url"

// redactQuery strips the query string from a URL for logging. The
// socket URL carries the session token as a query parameter.
func redactQuery(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	if parsed.RawQuery != "" {
		parsed.RawQuery = "REDACTED"
	}
	return parsed.String()
}

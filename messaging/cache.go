// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"encoding/json"
	"sync"
)

// recordCache is an identity map from id to a private copy of a raw
// server record. Writers overwrite unconditionally; whichever path
// stores last wins.
type recordCache struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
}

func newRecordCache() *recordCache {
	return &recordCache{records: make(map[string]json.RawMessage)}
}

// get returns a copy of the record cached under id.
func (c *recordCache) get(id string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.records[id]
	if !ok {
		return nil, false
	}
	return bytes.Clone(record), true
}

func (c *recordCache) set(id string, record json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[id] = bytes.Clone(record)
}

func (c *recordCache) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
}

func (c *recordCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

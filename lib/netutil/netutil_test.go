// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestReadResponse(t *testing.T) {
	t.Run("body", func(t *testing.T) {
		data, err := ReadResponse(strings.NewReader(`{"error":false}`))
		if err != nil {
			t.Fatalf("ReadResponse: %v", err)
		}
		if string(data) != `{"error":false}` {
			t.Errorf("got %q", data)
		}
	})

	t.Run("empty", func(t *testing.T) {
		data, err := ReadResponse(bytes.NewReader(nil))
		if err != nil {
			t.Fatalf("ReadResponse: %v", err)
		}
		if len(data) != 0 {
			t.Errorf("expected empty body, got %d bytes", len(data))
		}
	})

	t.Run("read error", func(t *testing.T) {
		if _, err := ReadResponse(failingReader{}); err == nil {
			t.Fatal("expected error from failing reader")
		}
	})
}

func TestErrorBody(t *testing.T) {
	if got := ErrorBody(strings.NewReader("bad gateway")); got != "bad gateway" {
		t.Errorf("ErrorBody = %q", got)
	}
	if got := ErrorBody(failingReader{}); got != "" {
		t.Errorf("ErrorBody on failing reader = %q, want empty", got)
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading frame: %w", io.EOF), true},
		{"net closed", net.ErrClosed, true},
		{"closed pipe", io.ErrClosedPipe, true},
		{"broken pipe", syscall.EPIPE, true},
		{"reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"refused", syscall.ECONNREFUSED, false},
		{"other", errors.New("boom"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

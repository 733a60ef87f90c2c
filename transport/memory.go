// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Pipe returns two connected in-memory Conns. A frame written to one is
// read from the other. Writes block until the peer reads. Closing
// either end closes both; pending and later operations then fail with
// io.ErrClosedPipe.
func Pipe() (Conn, Conn) {
	state := &pipeState{closed: make(chan struct{})}
	aToB := make(chan []byte)
	bToA := make(chan []byte)
	return &pipeConn{state: state, in: bToA, out: aToB},
		&pipeConn{state: state, in: aToB, out: bToA}
}

type pipeState struct {
	once   sync.Once
	closed chan struct{}
}

type pipeConn struct {
	state *pipeState
	in    <-chan []byte
	out   chan<- []byte
}

func (p *pipeConn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.state.closed:
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeConn) WriteMessage(ctx context.Context, data []byte) error {
	select {
	case <-p.state.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- bytes.Clone(data):
		return nil
	case <-p.state.closed:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) Close() error {
	p.state.once.Do(func() { close(p.state.closed) })
	return nil
}

// Accepted is the server side of one connection made through a
// MemoryDialer.
type Accepted struct {
	// URL is the URL the client dialed.
	URL string

	// Conn is the server end of the pipe.
	Conn Conn
}

// MemoryDialer dials in-memory pipes and queues each server end for
// Accept. Tests use it to play a Meower server.
type MemoryDialer struct {
	accepted chan Accepted

	mu   sync.Mutex
	fail error
}

// Compile-time interface check.
var _ Dialer = (*MemoryDialer)(nil)

// NewMemoryDialer returns a dialer whose server ends are retrieved with
// Accept.
func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{accepted: make(chan Accepted, 16)}
}

// FailWith makes every later Dial return err until it is called with
// nil.
func (d *MemoryDialer) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

// Dial creates a pipe and queues its server end.
func (d *MemoryDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	fail := d.fail
	d.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	client, server := Pipe()
	select {
	case d.accepted <- Accepted{URL: url, Conn: server}:
		return client, nil
	case <-ctx.Done():
		client.Close()
		return nil, ctx.Err()
	}
}

// Accept returns the server end of the next dialed connection.
func (d *MemoryDialer) Accept(ctx context.Context) (Accepted, error) {
	select {
	case accepted := <-d.accepted:
		return accepted, nil
	case <-ctx.Done():
		return Accepted{}, ctx.Err()
	}
}

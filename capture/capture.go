// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture records socket frames to a file and plays them back.
//
// A capture is a zstd stream of CBOR-encoded [Frame] records, one per
// frame, in the order the socket saw them. [Writer] implements
// socket.Recorder, so a capture is taken by setting it as the socket's
// Recorder. [Replay] feeds the inbound frames of a capture into the
// server end of a transport.Pipe, so a recorded session can be
// dispatched again through a real socket.Client.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/meower/lib/clock"
	"github.com/bureau-foundation/meower/lib/codec"
	"github.com/bureau-foundation/meower/transport"
)

// Frame is one recorded socket frame.
type Frame struct {
	// At is the capture time in unix nanoseconds.
	At int64 `cbor:"at"`

	// Inbound is true for frames read from the server.
	Inbound bool `cbor:"in"`

	Data []byte `cbor:"data"`
}

// Writer appends frames to a capture. Safe for concurrent use.
type Writer struct {
	clock clock.Clock

	mu      sync.Mutex
	zstd    *zstd.Encoder
	encoder *codec.Encoder
	err     error
	count   int
}

// NewWriter starts a capture on w. clk stamps frames; nil means
// clock.Real(). Close must be called to flush the stream; it does not
// close w.
func NewWriter(w io.Writer, clk clock.Clock) (*Writer, error) {
	if clk == nil {
		clk = clock.Real()
	}
	compressor, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("capture: creating zstd writer: %w", err)
	}
	return &Writer{
		clock:   clk,
		zstd:    compressor,
		encoder: codec.NewEncoder(compressor),
	}, nil
}

// RecordFrame appends a frame stamped with the current time. The first
// failure is kept and reported by Err and Close; later frames are
// discarded.
func (w *Writer) RecordFrame(inbound bool, data []byte) {
	w.Write(Frame{At: w.clock.Now().UnixNano(), Inbound: inbound, Data: data})
}

// Write appends frame.
func (w *Writer) Write(frame Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if err := w.encoder.Encode(frame); err != nil {
		w.err = fmt.Errorf("capture: writing frame: %w", err)
		return w.err
	}
	w.count++
	return nil
}

// Count returns the number of frames written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Err returns the first write failure.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close flushes the compressed stream.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.zstd.Close(); err != nil && w.err == nil {
		w.err = fmt.Errorf("capture: closing zstd stream: %w", err)
	}
	return w.err
}

// Reader reads frames from a capture.
type Reader struct {
	zstd    *zstd.Decoder
	decoder *codec.Decoder
}

// NewReader opens a capture stored in r.
func NewReader(r io.Reader) (*Reader, error) {
	decompressor, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("capture: creating zstd reader: %w", err)
	}
	return &Reader{zstd: decompressor, decoder: codec.NewDecoder(decompressor)}, nil
}

// Next returns the next frame, or io.EOF after the last one. A capture
// cut off mid-frame returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (Frame, error) {
	var frame Frame
	if err := r.decoder.Decode(&frame); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("capture: reading frame: %w", err)
	}
	return frame, nil
}

// Close releases the decompressor.
func (r *Reader) Close() { r.zstd.Close() }

// Replay writes every inbound frame of r to conn in order and returns
// how many it wrote. Outbound frames are skipped.
func Replay(ctx context.Context, r *Reader, conn transport.Conn) (int, error) {
	replayed := 0
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			return replayed, nil
		}
		if err != nil {
			return replayed, err
		}
		if !frame.Inbound {
			continue
		}
		if err := conn.WriteMessage(ctx, frame.Data); err != nil {
			return replayed, fmt.Errorf("capture: replaying frame %d: %w", replayed+1, err)
		}
		replayed++
	}
}

// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package framing implements the length-prefixed, non-blocking frame codec
// that sits directly on top of a raw byte stream: a 4-byte big-endian length
// header followed by that many payload bytes.
//
// Semantics and design:
//   - Non-blocking first: ErrWouldBlock is a control-flow signal, not a
//     failure. Every Advance call performs at most one I/O attempt and
//     returns promptly; the caller decides when to retry.
//   - Incremental state: IncomingFrame and OutgoingFrame are small state
//     machines with an explicit State() tag. Each Advance call consumes one
//     non-blocking read or write and returns the bytes of progress made.
//   - Wire format: [len uint32 big-endian][len bytes payload], with
//     1 <= len < MaxFrameSize.
package framing

import (
	"errors"
	"fmt"
)

// ErrWouldBlock means the underlying stream has no progress available right
// now. It is an expected, non-failure control-flow signal: the frame's state
// is unchanged and the caller should retry on the next tick.
var ErrWouldBlock = errors.New("framing: would block")

// ErrStreamClosed means a read on the underlying stream reported io.EOF, i.e.
// the peer closed its side mid-frame (or at a frame boundary). Frame-fatal.
var ErrStreamClosed = errors.New("framing: stream closed")

// ErrZeroSizedPacket is returned by NewOutgoingFrame when asked to send an
// empty payload; the send side never produces a zero-length frame.
var ErrZeroSizedPacket = errors.New("framing: refusing to send a zero-length payload")

// FrameSizeError reports a declared frame length outside [1, MaxFrameSize).
// Frame-fatal: the connection that received it must be closed, since the
// reader has no way to resynchronize with the byte stream.
type FrameSizeError struct {
	Size uint32
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("framing: declared frame size %d is out of range", e.Size)
}

// StreamError wraps any I/O error surfaced by the underlying stream other
// than would-block or a clean close. Frame-fatal.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return fmt.Sprintf("framing: stream error: %v", e.Err) }
func (e *StreamError) Unwrap() error { return e.Err }

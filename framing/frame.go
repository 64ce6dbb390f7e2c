// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing

import (
	"encoding/binary"
	"io"
)

const (
	// HeaderLen is the size in bytes of the frame length prefix.
	HeaderLen = 4

	// MaxFrameSize is the hard upper bound on a declared payload length.
	// A declared length >= MaxFrameSize is frame-fatal.
	MaxFrameSize = 1 << 16

	// MaxSendChunk is the maximum number of bytes attempted per write.
	MaxSendChunk = 1024
)

// IncomingState is the tag of an IncomingFrame's current state.
type IncomingState uint8

const (
	IncomingReadingSize IncomingState = iota
	IncomingReadingPayload
	IncomingComplete
	IncomingFailed
)

// IncomingFrame drives the receive side of the framing protocol: read a
// 4-byte big-endian length, then read that many payload bytes. One instance
// tracks exactly one in-flight frame; call Payload once State() reports
// IncomingComplete, or Err once it reports IncomingFailed.
type IncomingFrame struct {
	state IncomingState

	header     [HeaderLen]byte
	headerRead int
	length     uint32

	buffer   []byte
	received int

	err error
}

// NewIncomingFrame returns a fresh frame at IncomingReadingSize.
func NewIncomingFrame() *IncomingFrame {
	return &IncomingFrame{state: IncomingReadingSize}
}

// State reports the frame's current state.
func (f *IncomingFrame) State() IncomingState { return f.state }

// Payload returns the completed frame's payload. Only valid once State()
// reports IncomingComplete.
func (f *IncomingFrame) Payload() []byte { return f.buffer }

// Err returns the reason the frame failed. Only valid once State() reports
// IncomingFailed.
func (f *IncomingFrame) Err() error { return f.err }

// Advance performs at most one read on r and returns the number of bytes
// consumed. It returns ErrWouldBlock (state unchanged) when the stream has
// no data available right now, or a frame-fatal error when the frame
// transitions to IncomingFailed. A nil error with State() still not
// IncomingComplete means a partial read made progress; call Advance again.
func (f *IncomingFrame) Advance(r io.Reader) (int, error) {
	switch f.state {
	case IncomingReadingSize:
		return f.advanceSize(r)
	case IncomingReadingPayload:
		return f.advancePayload(r)
	default:
		return 0, nil
	}
}

func (f *IncomingFrame) fail(err error) (int, error) {
	f.state = IncomingFailed
	f.err = err
	return 0, err
}

func (f *IncomingFrame) advanceSize(r io.Reader) (int, error) {
	n, err := readOnce(r, f.header[f.headerRead:HeaderLen])
	f.headerRead += n

	if err != nil {
		if err == ErrWouldBlock {
			return n, ErrWouldBlock
		}
		if err == io.EOF {
			return n, f.failOrPartial()
		}
		_, err = f.fail(&StreamError{Err: err})
		return n, err
	}

	if f.headerRead < HeaderLen {
		return n, nil
	}

	f.length = binary.BigEndian.Uint32(f.header[:])
	if f.length == 0 || f.length >= MaxFrameSize {
		_, err := f.fail(&FrameSizeError{Size: f.length})
		return n, err
	}
	f.buffer = make([]byte, f.length)
	f.received = 0
	f.state = IncomingReadingPayload
	return n, nil
}

func (f *IncomingFrame) advancePayload(r io.Reader) (int, error) {
	n, err := readOnce(r, f.buffer[f.received:])
	f.received += n

	if err != nil {
		if err == ErrWouldBlock {
			return n, ErrWouldBlock
		}
		if err == io.EOF {
			return n, f.failOrPartial()
		}
		_, err = f.fail(&StreamError{Err: err})
		return n, err
	}

	if f.received == len(f.buffer) {
		f.state = IncomingComplete
	}
	return n, nil
}

// failOrPartial is called once a read reports io.EOF: any bytes already
// copied into the header/payload buffer this call were applied before this
// is reached, so a frame that is still incomplete after an EOF can never be
// completed; it is always a StreamClosed failure, per spec.
func (f *IncomingFrame) failOrPartial() error {
	_, err := f.fail(ErrStreamClosed)
	return err
}

// AdvanceUntilWouldBlock drives Advance repeatedly until the frame reaches a
// terminal state (Complete/Failed) or a read reports ErrWouldBlock. This is
// the primary entry point used by Receiver.
func (f *IncomingFrame) AdvanceUntilWouldBlock(r io.Reader) error {
	for {
		_, err := f.Advance(r)
		switch f.state {
		case IncomingComplete:
			return nil
		case IncomingFailed:
			return f.err
		}
		if err == ErrWouldBlock {
			return ErrWouldBlock
		}
	}
}

// OutgoingState is the tag of an OutgoingFrame's current state.
type OutgoingState uint8

const (
	OutgoingPending OutgoingState = iota
	OutgoingDone
	OutgoingFailed
)

// OutgoingFrame drives the send side of the framing protocol: write a
// 4-byte big-endian length followed by the payload, in chunks bounded by
// MaxSendChunk.
type OutgoingFrame struct {
	state  OutgoingState
	buffer []byte
	sent   int
	err    error
}

// NewOutgoingFrame builds the wire buffer for payload and returns a frame in
// OutgoingPending. An empty payload is rejected: the send side never
// produces a zero-length frame.
func NewOutgoingFrame(payload []byte) *OutgoingFrame {
	if len(payload) == 0 {
		return &OutgoingFrame{state: OutgoingFailed, err: ErrZeroSizedPacket}
	}
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[:HeaderLen], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	return &OutgoingFrame{state: OutgoingPending, buffer: buf}
}

// State reports the frame's current state.
func (f *OutgoingFrame) State() OutgoingState { return f.state }

// Err returns the reason the frame failed. Only valid once State() reports
// OutgoingFailed.
func (f *OutgoingFrame) Err() error { return f.err }

// Advance performs at most one write of size min(remaining, MaxSendChunk)
// and returns the number of bytes written.
func (f *OutgoingFrame) Advance(w io.Writer) (int, error) {
	if f.state != OutgoingPending {
		return 0, nil
	}

	remaining := len(f.buffer) - f.sent
	chunk := remaining
	if chunk > MaxSendChunk {
		chunk = MaxSendChunk
	}

	n, err := writeOnce(w, f.buffer[f.sent:f.sent+chunk])
	f.sent += n

	if err != nil {
		if err == ErrWouldBlock {
			return n, ErrWouldBlock
		}
		f.state = OutgoingFailed
		f.err = &StreamError{Err: err}
		return n, f.err
	}

	if f.sent == len(f.buffer) {
		f.state = OutgoingDone
	}
	return n, nil
}

// AdvanceUntilWouldBlock drives Advance repeatedly until the frame reaches a
// terminal state (Done/Failed) or a write reports ErrWouldBlock.
func (f *OutgoingFrame) AdvanceUntilWouldBlock(w io.Writer) error {
	for {
		_, err := f.Advance(w)
		switch f.state {
		case OutgoingDone:
			return nil
		case OutgoingFailed:
			return f.err
		}
		if err == ErrWouldBlock {
			return ErrWouldBlock
		}
	}
}

// readOnce performs exactly one Read call and guards against readers that
// violate the io.Reader contract by returning (0, nil) on a non-empty
// buffer, which would otherwise spin the state machine forever.
func readOnce(r io.Reader, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := r.Read(p)
	if n == 0 && err == nil {
		return 0, io.ErrNoProgress
	}
	return n, err
}

// writeOnce performs exactly one Write call and guards against writers that
// violate the io.Writer contract by returning (0, nil) on a non-empty
// buffer.
func writeOnce(w io.Writer, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := w.Write(p)
	if n == 0 && err == nil {
		return 0, io.ErrShortWrite
	}
	return n, err
}

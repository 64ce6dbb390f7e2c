// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package proto implements the frame multiplexers that sit above the
// framing codec: Receiver collects whole payloads off a byte stream,
// Sender queues whole payloads for transmission. Both drive the framing
// package's state machines one non-blocking step at a time.
//
// Grounded on rust_chat's packet_receiver.rs / packet_sender.rs, translated
// from Rust's owned Option<Packet> move semantics into a Go struct holding
// the in-flight frame by reference.
package proto

import (
	"io"

	"github.com/nbchat/chatmux/framing"
)

// Receiver drives a single IncomingFrame across repeated advances,
// collecting completed payloads into a FIFO queue. It owns exactly one
// in-flight frame at a time.
type Receiver struct {
	current   *framing.IncomingFrame
	completed [][]byte
}

// NewReceiver returns a Receiver with a fresh frame in progress.
func NewReceiver() *Receiver {
	return &Receiver{current: framing.NewIncomingFrame()}
}

// Advance drives the in-flight frame with AdvanceUntilWouldBlock. Every time
// a frame completes, its payload is enqueued and a fresh frame begins
// immediately, so a single Advance call may collect more than one payload
// before the stream blocks. A frame-fatal error is returned unchanged; the
// Receiver is not further usable once this happens.
func (r *Receiver) Advance(stream io.Reader) error {
	for {
		err := r.current.AdvanceUntilWouldBlock(stream)
		if err == framing.ErrWouldBlock {
			return nil
		}
		if err != nil {
			return err
		}

		// The frame completed: harvest its payload and start the next one.
		r.completed = append(r.completed, r.current.Payload())
		r.current = framing.NewIncomingFrame()
	}
}

// Pop removes and returns the oldest completed payload, in arrival order.
func (r *Receiver) Pop() ([]byte, bool) {
	if len(r.completed) == 0 {
		return nil, false
	}
	payload := r.completed[0]
	if len(r.completed) == 1 {
		r.completed = nil
	} else {
		r.completed = r.completed[1:]
	}
	return payload, true
}

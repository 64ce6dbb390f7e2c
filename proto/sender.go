// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package proto

import (
	"io"

	"github.com/nbchat/chatmux/framing"
)

// Sender owns a FIFO of payloads awaiting transmission and at most one
// in-flight OutgoingFrame. Payloads leave the queue in the order they were
// enqueued; within a single payload, bytes are transmitted in strict order.
type Sender struct {
	queue   [][]byte
	current *framing.OutgoingFrame
}

// NewSender returns an empty Sender.
func NewSender() *Sender {
	return &Sender{}
}

// Enqueue appends payload to the send queue.
func (s *Sender) Enqueue(payload []byte) {
	s.queue = append(s.queue, payload)
}

// Empty reports whether there is nothing queued and nothing in flight.
func (s *Sender) Empty() bool {
	return s.current == nil && len(s.queue) == 0
}

// Advance drains the queue onto stream: it starts a new OutgoingFrame from
// the head of the queue if none is in flight, then drives that frame until
// it completes or the stream blocks. Repeated calls keep draining the queue
// in enqueue order until the stream reports ErrWouldBlock.
func (s *Sender) Advance(stream io.Writer) error {
	for {
		if s.current == nil {
			if len(s.queue) == 0 {
				return nil
			}
			payload := s.queue[0]
			s.queue = s.queue[1:]
			s.current = framing.NewOutgoingFrame(payload)
		}

		err := s.current.AdvanceUntilWouldBlock(stream)
		if err == framing.ErrWouldBlock {
			return nil
		}
		if err != nil {
			return err
		}

		// Frame fully sent; fall through to pick up the next queued payload.
		s.current = nil
	}
}

// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/nbchat/chatmux/framing"
)

// scriptedReader replays a sequence of reads, one []byte (or error) per
// step, simulating a stream that delivers data in arbitrary chunks.
type scriptedReader struct {
	steps []struct {
		b   []byte
		err error
	}
	step int
	off  int
}

func chunkedReader(chunks ...[]byte) *scriptedReader {
	r := &scriptedReader{}
	for _, c := range chunks {
		r.steps = append(r.steps, struct {
			b   []byte
			err error
		}{b: c})
	}
	return r
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	for {
		if r.step >= len(r.steps) {
			return 0, io.EOF
		}
		st := r.steps[r.step]
		if len(st.b) == 0 {
			r.step++
			r.off = 0
			if st.err != nil {
				return 0, st.err
			}
			continue
		}
		if r.off >= len(st.b) {
			r.step++
			r.off = 0
			continue
		}
		n := copy(p, st.b[r.off:])
		r.off += n
		return n, nil
	}
}

func wire(payload []byte) []byte {
	buf := make([]byte, framing.HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[:framing.HeaderLen], uint32(len(payload)))
	copy(buf[framing.HeaderLen:], payload)
	return buf
}

func TestIncomingFrame_SingleRoundTrip(t *testing.T) {
	payload := []byte("Hello, world!")
	r := bytes.NewReader(wire(payload))

	f := framing.NewIncomingFrame()
	if err := f.AdvanceUntilWouldBlock(r); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if f.State() != framing.IncomingComplete {
		t.Fatalf("state=%v want Complete", f.State())
	}
	if !bytes.Equal(f.Payload(), payload) {
		t.Fatalf("payload=%q want %q", f.Payload(), payload)
	}
}

func TestIncomingFrame_ExactWireBytes(t *testing.T) {
	payload := []byte("Hello, world!")
	got := wire(payload)
	want := []byte{0, 0, 0, 13, 'H', 'e', 'l', 'l', 'o', ',', ' ', 'w', 'o', 'r', 'l', 'd', '!'}
	if !bytes.Equal(got, want) {
		t.Fatalf("wire bytes = %v want %v", got, want)
	}
}

func TestIncomingFrame_ChunkedOneByteAtATime(t *testing.T) {
	payload := []byte("Hello, world!")
	full := wire(payload)

	chunks := make([][]byte, len(full))
	for i, b := range full {
		chunks[i] = []byte{b}
	}
	r := chunkedReader(chunks...)

	f := framing.NewIncomingFrame()
	for f.State() != framing.IncomingComplete {
		err := f.AdvanceUntilWouldBlock(r)
		if err != nil && err != framing.ErrWouldBlock {
			t.Fatalf("advance: %v", err)
		}
	}
	if !bytes.Equal(f.Payload(), payload) {
		t.Fatalf("payload=%q want %q", f.Payload(), payload)
	}
}

func TestIncomingFrame_WouldBlockThenResume(t *testing.T) {
	payload := []byte("Hello, world!")
	full := wire(payload)

	r := &scriptedReader{}
	r.steps = append(r.steps, struct {
		b   []byte
		err error
	}{b: full[:2]})
	r.steps = append(r.steps, struct {
		b   []byte
		err error
	}{err: framing.ErrWouldBlock})
	r.steps = append(r.steps, struct {
		b   []byte
		err error
	}{b: full[2:]})

	f := framing.NewIncomingFrame()
	err := f.AdvanceUntilWouldBlock(r)
	if err != framing.ErrWouldBlock {
		t.Fatalf("first advance: err=%v want ErrWouldBlock", err)
	}
	if f.State() == framing.IncomingComplete {
		t.Fatalf("frame completed before would-block")
	}

	if err := f.AdvanceUntilWouldBlock(r); err != nil {
		t.Fatalf("second advance: %v", err)
	}
	if !bytes.Equal(f.Payload(), payload) {
		t.Fatalf("payload=%q want %q", f.Payload(), payload)
	}
}

func TestIncomingFrame_TwoFramesConcatenated(t *testing.T) {
	a, b := []byte("AAA"), []byte("BBBB")
	var buf bytes.Buffer
	buf.Write(wire(a))
	buf.Write(wire(b))
	if buf.Len() != 15 {
		t.Fatalf("concatenated buffer len=%d want 15", buf.Len())
	}

	r := bytes.NewReader(buf.Bytes())

	first := framing.NewIncomingFrame()
	if err := first.AdvanceUntilWouldBlock(r); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if !bytes.Equal(first.Payload(), a) {
		t.Fatalf("first payload=%q want %q", first.Payload(), a)
	}

	second := framing.NewIncomingFrame()
	if err := second.AdvanceUntilWouldBlock(r); err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if !bytes.Equal(second.Payload(), b) {
		t.Fatalf("second payload=%q want %q", second.Payload(), b)
	}
}

func TestIncomingFrame_OversizeRejected(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], framing.MaxFrameSize)
	r := bytes.NewReader(header[:])

	f := framing.NewIncomingFrame()
	err := f.AdvanceUntilWouldBlock(r)
	if err == nil {
		t.Fatalf("expected failure, got nil")
	}
	var sizeErr *framing.FrameSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("err=%v (%T) want *FrameSizeError", err, err)
	}
	if sizeErr.Size != framing.MaxFrameSize {
		t.Fatalf("sizeErr.Size=%d want %d", sizeErr.Size, framing.MaxFrameSize)
	}
	if f.State() != framing.IncomingFailed {
		t.Fatalf("state=%v want Failed", f.State())
	}
}

func TestIncomingFrame_ZeroLengthRejected(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 0)
	r := bytes.NewReader(header[:])

	f := framing.NewIncomingFrame()
	err := f.AdvanceUntilWouldBlock(r)
	var sizeErr *framing.FrameSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("err=%v want *FrameSizeError", err)
	}
	if sizeErr.Size != 0 {
		t.Fatalf("sizeErr.Size=%d want 0", sizeErr.Size)
	}
}

func TestIncomingFrame_PeerClosesDuringHeader(t *testing.T) {
	r := bytes.NewReader([]byte{0, 0})

	f := framing.NewIncomingFrame()
	err := f.AdvanceUntilWouldBlock(r)
	if !errors.Is(err, framing.ErrStreamClosed) {
		t.Fatalf("err=%v want ErrStreamClosed", err)
	}
	if f.State() != framing.IncomingFailed {
		t.Fatalf("state=%v want Failed", f.State())
	}
}

func TestIncomingFrame_PeerClosesDuringPayload(t *testing.T) {
	full := wire([]byte("Hello, world!"))
	r := bytes.NewReader(full[:len(full)-4])

	f := framing.NewIncomingFrame()
	err := f.AdvanceUntilWouldBlock(r)
	if !errors.Is(err, framing.ErrStreamClosed) {
		t.Fatalf("err=%v want ErrStreamClosed", err)
	}
	if f.State() != framing.IncomingFailed {
		t.Fatalf("state=%v want Failed", f.State())
	}
}

// wouldBlockWriter accepts at most limit bytes per Write before reporting
// ErrWouldBlock, simulating a non-blocking socket with a small send buffer.
type wouldBlockWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *wouldBlockWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := w.limit
	if n > len(p) {
		n = len(p)
	}
	if n <= 0 {
		return 0, framing.ErrWouldBlock
	}
	w.buf.Write(p[:n])
	if n < len(p) {
		return n, framing.ErrWouldBlock
	}
	return n, nil
}

func TestOutgoingFrame_ChunkedWrite(t *testing.T) {
	payload := []byte("Hello, world!")
	w := &wouldBlockWriter{limit: 3}

	f := framing.NewOutgoingFrame(payload)
	for f.State() == framing.OutgoingPending {
		err := f.AdvanceUntilWouldBlock(w)
		if err != nil && err != framing.ErrWouldBlock {
			t.Fatalf("advance: %v", err)
		}
	}
	if !bytes.Equal(w.buf.Bytes(), wire(payload)) {
		t.Fatalf("written=%v want %v", w.buf.Bytes(), wire(payload))
	}
}

func TestOutgoingFrame_RejectsEmptyPayload(t *testing.T) {
	f := framing.NewOutgoingFrame(nil)
	if f.State() != framing.OutgoingFailed {
		t.Fatalf("state=%v want Failed", f.State())
	}
	if !errors.Is(f.Err(), framing.ErrZeroSizedPacket) {
		t.Fatalf("err=%v want ErrZeroSizedPacket", f.Err())
	}
}

func TestOutgoingFrame_RespectsMaxSendChunk(t *testing.T) {
	payload := make([]byte, framing.MaxSendChunk*2+100)
	for i := range payload {
		payload[i] = byte(i)
	}
	var buf bytes.Buffer
	f := framing.NewOutgoingFrame(payload)

	n, err := f.Advance(&buf)
	if err != nil {
		t.Fatalf("first advance: %v", err)
	}
	if n != framing.MaxSendChunk {
		t.Fatalf("first advance wrote %d bytes want %d", n, framing.MaxSendChunk)
	}
}

// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chat

import (
	"net"
	"time"

	"github.com/nbchat/chatmux/framing"
)

// pollWindow is how far ahead of now the read/write deadline is set before
// each I/O attempt. A deadline of exactly time.Now() would make net.Conn
// fail the call before attempting any I/O at all.
const pollWindow = time.Millisecond

// nonblockConn adapts a net.Conn to the framing package's non-blocking
// contract: a deadline pollWindow ahead is set before every I/O attempt,
// and a resulting timeout is translated into framing.ErrWouldBlock.
//
// Go's net.Conn has no O_NONBLOCK knob exposed to user code; this deadline
// trick is the idiomatic way to get the same one-attempt-then-return
// behavior on top of it. Grounded on the sentinel-would-block-error-plus-
// net.Error-shaped-timeout pattern in SagerNet-smux's session.go
// (ErrWouldBlock alongside a Timeout()-returning error type).
type nonblockConn struct {
	net.Conn
}

// newNonblockConn wraps conn for use with the framing/proto state machines.
func newNonblockConn(conn net.Conn) *nonblockConn {
	return &nonblockConn{Conn: conn}
}

func (c *nonblockConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, err
	}
	n, err := c.Conn.Read(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, framing.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func (c *nonblockConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, err
	}
	n, err := c.Conn.Write(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, framing.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

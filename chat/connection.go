// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chat

import (
	"errors"
	"net"
	"runtime"

	"github.com/nbchat/chatmux/proto"
)

// errConnectionClosedByOwner marks a connection torn down deliberately by
// its owner (e.g. server shutdown), as opposed to a framing or I/O failure.
var errConnectionClosedByOwner = errors.New("chat: connection closed by owner")

// State is the connection state machine's tag: Handshake -> Established ->
// Closed. Closed is terminal.
type State uint8

const (
	StateHandshake State = iota
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection wraps a byte stream plus one Receiver and one Sender and
// drives the handshake -> established -> closed state machine on top of
// them. It exclusively owns its stream, receiver, and sender.
//
// Grounded on rust_chat/connection.rs's tag+variant shape and
// rust_chat_server's per-connection receive/send calls, generalized from
// the original's unfinished HandshakeState/EstablishedState stub into the
// full handshake-parses-a-login-envelope behavior a real server needs.
type Connection struct {
	conn     net.Conn
	stream   *nonblockConn
	state    State
	receiver *proto.Receiver
	sender   *proto.Sender

	login    Login
	closeErr error
}

// NewConnection wraps conn in Handshake state with a fresh receiver and
// sender.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:     conn,
		stream:   newNonblockConn(conn),
		state:    StateHandshake,
		receiver: proto.NewReceiver(),
		sender:   proto.NewSender(),
	}
}

// State reports the connection's current state.
func (c *Connection) State() State { return c.state }

// Login reports the username this connection authenticated with. Only
// meaningful once State() is StateEstablished or later.
func (c *Connection) Login() Login { return c.login }

// RemoteAddr reports the peer address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// CloseErr reports why the connection was closed. Only meaningful once
// State() is StateClosed.
func (c *Connection) CloseErr() error { return c.closeErr }

// Close forces the connection to StateClosed, e.g. during server shutdown.
func (c *Connection) Close() error {
	if c.state == StateClosed {
		return nil
	}
	c.fail(errConnectionClosedByOwner)
	return nil
}

func (c *Connection) fail(err error) {
	c.state = StateClosed
	c.closeErr = err
	_ = c.conn.Close()
}

// Receive dispatches to the current state's receive step. In Handshake it
// drives the receiver and, once a frame completes, parses it as a login
// envelope — promoting to Established on success or closing the connection
// on any parse or I/O failure. In Established it drives the receiver. In
// Closed it is a no-op.
func (c *Connection) Receive() {
	switch c.state {
	case StateHandshake:
		c.receiveHandshake()
	case StateEstablished:
		if err := c.receiver.Advance(c.stream); err != nil {
			c.fail(err)
		}
	}
}

func (c *Connection) receiveHandshake() {
	if err := c.receiver.Advance(c.stream); err != nil {
		c.fail(err)
		return
	}

	payload, ok := c.receiver.Pop()
	if !ok {
		return
	}

	login, err := ParseLogin(payload)
	if err != nil {
		c.fail(err)
		return
	}

	c.login = login
	c.state = StateEstablished
}

// CompleteHandshakeSend is the client side of the handshake: it queues
// login's encoded form, then drives the sender until the queue drains
// completely, yielding the goroutine on every would-block in between (a
// cooperative runtime.Gosched retry loop, the one place this client
// effectively blocks: there is nothing useful to do before login finishes).
// On any send failure the connection closes and the error is returned.
func (c *Connection) CompleteHandshakeSend(login Login) error {
	if c.state != StateHandshake {
		return errors.New("chat: handshake already completed")
	}

	c.sender.Enqueue(login.Encode())
	for !c.sender.Empty() {
		if err := c.sender.Advance(c.stream); err != nil {
			c.fail(err)
			return err
		}
		if !c.sender.Empty() {
			runtime.Gosched()
		}
	}

	c.login = login
	c.state = StateEstablished
	return nil
}

// Send dispatches to the current state's send step: a no-op in Handshake,
// drives the sender in Established, a no-op in Closed.
func (c *Connection) Send() {
	if c.state != StateEstablished {
		return
	}
	if err := c.sender.Advance(c.stream); err != nil {
		c.fail(err)
	}
}

// Enqueue appends payload to the outgoing queue if Established; it silently
// drops the payload otherwise. Callers that need delivery guarantees must
// check State() themselves.
func (c *Connection) Enqueue(payload []byte) {
	if c.state != StateEstablished {
		return
	}
	c.sender.Enqueue(payload)
}

// TakePayload removes and returns one completed incoming payload if
// Established; it returns (nil, false) otherwise.
func (c *Connection) TakePayload() ([]byte, bool) {
	if c.state != StateEstablished {
		return nil, false
	}
	return c.receiver.Pop()
}

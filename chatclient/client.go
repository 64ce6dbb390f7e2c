// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package chatclient implements the client driver: it mirrors the server's
// per-connection path with one connection that performs the login
// handshake, then ticks send/receive and exposes completed MessageFromUser
// envelopes for display.
//
// Grounded on rust_chat_client/src/client.rs's ConnectedState ->
// WaitingForLoginInfoState -> LoggedInState chain and
// rust_chat_client/src/lib.rs's CLI (non-GUI) run_app loop — the GUI state
// chain in application/mod.rs is out of scope and is not ported.
package chatclient

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/nbchat/chatmux/chat"
)

// Client owns one established chat connection. It keeps no history of
// received messages: each Tick returns the messages completed in that tick.
type Client struct {
	conn *chat.Connection
	log  *logrus.Logger
}

// Dial connects to addr, performs the login handshake with username, and
// returns a Client ready to Tick. A dial failure or handshake failure (e.g.
// the connection dropped mid-send) is returned unchanged.
func Dial(addr, username string, log *logrus.Logger) (*Client, error) {
	netConn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	conn := chat.NewConnection(netConn)
	if err := conn.CompleteHandshakeSend(chat.Login{Username: username}); err != nil {
		return nil, err
	}

	return &Client{conn: conn, log: log}, nil
}

// Connected reports whether the underlying connection is still Established.
func (c *Client) Connected() bool { return c.conn.State() == chat.StateEstablished }

// CloseErr reports why the connection disconnected. Only meaningful once
// Connected() is false.
func (c *Client) CloseErr() error { return c.conn.CloseErr() }

// Username reports the username this client logged in with.
func (c *Client) Username() string { return c.conn.Login().Username }

// Say enqueues a chat message for transmission on the next Tick. Empty text
// is silently ignored — there is nothing useful to send.
func (c *Client) Say(text string) {
	if text == "" {
		return
	}
	msg := chat.ChatMessage{Username: c.Username(), Text: text}
	c.conn.Enqueue(chat.EncodeMessage(msg))
}

// Tick drives one send/receive step and returns every MessageFromUser
// envelope that completed this tick, in arrival order. Any connection
// failure transitions the client to a disconnected state; the caller should
// check Connected() after Tick returns.
func (c *Client) Tick() []chat.ChatMessage {
	c.conn.Send()
	c.conn.Receive()

	var messages []chat.ChatMessage
	for {
		payload, ok := c.conn.TakePayload()
		if !ok {
			break
		}
		msg, err := chat.ParseEnvelope(payload)
		if err != nil {
			c.log.WithError(err).Warn("chatclient: dropping malformed envelope")
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

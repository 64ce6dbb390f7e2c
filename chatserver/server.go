// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package chatserver implements the server multiplexer: a single-threaded
// tick loop that accepts connections, drives every connection's receive and
// send, dispatches application envelopes, and fans chat messages out to
// every established connection.
//
// Grounded on rust_chat_server/src/lib.rs's ChatServer::tick, translated
// from Rust's consuming per-connection state transitions
// (`*opt_connection = Some(connection.receive())`) into Go's
// in-place-mutated *chat.Connection.
package chatserver

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nbchat/chatmux/chat"
)

// deadlineListener is satisfied by *net.TCPListener; it lets accept() poll
// the listener non-blockingly the same way nonblockConn polls a connection.
type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// Server owns the listener and the set of live connections. The invariant
// held after every Tick: no connection in the set is in StateClosed.
type Server struct {
	listener    net.Listener
	connections []*chat.Connection
	log         *logrus.Logger
	stop        chan struct{}
	stopOnce    sync.Once

	// idleTicks counts consecutive ticks with no accepted connection, no
	// dispatched message, and no reaped connection, used only to decide
	// whether Run should yield the CPU. It never affects correctness.
	idleTicks int
}

// New binds addr and returns a Server ready to Tick. A bind failure is
// fatal; the caller decides how to report it.
func New(addr string, log *logrus.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{listener: ln, log: log, stop: make(chan struct{})}, nil
}

// Addr reports the address the server is listening on.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Close signals Run to stop and releases the listener and every live
// connection. It is safe to call more than once, and safe to call
// concurrently with Run.
func (s *Server) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	for _, c := range s.connections {
		_ = c.Close()
	}
	s.connections = nil
	return s.listener.Close()
}

// Run drives Tick until Close is called, yielding briefly between ticks
// that made no progress so the loop doesn't spin a full core when nothing
// is happening. It always returns nil; per-connection failures are absorbed
// by Connection.fail and surfaced only through reap's logging.
func (s *Server) Run() error {
	for {
		select {
		case <-s.stop:
			return nil
		default:
		}
		if err := s.Tick(); err != nil {
			return err
		}
	}
}

// Tick performs, in order: accept, receive, dispatch, fan-out, send, reap.
func (s *Server) Tick() error {
	accepted := s.accept()
	s.receiveAll()
	messages := s.dispatch()
	s.fanOut(messages)
	s.sendAll()
	reaped := s.reap()

	if accepted == 0 && len(messages) == 0 && reaped == 0 {
		s.idleTicks++
	} else {
		s.idleTicks = 0
	}
	if s.idleTicks > 0 {
		time.Sleep(idleSleepDuration(s.idleTicks))
	}
	return nil
}

// idleSleepDuration caps the cooperative yield at 10ms so a server with no
// traffic doesn't burn a core, without adding latency once a client acts.
func idleSleepDuration(idleTicks int) time.Duration {
	d := time.Duration(idleTicks) * 200 * time.Microsecond
	if d > 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	return d
}

// accept drains the non-blocking listener: set a deadline 1ms ahead, Accept
// once, repeat until Accept reports a timeout (would-block) or another
// error. Each accepted stream is wrapped as a connection in Handshake.
func (s *Server) accept() int {
	dl, ok := s.listener.(deadlineListener)
	if !ok {
		return 0
	}

	accepted := 0
	for {
		if err := dl.SetDeadline(time.Now().Add(time.Millisecond)); err != nil {
			return accepted
		}
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return accepted
			}
			s.log.WithError(err).Warn("chatserver: accept error")
			return accepted
		}

		c := chat.NewConnection(conn)
		s.connections = append(s.connections, c)
		accepted++
		s.log.WithField("remote", conn.RemoteAddr()).Info("chatserver: accepted connection")
	}
}

func (s *Server) receiveAll() {
	for _, c := range s.connections {
		c.Receive()
	}
}

// dispatch drains every established connection's completed payloads, parses
// each as an application envelope, and collects the recognized
// MessageFromUser messages into this tick's batch. Malformed or unknown
// envelopes are logged and dropped; they are not connection-fatal.
func (s *Server) dispatch() []chat.ChatMessage {
	var messages []chat.ChatMessage
	for _, c := range s.connections {
		for {
			payload, ok := c.TakePayload()
			if !ok {
				break
			}
			msg, err := chat.ParseEnvelope(payload)
			if err != nil {
				s.log.WithError(err).WithField("remote", c.RemoteAddr()).Warn("chatserver: dropping envelope")
				continue
			}
			messages = append(messages, msg)
		}
	}
	return messages
}

// fanOut serializes every dispatched message back to an envelope and
// enqueues it on every established connection, in dispatch order. The
// originating connection is not excluded: every established connection,
// sender included, receives a copy.
func (s *Server) fanOut(messages []chat.ChatMessage) {
	for _, msg := range messages {
		payload := chat.EncodeMessage(msg)
		for _, c := range s.connections {
			c.Enqueue(payload)
		}
	}
}

func (s *Server) sendAll() {
	for _, c := range s.connections {
		c.Send()
	}
}

// reap removes every StateClosed connection from the set and returns how
// many were removed.
func (s *Server) reap() int {
	kept := s.connections[:0]
	removed := 0
	for _, c := range s.connections {
		if c.State() == chat.StateClosed {
			s.log.WithField("remote", c.RemoteAddr()).WithError(c.CloseErr()).Info("chatserver: connection closed")
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.connections = kept
	return removed
}

// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrHandshakeParse means the first frame on a connection was not a valid
// login envelope. Connection-fatal.
var ErrHandshakeParse = errors.New("chat: invalid login envelope")

// Login is the first frame a client sends: a textual object declaring the
// username for this connection.
type Login struct {
	Username string `json:"username"`
}

// ParseLogin decodes payload as a Login envelope. A missing or empty
// username is treated the same as malformed JSON: the handshake fails.
func ParseLogin(payload []byte) (Login, error) {
	var l Login
	if err := json.Unmarshal(payload, &l); err != nil {
		return Login{}, fmt.Errorf("%w: %v", ErrHandshakeParse, err)
	}
	if l.Username == "" {
		return Login{}, ErrHandshakeParse
	}
	return l, nil
}

// Encode serializes the login envelope for the wire.
func (l Login) Encode() []byte {
	b, _ := json.Marshal(l)
	return b
}

// EnvelopeType is the closed set of application-envelope tags recognized on
// the wire. Unknown tags are logged and dropped by the caller; they are not
// a framing- or connection-fatal condition.
type EnvelopeType string

// MessageFromUser is the only recognized envelope type: a chat message sent
// by a logged-in user, broadcast to every established connection.
const MessageFromUser EnvelopeType = "MessageFromUser"

// Envelope is the wire shape of every frame after the handshake, in both
// directions: a Type tag plus a Data payload whose shape depends on Type.
type Envelope struct {
	Type EnvelopeType    `json:"Type"`
	Data json.RawMessage `json:"Data"`
}

// ErrUnknownEnvelopeType is returned by ParseEnvelope for a Type outside the
// recognized set. Per-frame, non-fatal: callers log and drop.
var ErrUnknownEnvelopeType = errors.New("chat: unknown envelope type")

// ChatMessage is the Data shape carried by a MessageFromUser envelope.
type ChatMessage struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// EncodeMessage builds the wire bytes for a MessageFromUser envelope.
func EncodeMessage(msg ChatMessage) []byte {
	data, _ := json.Marshal(msg)
	env := Envelope{Type: MessageFromUser, Data: data}
	b, _ := json.Marshal(env)
	return b
}

// ParseEnvelope decodes payload as an application envelope and, for a
// recognized Type, its Data. Malformed JSON or an unrecognized Type both
// produce a non-fatal error: the caller logs and drops the frame.
func ParseEnvelope(payload []byte) (ChatMessage, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return ChatMessage{}, fmt.Errorf("chat: malformed envelope: %w", err)
	}

	switch env.Type {
	case MessageFromUser:
		var msg ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return ChatMessage{}, fmt.Errorf("chat: malformed %s data: %w", env.Type, err)
		}
		return msg, nil
	default:
		return ChatMessage{}, fmt.Errorf("%w: %q", ErrUnknownEnvelopeType, env.Type)
	}
}

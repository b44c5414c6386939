package domain

import (
	"bytes"
	"encoding/json"
	"errors"
)

// WebSocket envelope types from client.
const (
	EnvelopeJoin = "join"
	EnvelopeChat = "chat"
)

// WebSocket envelope types to client.
const (
	EnvelopeJoined = "joined"
)

// Event kinds on the analytics stream.
const (
	EventMessageSent = "message_sent"
)

var (
	ErrMissingRoomID    = errors.New("missing roomId")
	ErrMissingFrom      = errors.New("missing from")
	ErrMissingTimestamp = errors.New("missing ts")
)

// Envelope is the wire-level client message. Payload is kept opaque; only
// chat envelopes require it.
type Envelope struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HasPayload reports whether the envelope carries a usable payload. The
// empty scalar forms (null, "", 0, false) count as absent; any object or
// array, even an empty one, counts as present.
func (e *Envelope) HasPayload() bool {
	if len(bytes.TrimSpace(e.Payload)) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return false
	}
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}

// Server -> client messages

type JoinedMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

func NewJoinedMessage(roomID string) *JoinedMessage {
	return &JoinedMessage{Type: EnvelopeJoined, RoomID: roomID}
}

// ChatBroadcast is the fanned-out chat event delivered to every room peer.
// Ts is epoch milliseconds at send time.
type ChatBroadcast struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
	Ts      int64           `json:"ts"`
}

// PersistRecord is the durable form of a chat message, published to the
// persistence queue and consumed by the persister.
type PersistRecord struct {
	RoomID  string          `json:"roomId"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
	Ts      int64           `json:"ts"`
}

// Validate checks the mandatory fields. A record failing validation is
// never persisted.
func (r *PersistRecord) Validate() error {
	if r.RoomID == "" {
		return ErrMissingRoomID
	}
	if r.From == "" {
		return ErrMissingFrom
	}
	if r.Ts == 0 {
		return ErrMissingTimestamp
	}
	return nil
}

// MessageEvent is the lightweight analytics event published per accepted
// chat message, keyed by room id.
type MessageEvent struct {
	Kind   string `json:"kind"`
	RoomID string `json:"roomId"`
	From   string `json:"from"`
	Ts     int64  `json:"ts"`
}

func NewMessageSentEvent(roomID, from string, ts int64) *MessageEvent {
	return &MessageEvent{Kind: EventMessageSent, RoomID: roomID, From: from, Ts: ts}
}

// Package protocol defines the JSON frames exchanged with the educhat hub
// over a websocket, and the client used by the terminal front end.
package protocol

import (
	"errors"

	"educhat/models"
)

var ErrNotConnected = errors.New("not connected")

// Frame types.
const (
	// Client to server.
	TypeJoin   = "join"
	TypeSend   = "send"
	TypeTyping = "typing"
	TypeDelete = "delete"

	// Server to client.
	TypeJoined   = "joined"
	TypeBatch    = "batch"
	TypeDeleted  = "deleted"
	TypePresence = "presence"
	TypeError    = "error"

	// Synthetic, dispatched locally when the read loop dies. Never on the wire.
	TypeClosed = "closed"
)

// Frame is the wire envelope. Exactly one payload field is set, matching Type.
type Frame struct {
	Type     string           `json:"type"`
	Join     *JoinPayload     `json:"join,omitempty"`
	Send     *SendPayload     `json:"send,omitempty"`
	Typing   *TypingPayload   `json:"typing,omitempty"`
	Delete   *DeletePayload   `json:"delete,omitempty"`
	Batch    []models.Message `json:"batch,omitempty"`
	Deleted  *DeletedPayload  `json:"deleted,omitempty"`
	Presence *PresencePayload `json:"presence,omitempty"`
	Error    *ErrorPayload    `json:"error,omitempty"`
}

// JoinPayload declares the connecting user. It must be the first frame on a
// new connection; authentication is handled upstream of the hub.
type JoinPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

type SendPayload struct {
	CourseID   string `json:"course_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type TypingPayload struct {
	PeerID   string `json:"peer_id"`
	IsTyping bool   `json:"is_typing"`
}

type DeletePayload struct {
	MessageID string `json:"message_id"`
}

type DeletedPayload struct {
	MessageID string `json:"message_id"`
}

type PresencePayload struct {
	PeerID   string `json:"peer_id"`
	Online   bool   `json:"online"`
	LastSeen string `json:"last_seen,omitempty"`
}

type ErrorPayload struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

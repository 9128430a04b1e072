// Package chat implements the real-time core: the room registry, the
// per-connection handler and the command dispatcher.
package chat

import (
	"time"

	"github.com/go-portfolio/corujao-chat/internal/store"
)

// Event is one server→client frame. The set of variants is closed; every
// variant carries its own strongly typed fields and marks itself with a
// "type" tag on the wire.
type Event interface {
	event()
}

// ChatMessage is an ordinary room message.
type ChatMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	From      string `json:"from"`
	Room      string `json:"room"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func (ChatMessage) event() {}

// NewChatMessage builds the wire event for a stored message.
func NewChatMessage(m store.Message) ChatMessage {
	return ChatMessage{
		Type:      "chat_message",
		ID:        m.ID,
		From:      m.Author,
		Room:      m.Room,
		Text:      m.Text,
		Timestamp: m.CreatedAt.Unix(),
	}
}

// SystemMessage is a server-originated notice shown in the chat stream.
type SystemMessage struct {
	Type      string `json:"type"`
	Room      string `json:"room,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func (SystemMessage) event() {}

func NewSystemMessage(room, text string) SystemMessage {
	return SystemMessage{Type: "system_message", Room: room, Text: text, Timestamp: time.Now().Unix()}
}

// RoomInfo is one entry of a room listing.
type RoomInfo struct {
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

// RoomList answers a rooms query.
type RoomList struct {
	Type  string     `json:"type"`
	Rooms []RoomInfo `json:"rooms"`
}

func (RoomList) event() {}

func NewRoomList(rooms []RoomInfo) RoomList {
	return RoomList{Type: "room_list", Rooms: rooms}
}

// UserList is the presence snapshot of one room.
type UserList struct {
	Type  string   `json:"type"`
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

func (UserList) event() {}

func NewUserList(room string, users []string) UserList {
	return UserList{Type: "user_list", Room: room, Users: users}
}

// RateLimitExceeded tells the sender an operation was throttled.
type RateLimitExceeded struct {
	Type         string `json:"type"`
	Scope        string `json:"scope"`
	RetryAfterMs int64  `json:"retry_after_ms"`
}

func (RateLimitExceeded) event() {}

func NewRateLimitExceeded(scope string, retryAfter time.Duration) RateLimitExceeded {
	return RateLimitExceeded{
		Type:         "rate_limit_exceeded",
		Scope:        scope,
		RetryAfterMs: retryAfter.Milliseconds(),
	}
}

// AuthError terminates a connection attempt with a client-visible reason.
type AuthError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (AuthError) event() {}

func NewAuthError(reason string) AuthError {
	return AuthError{Type: "auth_error", Reason: reason}
}

// PreviousMessages carries the history replayed on room join.
type PreviousMessages struct {
	Type     string        `json:"type"`
	Room     string        `json:"room"`
	Messages []ChatMessage `json:"messages"`
}

func (PreviousMessages) event() {}

func NewPreviousMessages(room string, msgs []store.Message) PreviousMessages {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewChatMessage(m))
	}
	return PreviousMessages{Type: "previous_messages", Room: room, Messages: out}
}

// ClearScreen asks the requesting client to wipe its local view.
type ClearScreen struct {
	Type string `json:"type"`
}

func (ClearScreen) event() {}

func NewClearScreen() ClearScreen { return ClearScreen{Type: "clear_screen"} }

// MessageAck answers a send_message that carried a ref. Durable is false
// when the append to the message log was refused or is uncertain.
type MessageAck struct {
	Type    string `json:"type"`
	Ref     string `json:"ref"`
	OK      bool   `json:"ok"`
	Durable bool   `json:"durable"`
	Error   string `json:"error,omitempty"`
}

func (MessageAck) event() {}

// Inbound is the client→server envelope.
type Inbound struct {
	Type string `json:"type"` // send_message | join_room | leave_room
	Room string `json:"room,omitempty"`
	Text string `json:"text,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

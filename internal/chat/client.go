package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/go-portfolio/corujao-chat/internal/auth"
	"github.com/go-portfolio/corujao-chat/internal/ratelimit"
	"github.com/go-portfolio/corujao-chat/internal/store"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Absence of a pong within this window triggers the same cleanup
	// path as an explicit disconnect.
	pongWait = 60 * time.Second

	// Ping period, must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Transport frame limit. Oversized frames are a protocol violation
	// and gorilla closes the connection.
	readLimit = 4096

	sendBuffer = 64
)

// Conn is the subset of *websocket.Conn the client needs, so tests can
// substitute a fake transport.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// HistoryStore serves the history replayed on every room join.
type HistoryStore interface {
	QueryMessages(ctx context.Context, room string, limit int) ([]store.Message, error)
}

// ClientConfig carries everything a connection needs; nothing is reached
// through package globals.
type ClientConfig struct {
	Conn       Conn
	Identity   auth.Identity
	Registry   *Registry
	Dispatcher *Dispatcher
	Journal    *Journal
	History    HistoryStore
	Moderation *Moderation

	// MessageGate throttles sends, keyed by the authenticated username
	// so users behind a shared NAT are not punished for each other.
	MessageGate *ratelimit.Gate

	HistoryLimit  int
	MaxMessageLen int

	// OnDisconnect runs once after cleanup, typically to stamp last_seen.
	OnDisconnect func(username string)
}

// Client is the per-connection state machine. The read goroutine owns
// all per-connection state; only the registry is shared.
type Client struct {
	cfg  ClientConfig
	id   string
	send chan Event

	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an authenticated, admitted connection.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = 500
	}
	return &Client{
		cfg:    cfg,
		id:     uuid.NewString(),
		send:   make(chan Event, sendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *Client) ID() string            { return c.id }
func (c *Client) Username() string      { return c.cfg.Identity.Username }
func (c *Client) Identity() auth.Identity { return c.cfg.Identity }

// Deliver queues an event for the write pump without blocking. A full
// buffer or a closed connection drops the event.
func (c *Client) Deliver(ev Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Kick notifies the member and tears the connection down. Used by
// moderation commands.
func (c *Client) Kick(reason string) {
	c.Deliver(NewAuthError(reason))
	c.shutdown()
}

// Run joins the default room and serves the connection until it closes.
// It blocks for the lifetime of the connection.
func (c *Client) Run() {
	go c.writePump()
	c.enterRoom(c.cfg.Registry.DefaultRoom(), true)
	c.readPump()
}

// enterRoom performs the join/switch transition: atomic registry move,
// notices to the old and new rooms, presence updates and history replay.
func (c *Client) enterRoom(roomName string, welcome bool) {
	prev, err := c.cfg.Registry.Join(c, roomName)
	if err != nil {
		c.Deliver(NewSystemMessage("", fmt.Sprintf("sala inválida: %s", roomName)))
		return
	}
	if prev == roomName {
		if !welcome {
			c.Deliver(NewSystemMessage(roomName, fmt.Sprintf("você já está na sala %s", roomName)))
		}
		return
	}

	if prev != "" {
		c.cfg.Registry.Broadcast(prev, NewSystemMessage(prev, fmt.Sprintf("%s saiu da sala", c.Username())))
		c.cfg.Registry.Broadcast(prev, NewUserList(prev, c.cfg.Registry.Usernames(prev)))
	}

	if welcome {
		c.Deliver(NewSystemMessage(roomName,
			fmt.Sprintf("Bem-vindo, %s! Digite /ajuda para ver os comandos.", c.Username())))
	}

	c.replayHistory(roomName)

	c.cfg.Registry.Broadcast(roomName, NewSystemMessage(roomName, fmt.Sprintf("%s entrou na sala", c.Username())))
	c.cfg.Registry.Broadcast(roomName, NewUserList(roomName, c.cfg.Registry.Usernames(roomName)))
}

// replayHistory sends the room's recent messages to this connection
// only. Replay happens on every join, including room switches.
func (c *Client) replayHistory(roomName string) {
	if c.cfg.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	msgs, err := c.cfg.History.QueryMessages(ctx, roomName, c.cfg.HistoryLimit)
	if err != nil {
		log.Printf("ws: history replay for %s failed: %v", roomName, err)
		c.Deliver(NewSystemMessage(roomName, "histórico indisponível no momento"))
		return
	}
	c.Deliver(NewPreviousMessages(roomName, msgs))
}

// readPump drives the state machine off inbound frames. Any error is
// fatal for this connection only; a panic is caught at the goroutine
// boundary and converted to a close.
func (c *Client) readPump() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ws: connection %s panic: %v", c.id, r)
		}
		c.shutdown()
	}()

	c.cfg.Conn.SetReadLimit(readLimit)
	_ = c.cfg.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.cfg.Conn.SetPongHandler(func(string) error {
		return c.cfg.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in Inbound
		if err := c.cfg.Conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error on %s: %v", c.id, err)
			}
			return
		}

		switch in.Type {
		case "send_message", "":
			c.handleText(in.Text, in.Ref)
		case "join_room":
			c.enterRoom(in.Room, false)
		case "leave_room":
			// Leaving a room returns the connection to the default one;
			// a connection is always a member of exactly one room.
			c.enterRoom(c.cfg.Registry.DefaultRoom(), false)
		default:
			c.Deliver(NewSystemMessage("", fmt.Sprintf("evento desconhecido: %s", in.Type)))
		}
	}
}

// handleText routes a frame of user text: commands go to the
// dispatcher, anything else is chat.
func (c *Client) handleText(text, ref string) {
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		if c.cfg.Dispatcher != nil {
			c.cfg.Dispatcher.Dispatch(c, strings.TrimSpace(text))
		}
		return
	}
	c.sendChat(text, ref)
}

func (c *Client) sendChat(text, ref string) {
	if c.cfg.Moderation != nil && c.cfg.Moderation.IsMuted(c.Username()) {
		c.nack(ref, "você está silenciado")
		return
	}

	if c.cfg.MessageGate != nil {
		if ok, retryAfter := c.cfg.MessageGate.Admit(c.Username()); !ok {
			c.Deliver(NewRateLimitExceeded("message", retryAfter))
			if ref != "" {
				c.Deliver(MessageAck{Type: "message_ack", Ref: ref, OK: false, Error: "rate limit exceeded"})
			}
			return
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > c.cfg.MaxMessageLen {
		c.nack(ref, fmt.Sprintf("mensagem muito longa (máximo %d caracteres)", c.cfg.MaxMessageLen))
		return
	}

	roomName := c.cfg.Registry.RoomOf(c.id)
	if roomName == "" {
		return
	}

	msg := store.Message{
		ID:        uuid.NewString(),
		Room:      roomName,
		Author:    c.Username(),
		Text:      text,
		CreatedAt: time.Now(),
	}

	c.cfg.Registry.Broadcast(roomName, NewChatMessage(msg))

	durable := false
	if c.cfg.Journal != nil {
		err := c.cfg.Journal.Enqueue(msg, func(err error) {
			if err != nil {
				c.Deliver(NewSystemMessage(roomName, "sua última mensagem pode não ter sido gravada"))
			}
		})
		if err != nil {
			c.Deliver(NewSystemMessage(roomName, "sua última mensagem pode não ter sido gravada"))
		}
		durable = err == nil
	}

	if ref != "" {
		c.Deliver(MessageAck{Type: "message_ack", Ref: ref, OK: true, Durable: durable})
	}
}

// nack reports a rejected send to the sender only: a structured ack when
// the frame carried a ref, a system notice otherwise.
func (c *Client) nack(ref, reason string) {
	if ref != "" {
		c.Deliver(MessageAck{Type: "message_ack", Ref: ref, OK: false, Error: reason})
		return
	}
	c.Deliver(NewSystemMessage("", reason))
}

// writePump flushes queued events and keeps the heartbeat going.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cfg.Conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.cfg.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.cfg.Conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.cfg.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.cfg.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// shutdown runs the single cleanup path shared by explicit logout,
// transport errors and heartbeat timeouts.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		roomName := c.cfg.Registry.Leave(c)
		close(c.closed)
		c.cfg.Conn.Close()

		if roomName != "" {
			c.cfg.Registry.Broadcast(roomName, NewSystemMessage(roomName, fmt.Sprintf("%s saiu da sala", c.Username())))
			c.cfg.Registry.Broadcast(roomName, NewUserList(roomName, c.cfg.Registry.Usernames(roomName)))
		}

		if c.cfg.OnDisconnect != nil {
			c.cfg.OnDisconnect(c.Username())
		}
	})
}

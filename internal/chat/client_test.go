package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-portfolio/corujao-chat/internal/auth"
	"github.com/go-portfolio/corujao-chat/internal/ratelimit"
	"github.com/go-portfolio/corujao-chat/internal/store"
	"github.com/stretchr/testify/assert"
)

// nopConn is a Conn that does nothing; these tests drive the client's
// handlers directly instead of going through the pumps.
type nopConn struct{}

func (nopConn) ReadJSON(v interface{}) error                 { return context.Canceled }
func (nopConn) WriteJSON(v interface{}) error                { return nil }
func (nopConn) WriteMessage(messageType int, d []byte) error { return nil }
func (nopConn) SetReadLimit(limit int64)                     {}
func (nopConn) SetReadDeadline(t time.Time) error            { return nil }
func (nopConn) SetWriteDeadline(t time.Time) error           { return nil }
func (nopConn) SetPongHandler(h func(string) error)          {}
func (nopConn) Close() error                                 { return nil }

type testEnv struct {
	registry   *Registry
	moderation *Moderation
	dispatcher *Dispatcher
	gate       *ratelimit.Gate
}

func newTestEnv() *testEnv {
	reg := NewRegistry("geral", nil)
	mod := NewModeration()
	return &testEnv{
		registry:   reg,
		moderation: mod,
		dispatcher: NewDispatcher(reg, mod, nil),
	}
}

func (e *testEnv) connect(username, role string) *Client {
	c := NewClient(ClientConfig{
		Conn:        nopConn{},
		Identity:    auth.Identity{Username: username, Role: role},
		Registry:    e.registry,
		Dispatcher:  e.dispatcher,
		Moderation:  e.moderation,
		MessageGate: e.gate,
	})
	c.enterRoom(e.registry.DefaultRoom(), true)
	return c
}

// drain empties the client's outbound queue.
func drain(c *Client) []Event {
	var evs []Event
	for {
		select {
		case ev := <-c.send:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func eventsOfType[T Event](evs []Event) []T {
	var out []T
	for _, ev := range evs {
		if t, ok := ev.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func TestConnect_WelcomeAndPresence(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")

	evs := drain(alice)
	systems := eventsOfType[SystemMessage](evs)
	assert.NotEmpty(t, systems)
	assert.Contains(t, systems[0].Text, "Bem-vindo, alice")

	lists := eventsOfType[UserList](evs)
	assert.NotEmpty(t, lists)
	assert.Equal(t, []string{"alice"}, lists[len(lists)-1].Users)
}

func TestWho_ReturnsRoomMembers(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	drain(alice)

	env.dispatcher.Dispatch(alice, "/quem")

	lists := eventsOfType[UserList](drain(alice))
	assert.Len(t, lists, 1)
	assert.Equal(t, "geral", lists[0].Room)
	assert.Equal(t, []string{"alice"}, lists[0].Users)
}

func TestChat_DeliveredToRoomMembersOnly(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	bob := env.connect("bob", "user")
	carol := env.connect("carol", "user")

	alice.enterRoom("x", false)
	bob.enterRoom("x", false)
	carol.enterRoom("y", false)
	drain(alice)
	drain(bob)
	drain(carol)

	alice.handleText("hello", "")

	bobMsgs := eventsOfType[ChatMessage](drain(bob))
	assert.Len(t, bobMsgs, 1)
	assert.Equal(t, "alice", bobMsgs[0].From)
	assert.Equal(t, "hello", bobMsgs[0].Text)
	assert.Equal(t, "x", bobMsgs[0].Room)

	assert.Empty(t, eventsOfType[ChatMessage](drain(carol)))
}

func TestChat_SenderReceivesOwnMessage(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	drain(alice)

	alice.handleText("oi", "")

	msgs := eventsOfType[ChatMessage](drain(alice))
	assert.Len(t, msgs, 1)
}

func TestChat_OversizedMessageRejected(t *testing.T) {
	env := newTestEnv()
	journal := NewJournal(appendFunc(func(ctx context.Context, m store.Message) error { return nil }))
	alice := env.connect("alice", "user")
	alice.cfg.Journal = journal
	bob := env.connect("bob", "user")
	drain(alice)
	drain(bob)

	alice.handleText(strings.Repeat("a", 501), "ref-1")

	// no broadcast, no log append
	assert.Empty(t, eventsOfType[ChatMessage](drain(bob)))
	assert.Empty(t, journal.queue)

	acks := eventsOfType[MessageAck](drain(alice))
	assert.Len(t, acks, 1)
	assert.False(t, acks[0].OK)
	assert.Contains(t, acks[0].Error, "longa")
}

func TestChat_ExactLimitAccepted(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	drain(alice)

	alice.handleText(strings.Repeat("a", 500), "")

	assert.Len(t, eventsOfType[ChatMessage](drain(alice)), 1)
}

func TestChat_RateLimited(t *testing.T) {
	env := newTestEnv()
	env.gate = ratelimit.NewGate(1, time.Minute)
	alice := env.connect("alice", "user")
	bob := env.connect("bob", "user")
	drain(alice)
	drain(bob)

	alice.handleText("first", "")
	alice.handleText("second", "")

	limited := eventsOfType[RateLimitExceeded](drain(alice))
	assert.Len(t, limited, 1)
	assert.Equal(t, "message", limited[0].Scope)
	assert.Positive(t, limited[0].RetryAfterMs)

	// only the first message reached the room
	assert.Len(t, eventsOfType[ChatMessage](drain(bob)), 1)
}

func TestChat_MutedUserIsDropped(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	bob := env.connect("bob", "user")
	env.moderation.Mute("alice")
	drain(alice)
	drain(bob)

	alice.handleText("psst", "")

	assert.Empty(t, eventsOfType[ChatMessage](drain(bob)))
	systems := eventsOfType[SystemMessage](drain(alice))
	assert.NotEmpty(t, systems)
	assert.Contains(t, systems[0].Text, "silenciado")
}

func TestRoomSwitch_NotifiesBothRooms(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	bob := env.connect("bob", "user")
	drain(alice)
	drain(bob)

	env.dispatcher.Dispatch(alice, "/sala memes")

	assert.Equal(t, "memes", env.registry.RoomOf(alice.ID()))
	assert.NotContains(t, env.registry.Usernames("geral"), "alice")
	assert.Equal(t, []string{"alice"}, env.registry.Usernames("memes"))

	// members of the old room are told about the departure
	systems := eventsOfType[SystemMessage](drain(bob))
	var sawLeave bool
	for _, s := range systems {
		if strings.Contains(s.Text, "saiu da sala") {
			sawLeave = true
		}
	}
	assert.True(t, sawLeave)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	bob := env.connect("bob", "user")
	drain(alice)
	drain(bob)

	env.dispatcher.Dispatch(alice, "/inexistente")

	systems := eventsOfType[SystemMessage](drain(alice))
	assert.Len(t, systems, 1)
	assert.Contains(t, systems[0].Text, "não reconhecido")

	// never broadcast
	assert.Empty(t, drain(bob))
}

func TestDispatch_AdminGating(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	bob := env.connect("bob", "user")
	drain(alice)
	drain(bob)

	env.dispatcher.Dispatch(alice, "/ban bob")

	systems := eventsOfType[SystemMessage](drain(alice))
	assert.Len(t, systems, 1)
	assert.Contains(t, systems[0].Text, "restrito")
	assert.False(t, env.moderation.IsBanned("bob"))
}

func TestDispatch_AdminBanKicksTarget(t *testing.T) {
	env := newTestEnv()
	root := env.connect("root", "admin")
	bob := env.connect("bob", "user")
	drain(root)
	drain(bob)

	env.dispatcher.Dispatch(root, "/ban bob")

	assert.True(t, env.moderation.IsBanned("bob"))
	assert.Empty(t, env.registry.FindByUsername("bob"), "banned user should be disconnected")
}

func TestDispatch_CaseInsensitive(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	drain(alice)

	env.dispatcher.Dispatch(alice, "/AJUDA")

	systems := eventsOfType[SystemMessage](drain(alice))
	assert.Len(t, systems, 1)
	assert.Contains(t, systems[0].Text, "/sala")
}

func TestDispatch_Clear(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	drain(alice)

	env.dispatcher.Dispatch(alice, "/limpar")

	assert.Len(t, eventsOfType[ClearScreen](drain(alice)), 1)
}

func TestDispatch_Rooms(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	bob := env.connect("bob", "user")
	bob.enterRoom("memes", false)
	drain(alice)

	env.dispatcher.Dispatch(alice, "/salas")

	lists := eventsOfType[RoomList](drain(alice))
	assert.Len(t, lists, 1)
	assert.Equal(t, []RoomInfo{{Name: "geral", MemberCount: 1}, {Name: "memes", MemberCount: 1}}, lists[0].Rooms)
}

func TestLogout_RemovesMembership(t *testing.T) {
	env := newTestEnv()
	alice := env.connect("alice", "user")
	drain(alice)

	env.dispatcher.Dispatch(alice, "/sair")

	assert.Empty(t, env.registry.FindByUsername("alice"))
	assert.Equal(t, "", env.registry.RoomOf(alice.ID()))
}

func TestShutdown_CleanupRunsOnce(t *testing.T) {
	env := newTestEnv()
	disconnects := 0
	alice := env.connect("alice", "user")
	alice.cfg.OnDisconnect = func(username string) { disconnects++ }
	bob := env.connect("bob", "user")
	drain(alice)
	drain(bob)

	alice.shutdown()
	alice.shutdown()

	assert.Equal(t, 1, disconnects)
	assert.NotContains(t, env.registry.Usernames("geral"), "alice")

	// a later broadcast does not attempt delivery to the gone member
	delivered := env.registry.Broadcast("geral", NewSystemMessage("geral", "tick"))
	assert.Equal(t, 1, delivered)
}

// appendFunc adapts a function to the MessageStore interface.
type appendFunc func(ctx context.Context, m store.Message) error

func (f appendFunc) AppendMessage(ctx context.Context, m store.Message) error { return f(ctx, m) }

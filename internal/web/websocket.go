package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-portfolio/corujao-chat/internal/chat"
	"github.com/go-portfolio/corujao-chat/internal/ratelimit"
)

// WSHandler upgrades authenticated requests to websocket connections and
// hands them to the chat core. It sits behind RequireAuth, so the
// session token used for REST is exactly the one admitting the
// persistent connection.
type WSHandler struct {
	Registry   *chat.Registry
	Dispatcher *chat.Dispatcher
	Journal    *chat.Journal
	History    chat.HistoryStore
	Moderation *chat.Moderation
	Users      UserStore

	// ConnGate is keyed by client IP: it protects the handshake before
	// any per-user state exists. MessageGate is handed to each client
	// and keyed by username.
	ConnGate    *ratelimit.Gate
	MessageGate *ratelimit.Gate

	HistoryLimit  int
	MaxMessageLen int

	upgrader websocket.Upgrader
}

// NewWSHandler finishes handler setup; allowedOrigins feeds the
// upgrader's origin check.
func NewWSHandler(h WSHandler, allowedOrigins []string) *WSHandler {
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return &h
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	if h.Moderation != nil && h.Moderation.IsBanned(id.Username) {
		writeError(w, http.StatusForbidden, "banned")
		return
	}

	if h.ConnGate != nil {
		if allowed, retryAfter := h.ConnGate.Admit(clientIP(r)); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":          "rate_limit_exceeded",
				"retry_after_ms": retryAfter.Milliseconds(),
			})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed for %s: %v", id.Username, err)
		return
	}

	client := chat.NewClient(chat.ClientConfig{
		Conn:          conn,
		Identity:      id,
		Registry:      h.Registry,
		Dispatcher:    h.Dispatcher,
		Journal:       h.Journal,
		History:       h.History,
		Moderation:    h.Moderation,
		MessageGate:   h.MessageGate,
		HistoryLimit:  h.HistoryLimit,
		MaxMessageLen: h.MaxMessageLen,
		OnDisconnect:  h.stampLastSeen,
	})

	log.Printf("ws: %s connected", id.Username)
	client.Run()
	log.Printf("ws: %s disconnected", id.Username)
}

func (h *WSHandler) stampLastSeen(username string) {
	if h.Users == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Users.UpdateLastSeen(ctx, username); err != nil {
		log.Printf("ws: update last_seen for %s failed: %v", username, err)
	}
}

// clientIP relies on chi's RealIP middleware having rewritten
// RemoteAddr when the request came through a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-portfolio/corujao-chat/internal/auth"
	"github.com/go-portfolio/corujao-chat/internal/store"
)

// CookieName is the session cookie shared by the REST boundary and the
// websocket handshake.
const CookieName = "auth"

// UserStore is the credential persistence the handlers need.
type UserStore interface {
	Register(ctx context.Context, username, password string) error
	Authenticate(ctx context.Context, username, password string) (*store.User, error)
	FindUser(ctx context.Context, username string) (*store.User, error)
	UpdateLastSeen(ctx context.Context, username string) error
}

// MessageReader serves the history endpoint.
type MessageReader interface {
	QueryMessages(ctx context.Context, room string, limit int) ([]store.Message, error)
}

// RankingStore backs the ranking endpoints.
type RankingStore interface {
	UpsertRankingScore(ctx context.Context, nick string, points int) error
	TopRanking(ctx context.Context, limit int) ([]store.RankingEntry, error)
}

// Handlers bundles the REST endpoints. Everything is injected; there are
// no package-level service globals.
type Handlers struct {
	Users    UserStore
	Messages MessageReader
	Ranking  RankingStore
	Signer   *auth.Signer

	DefaultRoom  string
	HistoryLimit int
}

// credentials is the login/registration request body.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Register handles POST /api/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var cred credentials
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.Users.Register(r.Context(), cred.Username, cred.Password); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "store timeout, try again")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "registered", "username": cred.Username})
}

// Login handles POST /api/login: verifies the credentials and sets the
// session cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var cred credentials
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, err := h.Users.Authenticate(r.Context(), cred.Username, cred.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "store timeout, try again")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := h.Signer.Issue(auth.Identity{Username: u.Username, Role: u.Role})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	h.setSessionCookie(w, token)

	// non-fatal, the session is already established
	_ = h.Users.UpdateLastSeen(r.Context(), u.Username)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "username": u.Username, "role": u.Role})
}

// Logout handles POST /api/logout by expiring the session cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me handles GET /api/me for an authenticated session. The profile comes
// from the store so role changes and last_seen show up without re-login.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	u, err := h.Users.FindUser(r.Context(), id.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// account deleted since the token was issued
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		// fall back to the claims if the store is unavailable
		writeJSON(w, http.StatusOK, map[string]interface{}{"username": id.Username, "role": id.Role})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username":  u.Username,
		"role":      u.Role,
		"last_seen": u.LastSeen,
	})
}

// RoomMessages handles GET /api/messages?room=X&limit=N.
func (h *Handlers) RoomMessages(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		room = h.DefaultRoom
	}
	limit := h.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	msgs, err := h.Messages.QueryMessages(r.Context(), room, limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "message history unavailable")
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// TopRanking handles GET /api/ranking.
func (h *Handlers) TopRanking(w http.ResponseWriter, r *http.Request) {
	top, err := h.Ranking.TopRanking(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "ranking unavailable")
		return
	}
	if top == nil {
		top = []store.RankingEntry{}
	}
	writeJSON(w, http.StatusOK, top)
}

// UpsertRanking handles POST /api/ranking. The score always belongs to
// the authenticated user; a client cannot submit points for another nick.
func (h *Handlers) UpsertRanking(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	var body struct {
		Points int `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Points < 0 {
		writeError(w, http.StatusBadRequest, "points must be non-negative")
		return
	}

	if err := h.Ranking.UpsertRankingScore(r.Context(), id.Username, body.Points); err != nil {
		writeError(w, http.StatusServiceUnavailable, "ranking unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // set true behind HTTPS
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.Signer.TTL().Seconds()),
	})
}

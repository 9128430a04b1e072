package web

import (
	"context"
	"net/http"

	"github.com/go-portfolio/corujao-chat/internal/auth"
)

type ctxKey string

const ctxIdentityKey ctxKey = "identity"

// IdentityFrom extracts the authenticated identity placed in the request
// context by RequireAuth.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey).(auth.Identity)
	return id, ok
}

// RequireAuth verifies the session cookie. This is the single
// authentication gate: both the REST endpoints and the websocket
// handshake go through it, and nothing re-authenticates per message.
// Tokens past the midpoint of their lifetime are re-issued so active
// sessions roll forward.
func RequireAuth(signer *auth.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(CookieName)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "missing auth cookie")
				return
			}

			id, expiresAt, err := signer.Parse(c.Value)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if signer.ShouldRenew(expiresAt) {
				if token, err := signer.Issue(id); err == nil {
					http.SetCookie(w, &http.Cookie{
						Name:     CookieName,
						Value:    token,
						Path:     "/",
						HttpOnly: true,
						SameSite: http.SameSiteLaxMode,
						MaxAge:   int(signer.TTL().Seconds()),
					})
				}
			}

			ctx := context.WithValue(r.Context(), ctxIdentityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

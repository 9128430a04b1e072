package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/go-portfolio/corujao-chat/internal/auth"
)

// NewRouter assembles the HTTP surface: public auth endpoints, the
// authenticated API and the websocket entry point.
func NewRouter(h *Handlers, ws *WSHandler, signer *auth.Signer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOrigins := allowedOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/api/register", h.Register)
	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)
	r.Get("/api/ranking", h.TopRanking)

	r.Group(func(pr chi.Router) {
		pr.Use(RequireAuth(signer))
		pr.Get("/api/me", h.Me)
		pr.Get("/api/messages", h.RoomMessages)
		pr.Post("/api/ranking", h.UpsertRanking)
		pr.Get("/ws", ws.ServeHTTP)
	})

	return r
}

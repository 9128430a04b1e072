// Package app wires the configured components into a runnable server.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-portfolio/corujao-chat/config"
	"github.com/go-portfolio/corujao-chat/internal/auth"
	"github.com/go-portfolio/corujao-chat/internal/chat"
	"github.com/go-portfolio/corujao-chat/internal/ratelimit"
	"github.com/go-portfolio/corujao-chat/internal/store"
	"github.com/go-portfolio/corujao-chat/internal/web"
)

// App owns the assembled server and its background workers.
type App struct {
	Handler http.Handler

	store   *store.Store
	journal *chat.Journal

	cancel context.CancelFunc
}

// New builds the full dependency graph from configuration. The returned
// App is ready to serve; Close must be called on shutdown.
func New(cfg *config.Config) (*App, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	signer := auth.NewSigner([]byte(cfg.JWTSecret), cfg.SessionTTL)

	registry := chat.NewRegistry(cfg.DefaultRoom, cfg.RoomWhitelist)
	moderation := chat.NewModeration()
	dispatcher := chat.NewDispatcher(registry, moderation, st)

	journal := chat.NewJournal(st)
	ctx, cancel := context.WithCancel(context.Background())
	go journal.Run(ctx)

	handlers := &web.Handlers{
		Users:        st,
		Messages:     st,
		Ranking:      st,
		Signer:       signer,
		DefaultRoom:  cfg.DefaultRoom,
		HistoryLimit: cfg.HistoryLimit,
	}

	ws := web.NewWSHandler(web.WSHandler{
		Registry:      registry,
		Dispatcher:    dispatcher,
		Journal:       journal,
		History:       st,
		Moderation:    moderation,
		Users:         st,
		ConnGate:      ratelimit.NewGate(cfg.RateConnLimit, cfg.RateWindow),
		MessageGate:   ratelimit.NewGate(cfg.RateMsgLimit, cfg.RateWindow),
		HistoryLimit:  cfg.HistoryLimit,
		MaxMessageLen: cfg.MaxMessageLen,
	}, cfg.AllowedOrigins)

	return &App{
		Handler: web.NewRouter(handlers, ws, signer, cfg.AllowedOrigins),
		store:   st,
		journal: journal,
		cancel:  cancel,
	}, nil
}

// Close stops the journal worker and releases the database pool.
func (a *App) Close() error {
	a.cancel()
	return a.store.Close()
}

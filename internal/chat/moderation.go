package chat

import "sync"

// Moderation tracks banned and muted nicks. Both sets are in-memory:
// a ban keeps the user out until the process restarts, a mute lasts
// until lifted or the process restarts.
type Moderation struct {
	mu     sync.RWMutex
	banned map[string]struct{}
	muted  map[string]struct{}
}

func NewModeration() *Moderation {
	return &Moderation{
		banned: make(map[string]struct{}),
		muted:  make(map[string]struct{}),
	}
}

func (m *Moderation) Ban(nick string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banned[nick] = struct{}{}
}

func (m *Moderation) IsBanned(nick string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.banned[nick]
	return ok
}

func (m *Moderation) Mute(nick string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted[nick] = struct{}{}
}

func (m *Moderation) Unmute(nick string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.muted, nick)
}

func (m *Moderation) IsMuted(nick string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.muted[nick]
	return ok
}

package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options configure new sessions.
type Options struct {
	Debug      bool
	ForceTools bool
	Connection string
	Prompt     func(connection string) string
}

// Manager is the registry of live sessions. Its lock covers insert, lookup
// and removal only; turns are serialized by each session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
	logger   *slog.Logger
}

func NewManager(opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
		logger:   logger,
	}
}

// GetOrCreate returns the session for id, creating it for user when absent.
// An empty id gets a random one. The bool reports whether it was created.
func (m *Manager) GetOrCreate(id, user string) (*Session, bool) {
	if id == "" {
		id = uuid.NewString()
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, false
	}
	s = newSession(id, user, m.opts)
	m.sessions[id] = s
	m.logger.Info("session_created", "session_id", id, "user", user)
	return s, true
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove evicts a session. A turn still running keeps its own reference.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.logger.Info("session_removed", "session_id", id)
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns live session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Sweep removes sessions idle longer than ttl that are not mid-turn.
func (m *Manager) Sweep(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	var removed []string
	for id, s := range m.sessions {
		if s.IdleFor(now) > ttl && !s.busy() {
			delete(m.sessions, id)
			removed = append(removed, id)
		}
	}
	m.mu.Unlock()
	for _, id := range removed {
		m.logger.Info("session_expired", "session_id", id, "idle_ttl", ttl.String())
	}
	return len(removed)
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now, ttl)
		}
	}
}

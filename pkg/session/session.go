// Package session owns per-client conversation state and the registry that
// serializes turns per session.
package session

import (
	"sync"
	"time"

	"github.com/harunnryd/mcpchat/pkg/history"
	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/turn"
)

// Session is one client's conversation context.
type Session struct {
	ID   string
	User string

	// Debug gates debug events; Forced makes every tool-enabled call
	// require a tool call.
	Debug  bool
	Forced bool

	turnMu sync.Mutex

	mu         sync.RWMutex
	connection string
	tools      []llm.Tool
	lastActive time.Time

	history *history.Store
	turns   turn.Manager
	prompt  func(connection string) string
}

func newSession(id, user string, opts Options) *Session {
	prompt := opts.Prompt
	if prompt == nil {
		prompt = SystemPrompt
	}
	return &Session{
		ID:         id,
		User:       user,
		Debug:      opts.Debug,
		Forced:     opts.ForceTools,
		connection: opts.Connection,
		lastActive: time.Now(),
		history:    history.New(prompt(opts.Connection)),
		turns:      turn.NewManager(),
		prompt:     prompt,
	}
}

// BeginTurn blocks until no other turn runs on this session and returns
// the function that ends the turn.
func (s *Session) BeginTurn() (end func()) {
	s.turnMu.Lock()
	s.touch()
	return func() {
		s.touch()
		s.turnMu.Unlock()
	}
}

func (s *Session) History() *history.Store { return s.history }

func (s *Session) Turns() turn.Manager { return s.turns }

// Connection returns the pinned data-source connection, or "".
func (s *Session) Connection() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connection
}

// SetConnection pins conn. A change to a different non-empty name resets
// the history to a fresh system prompt and reports true.
func (s *Session) SetConnection(conn string) bool {
	s.mu.Lock()
	if conn == "" || conn == s.connection {
		s.mu.Unlock()
		return false
	}
	s.connection = conn
	s.mu.Unlock()
	s.history.Reset(s.prompt(conn))
	return true
}

// Tools returns the cached tool catalog.
func (s *Session) Tools() []llm.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tools
}

func (s *Session) SetTools(tools []llm.Tool) {
	s.mu.Lock()
	s.tools = tools
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// IdleFor reports how long the session has seen no turn activity.
func (s *Session) IdleFor(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastActive)
}

// busy reports whether a turn currently holds the session.
func (s *Session) busy() bool {
	if s.turnMu.TryLock() {
		s.turnMu.Unlock()
		return false
	}
	return true
}

// Package history holds the in-memory conversation log of one session.
package history

import (
	"sync"

	"github.com/harunnryd/mcpchat/pkg/llm"
)

// Store is an ordered message log whose first entry is always the system
// prompt. It is safe for concurrent use; turn ordering is the caller's job.
type Store struct {
	mu       sync.RWMutex
	messages []llm.Message
}

// New returns a store seeded with a single system message.
func New(systemPrompt string) *Store {
	s := &Store{}
	s.Reset(systemPrompt)
	return s
}

// Append adds msg to the end of the log. A system message can only enter
// the log through Reset.
func (s *Store) Append(msg llm.Message) {
	if msg.Role == llm.RoleSystem {
		return
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg.Clone())
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the log.
func (s *Store) Snapshot() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]llm.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Reset replaces the whole log with one system message.
func (s *Store) Reset(systemPrompt string) {
	s.mu.Lock()
	s.messages = []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// SystemPrompt returns the content of the leading system message.
func (s *Store) SystemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages[0].Content
}

// Last returns the most recent message.
func (s *Store) Last() llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages[len(s.messages)-1].Clone()
}

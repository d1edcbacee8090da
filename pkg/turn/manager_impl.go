package turn

import (
	"fmt"
	"sync"
)

type manager struct {
	mu    sync.Mutex
	sm    *stateMachine
	turns int
}

func NewManager() Manager {
	return &manager{sm: newStateMachine()}
}

func (m *manager) State() State {
	return m.sm.State()
}

func (m *manager) AddListener(listener StateListener) {
	m.sm.AddListener(listener)
}

// Turns counts completed turns.
func (m *manager) Turns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns
}

func (m *manager) OnUserMessage() error {
	return m.sm.Transition(StateStreamingInitialResponse, "user message")
}

func (m *manager) OnDirectAnswer() error {
	return m.sm.Transition(StateDirectAnswer, "no tool calls")
}

func (m *manager) OnToolCalls(count int) error {
	return m.sm.Transition(StateExecutingTools, fmt.Sprintf("%d tool call(s)", count))
}

func (m *manager) OnFinalResponse() error {
	return m.sm.Transition(StateStreamingFinalResponse, "tool results recorded")
}

func (m *manager) OnTurnEnd(reason string) {
	switch m.sm.State() {
	case StateAwaitingUserInput:
		return
	case StateStreamingInitialResponse, StateDirectAnswer, StateExecutingTools, StateStreamingFinalResponse:
		if err := m.sm.Transition(StateAwaitingUserInput, reason); err != nil {
			return
		}
	}
	m.mu.Lock()
	m.turns++
	m.mu.Unlock()
}

package turn

import (
	"errors"
	"sync"
	"testing"
)

type captureListener struct {
	mu      sync.Mutex
	changes []StateChange
}

func (c *captureListener) OnStateChange(event StateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, event)
}

func (c *captureListener) States() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]State, len(c.changes))
	for i, ch := range c.changes {
		out[i] = ch.ToState
	}
	return out
}

func TestToolTurnPath(t *testing.T) {
	m := NewManager()
	capture := &captureListener{}
	m.AddListener(capture)

	if err := m.OnUserMessage(); err != nil {
		t.Fatalf("user message: %v", err)
	}
	if err := m.OnToolCalls(2); err != nil {
		t.Fatalf("tool calls: %v", err)
	}
	if err := m.OnFinalResponse(); err != nil {
		t.Fatalf("final response: %v", err)
	}
	m.OnTurnEnd("final answer appended")

	want := []State{StateStreamingInitialResponse, StateExecutingTools, StateStreamingFinalResponse, StateAwaitingUserInput}
	got := capture.States()
	if len(got) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transition %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if m.Turns() != 1 {
		t.Fatalf("expected 1 completed turn, got %d", m.Turns())
	}
}

func TestDirectAnswerPath(t *testing.T) {
	m := NewManager()
	_ = m.OnUserMessage()
	if err := m.OnDirectAnswer(); err != nil {
		t.Fatalf("direct answer: %v", err)
	}
	if err := m.OnFinalResponse(); err == nil {
		t.Fatalf("direct answers never reach the final response state")
	}
	m.OnTurnEnd("answered")
	if m.State() != StateAwaitingUserInput {
		t.Fatalf("expected AWAITING_USER_INPUT, got %s", m.State())
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewManager()
	err := m.OnToolCalls(1)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	if invalid.From != StateAwaitingUserInput || invalid.To != StateExecutingTools {
		t.Fatalf("unexpected error fields %+v", invalid)
	}
}

func TestTurnEndIsIdempotent(t *testing.T) {
	m := NewManager()
	m.OnTurnEnd("nothing started")
	if m.Turns() != 0 {
		t.Fatalf("idle turn end must not count")
	}
	_ = m.OnUserMessage()
	m.OnTurnEnd("llm error")
	m.OnTurnEnd("again")
	if m.Turns() != 1 {
		t.Fatalf("expected 1 turn, got %d", m.Turns())
	}
}

func TestListenerMayReadState(t *testing.T) {
	m := NewManager()
	var seen State
	m.AddListener(ListenerFunc(func(StateChange) { seen = m.State() }))
	_ = m.OnUserMessage()
	if seen != StateStreamingInitialResponse {
		t.Fatalf("listener observed %s", seen)
	}
}

package turn

import (
	"sync"
	"time"
)

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes turn state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// ListenerFunc adapts a function to StateListener.
type ListenerFunc func(StateChange)

func (f ListenerFunc) OnStateChange(event StateChange) { f(event) }

var validTransitions = map[State][]State{
	StateAwaitingUserInput:        {StateStreamingInitialResponse},
	StateStreamingInitialResponse: {StateDirectAnswer, StateExecutingTools, StateAwaitingUserInput},
	StateDirectAnswer:             {StateAwaitingUserInput},
	StateExecutingTools:           {StateStreamingFinalResponse, StateAwaitingUserInput},
	StateStreamingFinalResponse:   {StateAwaitingUserInput},
}

// stateMachine implements the finite state machine for one session's turns.
type stateMachine struct {
	currentState State
	mu           sync.RWMutex

	stateChangeListeners []StateListener
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		currentState: StateAwaitingUserInput,
	}
}

// State returns the current state.
func (tm *stateMachine) State() State {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.currentState
}

// transitionValid must be called with lock held.
func (tm *stateMachine) transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation.
func (tm *stateMachine) Transition(state State, reason string) error {
	tm.mu.Lock()
	if !tm.transitionValid(tm.currentState, state) {
		from := tm.currentState
		tm.mu.Unlock()
		return &InvalidTransitionError{From: from, To: state}
	}

	event := StateChange{
		FromState: tm.currentState,
		ToState:   state,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	tm.currentState = state

	// Listeners run without the lock so they may read State.
	listeners := make([]StateListener, len(tm.stateChangeListeners))
	copy(listeners, tm.stateChangeListeners)
	tm.mu.Unlock()

	for _, listener := range listeners {
		listener.OnStateChange(event)
	}
	return nil
}

// AddListener registers a listener for state change events.
func (tm *stateMachine) AddListener(listener StateListener) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.stateChangeListeners = append(tm.stateChangeListeners, listener)
}

// InvalidTransitionError represents an invalid state transition attempt
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}

// Package turn tracks where a session is within its current chat turn.
package turn

type State int

const (
	StateAwaitingUserInput State = iota
	StateStreamingInitialResponse
	StateDirectAnswer
	StateExecutingTools
	StateStreamingFinalResponse
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateAwaitingUserInput:
		return "AWAITING_USER_INPUT"
	case StateStreamingInitialResponse:
		return "STREAMING_INITIAL_RESPONSE"
	case StateDirectAnswer:
		return "DIRECT_ANSWER"
	case StateExecutingTools:
		return "EXECUTING_TOOLS"
	case StateStreamingFinalResponse:
		return "STREAMING_FINAL_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Manager drives the turn state machine from orchestrator milestones.
type Manager interface {
	OnUserMessage() error
	OnDirectAnswer() error
	OnToolCalls(count int) error
	OnFinalResponse() error
	// OnTurnEnd returns to AwaitingUserInput from any state.
	OnTurnEnd(reason string)
	AddListener(listener StateListener)
	State() State
	Turns() int
}

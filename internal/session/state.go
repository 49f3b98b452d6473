package session

import "fmt"

// State is where the session is in its lifecycle
type State int32

// Session states
const (
	Disconnected State = iota
	Connecting
	AwaitingChallenge
	LoggingOn
	LoggedOn
	LoggedOff
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingChallenge:
		return "awaiting_challenge"
	case LoggingOn:
		return "logging_on"
	case LoggedOn:
		return "logged_on"
	case LoggedOff:
		return "logged_off"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// States lists every state, in declaration order
func States() []State {
	return []State{Disconnected, Connecting, AwaitingChallenge, LoggingOn, LoggedOn, LoggedOff}
}

// FailurePolicy decides what a rejected logon does
type FailurePolicy string

const (
	// PolicyRetry reconnects after every rejected logon
	PolicyRetry FailurePolicy = "retry"
	// PolicyExit stops the session when the rejection cannot heal by itself
	PolicyExit FailurePolicy = "exit"
)

// Valid reports whether p is a known policy
func (p FailurePolicy) Valid() bool {
	return p == PolicyRetry || p == PolicyExit
}

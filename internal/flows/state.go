package flows

import "fmt"

// AuthState is a credential holder's position in the authentication state
// machine.
type AuthState uint8

const (
	StateUnauthenticated AuthState = iota
	StateAuthenticated
	StateRefreshing
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("AuthState(%d)", uint8(s))
	}
}

// Observer is notified of every transition a flow performs.
type Observer func(userID string, from, to AuthState)

// Legal transitions:
//
//	unauthenticated -> authenticated   register, login
//	authenticated   -> refreshing      refresh begins
//	refreshing      -> authenticated   rotation succeeded
//	refreshing      -> unauthenticated rotation failed
//	authenticated   -> unauthenticated logout
var transitions = map[AuthState]map[AuthState]bool{
	StateUnauthenticated: {StateAuthenticated: true},
	StateAuthenticated:   {StateRefreshing: true, StateUnauthenticated: true},
	StateRefreshing:      {StateAuthenticated: true, StateUnauthenticated: true},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to AuthState) bool {
	return transitions[from][to]
}

// machine tracks one flow's state and reports each move to an Observer.
type machine struct {
	userID   string
	state    AuthState
	observer Observer
}

func newMachine(start AuthState, observer Observer) *machine {
	return &machine{state: start, observer: observer}
}

func (m *machine) moveTo(to AuthState) AuthState {
	if !CanTransition(m.state, to) {
		panic(fmt.Sprintf("flows: illegal transition %s -> %s", m.state, to))
	}
	from := m.state
	m.state = to
	if m.observer != nil {
		m.observer(m.userID, from, to)
	}
	return to
}

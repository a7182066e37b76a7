package wallet

import (
	"sync"

	"github.com/ethereum/go-ethereum/event"
)

// State is the connection state derived from a Session
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Session is a snapshot of the wallet connection. The zero value is the
// disconnected session.
type Session struct {
	Address      string // lowercase hex, empty when disconnected
	IsConnecting bool
	Balance      string // native currency, fixed precision
	ChainID      string // hex, as reported by the provider
}

// IsConnected reports whether an account is connected
func (s Session) IsConnected() bool {
	return s.Address != ""
}

// State derives the connection state
func (s Session) State() State {
	switch {
	case s.IsConnecting:
		return StateConnecting
	case s.IsConnected():
		return StateConnected
	default:
		return StateDisconnected
	}
}

// SessionView is the read-only side of the session handed to consumers
type SessionView interface {
	Snapshot() Session

	// SubscribeUpdates delivers every session written after the call.
	// Delivery is synchronous: a subscriber that stops reading stalls the
	// manager, so use a buffered channel or unsubscribe.
	SubscribeUpdates(ch chan<- Session) event.Subscription
}

// sessionStore owns the current session. Every write replaces the whole
// value, so readers never observe a partial update.
type sessionStore struct {
	writeMu sync.Mutex // orders writes with their notifications
	mu      sync.RWMutex
	current Session
	feed    event.Feed
}

func (s *sessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *sessionStore) SubscribeUpdates(ch chan<- Session) event.Subscription {
	return s.feed.Subscribe(ch)
}

// update applies fn to the current session and publishes the result
func (s *sessionStore) update(fn func(Session) Session) Session {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next := fn(s.current)
	s.current = next
	s.mu.Unlock()

	s.feed.Send(next)
	return next
}

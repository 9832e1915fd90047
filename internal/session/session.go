package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the connection state of a capture session. Closed is terminal.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

var transitions = map[State][]State{
	StateDisconnected: {StateConnecting, StateClosed},
	// Connecting may loop on itself: one entry per reconnect attempt.
	StateConnecting: {StateConnecting, StateConnected, StateClosed},
	StateConnected:  {StateConnecting, StateClosed},
	StateClosed:     {},
}

// Session identifies one capture run. It is owned by the protocol client;
// all state mutation goes through it.
type Session struct {
	ID        string
	UserID    string
	StartedAt time.Time

	mu      sync.Mutex
	state   State
	frameID uint64
}

// New creates a session in the disconnected state. An empty sessionID is
// replaced with a generated one.
func New(sessionID, userID string) *Session {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Session{
		ID:        sessionID,
		UserID:    userID,
		StartedAt: time.Now().UTC(),
		state:     StateDisconnected,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to a new state, rejecting moves the state
// machine does not allow. Closed is a dead end: once there the session can
// never leave, which is what bounds reconnection.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal session transition %s -> %s", s.state, to)
}

// NextFrameID returns the next value of the per-session monotonic frame
// counter, starting at 1.
func (s *Session) NextFrameID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameID++
	return s.frameID
}

// Snapshot is a read-only copy for diagnostics surfaces.
type Snapshot struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	State      State     `json:"connection_state"`
	FramesSent uint64    `json:"frames_sent"`
	StartedAt  time.Time `json:"started_at"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:  s.ID,
		UserID:     s.UserID,
		State:      s.state,
		FramesSent: s.frameID,
		StartedAt:  s.StartedAt,
	}
}

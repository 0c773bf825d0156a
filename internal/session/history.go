// Package session keeps per-user conversation history in memory.
// History is ephemeral: it lives for the process lifetime and is never
// persisted.
package session

import "sync"

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation exchange entry.
type Turn struct {
	Role    string
	Content string
}

const (
	// maxStored is how many turns are kept per user.
	maxStored = 20
	// maxContext is how many of the latest turns are handed to the
	// remote AI as context.
	maxContext = 10
)

// Sessions holds bounded conversation histories keyed by user id.
type Sessions struct {
	mu     sync.Mutex
	byUser map[int64][]Turn
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{byUser: make(map[int64][]Turn)}
}

// Append records a turn for userID and trims the history to the stored bound.
func (s *Sessions) Append(userID int64, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.byUser[userID], Turn{Role: role, Content: content})
	if len(history) > maxStored {
		history = history[len(history)-maxStored:]
	}
	s.byUser[userID] = history
}

// Context returns a copy of the most recent turns for userID, bounded to
// the remote-AI context limit.
func (s *Sessions) Context(userID int64) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.byUser[userID]
	if len(history) > maxContext {
		history = history[len(history)-maxContext:]
	}
	out := make([]Turn, len(history))
	copy(out, history)
	return out
}

// Len reports the stored history length for userID.
func (s *Sessions) Len(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser[userID])
}

// Drop destroys the session for userID.
func (s *Sessions) Drop(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
}

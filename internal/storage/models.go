package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Health statuses recorded by components.
const (
	StatusOK      = "OK"
	StatusWarning = "WARNING"
	StatusError   = "ERROR"
	StatusAlive   = "ALIVE"
)

// Suggestion is a knowledge-base entry mapping a keyword to a canned
// answer and link. Score is a signed reputation counter adjusted by
// user feedback.
type Suggestion struct {
	ID        string
	Keyword   string
	Text      string
	Link      string
	Score     int
	CreatedAt time.Time
}

// MessageLog is one handled conversation exchange.
type MessageLog struct {
	ID        int64
	CreatedAt time.Time
	UserID    int64
	Username  string
	Message   string
	Reply     string
	Source    string // resolver classification: local-suggestion, remote-ai, rule-fallback
}

// FeedbackLog records a single rating event.
type FeedbackLog struct {
	ID           int64
	CreatedAt    time.Time
	UserID       int64
	ReplyText    string
	Rating       string // "good" or "bad"
	SuggestionID string // empty when the rated reply did not come from the local lookup
}

// HealthEvent is an append-only operational status record.
type HealthEvent struct {
	ID        int64
	CreatedAt time.Time
	Component string
	Status    string
	Message   string
}

// RetryItem is a failed outbound message waiting for one retry attempt.
type RetryItem struct {
	ID         string
	ChatID     int64
	Text       string
	Reason     string
	Attempts   int
	EnqueuedAt time.Time
}

// InactiveUser is a chat whose last message is older than a cutoff.
type InactiveUser struct {
	UserID   int64
	Username string
	LastSeen time.Time
}

package session

import (
	"fmt"
	"testing"
)

func TestAppendTrimsToStoredBound(t *testing.T) {
	s := NewSessions()

	for i := 0; i < 30; i++ {
		s.Append(1, RoleUser, fmt.Sprintf("message %d", i))
	}

	if got := s.Len(1); got != maxStored {
		t.Errorf("Len = %d, want %d", got, maxStored)
	}

	// Oldest retained turn is message 10.
	ctx := s.Context(1)
	if ctx[len(ctx)-1].Content != "message 29" {
		t.Errorf("latest turn = %q, want message 29", ctx[len(ctx)-1].Content)
	}
}

func TestContextBound(t *testing.T) {
	s := NewSessions()

	for i := 0; i < 15; i++ {
		s.Append(7, RoleUser, fmt.Sprintf("q%d", i))
	}

	ctx := s.Context(7)
	if len(ctx) != maxContext {
		t.Fatalf("context length = %d, want %d", len(ctx), maxContext)
	}
	if ctx[0].Content != "q5" || ctx[9].Content != "q14" {
		t.Errorf("context window = [%s..%s], want [q5..q14]", ctx[0].Content, ctx[9].Content)
	}
}

func TestContextIsACopy(t *testing.T) {
	s := NewSessions()
	s.Append(1, RoleUser, "hello")

	ctx := s.Context(1)
	ctx[0].Content = "mutated"

	if got := s.Context(1)[0].Content; got != "hello" {
		t.Errorf("stored turn = %q, caller mutation leaked", got)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	s := NewSessions()
	s.Append(1, RoleUser, "a")
	s.Append(2, RoleUser, "b")

	s.Drop(1)

	if s.Len(1) != 0 {
		t.Error("dropped session still has turns")
	}
	if s.Len(2) != 1 {
		t.Error("unrelated session affected by Drop")
	}
}

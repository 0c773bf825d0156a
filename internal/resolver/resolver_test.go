package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mentorlab/mentorbot/internal/knowledge"
	"github.com/mentorlab/mentorbot/internal/session"
	"github.com/mentorlab/mentorbot/internal/storage"
)

type stubStore struct {
	records []storage.Suggestion
}

func (s *stubStore) ListSuggestions() ([]storage.Suggestion, error) {
	return s.records, nil
}

type stubAI struct {
	text string
	err  error

	gotMessage string
	gotHistory []session.Turn
}

func (s *stubAI) Ask(_ context.Context, message string, history []session.Turn) (string, error) {
	s.gotMessage = message
	s.gotHistory = history
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func newTestCache(t *testing.T, records []storage.Suggestion) *knowledge.Cache {
	t.Helper()
	c := knowledge.NewCache(&stubStore{records: records})
	if err := c.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return c
}

func newChain(cache *knowledge.Cache, ai AIClient) *Resolver {
	return New(NewLocal(cache), NewRemote(ai), NewRules())
}

func TestResolveLocalHit(t *testing.T) {
	cache := newTestCache(t, []storage.Suggestion{
		{ID: "S1", Keyword: "python", Text: "Python course", Link: "https://x/1", Score: 2},
		{ID: "S2", Keyword: "python", Text: "Better Python course", Link: "https://x/2", Score: 8},
	})
	ai := &stubAI{text: "should not be called"}

	reply := newChain(cache, ai).Resolve(context.Background(), "Show me a Python tutorial", nil)

	if reply.Source != SourceLocal {
		t.Fatalf("source = %s, want %s", reply.Source, SourceLocal)
	}
	if reply.SuggestionID != "S2" {
		t.Errorf("suggestion id = %s, want S2 (highest score)", reply.SuggestionID)
	}
	if !strings.Contains(reply.Text, "Better Python course") || !strings.Contains(reply.Text, "https://x/2") {
		t.Errorf("reply text missing record content: %q", reply.Text)
	}
	if ai.gotMessage != "" {
		t.Error("remote AI was called despite a local hit")
	}
}

func TestResolveRemoteVerbatim(t *testing.T) {
	cache := newTestCache(t, []storage.Suggestion{{ID: "S1", Keyword: "python"}})
	ai := &stubAI{text: "A goroutine is a lightweight thread."}
	history := []session.Turn{{Role: session.RoleUser, Content: "earlier question"}}

	reply := newChain(cache, ai).Resolve(context.Background(), "what is a goroutine?", history)

	if reply.Source != SourceRemote {
		t.Fatalf("source = %s, want %s", reply.Source, SourceRemote)
	}
	if reply.Text != ai.text {
		t.Errorf("reply = %q, want AI text verbatim", reply.Text)
	}
	if reply.SuggestionID != "" {
		t.Errorf("suggestion id = %q, want empty for remote answers", reply.SuggestionID)
	}
	if len(ai.gotHistory) != 1 {
		t.Errorf("history not forwarded to AI client")
	}
}

func TestResolveRuleFallbackOnAIFailure(t *testing.T) {
	cache := newTestCache(t, nil)
	ai := &stubAI{err: errors.New("quota exceeded")}

	reply := newChain(cache, ai).Resolve(context.Background(), "hello mentor", nil)

	if reply.Source != SourceRule {
		t.Fatalf("source = %s, want %s", reply.Source, SourceRule)
	}
	if reply.Text == "" {
		t.Error("rule fallback returned empty text")
	}
}

func TestResolveNeverFails(t *testing.T) {
	cache := newTestCache(t, nil)
	ai := &stubAI{err: errors.New("not configured")}

	// Arbitrary message with no triggers still gets the generic reply.
	reply := newChain(cache, ai).Resolve(context.Background(), "zzzz", nil)
	if reply.Text != genericAcknowledgement {
		t.Errorf("reply = %q, want generic acknowledgement", reply.Text)
	}
}

func TestRulesTriggers(t *testing.T) {
	r := NewRules()

	tests := []struct {
		message     string
		wantGeneric bool
	}{
		{"Hello there", false},
		{"THANK you so much", false},
		{"explain pointers", true},
	}
	for _, tt := range tests {
		reply, ok, err := r.Resolve(context.Background(), tt.message, nil)
		if err != nil || !ok {
			t.Fatalf("Resolve(%q) ok=%v err=%v, want success", tt.message, ok, err)
		}
		isGeneric := reply.Text == genericAcknowledgement
		if isGeneric != tt.wantGeneric {
			t.Errorf("Resolve(%q) generic=%v, want %v (got %q)", tt.message, isGeneric, tt.wantGeneric, reply.Text)
		}
	}
}

package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertSuggestion(t *testing.T, s *Store, id, keyword, link string, score int) {
	t.Helper()
	added, err := s.ImportSuggestions([]Suggestion{{
		ID:      id,
		Keyword: keyword,
		Text:    "about " + keyword,
		Link:    link,
		Score:   score,
	}})
	if err != nil {
		t.Fatalf("ImportSuggestions(%s): %v", id, err)
	}
	if added != 1 {
		t.Fatalf("ImportSuggestions(%s): added %d, want 1", id, added)
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// migrations are not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestImportSuggestionsDedupByLink(t *testing.T) {
	s := openTestStore(t)

	insertSuggestion(t, s, "S1", "python", "https://example.com/python", 0)

	// One duplicate link, one new: exactly one record added.
	added, err := s.ImportSuggestions([]Suggestion{
		{ID: "S2", Keyword: "decorators", Link: "https://example.com/python"},
		{ID: "S3", Keyword: "goroutines", Link: "https://example.com/go"},
	})
	if err != nil {
		t.Fatalf("ImportSuggestions: %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	// Re-importing the same batch adds zero.
	added, err = s.ImportSuggestions([]Suggestion{
		{ID: "S4", Keyword: "decorators", Link: "https://example.com/python"},
		{ID: "S5", Keyword: "goroutines", Link: "https://example.com/go"},
	})
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if added != 0 {
		t.Errorf("re-import added = %d, want 0", added)
	}

	n, err := s.CountSuggestions()
	if err != nil {
		t.Fatalf("CountSuggestions: %v", err)
	}
	if n != 2 {
		t.Errorf("CountSuggestions = %d, want 2", n)
	}
}

func TestImportSuggestionsAllowsSharedKeyword(t *testing.T) {
	s := openTestStore(t)

	insertSuggestion(t, s, "S1", "python", "https://example.com/a", 0)
	insertSuggestion(t, s, "S2", "python", "https://example.com/b", 0)

	recs, err := s.ListSuggestions()
	if err != nil {
		t.Fatalf("ListSuggestions: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
}

func TestListSuggestionsOrder(t *testing.T) {
	s := openTestStore(t)

	insertSuggestion(t, s, "B", "sorting", "https://example.com/b", 5)
	insertSuggestion(t, s, "C", "sorting", "https://example.com/c", 5)
	insertSuggestion(t, s, "A", "sorting", "https://example.com/a", 9)

	recs, err := s.ListSuggestions()
	if err != nil {
		t.Fatalf("ListSuggestions: %v", err)
	}

	var got []string
	for _, r := range recs {
		got = append(got, r.ID)
	}
	want := []string{"A", "B", "C"} // score desc, id asc on ties
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestAdjustSuggestionScore(t *testing.T) {
	s := openTestStore(t)
	insertSuggestion(t, s, "S1", "python", "https://example.com/python", 3)

	score, err := s.AdjustSuggestionScore("S1", 1)
	if err != nil {
		t.Fatalf("AdjustSuggestionScore(+1): %v", err)
	}
	if score != 4 {
		t.Errorf("score after +1 = %d, want 4", score)
	}

	score, err = s.AdjustSuggestionScore("S1", -1)
	if err != nil {
		t.Fatalf("AdjustSuggestionScore(-1): %v", err)
	}
	if score != 3 {
		t.Errorf("score after -1 = %d, want 3 (round trip)", score)
	}
}

func TestAdjustSuggestionScoreUnknownID(t *testing.T) {
	s := openTestStore(t)

	_, err := s.AdjustSuggestionScore("GHOST", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInactiveUsersSince(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	lastActive := map[int64]time.Duration{
		101: 24 * time.Hour,       // 1 day ago — active
		102: 4 * 24 * time.Hour,   // 4 days ago — inactive
		103: 10 * 24 * time.Hour,  // 10 days ago — inactive
	}
	for userID, age := range lastActive {
		err := s.SaveMessageLog(MessageLog{
			CreatedAt: now.Add(-age),
			UserID:    userID,
			Username:  fmt.Sprintf("user%d", userID),
			Message:   "hi",
			Reply:     "hello",
			Source:    "rule-fallback",
		})
		if err != nil {
			t.Fatalf("SaveMessageLog(%d): %v", userID, err)
		}
	}
	// User 102 also has an older message under a previous name; only the
	// latest message and its username count.
	if err := s.SaveMessageLog(MessageLog{
		CreatedAt: now.Add(-20 * 24 * time.Hour),
		UserID:    102,
		Username:  "zz-former-name",
	}); err != nil {
		t.Fatalf("SaveMessageLog: %v", err)
	}

	cutoff := now.Add(-3 * 24 * time.Hour)
	users, err := s.InactiveUsersSince(cutoff)
	if err != nil {
		t.Fatalf("InactiveUsersSince: %v", err)
	}

	got := make(map[int64]string)
	for _, u := range users {
		got[u.UserID] = u.Username
	}
	if len(got) != 2 {
		t.Errorf("inactive users = %v, want exactly {102, 103}", got)
	}
	if got[102] != "user102" {
		t.Errorf("username for 102 = %q, want the latest name %q", got[102], "user102")
	}
	if got[103] != "user103" {
		t.Errorf("username for 103 = %q, want %q", got[103], "user103")
	}
}

func TestErrorsSinceFiltersStatusAndTime(t *testing.T) {
	s := openTestStore(t)

	if err := s.LogHealth("Scraper", StatusError, "site unreachable"); err != nil {
		t.Fatalf("LogHealth: %v", err)
	}
	if err := s.LogHealth("Scraper", StatusWarning, "empty batch"); err != nil {
		t.Fatalf("LogHealth: %v", err)
	}
	if err := s.LogHealth("System", StatusAlive, "ok"); err != nil {
		t.Fatalf("LogHealth: %v", err)
	}

	events, err := s.ErrorsSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("ErrorsSince: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Component != "Scraper" || events[0].Status != StatusError {
		t.Errorf("unexpected event: %+v", events[0])
	}

	// Cutoff in the future excludes everything.
	events, err = s.ErrorsSince(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ErrorsSince(future): %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events with future cutoff, want 0", len(events))
	}
}

func TestDeleteLogsBefore(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := s.SaveMessageLog(MessageLog{
			CreatedAt: now.Add(-40 * 24 * time.Hour),
			UserID:    int64(i),
		}); err != nil {
			t.Fatalf("SaveMessageLog: %v", err)
		}
	}
	if err := s.SaveMessageLog(MessageLog{CreatedAt: now, UserID: 99}); err != nil {
		t.Fatalf("SaveMessageLog: %v", err)
	}
	if err := s.LogHealth("System", StatusAlive, "ok"); err != nil {
		t.Fatalf("LogHealth: %v", err)
	}

	deleted, err := s.DeleteLogsBefore(now.Add(-30 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteLogsBefore: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	// Remaining rows untouched.
	users, err := s.InactiveUsersSince(now.Add(time.Minute))
	if err != nil {
		t.Fatalf("InactiveUsersSince: %v", err)
	}
	if len(users) != 1 || users[0].UserID != 99 {
		t.Errorf("remaining message logs = %v, want only user 99", users)
	}
}

func TestRetryQueueFIFO(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 7; i++ {
		err := s.EnqueueRetry(RetryItem{
			ID:         fmt.Sprintf("R%d", i),
			ChatID:     int64(100 + i),
			Text:       fmt.Sprintf("reminder %d", i),
			Reason:     "forbidden",
			EnqueuedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("EnqueueRetry(R%d): %v", i, err)
		}
	}

	batch, err := s.DequeueRetryBatch(5)
	if err != nil {
		t.Fatalf("DequeueRetryBatch: %v", err)
	}
	if len(batch) != 5 {
		t.Fatalf("first batch size = %d, want 5", len(batch))
	}
	for i, item := range batch {
		want := fmt.Sprintf("R%d", i)
		if item.ID != want {
			t.Errorf("batch[%d].ID = %s, want %s", i, item.ID, want)
		}
	}

	// The remaining two come back on the next call, regardless of what
	// happened to the first batch.
	rest, err := s.DequeueRetryBatch(5)
	if err != nil {
		t.Fatalf("second DequeueRetryBatch: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("second batch size = %d, want 2", len(rest))
	}
	if rest[0].ID != "R5" || rest[1].ID != "R6" {
		t.Errorf("second batch = [%s %s], want [R5 R6]", rest[0].ID, rest[1].ID)
	}

	n, err := s.RetryQueueLength()
	if err != nil {
		t.Fatalf("RetryQueueLength: %v", err)
	}
	if n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
}

func TestRetryQueueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.EnqueueRetry(RetryItem{ID: "R1", ChatID: 7, Text: "hello"}); err != nil {
		t.Fatalf("EnqueueRetry: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	batch, err := s2.DequeueRetryBatch(5)
	if err != nil {
		t.Fatalf("DequeueRetryBatch: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != "R1" {
		t.Errorf("batch = %v, want [R1]", batch)
	}
}

// Package knowledge holds the in-memory mirror of the suggestion table.
// The resolver reads it on every inbound message; ingestion replaces it
// wholesale after a successful import; the feedback loop adjusts single
// scores in lockstep with the database.
package knowledge

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mentorlab/mentorbot/internal/storage"
)

// SuggestionStore defines the storage operations the cache needs.
// Implemented by storage.Store.
type SuggestionStore interface {
	ListSuggestions() ([]storage.Suggestion, error)
}

// Cache is a read-mostly snapshot of the knowledge base. Readers never see
// a partially imported batch: Reload swaps the whole slice under the write
// lock, so a concurrent Match observes either the old or the new snapshot.
type Cache struct {
	store SuggestionStore

	mu      sync.RWMutex
	records []storage.Suggestion
}

// NewCache creates an empty Cache backed by store. Call Reload to populate it.
func NewCache(store SuggestionStore) *Cache {
	return &Cache{store: store}
}

// Reload replaces the snapshot with the current database contents.
// On error the existing snapshot is kept (stale beats empty).
func (c *Cache) Reload() error {
	records, err := c.store.ListSuggestions()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.records = records
	c.mu.Unlock()

	slog.Debug("knowledge cache reloaded", "records", len(records))
	return nil
}

// Len reports the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Match returns the best suggestion whose keyword is a case-folded
// substring of text: highest score wins, ties break on ascending id.
// The second return is false when nothing matches.
func (c *Cache) Match(text string) (storage.Suggestion, bool) {
	lower := strings.ToLower(text)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []storage.Suggestion
	for _, rec := range c.records {
		keyword := strings.ToLower(rec.Keyword)
		if keyword != "" && strings.Contains(lower, keyword) {
			matches = append(matches, rec)
		}
	}
	if len(matches) == 0 {
		return storage.Suggestion{}, false
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	return matches[0], true
}

// ApplyScore adjusts the cached score for id in lockstep with a committed
// database update. Unknown ids are ignored; the periodic Reload
// resynchronizes the mirror regardless.
func (c *Cache) ApplyScore(id string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.records {
		if c.records[i].ID == id {
			c.records[i].Score += delta
			return
		}
	}
}

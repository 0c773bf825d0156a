// Package ingest grows the knowledge base: a best-effort fetch adapter
// over external sites and an importer that merges new, non-duplicate items
// and refreshes the in-memory cache.
package ingest

import "context"

// Item is one piece of fetched content before it becomes a suggestion.
type Item struct {
	Keyword string
	Text    string
	Link    string
}

// Fetcher retrieves content items from external sources. Implementations
// are best-effort: partial per-site failures are absorbed internally and an
// empty list signals total failure.
type Fetcher interface {
	Fetch(ctx context.Context) []Item
}

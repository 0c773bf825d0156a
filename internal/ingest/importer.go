package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mentorlab/mentorbot/internal/knowledge"
	"github.com/mentorlab/mentorbot/internal/storage"
)

// ImportStore is the persistent side of an import. Implemented by
// storage.Store.
type ImportStore interface {
	ImportSuggestions(recs []storage.Suggestion) (int, error)
}

// Importer turns fetched items into suggestion records, skipping links the
// knowledge base already has, and refreshes the cache after a successful
// commit so lookups never mix a partial batch with a stale snapshot.
type Importer struct {
	fetcher Fetcher
	store   ImportStore
	cache   *knowledge.Cache
	logger  *slog.Logger

	now func() time.Time
}

// NewImporter creates an Importer.
func NewImporter(fetcher Fetcher, store ImportStore, cache *knowledge.Cache) *Importer {
	return &Importer{
		fetcher: fetcher,
		store:   store,
		cache:   cache,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// ErrNothingFetched marks a run where every site came back empty. The
// scraper absorbs per-site failures, so an empty batch means the whole
// scrape is dead and the run is reported as a failure.
var ErrNothingFetched = errors.New("no items fetched from any site")

// Run fetches, imports, and reloads the cache. It returns how many items
// were fetched and how many were new. The cache is reloaded even when the
// fetch is empty, so out-of-band imports are picked up on every run. On
// import or reload failure the cache keeps its previous snapshot.
func (i *Importer) Run(ctx context.Context) (fetched, added int, err error) {
	items := i.fetcher.Fetch(ctx)
	if len(items) == 0 {
		if err := i.cache.Reload(); err != nil {
			return 0, 0, fmt.Errorf("reloading cache: %w", err)
		}
		return 0, 0, ErrNothingFetched
	}

	recs := make([]storage.Suggestion, 0, len(items))
	for n, item := range items {
		recs = append(recs, storage.Suggestion{
			ID:      fmt.Sprintf("AUTO_%d_%d", i.now().Unix(), n),
			Keyword: item.Keyword,
			Text:    item.Text,
			Link:    item.Link,
		})
	}

	added, err = i.store.ImportSuggestions(recs)
	if err != nil {
		return len(items), 0, fmt.Errorf("importing batch: %w", err)
	}

	// Reload strictly after the commit: readers see either the old or the
	// fully imported knowledge base, never a mix.
	if err := i.cache.Reload(); err != nil {
		return len(items), added, fmt.Errorf("reloading cache: %w", err)
	}

	i.logger.Info("ingestion complete", "fetched", len(items), "added", added)
	return len(items), added, nil
}

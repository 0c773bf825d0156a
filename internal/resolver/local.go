package resolver

import (
	"context"
	"fmt"

	"github.com/mentorlab/mentorbot/internal/knowledge"
	"github.com/mentorlab/mentorbot/internal/session"
)

// Local answers from the in-memory knowledge cache.
type Local struct {
	cache *knowledge.Cache
}

// NewLocal creates the local-lookup strategy over cache.
func NewLocal(cache *knowledge.Cache) *Local {
	return &Local{cache: cache}
}

func (l *Local) Name() string { return "local" }

// Resolve matches the message against cached suggestion keywords and
// formats the best record. It declines when nothing matches.
func (l *Local) Resolve(_ context.Context, message string, _ []session.Turn) (Reply, bool, error) {
	rec, ok := l.cache.Match(message)
	if !ok {
		return Reply{}, false, nil
	}
	return Reply{
		Text:         fmt.Sprintf("I think this is what you are looking for:\n\n💡 *%s*\n%s", rec.Text, rec.Link),
		Source:       SourceLocal,
		SuggestionID: rec.ID,
	}, true, nil
}

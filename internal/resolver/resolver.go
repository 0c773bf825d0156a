// Package resolver implements the hybrid answer chain: local suggestion
// lookup, remote AI, rule-based fallback. Strategies are tried in order;
// the first to produce a reply wins, and failures never propagate to the
// caller because the final strategy cannot fail.
package resolver

import (
	"context"
	"log/slog"

	"github.com/mentorlab/mentorbot/internal/session"
)

// Answer source classifications.
const (
	SourceLocal  = "local-suggestion"
	SourceRemote = "remote-ai"
	SourceRule   = "rule-fallback"
)

// Reply is a resolved answer with its classification metadata.
type Reply struct {
	Text         string
	Source       string
	SuggestionID string // set only when Source is SourceLocal
}

// Strategy produces a reply for a message, or declines. A strategy returns
// ok=false to fall through to the next one; a non-nil error is logged and
// also falls through.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, message string, history []session.Turn) (Reply, bool, error)
}

// Resolver iterates an ordered strategy list.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// New creates a Resolver over the given strategies, tried in order.
func New(strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies: strategies,
		logger:     slog.Default(),
	}
}

// Resolve returns a reply for message. It has no side effects: logging and
// persistence belong to the caller. The returned reply is never empty as
// long as the final strategy is unconditional (the rule fallback is).
func (r *Resolver) Resolve(ctx context.Context, message string, history []session.Turn) Reply {
	for _, s := range r.strategies {
		reply, ok, err := s.Resolve(ctx, message, history)
		if err != nil {
			r.logger.Warn("resolver strategy failed", "strategy", s.Name(), "error", err)
			continue
		}
		if !ok {
			continue
		}
		r.logger.Debug("resolved", "strategy", s.Name(), "source", reply.Source)
		return reply
	}

	// Unreachable with the standard chain; kept so a misconfigured
	// resolver still answers.
	return Reply{Text: genericAcknowledgement, Source: SourceRule}
}

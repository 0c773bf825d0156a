package resolver

import (
	"context"

	"github.com/mentorlab/mentorbot/internal/session"
)

// AIClient is the remote model call. Implemented by gemini.Client.
type AIClient interface {
	Ask(ctx context.Context, message string, history []session.Turn) (string, error)
}

// Remote answers via the remote AI adapter. Any failure — timeout, quota,
// not configured — is a soft decline handled by the resolver.
type Remote struct {
	client AIClient
}

// NewRemote creates the remote-AI strategy over client.
func NewRemote(client AIClient) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Name() string { return "remote-ai" }

func (r *Remote) Resolve(ctx context.Context, message string, history []session.Turn) (Reply, bool, error) {
	text, err := r.client.Ask(ctx, message, history)
	if err != nil {
		return Reply{}, false, err
	}
	return Reply{Text: text, Source: SourceRemote}, true, nil
}

package resolver

import (
	"context"
	"strings"

	"github.com/mentorlab/mentorbot/internal/session"
)

const genericAcknowledgement = "Thanks for sharing. I have noted it down."

// rule maps a substring trigger to a canned response.
type rule struct {
	trigger  string
	response string
}

var defaultRules = []rule{
	{"hello", "Hi there, happy to help. What would you like to learn today?"},
	{"hi ", "Hi there, happy to help. What would you like to learn today?"},
	{"thank", "You're welcome! Always glad to help."},
	{"bye", "See you next time. Keep practicing!"},
}

// Rules is the last-resort strategy: simple substring triggers with a
// generic acknowledgement default. It always succeeds.
type Rules struct {
	rules []rule
}

// NewRules creates the rule-fallback strategy with the default rule set.
func NewRules() *Rules {
	return &Rules{rules: defaultRules}
}

func (r *Rules) Name() string { return "rules" }

func (r *Rules) Resolve(_ context.Context, message string, _ []session.Turn) (Reply, bool, error) {
	lower := strings.ToLower(message)
	for _, rl := range r.rules {
		if strings.Contains(lower, rl.trigger) {
			return Reply{Text: rl.response, Source: SourceRule}, true, nil
		}
	}
	return Reply{Text: genericAcknowledgement, Source: SourceRule}, true, nil
}

// Package gemini adapts the Google Gemini API to the resolver's remote-AI
// contract: a single Ask call with bounded history, failing softly so the
// resolver can fall through to the rule set.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/mentorlab/mentorbot/internal/session"
)

// ErrNotConfigured is returned by Ask when no API key was provided at
// startup. The resolver treats it like any other remote failure.
var ErrNotConfigured = errors.New("gemini: not configured")

const (
	defaultModel   = "gemini-2.5-flash-lite"
	defaultTimeout = 30 * time.Second
)

// systemPrompt steers the model toward short mentor-style answers.
const systemPrompt = "You are AI Mentor, a friendly and professional " +
	"learning assistant. Keep answers short and focused on explaining the " +
	"concept or answering the learner's question. Do not greet the user again."

// Client wraps a genai client for chat-style question answering.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default generative model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a Gemini client with the given API key. An empty key yields a
// client whose Ask always returns ErrNotConfigured, so callers can wire the
// adapter unconditionally.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		model:   defaultModel,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if apiKey == "" {
		return c, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	c.client = client
	return c, nil
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c.client != nil
}

// Ask submits message plus the prior history turns and returns the model's
// text. The call is bounded by the client timeout; expiry surfaces as an
// ordinary error.
func (c *Client) Ask(ctx context.Context, message string, history []session.Turn) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := HistoryContents(history)
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", errors.New("empty model response")
	}
	return text, nil
}

// HistoryContents converts conversation turns into genai contents.
// Assistant turns map to the model role; anything else is treated as user.
func HistoryContents(history []session.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == session.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	return text
}

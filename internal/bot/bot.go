// Package bot is the conversation loop: it consumes gateway updates,
// resolves answers, and routes feedback button presses back into the
// scoring service.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/mentorlab/mentorbot/internal/feedback"
	"github.com/mentorlab/mentorbot/internal/gateway"
	"github.com/mentorlab/mentorbot/internal/resolver"
	"github.com/mentorlab/mentorbot/internal/session"
	"github.com/mentorlab/mentorbot/internal/storage"
)

// pollRetryDelay spaces out long-poll attempts after a transport error.
const pollRetryDelay = 3 * time.Second

// UpdateSource is the inbound side of the gateway. Implemented by
// gateway.Client.
type UpdateSource interface {
	GetUpdates(ctx context.Context) ([]gateway.Update, error)
	AnswerCallback(ctx context.Context, callbackID string) error
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
}

// Notifier is best-effort delivery. Implemented by gateway.SafeSender.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string, opts *gateway.SendOptions) gateway.SendResult
}

// MessageStore persists the conversation log. Implemented by storage.Store.
type MessageStore interface {
	SaveMessageLog(m storage.MessageLog) error
}

// Bot ties the gateway, resolver, sessions and feedback together.
type Bot struct {
	updates  UpdateSource
	notifier Notifier
	resolver *resolver.Resolver
	sessions *session.Sessions
	feedback *feedback.Service
	store    MessageStore
	logger   *slog.Logger
}

// New creates a Bot over its collaborators.
func New(updates UpdateSource, notifier Notifier, res *resolver.Resolver, sessions *session.Sessions, fb *feedback.Service, store MessageStore) *Bot {
	return &Bot{
		updates:  updates,
		notifier: notifier,
		resolver: res,
		sessions: sessions,
		feedback: fb,
		store:    store,
		logger:   slog.Default(),
	}
}

// Run long-polls the gateway until ctx is cancelled. Poll errors are
// logged and retried after a short delay; they never end the loop.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("update loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.updates.GetUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("polling updates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, update := range updates {
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate dispatches one update. A panic in a handler is absorbed so
// a malformed update cannot kill the loop.
func (b *Bot) handleUpdate(ctx context.Context, update gateway.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked", "update_id", update.UpdateID, "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.HandleCallback(ctx, *update.CallbackQuery)
	case update.Message != nil:
		b.HandleMessage(ctx, *update.Message)
	}
}

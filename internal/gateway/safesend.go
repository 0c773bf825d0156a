package gateway

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mentorlab/mentorbot/internal/storage"
)

// SendResult classifies the outcome of a safe send.
type SendResult int

const (
	// Delivered means the gateway accepted the message.
	Delivered SendResult = iota
	// QueuedForRetry means delivery failed and the message was handed to
	// the durable retry queue.
	QueuedForRetry
)

// RetryStore is the durable queue for failed sends. Implemented by
// storage.Store.
type RetryStore interface {
	EnqueueRetry(item storage.RetryItem) error
}

// SafeSender wraps a Sender so that delivery failures queue instead of
// raising. Every job and the message handler send through it.
type SafeSender struct {
	sender  Sender
	retries RetryStore
	logger  *slog.Logger
}

// NewSafeSender creates a SafeSender over sender and the retry queue.
func NewSafeSender(sender Sender, retries RetryStore) *SafeSender {
	return &SafeSender{
		sender:  sender,
		retries: retries,
		logger:  slog.Default(),
	}
}

// Send attempts delivery and enqueues a retry item on failure. It never
// returns an error; the result says which path was taken.
func (s *SafeSender) Send(ctx context.Context, chatID int64, text string, opts *SendOptions) SendResult {
	err := s.sender.SendMessage(ctx, chatID, text, opts)
	if err == nil {
		return Delivered
	}

	s.logger.Warn("send failed, queueing for retry", "chat_id", chatID, "error", err)
	item := storage.RetryItem{
		ID:     uuid.New().String(),
		ChatID: chatID,
		Text:   text,
		Reason: err.Error(),
	}
	if qErr := s.retries.EnqueueRetry(item); qErr != nil {
		// The message is lost; best-effort delivery allows that, but it
		// must be visible in the logs.
		s.logger.Error("retry enqueue failed, message dropped", "chat_id", chatID, "error", qErr)
	}
	return QueuedForRetry
}

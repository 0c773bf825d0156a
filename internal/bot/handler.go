package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mentorlab/mentorbot/internal/feedback"
	"github.com/mentorlab/mentorbot/internal/gateway"
	"github.com/mentorlab/mentorbot/internal/resolver"
	"github.com/mentorlab/mentorbot/internal/session"
	"github.com/mentorlab/mentorbot/internal/storage"
)

const (
	nonTextReply        = "I can only work with text messages for now. Send me your question as text!"
	unknownCommandReply = "I don't know that command. Just send me a question in plain text."
	storageApology      = "😔 Sorry, something went wrong on my side. Please try again in a moment."
	feedbackThanks      = "\n\nThanks for the feedback! 🙏"
)

// HandleMessage processes one inbound message end to end: resolve a
// reply, record it, and send it with feedback buttons attached.
func (b *Bot) HandleMessage(ctx context.Context, msg gateway.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if msg.Text == "" {
		b.notifier.Send(ctx, chatID, nonTextReply, nil)
		return
	}

	if strings.HasPrefix(msg.Text, "/") {
		b.handleCommand(ctx, msg)
		return
	}

	// History is snapshotted before the current question so the resolver
	// sees it once, as the message, not twice.
	history := b.sessions.Context(userID)
	b.sessions.Append(userID, session.RoleUser, msg.Text)

	reply := b.resolver.Resolve(ctx, msg.Text, history)
	b.sessions.Append(userID, session.RoleAssistant, reply.Text)

	err := b.store.SaveMessageLog(storage.MessageLog{
		UserID:   userID,
		Username: msg.From.DisplayName(),
		Message:  msg.Text,
		Reply:    reply.Text,
		Source:   reply.Source,
	})
	if err != nil {
		b.logger.Error("saving message log failed", "user_id", userID, "error", err)
		b.notifier.Send(ctx, chatID, storageApology, nil)
		return
	}

	b.notifier.Send(ctx, chatID, reply.Text, &gateway.SendOptions{
		ParseMode: "Markdown",
		Keyboard:  feedbackKeyboard(reply),
	})
}

func (b *Bot) handleCommand(ctx context.Context, msg gateway.Message) {
	command := strings.Fields(msg.Text)[0]
	switch command {
	case "/start":
		greeting := fmt.Sprintf(
			"👋 Hi %s! I'm your AI mentor. Ask me anything about programming and I'll do my best to help.",
			msg.From.DisplayName(),
		)
		b.notifier.Send(ctx, msg.Chat.ID, greeting, nil)
	default:
		b.notifier.Send(ctx, msg.Chat.ID, unknownCommandReply, nil)
	}
}

// HandleCallback processes a feedback button press: acknowledge it, apply
// the score change when the reply came from a suggestion, log the vote,
// and rewrite the message so the buttons disappear.
func (b *Bot) HandleCallback(ctx context.Context, cb gateway.CallbackQuery) {
	if err := b.updates.AnswerCallback(ctx, cb.ID); err != nil {
		b.logger.Warn("answering callback failed", "callback_id", cb.ID, "error", err)
	}

	suggestionID, rating, err := parseFeedbackData(cb.Data)
	if err != nil {
		b.logger.Warn("ignoring malformed callback", "data", cb.Data, "error", err)
		return
	}

	if suggestionID != "" {
		if err := b.feedback.Apply(suggestionID, rating); err != nil {
			b.logger.Error("applying feedback failed", "suggestion_id", suggestionID, "error", err)
		}
	}

	replyText := ""
	if cb.Message != nil {
		replyText = cb.Message.Text
	}
	if err := b.feedback.Record(cb.From.ID, replyText, rating, suggestionID); err != nil {
		b.logger.Error("recording feedback failed", "user_id", cb.From.ID, "error", err)
	}

	if cb.Message != nil {
		err := b.updates.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, replyText+feedbackThanks)
		if err != nil {
			b.logger.Warn("editing feedback message failed", "chat_id", cb.Message.Chat.ID, "error", err)
		}
	}
}

// feedbackKeyboard builds the 👍/👎 row for a reply. Suggestion-backed
// replies embed the suggestion id so a vote can adjust its score.
func feedbackKeyboard(reply resolver.Reply) *gateway.InlineKeyboard {
	return &gateway.InlineKeyboard{Rows: [][]gateway.InlineButton{{
		{Text: "👍", CallbackData: feedbackData(reply.SuggestionID, feedback.RatingGood)},
		{Text: "👎", CallbackData: feedbackData(reply.SuggestionID, feedback.RatingBad)},
	}}}
}

// feedbackData encodes a vote as "fb|<suggestion id>|<rating>". The id
// slot is empty for replies that did not come from the knowledge base.
func feedbackData(suggestionID, rating string) string {
	return fmt.Sprintf("fb|%s|%s", suggestionID, rating)
}

func parseFeedbackData(data string) (suggestionID, rating string, err error) {
	parts := strings.Split(data, "|")
	if len(parts) != 3 || parts[0] != "fb" {
		return "", "", fmt.Errorf("unexpected callback data %q", data)
	}
	return parts[1], parts[2], nil
}

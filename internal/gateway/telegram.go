// Package gateway is the messaging transport: a thin Telegram Bot API
// client plus the safe-send wrapper every outbound path goes through.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	sendTimeout = 10 * time.Second
	// Long-poll window plus headroom for the HTTP round trip.
	pollWindow  = 30
	pollTimeout = 40 * time.Second
)

// User identifies a message sender.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// DisplayName returns the username, falling back to the first name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// Message is an inbound chat message. Text is empty for stickers, photos
// and other non-text content.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// CallbackQuery is a button press on an inline keyboard.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

// Update is one long-poll event.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// InlineButton is a single inline keyboard button.
type InlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// InlineKeyboard is rows of buttons attached to an outbound message.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// SendOptions carries optional outbound message attributes.
type SendOptions struct {
	ParseMode string // e.g. "Markdown"
	Keyboard  *InlineKeyboard
}

// Sender delivers outbound messages. Implemented by Client; the safe-send
// wrapper and jobs depend on this rather than the concrete client.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) error
}

// Client talks to the Telegram Bot API over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	offset     int64
}

// NewClient creates a Client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		// Per-call timeouts via context; long polls exceed any sane
		// client-wide timeout.
		httpClient: &http.Client{Timeout: 0},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// apiResponse mirrors the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// APIError is a Bot API failure, including delivery failures such as a
// user having blocked the bot (HTTP 403).
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s (code %d)", e.Description, e.Code)
}

func (c *Client) call(ctx context.Context, method string, payload any, timeout time.Duration) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !envelope.OK {
		return nil, &APIError{Code: envelope.ErrorCode, Description: envelope.Description}
	}
	return envelope.Result, nil
}

// SendMessage delivers text to a chat. A blocked or deleted destination
// surfaces as an *APIError.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if opts != nil {
		if opts.ParseMode != "" {
			payload["parse_mode"] = opts.ParseMode
		}
		if opts.Keyboard != nil {
			payload["reply_markup"] = map[string]any{"inline_keyboard": opts.Keyboard.Rows}
		}
	}
	_, err := c.call(ctx, "sendMessage", payload, sendTimeout)
	return err
}

// EditMessageText rewrites an already-sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	_, err := c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}, sendTimeout)
	return err
}

// AnswerCallback acknowledges a button press so the client stops spinning.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
	}, sendTimeout)
	return err
}

// GetUpdates long-polls for the next batch of updates and advances the
// internal offset so each update is delivered once.
func (c *Client) GetUpdates(ctx context.Context) ([]Update, error) {
	result, err := c.call(ctx, "getUpdates", map[string]any{
		"offset":  c.offset,
		"timeout": pollWindow,
	}, pollTimeout)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
	}
	return updates, nil
}

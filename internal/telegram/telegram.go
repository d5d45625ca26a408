// Package telegram adapts the Telegram Bot API to the bot's transport needs.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tejzpr/checkup-bot/internal/conversation"
)

// Message is an incoming chat message reduced to what the bot routes on.
type Message struct {
	ChatID      int64
	UserID      int64
	DisplayName string
	MessageID   int

	// Command is set for slash commands, without the slash.
	Command string
	Args    string

	Text string
	File *conversation.File
}

// FromUpdate converts an update. ok is false for updates the bot ignores
// (edits, callbacks, service messages).
func FromUpdate(u tgbotapi.Update) (Message, bool) {
	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return Message{}, false
	}
	out := Message{
		ChatID:      m.Chat.ID,
		UserID:      m.From.ID,
		DisplayName: DisplayName(m.From),
		MessageID:   m.MessageID,
	}

	switch {
	case m.IsCommand():
		out.Command = strings.ToLower(m.Command())
		out.Args = m.CommandArguments()
	case m.Document != nil:
		out.File = &conversation.File{
			TransportID: m.Document.FileID,
			Name:        m.Document.FileName,
			MimeType:    m.Document.MimeType,
			Size:        int64(m.Document.FileSize),
		}
	case len(m.Photo) > 0:
		largest := m.Photo[len(m.Photo)-1]
		out.File = &conversation.File{
			TransportID: largest.FileID,
			MimeType:    "image/jpeg",
			Size:        int64(largest.FileSize),
			Photo:       true,
		}
	case m.Text != "":
		out.Text = m.Text
	default:
		return Message{}, false
	}
	return out, true
}

// DisplayName prefers the @username and falls back to the full name.
func DisplayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// MessageConfig renders a prompt for chatID. replyTo quotes that message
// when the prompt asks for it.
func MessageConfig(chatID int64, replyTo int, p conversation.Prompt) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, p.Text)
	if p.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if p.Reply && replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	switch {
	case p.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	case p.Keyboard != nil:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(p.Keyboard))
		for _, labels := range p.Keyboard {
			row := make([]tgbotapi.KeyboardButton, 0, len(labels))
			for _, l := range labels {
				row = append(row, tgbotapi.NewKeyboardButton(l))
			}
			rows = append(rows, row)
		}
		msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(rows...)
	}
	return msg
}

// pollSeconds is the getUpdates long-poll window.
const pollSeconds = 60

// DefaultTimeout bounds a single Bot API request when New is given zero.
const DefaultTimeout = 15 * time.Second

// Client sends and fetches through the Bot API.
type Client struct {
	api  *tgbotapi.BotAPI
	poll *tgbotapi.BotAPI
	http *http.Client
}

// New authenticates with token. Every Bot API request except the long poll
// is bounded by timeout.
func New(token string, timeout time.Duration) (*Client, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, timeout)
}

// NewWithEndpoint is New against another Bot API server. endpoint is a
// format string taking the token and the method name.
func NewWithEndpoint(token, endpoint string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	// getUpdates holds the connection open for the whole poll window.
	poll := *api
	poll.Client = &http.Client{Timeout: pollSeconds*time.Second + timeout}
	return &Client{api: api, poll: &poll, http: &http.Client{}}, nil
}

// Username is the bot's own account name.
func (c *Client) Username() string { return c.api.Self.UserName }

// Updates long-polls until ctx is done and emits routable messages.
func (c *Client) Updates(ctx context.Context) <-chan Message {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollSeconds
	updates := c.poll.GetUpdatesChan(cfg)

	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.poll.StopReceivingUpdates()
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				msg, ok := FromUpdate(u)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					c.poll.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	return do(ctx, func() error {
		_, err := c.api.Send(msg)
		return err
	})
}

// do runs a Bot API call and returns early when ctx ends. The call itself
// is still bounded by the HTTP client timeout.
func do(ctx context.Context, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers a prompt.
func (c *Client) Send(ctx context.Context, chatID int64, replyTo int, p conversation.Prompt) error {
	return c.send(ctx, MessageConfig(chatID, replyTo, p))
}

// SendHTML delivers an HTML formatted message.
func (c *Client) SendHTML(ctx context.Context, chatID int64, text string) error {
	return c.Send(ctx, chatID, 0, conversation.Prompt{Text: text, HTML: true})
}

// SendDocument uploads a file from disk as a document.
func (c *Client) SendDocument(ctx context.Context, chatID int64, path string) error {
	return c.send(ctx, tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path)))
}

// SendPhoto uploads a file from disk as a photo.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, path string) error {
	return c.send(ctx, tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path)))
}

// SendFile uploads in-memory bytes as a named document.
func (c *Client) SendFile(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	return c.send(ctx, doc)
}

// Fetch opens the content of an uploaded file. The caller closes it.
func (c *Client) Fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	var url string
	err := do(ctx, func() error {
		var err error
		url, err = c.api.GetFileDirectURL(fileID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("telegram: download file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Package bot routes chat messages to conversations and carries out the
// I/O their transitions ask for.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tejzpr/checkup-bot/internal/conversation"
	"github.com/tejzpr/checkup-bot/internal/manager"
	"github.com/tejzpr/checkup-bot/internal/notify"
	"github.com/tejzpr/checkup-bot/internal/report"
	"github.com/tejzpr/checkup-bot/internal/submission"
	"github.com/tejzpr/checkup-bot/internal/telegram"
	"github.com/tejzpr/checkup-bot/internal/uploads"
)

// Fixed replies outside the conversation flow.
const (
	refusalText    = "⛔ This command is available to the expert only."
	noResultsText  = "No submissions found for this period."
	reportFailText = "Could not build the report. Please try again later."
)

// Transport is the chat surface the bot drives.
type Transport interface {
	notify.Sender
	Send(ctx context.Context, chatID int64, replyTo int, p conversation.Prompt) error
	SendFile(ctx context.Context, chatID int64, name string, data []byte, caption string) error
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Store is the write side of the submission log.
type Store interface {
	Insert(ctx context.Context, sub submission.Submission) error
}

// Files is the attachment directory.
type Files interface {
	notify.Files
	Save(name string, r io.Reader) (string, error)
}

// Publisher receives every persisted submission.
type Publisher interface {
	Publish(sub submission.Submission)
}

// Deps wires a Bot.
type Deps struct {
	Transport     Transport
	Conversations *manager.ConversationManager
	Store         Store
	Files         Files
	Notifier      *notify.Notifier
	Reports       *report.Generator
	// Publisher is optional.
	Publisher  Publisher
	OperatorID int64

	FetchTimeout time.Duration
	StoreTimeout time.Duration

	Now func() time.Time
	Log *slog.Logger
}

// Bot handles incoming messages.
type Bot struct {
	Deps
	wg sync.WaitGroup
}

// New returns a Bot. Zero timeouts default to 30s fetch and 10s store.
func New(d Deps) *Bot {
	if d.FetchTimeout <= 0 {
		d.FetchTimeout = 30 * time.Second
	}
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = 10 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Bot{Deps: d}
}

// Run handles messages until the channel closes. Each user has one worker
// that drains that user's messages in arrival order; different users run
// concurrently. Run waits for in-flight handlers before returning.
func (b *Bot) Run(ctx context.Context, messages <-chan telegram.Message) {
	var (
		mu      sync.Mutex
		pending = make(map[int64][]telegram.Message)
	)
	drain := func(userID int64) {
		defer b.wg.Done()
		for {
			mu.Lock()
			queue := pending[userID]
			if len(queue) == 0 {
				delete(pending, userID)
				mu.Unlock()
				return
			}
			msg := queue[0]
			pending[userID] = queue[1:]
			mu.Unlock()

			b.Handle(ctx, msg)
		}
	}

	for msg := range messages {
		mu.Lock()
		queue, busy := pending[msg.UserID]
		pending[msg.UserID] = append(queue, msg)
		mu.Unlock()
		if !busy {
			b.wg.Add(1)
			go drain(msg.UserID)
		}
	}
	b.wg.Wait()
}

// Handle processes one message to completion.
func (b *Bot) Handle(ctx context.Context, msg telegram.Message) {
	switch msg.Command {
	case "":
	case "start", "help":
		b.reply(ctx, msg, conversation.Welcome())
		return
	case "whoami", "id":
		b.reply(ctx, msg, conversation.Prompt{Text: fmt.Sprintf("Your chat ID: %d", msg.UserID)})
		return
	case "report":
		b.handleReport(ctx, msg)
		return
	case "new":
		b.converse(ctx, msg, conversation.Start())
		return
	case "cancel":
		b.converse(ctx, msg, conversation.Cancel())
		return
	default:
		// Unknown commands are ordinary answers.
		msg.Text = "/" + msg.Command
		if msg.Args != "" {
			msg.Text += " " + msg.Args
		}
	}

	var ev conversation.Event
	switch {
	case msg.File != nil:
		ev = conversation.Upload(*msg.File)
	case strings.EqualFold(strings.TrimSpace(msg.Text), conversation.BtnNewRequest):
		ev = conversation.Start()
	default:
		ev = conversation.Text(msg.Text)
	}
	b.converse(ctx, msg, ev)
}

func (b *Bot) converse(ctx context.Context, msg telegram.Message, ev conversation.Event) {
	b.Conversations.With(msg.UserID, msg.DisplayName, func(m *conversation.Machine) {
		step := m.Handle(ev)
		for {
			if step.Err != nil {
				b.Log.Error("conversation invariant violated", "user_id", msg.UserID, "state", m.State().String(), "err", step.Err)
			}
			b.reply(ctx, msg, step.Prompts...)
			if step.Effect == nil {
				return
			}
			step = b.perform(ctx, msg, m, step.Effect)
		}
	})
}

func (b *Bot) perform(ctx context.Context, msg telegram.Message, m *conversation.Machine, eff conversation.Effect) conversation.Step {
	switch e := eff.(type) {
	case conversation.StoreAttachment:
		name, err := b.storeAttachment(ctx, e.File)
		if err != nil {
			b.Log.Warn("attachment skipped", "user_id", msg.UserID, "file_id", e.File.TransportID, "err", err)
			return m.AttachmentFailed()
		}
		b.Log.Info("attachment stored", "user_id", msg.UserID, "file", name)
		return m.AttachmentStored(name)

	case conversation.Persist:
		if err := b.persist(ctx, e.Submission); err != nil {
			b.Log.Error("failed to persist submission", "user_id", msg.UserID, "submission_id", e.Submission.ID, "err", err)
			return m.PersistFailed()
		}
		b.Log.Info("submission recorded", "user_id", msg.UserID, "submission_id", e.Submission.ID)
		b.forward(ctx, e.Submission)
		return m.Persisted()
	}
	b.Log.Error("unknown conversation effect", "type", fmt.Sprintf("%T", eff))
	return conversation.Step{}
}

func (b *Bot) storeAttachment(ctx context.Context, f conversation.File) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.FetchTimeout)
	defer cancel()

	body, err := b.Transport.Fetch(ctx, f.TransportID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	name := uploads.StoredName(f.Name, f.Photo, b.Now())
	limited := &limitedReader{r: body, n: conversation.MaxFileSize}
	return b.Files.Save(name, limited)
}

// persist is detached from ctx cancellation so a confirmation in flight at
// shutdown is still recorded, bounded by the store timeout.
func (b *Bot) persist(ctx context.Context, sub submission.Submission) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.StoreTimeout)
	defer cancel()
	return b.Store.Insert(ctx, sub)
}

// forward notifies the operator. Failures never reach the requester: the
// submission is already recorded.
func (b *Bot) forward(ctx context.Context, sub submission.Submission) {
	if b.Publisher != nil {
		b.Publisher.Publish(sub)
	}
	if b.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.FetchTimeout)
	defer cancel()
	if err := b.Notifier.Notify(ctx, sub); err != nil {
		b.Log.Error("operator notification failed", "submission_id", sub.ID, "err", err)
	}
}

func (b *Bot) handleReport(ctx context.Context, msg telegram.Message) {
	if b.OperatorID == 0 || msg.UserID != b.OperatorID {
		b.Log.Warn("report refused", "user_id", msg.UserID)
		b.reply(ctx, msg, conversation.Prompt{Text: refusalText})
		return
	}
	days, err := report.ParseLookback(msg.Args)
	if err != nil {
		b.reply(ctx, msg, conversation.Prompt{Text: report.Usage})
		return
	}
	b.reply(ctx, msg, conversation.Prompt{Text: fmt.Sprintf("📊 Building report for the last %d days...", days)})

	rep, err := b.Reports.Generate(ctx, days)
	switch {
	case errors.Is(err, report.ErrNoSubmissions):
		b.reply(ctx, msg, conversation.Prompt{Text: noResultsText})
		return
	case err != nil:
		b.Log.Error("report failed", "days", days, "err", err)
		b.reply(ctx, msg, conversation.Prompt{Text: reportFailText})
		return
	}

	caption := fmt.Sprintf("📈 Submissions report for %d days", days)
	if err := b.Transport.SendFile(ctx, msg.ChatID, rep.Filename, rep.Data, caption); err != nil {
		b.Log.Error("failed to deliver report", "days", days, "err", err)
	}
}

func (b *Bot) reply(ctx context.Context, msg telegram.Message, prompts ...conversation.Prompt) {
	for _, p := range prompts {
		if err := b.Transport.Send(ctx, msg.ChatID, msg.MessageID, p); err != nil {
			b.Log.Warn("failed to send reply", "user_id", msg.UserID, "err", err)
		}
	}
}

// limitedReader fails once more than n bytes are read, so an upload that
// lied about its size is rejected instead of truncated.
type limitedReader struct {
	r io.Reader
	n int64
}

var errTooLarge = errors.New("bot: attachment exceeds size limit")

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n, errTooLarge
	}
	return n, err
}

package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tejzpr/checkup-bot/internal/conversation"
	"github.com/tejzpr/checkup-bot/internal/logging"
	"github.com/tejzpr/checkup-bot/internal/manager"
	"github.com/tejzpr/checkup-bot/internal/notify"
	"github.com/tejzpr/checkup-bot/internal/report"
	"github.com/tejzpr/checkup-bot/internal/submission"
	"github.com/tejzpr/checkup-bot/internal/telegram"
	"github.com/tejzpr/checkup-bot/internal/uploads"
)

const (
	operatorID = int64(900)
	userID     = int64(100)
)

type outbound struct {
	chat int64
	kind string
	text string
}

type fakeTransport struct {
	mu       sync.Mutex
	out      []outbound
	files    map[string][]byte
	fetchErr error
	htmlErr  error
}

func (f *fakeTransport) record(o outbound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, o)
}

func (f *fakeTransport) Send(_ context.Context, chatID int64, _ int, p conversation.Prompt) error {
	f.record(outbound{chatID, "text", p.Text})
	return nil
}

func (f *fakeTransport) SendHTML(_ context.Context, chatID int64, text string) error {
	if f.htmlErr != nil {
		return f.htmlErr
	}
	f.record(outbound{chatID, "html", text})
	return nil
}

func (f *fakeTransport) SendDocument(_ context.Context, chatID int64, path string) error {
	f.record(outbound{chatID, "document", path})
	return nil
}

func (f *fakeTransport) SendPhoto(_ context.Context, chatID int64, path string) error {
	f.record(outbound{chatID, "photo", path})
	return nil
}

func (f *fakeTransport) SendFile(_ context.Context, chatID int64, name string, _ []byte, _ string) error {
	f.record(outbound{chatID, "file", name})
	return nil
}

func (f *fakeTransport) Fetch(_ context.Context, fileID string) (io.ReadCloser, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	data, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeTransport) last() outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.out) == 0 {
		return outbound{}
	}
	return f.out[len(f.out)-1]
}

func (f *fakeTransport) kinds(chat int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, o := range f.out {
		if o.chat == chat {
			out = append(out, o.kind)
		}
	}
	return out
}

type memStore struct {
	mu          sync.Mutex
	subs        []submission.Submission
	err         error
	sawDeadline bool
}

func (s *memStore) Insert(ctx context.Context, sub submission.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}
	_, s.sawDeadline = ctx.Deadline()
	s.subs = append(s.subs, sub)
	return nil
}

func (s *memStore) ListSince(_ context.Context, since time.Time) ([]submission.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []submission.Submission
	for i := len(s.subs) - 1; i >= 0; i-- {
		if !s.subs[i].CreatedAt.Before(since) {
			out = append(out, s.subs[i])
		}
	}
	return out, nil
}

type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) Publish(sub submission.Submission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, sub.ID)
}

type harness struct {
	bot       *Bot
	transport *fakeTransport
	store     *memStore
	files     *uploads.Dir
	published *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir, err := uploads.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tr := &fakeTransport{files: map[string][]byte{}}
	store := &memStore{}
	rec := &recorder{}
	log := logging.Discard()
	b := New(Deps{
		Transport:     tr,
		Conversations: manager.NewConversationManager(time.Hour),
		Store:         store,
		Files:         dir,
		Notifier:      notify.New(tr, dir, operatorID, log),
		Reports:       &report.Generator{Source: store},
		Publisher:     rec,
		OperatorID:    operatorID,
		Log:           log,
	})
	return &harness{bot: b, transport: tr, store: store, files: dir, published: rec}
}

func (h *harness) say(text string) {
	h.bot.Handle(context.Background(), telegram.Message{ChatID: userID, UserID: userID, DisplayName: "alice", Text: text})
}

func (h *harness) command(from int64, cmd, args string) {
	h.bot.Handle(context.Background(), telegram.Message{ChatID: from, UserID: from, Command: cmd, Args: args})
}

func (h *harness) upload(f conversation.File) {
	h.bot.Handle(context.Background(), telegram.Message{ChatID: userID, UserID: userID, DisplayName: "alice", File: &f})
}

func (h *harness) fillUntilDocs() {
	h.say(conversation.BtnNewRequest)
	h.say("Main St 5")
	h.say("77:01:0004010:1234")
	h.say(conversation.BtnOwner)
}

func TestFullSubmission(t *testing.T) {
	h := newHarness(t)
	h.transport.files["doc1"] = []byte("%PDF-1.4")
	h.transport.files["ph1"] = []byte("jpegdata")

	h.fillUntilDocs()
	h.upload(conversation.File{TransportID: "doc1", Name: "deed.pdf", MimeType: "application/pdf", Size: 8})
	if !strings.Contains(h.transport.last().text, "deed.pdf saved") {
		t.Fatalf("expected stored acknowledgment, got %q", h.transport.last().text)
	}
	h.upload(conversation.File{TransportID: "ph1", MimeType: "image/jpeg", Size: 8, Photo: true})
	h.say(conversation.BtnDone)
	h.say("please hurry")
	if !strings.Contains(h.transport.last().text, "Property check request") {
		t.Fatalf("expected preview, got %q", h.transport.last().text)
	}
	h.say(conversation.BtnSend)

	if len(h.store.subs) != 1 {
		t.Fatalf("expected 1 stored submission, got %d", len(h.store.subs))
	}
	sub := h.store.subs[0]
	if sub.UserID != userID || sub.DisplayName != "alice" || sub.Comment != "please hurry" {
		t.Errorf("unexpected submission %+v", sub)
	}
	if len(sub.Attachments) != 2 || !strings.HasSuffix(sub.Attachments[0], "_deed.pdf") {
		t.Fatalf("unexpected attachments %v", sub.Attachments)
	}
	for _, name := range sub.Attachments {
		if !h.files.Exists(name) {
			t.Errorf("attachment %s not on disk", name)
		}
	}

	got := h.transport.kinds(operatorID)
	want := []string{"html", "document", "photo"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("operator received %v, want %v", got, want)
	}
	if len(h.published.ids) != 1 || h.published.ids[0] != sub.ID {
		t.Errorf("expected publish of %s, got %v", sub.ID, h.published.ids)
	}
	if !strings.Contains(h.transport.last().text, "sent to the expert") {
		t.Errorf("expected success acknowledgment, got %q", h.transport.last().text)
	}
	if h.bot.Conversations.Len() != 0 {
		t.Error("completed conversation should be evicted")
	}
}

func TestNotificationFailureStillAcknowledges(t *testing.T) {
	h := newHarness(t)
	h.transport.htmlErr = errors.New("operator blocked the bot")

	h.fillUntilDocs()
	h.say(conversation.BtnSkip)
	h.say("")
	h.say(conversation.BtnSend)

	if len(h.store.subs) != 1 {
		t.Fatalf("submission should be recorded, got %d", len(h.store.subs))
	}
	if h.store.subs[0].Comment != conversation.DefaultComment {
		t.Errorf("expected default comment, got %q", h.store.subs[0].Comment)
	}
	if !strings.Contains(h.transport.last().text, "sent to the expert") {
		t.Errorf("user should still see success, got %q", h.transport.last().text)
	}
}

func TestPersistFailureKeepsConversation(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("disk full")

	h.fillUntilDocs()
	h.say(conversation.BtnSkip)
	h.say("none")
	h.say(conversation.BtnSend)

	if len(h.transport.kinds(operatorID)) != 0 {
		t.Error("operator must not be notified about an unsaved submission")
	}
	if !strings.Contains(h.transport.last().text, "Could not save your request") {
		t.Errorf("unexpected reply %q", h.transport.last().text)
	}

	h.store.err = nil
	h.say(conversation.BtnSend)
	if len(h.store.subs) != 1 {
		t.Fatalf("retry should persist, got %d", len(h.store.subs))
	}
}

func TestFetchFailureSkipsAttachment(t *testing.T) {
	h := newHarness(t)
	h.transport.fetchErr = errors.New("timeout")

	h.fillUntilDocs()
	h.upload(conversation.File{TransportID: "x", Name: "a.pdf", MimeType: "application/pdf", Size: 3})
	if !strings.Contains(h.transport.last().text, "Could not save the file") {
		t.Fatalf("expected re-prompt, got %q", h.transport.last().text)
	}
	h.transport.fetchErr = nil
	h.say(conversation.BtnDone)
	h.say("none")
	h.say(conversation.BtnSend)
	if len(h.store.subs) != 1 || len(h.store.subs[0].Attachments) != 0 {
		t.Fatalf("expected submission without attachments, got %+v", h.store.subs)
	}
}

func TestOversizedDownloadRejected(t *testing.T) {
	h := newHarness(t)
	h.transport.files["big"] = make([]byte, conversation.MaxFileSize+1)

	h.fillUntilDocs()
	// Declared size passes the policy but the content is larger.
	h.upload(conversation.File{TransportID: "big", Name: "big.pdf", MimeType: "application/pdf", Size: 10})
	if !strings.Contains(h.transport.last().text, "Could not save the file") {
		t.Fatalf("expected failure re-prompt, got %q", h.transport.last().text)
	}
}

func TestCancelCommand(t *testing.T) {
	h := newHarness(t)
	h.say(conversation.BtnNewRequest)
	h.command(userID, "cancel", "")
	if h.transport.last().text != conversation.Cancelled().Text {
		t.Errorf("unexpected reply %q", h.transport.last().text)
	}
	if h.bot.Conversations.Len() != 0 {
		t.Error("cancelled conversation should be evicted")
	}
}

func TestStartShowsWelcome(t *testing.T) {
	h := newHarness(t)
	h.command(userID, "start", "")
	if h.transport.last().text != conversation.Welcome().Text {
		t.Errorf("unexpected reply %q", h.transport.last().text)
	}
	h.command(userID, "new", "")
	if !strings.Contains(h.transport.last().text, "Enter the property address") {
		t.Errorf("expected address prompt, got %q", h.transport.last().text)
	}
}

func TestWhoAmI(t *testing.T) {
	h := newHarness(t)
	h.command(12345, "whoami", "")
	if h.transport.last().text != "Your chat ID: 12345" {
		t.Errorf("unexpected reply %q", h.transport.last().text)
	}
}

func TestReportRefusedForNonOperator(t *testing.T) {
	h := newHarness(t)
	h.command(userID, "report", "")
	if h.transport.last().text != refusalText {
		t.Errorf("expected refusal, got %q", h.transport.last().text)
	}
}

func TestReportUsage(t *testing.T) {
	h := newHarness(t)
	h.command(operatorID, "report", "abc")
	if h.transport.last().text != report.Usage {
		t.Errorf("expected usage, got %q", h.transport.last().text)
	}
}

func TestReportEmpty(t *testing.T) {
	h := newHarness(t)
	h.command(operatorID, "report", "0")
	if h.transport.last().text != noResultsText {
		t.Errorf("expected no-results reply, got %q", h.transport.last().text)
	}
	for _, k := range h.transport.kinds(operatorID) {
		if k == "file" {
			t.Error("no spreadsheet should be sent")
		}
	}
}

func TestReportDelivered(t *testing.T) {
	h := newHarness(t)
	h.fillUntilDocs()
	h.say(conversation.BtnSkip)
	h.say("none")
	h.say(conversation.BtnSend)

	h.command(operatorID, "report", "")
	last := h.transport.last()
	if last.kind != "file" || last.chat != operatorID || last.text != "requests_report_7d.xlsx" {
		t.Errorf("expected report file, got %+v", last)
	}
}

func TestRunHandlesUsersConcurrently(t *testing.T) {
	h := newHarness(t)
	ch := make(chan telegram.Message)
	done := make(chan struct{})
	go func() {
		h.bot.Run(context.Background(), ch)
		close(done)
	}()
	for u := int64(1); u <= 5; u++ {
		ch <- telegram.Message{ChatID: u, UserID: u, Command: "new"}
	}
	close(ch)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if h.bot.Conversations.Len() != 5 {
		t.Errorf("expected 5 active conversations, got %d", h.bot.Conversations.Len())
	}
}

func runMessages(t *testing.T, h *harness, msgs []telegram.Message) {
	t.Helper()
	ch := make(chan telegram.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	done := make(chan struct{})
	go func() {
		h.bot.Run(context.Background(), ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunKeepsUserMessageOrder(t *testing.T) {
	const files = 30
	for trial := 0; trial < 5; trial++ {
		h := newHarness(t)
		h.fillUntilDocs()

		var msgs []telegram.Message
		for i := 0; i < files; i++ {
			id := fmt.Sprintf("f%02d", i)
			h.transport.files[id] = []byte("%PDF-1.4")
			f := conversation.File{TransportID: id, Name: id + ".pdf", MimeType: "application/pdf", Size: 8}
			msgs = append(msgs, telegram.Message{ChatID: userID, UserID: userID, DisplayName: "alice", File: &f})
		}
		for _, text := range []string{conversation.BtnDone, "call after 6pm", conversation.BtnSend} {
			msgs = append(msgs, telegram.Message{ChatID: userID, UserID: userID, DisplayName: "alice", Text: text})
		}
		runMessages(t, h, msgs)

		if len(h.store.subs) != 1 {
			t.Fatalf("trial %d: expected 1 submission, got %d", trial, len(h.store.subs))
		}
		sub := h.store.subs[0]
		if sub.Comment != "call after 6pm" {
			t.Errorf("trial %d: comment handled out of order, got %q", trial, sub.Comment)
		}
		if len(sub.Attachments) != files {
			t.Fatalf("trial %d: expected %d attachments, got %d", trial, files, len(sub.Attachments))
		}
		for i, name := range sub.Attachments {
			if want := fmt.Sprintf("_f%02d.pdf", i); !strings.HasSuffix(name, want) {
				t.Fatalf("trial %d: attachment %d is %q, want suffix %q", trial, i, name, want)
			}
		}
	}
}

func TestRunSameNameUploadsBothStored(t *testing.T) {
	h := newHarness(t)
	h.fillUntilDocs()
	h.transport.files["a"] = []byte("%PDF-a")
	h.transport.files["b"] = []byte("%PDF-b")

	h.upload(conversation.File{TransportID: "a", Name: "deed.pdf", MimeType: "application/pdf", Size: 6})
	h.upload(conversation.File{TransportID: "b", Name: "deed.pdf", MimeType: "application/pdf", Size: 6})
	h.say(conversation.BtnDone)
	h.say("none")
	h.say(conversation.BtnSend)

	if len(h.store.subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(h.store.subs))
	}
	atts := h.store.subs[0].Attachments
	if len(atts) != 2 || atts[0] == atts[1] {
		t.Fatalf("expected two distinct attachments, got %v", atts)
	}
}

func TestConfirmDuringShutdownIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.fillUntilDocs()
	h.say(conversation.BtnSkip)
	h.say("none")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.bot.Handle(ctx, telegram.Message{ChatID: userID, UserID: userID, DisplayName: "alice", Text: conversation.BtnSend})

	if len(h.store.subs) != 1 {
		t.Fatalf("expected submission recorded after cancellation, got %d", len(h.store.subs))
	}
	if !h.store.sawDeadline {
		t.Error("insert should still run under the store timeout")
	}
	if !strings.Contains(h.transport.last().text, "Thank you") {
		t.Errorf("expected acknowledgement, got %q", h.transport.last().text)
	}
}

// Package notify forwards finalized submissions to the operator.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tejzpr/checkup-bot/internal/submission"
)

// Sender is the subset of the chat transport the notifier needs.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, path string) error
	SendPhoto(ctx context.Context, chatID int64, path string) error
}

// Files resolves stored attachment names.
type Files interface {
	Path(name string) string
	Exists(name string) bool
}

// Notifier sends the operator message followed by each attachment.
type Notifier struct {
	sender     Sender
	files      Files
	operatorID int64
	log        *slog.Logger
}

// New returns a Notifier delivering to operatorID.
func New(sender Sender, files Files, operatorID int64, log *slog.Logger) *Notifier {
	return &Notifier{sender: sender, files: files, operatorID: operatorID, log: log}
}

// Notify sends the submission card and then its attachments in upload order.
// An error is returned only when the card itself could not be delivered;
// per-file failures are logged and skipped.
func (n *Notifier) Notify(ctx context.Context, sub submission.Submission) error {
	if n.operatorID == 0 {
		return fmt.Errorf("notify: no operator configured")
	}
	if err := n.sender.SendHTML(ctx, n.operatorID, sub.Card().HTML()); err != nil {
		return fmt.Errorf("notify: send card for %s: %w", sub.ID, err)
	}

	for _, name := range sub.Attachments {
		if !n.files.Exists(name) {
			n.log.Warn("attachment missing, skipped", "submission_id", sub.ID, "file", name)
			continue
		}
		path := n.files.Path(name)
		var err error
		if strings.EqualFold(filepath.Ext(name), ".pdf") {
			err = n.sender.SendDocument(ctx, n.operatorID, path)
		} else {
			err = n.sender.SendPhoto(ctx, n.operatorID, path)
		}
		if err != nil {
			n.log.Error("failed to send attachment", "submission_id", sub.ID, "file", name, "err", err)
		}
	}
	return nil
}

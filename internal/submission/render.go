package submission

import (
	"fmt"
	"html"
	"strings"
	"time"
)

const placeholder = "-"

// Card is the data shown in a preview or an operator notification.
type Card struct {
	ID              string
	UserID          int64
	DisplayName     string
	Address         string
	CadastralNumber string
	RequesterRole   string
	Comment         string
	Attachments     []string
	CreatedAt       time.Time
}

// Card returns the rendering view of a finalized submission.
func (s Submission) Card() Card {
	return Card{
		ID:              s.ID,
		UserID:          s.UserID,
		DisplayName:     s.DisplayName,
		Address:         s.Address,
		CadastralNumber: s.CadastralNumber,
		RequesterRole:   s.RequesterRole,
		Comment:         s.Comment,
		Attachments:     s.Attachments,
		CreatedAt:       s.CreatedAt,
	}
}

// PreviewCard returns the rendering view of a draft awaiting confirmation.
// The id is not allocated until Finalize, so it renders as a placeholder.
func (d *Draft) PreviewCard(now time.Time) Card {
	return Card{
		UserID:          d.UserID,
		DisplayName:     d.DisplayName,
		Address:         d.values[FieldAddress],
		CadastralNumber: d.values[FieldCadastralNumber],
		RequesterRole:   d.values[FieldRequesterRole],
		Comment:         d.values[FieldComment],
		Attachments:     d.Attachments(),
		CreatedAt:       now,
	}
}

// HTML renders the card with user-controlled values escaped. Field order:
// title, address, cadastral number, requester role, attachments, comment,
// timestamp, requester, id.
func (c Card) HTML() string {
	var b strings.Builder
	b.WriteString("<b>Property check request</b>\n\n")
	fmt.Fprintf(&b, "🏠 <b>Address:</b> %s\n", orPlaceholder(c.Address))
	fmt.Fprintf(&b, "📇 <b>Cadastral number:</b> %s\n", orPlaceholder(c.CadastralNumber))
	fmt.Fprintf(&b, "👤 <b>Requester:</b> %s\n", orPlaceholder(c.RequesterRole))
	b.WriteString("📎 <b>Attachments:</b>\n")
	if len(c.Attachments) == 0 {
		b.WriteString(placeholder + "\n")
	}
	for _, name := range c.Attachments {
		fmt.Fprintf(&b, "- %s\n", html.EscapeString(name))
	}
	fmt.Fprintf(&b, "📝 <b>Comment:</b> %s\n\n", orPlaceholder(c.Comment))
	fmt.Fprintf(&b, "📅 <b>Requested at:</b> %s UTC\n\n", c.CreatedAt.UTC().Format(TimeLayout))
	fmt.Fprintf(&b, "🆔 <b>User:</b> %d (%s)\n", c.UserID, orPlaceholder(c.DisplayName))
	fmt.Fprintf(&b, "🔎 <b>Request ID:</b> %s", orPlaceholder(c.ID))
	return b.String()
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return html.EscapeString(s)
}

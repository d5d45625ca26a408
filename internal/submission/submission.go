// Package submission holds the per-conversation Draft and the finalized,
// immutable Submission built from it.
package submission

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the persisted createdAt format (UTC, second precision).
const TimeLayout = "2006-01-02 15:04:05"

// ErrIncompleteDraft is returned by Finalize when a required field is unset.
var ErrIncompleteDraft = errors.New("submission: incomplete draft")

// Field names a single-valued Draft answer.
type Field int

const (
	FieldAddress Field = iota
	FieldCadastralNumber
	FieldRequesterRole
	FieldComment
	numFields
)

func (f Field) String() string {
	switch f {
	case FieldAddress:
		return "address"
	case FieldCadastralNumber:
		return "cadastral_number"
	case FieldRequesterRole:
		return "requester_role"
	case FieldComment:
		return "comment"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Draft is the mutable answer set of one conversation.
type Draft struct {
	UserID      int64
	DisplayName string

	values      [numFields]string
	set         [numFields]bool
	attachments []string
}

// NewDraft starts an empty draft for a requester.
func NewDraft(userID int64, displayName string) *Draft {
	return &Draft{UserID: userID, DisplayName: displayName}
}

// Set stores value for f, overwriting any previous answer.
func (d *Draft) Set(f Field, value string) {
	if f < 0 || f >= numFields {
		return
	}
	d.values[f] = value
	d.set[f] = true
}

// Get returns the answer for f and whether it has been set.
func (d *Draft) Get(f Field) (string, bool) {
	if f < 0 || f >= numFields {
		return "", false
	}
	return d.values[f], d.set[f]
}

// AppendAttachment records a stored attachment name in upload order.
func (d *Draft) AppendAttachment(name string) {
	d.attachments = append(d.attachments, name)
}

// Attachments returns a copy of the stored attachment names.
func (d *Draft) Attachments() []string {
	return slices.Clone(d.attachments)
}

// Complete reports whether every required field is set.
func (d *Draft) Complete() bool {
	for _, ok := range d.set {
		if !ok {
			return false
		}
	}
	return true
}

func (d *Draft) missing() []Field {
	var out []Field
	for f := Field(0); f < numFields; f++ {
		if !d.set[f] {
			out = append(out, f)
		}
	}
	return out
}

// Submission is a finalized request. It is passed by value and its
// attachment slice is never shared with the Draft it came from.
type Submission struct {
	ID              string    `json:"id"`
	UserID          int64     `json:"user_id"`
	DisplayName     string    `json:"username"`
	Address         string    `json:"address"`
	CadastralNumber string    `json:"cadastral_number"`
	RequesterRole   string    `json:"requester_role"`
	Comment         string    `json:"comment"`
	Attachments     []string  `json:"attachments"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreatedAtText renders CreatedAt in the persisted layout.
func (s Submission) CreatedAtText() string {
	return s.CreatedAt.UTC().Format(TimeLayout)
}

// Builder finalizes drafts. The zero value uses the wall clock and random
// UUIDs.
type Builder struct {
	Now   func() time.Time
	NewID func() string
}

// Finalize copies the draft into a Submission with a fresh id and
// timestamp. It performs no I/O.
func (b Builder) Finalize(d *Draft) (Submission, error) {
	if d == nil {
		return Submission{}, ErrIncompleteDraft
	}
	if missing := d.missing(); len(missing) > 0 {
		return Submission{}, fmt.Errorf("%w: missing %v", ErrIncompleteDraft, missing)
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	newID := uuid.NewString
	if b.NewID != nil {
		newID = b.NewID
	}

	return Submission{
		ID:              newID(),
		UserID:          d.UserID,
		DisplayName:     d.DisplayName,
		Address:         d.values[FieldAddress],
		CadastralNumber: d.values[FieldCadastralNumber],
		RequesterRole:   d.values[FieldRequesterRole],
		Comment:         d.values[FieldComment],
		Attachments:     d.Attachments(),
		CreatedAt:       now().UTC().Truncate(time.Second),
	}, nil
}

// Finalize uses the default Builder.
func Finalize(d *Draft) (Submission, error) {
	return Builder{}.Finalize(d)
}

// Package conversation implements the intake dialog as an explicit state
// machine. It performs no I/O: every transition returns the prompts to send
// and, at most, one Effect for the caller to execute.
package conversation

import (
	"errors"
	"strings"
	"time"

	"github.com/tejzpr/checkup-bot/internal/submission"
	"github.com/tejzpr/checkup-bot/internal/validate"
)

type handlerFunc func(m *Machine, ev Event) Step

// transitions maps every non-idle state to its input handler. Cancel and
// Start are handled before the table is consulted.
var transitions = map[State]handlerFunc{
	StateIdle:               (*Machine).onIdle,
	StateAwaitAddress:       (*Machine).onAddress,
	StateAwaitCadastral:     (*Machine).onCadastral,
	StateAwaitRole:          (*Machine).onRole,
	StateAwaitRoleOtherText: (*Machine).onRoleOther,
	StateAwaitDocs:          (*Machine).onDocs,
	StateAwaitComment:       (*Machine).onComment,
	StateAwaitConfirm:       (*Machine).onConfirm,
}

// Machine is one user's conversation. It is not safe for concurrent use;
// the owner serializes events.
type Machine struct {
	userID      int64
	displayName string

	state State
	draft *submission.Draft

	builder submission.Builder
	now     func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithBuilder overrides id and timestamp generation at finalization.
func WithBuilder(b submission.Builder) Option {
	return func(m *Machine) { m.builder = b }
}

// WithClock sets the clock used for preview timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New returns an idle machine for a requester.
func New(userID int64, displayName string, opts ...Option) *Machine {
	m := &Machine{
		userID:      userID,
		displayName: displayName,
		state:       StateIdle,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.builder.Now == nil {
		m.builder.Now = m.now
	}
	return m
}

// State returns the current step.
func (m *Machine) State() State { return m.state }

// Draft returns the draft in progress, or nil while idle.
func (m *Machine) Draft() *submission.Draft { return m.draft }

// SetDisplayName updates the requester name used by future drafts.
func (m *Machine) SetDisplayName(name string) {
	m.displayName = name
	if m.draft != nil {
		m.draft.DisplayName = name
	}
}

// Handle feeds one user event to the machine.
func (m *Machine) Handle(ev Event) Step {
	if ev.Kind == EventCancel || (ev.Kind == EventText && isCancel(ev.Text)) {
		return m.cancel()
	}
	if ev.Kind == EventStart {
		return m.start()
	}
	return transitions[m.state](m, ev)
}

// AttachmentStored completes a StoreAttachment effect.
func (m *Machine) AttachmentStored(name string) Step {
	if m.state != StateAwaitDocs || m.draft == nil {
		return Step{}
	}
	m.draft.AppendAttachment(name)
	return say(fileStored(name))
}

// AttachmentFailed reports that a StoreAttachment effect could not finish.
// The draft is unchanged.
func (m *Machine) AttachmentFailed() Step {
	if m.state != StateAwaitDocs {
		return Step{}
	}
	return say(fileFailed())
}

// Persisted completes a Persist effect and ends the cycle.
func (m *Machine) Persisted() Step {
	if m.state != StateAwaitConfirm {
		return Step{}
	}
	m.reset()
	return say(sent())
}

// PersistFailed keeps the draft so the user can retry the confirmation.
func (m *Machine) PersistFailed() Step {
	if m.state != StateAwaitConfirm {
		return Step{}
	}
	return say(persistFailed())
}

func (m *Machine) start() Step {
	m.draft = submission.NewDraft(m.userID, m.displayName)
	m.state = StateAwaitAddress
	return say(askAddress())
}

func (m *Machine) cancel() Step {
	m.reset()
	return say(Cancelled())
}

func (m *Machine) reset() {
	m.draft = nil
	m.state = StateIdle
}

func (m *Machine) onIdle(ev Event) Step {
	return say(Welcome())
}

func (m *Machine) onAddress(ev Event) Step {
	if ev.Kind != EventText {
		return say(textOnly())
	}
	text := strings.TrimSpace(ev.Text)
	if !validate.IsValidAddress(text) {
		return say(badAddress())
	}
	m.draft.Set(submission.FieldAddress, text)
	m.state = StateAwaitCadastral
	return say(askCadastral())
}

func (m *Machine) onCadastral(ev Event) Step {
	if ev.Kind != EventText {
		return say(textOnly())
	}
	text := strings.TrimSpace(ev.Text)
	if !validate.IsValidCadastralNumber(text) {
		return say(badCadastral())
	}
	m.draft.Set(submission.FieldCadastralNumber, text)
	m.state = StateAwaitRole
	return say(askRole())
}

func (m *Machine) onRole(ev Event) Step {
	if ev.Kind != EventText {
		return say(textOnly())
	}
	text := strings.TrimSpace(ev.Text)
	switch {
	case strings.EqualFold(text, BtnAgent):
		return m.roleChosen(BtnAgent)
	case strings.EqualFold(text, BtnOwner):
		return m.roleChosen(BtnOwner)
	case strings.EqualFold(text, BtnOther):
		m.state = StateAwaitRoleOtherText
		return say(askRoleOther())
	}
	return say(badRole())
}

func (m *Machine) onRoleOther(ev Event) Step {
	if ev.Kind != EventText {
		return say(textOnly())
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return say(askRoleOther())
	}
	return m.roleChosen(text)
}

func (m *Machine) roleChosen(role string) Step {
	m.draft.Set(submission.FieldRequesterRole, role)
	m.state = StateAwaitDocs
	return say(askDocs())
}

func (m *Machine) onDocs(ev Event) Step {
	if ev.Kind == EventFile {
		if ev.File == nil {
			return say(wrongFileType())
		}
		switch err := CheckFile(*ev.File); {
		case errors.Is(err, ErrWrongFileType):
			return say(wrongFileType())
		case errors.Is(err, ErrFileTooLarge):
			return say(fileTooLarge())
		}
		return Step{Effect: StoreAttachment{File: *ev.File}}
	}

	text := strings.TrimSpace(ev.Text)
	switch {
	case strings.EqualFold(text, BtnSkip), strings.EqualFold(text, BtnDone):
		m.state = StateAwaitComment
		return say(askComment())
	case strings.EqualFold(text, BtnUpload):
		return say(uploadHelp())
	}
	return say(badDocs())
}

func (m *Machine) onComment(ev Event) Step {
	if ev.Kind != EventText {
		return say(textOnly())
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		text = DefaultComment
	}
	m.draft.Set(submission.FieldComment, text)
	m.state = StateAwaitConfirm
	return say(preview(m.draft.PreviewCard(m.now().UTC().Truncate(time.Second)).HTML()))
}

func (m *Machine) onConfirm(ev Event) Step {
	if ev.Kind != EventText {
		return say(badConfirm())
	}
	text := strings.TrimSpace(ev.Text)
	switch {
	case strings.EqualFold(text, BtnSend), strings.EqualFold(text, "send"):
		sub, err := m.builder.Finalize(m.draft)
		if err != nil {
			return Step{Prompts: []Prompt{internalError()}, Err: err}
		}
		return Step{Effect: Persist{Submission: sub}}
	case strings.EqualFold(text, BtnEdit):
		m.state = StateAwaitAddress
		return say(askAddressAgain())
	}
	return say(badConfirm())
}

func isCancel(text string) bool {
	text = strings.TrimSpace(text)
	return strings.EqualFold(text, BtnCancel) || strings.EqualFold(text, "/cancel")
}

func say(p ...Prompt) Step {
	return Step{Prompts: p}
}

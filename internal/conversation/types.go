package conversation

import (
	"errors"
	"fmt"

	"github.com/tejzpr/checkup-bot/internal/submission"
)

// State is a conversation step.
type State int

const (
	StateIdle State = iota
	StateAwaitAddress
	StateAwaitCadastral
	StateAwaitRole
	StateAwaitRoleOtherText
	StateAwaitDocs
	StateAwaitComment
	StateAwaitConfirm
)

var stateNames = map[State]string{
	StateIdle:               "idle",
	StateAwaitAddress:       "await_address",
	StateAwaitCadastral:     "await_cadastral",
	StateAwaitRole:          "await_role",
	StateAwaitRoleOtherText: "await_role_other_text",
	StateAwaitDocs:          "await_docs",
	StateAwaitComment:       "await_comment",
	StateAwaitConfirm:       "await_confirm",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// EventKind classifies an incoming user event.
type EventKind int

const (
	EventText EventKind = iota
	EventStart
	EventCancel
	EventFile
)

// Event is one user action delivered to a Machine.
type Event struct {
	Kind EventKind
	Text string
	File *File
}

// Text builds a plain text event.
func Text(s string) Event { return Event{Kind: EventText, Text: s} }

// Start builds a "begin a new request" event.
func Start() Event { return Event{Kind: EventStart} }

// Cancel builds a cancellation event.
func Cancel() Event { return Event{Kind: EventCancel} }

// Upload builds a file event.
func Upload(f File) Event { return Event{Kind: EventFile, File: &f} }

// File describes an uploaded file by its declared metadata. The bytes stay
// with the transport until the coordinator fetches them.
type File struct {
	// TransportID is the handle used to fetch the bytes.
	TransportID string
	// Name is the original file name, empty for photos.
	Name     string
	MimeType string
	Size     int64
	Photo    bool
}

// MaxFileSize is the largest accepted attachment.
const MaxFileSize int64 = 20 << 20

var (
	ErrWrongFileType = errors.New("conversation: unsupported file type")
	ErrFileTooLarge  = errors.New("conversation: file too large")
)

var allowedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

// CheckFile applies the attachment policy to declared metadata only.
func CheckFile(f File) error {
	if _, ok := allowedMimeTypes[f.MimeType]; !ok {
		return ErrWrongFileType
	}
	if f.Size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// Prompt is an outbound message described as data.
type Prompt struct {
	Text string
	HTML bool
	// Reply quotes the user's message.
	Reply bool
	// Keyboard replaces the reply keyboard when non-nil.
	Keyboard [][]string
	// RemoveKeyboard hides the reply keyboard.
	RemoveKeyboard bool
}

// Effect is I/O the coordinator must perform before the conversation can
// continue. It is reported back through the Machine's completion methods.
type Effect interface {
	effect()
}

// StoreAttachment asks the coordinator to fetch and store an accepted file,
// then call AttachmentStored or AttachmentFailed.
type StoreAttachment struct {
	File File
}

// Persist asks the coordinator to record and forward a finalized
// submission, then call Persisted or PersistFailed.
type Persist struct {
	Submission submission.Submission
}

func (StoreAttachment) effect() {}
func (Persist) effect()         {}

// Step is the result of feeding one event to a Machine.
type Step struct {
	Prompts []Prompt
	Effect  Effect
	// Err carries an internal invariant violation for the coordinator to
	// log. It is never shown to the user.
	Err error
}

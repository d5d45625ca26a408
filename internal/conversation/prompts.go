package conversation

import "fmt"

// Button labels. The same strings are accepted back as answers.
const (
	BtnNewRequest = "New request"
	BtnCancel     = "Cancel"
	BtnAgent      = "Agent"
	BtnOwner      = "Owner"
	BtnOther      = "Other"
	BtnUpload     = "Upload document"
	BtnSkip       = "Skip"
	BtnDone       = "Done"
	BtnSend       = "Send to expert"
	BtnEdit       = "Edit"
)

// DefaultComment replaces an empty comment.
const DefaultComment = "none"

var (
	cancelOnlyKeyboard = [][]string{{BtnCancel}}
	welcomeKeyboard    = [][]string{{BtnNewRequest}, {BtnCancel}}
	roleKeyboard       = [][]string{{BtnAgent, BtnOwner}, {BtnOther, BtnCancel}}
	docsKeyboard       = [][]string{{BtnUpload, BtnSkip, BtnDone}, {BtnCancel}}
	confirmKeyboard    = [][]string{{BtnSend, BtnEdit}, {BtnCancel}}
)

// Welcome is the greeting shown for /start, /help and idle chatter.
func Welcome() Prompt {
	return Prompt{
		Text:     "Hi! 👋 I will help you prepare a property check request.\n\nPress «" + BtnNewRequest + "» to begin.",
		Keyboard: welcomeKeyboard,
	}
}

// Cancelled acknowledges a cancellation.
func Cancelled() Prompt {
	return Prompt{Text: "Operation cancelled. Start again whenever you need.", RemoveKeyboard: true}
}

func askAddress() Prompt {
	return Prompt{
		Text:     "Enter the property address (street, house, city). If there is none, give a landmark or a map link.",
		Keyboard: cancelOnlyKeyboard,
	}
}

func askAddressAgain() Prompt {
	return Prompt{Text: "Let's change it. Enter the correct address.", Keyboard: cancelOnlyKeyboard}
}

func badAddress() Prompt {
	return Prompt{Text: "Please give a more precise address (at least street + house or city).", Reply: true}
}

func askCadastral() Prompt {
	return Prompt{Text: `Enter the cadastral number (example: 77:01:0004010:1234) or type "none".`}
}

func badCadastral() Prompt {
	return Prompt{Text: `Wrong cadastral number format. Use 77:01:0004010:1234 or type "none".`, Reply: true}
}

func askRole() Prompt {
	return Prompt{Text: "Who is sending the request?", Keyboard: roleKeyboard}
}

func badRole() Prompt {
	return Prompt{Text: `Choose one of the options or "` + BtnOther + `".`, Reply: true}
}

func askRoleOther() Prompt {
	return Prompt{Text: `Please describe who you are (for example "buyer's lawyer").`, Keyboard: cancelOnlyKeyboard}
}

func askDocs() Prompt {
	return Prompt{
		Text:     `Attach documents (PDF, JPG, PNG) or press "` + BtnSkip + `".`,
		Keyboard: docsKeyboard,
	}
}

func uploadHelp() Prompt {
	return Prompt{Text: `Send a file (PDF/JPG/PNG), or several files one by one. When finished, send "` + BtnDone + `".`}
}

func badDocs() Prompt {
	return Prompt{Text: `To skip, press "` + BtnSkip + `". To upload, send the files and then "` + BtnDone + `".`, Reply: true}
}

func wrongFileType() Prompt {
	return Prompt{Text: "Unsupported format. PDF, JPG and PNG are accepted.", Reply: true}
}

func fileTooLarge() Prompt {
	return Prompt{Text: "The file is too large, the limit is 20 MB.", Reply: true}
}

func fileStored(name string) Prompt {
	return Prompt{Text: fmt.Sprintf(`File %s saved. Send more files or "%s" when finished.`, name, BtnDone), Reply: true}
}

func fileFailed() Prompt {
	return Prompt{Text: "Could not save the file. Please send it again.", Reply: true}
}

func askComment() Prompt {
	return Prompt{Text: `Leave a comment for the request (or type "none").`, Keyboard: cancelOnlyKeyboard}
}

func preview(html string) Prompt {
	return Prompt{Text: html, HTML: true, Keyboard: confirmKeyboard}
}

func badConfirm() Prompt {
	return Prompt{Text: "Choose an action: " + BtnSend + " / " + BtnEdit + " / " + BtnCancel + ".", Reply: true}
}

func sent() Prompt {
	return Prompt{Text: "Thank you! Your request has been sent to the expert 🧾", RemoveKeyboard: true}
}

func persistFailed() Prompt {
	return Prompt{Text: `Could not save your request. Please press "` + BtnSend + `" again.`, Keyboard: confirmKeyboard}
}

func internalError() Prompt {
	return Prompt{Text: `Something went wrong. Please press "` + BtnEdit + `" and fill in the form again.`, Keyboard: confirmKeyboard}
}

func textOnly() Prompt {
	return Prompt{Text: "Please answer with a text message.", Reply: true}
}

package chat

import "github.com/AnshRaj112/globalchat/internal/models"

// Form names the auth form currently shown.
type Form string

const (
	FormLogin  Form = "login"
	FormSignUp Form = "signup"
)

// View is the screen a session drives. Implementations must be safe for use
// from the subscription goroutine as well as the caller's.
type View interface {
	ShowAuth()
	ShowChat()
	ShowForm(form Form)
	SetAuthMessage(text string)
	SetUserLabel(text string)

	ClearMessages()
	AppendMessage(msg Rendered)
	RemoveMessage(id string)
	ScrollToEnd()

	ClearTextInput()
	ClearFileInput()
	Alert(text string)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Rendered is the view model of one message in the feed.
type Rendered struct {
	ID       string
	Author   string
	Kind     models.MessageKind
	Text     string
	MediaURL string
	// Own styles the message as authored by the viewer and enables the
	// retraction control.
	Own bool
}

// Retractable reports whether the retraction control is shown.
func (r Rendered) Retractable() bool { return r.Own }

package bot

import "strings"

// Button is an inline keyboard button. Exactly one of Action or URL is set.
type Button struct {
	Text   string
	Action Action
	URL    string
}

// Data returns the callback data of an action button.
func (b Button) Data() string {
	if b.URL != "" {
		return ""
	}
	return b.Action.Data()
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

// Actions returns the actions of every callback button.
func (k Keyboard) Actions() []Action {
	var actions []Action
	for _, row := range k {
		for _, b := range row {
			if b.URL == "" {
				actions = append(actions, b.Action)
			}
		}
	}
	return actions
}

func actionButton(text string, a Action) Button {
	return Button{Text: text, Action: a}
}

func urlButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

func row(buttons ...Button) []Button { return buttons }

// Reply is one message turn.
type Reply struct {
	Text string
	// Markdown enables Telegram legacy Markdown in Text.
	Markdown bool
	// PhotoURL sends Text as the caption of a photo.
	PhotoURL string
	Keyboard Keyboard
	// Edit replaces the message the user tapped instead of sending a new one.
	Edit bool
	// DisablePreview suppresses link previews.
	DisablePreview bool
}

// Response is what the bot answers to one update.
type Response struct {
	// State is the state the conversation is in after the replies.
	State   State
	Replies []Reply
	// DeleteOrigin removes the message the user tapped before sending.
	DeleteOrigin bool
}

var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// EscapeMarkdown escapes the characters that are special in Telegram legacy
// Markdown.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

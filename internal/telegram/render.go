package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xenking/florist-bot/internal/bot"
)

// renderKeyboard returns nil for an empty keyboard.
func renderKeyboard(k bot.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(k) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k))
	for _, r := range k {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data()))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// renderReply translates a reply to a Bot API request. originID is the
// message the user tapped, or zero for commands. Photos are always sent as
// new messages.
func renderReply(chatID int64, originID int, r bot.Reply) tgbotapi.Chattable {
	markup := renderKeyboard(r.Keyboard)
	var mode string
	if r.Markdown {
		mode = tgbotapi.ModeMarkdown
	}

	switch {
	case r.PhotoURL != "":
		msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(r.PhotoURL))
		msg.Caption = r.Text
		msg.ParseMode = mode
		if markup != nil {
			msg.ReplyMarkup = *markup
		}
		return msg
	case r.Edit && originID != 0:
		var edit tgbotapi.EditMessageTextConfig
		if markup != nil {
			edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, originID, r.Text, *markup)
		} else {
			edit = tgbotapi.NewEditMessageText(chatID, originID, r.Text)
		}
		edit.ParseMode = mode
		edit.DisableWebPagePreview = r.DisablePreview
		return edit
	default:
		msg := tgbotapi.NewMessage(chatID, r.Text)
		msg.ParseMode = mode
		msg.DisableWebPagePreview = r.DisablePreview
		if markup != nil {
			msg.ReplyMarkup = *markup
		}
		return msg
	}
}

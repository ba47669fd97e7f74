package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/florist-bot/internal/bot"
	"github.com/xenking/florist-bot/pkg/ratelimit"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
	polled   tgbotapi.UpdateConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = cfg
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Sent() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...)
}

type call struct {
	user bot.User
	kind string
	arg  string
}

type fakePresenter struct {
	calls []call
	resp  bot.Response
}

func (p *fakePresenter) Command(_ context.Context, u bot.User, command string) bot.Response {
	p.calls = append(p.calls, call{user: u, kind: "command", arg: command})
	return p.resp
}

func (p *fakePresenter) Callback(_ context.Context, u bot.User, data string) bot.Response {
	p.calls = append(p.calls, call{user: u, kind: "callback", arg: data})
	return p.resp
}

func newTestBot(t *testing.T, api API, p Presenter, cfg Config) *Bot {
	t.Helper()
	b, err := New(api, p, cfg, zaptest.NewLogger(t), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return b
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 10,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: 7, FirstName: "Alice"},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{UpdateID: 1, Message: msg}
}

func callbackUpdate(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: 2, CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: 7, FirstName: "Alice"},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
	}}
}

func TestBot_Command(t *testing.T) {
	api := &fakeAPI{}
	p := &fakePresenter{resp: bot.Response{State: bot.StateBrowsingMenu, Replies: []bot.Reply{{Text: "hello"}}}}
	b := newTestBot(t, api, p, Config{})

	b.Handle(context.Background(), commandUpdate(100, "/products"))
	b.Handle(context.Background(), commandUpdate(100, "hi there"))

	require.Len(t, p.calls, 2)
	assert.Equal(t, call{user: bot.User{ID: 7, FirstName: "Alice"}, kind: "command", arg: "products"}, p.calls[0])
	assert.Equal(t, bot.CommandStart, p.calls[1].arg)

	sent := api.Sent()
	require.Len(t, sent, 2)
	msg, ok := sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(100), msg.ChatID)
	assert.Equal(t, "hello", msg.Text)
	assert.Empty(t, api.requests)
}

func TestBot_Callback(t *testing.T) {
	api := &fakeAPI{}
	p := &fakePresenter{resp: bot.Response{
		State:        bot.StateProductDetail,
		DeleteOrigin: true,
		Replies: []bot.Reply{
			{Text: "*Roses*", Markdown: true, PhotoURL: "https://cdn.example/1.jpg"},
			{Text: "You Might Also Like", Edit: true},
		},
	}}
	b := newTestBot(t, api, p, Config{})

	b.Handle(context.Background(), callbackUpdate(100, 55, "product_roses"))

	require.Len(t, p.calls, 1)
	assert.Equal(t, "product_roses", p.calls[0].arg)

	require.Len(t, api.requests, 2)
	answer, ok := api.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb-1", answer.CallbackQueryID)
	del, ok := api.requests[1].(tgbotapi.DeleteMessageConfig)
	require.True(t, ok)
	assert.Equal(t, 55, del.MessageID)

	sent := api.Sent()
	require.Len(t, sent, 2)
	photo, ok := sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "*Roses*", photo.Caption)
	assert.Equal(t, tgbotapi.ModeMarkdown, photo.ParseMode)
	// The origin is gone, so the edit becomes a new message.
	_, ok = sent[1].(tgbotapi.MessageConfig)
	assert.True(t, ok)
}

func TestBot_CallbackEdit(t *testing.T) {
	api := &fakeAPI{}
	p := &fakePresenter{resp: bot.Response{State: bot.StateBrowsingMenu, Replies: []bot.Reply{{
		Text:     "Choose a price range",
		Edit:     true,
		Keyboard: bot.Keyboard{{{Text: "Back", Action: bot.Action{Kind: bot.ActionMainMenu}}}},
	}}}}
	b := newTestBot(t, api, p, Config{})

	b.Handle(context.Background(), callbackUpdate(100, 55, "category_price"))

	sent := api.Sent()
	require.Len(t, sent, 1)
	edit, ok := sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 55, edit.MessageID)
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, "back_to_main", *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestBot_RateLimit(t *testing.T) {
	api := &fakeAPI{}
	p := &fakePresenter{resp: bot.Response{Replies: []bot.Reply{{Text: "ok"}}}}
	b := newTestBot(t, api, p, Config{RateLimit: ratelimit.Config{Max: 1, Window: time.Minute}})
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.Handle(context.Background(), commandUpdate(100, "/start"))
	b.Handle(context.Background(), commandUpdate(100, "/start"))
	b.Handle(context.Background(), callbackUpdate(100, 55, "show_all"))
	// Other chats are not affected.
	b.Handle(context.Background(), commandUpdate(200, "/start"))

	assert.Len(t, p.calls, 2)
	require.Len(t, api.requests, 1)
	answer := api.requests[0].(tgbotapi.CallbackConfig)
	assert.Equal(t, slowDownText, answer.Text)
}

func TestBot_SendErrorContinues(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("forbidden: bot was blocked by the user")}
	p := &fakePresenter{resp: bot.Response{Replies: []bot.Reply{{Text: "a"}, {Text: "b"}}}}
	b := newTestBot(t, api, p, Config{})

	b.Handle(context.Background(), commandUpdate(100, "/start"))
	assert.Len(t, api.Sent(), 2)
}

func TestBot_IgnoresOtherUpdates(t *testing.T) {
	api := &fakeAPI{}
	p := &fakePresenter{}
	b := newTestBot(t, api, p, Config{})

	b.Handle(context.Background(), tgbotapi.Update{UpdateID: 3, EditedMessage: &tgbotapi.Message{}})
	assert.Empty(t, p.calls)
	assert.Empty(t, api.Sent())
}

func TestBot_Run(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 2)}
	p := &fakePresenter{resp: bot.Response{Replies: []bot.Reply{{Text: "ok"}}}}
	b := newTestBot(t, api, p, Config{PollTimeout: 30 * time.Second})

	api.updates <- commandUpdate(100, "/start")
	api.updates <- callbackUpdate(100, 5, "faq_main")
	close(api.updates)

	require.NoError(t, b.Run(context.Background()))
	assert.Len(t, p.calls, 2)
	assert.True(t, api.stopped)
	assert.Equal(t, 30, api.polled.Timeout)
}

func TestBot_RunCancel(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	b := newTestBot(t, api, &fakePresenter{}, Config{RateLimit: ratelimit.Config{Max: 5, Window: time.Second}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
}

func TestDial_RequiresToken(t *testing.T) {
	_, err := Dial("", false)
	require.Error(t, err)
}

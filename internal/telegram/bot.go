// Package telegram connects the conversation presenter to the Telegram Bot
// API over long polling.
package telegram

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/florist-bot/internal/bot"
	"github.com/xenking/florist-bot/pkg/ratelimit"
)

const instrumentationName = "github.com/xenking/florist-bot/internal/telegram"

const slowDownText = "⏳ Too many requests, please slow down."

// API is the subset of *tgbotapi.BotAPI the Bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Presenter renders updates as responses.
type Presenter interface {
	Command(ctx context.Context, u bot.User, command string) bot.Response
	Callback(ctx context.Context, u bot.User, data string) bot.Response
}

// Config configures a Bot.
type Config struct {
	// PollTimeout is the long polling timeout. Defaults to 60 seconds.
	PollTimeout time.Duration
	// RateLimit limits updates per chat. Disabled when Max is zero.
	RateLimit ratelimit.Config
}

// Bot dispatches Telegram updates to a Presenter and sends its replies.
type Bot struct {
	api       API
	presenter Presenter
	limiter   *ratelimit.Limiter
	cfg       Config
	lg        *zap.Logger
	now       func() time.Time

	updates metric.Int64Counter
	failed  metric.Int64Counter
}

// Dial connects to the Bot API with token and verifies it.
func Dial(token string, debug bool) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "connect to telegram")
	}
	api.Debug = debug
	return api, nil
}

// New creates a Bot.
func New(api API, presenter Presenter, cfg Config, lg *zap.Logger, mp metric.MeterProvider) (*Bot, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60 * time.Second
	}
	meter := mp.Meter(instrumentationName)
	updates, err := meter.Int64Counter("telegram.updates",
		metric.WithDescription("Telegram updates received by kind"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create updates counter")
	}
	failed, err := meter.Int64Counter("telegram.send.errors",
		metric.WithDescription("Failed Bot API requests"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create send errors counter")
	}

	b := &Bot{
		api:       api,
		presenter: presenter,
		cfg:       cfg,
		lg:        lg,
		now:       time.Now,
		updates:   updates,
		failed:    failed,
	}
	if cfg.RateLimit.Max > 0 {
		b.limiter = ratelimit.New(cfg.RateLimit)
	}
	return b, nil
}

// Run polls for updates and handles them one at a time until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if b.limiter != nil {
		go b.limiter.RunCleanup(ctx)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.cfg.PollTimeout.Seconds())
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.lg.Info("Polling for updates", zap.Duration("timeout", b.cfg.PollTimeout))
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.Handle(ctx, upd)
		}
	}
}

// Handle answers a single update. Updates other than messages and callback
// queries are ignored.
func (b *Bot) Handle(ctx context.Context, upd tgbotapi.Update) {
	ctx = zctx.Base(ctx, b.lg)
	ctx = zctx.With(ctx,
		zap.String("correlation_id", uuid.NewString()),
		zap.Int("update_id", upd.UpdateID),
	)

	switch {
	case upd.CallbackQuery != nil:
		b.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "callback")))
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "message")))
		b.handleMessage(ctx, upd.Message)
	default:
		zctx.From(ctx).Debug("Ignoring update")
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	ctx = zctx.With(ctx, zap.Int64("chat_id", chatID))
	if !b.allow(chatID) {
		zctx.From(ctx).Debug("Rate limited message")
		return
	}

	// Plain text gets the welcome menu.
	command := bot.CommandStart
	if msg.IsCommand() {
		command = msg.Command()
	}
	zctx.From(ctx).Debug("Command", zap.String("command", command))
	resp := b.presenter.Command(ctx, userOf(msg.From), command)
	b.deliver(ctx, chatID, 0, resp)
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.Message == nil || q.Message.Chat == nil {
		b.request(ctx, tgbotapi.NewCallback(q.ID, ""))
		return
	}
	chatID := q.Message.Chat.ID
	ctx = zctx.With(ctx, zap.Int64("chat_id", chatID))
	if !b.allow(chatID) {
		zctx.From(ctx).Debug("Rate limited callback")
		b.request(ctx, tgbotapi.NewCallback(q.ID, slowDownText))
		return
	}

	b.request(ctx, tgbotapi.NewCallback(q.ID, ""))
	zctx.From(ctx).Debug("Callback", zap.String("data", q.Data))
	resp := b.presenter.Callback(ctx, userOf(q.From), q.Data)
	b.deliver(ctx, chatID, q.Message.MessageID, resp)
}

func (b *Bot) deliver(ctx context.Context, chatID int64, originID int, resp bot.Response) {
	if resp.DeleteOrigin && originID != 0 {
		b.request(ctx, tgbotapi.NewDeleteMessage(chatID, originID))
		originID = 0
	}
	for _, r := range resp.Replies {
		if _, err := b.api.Send(renderReply(chatID, originID, r)); err != nil {
			b.failed.Add(ctx, 1)
			zctx.From(ctx).Warn("Send reply failed", zap.Error(err), zap.Stringer("state", resp.State))
		}
	}
}

// request sends a call whose result is not a message.
func (b *Bot) request(ctx context.Context, c tgbotapi.Chattable) {
	if _, err := b.api.Request(c); err != nil {
		b.failed.Add(ctx, 1)
		zctx.From(ctx).Warn("Bot API request failed", zap.Error(err))
	}
}

func (b *Bot) allow(chatID int64) bool {
	if b.limiter == nil {
		return true
	}
	return b.limiter.Allow(strconv.FormatInt(chatID, 10), b.now()).Allowed
}

func userOf(u *tgbotapi.User) bot.User {
	if u == nil {
		return bot.User{}
	}
	return bot.User{ID: u.ID, FirstName: u.FirstName}
}

package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/florist-bot/internal/domain/browse"
	"github.com/xenking/florist-bot/internal/domain/order"
	"github.com/xenking/florist-bot/internal/domain/product"
	"github.com/xenking/florist-bot/internal/domain/recommend"
)

const (
	// maxListed caps product buttons per list; Telegram rejects keyboards
	// with more than 100 buttons.
	maxListed = 90
	// maxCaption is the Telegram photo caption limit in characters.
	maxCaption = 1024

	buttonTitleLen  = 25
	similarTitleLen = 20
)

// Commands understood by the bot.
const (
	CommandStart     = "start"
	CommandProducts  = "products"
	CommandInstagram = "instagram"
	CommandContact   = "contact"
)

// CatalogProvider returns the current catalog snapshot, loading it on first
// use.
type CatalogProvider interface {
	Ensure(ctx context.Context) (*product.Catalog, error)
}

// User is the sender of an update.
type User struct {
	ID        int64
	FirstName string
}

// Config configures a Presenter.
type Config struct {
	ShopName string
	// RecommendLimit is the number of "You Might Also Like" suggestions.
	RecommendLimit int
}

// Presenter renders catalog browsing as conversation turns.
type Presenter struct {
	catalog CatalogProvider
	handoff *order.Handoff
	faq     *FAQ
	cfg     Config
	tracer  trace.Tracer
}

// NewPresenter creates a Presenter.
func NewPresenter(catalog CatalogProvider, handoff *order.Handoff, cfg Config, tp trace.TracerProvider) (*Presenter, error) {
	if catalog == nil {
		return nil, errors.New("catalog provider is required")
	}
	if handoff == nil {
		return nil, errors.New("handoff is required")
	}
	if cfg.RecommendLimit <= 0 {
		return nil, &recommend.InvalidLimitError{Limit: cfg.RecommendLimit}
	}
	if cfg.ShopName == "" {
		cfg.ShopName = "Prosto Flowers"
	}
	return &Presenter{
		catalog: catalog,
		handoff: handoff,
		faq:     NewFAQ(handoff.WhatsAppNumber()),
		cfg:     cfg,
		tracer:  tp.Tracer("florist-bot/bot"),
	}, nil
}

// Command answers a slash command. Unknown commands and plain text get the
// main menu.
func (p *Presenter) Command(ctx context.Context, u User, command string) Response {
	ctx, span := p.tracer.Start(ctx, "bot.Command", trace.WithAttributes(
		attribute.String("bot.command", command),
	))
	defer span.End()

	switch command {
	case CommandProducts:
		c, err := p.catalog.Ensure(ctx)
		if err != nil {
			return p.failure(ctx, span, err, false)
		}
		reply := p.productList(c, "✨ Our Available Bouquets ✨", row(
			actionButton("🏠 Main Menu", Action{Kind: ActionMainMenu}),
		))
		return Response{State: StateFilterSelected, Replies: []Reply{reply}}
	case CommandInstagram:
		return Response{State: StateBrowsingMenu, Replies: []Reply{{
			Text:     "🌸 *Our Instagram Gallery* 🌸\n\nSee our latest floral creations:",
			Markdown: true,
			Keyboard: Keyboard{row(urlButton("📸 View Instagram", p.handoff.InstagramURL()))},
		}}}
	case CommandContact:
		return Response{State: StateBrowsingMenu, Replies: []Reply{{
			Text:     "💌 *Contact Us*\n\nWe're available on WhatsApp:",
			Markdown: true,
			Keyboard: Keyboard{row(urlButton("💬 Chat on WhatsApp", p.handoff.WhatsAppURL("")))},
		}}}
	default:
		text := fmt.Sprintf("🌸 Welcome to %s, %s! 🌸\n\n"+
			"I'm your floral assistant! How can I help you today?\n\n"+
			"Browse our collection by category:", p.cfg.ShopName, u.FirstName)
		return Response{State: StateBrowsingMenu, Replies: []Reply{{Text: text, Keyboard: p.mainKeyboard()}}}
	}
}

// Callback answers a tap on an inline button.
func (p *Presenter) Callback(ctx context.Context, u User, data string) Response {
	ctx, span := p.tracer.Start(ctx, "bot.Callback")
	defer span.End()

	a, err := ParseAction(data)
	if err != nil {
		zctx.From(ctx).Warn("Invalid callback data", zap.String("data", data))
		span.SetStatus(codes.Error, "invalid callback data")
		return Response{State: StateBrowsingMenu, Replies: []Reply{{
			Text:     "⚠️ Invalid request",
			Edit:     true,
			Keyboard: Keyboard{row(actionButton("🔙 Back to Main Menu", Action{Kind: ActionMainMenu}))},
		}}}
	}
	span.SetAttributes(attribute.String("bot.action", a.Data()))

	switch a.Kind {
	case ActionMainMenu:
		text := fmt.Sprintf("🌸 Welcome back, %s! 🌸\n\n"+
			"How can I help you today?\n\n"+
			"Browse our collection by category:", u.FirstName)
		return Response{State: StateBrowsingMenu, Replies: []Reply{{Text: text, Edit: true, Keyboard: p.mainKeyboard()}}}
	case ActionCategory:
		return p.categoryMenu(a.Category)
	case ActionFilter:
		return p.applyFilter(ctx, span, a)
	case ActionShowAll:
		c, err := p.catalog.Ensure(ctx)
		if err != nil {
			return p.failure(ctx, span, err, true)
		}
		reply := p.productList(c, "✨ All Available Bouquets ✨", row(
			actionButton("🔙 Back to Main Menu", Action{Kind: ActionMainMenu}),
		))
		reply.Edit = true
		return Response{State: StateFilterSelected, Replies: []Reply{reply}}
	case ActionProductList:
		c, err := p.catalog.Ensure(ctx)
		if err != nil {
			return p.failure(ctx, span, err, false)
		}
		reply := p.productList(c, "✨ Our Available Bouquets ✨", row(
			actionButton("🏠 Main Menu", Action{Kind: ActionMainMenu}),
			actionButton("🔄 Refresh", Action{Kind: ActionProductList}),
		))
		return Response{State: StateFilterSelected, DeleteOrigin: true, Replies: []Reply{reply}}
	case ActionProduct:
		return p.productDetail(ctx, span, a.Value)
	case ActionFAQMain:
		return p.faqMenu()
	case ActionFAQTopic:
		return p.faqTopic(a.Value)
	default:
		return p.failure(ctx, span, errors.Wrapf(ErrUnknownAction, "kind %d", a.Kind), true)
	}
}

func (p *Presenter) mainKeyboard() Keyboard {
	return Keyboard{
		row(actionButton("💰 Filter by Price", Action{Kind: ActionCategory, Category: CategoryPrice})),
		row(actionButton("🎉 Filter by Occasion", Action{Kind: ActionCategory, Category: CategoryOccasion})),
		row(actionButton("🌷 Filter by Flower Type", Action{Kind: ActionCategory, Category: CategoryFlowers})),
		row(actionButton("💐 Show All Bouquets", Action{Kind: ActionShowAll})),
		row(
			urlButton("📸 Instagram", p.handoff.InstagramURL()),
			urlButton("💬 WhatsApp", p.handoff.WhatsAppURL("")),
		),
		row(actionButton("❓ FAQ", Action{Kind: ActionFAQMain})),
	}
}

func (p *Presenter) categoryMenu(category string) Response {
	menu, ok := menus[category]
	if !ok {
		return Response{State: StateBrowsingMenu, Replies: []Reply{{
			Text:     "⚠️ Invalid category selection",
			Edit:     true,
			Keyboard: Keyboard{row(actionButton("🔙 Back to Main Menu", Action{Kind: ActionMainMenu}))},
		}}}
	}
	kb := make(Keyboard, 0, len(menu.Options)+1)
	for _, o := range menu.Options {
		kb = append(kb, row(actionButton(o.Label, Action{Kind: ActionFilter, Category: category, Value: o.Value})))
	}
	kb = append(kb, row(actionButton("🔙 Back to Main Menu", Action{Kind: ActionMainMenu})))
	return Response{State: StateBrowsingMenu, Replies: []Reply{{Text: menu.Title, Edit: true, Keyboard: kb}}}
}

func (p *Presenter) applyFilter(ctx context.Context, span trace.Span, a Action) Response {
	crit, err := CriterionFor(a.Category, a.Value)
	if err != nil {
		return p.failure(ctx, span, err, true)
	}
	c, err := p.catalog.Ensure(ctx)
	if err != nil {
		return p.failure(ctx, span, err, true)
	}
	matched, err := browse.Filter(c, crit)
	if err != nil {
		return p.failure(ctx, span, err, true)
	}
	span.SetAttributes(
		attribute.String("bot.criterion", crit.String()),
		attribute.Int("bot.matched", len(matched)),
	)

	label := FilterLabel(a.Value)
	back := row(actionButton("🔙 Back to Categories", Action{Kind: ActionMainMenu}))
	kb := productButtons(matched)
	if len(kb) == 0 {
		return Response{State: StateFilterSelected, Replies: []Reply{{
			Text: fmt.Sprintf("❌ No bouquets found in '%s' category\n\n"+
				"We're adding new arrangements daily! Please check back soon or browse other categories.", label),
			Edit:     true,
			Keyboard: Keyboard{back},
		}}}
	}
	return Response{State: StateFilterSelected, Replies: []Reply{{
		Text:     fmt.Sprintf("💐 Bouquets in '%s' category:", label),
		Edit:     true,
		Keyboard: append(kb, back),
	}}}
}

func (p *Presenter) productList(c *product.Catalog, title string, nav []Button) Reply {
	kb := productButtons(c.Products())
	if len(kb) == 0 {
		return Reply{
			Text:     "❌ Currently no products available. Please check back later!",
			Keyboard: Keyboard{nav},
		}
	}
	return Reply{Text: title, Keyboard: append(kb, nav)}
}

// productButtons renders one button per available product, capped at
// maxListed.
func productButtons(products []product.Product) Keyboard {
	kb := make(Keyboard, 0, min(len(products), maxListed))
	for _, pr := range products {
		if !pr.Available {
			continue
		}
		if len(kb) == maxListed {
			break
		}
		text := fmt.Sprintf("%s - AED%s", truncate(pr.Title, buttonTitleLen), pr.Price.StringFixed(2))
		kb = append(kb, row(actionButton(text, productAction(pr))))
	}
	return kb
}

func (p *Presenter) productDetail(ctx context.Context, span trace.Span, key string) Response {
	c, err := p.catalog.Ensure(ctx)
	if err != nil {
		return p.failure(ctx, span, err, true)
	}
	pr, ok := resolveProduct(c, key)
	if !ok {
		zctx.From(ctx).Info("Product not found", zap.String("key", key))
		return Response{State: StateFilterSelected, Replies: []Reply{{
			Text:     "⚠️ Product not found in our system",
			Edit:     true,
			Keyboard: Keyboard{row(actionButton("🔙 Back to Main Menu", Action{Kind: ActionMainMenu}))},
		}}}
	}
	span.SetAttributes(attribute.String("bot.product", pr.ID))

	storeURL := p.handoff.StoreURL(pr)
	kb := Keyboard{
		row(actionButton("🔙 Back to Menu", Action{Kind: ActionProductList})),
		row(
			urlButton("📸 Order via Instagram", p.handoff.InstagramURL()),
			urlButton("💬 Order via WhatsApp", p.handoff.WhatsAppURL(pr.Title)),
		),
	}
	if storeURL != "" {
		kb[0] = append(kb[0], urlButton("🛒 Order Now", storeURL))
	}

	detail := Reply{
		Text:     detailText(pr, storeURL, pr.ImageURL != ""),
		Markdown: true,
		PhotoURL: pr.ImageURL,
		Keyboard: kb,
	}
	resp := Response{State: StateProductDetail, DeleteOrigin: true, Replies: []Reply{detail}}

	if similar, ok := p.similar(ctx, c, pr); ok {
		resp.Replies = append(resp.Replies, similar)
	}
	return resp
}

func detailText(pr product.Product, storeURL string, caption bool) string {
	title, description := pr.Title, pr.Description
	if strings.TrimSpace(description) == "" {
		description = "No description available"
	}
	build := func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "💐 *%s* 💐\n\n", EscapeMarkdown(title))
		b.WriteString(EscapeMarkdown(description))
		fmt.Fprintf(&b, "\n\n*Price:* AED%s", pr.Price.StringFixed(2))
		if storeURL != "" {
			fmt.Fprintf(&b, "\n\n[View on our website](%s)", storeURL)
		}
		return b.String()
	}

	text := build()
	if !caption {
		return text
	}
	// Shrink the description first, then the title.
	for over := utf8.RuneCountInString(text) - maxCaption; over > 0; over = utf8.RuneCountInString(text) - maxCaption {
		switch {
		case description != "":
			keep := utf8.RuneCountInString(description) - over - len("...")
			if keep <= 0 {
				description = ""
			} else {
				description = truncate(description, keep)
			}
		default:
			keep := utf8.RuneCountInString(title) - over - len("...")
			if keep <= 0 {
				title = ""
			} else {
				title = truncate(title, keep)
			}
		}
		text = build()
		if title == "" && description == "" {
			break
		}
	}
	return text
}

func (p *Presenter) similar(ctx context.Context, c *product.Catalog, ref product.Product) (Reply, bool) {
	if ref.Tags.Len() == 0 {
		return Reply{}, false
	}
	ranked, err := recommend.Recommend(c, ref, max(c.Len(), 1))
	if err != nil {
		zctx.From(ctx).Warn("Recommend failed", zap.Error(err))
		return Reply{}, false
	}

	var (
		text strings.Builder
		kb   Keyboard
	)
	text.WriteString("🌸 *You Might Also Like* 🌸\n\n")
	for _, r := range ranked {
		if len(kb) == p.cfg.RecommendLimit {
			break
		}
		if !r.Product.Available {
			continue
		}
		if u := p.handoff.StoreURL(r.Product); u != "" {
			fmt.Fprintf(&text, "• [%s](%s)\n", EscapeMarkdown(r.Product.Title), u)
		} else {
			fmt.Fprintf(&text, "• %s\n", EscapeMarkdown(r.Product.Title))
		}
		kb = append(kb, row(actionButton("🌷 "+truncate(r.Product.Title, similarTitleLen), productAction(r.Product))))
	}
	if len(kb) == 0 {
		return Reply{}, false
	}
	kb = append(kb, row(actionButton("🔙 Back to All Products", Action{Kind: ActionProductList})))
	return Reply{
		Text:           text.String(),
		Markdown:       true,
		Keyboard:       kb,
		DisablePreview: true,
	}, true
}

func (p *Presenter) faqMenu() Response {
	kb := make(Keyboard, 0, len(p.faq.Entries())+1)
	for _, e := range p.faq.Entries() {
		kb = append(kb, row(actionButton(e.Question, Action{Kind: ActionFAQTopic, Value: e.Key})))
	}
	kb = append(kb, row(actionButton("🔙 Back to Main Menu", Action{Kind: ActionMainMenu})))
	return Response{State: StateFAQ, Replies: []Reply{{
		Text:     "❓ *Frequently Asked Questions* ❓\n\nSelect a topic:",
		Markdown: true,
		Edit:     true,
		Keyboard: kb,
	}}}
}

func (p *Presenter) faqTopic(key string) Response {
	back := row(actionButton("🔙 Back to FAQ", Action{Kind: ActionFAQMain}))
	e, ok := p.faq.Lookup(key)
	if !ok {
		return Response{State: StateFAQ, Replies: []Reply{{
			Text:     "⚠️ Question not found",
			Edit:     true,
			Keyboard: Keyboard{back},
		}}}
	}
	return Response{State: StateFAQ, Replies: []Reply{{
		Text:     fmt.Sprintf("*%s*\n\n%s", e.Question, e.Answer),
		Markdown: true,
		Edit:     true,
		Keyboard: Keyboard{back, row(urlButton("💬 Contact Us", p.handoff.WhatsAppURL("")))},
	}}}
}

// failure turns an error into a user-facing message. Catalog outages are
// expected and logged at warn level.
func (p *Presenter) failure(ctx context.Context, span trace.Span, err error, edit bool) Response {
	lg := zctx.From(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	text := "⚠️ Something went wrong. Please try again later."
	var (
		rangeErr  *browse.InvalidRangeError
		optionErr *UnknownOptionError
	)
	switch {
	case errors.Is(err, product.ErrCatalogUnavailable), errors.Is(err, product.ErrMissingCatalog):
		lg.Warn("Catalog unavailable", zap.Error(err))
		text = "⚠️ Product browsing is currently unavailable. Please try again later."
	case errors.As(err, &optionErr):
		lg.Warn("Invalid menu option", zap.Error(err))
		text = "⚠️ Invalid filter request"
	case errors.As(err, &rangeErr):
		lg.Warn("Invalid price range", zap.Error(err))
		text = "⚠️ Invalid filter request"
	default:
		lg.Error("Request failed", zap.Error(err))
	}
	return Response{State: StateBrowsingMenu, Replies: []Reply{{
		Text:     text,
		Edit:     edit,
		Keyboard: Keyboard{row(actionButton("🔙 Back to Main Menu", Action{Kind: ActionMainMenu}))},
	}}}
}

// truncate cuts s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

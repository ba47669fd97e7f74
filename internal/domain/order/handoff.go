// Package order forwards purchase intent to the channels where orders are
// actually taken: the web store, WhatsApp and Instagram.
package order

import (
	"net/url"
	"strings"

	"github.com/xenking/florist-bot/internal/domain/product"
)

// Channel names an external ordering channel.
type Channel string

const (
	// ChannelStore is the storefront product page.
	ChannelStore Channel = "store"
	// ChannelWhatsApp is a chat with the florist with a prefilled message.
	ChannelWhatsApp Channel = "whatsapp"
	// ChannelInstagram is the shop's Instagram profile.
	ChannelInstagram Channel = "instagram"
)

// Link is a URL on one ordering channel.
type Link struct {
	Channel Channel
	URL     string
}

// HandoffConfig holds the shop's public contact points.
type HandoffConfig struct {
	// StoreDomain is used to build a product URL when the source has none,
	// e.g. "prosto-flowers.myshopify.com".
	StoreDomain       string
	InstagramUsername string
	WhatsAppNumber    string
}

// Handoff builds order links for products.
type Handoff struct {
	cfg HandoffConfig
}

// NewHandoff creates a Handoff for the given contact points.
func NewHandoff(cfg HandoffConfig) *Handoff {
	cfg.WhatsAppNumber = strings.TrimPrefix(strings.TrimSpace(cfg.WhatsAppNumber), "+")
	cfg.InstagramUsername = strings.TrimPrefix(strings.TrimSpace(cfg.InstagramUsername), "@")
	return &Handoff{cfg: cfg}
}

// WhatsAppNumber returns the configured number without the leading plus.
func (h *Handoff) WhatsAppNumber() string { return h.cfg.WhatsAppNumber }

// StoreURL returns the product page, falling back to the handle on the
// configured store domain.
func (h *Handoff) StoreURL(p product.Product) string {
	if p.StoreURL != "" {
		return p.StoreURL
	}
	if h.cfg.StoreDomain == "" {
		return ""
	}
	return (&url.URL{
		Scheme: "https",
		Host:   h.cfg.StoreDomain,
		Path:   "/products/" + p.Key(),
	}).String()
}

// InstagramURL returns the shop's Instagram profile.
func (h *Handoff) InstagramURL() string {
	return "https://www.instagram.com/" + url.PathEscape(h.cfg.InstagramUsername) + "/"
}

// WhatsAppURL returns a wa.me link with a greeting. When title is set the
// message names the bouquet.
func (h *Handoff) WhatsAppURL(title string) string {
	var msg strings.Builder
	msg.WriteString("Hello Florist! I'm interested in ")
	if title != "" {
		msg.WriteString("the '")
		msg.WriteString(title)
		msg.WriteString("' bouquet. ")
	}
	msg.WriteString("Could you tell me more about it?")

	// wa.me does not decode '+' as a space.
	text := strings.ReplaceAll(url.QueryEscape(msg.String()), "+", "%20")
	return "https://wa.me/" + url.PathEscape(h.cfg.WhatsAppNumber) + "?text=" + text
}

// ForProduct returns every order link for p. The store link is omitted when
// no URL can be built.
func (h *Handoff) ForProduct(p product.Product) []Link {
	links := make([]Link, 0, 3)
	if u := h.StoreURL(p); u != "" {
		links = append(links, Link{Channel: ChannelStore, URL: u})
	}
	links = append(links,
		Link{Channel: ChannelInstagram, URL: h.InstagramURL()},
		Link{Channel: ChannelWhatsApp, URL: h.WhatsAppURL(p.Title)},
	)
	return links
}

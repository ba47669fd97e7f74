package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Catalog source kinds.
const (
	SourceShopify  = "shopify"
	SourcePostgres = "postgres"
	SourceFile     = "file"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (FLORIST_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"HTTP API and health listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (FLORIST_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Telegram    TelegramConfig
	Catalog     CatalogConfig
	Shopify     ShopifyConfig
	Links       LinksConfig
	Recommend   RecommendConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// TelegramConfig controls the bot connection.
type TelegramConfig struct {
	Token       string        `usage:"Bot API token (FLORIST_TELEGRAM_TOKEN or TELEGRAM_TOKEN)"`
	PollTimeout time.Duration `default:"60s" usage:"Long polling timeout" flag:"poll-timeout"`
	Debug       bool          `default:"false" usage:"Log Bot API requests"`
	ShopName    string        `default:"Prosto Flowers" usage:"Shop name used in greetings" flag:"shop-name"`
}

// CatalogConfig selects where products come from.
type CatalogConfig struct {
	Source          string        `default:"shopify" usage:"Catalog source: shopify, postgres or file"`
	RefreshInterval time.Duration `default:"10m" usage:"Catalog refresh interval" flag:"refresh-interval"`
	MaxAge          time.Duration `default:"1h" usage:"Snapshot age after which readiness fails" flag:"catalog-max-age"`
	File            string        `usage:"Products JSON or JSON.gz file for the file source" flag:"catalog-file"`
}

// ShopifyConfig holds the Admin API settings.
type ShopifyConfig struct {
	Store      string        `usage:"Shop subdomain (FLORIST_SHOPIFY_STORE or SHOPIFY_STORE)"`
	Token      string        `usage:"Admin API access token (FLORIST_SHOPIFY_TOKEN or SHOPIFY_STOREFRONT_TOKEN)"`
	APIVersion string        `default:"2025-07" usage:"Admin API version" flag:"shopify-api-version"`
	Timeout    time.Duration `default:"10s" usage:"Admin API request timeout" flag:"shopify-timeout"`
}

// LinksConfig holds the shop's public contact points.
type LinksConfig struct {
	StoreDomain       string `usage:"Store domain for product links, defaults to the Shopify domain" flag:"store-domain"`
	InstagramUsername string `default:"prostoflowers" usage:"Instagram username (INSTAGRAM_USERNAME)" flag:"instagram-username"`
	WhatsAppNumber    string `usage:"WhatsApp number in international format (WHATSAPP_NUMBER)" flag:"whatsapp-number"`
}

// RecommendConfig controls "You Might Also Like" suggestions.
type RecommendConfig struct {
	Limit int `default:"3" usage:"Number of similar bouquets to suggest"`
}

// RateLimitConfig controls the per-client and per-chat sliding window rate
// limiters.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// ChatMax limits bot updates per chat.
	ChatMax int `default:"30" usage:"Max bot updates per chat per window" flag:"chat-rate-max"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FLORIST",
		Files:     []string{"config.yaml", "/etc/florist-bot/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing settings for the selected catalog source.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is required: set FLORIST_TELEGRAM_TOKEN or TELEGRAM_TOKEN")
	}
	if c.Recommend.Limit <= 0 {
		return errors.Errorf("recommend limit must be positive, got %d", c.Recommend.Limit)
	}
	if c.RateLimit.Window <= 0 {
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.ChatMax <= 0 {
		return errors.Errorf("rate limit max must be positive, got max=%d chat max=%d",
			c.RateLimit.Max, c.RateLimit.ChatMax)
	}
	switch c.Catalog.Source {
	case SourceShopify:
		if c.Shopify.Store == "" || c.Shopify.Token == "" {
			return errors.New("shopify source requires SHOPIFY_STORE and SHOPIFY_STOREFRONT_TOKEN")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("postgres source requires FLORIST_DATABASE_URL or DATABASE_URL")
		}
	case SourceFile:
		if c.Catalog.File == "" {
			return errors.New("file source requires FLORIST_CATALOG_FILE")
		}
	default:
		return errors.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's FLORIST_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	fallback := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.Telegram.Token, "TELEGRAM_TOKEN")
	fallback(&c.Shopify.Store, "SHOPIFY_STORE")
	fallback(&c.Shopify.Token, "SHOPIFY_STOREFRONT_TOKEN")
	fallback(&c.Links.WhatsAppNumber, "WHATSAPP_NUMBER")
	if v := getenv("INSTAGRAM_USERNAME"); v != "" {
		c.Links.InstagramUsername = v
	}
	if c.Links.StoreDomain == "" && c.Shopify.Store != "" {
		c.Links.StoreDomain = c.Shopify.Store + ".myshopify.com"
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

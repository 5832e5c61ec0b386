package clubsite

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SiteConfig holds all configuration for a clubsite deployment.
type SiteConfig struct {
	Name        string `mapstructure:"site_name"`        // Site name (default "Club")
	URL         string `mapstructure:"site_url"`         // Canonical URL (default "http://localhost:3000")
	Description string `mapstructure:"site_description"` // Default preview description
	Author      string `mapstructure:"site_author"`      // Author name for JSON-LD
	Image       string `mapstructure:"site_image"`       // Default preview image

	Addr         string `mapstructure:"addr"`          // Listen address (default ":3000")
	DatabaseURL  string `mapstructure:"database_url"`  // Hosted Postgres DSN; SQLite is used when empty
	DatabasePath string `mapstructure:"database_path"` // SQLite path (default "data/club.db")
	RedisURL     string `mapstructure:"redis_url"`     // Optional preview render cache
	StaticDir    string `mapstructure:"static_dir"`    // Built single-page app (default "public")

	AdminPassword string `mapstructure:"admin_password"`       // Required: admin login password
	SessionSecret string `mapstructure:"admin_session_secret"` // Required: session encryption secret
	CookieSecure  bool   `mapstructure:"cookie_secure"`        // Set true for HTTPS

	TelegramBotToken  string  `mapstructure:"telegram_bot_token"`
	TelegramAPIURL    string  `mapstructure:"telegram_api_url"`    // default "https://api.telegram.org"
	TelegramRateLimit float64 `mapstructure:"telegram_rate_limit"` // messages per second; 0 sends unpaced
	DispatchSecret    string  `mapstructure:"dispatch_secret"`     // Optional bearer token for /api/notify
	DefaultLocale     string  `mapstructure:"default_locale"`      // "en" or "ru"
	PreviewOrigin     string  `mapstructure:"preview_origin"`      // Origin for crawler re-fetches; served in-process when empty

	ContentCacheTTL time.Duration `mapstructure:"content_cache_ttl"` // default 5m
	LogDevelopment  bool          `mapstructure:"log_development"`
}

// LoadConfig builds a SiteConfig from the environment and an optional config file.
func LoadConfig(path string) (SiteConfig, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setConfigDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return SiteConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg SiteConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("site_name", "Club")
	v.SetDefault("site_url", "http://localhost:3000")
	v.SetDefault("site_description", "")
	v.SetDefault("site_author", "")
	v.SetDefault("site_image", "")
	v.SetDefault("addr", ":3000")
	v.SetDefault("database_url", "")
	v.SetDefault("database_path", "data/club.db")
	v.SetDefault("redis_url", "")
	v.SetDefault("static_dir", "public")
	v.SetDefault("admin_password", "")
	v.SetDefault("admin_session_secret", "")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("telegram_api_url", "https://api.telegram.org")
	v.SetDefault("telegram_rate_limit", 0)
	v.SetDefault("dispatch_secret", "")
	v.SetDefault("default_locale", "en")
	v.SetDefault("preview_origin", "")
	v.SetDefault("content_cache_ttl", "5m")
	v.SetDefault("log_development", false)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Club"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	c.PreviewOrigin = strings.TrimSuffix(c.PreviewOrigin, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/club.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.TelegramAPIURL == "" {
		c.TelegramAPIURL = "https://api.telegram.org"
	}
	c.DefaultLocale = normalizeLocale(c.DefaultLocale, LocaleEN)
	if c.ContentCacheTTL == 0 {
		c.ContentCacheTTL = 5 * time.Minute
	}
}

// Validate reports missing required settings.
func (c SiteConfig) Validate() error {
	var errs []error
	if c.AdminPassword == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD is required"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("ADMIN_SESSION_SECRET is required"))
	}
	if c.ContentCacheTTL < 0 {
		errs = append(errs, errors.New("CONTENT_CACHE_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithMessenger replaces the Telegram client used by the dispatch endpoints.
func WithMessenger(m Messenger) Option {
	return func(a *App) {
		a.messenger = m
	}
}

// WithPreviewCache enables the shared preview render cache.
func WithPreviewCache(pc *PreviewCache) Option {
	return func(a *App) {
		a.previewCache = pc
	}
}

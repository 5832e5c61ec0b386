package clubsite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "Club", cfg.Name)
	assert.Equal(t, "http://localhost:3000", cfg.URL)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "data/club.db", cfg.DatabasePath)
	assert.Equal(t, "https://api.telegram.org", cfg.TelegramAPIURL)
	assert.Zero(t, cfg.TelegramRateLimit)
	assert.Equal(t, LocaleEN, cfg.DefaultLocale)
	assert.Equal(t, 5*time.Minute, cfg.ContentCacheTTL)
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SITE_NAME", "Volley Club")
	t.Setenv("SITE_URL", "https://volley.example/")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("ADMIN_SESSION_SECRET", "secret")
	t.Setenv("DEFAULT_LOCALE", "ru-RU")
	t.Setenv("PREVIEW_ORIGIN", "http://internal:3000/")
	t.Setenv("CONTENT_CACHE_TTL", "30s")
	t.Setenv("TELEGRAM_RATE_LIMIT", "5")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "Volley Club", cfg.Name)
	assert.Equal(t, "https://volley.example", cfg.URL)
	assert.Equal(t, "http://internal:3000", cfg.PreviewOrigin)
	assert.Equal(t, LocaleRU, cfg.DefaultLocale)
	assert.Equal(t, 30*time.Second, cfg.ContentCacheTTL)
	assert.Equal(t, 5.0, cfg.TelegramRateLimit)
	assert.True(t, cfg.CookieSecure)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "club.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site_name: File Club\ndispatch_secret: s3cret\nredis_url: redis://localhost:6379/0\n"), 0o644))
	t.Setenv("SITE_NAME", "Env Club")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Env Club", cfg.Name)
	assert.Equal(t, "s3cret", cfg.DispatchSecret)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	err := SiteConfig{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD is required")
	assert.Contains(t, err.Error(), "ADMIN_SESSION_SECRET is required")

	err = SiteConfig{AdminPassword: "a", SessionSecret: "b", ContentCacheTTL: -time.Second}.Validate()
	assert.EqualError(t, err, "CONTENT_CACHE_TTL must not be negative")
}

package clubsite

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCrawler(t *testing.T) {
	tests := []struct {
		ua   string
		name string
		ok   bool
	}{
		{"facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)", "Facebook", true},
		{"Twitterbot/1.0", "Twitter", true},
		{"TelegramBot (like TwitterBot)", "Telegram", true},
		{"WhatsApp/2.23.20.0", "WhatsApp", true},
		{"Mozilla/5.0 (compatible; Discordbot/2.0; +https://discordapp.com)", "Discord", true},
		{"Slackbot-LinkExpanding 1.0 (+https://api.slack.com/robots)", "Slack", true},
		{"LinkedInBot/1.0 (compatible; Mozilla/5.0)", "LinkedIn", true},
		{"Mozilla/5.0 (compatible; vkShare; +http://vk.com/dev/Share)", "VK", true},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		name, ok := MatchCrawler(tt.ua)
		assert.Equal(t, tt.ok, ok, tt.ua)
		assert.Equal(t, tt.name, name, tt.ua)
	}
}

func TestContentSlugFromPath(t *testing.T) {
	tests := []struct {
		path string
		slug string
		ok   bool
	}{
		{"/blog/spring-cup", "spring-cup", true},
		{"/blog/spring-cup/", "spring-cup", true},
		{"/blog/caf%C3%A9", "café", true},
		{"/blog/", "", false},
		{"/blog", "", false},
		{"/blog/a/b", "", false},
		{"/news/spring-cup", "", false},
	}
	for _, tt := range tests {
		slug, ok := contentSlugFromPath(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.slug, slug, tt.path)
	}
}

func TestCrawlerRouting(t *testing.T) {
	app, store := newTestApp(t, nil)
	seedContent(t, store, ContentItem{Slug: "spring-cup", Title: "Spring Cup", Excerpt: "Results", Published: true})

	srv := httptest.NewServer(app.Echo)
	defer srv.Close()

	get := func(t *testing.T, path, ua string) (*http.Response, string) {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", ua)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	t.Run("crawler gets the preview", func(t *testing.T) {
		resp, body := get(t, "/blog/spring-cup", "facebookexternalhit/1.1")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, previewCacheControl, resp.Header.Get("Cache-Control"))
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		assert.Contains(t, body, `<meta property="og:title" content="Spring Cup">`)
		assert.NotContains(t, body, `<div id="root">`)
	})

	t.Run("trailing slash", func(t *testing.T) {
		resp, body := get(t, "/blog/spring-cup/", "TelegramBot (like TwitterBot)")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "og:title")
	})

	t.Run("crawler status is relayed", func(t *testing.T) {
		resp, body := get(t, "/blog/unknown", "Twitterbot/1.0")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, "Content not found")
	})

	t.Run("humans get the app", func(t *testing.T) {
		resp, body := get(t, "/blog/spring-cup", "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `<div id="root">`)
	})

	t.Run("crawlers on other pages get the app", func(t *testing.T) {
		resp, body := get(t, "/events", "facebookexternalhit/1.1")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `<div id="root">`)
	})
}

func TestCrawlerRoutingUsesConfiguredOrigin(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=5")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "<html>upstream</html>")
	}))
	defer upstream.Close()

	app, _ := newTestApp(t, func(cfg *SiteConfig) { cfg.PreviewOrigin = upstream.URL + "/" })

	rec := doRequest(app, http.MethodGet, "/blog/some%20post", "", map[string]string{"User-Agent": "Discordbot/2.0"})
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "public, max-age=5", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "<html>upstream</html>", rec.Body.String())
	assert.Equal(t, "/api/og/some post", gotPath)
}

func TestCrawlerRoutingFetchFailure(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	origin := upstream.URL
	upstream.Close()

	app, _ := newTestApp(t, func(cfg *SiteConfig) { cfg.PreviewOrigin = origin })

	rec := doRequest(app, http.MethodGet, "/blog/cup", "", map[string]string{"User-Agent": "Twitterbot/1.0"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestCrawlerRoutingIgnoresRequestHost(t *testing.T) {
	var hits int
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = io.WriteString(w, "private")
	}))
	defer other.Close()

	app, store := newTestApp(t, nil)
	seedContent(t, store, ContentItem{Slug: "cup", Title: "Cup", Published: true})

	for _, slug := range []string{"cup", "x"} {
		req := httptest.NewRequest(http.MethodGet, "/blog/"+slug, nil)
		req.Host = strings.TrimPrefix(other.URL, "http://")
		req.Header.Set("User-Agent", "Twitterbot/1.0")
		rec := httptest.NewRecorder()
		app.Echo.ServeHTTP(rec, req)

		assert.NotContains(t, rec.Body.String(), "private", slug)
		if slug == "cup" {
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `<meta property="og:title" content="Cup">`)
		} else {
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, `{"error":"Content not found"}`, rec.Body.String())
		}
	}
	assert.Zero(t, hits)
}

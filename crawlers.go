package clubsite

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// linkPreviewCrawlers maps lower-case User-Agent substrings of link-preview
// crawlers to a display name. Order matters: more specific patterns first.
var linkPreviewCrawlers = []struct {
	pattern string
	name    string
}{
	{"facebookexternalhit", "Facebook"},
	{"facebot", "Facebook"},
	{"twitterbot", "Twitter"},
	{"linkedinbot", "LinkedIn"},
	{"telegrambot", "Telegram"},
	{"whatsapp", "WhatsApp"},
	{"slack-imgproxy", "Slack"},
	{"slackbot", "Slack"},
	{"discordbot", "Discord"},
	{"vkshare", "VK"},
	{"skypeuripreview", "Skype"},
	{"pinterest", "Pinterest"},
	{"redditbot", "Reddit"},
	{"embedly", "Embedly"},
	{"quora link preview", "Quora"},
	{"iframely", "Iframely"},
	{"mastodon", "Mastodon"},
	{"cardyb", "Bluesky"},
	{"bluesky", "Bluesky"},
	{"applebot", "Applebot"},
	{"googlebot", "Googlebot"},
	{"bingbot", "Bingbot"},
	{"yandex", "Yandex"},
}

// MatchCrawler reports whether ua belongs to a known link-preview crawler
// and returns its name.
func MatchCrawler(ua string) (string, bool) {
	ua = strings.ToLower(ua)
	if ua == "" {
		return "", false
	}
	for _, c := range linkPreviewCrawlers {
		if strings.Contains(ua, c.pattern) {
			return c.name, true
		}
	}
	return "", false
}

// contentDetailPath matches the content-detail pages of the single-page app.
var contentDetailPath = regexp.MustCompile(`^/blog/([^/]+)/?$`)

// contentSlugFromPath extracts the slug of a content-detail path.
func contentSlugFromPath(p string) (string, bool) {
	m := contentDetailPath.FindStringSubmatch(p)
	if m == nil {
		return "", false
	}
	slug, err := url.PathUnescape(m[1])
	if err != nil || strings.TrimSpace(slug) == "" {
		return "", false
	}
	return slug, true
}

// crawlerPreviewMiddleware re-routes link-preview crawlers asking for a
// content-detail page to the server-rendered preview endpoint. Everything
// else passes through untouched.
func (a *App) crawlerPreviewMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			return next(c)
		}
		slug, ok := contentSlugFromPath(req.URL.EscapedPath())
		if !ok {
			return next(c)
		}
		name, ok := MatchCrawler(req.UserAgent())
		if !ok {
			return next(c)
		}
		a.Log.Debug("serving preview to crawler", zap.String("crawler", name), zap.String("slug", slug))
		return a.refetchPreview(c, slug)
	}
}

// refetchPreview answers a crawler with the preview endpoint's response,
// relayed verbatim. Without a configured PreviewOrigin the endpoint is served
// in-process, so the inbound Host header never picks the upstream.
// There is no retry: a failed fetch is this request's failure.
func (a *App) refetchPreview(c echo.Context, slug string) error {
	var (
		status int
		header http.Header
		body   io.Reader
	)
	if a.Config.PreviewOrigin == "" {
		rec := a.servePreviewLocally(c, slug)
		status, header, body = rec.Code, rec.Header(), rec.Body
	} else {
		resp, err := a.fetchPreview(c, slug)
		if err != nil {
			a.Log.Error("preview re-fetch failed", zap.String("slug", slug), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		defer resp.Body.Close()
		status, header, body = resp.StatusCode, resp.Header, resp.Body
	}

	h := c.Response().Header()
	for _, key := range []string{echo.HeaderContentType, "Cache-Control"} {
		if v := header.Get(key); v != "" {
			h.Set(key, v)
		}
	}
	c.Response().WriteHeader(status)
	if c.Request().Method == http.MethodHead {
		return nil
	}
	_, err := io.Copy(c.Response(), body)
	return err
}

func (a *App) servePreviewLocally(c echo.Context, slug string) *httptest.ResponseRecorder {
	inbound := c.Request()
	req := httptest.NewRequest(http.MethodGet, "/api/og/"+url.PathEscape(slug), nil).WithContext(inbound.Context())
	req.Host = inbound.Host
	req.RemoteAddr = inbound.RemoteAddr
	req.Header.Set("User-Agent", inbound.UserAgent())
	req.Header.Set("Accept", "text/html")
	if xff := inbound.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		req.Header.Set(echo.HeaderXForwardedFor, xff)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func (a *App) fetchPreview(c echo.Context, slug string) (*http.Response, error) {
	target := a.Config.PreviewOrigin + "/api/og/" + url.PathEscape(slug)
	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build preview request: %w", err)
	}
	req.Header.Set("User-Agent", c.Request().UserAgent())
	req.Header.Set("Accept", "text/html")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch preview: %w", err)
	}
	return resp, nil
}

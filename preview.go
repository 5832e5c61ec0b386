package clubsite

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// previewCacheControl lets shared caches keep a preview for an hour and serve
// it stale while they revalidate.
const previewCacheControl = "public, max-age=0, s-maxage=3600, stale-while-revalidate=86400"

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// absoluteURL resolves root-relative paths against the site URL.
func absoluteURL(base, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(ref, "/")
}

// previewMeta picks title, description and image with the fixed precedence:
// SEO override, then the item's own fields, then the site defaults.
func previewMeta(cfg SiteConfig, item ContentItem) PageMeta {
	var firstImage string
	if len(item.Images) > 0 {
		firstImage = item.Images[0]
	}
	return PageMeta{
		Title:       firstNonEmpty(item.SEOTitle, item.Title, cfg.Name),
		Description: firstNonEmpty(item.SEODescription, item.Excerpt, cfg.Description),
		Image:       absoluteURL(cfg.URL, firstNonEmpty(item.SEOImage, item.Thumbnail, firstImage, cfg.Image)),
		URL:         BuildURL(cfg.URL, "blog", item.Slug),
		Section:     item.Category,
		Published:   item.PublishedAt,
	}
}

// PreviewPage renders the minimal static document served to link-preview
// crawlers. Every interpolated value is HTML-escaped.
func PreviewPage(cfg SiteConfig, meta PageMeta, jsonLD string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := templ.EscapeString
		var b strings.Builder
		tag := func(attr, key, value string) {
			if value == "" {
				return
			}
			b.WriteString(`  <meta ` + attr + `="` + key + `" content="` + e(value) + "\">\n")
		}

		b.WriteString("<!DOCTYPE html>\n<html lang=\"" + e(cfg.DefaultLocale) + "\">\n<head>\n")
		b.WriteString("  <meta charset=\"utf-8\">\n")
		b.WriteString("  <title>" + e(meta.Title) + "</title>\n")
		tag("name", "description", meta.Description)
		b.WriteString(`  <link rel="canonical" href="` + e(meta.URL) + "\">\n")
		tag("property", "og:type", "article")
		tag("property", "og:site_name", cfg.Name)
		tag("property", "og:title", meta.Title)
		tag("property", "og:description", meta.Description)
		tag("property", "og:image", meta.Image)
		tag("property", "og:url", meta.URL)
		tag("property", "og:locale", ogLocale(cfg.DefaultLocale))
		tag("property", "article:section", meta.Section)
		tag("property", "article:published_time", meta.Published)
		tag("name", "twitter:card", "summary_large_image")
		tag("name", "twitter:title", meta.Title)
		tag("name", "twitter:description", meta.Description)
		tag("name", "twitter:image", meta.Image)
		if jsonLD != "" {
			b.WriteString("  <script type=\"application/ld+json\">" + jsonLD + "</script>\n")
		}
		b.WriteString("</head>\n<body>\n")
		b.WriteString("  <h1>" + e(meta.Title) + "</h1>\n")
		if meta.Description != "" {
			b.WriteString("  <p>" + e(meta.Description) + "</p>\n")
		}
		b.WriteString(`  <p><a href="` + e(meta.URL) + `">` + e(meta.URL) + "</a></p>\n")
		b.WriteString("</body>\n</html>\n")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func ogLocale(locale string) string {
	if locale == LocaleRU {
		return "ru_RU"
	}
	return "en_US"
}

// renderPreview renders the preview document of item into a string.
func (a *App) renderPreview(ctx context.Context, item ContentItem) (string, error) {
	meta := previewMeta(a.Config, item)
	var buf bytes.Buffer
	if err := PreviewPage(a.Config, meta, ContentJsonLD(a.Config, item, meta)).Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// handlePreview serves the server-rendered social preview of one published item.
func (a *App) handlePreview(c echo.Context) error {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		slug = strings.TrimSpace(c.QueryParam("slug"))
	}
	if slug == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Slug is required")
	}
	ctx := c.Request().Context()

	// Publication is always checked against the store. Cached pages are
	// reused only for the same revision.
	item, err := a.Store.GetContent(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			a.metrics.preview("not_found")
			return echo.NewHTTPError(http.StatusNotFound, "Content not found")
		}
		a.metrics.preview("error")
		return err
	}
	version := previewVersion(item)

	if a.previewCache != nil {
		if page, ok, err := a.previewCache.Get(ctx, slug, version); err != nil {
			a.Log.Warn("preview cache read failed", zap.String("slug", slug), zap.Error(err))
		} else if ok {
			a.metrics.preview("cached")
			return writePreview(c, page)
		}
	}

	page, err := a.renderPreview(ctx, item)
	if err != nil {
		a.metrics.preview("error")
		return err
	}
	if a.previewCache != nil {
		if err := a.previewCache.Set(ctx, slug, version, page); err != nil {
			a.Log.Warn("preview cache write failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	a.metrics.preview("rendered")
	return writePreview(c, page)
}

// previewVersion identifies one revision of an item.
func previewVersion(item ContentItem) string {
	return item.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

func writePreview(c echo.Context, page string) error {
	c.Response().Header().Set("Cache-Control", previewCacheControl)
	return c.HTML(http.StatusOK, page)
}

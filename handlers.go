package clubsite

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (a *App) handleContentList(c echo.Context) error {
	category := strings.ToLower(strings.TrimSpace(c.QueryParam("category")))
	if category != "" && !validCategory(category) {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown category")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	items, err := a.Cache.ListContent(c.Request().Context(), category)
	if err != nil {
		return err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return c.JSON(http.StatusOK, items)
}

func (a *App) handleContentGet(c echo.Context) error {
	item, err := a.Cache.GetContent(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Content not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// handleContentView counts one view of a published item. The cached copy is
// left alone; view counts only need to be eventually accurate.
func (a *App) handleContentView(c echo.Context) error {
	slug := c.Param("slug")
	if err := a.Store.IncrementViews(c.Request().Context(), slug); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Content not found")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleCategories(c echo.Context) error {
	cats, err := a.Cache.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cats)
}

func (a *App) handlePageSections(c echo.Context) error {
	sections, err := a.Store.ListSections(c.Request().Context(), c.Param("page"), true)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sections)
}

func (a *App) handleSitemap(c echo.Context) error {
	items, err := a.Cache.ListContent(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, items)
}

func (a *App) handleFeed(c echo.Context) error {
	items, err := a.Cache.ListContent(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, items)
}

func (a *App) handleRobots(c echo.Context) error {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("\nSitemap: " + a.Config.URL + "/sitemap.xml\n")
	return c.String(http.StatusOK, b.String())
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := a.Store.Ping(ctx); err != nil {
		a.Log.Warn("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

package clubsite

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Section kinds the page builder knows how to render.
var sectionKinds = map[string]bool{
	"hero":     true,
	"features": true,
	"gallery":  true,
	"cta":      true,
	"text":     true,
	"faq":      true,
	"contacts": true,
}

type loginRequest struct {
	Password string `json:"password" form:"password"`
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if wait, ok := a.loginLimiter.Check(ip); !ok {
		secs := int(math.Ceil(wait.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Fail(ip)
		a.Log.Warn("admin login failed", zap.String("ip", ip))
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid password")
	}
	a.loginLimiter.Reset(ip)
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// handleAdminSession reports the login state and hands the admin app its
// CSRF token.
func handleAdminSession(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": IsAdmin(c),
		"csrfToken":     CsrfToken(c),
	})
}

// --- content ---

func (a *App) handleAdminContentList(c echo.Context) error {
	items, err := a.Store.ListAllContent(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (a *App) handleAdminContentGet(c echo.Context) error {
	item, err := a.Store.GetContentAny(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Content not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, item)
}

type contentInput struct {
	Slug           string   `json:"slug"`
	Title          string   `json:"title"`
	Excerpt        string   `json:"excerpt"`
	Body           string   `json:"body"`
	Category       string   `json:"category"`
	Thumbnail      string   `json:"thumbnail"`
	Images         []string `json:"images"`
	SEOTitle       string   `json:"seoTitle"`
	SEODescription string   `json:"seoDescription"`
	SEOImage       string   `json:"seoImage"`
	Published      bool     `json:"published"`
	PublishedAt    string   `json:"publishedAt"`
}

// item validates the input and converts it into a ContentItem.
func (in contentInput) item() (ContentItem, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return ContentItem{}, errors.New("Title is required")
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return ContentItem{}, errors.New("Slug is required. Add a title or slug.")
	}
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if category == "" {
		category = CategoryBlog
	}
	if !validCategory(category) {
		return ContentItem{}, errors.New("Category must be blog, news or article")
	}
	date := strings.TrimSpace(in.PublishedAt)
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return ContentItem{}, errors.New("Invalid date format. Use YYYY-MM-DD.")
	}
	return ContentItem{
		Slug:           slug,
		Title:          title,
		Excerpt:        strings.TrimSpace(in.Excerpt),
		Body:           in.Body,
		Category:       category,
		Thumbnail:      strings.TrimSpace(in.Thumbnail),
		Images:         FilterEmpty(in.Images),
		SEOTitle:       strings.TrimSpace(in.SEOTitle),
		SEODescription: strings.TrimSpace(in.SEODescription),
		SEOImage:       strings.TrimSpace(in.SEOImage),
		Published:      in.Published,
		PublishedAt:    date,
	}, nil
}

// handleAdminContentSave creates or updates an item. On PUT, a body slug that
// differs from the path slug renames the item.
func (a *App) handleAdminContentSave(c echo.Context) error {
	var in contentInput
	if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}
	previous := c.Param("slug")
	if in.Slug == "" {
		in.Slug = previous
	}
	item, err := in.item()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	evict := []string{item.Slug}
	if previous != "" && previous != item.Slug {
		switch err := a.Store.RenameContent(ctx, previous, item); {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Content not found")
		case errors.Is(err, ErrSlugTaken):
			return echo.NewHTTPError(http.StatusConflict, "Slug is already in use")
		case err != nil:
			return err
		}
		evict = append(evict, previous)
	} else if err := a.Store.SaveContent(ctx, item); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.evictPreviews(ctx, evict...)

	saved, err := a.Store.GetContentAny(ctx, item.Slug)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

func (a *App) handleAdminContentDelete(c echo.Context) error {
	slug := c.Param("slug")
	ctx := c.Request().Context()
	if err := a.Store.DeleteContent(ctx, slug); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Content not found")
		}
		return err
	}
	a.Cache.Invalidate()
	a.evictPreviews(ctx, slug)
	return c.NoContent(http.StatusNoContent)
}

// --- page sections ---

func (a *App) handleAdminSectionList(c echo.Context) error {
	sections, err := a.Store.ListSections(c.Request().Context(), c.Param("page"), false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sections)
}

type sectionInput struct {
	Kind    string          `json:"kind"`
	Props   json.RawMessage `json:"props"`
	Visible *bool           `json:"visible"`
}

func (a *App) handleAdminSectionSave(c echo.Context) error {
	var in sectionInput
	if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	if !sectionKinds[kind] {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown section kind")
	}
	if len(in.Props) > 0 {
		var obj map[string]any
		if err := json.Unmarshal(in.Props, &obj); err != nil || obj == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Section props must be a JSON object")
		}
	}
	visible := true
	if in.Visible != nil {
		visible = *in.Visible
	}

	ctx := c.Request().Context()
	sec := Section{
		ID:      c.Param("id"),
		Page:    c.Param("page"),
		Kind:    kind,
		Props:   in.Props,
		Visible: visible,
	}
	if sec.ID != "" {
		existing, err := a.findSection(c, sec.Page, sec.ID)
		if err != nil {
			return err
		}
		sec.Position = existing.Position
	}
	saved, err := a.Store.SaveSection(ctx, sec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

func (a *App) findSection(c echo.Context, page, id string) (Section, error) {
	sections, err := a.Store.ListSections(c.Request().Context(), page, false)
	if err != nil {
		return Section{}, err
	}
	for _, s := range sections {
		if s.ID == id {
			return s, nil
		}
	}
	return Section{}, echo.NewHTTPError(http.StatusNotFound, "Section not found")
}

func (a *App) handleAdminSectionDelete(c echo.Context) error {
	if err := a.Store.DeleteSection(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Section not found")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleAdminSectionReorder(c echo.Context) error {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids are required")
	}
	page := c.Param("page")
	ctx := c.Request().Context()
	if err := a.Store.ReorderSections(ctx, page, body.IDs); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Section not found")
		}
		return err
	}
	sections, err := a.Store.ListSections(ctx, page, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sections)
}

// --- recipients ---

func (a *App) handleRecipientList(c echo.Context) error {
	recipients, err := a.Store.ListRecipients(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recipients)
}

func (a *App) handleRecipientBan(c echo.Context) error {
	return a.setRecipientBanned(c, true)
}

func (a *App) handleRecipientUnban(c echo.Context) error {
	return a.setRecipientBanned(c, false)
}

func (a *App) setRecipientBanned(c echo.Context, banned bool) error {
	id := c.Param("id")
	if err := a.Store.SetRecipientBanned(c.Request().Context(), id, banned); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Recipient not found")
		}
		return err
	}
	a.Log.Info("recipient ban updated", zap.String("user_id", id), zap.Bool("banned", banned))
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

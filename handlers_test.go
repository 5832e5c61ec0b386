package clubsite

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleContentList(t *testing.T) {
	app, store := newTestApp(t, nil)
	seedContent(t, store,
		ContentItem{Slug: "a", Title: "A", Category: CategoryNews, Published: true, PublishedAt: "2024-02-01"},
		ContentItem{Slug: "b", Title: "B", Category: CategoryBlog, Published: true, PublishedAt: "2024-01-01"},
		ContentItem{Slug: "c", Title: "C", Published: false},
	)

	rec := doRequest(app, http.MethodGet, "/api/content", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	var items []ContentItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Slug)

	rec = doRequest(app, http.MethodGet, "/api/content?category=blog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Slug)

	rec = doRequest(app, http.MethodGet, "/api/content?category=article", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doRequest(app, http.MethodGet, "/api/content?category=poems", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(app, http.MethodGet, "/api/content?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Slug)

	rec = doRequest(app, http.MethodGet, "/api/content?limit=-2", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(app, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["blog","news"]`, rec.Body.String())
}

func TestHandleContentGetAndView(t *testing.T) {
	app, store := newTestApp(t, nil)
	seedContent(t, store, ContentItem{Slug: "cup", Title: "Cup", Published: true})

	rec := doRequest(app, http.MethodGet, "/api/content/cup", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"link":"/blog/cup"`)

	rec = doRequest(app, http.MethodGet, "/api/content/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Content not found"}`, rec.Body.String())

	rec = doRequest(app, http.MethodPost, "/api/content/cup/view", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(app, http.MethodPost, "/api/content/nope/view", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	item, err := store.GetContent(context.Background(), "cup")
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Views)
}

func TestHandleRobots(t *testing.T) {
	app, _ := newTestApp(t, nil)

	rec := doRequest(app, http.MethodGet, "/robots.txt", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
	body := rec.Body.String()
	assert.Contains(t, body, "Disallow: /admin/\n")
	assert.Contains(t, body, "Disallow: /api/\n")
	assert.Contains(t, body, "Sitemap: https://club.example/sitemap.xml")
}

func TestHandleSitemap(t *testing.T) {
	app, store := newTestApp(t, nil)
	seedContent(t, store,
		ContentItem{Slug: "cup", Title: "Cup", Published: true},
		ContentItem{Slug: "draft", Title: "Draft", Published: false},
	)

	rec := doRequest(app, http.MethodGet, "/sitemap.xml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")

	var set sitemapURLSet
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &set))
	var locs []string
	for _, u := range set.URLs {
		locs = append(locs, u.Loc)
	}
	assert.Equal(t, []string{
		"https://club.example",
		"https://club.example/about/",
		"https://club.example/events/",
		"https://club.example/news/",
		"https://club.example/contacts/",
		"https://club.example/blog/cup/",
	}, locs)
	assert.NotEmpty(t, set.URLs[len(set.URLs)-1].LastMod)
}

func TestHandleFeed(t *testing.T) {
	app, store := newTestApp(t, nil)
	seedContent(t, store,
		ContentItem{Slug: "cup", Title: "Cup & Final", Excerpt: "Results", Thumbnail: "/uploads/cup.jpg",
			Category: CategoryNews, Published: true, PublishedAt: "2024-05-01"},
	)

	rec := doRequest(app, http.MethodGet, "/feed.xml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")

	var feed rssXML
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &feed))
	assert.Equal(t, "Test Club", feed.Channel.Title)
	assert.Equal(t, "en", feed.Channel.Language)
	require.Len(t, feed.Channel.Items, 1)
	item := feed.Channel.Items[0]
	assert.Equal(t, "Cup & Final", item.Title)
	assert.Equal(t, "https://club.example/blog/cup/", item.Link)
	assert.Equal(t, "news", item.Category)
	assert.Equal(t, "Wed, 01 May 2024 00:00:00 +0000", item.PubDate)
	require.NotNil(t, item.Enclosure)
	assert.Equal(t, "https://club.example/uploads/cup.jpg", item.Enclosure.URL)
}

func TestHealthzReportsStoreFailure(t *testing.T) {
	store := newTestStore(t)
	app := newTestAppWithBackend(t, store, nil)
	require.NoError(t, store.Close())

	rec := doRequest(app, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestSecurityHeaders(t *testing.T) {
	app, _ := newTestApp(t, nil)

	rec := doRequest(app, http.MethodGet, "/", "", nil)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestHeadErrorsHaveNoBody(t *testing.T) {
	app, _ := newTestApp(t, nil)

	rec := doRequest(app, http.MethodHead, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

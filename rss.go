package clubsite

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	Category    string        `xml:"category,omitempty"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
	PubDate     string        `xml:"pubDate"`
	GUID        string        `xml:"guid"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

func (a *App) renderRSS(c echo.Context, items []ContentItem) error {
	base := a.Config.URL
	feedItems := make([]rssItem, 0, len(items))
	for _, it := range items {
		pubDate := ""
		if t, err := time.Parse("2006-01-02", it.PublishedAt); err == nil {
			pubDate = t.Format(time.RFC1123Z)
		}
		itemURL := BuildURL(base, "blog", it.Slug)
		ri := rssItem{
			Title:       it.Title,
			Link:        itemURL,
			Description: firstNonEmpty(it.Excerpt, it.SEODescription),
			Category:    it.Category,
			PubDate:     pubDate,
			GUID:        itemURL,
		}
		if it.Thumbnail != "" {
			ri.Enclosure = &rssEnclosure{URL: absoluteURL(base, it.Thumbnail), Type: "image/jpeg"}
		}
		feedItems = append(feedItems, ri)
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: a.Config.Description,
			Language:    a.Config.DefaultLocale,
			Items:       feedItems,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}

package clubsite

import (
	"encoding/json"
	"time"
)

// Content categories accepted by the admin API.
const (
	CategoryBlog    = "blog"
	CategoryNews    = "news"
	CategoryArticle = "article"
)

// ContentItem is a publishable blog/news/article record with a unique slug.
type ContentItem struct {
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Excerpt        string    `json:"excerpt"`
	Body           string    `json:"body"`
	Category       string    `json:"category"`
	Thumbnail      string    `json:"thumbnail,omitempty"`
	Images         []string  `json:"images"`
	SEOTitle       string    `json:"seoTitle,omitempty"`
	SEODescription string    `json:"seoDescription,omitempty"`
	SEOImage       string    `json:"seoImage,omitempty"`
	Published      bool      `json:"published"`
	PublishedAt    string    `json:"publishedAt"` // YYYY-MM-DD
	Views          int64     `json:"views"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Link           string    `json:"link"`
}

// Recipient is a user addressable through the messaging bot.
type Recipient struct {
	ID          string    `json:"id"`
	TelegramID  int64     `json:"telegramId"` // 0 when the user never started the bot
	DisplayName string    `json:"displayName"`
	Language    string    `json:"language"`
	Banned      bool      `json:"isBanned"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Reachable reports whether a message can be sent to the recipient.
func (r Recipient) Reachable() bool {
	return !r.Banned && r.TelegramID != 0
}

// Notification types mirrored into the in-app notification table.
const (
	NotificationEvent = "event"
	NotificationMatch = "match"
	NotificationRole  = "role"
)

// Notification is the in-app copy of a message delivered through the bot.
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Read      bool            `json:"isRead"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Section is one block of an admin-configured page.
type Section struct {
	ID        string          `json:"id"`
	Page      string          `json:"page"`
	Kind      string          `json:"kind"`
	Position  int             `json:"position"`
	Props     json.RawMessage `json:"props"`
	Visible   bool            `json:"visible"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Image is metadata for an admin-uploaded image.
type Image struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
	URL          string `json:"url"`
}

// PageMeta carries per-page OpenGraph and SEO metadata into the preview template.
type PageMeta struct {
	Title       string
	Description string
	Image       string
	URL         string // canonical + og:url
	Section     string
	Published   string
}

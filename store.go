package clubsite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrSlugTaken is returned when a rename targets a slug another item uses.
var ErrSlugTaken = errors.New("slug already in use")

// ContentStore reads and writes content items.
type ContentStore interface {
	// ListContent returns published items newest first, optionally filtered by category.
	ListContent(ctx context.Context, category string) ([]ContentItem, error)
	// GetContent returns a single published item.
	GetContent(ctx context.Context, slug string) (ContentItem, error)
	// GetContentAny returns an item regardless of publication state (for admin).
	GetContentAny(ctx context.Context, slug string) (ContentItem, error)
	ListAllContent(ctx context.Context) ([]ContentItem, error)
	SaveContent(ctx context.Context, item ContentItem) error
	// RenameContent moves the item at from to item.Slug and saves its fields,
	// keeping the view counter.
	RenameContent(ctx context.Context, from string, item ContentItem) error
	DeleteContent(ctx context.Context, slug string) error
	// IncrementViews bumps the view counter of a published item.
	IncrementViews(ctx context.Context, slug string) error
}

// RecipientStore loads bot recipients and mirrors delivered messages.
type RecipientStore interface {
	ListRecipients(ctx context.Context) ([]Recipient, error)
	// ListActiveRecipients returns every non-banned recipient with a messaging identity.
	ListActiveRecipients(ctx context.Context) ([]Recipient, error)
	GetRecipient(ctx context.Context, id string) (Recipient, error)
	SetRecipientBanned(ctx context.Context, id string, banned bool) error
	InsertNotification(ctx context.Context, n Notification) error
}

// SectionStore persists page-builder sections.
type SectionStore interface {
	ListSections(ctx context.Context, page string, visibleOnly bool) ([]Section, error)
	SaveSection(ctx context.Context, s Section) (Section, error)
	DeleteSection(ctx context.Context, id string) error
	ReorderSections(ctx context.Context, page string, ids []string) error
}

// ImageStore persists uploaded image metadata.
type ImageStore interface {
	SaveImage(ctx context.Context, img Image) error
	ListImages(ctx context.Context) ([]Image, error)
	DeleteImage(ctx context.Context, filename string) error
}

// Backend is the full relational backend used by the App.
type Backend interface {
	ContentStore
	RecipientStore
	SectionStore
	ImageStore
	Ping(ctx context.Context) error
	Close() error
}

// OpenBackend picks the Postgres backend when databaseURL is set and the
// embedded SQLite backend otherwise.
func OpenBackend(ctx context.Context, cfg SiteConfig) (Backend, error) {
	if strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		return NewPostgresStore(ctx, PostgresConfig{DSN: cfg.DatabaseURL})
	}
	return NewSQLiteStore(cfg.DatabasePath)
}

func contentLink(slug string) string {
	return "/blog/" + slug
}

func encodeImages(images []string) string {
	if len(images) == 0 {
		return "[]"
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeImages(raw []byte) []string {
	var images []string
	if len(raw) == 0 {
		return []string{}
	}
	if err := json.Unmarshal(raw, &images); err != nil || images == nil {
		return []string{}
	}
	return images
}

func rawOrEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

package clubsite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore wraps a SQLite database and implements Backend for local
// development and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at path, ensures the
// data directory exists, and runs schema migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed during writes; busy_timeout makes writers wait
	// instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS content_items (
    slug TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    excerpt TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT 'blog',
    thumbnail TEXT NOT NULL DEFAULT '',
    images TEXT NOT NULL DEFAULT '[]',
    seo_title TEXT NOT NULL DEFAULT '',
    seo_description TEXT NOT NULL DEFAULT '',
    seo_image TEXT NOT NULL DEFAULT '',
    published INTEGER NOT NULL DEFAULT 0,
    published_at TEXT NOT NULL,
    views INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS recipients (
    id TEXT PRIMARY KEY,
    telegram_id INTEGER NOT NULL DEFAULT 0,
    display_name TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    is_banned INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}',
    is_read INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at);
CREATE TABLE IF NOT EXISTS page_sections (
    id TEXT PRIMARY KEY,
    page TEXT NOT NULL,
    kind TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    props TEXT NOT NULL DEFAULT '{}',
    visible INTEGER NOT NULL DEFAULT 1,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS page_sections_page_idx ON page_sections (page, position);
CREATE TABLE IF NOT EXISTS images (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);
`)
	return err
}

// sqliteTimeLayout is fixed-width so stored timestamps sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

const contentColumns = `slug, title, excerpt, body, category, thumbnail, images, seo_title, seo_description, seo_image, published, published_at, views, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteContent(row rowScanner) (ContentItem, error) {
	var item ContentItem
	var images, updatedAt string
	var published int
	err := row.Scan(&item.Slug, &item.Title, &item.Excerpt, &item.Body, &item.Category, &item.Thumbnail,
		&images, &item.SEOTitle, &item.SEODescription, &item.SEOImage, &published, &item.PublishedAt,
		&item.Views, &updatedAt)
	if err != nil {
		return ContentItem{}, err
	}
	item.Images = decodeImages([]byte(images))
	item.Published = published == 1
	item.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	item.Link = contentLink(item.Slug)
	return item, nil
}

func (s *SQLiteStore) queryContent(ctx context.Context, query string, args ...any) ([]ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		item, err := scanSQLiteContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListContent returns published items ordered by publication date descending.
func (s *SQLiteStore) ListContent(ctx context.Context, category string) ([]ContentItem, error) {
	if category == "" {
		return s.queryContent(ctx, `SELECT `+contentColumns+` FROM content_items WHERE published = 1 ORDER BY published_at DESC, updated_at DESC`)
	}
	return s.queryContent(ctx, `SELECT `+contentColumns+` FROM content_items WHERE published = 1 AND category = ? ORDER BY published_at DESC, updated_at DESC`,
		strings.ToLower(strings.TrimSpace(category)))
}

// GetContent returns a single published item by slug.
func (s *SQLiteStore) GetContent(ctx context.Context, slug string) (ContentItem, error) {
	return scanSQLiteContent(s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE slug = ? AND published = 1`, slug))
}

// GetContentAny returns an item by slug regardless of published status.
func (s *SQLiteStore) GetContentAny(ctx context.Context, slug string) (ContentItem, error) {
	return scanSQLiteContent(s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE slug = ?`, slug))
}

// ListAllContent returns every item (published and drafts).
func (s *SQLiteStore) ListAllContent(ctx context.Context) ([]ContentItem, error) {
	return s.queryContent(ctx, `SELECT `+contentColumns+` FROM content_items ORDER BY published_at DESC, updated_at DESC`)
}

// SaveContent upserts an item. The view counter of an existing item is kept.
func (s *SQLiteStore) SaveContent(ctx context.Context, item ContentItem) error {
	published := 0
	if item.Published {
		published = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO content_items (slug, title, excerpt, body, category, thumbnail, images, seo_title, seo_description, seo_image, published, published_at, views, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
ON CONFLICT(slug) DO UPDATE SET
    title = excluded.title,
    excerpt = excluded.excerpt,
    body = excluded.body,
    category = excluded.category,
    thumbnail = excluded.thumbnail,
    images = excluded.images,
    seo_title = excluded.seo_title,
    seo_description = excluded.seo_description,
    seo_image = excluded.seo_image,
    published = excluded.published,
    published_at = excluded.published_at,
    updated_at = excluded.updated_at`,
		item.Slug, item.Title, item.Excerpt, item.Body, item.Category, item.Thumbnail, encodeImages(item.Images),
		item.SEOTitle, item.SEODescription, item.SEOImage, published, item.PublishedAt,
		time.Now().UTC().Format(sqliteTimeLayout))
	return err
}

// RenameContent moves an item to a new slug in one transaction.
func (s *SQLiteStore) RenameContent(ctx context.Context, from string, item ContentItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var taken int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items WHERE slug = ?`, item.Slug).Scan(&taken); err != nil {
		return err
	}
	if taken > 0 {
		return ErrSlugTaken
	}
	published := 0
	if item.Published {
		published = 1
	}
	res, err := tx.ExecContext(ctx, `
UPDATE content_items SET
    slug = ?, title = ?, excerpt = ?, body = ?, category = ?, thumbnail = ?, images = ?,
    seo_title = ?, seo_description = ?, seo_image = ?, published = ?, published_at = ?, updated_at = ?
WHERE slug = ?`,
		item.Slug, item.Title, item.Excerpt, item.Body, item.Category, item.Thumbnail, encodeImages(item.Images),
		item.SEOTitle, item.SEODescription, item.SEOImage, published, item.PublishedAt,
		time.Now().UTC().Format(sqliteTimeLayout), from)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteContent removes an item by slug.
func (s *SQLiteStore) DeleteContent(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_items WHERE slug = ?`, slug)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// IncrementViews bumps the view counter of a published item.
func (s *SQLiteStore) IncrementViews(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE content_items SET views = views + 1 WHERE slug = ? AND published = 1`, slug)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Recipients and notifications ---

func scanSQLiteRecipient(row rowScanner) (Recipient, error) {
	var r Recipient
	var banned int
	var createdAt string
	if err := row.Scan(&r.ID, &r.TelegramID, &r.DisplayName, &r.Language, &banned, &createdAt); err != nil {
		return Recipient{}, err
	}
	r.Banned = banned == 1
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return r, nil
}

func (s *SQLiteStore) queryRecipients(ctx context.Context, query string) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		r, err := scanSQLiteRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRecipients returns every recipient, banned ones included.
func (s *SQLiteStore) ListRecipients(ctx context.Context) ([]Recipient, error) {
	return s.queryRecipients(ctx, `SELECT id, telegram_id, display_name, language, is_banned, created_at FROM recipients ORDER BY created_at, id`)
}

// ListActiveRecipients returns non-banned recipients that have a Telegram identity.
func (s *SQLiteStore) ListActiveRecipients(ctx context.Context) ([]Recipient, error) {
	return s.queryRecipients(ctx, `SELECT id, telegram_id, display_name, language, is_banned, created_at FROM recipients WHERE is_banned = 0 AND telegram_id <> 0 ORDER BY created_at, id`)
}

// GetRecipient returns one recipient by internal id.
func (s *SQLiteStore) GetRecipient(ctx context.Context, id string) (Recipient, error) {
	return scanSQLiteRecipient(s.db.QueryRowContext(ctx, `SELECT id, telegram_id, display_name, language, is_banned, created_at FROM recipients WHERE id = ?`, id))
}

// SaveRecipient upserts a recipient. Recipients normally come from the
// backend's own sign-up flow; this is used for seeding.
func (s *SQLiteStore) SaveRecipient(ctx context.Context, r Recipient) error {
	banned := 0
	if r.Banned {
		banned = 1
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO recipients (id, telegram_id, display_name, language, is_banned, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.TelegramID, r.DisplayName, r.Language, banned, r.CreatedAt.UTC().Format(sqliteTimeLayout))
	return err
}

// SetRecipientBanned flips the ban flag of a recipient.
func (s *SQLiteStore) SetRecipientBanned(ctx context.Context, id string, banned bool) error {
	v := 0
	if banned {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE recipients SET is_banned = ? WHERE id = ?`, v, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// InsertNotification writes an in-app notification row.
func (s *SQLiteStore) InsertNotification(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	read := 0
	if n.Read {
		read = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, string(rawOrEmpty(n.Data)), read, n.CreatedAt.UTC().Format(sqliteTimeLayout))
	return err
}

// ListNotifications returns the notifications of one user, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, type, title, message, data, is_read, created_at FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var data, createdAt string
		var read int
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &read, &createdAt); err != nil {
			return nil, err
		}
		n.Data = []byte(data)
		n.Read = read == 1
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- Page sections ---

// ListSections returns the sections of a page ordered by position.
func (s *SQLiteStore) ListSections(ctx context.Context, page string, visibleOnly bool) ([]Section, error) {
	query := `SELECT id, page, kind, position, props, visible, updated_at FROM page_sections WHERE page = ?`
	if visibleOnly {
		query += ` AND visible = 1`
	}
	query += ` ORDER BY position, updated_at`
	rows, err := s.db.QueryContext(ctx, query, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Section
	for rows.Next() {
		var sec Section
		var props, updatedAt string
		var visible int
		if err := rows.Scan(&sec.ID, &sec.Page, &sec.Kind, &sec.Position, &props, &visible, &updatedAt); err != nil {
			return nil, err
		}
		sec.Props = []byte(props)
		sec.Visible = visible == 1
		sec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, sec)
	}
	return out, rows.Err()
}

// SaveSection upserts a section. New sections get an id and are appended to
// the end of the page.
func (s *SQLiteStore) SaveSection(ctx context.Context, sec Section) (Section, error) {
	if sec.ID == "" {
		sec.ID = uuid.NewString()
		var next int
		if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM page_sections WHERE page = ?`, sec.Page).Scan(&next); err != nil {
			return Section{}, err
		}
		sec.Position = next
	}
	sec.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	visible := 0
	if sec.Visible {
		visible = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO page_sections (id, page, kind, position, props, visible, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sec.ID, sec.Page, sec.Kind, sec.Position, string(rawOrEmpty(sec.Props)), visible, sec.UpdatedAt.Format(sqliteTimeLayout))
	if err != nil {
		return Section{}, err
	}
	return sec, nil
}

// DeleteSection removes a section by id.
func (s *SQLiteStore) DeleteSection(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM page_sections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ReorderSections assigns positions following the order of ids.
func (s *SQLiteStore) ReorderSections(ctx context.Context, page string, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE page_sections SET position = ? WHERE id = ? AND page = ?`, i, id, page); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- Images ---

// SaveImage records uploaded image metadata.
func (s *SQLiteStore) SaveImage(ctx context.Context, img Image) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO images (filename, original_name, width, height, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.UploadedAt)
	return err
}

// ListImages returns image metadata, newest first.
func (s *SQLiteStore) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, original_name, width, height, size, uploaded_at FROM images ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &img.UploadedAt); err != nil {
			return nil, err
		}
		img.URL = uploadURL(img.Filename)
		out = append(out, img)
	}
	return out, rows.Err()
}

// DeleteImage removes image metadata.
func (s *SQLiteStore) DeleteImage(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE filename = ?`, filename)
	return err
}

package clubsite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig controls the connection pool to the hosted backend.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Backend on the hosted Postgres database.
type PostgresStore struct {
	pool pgPool
}

// NewPostgresStore connects a pgx pool using cfg.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPostgresStoreWithPool(pool pgPool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the backend is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the tables this service relies on when they are missing.
// The hosted backend normally owns its schema; this is for fresh databases.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS content_items (
    slug text PRIMARY KEY,
    title text NOT NULL,
    excerpt text NOT NULL DEFAULT '',
    body text NOT NULL DEFAULT '',
    category text NOT NULL DEFAULT 'blog',
    thumbnail text NOT NULL DEFAULT '',
    images jsonb NOT NULL DEFAULT '[]',
    seo_title text NOT NULL DEFAULT '',
    seo_description text NOT NULL DEFAULT '',
    seo_image text NOT NULL DEFAULT '',
    published boolean NOT NULL DEFAULT false,
    published_at date NOT NULL DEFAULT current_date,
    views bigint NOT NULL DEFAULT 0,
    updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS recipients (
    id text PRIMARY KEY,
    telegram_id bigint,
    display_name text NOT NULL DEFAULT '',
    language text NOT NULL DEFAULT '',
    is_banned boolean NOT NULL DEFAULT false,
    created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS notifications (
    id uuid PRIMARY KEY,
    user_id text NOT NULL,
    type text NOT NULL,
    title text NOT NULL,
    message text NOT NULL,
    data jsonb NOT NULL DEFAULT '{}',
    is_read boolean NOT NULL DEFAULT false,
    created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS page_sections (
    id uuid PRIMARY KEY,
    page text NOT NULL,
    kind text NOT NULL,
    position integer NOT NULL DEFAULT 0,
    props jsonb NOT NULL DEFAULT '{}',
    visible boolean NOT NULL DEFAULT true,
    updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS images (
    filename text PRIMARY KEY,
    original_name text NOT NULL,
    width integer NOT NULL,
    height integer NOT NULL,
    size integer NOT NULL,
    uploaded_at text NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func pgNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const pgContentColumns = `slug, title, excerpt, body, category, thumbnail, images, seo_title, seo_description, seo_image, published, published_at, views, updated_at`

func scanPGContent(row pgx.Row) (ContentItem, error) {
	var item ContentItem
	var images []byte
	var publishedAt time.Time
	err := row.Scan(&item.Slug, &item.Title, &item.Excerpt, &item.Body, &item.Category, &item.Thumbnail,
		&images, &item.SEOTitle, &item.SEODescription, &item.SEOImage, &item.Published, &publishedAt,
		&item.Views, &item.UpdatedAt)
	if err != nil {
		return ContentItem{}, pgNotFound(err)
	}
	item.Images = decodeImages(images)
	item.PublishedAt = publishedAt.Format("2006-01-02")
	item.Link = contentLink(item.Slug)
	return item, nil
}

func (s *PostgresStore) queryContent(ctx context.Context, query string, args ...any) ([]ContentItem, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		item, err := scanPGContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListContent returns published items ordered by publication date descending.
func (s *PostgresStore) ListContent(ctx context.Context, category string) ([]ContentItem, error) {
	if category == "" {
		return s.queryContent(ctx, `SELECT `+pgContentColumns+` FROM content_items WHERE published ORDER BY published_at DESC, updated_at DESC`)
	}
	return s.queryContent(ctx, `SELECT `+pgContentColumns+` FROM content_items WHERE published AND category = $1 ORDER BY published_at DESC, updated_at DESC`,
		strings.ToLower(strings.TrimSpace(category)))
}

// GetContent returns one published item.
func (s *PostgresStore) GetContent(ctx context.Context, slug string) (ContentItem, error) {
	return scanPGContent(s.pool.QueryRow(ctx, `SELECT `+pgContentColumns+` FROM content_items WHERE slug = $1 AND published`, slug))
}

// GetContentAny returns an item regardless of publication state.
func (s *PostgresStore) GetContentAny(ctx context.Context, slug string) (ContentItem, error) {
	return scanPGContent(s.pool.QueryRow(ctx, `SELECT `+pgContentColumns+` FROM content_items WHERE slug = $1`, slug))
}

// ListAllContent returns drafts and published items.
func (s *PostgresStore) ListAllContent(ctx context.Context) ([]ContentItem, error) {
	return s.queryContent(ctx, `SELECT `+pgContentColumns+` FROM content_items ORDER BY published_at DESC, updated_at DESC`)
}

// SaveContent upserts an item, keeping the view counter of an existing row.
func (s *PostgresStore) SaveContent(ctx context.Context, item ContentItem) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO content_items (slug, title, excerpt, body, category, thumbnail, images, seo_title, seo_description, seo_image, published, published_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::date, now())
ON CONFLICT (slug) DO UPDATE SET
    title = EXCLUDED.title,
    excerpt = EXCLUDED.excerpt,
    body = EXCLUDED.body,
    category = EXCLUDED.category,
    thumbnail = EXCLUDED.thumbnail,
    images = EXCLUDED.images,
    seo_title = EXCLUDED.seo_title,
    seo_description = EXCLUDED.seo_description,
    seo_image = EXCLUDED.seo_image,
    published = EXCLUDED.published,
    published_at = EXCLUDED.published_at,
    updated_at = now()`,
		item.Slug, item.Title, item.Excerpt, item.Body, item.Category, item.Thumbnail, []byte(encodeImages(item.Images)),
		item.SEOTitle, item.SEODescription, item.SEOImage, item.Published, item.PublishedAt)
	return err
}

// RenameContent moves an item to a new slug in one transaction.
func (s *PostgresStore) RenameContent(ctx context.Context, from string, item ContentItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var taken bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM content_items WHERE slug = $1)`, item.Slug).Scan(&taken); err != nil {
		return err
	}
	if taken {
		return ErrSlugTaken
	}
	tag, err := tx.Exec(ctx, `
UPDATE content_items SET
    slug = $1, title = $2, excerpt = $3, body = $4, category = $5, thumbnail = $6, images = $7,
    seo_title = $8, seo_description = $9, seo_image = $10, published = $11, published_at = $12::date, updated_at = now()
WHERE slug = $13`,
		item.Slug, item.Title, item.Excerpt, item.Body, item.Category, item.Thumbnail, []byte(encodeImages(item.Images)),
		item.SEOTitle, item.SEODescription, item.SEOImage, item.Published, item.PublishedAt, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// DeleteContent removes an item.
func (s *PostgresStore) DeleteContent(ctx context.Context, slug string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM content_items WHERE slug = $1`, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps the view counter of a published item.
func (s *PostgresStore) IncrementViews(ctx context.Context, slug string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE content_items SET views = views + 1 WHERE slug = $1 AND published`, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Recipients and notifications ---

const pgRecipientColumns = `id, COALESCE(telegram_id, 0), display_name, language, is_banned, created_at`

func scanPGRecipient(row pgx.Row) (Recipient, error) {
	var r Recipient
	if err := row.Scan(&r.ID, &r.TelegramID, &r.DisplayName, &r.Language, &r.Banned, &r.CreatedAt); err != nil {
		return Recipient{}, pgNotFound(err)
	}
	return r, nil
}

func (s *PostgresStore) queryRecipients(ctx context.Context, query string) ([]Recipient, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		r, err := scanPGRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRecipients returns every recipient.
func (s *PostgresStore) ListRecipients(ctx context.Context) ([]Recipient, error) {
	return s.queryRecipients(ctx, `SELECT `+pgRecipientColumns+` FROM recipients ORDER BY created_at, id`)
}

// ListActiveRecipients returns non-banned recipients with a Telegram identity.
func (s *PostgresStore) ListActiveRecipients(ctx context.Context) ([]Recipient, error) {
	return s.queryRecipients(ctx, `SELECT `+pgRecipientColumns+` FROM recipients WHERE NOT is_banned AND telegram_id IS NOT NULL ORDER BY created_at, id`)
}

// GetRecipient returns one recipient by id.
func (s *PostgresStore) GetRecipient(ctx context.Context, id string) (Recipient, error) {
	return scanPGRecipient(s.pool.QueryRow(ctx, `SELECT `+pgRecipientColumns+` FROM recipients WHERE id = $1`, id))
}

// SetRecipientBanned flips the ban flag.
func (s *PostgresStore) SetRecipientBanned(ctx context.Context, id string, banned bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE recipients SET is_banned = $1 WHERE id = $2`, banned, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertNotification writes an in-app notification row.
func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO notifications (id, user_id, type, title, message, data, is_read) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, rawOrEmpty(n.Data), n.Read)
	return err
}

// --- Page sections ---

// ListSections returns the sections of a page ordered by position.
func (s *PostgresStore) ListSections(ctx context.Context, page string, visibleOnly bool) ([]Section, error) {
	query := `SELECT id::text, page, kind, position, props, visible, updated_at FROM page_sections WHERE page = $1`
	if visibleOnly {
		query += ` AND visible`
	}
	query += ` ORDER BY position, updated_at`
	rows, err := s.pool.Query(ctx, query, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Section
	for rows.Next() {
		var sec Section
		var props []byte
		if err := rows.Scan(&sec.ID, &sec.Page, &sec.Kind, &sec.Position, &props, &sec.Visible, &sec.UpdatedAt); err != nil {
			return nil, err
		}
		sec.Props = props
		out = append(out, sec)
	}
	return out, rows.Err()
}

// SaveSection upserts a section; new sections are appended to the page.
func (s *PostgresStore) SaveSection(ctx context.Context, sec Section) (Section, error) {
	if sec.ID == "" {
		sec.ID = uuid.NewString()
		if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM page_sections WHERE page = $1`, sec.Page).Scan(&sec.Position); err != nil {
			return Section{}, err
		}
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO page_sections (id, page, kind, position, props, visible, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (id) DO UPDATE SET
    page = EXCLUDED.page,
    kind = EXCLUDED.kind,
    position = EXCLUDED.position,
    props = EXCLUDED.props,
    visible = EXCLUDED.visible,
    updated_at = now()
RETURNING updated_at`,
		sec.ID, sec.Page, sec.Kind, sec.Position, rawOrEmpty(sec.Props), sec.Visible).Scan(&sec.UpdatedAt)
	if err != nil {
		return Section{}, err
	}
	return sec, nil
}

// DeleteSection removes a section.
func (s *PostgresStore) DeleteSection(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM page_sections WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderSections assigns positions following the order of ids in one transaction.
func (s *PostgresStore) ReorderSections(ctx context.Context, page string, ids []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	for i, id := range ids {
		if _, err := tx.Exec(ctx, `UPDATE page_sections SET position = $1 WHERE id = $2 AND page = $3`, i, id, page); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// --- Images ---

// SaveImage records uploaded image metadata.
func (s *PostgresStore) SaveImage(ctx context.Context, img Image) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO images (filename, original_name, width, height, size, uploaded_at) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (filename) DO UPDATE SET original_name = EXCLUDED.original_name, width = EXCLUDED.width,
    height = EXCLUDED.height, size = EXCLUDED.size, uploaded_at = EXCLUDED.uploaded_at`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.UploadedAt)
	return err
}

// ListImages returns image metadata, newest first.
func (s *PostgresStore) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := s.pool.Query(ctx, `SELECT filename, original_name, width, height, size, uploaded_at FROM images ORDER BY uploaded_at DESC`)
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
func (s *PostgresStore) DeleteImage(ctx context.Context, filename string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM images WHERE filename = $1`, filename)
	return err
}

package pubcms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/pubcms/migrations"
)

// Repository persists content items. Implementations return ErrNotFound for
// unknown ids and order List results newest first.
type Repository interface {
	Insert(ctx context.Context, item ContentItem) (ContentItem, error)
	Get(ctx context.Context, id int64) (ContentItem, error)
	List(ctx context.Context, f ListFilter) ([]ContentItem, error)
	Update(ctx context.Context, item ContentItem) (ContentItem, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close() error
}

// sqliteTime is fixed width so that text ordering matches time ordering.
const sqliteTime = "2006-01-02 15:04:05.000000"

// Store is the SQLite Repository.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// Pragmas go in the DSN so every pooled connection gets them: WAL for
	// concurrent readers, a busy timeout so writers wait instead of failing
	// with SQLITE_BUSY.
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if err := migrations.Up(db, migrations.DialectSQLite); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectColumns = `id, title, content, excerpt, category, image_url, author, published, created_at, updated_at, event_date, tags`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (ContentItem, error) {
	var (
		item                 ContentItem
		excerpt, image, tags sql.NullString
		eventDate            sql.NullString
		category             string
		created, updated     string
		published            int
	)
	if err := r.Scan(&item.ID, &item.Title, &item.Content, &excerpt, &category, &image,
		&item.Author, &published, &created, &updated, &eventDate, &tags); err != nil {
		return ContentItem{}, err
	}
	item.Category = Category(category)
	item.Published = published == 1
	item.Excerpt = nullString(excerpt)
	item.ImageURL = nullString(image)
	item.Tags = nullString(tags)

	var err error
	if item.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
		return ContentItem{}, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(sqliteTime, updated); err != nil {
		return ContentItem{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if eventDate.Valid {
		t, err := time.Parse(sqliteTime, eventDate.String)
		if err != nil {
			return ContentItem{}, fmt.Errorf("parse event_date: %w", err)
		}
		item.EventDate = &t
	}
	return item, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Insert adds item and returns it as stored, with its new id.
func (s *Store) Insert(ctx context.Context, item ContentItem) (ContentItem, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO content_items
		(title, content, excerpt, category, image_url, author, published, created_at, updated_at, event_date, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Title, item.Content, item.Excerpt, string(item.Category), item.ImageURL, item.Author,
		boolInt(item.Published), formatTime(item.CreatedAt), formatTime(item.UpdatedAt),
		formatTimePtr(item.EventDate), item.Tags)
	if err != nil {
		return ContentItem{}, fmt.Errorf("insert content item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ContentItem{}, fmt.Errorf("insert content item: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the item with the given id.
func (s *Store) Get(ctx context.Context, id int64) (ContentItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM content_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ContentItem{}, ErrNotFound
	}
	if err != nil {
		return ContentItem{}, fmt.Errorf("get content item %d: %w", id, err)
	}
	return item, nil
}

// List returns items matching f, newest first. Items created in the same
// microsecond are ordered by id, latest insert first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]ContentItem, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.Published != nil {
		where = append(where, "published = ?")
		args = append(args, boolInt(*f.Published))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + selectColumns + ` FROM content_items`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	limit := f.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list content items: %w", err)
	}
	defer rows.Close()

	items := []ContentItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Update writes every mutable column of item. Category and created_at are
// never touched.
func (s *Store) Update(ctx context.Context, item ContentItem) (ContentItem, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE content_items SET
		title = ?, content = ?, excerpt = ?, image_url = ?, author = ?, published = ?,
		updated_at = ?, event_date = ?, tags = ?
		WHERE id = ?`,
		item.Title, item.Content, item.Excerpt, item.ImageURL, item.Author, boolInt(item.Published),
		formatTime(item.UpdatedAt), formatTimePtr(item.EventDate), item.Tags, item.ID)
	if err != nil {
		return ContentItem{}, fmt.Errorf("update content item %d: %w", item.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ContentItem{}, ErrNotFound
	}
	return s.Get(ctx, item.ID)
}

// Delete removes the item with the given id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete content item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete content item %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

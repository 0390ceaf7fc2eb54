// Package postgres implements pubcms.Repository on PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/eringen/pubcms"
	"github.com/eringen/pubcms/migrations"
)

// Repository stores content items in the content_items table.
type Repository struct {
	pool *pgxpool.Pool
}

var _ pubcms.Repository = (*Repository)(nil)

// New connects to databaseURL, applies pending migrations and returns the
// repository. The caller owns it and must Close it.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repository{pool: pool}, nil
}

// NewWithPool wraps an existing pool. Migrations are not run.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate applies the embedded PostgreSQL migrations through pool.
func Migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrations.Up(db, migrations.DialectPostgres)
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const selectColumns = `id, title, content, excerpt, category, image_url, author, published, created_at, updated_at, event_date, tags`

func scanItem(row pgx.Row) (pubcms.ContentItem, error) {
	var (
		item      pubcms.ContentItem
		category  string
		eventDate *time.Time
	)
	err := row.Scan(&item.ID, &item.Title, &item.Content, &item.Excerpt, &category, &item.ImageURL,
		&item.Author, &item.Published, &item.CreatedAt, &item.UpdatedAt, &eventDate, &item.Tags)
	if err != nil {
		return pubcms.ContentItem{}, err
	}
	item.Category = pubcms.Category(category)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	if eventDate != nil {
		t := eventDate.UTC()
		item.EventDate = &t
	}
	return item, nil
}

// wrapError adds the operation to err and spells out the constraint
// violations a caller can act on.
func wrapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514": // check_violation
			return fmt.Errorf("%s: value rejected by %s: %w", op, pgErr.ConstraintName, err)
		case "23502": // not_null_violation
			return fmt.Errorf("%s: required column %s is missing: %w", op, pgErr.ColumnName, err)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist, migration required: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *Repository) Insert(ctx context.Context, item pubcms.ContentItem) (pubcms.ContentItem, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO content_items
		(title, content, excerpt, category, image_url, author, published, created_at, updated_at, event_date, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+selectColumns,
		item.Title, item.Content, item.Excerpt, string(item.Category), item.ImageURL, item.Author,
		item.Published, item.CreatedAt, item.UpdatedAt, item.EventDate, item.Tags)
	out, err := scanItem(row)
	if err != nil {
		return pubcms.ContentItem{}, wrapError("insert content item", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (pubcms.ContentItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM content_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return pubcms.ContentItem{}, pubcms.ErrNotFound
	}
	if err != nil {
		return pubcms.ContentItem{}, wrapError(fmt.Sprintf("get content item %d", id), err)
	}
	return item, nil
}

// List returns items matching f, newest first, ties broken by id.
func (r *Repository) List(ctx context.Context, f pubcms.ListFilter) ([]pubcms.ContentItem, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(string(f.Category)))
	}
	if f.Published != nil {
		where = append(where, "published = "+arg(*f.Published))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + selectColumns + ` FROM content_items`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	b.WriteString(" OFFSET " + arg(max(f.Offset, 0)))

	rows, err := r.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, wrapError("list content items", err)
	}
	defer rows.Close()

	items := []pubcms.ContentItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, wrapError("list content items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list content items", err)
	}
	return items, nil
}

// Update writes every mutable column of item. Category and created_at are
// never touched.
func (r *Repository) Update(ctx context.Context, item pubcms.ContentItem) (pubcms.ContentItem, error) {
	row := r.pool.QueryRow(ctx, `UPDATE content_items SET
		title = $1, content = $2, excerpt = $3, image_url = $4, author = $5, published = $6,
		updated_at = $7, event_date = $8, tags = $9
		WHERE id = $10
		RETURNING `+selectColumns,
		item.Title, item.Content, item.Excerpt, item.ImageURL, item.Author, item.Published,
		item.UpdatedAt, item.EventDate, item.Tags, item.ID)
	out, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pubcms.ContentItem{}, pubcms.ErrNotFound
	}
	if err != nil {
		return pubcms.ContentItem{}, wrapError(fmt.Sprintf("update content item %d", item.ID), err)
	}
	return out, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return wrapError(fmt.Sprintf("delete content item %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return pubcms.ErrNotFound
	}
	return nil
}

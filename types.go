package pubcms

import (
	"io"
	"strings"
	"time"
)

// Category is the section a content item is published under.
type Category string

const (
	CategoryBlogs  Category = "blogs"
	CategoryEvents Category = "events"
	CategoryNews   Category = "news"
)

// Categories lists every recognized category in display order.
var Categories = []Category{CategoryBlogs, CategoryEvents, CategoryNews}

// ParseCategory returns s as a Category or a *ValidationError naming the
// valid set.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return "", &ValidationError{
		Field:   "category",
		Message: "Category must be one of: " + strings.Join(names, ", "),
	}
}

// ContentItem is the single persisted entity: a titled entry with optional
// image, stored in the content_items table.
type ContentItem struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Excerpt   *string    `json:"excerpt"`
	Category  Category   `json:"category"`
	ImageURL  *string    `json:"image_url"`
	Author    string     `json:"author"`
	Published bool       `json:"published"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EventDate *time.Time `json:"event_date"`
	Tags      *string    `json:"tags"`
}

// Optional marks whether an update parameter was supplied. A supplied zero
// value (for example an empty string) is still applied.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a supplied Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Upload is an uploaded file as received from the client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// CreateInput carries the fields accepted when creating an item. Nil
// pointers mean the optional field was not supplied.
type CreateInput struct {
	Title     string
	Content   string
	Category  string
	Author    string
	Excerpt   *string
	Published bool
	EventDate *string // ISO-8601
	Tags      *string
	Image     *Upload
}

// UpdateInput carries a partial update. Category is deliberately absent:
// it cannot change after creation.
type UpdateInput struct {
	Title     Optional[string]
	Content   Optional[string]
	Excerpt   Optional[string]
	Author    Optional[string]
	Published Optional[bool]
	EventDate Optional[string] // ISO-8601; an empty string clears the date
	Tags      Optional[string]
	Image     *Upload
}

// ListFilter selects and pages items for List. An empty Category and a nil
// Published disable the respective filter. Limit <= 0 means no limit.
type ListFilter struct {
	Category  Category
	Published *bool
	Limit     int
	Offset    int
}

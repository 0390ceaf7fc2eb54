package pubcms

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/eringen/pubcms/blob"
)

// Service is the content item store: it validates input, keeps the
// repository and the blob store in step, and owns the timestamps.
type Service struct {
	repo  Repository
	blobs blob.Store
	log   *slog.Logger

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// NewService returns a Service over repo and blobs.
func NewService(repo Repository, blobs blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, blobs: blobs, log: logger, Clock: time.Now}
}

// now is truncated to what the repositories can store, so a value returned
// from Create equals the one read back later.
func (s *Service) now() time.Time {
	return s.Clock().UTC().Truncate(time.Microsecond)
}

func checkImage(u *Upload) error {
	if !strings.HasPrefix(u.ContentType, "image/") {
		return &ValidationError{Field: "image", Message: "File must be an image"}
	}
	return nil
}

// UploadImage validates and stores a standalone image, returning its
// reference.
func (s *Service) UploadImage(ctx context.Context, u Upload) (string, error) {
	if err := checkImage(&u); err != nil {
		return "", err
	}
	ref, err := s.blobs.Put(ctx, u.Body, u.ContentType, u.Filename)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	return ref, nil
}

// Create validates in, stores its image if any, and inserts a new item.
// Nothing is written unless every field validates.
func (s *Service) Create(ctx context.Context, in CreateInput) (ContentItem, error) {
	category, err := ParseCategory(in.Category)
	if err != nil {
		return ContentItem{}, err
	}
	if in.Image != nil {
		if err := checkImage(in.Image); err != nil {
			return ContentItem{}, err
		}
	}
	var eventDate *time.Time
	if in.EventDate != nil && *in.EventDate != "" {
		t, err := ParseEventDate(*in.EventDate)
		if err != nil {
			return ContentItem{}, err
		}
		eventDate = &t
	}

	now := s.now()
	item := ContentItem{
		Title:     in.Title,
		Content:   in.Content,
		Excerpt:   in.Excerpt,
		Category:  category,
		Author:    in.Author,
		Published: in.Published,
		CreatedAt: now,
		UpdatedAt: now,
		EventDate: eventDate,
		Tags:      in.Tags,
	}
	if in.Image != nil {
		ref, err := s.UploadImage(ctx, *in.Image)
		if err != nil {
			return ContentItem{}, err
		}
		item.ImageURL = &ref
	}

	created, err := s.repo.Insert(ctx, item)
	if err != nil {
		if item.ImageURL != nil {
			s.discard(ctx, *item.ImageURL)
		}
		return ContentItem{}, err
	}
	s.log.Info("content item created", "id", created.ID, "category", created.Category)
	return created, nil
}

// Get returns the item with the given id.
func (s *Service) Get(ctx context.Context, id int64) (ContentItem, error) {
	item, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ContentItem{}, &NotFoundError{ID: id}
	}
	return item, err
}

// List returns items matching f, newest first. An empty result is not an
// error.
func (s *Service) List(ctx context.Context, f ListFilter) ([]ContentItem, error) {
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Update applies the supplied fields of in to the item. All input is
// validated before anything is written, so a rejected update leaves the
// item untouched, updated_at included. A replaced image is deleted only
// after the new reference has been persisted.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (ContentItem, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return ContentItem{}, err
	}

	next := cur
	if in.Title.Set {
		next.Title = in.Title.Value
	}
	if in.Content.Set {
		next.Content = in.Content.Value
	}
	if in.Excerpt.Set {
		next.Excerpt = &in.Excerpt.Value
	}
	if in.Author.Set {
		next.Author = in.Author.Value
	}
	if in.Published.Set {
		next.Published = in.Published.Value
	}
	if in.Tags.Set {
		next.Tags = &in.Tags.Value
	}
	if in.EventDate.Set {
		if in.EventDate.Value == "" {
			next.EventDate = nil
		} else {
			t, err := ParseEventDate(in.EventDate.Value)
			if err != nil {
				return ContentItem{}, err
			}
			next.EventDate = &t
		}
	}
	if in.Image != nil {
		if err := checkImage(in.Image); err != nil {
			return ContentItem{}, err
		}
	}

	var oldImage *string
	if in.Image != nil {
		ref, err := s.UploadImage(ctx, *in.Image)
		if err != nil {
			return ContentItem{}, err
		}
		oldImage = cur.ImageURL
		next.ImageURL = &ref
	}
	next.UpdatedAt = s.now()

	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		if in.Image != nil {
			s.discard(ctx, *next.ImageURL)
		}
		if errors.Is(err, ErrNotFound) {
			return ContentItem{}, &NotFoundError{ID: id}
		}
		return ContentItem{}, err
	}
	if oldImage != nil && *oldImage != *next.ImageURL {
		s.discard(ctx, *oldImage)
	}
	s.log.Info("content item updated", "id", id)
	return updated, nil
}

// Delete removes the item and, best-effort, its image.
func (s *Service) Delete(ctx context.Context, id int64) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{ID: id}
		}
		return err
	}
	if item.ImageURL != nil {
		s.discard(ctx, *item.ImageURL)
	}
	s.log.Info("content item deleted", "id", id)
	return nil
}

// Ping reports whether the repository is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// discard deletes a blob that is no longer referenced. Failures are logged,
// not returned.
func (s *Service) discard(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.log.Warn("blob cleanup failed", "ref", ref, "err", err)
	}
}

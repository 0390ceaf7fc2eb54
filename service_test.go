package pubcms

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubcms/blob"
	"github.com/eringen/pubcms/blob/memory"
)

// testClock hands out strictly increasing times, one second apart.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T) (*Service, *memory.Backend, *testClock) {
	t.Helper()
	blobs := memory.New("")
	clock := &testClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(setupTestStore(t), blobs, nil)
	svc.Clock = clock.Now
	return svc, blobs, clock
}

func pngUpload(name string) *Upload {
	return &Upload{Filename: name, ContentType: "image/png", Body: strings.NewReader("png-bytes-" + name)}
}

func newsInput() CreateInput {
	return CreateInput{Title: "Q1 Update", Content: "...", Category: "news", Author: "Jane"}
}

func TestCreateDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)

	item, err := svc.Create(context.Background(), newsInput())
	require.NoError(t, err)

	assert.NotZero(t, item.ID)
	assert.False(t, item.Published)
	assert.Nil(t, item.ImageURL)
	assert.Equal(t, item.CreatedAt, item.UpdatedAt)
	assert.Equal(t, CategoryNews, item.Category)
	assert.Equal(t, time.UTC, item.CreatedAt.Location())
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	in := newsInput()
	in.Category = "recipes"
	in.Image = pngUpload("a.png")
	_, err := svc.Create(ctx, in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "blogs, events, news")

	items, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, blobs.Len())
}

func TestCreateRejectsNonImage(t *testing.T) {
	svc, blobs, _ := newTestService(t)

	in := newsInput()
	in.Image = &Upload{Filename: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("hi")}
	_, err := svc.Create(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "File must be an image", verr.Message)
	assert.Zero(t, blobs.Len())
}

func TestCreateBadEventDateWritesNothing(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	in := newsInput()
	in.Image = pngUpload("a.png")
	in.EventDate = ptr("next tuesday")
	_, err := svc.Create(ctx, in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "event_date", verr.Field)
	assert.Zero(t, blobs.Len(), "no orphaned blob")

	items, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateWithImageAndEventDate(t *testing.T) {
	svc, blobs, _ := newTestService(t)

	in := newsInput()
	in.Category = "events"
	in.EventDate = ptr("2024-06-01T18:30:00Z")
	in.Image = pngUpload("poster.png")
	in.Excerpt = ptr("Summer meetup")
	in.Tags = ptr("meetup,go")
	in.Published = true

	item, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, item.ImageURL)
	assert.True(t, strings.HasPrefix(*item.ImageURL, "/uploads/"))
	assert.True(t, strings.HasSuffix(*item.ImageURL, ".png"))
	assert.True(t, blobs.Has(*item.ImageURL))
	require.NotNil(t, item.EventDate)
	assert.Equal(t, time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC), *item.EventDate)
	assert.Equal(t, "meetup,go", *item.Tags)
	assert.True(t, item.Published)
}

func TestGetEqualsCreate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	in := newsInput()
	in.Content = "line one\nline two — ünïcode ✓"
	in.Excerpt = ptr("")
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	require.NotNil(t, got.Excerpt)
	assert.Equal(t, "", *got.Excerpt)
}

func TestGetNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Get(context.Background(), 999)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(999), nf.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirstAndFiltered(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Title: "A", Content: "a", Category: "blogs", Author: "x"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateInput{Title: "B", Content: "b", Category: "news", Author: "x", Published: true})
	require.NoError(t, err)
	c, err := svc.Create(ctx, CreateInput{Title: "C", Content: "c", Category: "blogs", Author: "x", Published: true})
	require.NoError(t, err)

	all, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, ids(all))

	blogs, err := svc.List(ctx, ListFilter{Category: CategoryBlogs})
	require.NoError(t, err)
	for _, it := range blogs {
		assert.Equal(t, CategoryBlogs, it.Category)
	}
	assert.Len(t, blogs, 2)

	pub, err := svc.List(ctx, ListFilter{Category: CategoryBlogs, Published: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID}, ids(pub))

	page, err := svc.List(ctx, ListFilter{Limit: 1, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID}, ids(page))
}

func TestUpdateNoFieldsBumpsUpdatedAtOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, newsInput())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, UpdateInput{})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	updated.UpdatedAt = created.UpdatedAt
	assert.Equal(t, created, updated)
}

func TestUpdatePublishedOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, newsInput())
	require.NoError(t, err)
	require.False(t, created.Published)

	updated, err := svc.Update(ctx, created.ID, UpdateInput{Published: Some(true)})
	require.NoError(t, err)
	assert.True(t, updated.Published)
	assert.NotEqual(t, created.UpdatedAt, updated.UpdatedAt)

	updated.Published = false
	updated.UpdatedAt = created.UpdatedAt
	assert.Equal(t, created, updated)
}

func TestUpdateBadEventDateChangesNothing(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, newsInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, UpdateInput{
		Title:     Some("changed"),
		Published: Some(true),
		EventDate: Some("not-a-date"),
		Image:     pngUpload("new.png"),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Zero(t, blobs.Len())
}

func TestUpdateEmptyStringsOverwrite(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	in := newsInput()
	in.Excerpt = ptr("excerpt")
	in.Tags = ptr("a,b")
	in.EventDate = ptr("2024-02-02")
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, UpdateInput{
		Title:     Some(""),
		Excerpt:   Some(""),
		Tags:      Some(""),
		EventDate: Some(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "", updated.Title)
	assert.Equal(t, "", *updated.Excerpt)
	assert.Equal(t, "", *updated.Tags)
	assert.Nil(t, updated.EventDate)
	assert.Equal(t, created.Content, updated.Content)
	assert.Equal(t, created.Author, updated.Author)
}

func TestUpdateReplacesImage(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	in := newsInput()
	in.Image = pngUpload("old.png")
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)
	oldRef := *created.ImageURL

	updated, err := svc.Update(ctx, created.ID, UpdateInput{Image: pngUpload("new.jpg")})
	require.NoError(t, err)

	require.NotNil(t, updated.ImageURL)
	assert.NotEqual(t, oldRef, *updated.ImageURL)
	assert.True(t, strings.HasSuffix(*updated.ImageURL, ".jpg"))
	assert.True(t, blobs.Has(*updated.ImageURL))
	assert.False(t, blobs.Has(oldRef))
	assert.Equal(t, 1, blobs.Len())
}

func TestUpdateImageWhenOldBlobAlreadyGone(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	in := newsInput()
	in.Image = pngUpload("old.png")
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.NoError(t, blobs.Delete(ctx, *created.ImageURL))

	updated, err := svc.Update(ctx, created.ID, UpdateInput{Image: pngUpload("new.png")})
	require.NoError(t, err)
	assert.True(t, blobs.Has(*updated.ImageURL))
}

func TestUpdateRejectsNonImage(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, newsInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, UpdateInput{
		Image: &Upload{Filename: "x.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")},
	})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), 404, UpdateInput{Title: Some("x")})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestDeleteRemovesBlob(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	in := newsInput()
	in.Image = pngUpload("a.png")
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)
	ref := *created.ImageURL

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, _, err = blobs.Open(ctx, ref)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	err = svc.Delete(ctx, created.ID)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestDeleteToleratesMissingBlob(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	in := newsInput()
	in.Image = pngUpload("a.png")
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.NoError(t, blobs.Delete(ctx, *created.ImageURL))

	assert.NoError(t, svc.Delete(ctx, created.ID))
}

type failingBlobs struct{ blob.Store }

func (failingBlobs) Put(ctx context.Context, r io.Reader, mediaType, name string) (string, error) {
	return "", errors.New("disk full")
}

func TestCreateBlobFailureIsUploadError(t *testing.T) {
	svc := NewService(setupTestStore(t), failingBlobs{memory.New("")}, nil)

	in := newsInput()
	in.Image = pngUpload("a.png")
	_, err := svc.Create(context.Background(), in)

	var uerr *UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "Error uploading file: disk full", uerr.Error())
}

func TestUploadImage(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	ref, err := svc.UploadImage(ctx, *pngUpload("logo.png"))
	require.NoError(t, err)
	assert.True(t, blobs.Has(ref))

	_, err = svc.UploadImage(ctx, Upload{Filename: "a.txt", ContentType: "text/plain", Body: strings.NewReader("")})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func ids(items []ContentItem) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

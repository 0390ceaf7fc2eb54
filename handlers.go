package pubcms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubcms/blob"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: "CMS API is running"})
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := a.Service.Ping(ctx); err != nil {
		a.Logger.Warn("health check failed", "err", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleCreate(c echo.Context) error {
	form, err := formValues(c, a.Config.MaxUploadBytes)
	if err != nil {
		return err
	}
	var in CreateInput
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"title", &in.Title},
		{"content", &in.Content},
		{"category", &in.Category},
		{"author", &in.Author},
	} {
		if *f.dst, err = requiredField(form, f.key); err != nil {
			return err
		}
	}
	in.Excerpt = optionalPtr(form, "excerpt")
	in.Tags = optionalPtr(form, "tags")
	in.EventDate = optionalPtr(form, "event_date")
	published, err := optionalBool(form, "published")
	if err != nil {
		return err
	}
	in.Published = published.Value

	image, closeImage, err := a.formImage(c, "image")
	if err != nil {
		return err
	}
	defer closeImage()
	in.Image = image

	item, err := a.Service.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	a.afterWrite("create", image != nil)
	return c.JSON(http.StatusOK, item)
}

func (a *App) handleGet(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	item, err := a.Service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (a *App) handleList(c echo.Context) error {
	f, err := a.listFilter(c, nil)
	if err != nil {
		return err
	}
	f.Category = Category(c.QueryParam("category"))
	if f.Limit == 0 {
		return c.JSON(http.StatusOK, []ContentItem{})
	}
	items, err := a.Service.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// handleCategoryList serves a category listing through the cache.
// published defaults to true here.
func (a *App) handleCategoryList(cat Category) echo.HandlerFunc {
	return func(c echo.Context) error {
		published := true
		f, err := a.listFilter(c, &published)
		if err != nil {
			return err
		}
		f.Category = cat
		if f.Limit == 0 {
			return c.JSON(http.StatusOK, []ContentItem{})
		}
		items, err := a.Cache.List(c.Request().Context(), f)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, items)
	}
}

// listFilter reads published, limit and offset from the query string.
// A negative limit means no limit; MaxListLimit, when set, caps it.
func (a *App) listFilter(c echo.Context, publishedDefault *bool) (ListFilter, error) {
	f := ListFilter{Published: publishedDefault}
	published, err := optionalBool(c.QueryParams(), "published")
	if err != nil {
		return ListFilter{}, err
	}
	if published.Set {
		f.Published = &published.Value
	}
	if f.Limit, err = queryInt(c, "limit", 20); err != nil {
		return ListFilter{}, err
	}
	if f.Offset, err = queryInt(c, "offset", 0); err != nil {
		return ListFilter{}, err
	}
	if f.Limit < 0 {
		f.Limit = -1
	}
	if maxLimit := a.Config.MaxListLimit; maxLimit > 0 && (f.Limit < 0 || f.Limit > maxLimit) {
		f.Limit = maxLimit
	}
	return f, nil
}

func (a *App) handleUpdate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	form, err := formValues(c, a.Config.MaxUploadBytes)
	if err != nil {
		return err
	}
	in := UpdateInput{
		Title:     optionalField(form, "title"),
		Content:   optionalField(form, "content"),
		Excerpt:   optionalField(form, "excerpt"),
		Author:    optionalField(form, "author"),
		EventDate: optionalField(form, "event_date"),
		Tags:      optionalField(form, "tags"),
	}
	if in.Published, err = optionalBool(form, "published"); err != nil {
		return err
	}

	image, closeImage, err := a.formImage(c, "image")
	if err != nil {
		return err
	}
	defer closeImage()
	in.Image = image

	item, err := a.Service.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	a.afterWrite("update", image != nil)
	return c.JSON(http.StatusOK, item)
}

func (a *App) handleDelete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := a.Service.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	a.afterWrite("delete", false)
	return c.JSON(http.StatusOK, messageResponse{Message: "Content item deleted successfully"})
}

func (a *App) afterWrite(op string, uploaded bool) {
	a.Cache.Invalidate()
	a.metrics.contentWrite(op)
	if uploaded {
		a.metrics.imageUploaded()
	}
}

func (a *App) handleBlob(c echo.Context) error {
	ref := blob.Ref(a.Config.UploadsPrefix, c.Param("name"))
	rc, info, err := a.Blobs.Open(c.Request().Context(), ref)
	if errors.Is(err, blob.ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	defer rc.Close()

	if rs, ok := rc.(io.ReadSeeker); ok {
		c.Response().Header().Set(echo.HeaderContentType, info.ContentType)
		http.ServeContent(c.Response(), c.Request(), info.Name, info.ModTime, rs)
		return nil
	}
	if info.Size > 0 {
		c.Response().Header().Set(echo.HeaderContentLength, fmt.Sprint(info.Size))
	}
	return c.Stream(http.StatusOK, info.ContentType, rc)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, detail := http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)

	var (
		verr *ValidationError
		nf   *NotFoundError
		uerr *UploadError
		he   *echo.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		code, detail = http.StatusBadRequest, verr.Message
	case errors.As(err, &nf):
		code, detail = http.StatusNotFound, nf.Error()
	case errors.As(err, &uerr):
		detail = uerr.Error()
	case errors.As(err, &he):
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			detail = msg
		} else {
			detail = http.StatusText(he.Code)
		}
		if code == http.StatusRequestEntityTooLarge {
			detail = "Request body too large"
		}
	}

	if code >= 500 {
		a.Logger.Error("server error", "method", c.Request().Method, "uri", c.Request().RequestURI, "err", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Detail: detail})
}

package pubcms

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	_ "golang.org/x/image/webp"

)

type uploadResponse struct {
	ImageURL string `json:"image_url"`
	Filename string `json:"filename"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

func (a *App) handleUploadImage(c echo.Context) error {
	if _, err := formValues(c, a.Config.MaxUploadBytes); err != nil {
		return err
	}
	up, closeUpload, err := a.formImage(c, "file")
	if err != nil {
		return err
	}
	defer closeUpload()
	if up == nil {
		return &ValidationError{Field: "file", Message: "Field required: file"}
	}

	cfg, body := probeImage(up.Body)
	up.Body = body

	ref, err := a.Service.UploadImage(c.Request().Context(), *up)
	if err != nil {
		return err
	}
	a.metrics.imageUploaded()
	return c.JSON(http.StatusOK, uploadResponse{
		ImageURL: ref,
		Filename: up.Filename,
		Width:    cfg.Width,
		Height:   cfg.Height,
	})
}

// formImage returns the upload in the named multipart field, or nil when
// the field is absent or carries no file. The returned func closes it.
func (a *App) formImage(c echo.Context, field string) (*Upload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, &ValidationError{Field: field, Message: "Invalid file upload: " + err.Error()}
	}
	if fh.Filename == "" && fh.Size == 0 {
		return nil, noop, nil
	}
	if fh.Size > a.Config.MaxUploadBytes {
		return nil, noop, &ValidationError{Field: field, Message: "File too large"}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, &UploadError{Err: err}
	}
	return &Upload{
		Filename:    fh.Filename,
		ContentType: uploadContentType(fh),
		Body:        f,
	}, func() { f.Close() }, nil
}

// uploadContentType prefers the part's declared type and falls back to
// sniffing when the client sent none.
func uploadContentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get(echo.HeaderContentType); ct != "" {
		return ct
	}
	f, err := fh.Open()
	if err != nil {
		return ""
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return http.DetectContentType(head[:n])
}

// probeImage reads just enough of r to decode the image header. The
// returned reader replays the consumed bytes followed by the rest of r.
// Dimensions are zero for formats the decoders do not recognize.
func probeImage(r io.Reader) (image.Config, io.Reader) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		cfg = image.Config{}
	}
	return cfg, io.MultiReader(&head, r)
}

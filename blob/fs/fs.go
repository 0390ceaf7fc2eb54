// Package fs is a blob.Store that keeps objects as files in one directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/eringen/pubcms/blob"
)

// Config options for the filesystem backend.
type Config struct {
	BaseDir   string // Directory holding the objects (required)
	URLPrefix string // Reference prefix (default blob.DefaultPrefix)
}

// Backend is a filesystem implementation of blob.Store.
type Backend struct {
	baseDir string
	prefix  string
}

// New creates the base directory if needed and returns a Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New("fs: base directory is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("fs: create base directory: %w", err)
	}
	prefix := cfg.URLPrefix
	if prefix == "" {
		prefix = blob.DefaultPrefix
	}
	return &Backend{baseDir: cfg.BaseDir, prefix: prefix}, nil
}

// Put writes r to a new file named after a random id and the extension of
// originalName.
func (b *Backend) Put(ctx context.Context, r io.Reader, mediaType, originalName string) (string, error) {
	name := blob.NewObjectName(originalName)
	path := filepath.Join(b.baseDir, name)

	// O_EXCL: a name collision must fail instead of overwriting.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("fs: create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("fs: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("fs: close %s: %w", name, err)
	}
	return blob.Ref(b.prefix, name), nil
}

// Open returns the file behind ref.
func (b *Backend) Open(ctx context.Context, ref string) (io.ReadCloser, blob.Info, error) {
	name := blob.NameFromRef(ref)
	if name == "" {
		return nil, blob.Info{}, blob.ErrNotFound
	}
	f, err := os.Open(filepath.Join(b.baseDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, blob.Info{}, blob.ErrNotFound
	}
	if err != nil {
		return nil, blob.Info{}, fmt.Errorf("fs: open %s: %w", name, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, blob.Info{}, fmt.Errorf("fs: stat %s: %w", name, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, blob.Info{}, blob.ErrNotFound
	}
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	return f, blob.Info{
		Name:        name,
		Size:        st.Size(),
		ContentType: ctype,
		ModTime:     st.ModTime(),
	}, nil
}

// Delete removes the file behind ref; a missing file is not an error.
func (b *Backend) Delete(ctx context.Context, ref string) error {
	name := blob.NameFromRef(ref)
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(b.baseDir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("fs: delete %s: %w", name, err)
	}
	return nil
}

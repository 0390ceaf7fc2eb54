// Package memory is an in-process blob.Store, used by tests and throwaway
// deployments.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/eringen/pubcms/blob"
)

type object struct {
	data        []byte
	contentType string
	modTime     time.Time
}

// Backend is an in-memory implementation of blob.Store.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	prefix  string
}

// New returns an empty Backend whose references start with prefix
// (blob.DefaultPrefix when empty).
func New(prefix string) *Backend {
	if prefix == "" {
		prefix = blob.DefaultPrefix
	}
	return &Backend{objects: make(map[string]object), prefix: prefix}
}

// Put implements blob.Store.
func (b *Backend) Put(ctx context.Context, r io.Reader, mediaType, originalName string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	name := blob.NewObjectName(originalName)

	b.mu.Lock()
	b.objects[name] = object{data: data, contentType: mediaType, modTime: time.Now()}
	b.mu.Unlock()

	return blob.Ref(b.prefix, name), nil
}

// Open implements blob.Store.
func (b *Backend) Open(ctx context.Context, ref string) (io.ReadCloser, blob.Info, error) {
	name := blob.NameFromRef(ref)

	b.mu.RLock()
	obj, ok := b.objects[name]
	b.mu.RUnlock()
	if !ok {
		return nil, blob.Info{}, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), blob.Info{
		Name:        name,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		ModTime:     obj.modTime,
	}, nil
}

// Delete implements blob.Store.
func (b *Backend) Delete(ctx context.Context, ref string) error {
	name := blob.NameFromRef(ref)
	b.mu.Lock()
	delete(b.objects, name)
	b.mu.Unlock()
	return nil
}

// Len reports how many objects are stored.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Has reports whether ref resolves to a stored object.
func (b *Backend) Has(ref string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[blob.NameFromRef(ref)]
	return ok
}

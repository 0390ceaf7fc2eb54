// Package blob stores uploaded files under generated names and resolves the
// references handed back to callers.
//
// A reference is the public path of an object, "<prefix>/<name>", where name
// is a random UUID followed by the extension of the uploaded file. Backends
// live in the fs, memory and s3 subpackages.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPrefix is the URL path under which stored objects are served.
const DefaultPrefix = "/uploads"

// ErrNotFound is returned by Open when no object exists for a reference.
var ErrNotFound = errors.New("blob: object not found")

// Info describes a stored object.
type Info struct {
	Name        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Store persists uploaded bytes. Put does not validate the media type;
// callers do that before handing bytes over. Delete of a missing object is
// a no-op.
type Store interface {
	Put(ctx context.Context, r io.Reader, mediaType, originalName string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, Info, error)
	Delete(ctx context.Context, ref string) error
}

// ObjectName builds the storage name for an upload: the id followed by the
// extension of originalName.
func ObjectName(originalName string, id uuid.UUID) string {
	return id.String() + filepath.Ext(originalName)
}

// NewObjectName is ObjectName with a fresh random id.
func NewObjectName(originalName string) string {
	return ObjectName(originalName, uuid.New())
}

// Ref joins prefix and name into a reference.
func Ref(prefix, name string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return strings.TrimRight(prefix, "/") + "/" + name
}

// NameFromRef returns the object name a reference points at. Only the last
// path element is used, so a reference can never address anything outside
// the store. It returns "" for references without a usable name.
func NameFromRef(ref string) string {
	name := path.Base(strings.ReplaceAll(ref, "\\", "/"))
	switch name {
	case ".", "..", "/", "":
		return ""
	}
	return name
}

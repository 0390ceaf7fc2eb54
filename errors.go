package pubcms

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when no row matches an id.
var ErrNotFound = errors.New("content item not found")

// ValidationError reports client input that cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports an unknown content item id. It matches ErrNotFound
// under errors.Is.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return "Content item not found"
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// UploadError wraps a failure to write an uploaded file to the blob store.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("Error uploading file: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

package object

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrTooLarge is returned when an upload exceeds the byte limit.
	ErrTooLarge = errors.New("object exceeds size limit")
	// ErrInvalidName is returned for empty or traversal file names.
	ErrInvalidName = errors.New("invalid file name")
)

// Object describes a stored upload.
type Object struct {
	Key       string
	Path      string
	Size      int64
	MediaType string
}

// FileStore persists uploaded blobs where extractors can read them by path.
type FileStore interface {
	Save(ctx context.Context, owner string, fileName string, r io.Reader, limit int64) (Object, error)
	Remove(ctx context.Context, key string) error
}

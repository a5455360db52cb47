package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"study-backend/internal/shared/storage/object"
	"study-backend/internal/shared/util"
)

const sniffLen = 3072

// Store implements object.FileStore on the local filesystem.
type Store struct {
	baseDir string
}

// New creates a new local store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save writes r under the owner's directory with a random prefix. At most
// limit bytes are accepted; a larger body is removed and ErrTooLarge returned.
// MediaType is sniffed from the stored bytes.
func (s *Store) Save(ctx context.Context, owner string, fileName string, r io.Reader, limit int64) (object.Object, error) {
	sanitizedName, err := util.UploadName(fileName)
	if err != nil {
		return object.Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}

	ownerDir := util.OwnerDir(owner)
	dirPath := filepath.Join(s.baseDir, ownerDir)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return object.Object{}, fmt.Errorf("mkdir: %w", err)
	}

	finalName := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizedName)
	fullPath := filepath.Join(dirPath, finalName)
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return object.Object{}, fmt.Errorf("open file: %w", err)
	}

	obj, err := write(f, r, limit)
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("close file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(fullPath)
		return object.Object{}, err
	}

	obj.Key = filepath.Join(ownerDir, finalName)
	obj.Path = fullPath
	return obj, nil
}

func write(f *os.File, r io.Reader, limit int64) (object.Object, error) {
	var body io.Reader = r
	if limit > 0 {
		body = io.LimitReader(r, limit+1)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return object.Object{}, fmt.Errorf("read head: %w", err)
	}
	head = head[:n]

	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), body))
	if err != nil {
		return object.Object{}, fmt.Errorf("write body: %w", err)
	}
	if limit > 0 && written > limit {
		return object.Object{}, object.ErrTooLarge
	}
	return object.Object{
		Size:      written,
		MediaType: mimetype.Detect(head).String(),
	}, nil
}

// Remove deletes a stored object. Missing objects are not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid storage key")
	}
	if err := os.Remove(filepath.Join(s.baseDir, clean)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var _ object.FileStore = (*Store)(nil)

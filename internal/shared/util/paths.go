package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"study-backend/internal/shared/storage/object"
)

// OwnerDir maps an upload owner to a stable directory name, so user ids never
// appear on disk.
func OwnerDir(owner string) string {
	sum := sha256.Sum256([]byte("owner:" + owner))
	return hex.EncodeToString(sum[:16])
}

// UploadName flattens a client-supplied file name into a single path
// component. Separators become underscores and control characters are dropped.
// Names with a "." or ".." component, or nothing left, yield object.ErrInvalidName.
func UploadName(name string) (string, error) {
	parts := strings.FieldsFunc(strings.TrimSpace(name), func(r rune) bool {
		return r == '/' || r == '\\'
	})
	for i, part := range parts {
		part = strings.TrimSpace(strings.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, part))
		if part == "." || part == ".." {
			return "", object.ErrInvalidName
		}
		parts[i] = part
	}
	s := strings.Join(parts, "_")
	if strings.Trim(s, "_") == "" {
		return "", object.ErrInvalidName
	}
	return s, nil
}

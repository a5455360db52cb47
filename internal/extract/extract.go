// Package extract turns stored uploads into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	MediaPDF  = "application/pdf"
	MediaPNG  = "image/png"
	MediaJPEG = "image/jpeg"
)

// ErrUnsupportedMediaType is returned for media types no extractor handles.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Extractor reads the file at path and returns its text.
type Extractor interface {
	Extract(ctx context.Context, path string, mediaType string) (string, error)
}

// NormalizeMediaType lower-cases, strips parameters and folds known aliases.
func NormalizeMediaType(mediaType string) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mediaType, ";")[0]))
	switch clean {
	case "image/jpg", "image/pjpeg":
		return MediaJPEG
	case "application/x-pdf":
		return MediaPDF
	default:
		return clean
	}
}

// Supported reports whether mediaType (after normalization) can be extracted.
func Supported(mediaType string) bool {
	switch NormalizeMediaType(mediaType) {
	case MediaPDF, MediaPNG, MediaJPEG:
		return true
	default:
		return false
	}
}

// Router dispatches to the PDF or OCR extractor by media type.
type Router struct {
	PDF   Extractor
	Image Extractor
}

// NewRouter builds a Router from the two leaf extractors.
func NewRouter(pdf, image Extractor) *Router {
	return &Router{PDF: pdf, Image: image}
}

func (r *Router) Extract(ctx context.Context, path string, mediaType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	normalized := NormalizeMediaType(mediaType)
	var target Extractor
	switch normalized {
	case MediaPDF:
		target = r.PDF
	case MediaPNG, MediaJPEG:
		target = r.Image
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, normalized)
	}
	if target == nil {
		return "", fmt.Errorf("no extractor configured for %s", normalized)
	}
	return target.Extract(ctx, path, normalized)
}

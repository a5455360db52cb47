package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"study-backend/internal/extract"
	"study-backend/internal/shared/metrics"
	"study-backend/internal/shared/storage/object"
	"study-backend/internal/shared/telemetry"
	"study-backend/internal/storage"
)

// UploadInput describes one uploaded file.
type UploadInput struct {
	File      io.Reader `json:"file"`
	MediaType string    `json:"fileType"`
	FileName  string    `json:"fileName"`
	SizeBytes int64     `json:"fileSize"`
	OwnerID   int64     `json:"userId"`
}

func (in UploadInput) validate(maxBytes int64) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.File, validation.Required.Error("file is required")),
		validation.Field(&in.FileName, validation.Required.Error("file name is required")),
		validation.Field(&in.OwnerID, validation.Required.Error("userId is required"), validation.Min(int64(1))),
		validation.Field(&in.SizeBytes,
			validation.Required.Error("file is empty"),
			validation.Min(int64(1)).Error("file is empty"),
			validation.Max(maxBytes).Error(fmt.Sprintf("file exceeds %d bytes", maxBytes)),
		),
	)
}

// Upload stores the file, extracts its text and persists a Document. No
// Document exists unless extraction produced non-blank text.
func (s *Service) Upload(ctx context.Context, in UploadInput) (storage.Document, error) {
	in.FileName = strings.TrimSpace(in.FileName)
	if err := in.validate(s.limits.MaxUploadBytes); err != nil {
		return storage.Document{}, asFieldError(err)
	}

	mediaType := extract.NormalizeMediaType(in.MediaType)
	if !extract.Supported(mediaType) {
		return storage.Document{}, unsupported{mediaType: in.MediaType}
	}

	// A client disconnect must not abort a started extraction.
	ctx = context.WithoutCancel(ctx)

	obj, err := s.files.Save(ctx, strconv.FormatInt(in.OwnerID, 10), in.FileName, in.File, s.limits.MaxUploadBytes)
	switch {
	case errors.Is(err, object.ErrTooLarge):
		return storage.Document{}, fieldError("fileSize", fmt.Sprintf("file exceeds %d bytes", s.limits.MaxUploadBytes))
	case errors.Is(err, object.ErrInvalidName):
		return storage.Document{}, fieldError("fileName", "invalid file name")
	case err != nil:
		return storage.Document{}, fmt.Errorf("store upload: %w", err)
	}

	if detected := extract.NormalizeMediaType(obj.MediaType); detected != mediaType {
		s.discard(ctx, obj.Key)
		return storage.Document{}, fieldError("file", fmt.Sprintf("declared type %s does not match content (%s)", mediaType, detected))
	}

	text, err := s.extract(ctx, obj.Path, mediaType)
	if err != nil {
		s.discard(ctx, obj.Key)
		metrics.IncExtractionFailed()
		telemetry.Error("document.extraction_failed", map[string]any{
			"user_id":    in.OwnerID,
			"file_name":  in.FileName,
			"media_type": mediaType,
			"error":      err.Error(),
		})
		return storage.Document{}, err
	}

	doc, err := s.store.CreateDocument(ctx, storage.NewDocument{
		UserID:   in.OwnerID,
		Name:     in.FileName,
		FileType: mediaType,
		FileSize: obj.Size,
		Content:  text,
	})
	if err != nil {
		s.discard(ctx, obj.Key)
		return storage.Document{}, fmt.Errorf("create document: %w", err)
	}

	metrics.IncDocumentsUploaded()
	telemetry.Info("document.uploaded", map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"media_type":  mediaType,
		"file_size":   doc.FileSize,
		"text_runes":  len([]rune(text)),
	})
	return doc, nil
}

func (s *Service) extract(ctx context.Context, path, mediaType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.limits.ExtractionTimeout)
	defer cancel()

	text, err := s.extractor.Extract(ctx, path, mediaType)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedMediaType) {
			return "", unsupported{mediaType: mediaType}
		}
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text found in file", ErrExtractionFailed)
	}
	return text, nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.files.Remove(ctx, key); err != nil {
		telemetry.Error("upload.cleanup_failed", map[string]any{"key": key, "error": err.Error()})
	}
}

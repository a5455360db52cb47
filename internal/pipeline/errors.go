package pipeline

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"study-backend/internal/extract"
	"study-backend/internal/storage"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrExtractionFailed     = errors.New("text extraction failed")
	ErrGenerationFailed     = errors.New("question generation failed")
	ErrNotFound             = storage.ErrNotFound
)

// FieldError carries per-field validation messages. It matches ErrValidation.
type FieldError struct {
	Fields validation.Errors
}

func (e *FieldError) Error() string {
	return "validation failed: " + e.Fields.Error()
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

func fieldError(field, message string) error {
	return &FieldError{Fields: validation.Errors{field: errors.New(message)}}
}

func asFieldError(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return &FieldError{Fields: fields}
	}
	return &FieldError{Fields: validation.Errors{"request": err}}
}

// unsupported wraps both the pipeline and extractor sentinels.
type unsupported struct {
	mediaType string
}

func (e unsupported) Error() string {
	return "unsupported media type: " + e.mediaType
}

func (e unsupported) Is(target error) bool {
	return target == ErrUnsupportedMediaType || target == extract.ErrUnsupportedMediaType
}

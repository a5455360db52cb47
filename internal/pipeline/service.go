// Package pipeline turns uploaded files into stored documents and generates
// study questions from their text.
package pipeline

import (
	"time"

	"golang.org/x/sync/singleflight"

	"study-backend/internal/extract"
	"study-backend/internal/llm"
	"study-backend/internal/shared/storage/object"
	"study-backend/internal/storage"
)

const (
	DefaultMaxUploadBytes    = 10 << 20
	DefaultQuestionCount     = 5
	MaxQuestionCount         = 50
	DefaultExtractionTimeout = 2 * time.Minute
	DefaultGenerationTimeout = 30 * time.Second
)

// Store is the persistence the pipeline needs.
type Store interface {
	storage.DocumentStore
	storage.QuestionStore
}

// Limits bounds uploads and slow collaborators. Zero fields take defaults.
type Limits struct {
	MaxUploadBytes    int64
	ExtractionTimeout time.Duration
	GenerationTimeout time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.MaxUploadBytes <= 0 {
		l.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if l.ExtractionTimeout <= 0 {
		l.ExtractionTimeout = DefaultExtractionTimeout
	}
	if l.GenerationTimeout <= 0 {
		l.GenerationTimeout = DefaultGenerationTimeout
	}
	return l
}

// Service orchestrates upload, extraction, generation and storage.
type Service struct {
	store     Store
	extractor extract.Extractor
	generator llm.Client
	files     object.FileStore
	limits    Limits
	now       func() time.Time

	flight singleflight.Group
}

// New wires a Service from its collaborators.
func New(store Store, extractor extract.Extractor, generator llm.Client, files object.FileStore, limits Limits) *Service {
	if generator == nil {
		generator = llm.PlaceholderClient{}
	}
	return &Service{
		store:     store,
		extractor: extractor,
		generator: generator,
		files:     files,
		limits:    limits.withDefaults(),
		now:       time.Now,
	}
}

// MaxUploadBytes reports the configured upload limit.
func (s *Service) MaxUploadBytes() int64 {
	return s.limits.MaxUploadBytes
}

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"study-backend/internal/shared/telemetry"
	"study-backend/internal/storage"
)

// ListDocuments returns the owner's documents in upload order.
func (s *Service) ListDocuments(ctx context.Context, ownerID int64) ([]storage.Document, error) {
	if ownerID <= 0 {
		return nil, fieldError("userId", "must be a positive integer")
	}
	docs, err := s.store.ListDocumentsByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []storage.Document{}
	}
	return docs, nil
}

// GetDocument returns one document or ErrNotFound.
func (s *Service) GetDocument(ctx context.Context, id int64) (storage.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return storage.Document{}, wrapStore("get document", err)
	}
	return doc, nil
}

// DeleteDocument removes a document and its questions. It reports true when
// the document existed; a missing document is ErrNotFound.
func (s *Service) DeleteDocument(ctx context.Context, id int64) (bool, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return false, wrapStore("get document", err)
	}
	// Questions go first so a failure below never orphans them.
	if err := s.store.DeleteQuestionsByDocument(ctx, id); err != nil {
		return false, fmt.Errorf("delete questions: %w", err)
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return false, wrapStore("delete document", err)
	}
	telemetry.Info("document.deleted", map[string]any{"document_id": id})
	return true, nil
}

func wrapStore(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"study-backend/internal/llm"
	"study-backend/internal/shared/metrics"
	"study-backend/internal/shared/telemetry"
	"study-backend/internal/storage"
)

// NormalizeCount applies the default and the upper bound to a requested count.
func NormalizeCount(requested int) int {
	switch {
	case requested <= 0:
		return DefaultQuestionCount
	case requested > MaxQuestionCount:
		return MaxQuestionCount
	default:
		return requested
	}
}

// GenerateQuestions asks the generator for up to count pairs and replaces the
// document's questions with them. Existing questions are untouched unless a
// usable batch was produced. Concurrent calls for one document and count share
// a result.
func (s *Service) GenerateQuestions(ctx context.Context, documentID int64, count int) ([]storage.Question, error) {
	if documentID <= 0 {
		return nil, fieldError("documentId", "must be a positive integer")
	}
	count = NormalizeCount(count)
	ctx = context.WithoutCancel(ctx)

	key := strconv.FormatInt(documentID, 10) + ":" + strconv.Itoa(count)
	v, err, shared := s.flight.Do(key, func() (any, error) {
		return s.generate(ctx, documentID, count)
	})
	if err != nil {
		return nil, err
	}
	questions := v.([]storage.Question)
	if shared {
		questions = append([]storage.Question(nil), questions...)
	}
	return questions, nil
}

func (s *Service) generate(ctx context.Context, documentID int64, count int) ([]storage.Question, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, wrapStore("get document", err)
	}

	pairs, err := s.callGenerator(ctx, doc, count)
	if err != nil {
		metrics.IncGenerationFailed()
		telemetry.Error("questions.generation_failed", map[string]any{
			"document_id": documentID,
			"count":       count,
			"error":       err.Error(),
		})
		return nil, err
	}

	batch := make([]storage.NewQuestion, 0, len(pairs))
	for _, p := range pairs {
		batch = append(batch, storage.NewQuestion{
			DocumentID: documentID,
			Question:   p.Question,
			Answer:     p.Answer,
		})
	}
	questions, err := s.store.ReplaceQuestions(ctx, documentID, batch)
	if err != nil {
		return nil, wrapStore("replace questions", err)
	}

	metrics.AddQuestionsGenerated(len(questions))
	telemetry.Info("questions.generated", map[string]any{
		"document_id": documentID,
		"requested":   count,
		"count":       len(questions),
	})
	return questions, nil
}

func (s *Service) callGenerator(ctx context.Context, doc storage.Document, count int) ([]llm.QA, error) {
	ctx, cancel := context.WithTimeout(ctx, s.limits.GenerationTimeout)
	defer cancel()

	start := time.Now()
	raw, err := s.generator.GenerateQuestions(ctx, llm.GenerateInput{Text: doc.Content, Count: count})
	metrics.ObserveGenerationDurationMs(float64(time.Since(start).Milliseconds()))
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	parsed, err := llm.ParseQuestions(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	pairs := parsed.Pairs
	if len(pairs) > count {
		pairs = pairs[:count]
	}
	telemetry.Debug("questions.normalized", map[string]any{
		"document_id": doc.ID,
		"shape":       parsed.Shape.String(),
		"pairs":       len(parsed.Pairs),
	})
	return pairs, nil
}

// ListQuestions returns the document's current questions. A document without
// questions yields an empty slice.
func (s *Service) ListQuestions(ctx context.Context, documentID int64) ([]storage.Question, error) {
	if documentID <= 0 {
		return nil, fieldError("documentId", "must be a positive integer")
	}
	questions, err := s.store.ListQuestionsByDocument(ctx, documentID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []storage.Question{}
	}
	return questions, nil
}


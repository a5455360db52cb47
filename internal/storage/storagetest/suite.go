// Package storagetest holds the behavioral suite every storage backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"study-backend/internal/storage"
)

// Factory returns an empty store. The suite closes it when the subtest ends.
type Factory func(t *testing.T) storage.Store

// Run exercises the storage contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"UserUniqueness", testUserUniqueness},
		{"UserLookups", testUserLookups},
		{"DocumentsListedInInsertionOrder", testDocumentsOrder},
		{"DeleteDocumentCascades", testDeleteCascades},
		{"DeleteMissingDocument", testDeleteMissing},
		{"CreateQuestionsBatch", testCreateQuestionsBatch},
		{"ReplaceQuestions", testReplaceQuestions},
		{"DeleteQuestionsByDocumentIdempotent", testDeleteQuestionsIdempotent},
		{"MissingRecords", testMissingRecords},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func testUserUniqueness(t *testing.T, s storage.Store) {
	ctx := context.Background()
	first, err := s.CreateUser(ctx, storage.NewUser{Username: "ana", Email: "ana@example.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("expected store-assigned id")
	}

	_, err = s.CreateUser(ctx, storage.NewUser{Username: "ana", Email: "other@example.com", PasswordHash: "h"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey for username, got %v", err)
	}
	_, err = s.CreateUser(ctx, storage.NewUser{Username: "bea", Email: "ana@example.com", PasswordHash: "h"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey for email, got %v", err)
	}

	// The losing inserts must not have claimed the free half of the pair.
	if _, err := s.GetUserByEmail(ctx, "other@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no user for other@example.com, got %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "bea"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no user bea, got %v", err)
	}
}

func testUserLookups(t *testing.T, s storage.Store) {
	ctx := context.Background()
	created, err := s.CreateUser(ctx, storage.NewUser{Username: "carl", Email: "carl@example.com", PasswordHash: "secret-hash"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	byID, err := s.GetUser(ctx, created.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if byID.Username != "carl" || byID.PasswordHash != "secret-hash" {
		t.Fatalf("unexpected user: %+v", byID)
	}
	byName, err := s.GetUserByUsername(ctx, "carl")
	if err != nil || byName.ID != created.ID {
		t.Fatalf("get by username: %+v %v", byName, err)
	}
	byEmail, err := s.GetUserByEmail(ctx, "carl@example.com")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("get by email: %+v %v", byEmail, err)
	}
}

func testDocumentsOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	names := []string{"a.pdf", "b.png", "c.jpg"}
	for _, name := range names {
		if _, err := s.CreateDocument(ctx, storage.NewDocument{UserID: 7, Name: name, FileType: "application/pdf", FileSize: 10, Content: "text " + name}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if _, err := s.CreateDocument(ctx, storage.NewDocument{UserID: 8, Name: "other.pdf", FileType: "application/pdf", FileSize: 1, Content: "x"}); err != nil {
		t.Fatalf("create other: %v", err)
	}

	docs, err := s.ListDocumentsByUser(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != len(names) {
		t.Fatalf("expected %d docs, got %d", len(names), len(docs))
	}
	for i, doc := range docs {
		if doc.Name != names[i] {
			t.Fatalf("doc %d: expected %s, got %s", i, names[i], doc.Name)
		}
		if doc.UserID != 7 || doc.UploadDate.IsZero() {
			t.Fatalf("unexpected doc: %+v", doc)
		}
	}

	empty, err := s.ListDocumentsByUser(ctx, 999)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no docs, got %d", len(empty))
	}
}

func testDeleteCascades(t *testing.T, s storage.Store) {
	ctx := context.Background()
	doc := mustDocument(t, s, 1)
	created, err := s.CreateQuestions(ctx, newQuestions(doc.ID, 4))
	if err != nil {
		t.Fatalf("create questions: %v", err)
	}

	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetDocument(ctx, doc.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected document gone, got %v", err)
	}
	remaining, err := s.ListQuestionsByDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected 0 questions, got %d", len(remaining))
	}
	for _, q := range created {
		if _, err := s.GetQuestion(ctx, q.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("question %d survived delete: %v", q.ID, err)
		}
	}
	docs, err := s.ListDocumentsByUser(ctx, 1)
	if err != nil {
		t.Fatalf("list docs: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no docs for user, got %d", len(docs))
	}
}

func testDeleteMissing(t *testing.T, s storage.Store) {
	if err := s.DeleteDocument(context.Background(), 424242); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testCreateQuestionsBatch(t *testing.T, s storage.Store) {
	ctx := context.Background()
	doc := mustDocument(t, s, 2)
	start := time.Now().Add(-time.Second)

	created, err := s.CreateQuestions(ctx, newQuestions(doc.ID, 3))
	if err != nil {
		t.Fatalf("create questions: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(created))
	}
	seen := map[int64]bool{}
	for _, q := range created {
		if q.ID == 0 || seen[q.ID] {
			t.Fatalf("expected distinct non-zero ids, got %d", q.ID)
		}
		seen[q.ID] = true
		if q.CreatedAt.Before(start) {
			t.Fatalf("createdAt %s before start %s", q.CreatedAt, start)
		}
		if q.DocumentID != doc.ID {
			t.Fatalf("expected document id %d, got %d", doc.ID, q.DocumentID)
		}
	}

	single, err := s.CreateQuestion(ctx, storage.NewQuestion{DocumentID: doc.ID, Question: "Q?", Answer: "A."})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	got, err := s.GetQuestion(ctx, single.ID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if got.Question != "Q?" || got.Answer != "A." {
		t.Fatalf("unexpected question: %+v", got)
	}

	listed, err := s.ListQuestionsByDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(listed))
	}
	if listed[3].ID != single.ID {
		t.Fatalf("expected insertion order, last id %d got %d", single.ID, listed[3].ID)
	}
}

func testReplaceQuestions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	doc := mustDocument(t, s, 3)
	old, err := s.CreateQuestions(ctx, newQuestions(doc.ID, 3))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	fresh, err := s.ReplaceQuestions(ctx, doc.ID, newQuestions(doc.ID, 5))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(fresh) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(fresh))
	}

	listed, err := s.ListQuestionsByDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 5 {
		t.Fatalf("expected 5 listed, got %d", len(listed))
	}
	oldIDs := map[int64]bool{}
	for _, q := range old {
		oldIDs[q.ID] = true
	}
	for _, q := range listed {
		if oldIDs[q.ID] {
			t.Fatalf("old question id %d reappeared", q.ID)
		}
	}
}

func testDeleteQuestionsIdempotent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	doc := mustDocument(t, s, 4)
	if _, err := s.CreateQuestions(ctx, newQuestions(doc.ID, 2)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.DeleteQuestionsByDocument(ctx, doc.ID); err != nil {
			t.Fatalf("delete pass %d: %v", i, err)
		}
	}
	listed, err := s.ListQuestionsByDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected 0, got %d", len(listed))
	}
	if _, err := s.GetDocument(ctx, doc.ID); err != nil {
		t.Fatalf("document should survive question delete: %v", err)
	}
}

func testMissingRecords(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if _, err := s.GetUser(ctx, 9001); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("user: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("username: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetDocument(ctx, 9001); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("document: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetQuestion(ctx, 9001); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("question: expected ErrNotFound, got %v", err)
	}
	if _, err := s.CreateQuestions(ctx, newQuestions(9001, 2)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("questions for missing document: expected ErrNotFound, got %v", err)
	}
}

func mustDocument(t *testing.T, s storage.Store, userID int64) storage.Document {
	t.Helper()
	doc, err := s.CreateDocument(context.Background(), storage.NewDocument{
		UserID:   userID,
		Name:     "notes.pdf",
		FileType: "application/pdf",
		FileSize: 2048,
		Content:  "Photosynthesis converts light into chemical energy.",
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func newQuestions(documentID int64, n int) []storage.NewQuestion {
	out := make([]storage.NewQuestion, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, storage.NewQuestion{
			DocumentID: documentID,
			Question:   "What is step " + string(rune('A'+i)) + "?",
			Answer:     "Step " + string(rune('A'+i)) + ".",
		})
	}
	return out
}

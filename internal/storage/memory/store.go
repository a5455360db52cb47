// Package memory is an in-process storage backend for local development and tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"study-backend/internal/storage"
)

// Store implements storage.Store with maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	users      map[int64]storage.User
	byUsername map[string]int64
	byEmail    map[string]int64

	documents    map[int64]storage.Document
	userDocs     map[int64][]int64 // userID -> document ids in insertion order
	questions    map[int64]storage.Question
	docQuestions map[int64][]int64 // documentID -> question ids in insertion order

	nextUserID     int64
	nextDocumentID int64
	nextQuestionID int64

	now func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		users:        make(map[int64]storage.User),
		byUsername:   make(map[string]int64),
		byEmail:      make(map[string]int64),
		documents:    make(map[int64]storage.Document),
		userDocs:     make(map[int64][]int64),
		questions:    make(map[int64]storage.Question),
		docQuestions: make(map[int64][]int64),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Close() error { return nil }

func (s *Store) GetUser(ctx context.Context, id int64) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) CreateUser(ctx context.Context, in storage.NewUser) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[in.Username]; taken {
		return storage.User{}, storage.ErrDuplicateKey
	}
	if _, taken := s.byEmail[in.Email]; taken {
		return storage.User{}, storage.ErrDuplicateKey
	}
	s.nextUserID++
	user := storage.User{
		ID:           s.nextUserID,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
	}
	s.users[user.ID] = user
	s.byUsername[user.Username] = user.ID
	s.byEmail[user.Email] = user.ID
	return user, nil
}

func (s *Store) GetDocument(ctx context.Context, id int64) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return storage.Document{}, storage.ErrNotFound
	}
	return doc, nil
}

func (s *Store) ListDocumentsByUser(ctx context.Context, userID int64) ([]storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.userDocs[userID]
	out := make([]storage.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.documents[id])
	}
	return out, nil
}

func (s *Store) CreateDocument(ctx context.Context, in storage.NewDocument) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDocumentID++
	doc := storage.Document{
		ID:         s.nextDocumentID,
		UserID:     in.UserID,
		Name:       in.Name,
		FileType:   in.FileType,
		FileSize:   in.FileSize,
		Content:    in.Content,
		UploadDate: s.now(),
	}
	s.documents[doc.ID] = doc
	s.userDocs[doc.UserID] = append(s.userDocs[doc.UserID], doc.ID)
	return doc, nil
}

// DeleteDocument removes the document and its questions under one write lock.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.dropQuestionsLocked(id)
	delete(s.documents, id)
	s.userDocs[doc.UserID] = removeID(s.userDocs[doc.UserID], id)
	if len(s.userDocs[doc.UserID]) == 0 {
		delete(s.userDocs, doc.UserID)
	}
	return nil
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (storage.Question, error) {
	if err := ctx.Err(); err != nil {
		return storage.Question{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return storage.Question{}, storage.ErrNotFound
	}
	return q, nil
}

func (s *Store) ListQuestionsByDocument(ctx context.Context, documentID int64) ([]storage.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.docQuestions[documentID]
	out := make([]storage.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.questions[id])
	}
	return out, nil
}

func (s *Store) CreateQuestion(ctx context.Context, in storage.NewQuestion) (storage.Question, error) {
	created, err := s.CreateQuestions(ctx, []storage.NewQuestion{in})
	if err != nil {
		return storage.Question{}, err
	}
	return created[0], nil
}

func (s *Store) CreateQuestions(ctx context.Context, in []storage.NewQuestion) ([]storage.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, nq := range in {
		if _, ok := s.documents[nq.DocumentID]; !ok {
			return nil, storage.ErrNotFound
		}
	}
	return s.insertQuestionsLocked(in), nil
}

func (s *Store) DeleteQuestionsByDocument(ctx context.Context, documentID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropQuestionsLocked(documentID)
	return nil
}

func (s *Store) ReplaceQuestions(ctx context.Context, documentID int64, in []storage.NewQuestion) ([]storage.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[documentID]; !ok {
		return nil, storage.ErrNotFound
	}
	s.dropQuestionsLocked(documentID)
	return s.insertQuestionsLocked(in), nil
}

func (s *Store) insertQuestionsLocked(in []storage.NewQuestion) []storage.Question {
	createdAt := s.now()
	out := make([]storage.Question, 0, len(in))
	for _, nq := range in {
		s.nextQuestionID++
		q := storage.Question{
			ID:         s.nextQuestionID,
			DocumentID: nq.DocumentID,
			Question:   nq.Question,
			Answer:     nq.Answer,
			CreatedAt:  createdAt,
		}
		s.questions[q.ID] = q
		s.docQuestions[q.DocumentID] = append(s.docQuestions[q.DocumentID], q.ID)
		out = append(out, q)
	}
	return out
}

func (s *Store) dropQuestionsLocked(documentID int64) {
	for _, qid := range s.docQuestions[documentID] {
		delete(s.questions, qid)
	}
	delete(s.docQuestions, documentID)
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

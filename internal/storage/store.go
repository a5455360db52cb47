// Package storage defines the persistence contract shared by every backend.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when a username or email is already taken.
	ErrDuplicateKey = errors.New("duplicate key")
)

// UserStore persists accounts. Username and email are unique.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, in NewUser) (User, error)
}

// DocumentStore persists documents. DeleteDocument removes the document's
// questions before, or atomically with, the document itself.
type DocumentStore interface {
	GetDocument(ctx context.Context, id int64) (Document, error)
	ListDocumentsByUser(ctx context.Context, userID int64) ([]Document, error)
	CreateDocument(ctx context.Context, in NewDocument) (Document, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// QuestionStore persists generated questions. Batch writes are all-or-nothing.
type QuestionStore interface {
	GetQuestion(ctx context.Context, id int64) (Question, error)
	ListQuestionsByDocument(ctx context.Context, documentID int64) ([]Question, error)
	CreateQuestion(ctx context.Context, in NewQuestion) (Question, error)
	CreateQuestions(ctx context.Context, in []NewQuestion) ([]Question, error)
	DeleteQuestionsByDocument(ctx context.Context, documentID int64) error
	// ReplaceQuestions deletes every question of documentID and inserts in as one unit.
	ReplaceQuestions(ctx context.Context, documentID int64, in []NewQuestion) ([]Question, error)
}

// Store is the full persistence surface used by the pipeline.
type Store interface {
	UserStore
	DocumentStore
	QuestionStore
	// Name identifies the backend in health output and logs.
	Name() string
	Close() error
}

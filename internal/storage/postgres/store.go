// Package postgres implements storage.Store on database/sql with the pgx driver.
// The schema lives in internal/shared/storage/db/migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"study-backend/internal/storage"
)

// Store is a Postgres-backed storage.Store.
type Store struct {
	DB *sql.DB

	now func() time.Time
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Name() string { return "postgres" }

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) GetUser(ctx context.Context, id int64) (storage.User, error) {
	const query = `
SELECT id, username, email, password_hash
FROM users
WHERE id = $1`
	return s.scanUser(s.DB.QueryRowContext(ctx, query, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (storage.User, error) {
	const query = `
SELECT id, username, email, password_hash
FROM users
WHERE username = $1`
	return s.scanUser(s.DB.QueryRowContext(ctx, query, username))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	const query = `
SELECT id, username, email, password_hash
FROM users
WHERE email = $1`
	return s.scanUser(s.DB.QueryRowContext(ctx, query, email))
}

func (s *Store) CreateUser(ctx context.Context, in storage.NewUser) (storage.User, error) {
	const query = `
INSERT INTO users (username, email, password_hash)
VALUES ($1, $2, $3)
RETURNING id`
	user := storage.User{Username: in.Username, Email: in.Email, PasswordHash: in.PasswordHash}
	err := s.DB.QueryRowContext(ctx, query, in.Username, in.Email, in.PasswordHash).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.User{}, storage.ErrDuplicateKey
		}
		return storage.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Store) scanUser(row *sql.Row) (storage.User, error) {
	var user storage.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, err
	}
	return user, nil
}

func (s *Store) GetDocument(ctx context.Context, id int64) (storage.Document, error) {
	const query = `
SELECT id, user_id, name, file_type, file_size, content, upload_date
FROM documents
WHERE id = $1`
	var doc storage.Document
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Name,
		&doc.FileType,
		&doc.FileSize,
		&doc.Content,
		&doc.UploadDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Document{}, storage.ErrNotFound
		}
		return storage.Document{}, err
	}
	return doc, nil
}

func (s *Store) ListDocumentsByUser(ctx context.Context, userID int64) ([]storage.Document, error) {
	const query = `
SELECT id, user_id, name, file_type, file_size, content, upload_date
FROM documents
WHERE user_id = $1
ORDER BY id ASC`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.Document{}
	for rows.Next() {
		var doc storage.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.UserID,
			&doc.Name,
			&doc.FileType,
			&doc.FileSize,
			&doc.Content,
			&doc.UploadDate,
		); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) CreateDocument(ctx context.Context, in storage.NewDocument) (storage.Document, error) {
	const query = `
INSERT INTO documents (user_id, name, file_type, file_size, content, upload_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	doc := storage.Document{
		UserID:     in.UserID,
		Name:       in.Name,
		FileType:   in.FileType,
		FileSize:   in.FileSize,
		Content:    in.Content,
		UploadDate: s.now(),
	}
	err := s.DB.QueryRowContext(ctx, query,
		doc.UserID,
		doc.Name,
		doc.FileType,
		doc.FileSize,
		doc.Content,
		doc.UploadDate,
	).Scan(&doc.ID)
	if err != nil {
		return storage.Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// DeleteDocument removes questions then the document in one transaction.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE document_id = $1`, id); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (storage.Question, error) {
	const query = `
SELECT id, document_id, question, answer, created_at
FROM questions
WHERE id = $1`
	var q storage.Question
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&q.ID, &q.DocumentID, &q.Question, &q.Answer, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Question{}, storage.ErrNotFound
		}
		return storage.Question{}, err
	}
	return q, nil
}

func (s *Store) ListQuestionsByDocument(ctx context.Context, documentID int64) ([]storage.Question, error) {
	const query = `
SELECT id, document_id, question, answer, created_at
FROM questions
WHERE document_id = $1
ORDER BY id ASC`
	rows, err := s.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.Question{}
	for rows.Next() {
		var q storage.Question
		if err := rows.Scan(&q.ID, &q.DocumentID, &q.Question, &q.Answer, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) CreateQuestion(ctx context.Context, in storage.NewQuestion) (storage.Question, error) {
	created, err := s.CreateQuestions(ctx, []storage.NewQuestion{in})
	if err != nil {
		return storage.Question{}, err
	}
	return created[0], nil
}

func (s *Store) CreateQuestions(ctx context.Context, in []storage.NewQuestion) ([]storage.Question, error) {
	var out []storage.Question
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.insertQuestions(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteQuestionsByDocument(ctx context.Context, documentID int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM questions WHERE document_id = $1`, documentID)
	return err
}

func (s *Store) ReplaceQuestions(ctx context.Context, documentID int64, in []storage.NewQuestion) ([]storage.Question, error) {
	var out []storage.Question
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		var err error
		out, err = s.insertQuestions(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) insertQuestions(ctx context.Context, tx *sql.Tx, in []storage.NewQuestion) ([]storage.Question, error) {
	const query = `
INSERT INTO questions (document_id, question, answer, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id`
	createdAt := s.now()
	out := make([]storage.Question, 0, len(in))
	for _, nq := range in {
		q := storage.Question{
			DocumentID: nq.DocumentID,
			Question:   nq.Question,
			Answer:     nq.Answer,
			CreatedAt:  createdAt,
		}
		if err := tx.QueryRowContext(ctx, query, q.DocumentID, q.Question, q.Answer, q.CreatedAt).Scan(&q.ID); err != nil {
			if isForeignKeyViolation(err) {
				return nil, storage.ErrNotFound
			}
			return nil, fmt.Errorf("insert question: %w", err)
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

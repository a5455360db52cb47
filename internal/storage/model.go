package storage

import "time"

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// NewUser is the insert shape for User.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// Document is an uploaded file together with its extracted text.
type Document struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Name       string    `json:"name"`
	FileType   string    `json:"fileType"`
	FileSize   int64     `json:"fileSize"`
	Content    string    `json:"content"`
	UploadDate time.Time `json:"uploadDate"`
}

// NewDocument is the insert shape for Document.
type NewDocument struct {
	UserID   int64
	Name     string
	FileType string
	FileSize int64
	Content  string
}

// Question is one generated question/answer pair owned by a Document.
type Question struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"documentId"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewQuestion is the insert shape for Question.
type NewQuestion struct {
	DocumentID int64
	Question   string
	Answer     string
}

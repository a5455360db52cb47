package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/crypto/bcrypt"

	"study-backend/internal/storage"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("invalid username or password")
	ErrDuplicateKey = storage.ErrDuplicateKey
	ErrNotFound     = storage.ErrNotFound
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

// DuplicateError names the field that collided. It matches ErrDuplicateKey.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return e.Field + " already exists"
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateKey
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RegisterInput is the registration request body.
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (in RegisterInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.RuneLength(3, 64)),
		validation.Field(&in.Password, validation.Required, validation.RuneLength(6, 128)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), validation.Match(emailPattern).Error("must be a valid email address")),
	)
}

// LoginInput is the login request body.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in LoginInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

type Service struct {
	Store storage.UserStore
	cost  int
	dummy []byte
}

func NewService(store storage.UserStore) *Service {
	return newService(store, bcrypt.DefaultCost)
}

func newService(store storage.UserStore, cost int) *Service {
	// Compared against when the username is unknown so both failures cost the same.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return &Service{Store: store, cost: cost, dummy: dummy}
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (storage.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.validate(); err != nil {
		return storage.User{}, toFieldError(err)
	}

	if _, err := s.Store.GetUserByUsername(ctx, in.Username); err == nil {
		return storage.User{}, &DuplicateError{Field: "username"}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, fmt.Errorf("lookup username: %w", err)
	}
	if _, err := s.Store.GetUserByEmail(ctx, in.Email); err == nil {
		return storage.User{}, &DuplicateError{Field: "email"}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return storage.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.Store.CreateUser(ctx, storage.NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return storage.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials. Unknown users and wrong passwords both return
// ErrUnauthorized.
func (s *Service) Login(ctx context.Context, in LoginInput) (storage.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := in.validate(); err != nil {
		return storage.User{}, toFieldError(err)
	}

	user, err := s.Store.GetUserByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(in.Password))
			return storage.User{}, ErrUnauthorized
		}
		return storage.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return storage.User{}, ErrUnauthorized
	}
	return user, nil
}

func toFieldError(err error) error {
	var fields validation.Errors
	if errors.As(err, &fields) {
		return &FieldError{Fields: fields}
	}
	return &FieldError{Fields: validation.Errors{"request": err}}
}

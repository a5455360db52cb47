package users

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"study-backend/internal/storage"
	"study-backend/internal/storage/memory"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.New()
	return newService(store, bcrypt.MinCost), store
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, store := newTestService()
	user, err := svc.Register(context.Background(), RegisterInput{Username: "ana", Password: "secret1", Email: "Ana@Example.com"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == 0 || user.Email != "ana@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	stored, err := store.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stored.PasswordHash == "secret1" || bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")) != nil {
		t.Fatalf("password must be stored as a bcrypt hash")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Username: "ana", Password: "secret1", Email: "ana@example.com"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cases := map[string]RegisterInput{
		"username": {Username: "ana", Password: "secret1", Email: "other@example.com"},
		"email":    {Username: "bob", Password: "secret1", Email: "ana@example.com"},
	}
	for field, in := range cases {
		_, err := svc.Register(ctx, in)
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("%s: expected ErrDuplicateKey, got %v", field, err)
		}
		var dup *DuplicateError
		if !errors.As(err, &dup) || dup.Field != field {
			t.Fatalf("%s: expected duplicate field, got %v", field, err)
		}
	}
	if _, err := store.GetUserByUsername(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("no second row expected, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	cases := []struct {
		in    RegisterInput
		field string
	}{
		{RegisterInput{Username: "ab", Password: "secret1", Email: "a@b.co"}, "username"},
		{RegisterInput{Username: "ana", Password: "123", Email: "a@b.co"}, "password"},
		{RegisterInput{Username: "ana", Password: "secret1", Email: "not-an-email"}, "email"},
		{RegisterInput{Username: "ana", Password: "secret1"}, "email"},
	}
	for _, tc := range cases {
		_, err := svc.Register(context.Background(), tc.in)
		var fe *FieldError
		if !errors.Is(err, ErrValidation) || !errors.As(err, &fe) {
			t.Fatalf("expected validation error for %+v, got %v", tc.in, err)
		}
		if _, ok := fe.Fields[tc.field]; !ok {
			t.Fatalf("expected field %s in %v", tc.field, fe.Fields)
		}
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	registered, err := svc.Register(ctx, RegisterInput{Username: "ana", Password: "secret1", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := svc.Login(ctx, LoginInput{Username: "ana", Password: "secret1"})
	if err != nil || user.ID != registered.ID {
		t.Fatalf("Login: %+v %v", user, err)
	}
	if _, err := svc.Login(ctx, LoginInput{Username: "ana", Password: "wrong-pass"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bad password, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Username: "nobody", Password: "secret1"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Username: "ana"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing password, got %v", err)
	}
}

package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/walletdesk/walletdesk/internal/walletapi"
	"golang.org/x/crypto/bcrypt"
)

func TestProvisionHashesPassword(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)

	ctx := context.Background()
	user, err := svc.Provision(ctx, ProvisionInput{Username: "ada", FullName: "Ada Lovelace", Email: "ada@example.com", Password: "correct-horse", UsePhantomPay: true})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if user.ID == 0 || !user.UsePhantomPay {
		t.Fatalf("unexpected user %+v", user)
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte("correct-horse")); err != nil {
		t.Fatalf("password hash does not verify: %v", err)
	}

	found, err := svc.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found.Username != "ada" || found.FullName != "Ada Lovelace" {
		t.Fatalf("unexpected user %+v", found)
	}
}

func TestProvisionRejectsInvalidInput(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	cases := []ProvisionInput{
		{Username: "", Password: "long-enough"},
		{Username: "bob", Password: "short"},
		{Username: "bob", Password: "long-enough", Email: "not-an-email"},
	}
	for i, in := range cases {
		if _, err := svc.Provision(ctx, in); !errors.Is(err, walletapi.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestProvisionDuplicateUsername(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Provision(ctx, ProvisionInput{Username: "bob", Password: "long-enough"}); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if _, err := svc.Provision(ctx, ProvisionInput{Username: "bob", Password: "long-enough"}); !errors.Is(err, walletapi.ErrValidation) {
		t.Fatalf("expected duplicate username to be rejected, got %v", err)
	}
}

func TestGetUnknownUser(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	if _, err := svc.Get(context.Background(), 99); !errors.Is(err, walletapi.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

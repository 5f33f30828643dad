package service

import (
	"context"
	"errors"
	"testing"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/atlasops/atlas-itsm/internal/itsm/testutil"
	"golang.org/x/crypto/bcrypt"
)

func setupUserTest(t *testing.T) (*UserService, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewUserService(repos.User, repos.AuditLog, db)

	testutil.SeedTestUser(t, db, "admin-001", "Admin", "admin@test.local", entity.RoleAdmin)

	return svc, repos
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc, _ := setupUserTest(t)

	user, err := svc.Create(context.Background(), "admin-001", &CreateUserInput{
		Username: "jdoe",
		Email:    "jdoe@test.local",
		Password: "s3cret-pass",
		Name:     "J. Doe",
		Role:     entity.RoleEndUser,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Status != entity.UserStatusActive {
		t.Fatalf("admin-created user should be ACTIVE, got %s", user.Status)
	}
	if user.PasswordHash == "s3cret-pass" {
		t.Fatal("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, _ := setupUserTest(t)
	ctx := context.Background()

	in := &CreateUserInput{Username: "u1", Email: "dup@test.local", Password: "password1"}
	if _, err := svc.Create(ctx, "admin-001", in); err != nil {
		t.Fatalf("first create: %v", err)
	}

	in2 := &CreateUserInput{Username: "u2", Email: "dup@test.local", Password: "password2"}
	if _, err := svc.Create(ctx, "admin-001", in2); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation on duplicate email, got %v", err)
	}
}

func TestCreateUserUnknownRole(t *testing.T) {
	svc, _ := setupUserTest(t)

	_, err := svc.Create(context.Background(), "admin-001", &CreateUserInput{
		Username: "u3", Email: "u3@test.local", Password: "password3", Role: "SUPERUSER",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown role, got %v", err)
	}
}

func TestDeactivateIsSoftDelete(t *testing.T) {
	svc, repos := setupUserTest(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, "admin-001", &CreateUserInput{
		Username: "leaver", Email: "leaver@test.local", Password: "password4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Deactivate(ctx, user.ID, "admin-001"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// The record survives with DISABLED status
	reloaded, err := repos.User.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("deactivated user must remain readable: %v", err)
	}
	if reloaded.Status != entity.UserStatusDisabled {
		t.Fatalf("expected DISABLED, got %s", reloaded.Status)
	}

	// Reactivation works
	activated, err := svc.Activate(ctx, user.ID, "admin-001")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if activated.Status != entity.UserStatusActive {
		t.Fatalf("expected ACTIVE, got %s", activated.Status)
	}

	// Each mutation commits exactly one audit row with it: create, deactivate, activate
	count, err := repos.AuditLog.CountByEntity(ctx, "User", user.ID)
	if err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 audit rows, got %d", count)
	}
}

func TestDeactivateSelfIsRefused(t *testing.T) {
	svc, _ := setupUserTest(t)

	if err := svc.Deactivate(context.Background(), "admin-001", "admin-001"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation on self-deactivation, got %v", err)
	}
}

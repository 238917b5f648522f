package services

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/adswadi/agency-site-backend/database"
	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/models"
	"golang.org/x/crypto/bcrypt"
)

func setupCredentialStore(t *testing.T) (*CredentialStore, *database.MemoryUserRepo) {
	t.Helper()
	repo := database.NewMemoryUserRepo()
	return NewCredentialStore(repo, bcrypt.MinCost), repo
}

func TestHashSecret(t *testing.T) {
	store, _ := setupCredentialStore(t)

	hash, err := store.HashSecret("admin123")
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	if hash == "admin123" {
		t.Fatal("HashSecret() returned the plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("admin123")) != nil {
		t.Error("hash does not verify against the original password")
	}

	again, err := store.HashSecret(hash)
	if err != nil {
		t.Fatalf("HashSecret(hash) error = %v", err)
	}
	if again == hash {
		t.Error("HashSecret() returned a hash-shaped input unchanged")
	}
	if bcrypt.CompareHashAndPassword([]byte(again), []byte(hash)) != nil {
		t.Error("hash of a hash-shaped input does not verify against that input")
	}
}

func TestCreateUser_HashShapedPassword(t *testing.T) {
	store, repo := setupCredentialStore(t)
	ctx := context.Background()
	password := "$2a$10$" + strings.Repeat("a", 53)

	if _, err := store.CreateUser(ctx, NewUser{Username: "editor", Password: password}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	stored, err := repo.FindByUsername(ctx, "editor")
	if err != nil {
		t.Fatalf("FindByUsername() error = %v", err)
	}
	if stored.Password == password {
		t.Fatal("password stored as plaintext")
	}
	if _, err := store.Verify(ctx, "editor", password); err != nil {
		t.Errorf("Verify() with the password just set error = %v", err)
	}

	other := "$2b$12$" + strings.Repeat("b", 53)
	if err := store.ChangePassword(ctx, stored.ID, other); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	stored, _ = repo.FindByUsername(ctx, "editor")
	if stored.Password == other {
		t.Fatal("ChangePassword() stored plaintext")
	}
	if _, err := store.Verify(ctx, "editor", other); err != nil {
		t.Errorf("Verify() after ChangePassword() error = %v", err)
	}
}

func TestSetHashedPassword(t *testing.T) {
	store, repo := setupCredentialStore(t)
	ctx := context.Background()
	user, err := store.CreateUser(ctx, NewUser{Username: "editor", Password: "secret1"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("imported1"), bcrypt.MinCost)
	if err := store.SetHashedPassword(ctx, user.ID, string(hash)); err != nil {
		t.Fatalf("SetHashedPassword() error = %v", err)
	}
	stored, _ := repo.FindByID(ctx, user.ID)
	if stored.Password != string(hash) {
		t.Error("SetHashedPassword() did not store the hash verbatim")
	}
	if _, err := store.Verify(ctx, "editor", "imported1"); err != nil {
		t.Errorf("Verify() with imported hash error = %v", err)
	}

	if err := store.SetHashedPassword(ctx, user.ID, "plain-text"); !errs.IsInvalidFieldError(err) {
		t.Errorf("SetHashedPassword(plaintext) error = %v, want invalid field", err)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name      string
		input     NewUser
		wantField string
	}{
		{"missing username", NewUser{Password: "secret1"}, "username"},
		{"short username", NewUser{Username: "ab", Password: "secret1"}, "username"},
		{"long username", NewUser{Username: string(make([]byte, 51)), Password: "secret1"}, "username"},
		{"bad email", NewUser{Username: "editor", Email: "not-an-email", Password: "secret1"}, "email"},
		{"missing password", NewUser{Username: "editor"}, "password"},
		{"short password", NewUser{Username: "editor", Password: "12345"}, "password"},
		{"unknown role", NewUser{Username: "editor", Password: "secret1", Role: "owner"}, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := setupCredentialStore(t)
			_, err := store.CreateUser(context.Background(), tt.input)
			if err == nil {
				t.Fatal("CreateUser() expected error, got nil")
			}
			apiErr, ok := err.(*errs.ApiErr)
			if !ok {
				t.Fatalf("CreateUser() error type = %T, want *errs.ApiErr", err)
			}
			if apiErr.StatusCode != http.StatusBadRequest {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusBadRequest)
			}
			if apiErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", apiErr.Field, tt.wantField)
			}
		})
	}
}

func TestCreateUser_HashesAndDefaults(t *testing.T) {
	store, repo := setupCredentialStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, NewUser{Username: "editor", Email: "editor@agency.local", Password: "secret1"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Errorf("Role = %q, want %q", user.Role, models.RoleAdmin)
	}
	if !user.IsActive {
		t.Error("new user should be active")
	}

	stored, err := repo.FindByUsername(ctx, "editor")
	if err != nil {
		t.Fatalf("FindByUsername() error = %v", err)
	}
	if stored.Password == "secret1" {
		t.Fatal("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("secret1")) != nil {
		t.Error("stored hash does not match the password")
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	store, _ := setupCredentialStore(t)
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, NewUser{Username: "editor", Email: "editor@agency.local", Password: "secret1"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	tests := []struct {
		name  string
		input NewUser
	}{
		{"same username", NewUser{Username: "editor", Password: "secret1"}},
		{"same email", NewUser{Username: "other", Email: "editor@agency.local", Password: "secret1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateUser(ctx, tt.input)
			if !errs.IsAlreadyExists(err) {
				t.Fatalf("CreateUser() error = %v, want already exists", err)
			}
			if got := errs.StatusCode(err); got != http.StatusConflict {
				t.Errorf("StatusCode = %d, want %d", got, http.StatusConflict)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	store, repo := setupCredentialStore(t)
	ctx := context.Background()
	fixed := time.Date(2025, 8, 30, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	if _, err := store.CreateUser(ctx, NewUser{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	user, err := store.Verify(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user.Username != "admin" {
		t.Errorf("Username = %q, want admin", user.Username)
	}

	stored, _ := repo.FindByUsername(ctx, "admin")
	if stored.LastLogin == nil || !stored.LastLogin.Equal(fixed) {
		t.Errorf("LastLogin = %v, want %v", stored.LastLogin, fixed)
	}
}

func TestVerify_FailuresAreIndistinguishable(t *testing.T) {
	store, repo := setupCredentialStore(t)
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, NewUser{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := store.CreateUser(ctx, NewUser{Username: "retired", Password: "retired123"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	retired, _ := repo.FindByUsername(ctx, "retired")
	retired.IsActive = false
	if err := repo.Update(ctx, retired); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "wrong"},
		{"unknown user", "ghost", "admin123"},
		{"inactive user", "retired", "retired123"},
		{"empty password", "admin", ""},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Verify(ctx, tt.username, tt.password)
			if !errs.IsInvalidCredentialsError(err) {
				t.Fatalf("Verify() error = %v, want invalid credentials", err)
			}
			if got := errs.StatusCode(err); got != http.StatusUnauthorized {
				t.Errorf("StatusCode = %d, want %d", got, http.StatusUnauthorized)
			}
			messages = append(messages, err.Error())
		})
	}

	for _, msg := range messages[1:] {
		if msg != messages[0] {
			t.Errorf("error messages differ: %q vs %q", msg, messages[0])
		}
	}
}

func TestChangePassword(t *testing.T) {
	store, _ := setupCredentialStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, NewUser{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if err := store.ChangePassword(ctx, user.ID, "short"); !errs.IsInvalidFieldError(err) {
		t.Errorf("ChangePassword(short) error = %v, want invalid field", err)
	}
	if err := store.ChangePassword(ctx, user.ID, "new-secret"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := store.Verify(ctx, "admin", "admin123"); !errs.IsInvalidCredentialsError(err) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, err := store.Verify(ctx, "admin", "new-secret"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if err := store.ChangePassword(ctx, 999, "new-secret"); !errs.IsNotFound(err) {
		t.Errorf("ChangePassword(missing user) error = %v, want not found", err)
	}
}

func TestEnsureDefaultAdmin(t *testing.T) {
	store, repo := setupCredentialStore(t)
	ctx := context.Background()

	created, err := store.EnsureDefaultAdmin(ctx, DefaultAdminUsername, DefaultAdminEmail, DefaultAdminPassword)
	if err != nil {
		t.Fatalf("EnsureDefaultAdmin() error = %v", err)
	}
	if !created {
		t.Error("first call should create the admin")
	}

	created, err = store.EnsureDefaultAdmin(ctx, DefaultAdminUsername, DefaultAdminEmail, "different-password")
	if err != nil {
		t.Fatalf("EnsureDefaultAdmin() second call error = %v", err)
	}
	if created {
		t.Error("second call should not create another admin")
	}

	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}
	if _, err := store.Verify(ctx, DefaultAdminUsername, DefaultAdminPassword); err != nil {
		t.Errorf("default admin cannot log in: %v", err)
	}
}

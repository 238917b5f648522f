package services

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adswadi/agency-site-backend/database"
	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
	maxPasswordLen = 255
)

// dummyHash is compared against when the username does not exist so a failed
// lookup costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("agency-site-dummy-password"), bcrypt.DefaultCost)

// NewUser is the input for CredentialStore.CreateUser.
type NewUser struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// CredentialStore owns user secrets: hashing, verification and account creation.
type CredentialStore struct {
	users  database.UserRepository
	cost   int
	now    func() time.Time
	logger zerolog.Logger
}

func NewCredentialStore(users database.UserRepository, cost int) *CredentialStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialStore{
		users:  users,
		cost:   cost,
		now:    time.Now,
		logger: log.With().Str("component", "credentialStore").Logger(),
	}
}

// HashSecret returns a bcrypt hash of plaintext. Every input is hashed,
// including strings that look like a hash.
func (s *CredentialStore) HashSecret(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func validatePassword(plaintext string) error {
	if plaintext == "" {
		return errs.NewMissingRequiredFieldError("password")
	}
	if n := utf8.RuneCountInString(plaintext); n < minPasswordLen || n > maxPasswordLen {
		return errs.NewInvalidFieldError("password", "must be between 6 and 255 characters")
	}
	return nil
}

func validateNewUser(in NewUser) (*string, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, errs.NewMissingRequiredFieldError("username")
	}
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return nil, errs.NewInvalidFieldError("username", "must be between 3 and 50 characters")
	}

	var email *string
	if e := strings.TrimSpace(in.Email); e != "" {
		addr, err := mail.ParseAddress(e)
		if err != nil || addr.Address != e {
			return nil, errs.NewInvalidFieldError("email", "must be a valid email address")
		}
		email = &e
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.Role != "" && !in.Role.Valid() {
		return nil, errs.NewInvalidFieldError("role", "must be one of admin, editor, author")
	}
	return email, nil
}

// CreateUser validates and stores a new account with a hashed password.
func (s *CredentialStore) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	email, err := validateNewUser(in)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, errs.NewDatabaseError("check user", "user", err)
	}
	if exists {
		return nil, errs.NewAlreadyExists("user")
	}

	hash, err := s.HashSecret(in.Password)
	if err != nil {
		return nil, errs.NewInternalErrorWithCause("failed to hash password", err)
	}

	role := in.Role
	if role == "" {
		role = models.RoleAdmin
	}
	user := &models.User{
		Username: username,
		Email:    email,
		Password: hash,
		Role:     role,
		IsActive: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, errs.NewDatabaseError("create user", "user", err)
	}
	return user, nil
}

// ChangePassword replaces the stored hash for user id.
func (s *CredentialStore) ChangePassword(ctx context.Context, id uint, plaintext string) error {
	if err := validatePassword(plaintext); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return errs.NewDatabaseError("find user", "user", err)
	}
	hash, err := s.HashSecret(plaintext)
	if err != nil {
		return errs.NewInternalErrorWithCause("failed to hash password", err)
	}
	user.Password = hash
	if err := s.users.Update(ctx, user); err != nil {
		return errs.NewDatabaseError("update user", "user", err)
	}
	return nil
}

// SetHashedPassword stores a hash produced elsewhere, such as one carried
// over from another system. The value must parse as a bcrypt hash.
func (s *CredentialStore) SetHashedPassword(ctx context.Context, id uint, hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return errs.NewInvalidFieldError("password", "must be a bcrypt hash")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return errs.NewDatabaseError("find user", "user", err)
	}
	user.Password = hash
	if err := s.users.Update(ctx, user); err != nil {
		return errs.NewDatabaseError("update user", "user", err)
	}
	return nil
}

// Verify checks a username/password pair. Unknown, inactive and mismatched
// accounts are indistinguishable to the caller.
func (s *CredentialStore) Verify(ctx context.Context, username, plaintext string) (*models.User, error) {
	user, err := s.users.FindActiveByUsername(ctx, username)
	if err != nil {
		if !errs.IsNotFound(err) {
			return nil, errs.NewDatabaseError("find user", "user", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
		return nil, errs.NewInvalidCredentialsError()
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(plaintext)) != nil {
		return nil, errs.NewInvalidCredentialsError()
	}

	now := s.now()
	user.LastLogin = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, errs.NewDatabaseError("record login", "user", err)
	}
	return user, nil
}

// EnsureDefaultAdmin creates the bootstrap account when no user holds username.
// It reports whether an account was created.
func (s *CredentialStore) EnsureDefaultAdmin(ctx context.Context, username, email, password string) (bool, error) {
	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errs.IsNotFound(err) {
		return false, errs.NewDatabaseError("find user", "user", err)
	}

	if _, err := s.CreateUser(ctx, NewUser{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	}); err != nil {
		return false, err
	}
	s.logger.Info().Str("username", username).Msg("default admin user created")
	return true, nil
}

// Package auth is the identity provider: account registration, password
// login and the cookie session that carries the signed-in user.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"kanban/internal/models"
	"kanban/internal/storage/sqlite"
	"kanban/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("a user with that username already exists")
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Registration is the sign-up form.
type Registration struct {
	Username        string `form:"username" json:"username" validate:"required,max=150,username"`
	Password        string `form:"password" json:"password" validate:"required,min=8,max=128"`
	PasswordConfirm string `form:"password_confirm" json:"password_confirm" validate:"required,eqfield=Password"`
}

// Service registers and authenticates users.
type Service struct {
	users    UserStore
	hasher   *Hasher
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService builds the identity provider. A nil hasher uses the default
// Argon2id parameters.
func NewService(users UserStore, hasher *Hasher, logger *slog.Logger) *Service {
	if hasher == nil {
		hasher = NewHasher(DefaultArgon2Params())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, hasher: hasher, validate: validation.New(), logger: logger}
}

// Register validates the form and creates the account. Form problems are
// returned as validator.ValidationErrors.
func (s *Service) Register(ctx context.Context, r Registration) (models.User, error) {
	r.Username = strings.TrimSpace(r.Username)
	if err := s.validate.Struct(r); err != nil {
		return models.User{}, err
	}
	hash, err := s.hasher.Hash(r.Password)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.users.CreateUser(ctx, r.Username, hash)
	if errors.Is(err, sqlite.ErrConflict) {
		return models.User{}, ErrUsernameTaken
	}
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID), slog.String("username", user.Username))
	return user, nil
}

// Authenticate checks a username/password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, sqlite.ErrNotFound) {
		// Burn a hash so unknown usernames cost the same as wrong passwords.
		_, _ = s.hasher.Hash(password)
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// User loads the account behind a session.
func (s *Service) User(ctx context.Context, id int64) (models.User, error) {
	return s.users.GetUser(ctx, id)
}

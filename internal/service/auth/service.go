package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/pkg/config"
	"github.com/elijificent/experimentation/pkg/crypto"
	jwtpkg "github.com/elijificent/experimentation/pkg/jwt"
)

var (
	// ErrUsernameTaken is returned when the requested username already exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidUsername is returned when the username fails validation.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrWeakPassword is returned when the password fails validation.
	ErrWeakPassword = errors.New("password does not meet requirements")
	// ErrInvalidCredentials is returned when a login attempt fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	usernameMinLen = 5
	usernameMaxLen = 50
	passwordMinLen = 8
)

// Characters that are never allowed inside a username.
const forbiddenUsernameChars = "@#%{}"

// Passwords rejected outright regardless of length.
var denylistedPasswords = map[string]struct{}{
	"password": {},
	"123456":   {},
}

// Service handles account registration and session workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// CreateUser registers a new account after validating the credentials.
func (s Service) CreateUser(ctx context.Context, username, password string) (*domain.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(password, salt)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, repository.Fields{
		"username":        username,
		"hashed_password": hash,
		"random_salt":     salt,
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Lost a race with a concurrent signup for the same identity.
		return nil, ErrUsernameTaken
	}
	s.logger.Info("user registered", "user_id", user.ID, "username", username)
	return user, nil
}

// GetUser fetches a user by identity.
func (s Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.Get(ctx, id)
}

// GetUserByUsername fetches a user by username.
func (s Service) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// ValidateAuth checks a username and password pair without issuing tokens.
func (s Service) ValidateAuth(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password, user.Salt); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateUsername renames an account. The new name must pass the same
// validation as signup and must not collide with an existing account.
func (s Service) UpdateUsername(ctx context.Context, id, username string) (*domain.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if existing, err := s.users.GetByUsername(ctx, username); err == nil {
		if existing.ID == id {
			return existing, nil
		}
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	updated, err := s.users.Update(ctx, id, repository.Fields{"username": username})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return s.users.Get(ctx, id)
	}
	s.logger.Info("username updated", "user_id", id, "username", username)
	return updated, nil
}

// Login authenticates a user and returns a signed token pair.
func (s Service) Login(ctx context.Context, username, password string) (*domain.User, TokenPair, error) {
	user, err := s.ValidateAuth(ctx, username, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	tokens, err := s.issueTokens(user.ID, user.Username)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, tokens, nil
}

// Authorize validates a bearer token and returns the associated user and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, errors.New("token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s Service) issueTokens(userID, username string) (TokenPair, error) {
	access, err := jwtpkg.GenerateToken(userID, username, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := jwtpkg.GenerateToken(userID, username, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.cfg.AccessTokenTTL}, nil
}

func validateUsername(username string) error {
	if len(username) < usernameMinLen || len(username) > usernameMaxLen {
		return ErrInvalidUsername
	}
	if strings.ContainsAny(username, forbiddenUsernameChars) {
		return ErrInvalidUsername
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < passwordMinLen {
		return ErrWeakPassword
	}
	if _, bad := denylistedPasswords[strings.ToLower(password)]; bad {
		return ErrWeakPassword
	}
	return nil
}

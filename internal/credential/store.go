// Package credential owns user accounts: password hashing, verification and
// the admin bootstrap. Plaintext passwords never leave this package.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// dummyHash is compared against when a user does not exist so that a login
// for an unknown username costs the same as one with a wrong password.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Repository persists user records.
type Repository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	DeleteUser(ctx context.Context, id string) (bool, error)
	CountUsers(ctx context.Context) (int, error)
}

// Store is the credential store.
type Store struct {
	repo   Repository
	cost   int
	logger logger.Logger
}

// NewStore builds a Store. cost outside bcrypt's range falls back to
// bcrypt.DefaultCost.
func NewStore(repo Repository, cost int, log logger.Logger) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{repo: repo, cost: cost, logger: log}
}

// CreateUser hashes password and persists a new account.
func (s *Store) CreateUser(ctx context.Context, username, password string, isAdmin bool) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username", domain.ErrMissingField)
	}

	exists, err := s.CheckWhetherUserExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: username %q already exists", domain.ErrConflict, username)
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	// The repository re-checks uniqueness inside its transaction.
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		logger.String("user_id", u.ID),
		logger.String("username", u.Username),
		logger.Bool("admin", u.IsAdmin))
	return u, nil
}

// VerifyPassword compares candidate against the stored hash of userID.
func (s *Store) VerifyPassword(ctx context.Context, userID, candidate string) (bool, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return compare(u.PasswordHash, candidate), nil
}

// UpdatePassword overwrites the hash of userID without checking the old one.
func (s *Store) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	s.logger.Info("password updated", logger.String("user_id", userID))
	return nil
}

// ChangePassword updates the password of username after verifying current.
// It returns ErrNotFound for an unknown user and ErrForbidden when current
// does not match.
func (s *Store) ChangePassword(ctx context.Context, username, current, newPassword string) (*domain.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if !compare(u.PasswordHash, current) {
		return nil, fmt.Errorf("%w: current password does not match", domain.ErrForbidden)
	}
	if err := s.UpdatePassword(ctx, u.ID, newPassword); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByUsername returns ErrNotFound when the user is absent.
func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Store) CheckWhetherUserExists(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// DeleteUser reports whether a record was removed.
func (s *Store) DeleteUser(ctx context.Context, id string) (bool, error) {
	removed, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("user deleted", logger.String("user_id", id))
	}
	return removed, nil
}

// Authenticate returns the user when username and password match, and
// ErrUnauthorized otherwise. Unknown users still pay for one bcrypt compare.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, fmt.Errorf("%w: invalid username or password", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !compare(u.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid username or password", domain.ErrUnauthorized)
	}
	return u, nil
}

// EnsureAdmin creates an admin account when no user exists yet. It reports
// whether an account was created.
func (s *Store) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" {
		return false, nil
	}
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.Debug("users already present, skipping admin bootstrap", logger.Int("users", n))
		return false, nil
	}
	if _, err := s.CreateUser(ctx, username, password, true); err != nil {
		return false, fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return true, nil
}

func (s *Store) hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password", domain.ErrMissingField)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password longer than 72 bytes", domain.ErrBadRequest)
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// compare is constant-time with respect to the candidate's content.
func compare(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

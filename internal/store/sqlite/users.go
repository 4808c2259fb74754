package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/utils"
)

// UserStore persists user records. Hashing lives in the credential package;
// this layer only stores what it is given.
type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.db.now()
	}
	return s.db.write(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, u.Username).Scan(&one)
		if err == nil {
			return fmt.Errorf("%w: username %q already exists", domain.ErrConflict, u.Username)
		}
		if !isNoRows(err) {
			return fmt.Errorf("failed to check username: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, username, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.Username, u.PasswordHash, u.IsAdmin, formatTime(u.CreatedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %q already exists", domain.ErrConflict, u.Username)
		}
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `id = ?`, id)
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, `username = ?`, username)
}

func (s *UserStore) getUser(ctx context.Context, cond string, arg string) (*domain.User, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, username, password_hash, is_admin, created_at FROM users WHERE `+cond, arg)
	u, err := scanUser(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, username, password_hash, is_admin, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer utils.Close(rows)

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.db.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
		if err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
		}
		return nil
	})
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.db.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

func (s *UserStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func scanUser(sc scanner) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	if err := sc.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

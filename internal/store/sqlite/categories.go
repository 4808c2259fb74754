package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/utils"
)

// CategoryStore owns category records. It shares the DB writer lock with
// BookmarkStore because deleting a category renumbers bookmarks.
type CategoryStore struct {
	db *DB
}

func NewCategoryStore(db *DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) Create(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", domain.ErrMissingField)
	}

	var c *domain.Category
	err := s.db.write(ctx, func(tx *sql.Tx) error {
		created, err := s.insert(ctx, tx, name)
		c = created
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreate returns the category called name, creating it when missing.
func (s *CategoryStore) GetOrCreate(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", domain.ErrMissingField)
	}

	var c *domain.Category
	err := s.db.write(ctx, func(tx *sql.Tx) error {
		existing, err := getCategory(ctx, tx, `name = ?`, name)
		if err == nil {
			c = existing
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		created, err := s.insert(ctx, tx, name)
		c = created
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryStore) insert(ctx context.Context, tx *sql.Tx, name string) (*domain.Category, error) {
	c := &domain.Category{ID: uuid.NewString(), Name: name, CreatedAt: s.db.now()}
	_, err := tx.ExecContext(ctx, `INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, formatTime(c.CreatedAt))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: category %q already exists", domain.ErrConflict, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}
	s.db.logger.Debug("category created", logger.String("category_id", c.ID))
	return c, nil
}

func (s *CategoryStore) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	return getCategory(ctx, s.db.sql, `id = ?`, id)
}

func (s *CategoryStore) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	return getCategory(ctx, s.db.sql, `name = ?`, strings.TrimSpace(name))
}

func (s *CategoryStore) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.sql.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer utils.Close(rows)

	out := make([]domain.Category, 0)
	for rows.Next() {
		var (
			c         domain.Category
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CategoryStore) Rename(ctx context.Context, id, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", domain.ErrMissingField)
	}

	err := s.db.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, name, id)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: category %q already exists", domain.ErrConflict, name)
		}
		if err != nil {
			return fmt.Errorf("failed to rename category: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: category %s", domain.ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes category id. Its bookmarks move to the end of the
// uncategorized partition in their existing order, so both partitions stay
// contiguous.
func (s *CategoryStore) Delete(ctx context.Context, id string) (bool, error) {
	found := false
	moved := 0
	err := s.db.write(ctx, func(tx *sql.Tx) error {
		if _, err := getCategory(ctx, tx, `id = ?`, id); err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		found = true

		base, err := partitionSize(ctx, tx, nil)
		if err != nil {
			return err
		}
		ids, err := partitionOrderIDs(ctx, tx, &id)
		if err != nil {
			return err
		}

		now := formatTime(s.db.now())
		for i, bid := range ids {
			_, err := tx.ExecContext(ctx,
				`UPDATE bookmarks SET category_id = NULL, position = ?, updated_at = ? WHERE id = ?`,
				base+i, now, bid)
			if err != nil {
				return fmt.Errorf("failed to reassign bookmark: %w", err)
			}
		}
		moved = len(ids)

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if found {
		s.db.logger.Info("category deleted",
			logger.String("category_id", id),
			logger.Int("bookmarks_uncategorized", moved))
	}
	return found, nil
}

func getCategory(ctx context.Context, q querier, cond string, arg any) (*domain.Category, error) {
	var (
		c         domain.Category
		createdAt string
	)
	err := q.QueryRowContext(ctx, `SELECT id, name, created_at FROM categories WHERE `+cond, arg).
		Scan(&c.ID, &c.Name, &createdAt)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: category %v", domain.ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

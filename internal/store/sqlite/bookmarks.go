package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/utils"
)

// Column sets share one shape so scanBookmark works for both. Listings skip
// the icon payload and only report whether one exists.
const (
	bookmarkColumns     = `id, url, title, description, icon, icon <> '', category_id, tags, position, created_at, updated_at`
	bookmarkListColumns = `id, url, title, description, '', icon <> '', category_id, tags, position, created_at, updated_at`

	partitionOrder = `ORDER BY category_id IS NOT NULL, category_id, position, id`
)

// BookmarkStore owns bookmark records and their per-category positions.
type BookmarkStore struct {
	db *DB
}

func NewBookmarkStore(db *DB) *BookmarkStore {
	return &BookmarkStore{db: db}
}

// AddItem inserts a bookmark at the end of its category partition.
func (s *BookmarkStore) AddItem(ctx context.Context, in domain.BookmarkInput) (*domain.Bookmark, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	var created *domain.Bookmark
	err := s.db.write(ctx, func(tx *sql.Tx) error {
		b, err := s.insert(ctx, tx, in)
		if err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.db.logger.Debug("bookmark added",
		logger.String("bookmark_id", created.ID),
		logger.Int("position", created.Position))
	return created, nil
}

// AddItems inserts a batch leniently: urls that already exist (or repeat
// inside the batch) are skipped. Every entry is validated before anything is
// written, and an invalid entry or unknown category aborts the whole batch.
func (s *BookmarkStore) AddItems(ctx context.Context, inputs []domain.BookmarkInput) (*domain.AddResult, error) {
	for i := range inputs {
		if err := inputs[i].Normalize(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	res := &domain.AddResult{Added: []domain.Bookmark{}, Skipped: []string{}}
	err := s.db.write(ctx, func(tx *sql.Tx) error {
		for _, in := range inputs {
			b, err := s.insert(ctx, tx, in)
			if errors.Is(err, domain.ErrConflict) {
				res.Skipped = append(res.Skipped, in.URL)
				continue
			}
			if err != nil {
				return err
			}
			res.Added = append(res.Added, *b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.db.logger.Info("bookmarks bulk added",
		logger.Int("added", len(res.Added)),
		logger.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (s *BookmarkStore) insert(ctx context.Context, tx *sql.Tx, in domain.BookmarkInput) (*domain.Bookmark, error) {
	if err := ensureCategory(ctx, tx, in.CategoryID); err != nil {
		return nil, err
	}

	taken, err := urlTaken(ctx, tx, in.URL, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: bookmark with url %s already exists", domain.ErrConflict, in.URL)
	}

	pos, err := partitionSize(ctx, tx, in.CategoryID)
	if err != nil {
		return nil, err
	}

	tags, err := json.Marshal(in.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	now := s.db.now()
	b := &domain.Bookmark{
		ID:          uuid.NewString(),
		URL:         in.URL,
		Title:       in.Title,
		Description: in.Description,
		Icon:        in.Icon,
		HasIcon:     in.Icon != "",
		Tags:        in.Tags,
		CategoryID:  in.CategoryID,
		Position:    pos,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookmarks (id, url, title, description, icon, category_id, tags, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.URL, b.Title, b.Description, b.Icon, nullable(b.CategoryID), string(tags), b.Position,
		formatTime(now), formatTime(now),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: bookmark with url %s already exists", domain.ErrConflict, in.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert bookmark: %w", err)
	}
	return b, nil
}

// UpdateItem replaces every writable field of bookmark id. It reports false
// when id does not exist. Moving to another category compacts the old
// partition and appends to the new one.
func (s *BookmarkStore) UpdateItem(ctx context.Context, id string, in domain.BookmarkInput) (bool, error) {
	if err := in.Normalize(); err != nil {
		return false, err
	}

	found := false
	err := s.db.write(ctx, func(tx *sql.Tx) error {
		oldCategory, oldPos, err := locate(ctx, tx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		if err := ensureCategory(ctx, tx, in.CategoryID); err != nil {
			return err
		}
		taken, err := urlTaken(ctx, tx, in.URL, id)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: bookmark with url %s already exists", domain.ErrConflict, in.URL)
		}

		newPos := oldPos
		if !domain.SameCategory(oldCategory, in.CategoryID) {
			if err := compact(ctx, tx, oldCategory, oldPos); err != nil {
				return err
			}
			if newPos, err = partitionSize(ctx, tx, in.CategoryID); err != nil {
				return err
			}
		}

		tags, err := json.Marshal(in.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE bookmarks
			SET url = ?, title = ?, description = ?, icon = ?, category_id = ?, tags = ?, position = ?, updated_at = ?
			WHERE id = ?`,
			in.URL, in.Title, in.Description, in.Icon, nullable(in.CategoryID), string(tags), newPos,
			formatTime(s.db.now()), id,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: bookmark with url %s already exists", domain.ErrConflict, in.URL)
		}
		if err != nil {
			return fmt.Errorf("failed to update bookmark: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// DeleteItem removes bookmark id and closes the gap in its partition.
func (s *BookmarkStore) DeleteItem(ctx context.Context, id string) (bool, error) {
	found := false
	err := s.db.write(ctx, func(tx *sql.Tx) error {
		category, pos, err := locate(ctx, tx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete bookmark: %w", err)
		}
		return compact(ctx, tx, category, pos)
	})
	if err != nil {
		return false, err
	}
	if found {
		s.db.logger.Debug("bookmark deleted", logger.String("bookmark_id", id))
	}
	return found, nil
}

// GetItemByID returns the full record, icon included.
func (s *BookmarkStore) GetItemByID(ctx context.Context, id string) (*domain.Bookmark, error) {
	row := s.db.sql.QueryRowContext(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ?`, id)
	b, err := scanBookmark(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: bookmark %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return &b, nil
}

func (s *BookmarkStore) GetItemByURL(ctx context.Context, url string) (*domain.Bookmark, error) {
	row := s.db.sql.QueryRowContext(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks WHERE url = ?`, strings.TrimSpace(url))
	b, err := scanBookmark(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: bookmark with url %s", domain.ErrNotFound, url)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark by url: %w", err)
	}
	return &b, nil
}

// GetIconByBookmarkID returns the stored data URI, which may be empty.
func (s *BookmarkStore) GetIconByBookmarkID(ctx context.Context, id string) (string, error) {
	var icon string
	err := s.db.sql.QueryRowContext(ctx, `SELECT icon FROM bookmarks WHERE id = ?`, id).Scan(&icon)
	if isNoRows(err) {
		return "", fmt.Errorf("%w: bookmark %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get icon: %w", err)
	}
	return icon, nil
}

// GetByCategoryID lists one partition in position order. domain.Uncategorized
// selects bookmarks without a category.
func (s *BookmarkStore) GetByCategoryID(ctx context.Context, categoryID string) ([]domain.Bookmark, error) {
	var partition *string
	if categoryID != domain.Uncategorized {
		if err := ensureCategory(ctx, s.db.sql, &categoryID); err != nil {
			if errors.Is(err, domain.ErrBadRequest) {
				return nil, fmt.Errorf("%w: category %s", domain.ErrNotFound, categoryID)
			}
			return nil, err
		}
		partition = &categoryID
	}

	return s.list(ctx, `SELECT `+bookmarkListColumns+` FROM bookmarks WHERE category_id IS ? ORDER BY position, id`, nullable(partition))
}

// GetAll returns every bookmark, icons included, grouped by partition.
func (s *BookmarkStore) GetAll(ctx context.Context) ([]domain.Bookmark, error) {
	return s.list(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks `+partitionOrder)
}

// GetPage filters and slices bookmarks. It never writes.
func (s *BookmarkStore) GetPage(ctx context.Context, q domain.PageQuery) ([]domain.Bookmark, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrBadRequest)
	}

	var (
		where []string
		args  []any
	)

	if text := strings.TrimSpace(q.Query); text != "" {
		pattern := "%" + escapeLike(text) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR url LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	if tag := strings.TrimSpace(q.Tag); tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(bookmarks.tags) WHERE json_each.value = ?)`)
		args = append(args, tag)
	}

	switch category := strings.TrimSpace(q.Category); category {
	case "":
	case domain.Uncategorized:
		where = append(where, `category_id IS NULL`)
	default:
		where = append(where, `category_id = ?`)
		args = append(args, category)
	}

	query := `SELECT ` + bookmarkListColumns + ` FROM bookmarks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}

	limit := q.Limit
	if limit == 0 {
		limit = -1
	}
	query += ` ` + partitionOrder + ` LIMIT ? OFFSET ?`
	args = append(args, limit, q.Offset)

	return s.list(ctx, query, args...)
}

func (s *BookmarkStore) list(ctx context.Context, query string, args ...any) ([]domain.Bookmark, error) {
	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer utils.Close(rows)

	out := make([]domain.Bookmark, 0)
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmarks: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(sc scanner) (domain.Bookmark, error) {
	var (
		b          domain.Bookmark
		categoryID sql.NullString
		tags       string
		createdAt  string
		updatedAt  string
	)
	err := sc.Scan(&b.ID, &b.URL, &b.Title, &b.Description, &b.Icon, &b.HasIcon,
		&categoryID, &tags, &b.Position, &createdAt, &updatedAt)
	if err != nil {
		return domain.Bookmark{}, err
	}

	if categoryID.Valid {
		id := categoryID.String
		b.CategoryID = &id
	}
	if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil || b.Tags == nil {
		b.Tags = []string{}
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// ─────────────────────────────
// Partition helpers (callers hold the writer lock)
// ─────────────────────────────

// locate returns the partition and position of bookmark id.
func locate(ctx context.Context, q querier, id string) (*string, int, error) {
	var (
		categoryID sql.NullString
		pos        int
	)
	err := q.QueryRowContext(ctx, `SELECT category_id, position FROM bookmarks WHERE id = ?`, id).Scan(&categoryID, &pos)
	if isNoRows(err) {
		return nil, 0, fmt.Errorf("%w: bookmark %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to locate bookmark: %w", err)
	}
	if !categoryID.Valid {
		return nil, pos, nil
	}
	c := categoryID.String
	return &c, pos, nil
}

func partitionSize(ctx context.Context, q querier, categoryID *string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookmarks WHERE category_id IS ?`, nullable(categoryID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count partition: %w", err)
	}
	return n, nil
}

// compact shifts every position after removed down by one.
func compact(ctx context.Context, q querier, categoryID *string, removed int) error {
	_, err := q.ExecContext(ctx,
		`UPDATE bookmarks SET position = position - 1 WHERE category_id IS ? AND position > ?`,
		nullable(categoryID), removed)
	if err != nil {
		return fmt.Errorf("failed to compact positions: %w", err)
	}
	return nil
}

// ensureCategory rejects references to categories that do not exist.
func ensureCategory(ctx context.Context, q querier, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, *categoryID).Scan(&one)
	if isNoRows(err) {
		return fmt.Errorf("%w: unknown category %s", domain.ErrBadRequest, *categoryID)
	}
	if err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	return nil
}

// urlTaken reports whether url belongs to a bookmark other than exceptID.
func urlTaken(ctx context.Context, q querier, url, exceptID string) (bool, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM bookmarks WHERE url = ?`, url).Scan(&id)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check url: %w", err)
	}
	return id != exceptID, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/utils"
)

// UpdatePositions reorders the partition of categoryID (nil = uncategorized)
// in one transaction. Every id must belong to that partition, appear once,
// and carry a non-negative position; otherwise nothing is written.
//
// Listed bookmarks land on their requested slots (clamped to the end of the
// partition) and unlisted ones keep their relative order in the remaining
// slots, so the result is always a permutation of 0..n-1.
func (s *BookmarkStore) UpdatePositions(ctx context.Context, categoryID *string, items []domain.PositionUpdate) error {
	if len(items) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.Position < 0 {
			return fmt.Errorf("%w: negative position %d for bookmark %s", domain.ErrBadRequest, it.Position, it.ID)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("%w: bookmark %s listed twice", domain.ErrBadRequest, it.ID)
		}
		seen[it.ID] = struct{}{}
	}

	moved := 0
	err := s.db.write(ctx, func(tx *sql.Tx) error {
		current, err := partitionOrderIDs(ctx, tx, categoryID)
		if err != nil {
			return err
		}

		index := make(map[string]int, len(current))
		for i, id := range current {
			index[id] = i
		}
		for _, it := range items {
			if _, ok := index[it.ID]; !ok {
				return fmt.Errorf("%w: bookmark %s is not in the requested category", domain.ErrBadRequest, it.ID)
			}
		}

		for pos, id := range mergeOrder(current, items) {
			if index[id] == pos {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE bookmarks SET position = ? WHERE id = ?`, pos, id); err != nil {
				return fmt.Errorf("failed to update position: %w", err)
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.db.logger.Debug("bookmark positions updated",
		logger.Int("requested", len(items)),
		logger.Int("moved", moved))
	return nil
}

// partitionOrderIDs returns the ids of a partition in stored order.
func partitionOrderIDs(ctx context.Context, q querier, categoryID *string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM bookmarks WHERE category_id IS ? ORDER BY position, id`, nullable(categoryID))
	if err != nil {
		return nil, fmt.Errorf("failed to load partition: %w", err)
	}
	defer utils.Close(rows)

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan partition: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// mergeOrder computes the new order of a partition. current is the stored
// order and every id in items must appear in it exactly once.
func mergeOrder(current []string, items []domain.PositionUpdate) []string {
	batch := make([]domain.PositionUpdate, len(items))
	copy(batch, items)
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Position < batch[j].Position })

	listed := make(map[string]struct{}, len(batch))
	for _, it := range batch {
		listed[it.ID] = struct{}{}
	}
	rest := make([]string, 0, len(current)-len(batch))
	for _, id := range current {
		if _, ok := listed[id]; !ok {
			rest = append(rest, id)
		}
	}

	out := make([]string, 0, len(current))
	bi, ri := 0, 0
	for slot := 0; slot < len(current); slot++ {
		if bi < len(batch) && (batch[bi].Position <= slot || ri >= len(rest)) {
			out = append(out, batch[bi].ID)
			bi++
			continue
		}
		out = append(out, rest[ri])
		ri++
	}
	return out
}

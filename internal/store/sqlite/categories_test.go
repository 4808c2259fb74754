package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

func TestCategoryStore_CRUD(t *testing.T) {
	_, cats := newStores(t)
	ctx := context.Background()

	c, err := cats.Create(ctx, "  News ")
	require.NoError(t, err)
	assert.Equal(t, "News", c.Name)
	assert.NotEmpty(t, c.ID)

	_, err = cats.Create(ctx, "News")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = cats.Create(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrMissingField)

	got, err := cats.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "News", got.Name)

	_, err = cats.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	renamed, err := cats.Rename(ctx, c.ID, "Daily news")
	require.NoError(t, err)
	assert.Equal(t, "Daily news", renamed.Name)

	_, err = cats.Rename(ctx, "missing", "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = cats.Create(ctx, "archive")
	require.NoError(t, err)
	list, err := cats.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "archive", list[0].Name)

	_, err = cats.Rename(ctx, c.ID, "archive")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCategoryStore_GetOrCreate(t *testing.T) {
	_, cats := newStores(t)
	ctx := context.Background()

	first, err := cats.GetOrCreate(ctx, "Imported")
	require.NoError(t, err)
	second, err := cats.GetOrCreate(ctx, "Imported")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	byName, err := cats.GetByName(ctx, "Imported")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byName.ID)
}

func TestCategoryStore_DeleteReassignsBookmarks(t *testing.T) {
	s, cats := newStores(t)
	ctx := context.Background()

	doomed, err := cats.Create(ctx, "doomed")
	require.NoError(t, err)

	loose := addN(t, s, nil, 2, "loose")
	inside := addN(t, s, &doomed.ID, 3, "inside")

	// Reorder inside the category first so the carried-over order is not
	// simply insertion order.
	require.NoError(t, s.UpdatePositions(ctx, &doomed.ID, []domain.PositionUpdate{{ID: inside[2].ID, Position: 0}}))

	ok, err := cats.Delete(ctx, doomed.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = cats.GetByID(ctx, doomed.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	page, err := s.GetByCategoryID(ctx, domain.Uncategorized)
	require.NoError(t, err)
	assert.Equal(t, []string{loose[0].ID, loose[1].ID, inside[2].ID, inside[0].ID, inside[1].ID}, idsOf(page))
	for _, b := range page {
		assert.Nil(t, b.CategoryID)
	}
	requireContiguous(t, s)

	ok, err = cats.Delete(ctx, doomed.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxTags is the maximum number of tags a bookmark may carry.
const MaxTags = 10

// Uncategorized selects the partition of bookmarks without a category
// wherever a category filter is accepted as a string.
const Uncategorized = "none"

// Bookmark is a saved link.
type Bookmark struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is a UUID assigned on creation.
	ID string `json:"id"`

	// URL is globally unique among bookmarks.
	URL string `json:"url"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	Title       string `json:"title"`
	Description string `json:"description"`

	// Icon is an encoded image (data URI). It is opaque to the store and is
	// served separately, so it never appears in JSON listings.
	Icon    string `json:"-"`
	HasIcon bool   `json:"hasIcon"`

	// Tags is an ordered set of at most MaxTags entries.
	Tags []string `json:"tags"`

	// ─────────────────────────────
	// Ordering
	// ─────────────────────────────

	// CategoryID is nil for uncategorized bookmarks.
	CategoryID *string `json:"categoryId"`

	// Position is zero-based and contiguous within the category partition.
	Position int `json:"position"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BookmarkInput carries the writable fields of a bookmark.
type BookmarkInput struct {
	URL         string
	Title       string
	Description string
	Icon        string
	CategoryID  *string
	Tags        []string
}

// Normalize trims text fields and turns Tags into an ordered set.
// It returns ErrMissingField when url or title is empty and ErrTooManyTags
// when more than MaxTags distinct tags remain.
func (in *BookmarkInput) Normalize() error {
	in.URL = strings.TrimSpace(in.URL)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.URL == "" {
		return fmt.Errorf("%w: url", ErrMissingField)
	}
	if in.Title == "" {
		return fmt.Errorf("%w: title", ErrMissingField)
	}
	if in.CategoryID != nil && strings.TrimSpace(*in.CategoryID) == "" {
		in.CategoryID = nil
	}

	tags, err := NormalizeTags(in.Tags)
	if err != nil {
		return err
	}
	in.Tags = tags
	return nil
}

// NormalizeTags trims, drops empty entries and removes duplicates while
// keeping first-seen order.
func NormalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	if len(tags) > MaxTags {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyTags, len(tags), MaxTags)
	}
	return tags, nil
}

// SameCategory reports whether a and b reference the same partition.
func SameCategory(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// PageQuery filters and slices a bookmark listing.
// Limit <= 0 means no limit.
type PageQuery struct {
	Limit    int
	Offset   int
	Query    string // free text over title, url and description
	Tag      string
	Category string // category id, Uncategorized, or empty for all
}

// PositionUpdate asks for bookmark ID to land at Position.
type PositionUpdate struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// AddResult reports the outcome of a lenient bulk insert.
type AddResult struct {
	Added   []Bookmark `json:"added"`
	Skipped []string   `json:"skipped"` // urls already present
}

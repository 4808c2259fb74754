// Package importer bulk-loads bookmarks from browser exports and Homepage
// configuration files.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/icon"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// Format names a supported input syntax.
type Format string

const (
	FormatNetscape Format = "netscape"
	FormatHomepage Format = "homepage"
)

// ParseFormat accepts the names used in the import query string.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "netscape", "html":
		return FormatNetscape, nil
	case "homepage", "yaml":
		return FormatHomepage, nil
	}
	return "", fmt.Errorf("%w: unknown import format %q", domain.ErrBadRequest, s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FormatNetscape, nil
	case ".yaml", ".yml":
		return FormatHomepage, nil
	}
	return "", fmt.Errorf("%w: cannot infer import format of %s", domain.ErrBadRequest, path)
}

// Entry is a parsed bookmark and the name of the folder or group it came from.
type Entry struct {
	Category string
	Input    domain.BookmarkInput
}

// Parse decodes r in format f.
func Parse(r io.Reader, f Format) ([]Entry, error) {
	switch f {
	case FormatNetscape:
		return ParseNetscape(r)
	case FormatHomepage:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read import: %w", err)
		}
		return ParseHomepage(data)
	}
	return nil, fmt.Errorf("%w: unknown import format %q", domain.ErrBadRequest, f)
}

type BookmarkWriter interface {
	AddItems(ctx context.Context, inputs []domain.BookmarkInput) (*domain.AddResult, error)
}

type CategoryResolver interface {
	GetOrCreate(ctx context.Context, name string) (*domain.Category, error)
}

// IconResolver turns a remote icon reference into a stored value.
type IconResolver interface {
	Resolve(ctx context.Context, raw string) string
}

type Importer struct {
	bookmarks  BookmarkWriter
	categories CategoryResolver
	icons      IconResolver
	logger     logger.Logger
}

// New builds an Importer. icons may be nil, in which case remote icons are
// dropped instead of fetched.
func New(bookmarks BookmarkWriter, categories CategoryResolver, icons IconResolver, log logger.Logger) *Importer {
	return &Importer{
		bookmarks:  bookmarks,
		categories: categories,
		icons:      icons,
		logger:     log,
	}
}

// Import parses r and inserts its entries. Every entry is validated before
// categories are created or bookmarks written; urls already stored are
// skipped.
func (i *Importer) Import(ctx context.Context, r io.Reader, f Format) (*domain.AddResult, error) {
	entries, err := Parse(r, f)
	if err != nil {
		return nil, err
	}
	return i.Store(ctx, entries)
}

// Store validates and inserts already parsed entries.
func (i *Importer) Store(ctx context.Context, entries []Entry) (*domain.AddResult, error) {
	for n := range entries {
		if err := entries[n].Input.Normalize(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", n, err)
		}
	}

	categoryIDs := make(map[string]string)
	inputs := make([]domain.BookmarkInput, 0, len(entries))
	for _, e := range entries {
		in := e.Input

		if e.Category != "" {
			id, ok := categoryIDs[e.Category]
			if !ok {
				c, err := i.categories.GetOrCreate(ctx, e.Category)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve category %q: %w", e.Category, err)
				}
				id = c.ID
				categoryIDs[e.Category] = id
			}
			in.CategoryID = &id
		}

		in.Icon = i.resolveIcon(ctx, in.URL, in.Icon)

		inputs = append(inputs, in)
	}

	res, err := i.bookmarks.AddItems(ctx, inputs)
	if err != nil {
		return nil, err
	}

	i.logger.Info("bookmarks imported",
		logger.Int("entries", len(entries)),
		logger.Int("categories", len(categoryIDs)),
		logger.Int("added", len(res.Added)),
		logger.Int("skipped", len(res.Skipped)))
	return res, nil
}

// resolveIcon fetches remote icons and drops inline ones that do not decode.
func (i *Importer) resolveIcon(ctx context.Context, url, raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case icon.IsRemote(raw):
		if i.icons == nil {
			return ""
		}
		return i.icons.Resolve(ctx, raw)
	}
	if _, _, err := icon.Decode(raw); err != nil {
		i.logger.Warn("dropping invalid icon",
			logger.String("url", url),
			logger.Error(err))
		return ""
	}
	return raw
}

// ImportFile imports path, choosing the format from its extension.
func (i *Importer) ImportFile(ctx context.Context, path string) (*domain.AddResult, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	return i.Import(ctx, bytes.NewReader(data), f)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/export"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/icon"
	"github.com/MrSnakeDoc/shelf/internal/importer"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// optionalID tells an omitted categoryId apart from an explicit null.
type optionalID struct {
	Set   bool
	Value *string
}

func (o *optionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("categoryId must be a string or null: %w", err)
	}
	o.Value = &s
	return nil
}

// bookmarkRequest is the body of create, update and bulk add. Pointer fields
// are nil when omitted.
type bookmarkRequest struct {
	URL         *string    `json:"url"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Icon        *string    `json:"icon"`
	CategoryID  optionalID `json:"categoryId"`
	Tags        *[]string  `json:"tags"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// input builds a BookmarkInput for a new bookmark.
func (b bookmarkRequest) input() domain.BookmarkInput {
	in := domain.BookmarkInput{
		URL:         deref(b.URL),
		Title:       deref(b.Title),
		Description: deref(b.Description),
		Icon:        deref(b.Icon),
		CategoryID:  b.CategoryID.Value,
	}
	if b.Tags != nil {
		in.Tags = *b.Tags
	}
	return in
}

// merge overlays the provided fields on an existing bookmark.
func (b bookmarkRequest) merge(cur *domain.Bookmark) domain.BookmarkInput {
	in := domain.BookmarkInput{
		URL:         deref(b.URL),
		Title:       cur.Title,
		Description: cur.Description,
		Icon:        cur.Icon,
		CategoryID:  cur.CategoryID,
		Tags:        cur.Tags,
	}
	if b.Title != nil {
		in.Title = *b.Title
	}
	if b.Description != nil {
		in.Description = *b.Description
	}
	if b.Icon != nil {
		in.Icon = *b.Icon
	}
	if b.CategoryID.Set {
		in.CategoryID = b.CategoryID.Value
	}
	if b.Tags != nil {
		in.Tags = *b.Tags
	}
	return in
}

// resolveIcon fetches remote icons and validates inline ones. Anything that
// is neither a URL nor a data URI is rejected.
func resolveIcon(ctx context.Context, d deps.Deps, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", nil
	case icon.IsRemote(raw):
		return d.Icons.Resolve(ctx, raw), nil
	default:
		if _, _, err := icon.Decode(raw); err != nil {
			return "", fmt.Errorf("%w: icon must be an image url or a base64 data uri", domain.ErrBadRequest)
		}
		return raw, nil
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrBadRequest, key)
	}
	return n, nil
}

// ListBookmarks serves GET /api/bookmarks?limit&offset&q&tag&category.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit")
		if err != nil {
			fail(d, w, r, err)
			return
		}
		offset, err := queryInt(r, "offset")
		if err != nil {
			fail(d, w, r, err)
			return
		}

		q := r.URL.Query()
		// an absent limit means all rows, an explicit zero means none
		if limit == 0 && q.Has("limit") {
			writeJSON(w, http.StatusOK, []domain.Bookmark{})
			return
		}

		page, err := d.Bookmarks.GetPage(r.Context(), domain.PageQuery{
			Limit:    limit,
			Offset:   offset,
			Query:    q.Get("q"),
			Tag:      q.Get("tag"),
			Category: q.Get("category"),
		})
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := d.Bookmarks.GetItemByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func LookupBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := strings.TrimSpace(r.URL.Query().Get("url"))
		if url == "" {
			fail(d, w, r, fmt.Errorf("%w: url", domain.ErrMissingField))
			return
		}
		b, err := d.Bookmarks.GetItemByURL(r.Context(), url)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// BookmarkIcon serves the stored icon as an image.
func BookmarkIcon(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		uri, err := d.Bookmarks.GetIconByBookmarkID(r.Context(), id)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		if uri == "" {
			fail(d, w, r, fmt.Errorf("%w: bookmark %s has no icon", domain.ErrNotFound, id))
			return
		}

		mediaType, data, err := icon.Decode(uri)
		if err != nil {
			d.Logger.Warn("stored icon is not a valid data uri",
				logger.String("bookmark_id", id),
				logger.Error(err))
			fail(d, w, r, fmt.Errorf("%w: bookmark %s has no icon", domain.ErrNotFound, id))
			return
		}

		w.Header().Set("Content-Type", mediaType)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		_, _ = w.Write(data)
	}
}

func BookmarksByCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Bookmarks.GetByCategoryID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ExportBookmarks serves every bookmark as a Netscape bookmark file.
func ExportBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := d.Bookmarks.GetAll(r.Context())
		if err != nil {
			fail(d, w, r, err)
			return
		}
		categories, err := d.Categories.List(r.Context())
		if err != nil {
			fail(d, w, r, err)
			return
		}

		var buf bytes.Buffer
		if err := export.WriteNetscape(&buf, all, categories); err != nil {
			fail(d, w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="bookmarks.html"`)
		_, _ = buf.WriteTo(w)
	}
}

func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}

		in := req.input()
		// reject before paying for an icon fetch
		if err := in.Normalize(); err != nil {
			fail(d, w, r, err)
			return
		}
		var err error
		if in.Icon, err = resolveIcon(r.Context(), d, in.Icon); err != nil {
			fail(d, w, r, err)
			return
		}

		b, err := d.Bookmarks.AddItem(r.Context(), in)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

// AddBookmarks is the lenient bulk insert: known urls are skipped, an
// invalid entry rejects the whole batch.
func AddBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqs []bookmarkRequest
		if err := decodeJSON(w, r, &reqs); err != nil {
			fail(d, w, r, err)
			return
		}

		inputs := make([]domain.BookmarkInput, len(reqs))
		for i, req := range reqs {
			inputs[i] = req.input()
			if err := inputs[i].Normalize(); err != nil {
				fail(d, w, r, fmt.Errorf("item %d: %w", i, err))
				return
			}
		}
		for i := range inputs {
			resolved, err := resolveIcon(r.Context(), d, inputs[i].Icon)
			if err != nil {
				fail(d, w, r, fmt.Errorf("item %d: %w", i, err))
				return
			}
			inputs[i].Icon = resolved
		}

		res, err := d.Bookmarks.AddItems(r.Context(), inputs)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, addStatus(res), res)
	}
}

// ImportBookmarks parses a raw Netscape or Homepage document from the body.
func ImportBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := importer.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			fail(d, w, r, err)
			return
		}

		res, err := d.Importer.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxImportBody), format)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, addStatus(res), res)
	}
}

func addStatus(res *domain.AddResult) int {
	if len(res.Added) > 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}

// UpdateBookmark merges the body over the stored bookmark. url is required;
// other omitted fields keep their value.
func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if strings.TrimSpace(deref(req.URL)) == "" {
			fail(d, w, r, fmt.Errorf("%w: url", domain.ErrMissingField))
			return
		}

		id := chi.URLParam(r, "id")
		cur, err := d.Bookmarks.GetItemByID(r.Context(), id)
		if err != nil {
			fail(d, w, r, err)
			return
		}

		in := req.merge(cur)
		if req.Icon != nil {
			if in.Icon, err = resolveIcon(r.Context(), d, in.Icon); err != nil {
				fail(d, w, r, err)
				return
			}
		}

		found, err := d.Bookmarks.UpdateItem(r.Context(), id, in)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		if !found {
			fail(d, w, r, fmt.Errorf("%w: bookmark %s", domain.ErrNotFound, id))
			return
		}

		updated, err := d.Bookmarks.GetItemByID(r.Context(), id)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		found, err := d.Bookmarks.DeleteItem(r.Context(), id)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		if !found {
			fail(d, w, r, fmt.Errorf("%w: bookmark %s", domain.ErrNotFound, id))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type changePositionsRequest struct {
	CategoryID *string                 `json:"categoryId"`
	Items      []domain.PositionUpdate `json:"items"`
}

// ChangePositions reorders one partition atomically and returns its new
// order.
func ChangePositions(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePositionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if req.CategoryID != nil && strings.TrimSpace(*req.CategoryID) == "" {
			req.CategoryID = nil
		}

		if err := d.Bookmarks.UpdatePositions(r.Context(), req.CategoryID, req.Items); err != nil {
			fail(d, w, r, err)
			return
		}

		partition := domain.Uncategorized
		if req.CategoryID != nil {
			partition = *req.CategoryID
		}
		list, err := d.Bookmarks.GetByCategoryID(r.Context(), partition)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

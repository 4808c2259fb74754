package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/credential"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/apierr"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/icon"
	"github.com/MrSnakeDoc/shelf/internal/importer"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/session"
	"github.com/MrSnakeDoc/shelf/internal/store/sqlite"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	pngIcon    = "data:image/png;base64,iVBORw0KGgo="
)

type harness struct {
	t       *testing.T
	handler http.Handler
	creds   *credential.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "shelf.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bookmarks := sqlite.NewBookmarkStore(db)
	categories := sqlite.NewCategoryStore(db)
	creds := credential.NewStore(sqlite.NewUserStore(db), bcrypt.MinCost, log)
	registry := session.NewMemoryRegistry()
	tokens := session.NewManager(testSecret, time.Hour, "shelf")
	icons := icon.NewFetcher(time.Second, 64*1024, log)

	d := deps.Deps{
		Logger:            log,
		StartTime:         time.Now(),
		Version:           "test",
		TimeNow:           time.Now,
		DB:                db,
		Bookmarks:         bookmarks,
		Categories:        categories,
		Credentials:       creds,
		Importer:          importer.New(bookmarks, categories, icons, log),
		Icons:             icons,
		Tokens:            tokens,
		Sessions:          registry,
		Gate:              auth.NewGate(tokens, registry, creds, log),
		SessionCookie:     "shelf_session",
		LoginBurst:        100,
		LoginRefillPerMin: 100,
	}

	ctx := context.Background()
	_, err = creds.CreateUser(ctx, "admin", "admin-pass", true)
	require.NoError(t, err)
	_, err = creds.CreateUser(ctx, "alice", "alice-pass", false)
	require.NoError(t, err)

	return &harness{
		t:       t,
		handler: httpserver.NewRouter(5*time.Second, d),
		creds:   creds,
	}
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(h.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func (h *harness) login(username, password string) string {
	h.t.Helper()
	w := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	require.NoError(h.t, json.NewDecoder(w.Body).Decode(&res))
	require.NotEmpty(h.t, res.Token)
	return res.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func (h *harness) createBookmark(token string, body map[string]any) domain.Bookmark {
	h.t.Helper()
	w := h.do(http.MethodPost, "/api/bookmarks", token, body)
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[domain.Bookmark](h.t, w)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = h.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusNotAcceptable, w.Code)

	w = h.do(http.MethodPost, "/api/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "alice-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "shelf_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[domain.User](t, rec)
	assert.Equal(t, "alice", me.Username)
	assert.False(t, me.IsAdmin)
}

func TestLogoutRevokesSession(t *testing.T) {
	h := newHarness(t)
	token := h.login("alice", "alice-pass")

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/bookmarks", token, nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/api/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/bookmarks", token, nil).Code)
}

func TestGuards(t *testing.T) {
	h := newHarness(t)
	user := h.login("alice", "alice-pass")

	w := h.do(http.MethodGet, "/api/bookmarks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode[apierr.Response](t, w)
	assert.Equal(t, http.StatusUnauthorized, body.StatusCode)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/bookmarks", "garbage", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/admin/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/admin/users", user, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/nothing-here", user, nil).Code)
}

func TestBookmarkLifecycle(t *testing.T) {
	h := newHarness(t)
	token := h.login("alice", "alice-pass")

	b := h.createBookmark(token, map[string]any{
		"url":         "https://go.dev",
		"title":       "Go",
		"description": "The Go site",
		"tags":        []string{"lang", " lang ", "go"},
		"icon":        pngIcon,
	})
	assert.Equal(t, []string{"lang", "go"}, b.Tags)
	assert.True(t, b.HasIcon)
	assert.Nil(t, b.CategoryID)
	assert.Equal(t, 0, b.Position)

	// validation
	w := h.do(http.MethodPost, "/api/bookmarks", token, map[string]any{"title": "no url"})
	assert.Equal(t, http.StatusNotAcceptable, w.Code)
	w = h.do(http.MethodPost, "/api/bookmarks", token, map[string]any{"url": "https://go.dev", "title": "dup"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = h.do(http.MethodPost, "/api/bookmarks", token, map[string]any{"url": "https://x", "title": "x", "icon": "not an icon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// read
	w = h.do(http.MethodGet, "/api/bookmarks/"+b.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://go.dev", decode[domain.Bookmark](t, w).URL)

	w = h.do(http.MethodGet, "/api/bookmarks/lookup?url=https://go.dev", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, b.ID, decode[domain.Bookmark](t, w).ID)
	assert.Equal(t, http.StatusNotAcceptable, h.do(http.MethodGet, "/api/bookmarks/lookup", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/bookmarks/lookup?url=https://nope", token, nil).Code)

	w = h.do(http.MethodGet, "/api/bookmarks/"+b.ID+"/icon", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG\r\n\x1a\n", w.Body.String())

	// update keeps omitted fields
	w = h.do(http.MethodPut, "/api/bookmarks/"+b.ID, token, map[string]any{"title": "no url"})
	assert.Equal(t, http.StatusNotAcceptable, w.Code)
	w = h.do(http.MethodPut, "/api/bookmarks/"+b.ID, token, map[string]any{"url": "https://go.dev/", "title": "Go!"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	up := decode[domain.Bookmark](t, w)
	assert.Equal(t, "Go!", up.Title)
	assert.Equal(t, "https://go.dev/", up.URL)
	assert.Equal(t, "The Go site", up.Description)
	assert.True(t, up.HasIcon)
	assert.Equal(t, http.StatusNotFound,
		h.do(http.MethodPut, "/api/bookmarks/missing", token, map[string]any{"url": "https://a"}).Code)

	// delete
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/bookmarks/"+b.ID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/bookmarks/"+b.ID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/bookmarks/"+b.ID+"/icon", token, nil).Code)
}

func TestAddArray(t *testing.T) {
	h := newHarness(t)
	token := h.login("alice", "alice-pass")
	h.createBookmark(token, map[string]any{"url": "https://a", "title": "a"})

	w := h.do(http.MethodPost, "/api/bookmarks/addArray", token, []map[string]any{
		{"url": "https://a", "title": "a again"},
		{"url": "https://b", "title": "b"},
		{"url": "https://c", "title": "c"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[domain.AddResult](t, w)
	assert.Len(t, res.Added, 2)
	assert.Equal(t, []string{"https://a"}, res.Skipped)

	w = h.do(http.MethodPost, "/api/bookmarks/addArray", token, []map[string]any{{"url": "https://b", "title": "b"}})
	assert.Equal(t, http.StatusOK, w.Code)

	// one bad entry rejects the batch
	w = h.do(http.MethodPost, "/api/bookmarks/addArray", token, []map[string]any{
		{"url": "https://d", "title": "d"},
		{"url": "https://e"},
	})
	assert.Equal(t, http.StatusNotAcceptable, w.Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/bookmarks/lookup?url=https://d", token, nil).Code)
}

func TestChangePositions(t *testing.T) {
	h := newHarness(t)
	token := h.login("alice", "alice-pass")

	a := h.createBookmark(token, map[string]any{"url": "https://a", "title": "a"})
	b := h.createBookmark(token, map[string]any{"url": "https://b", "title": "b"})
	c := h.createBookmark(token, map[string]any{"url": "https://c", "title": "c"})
	assert.Equal(t, []int{0, 1, 2}, []int{a.Position, b.Position, c.Position})

	w := h.do(http.MethodPut, "/api/bookmarks/changePositions", token, map[string]any{
		"categoryId": nil,
		"items": []domain.PositionUpdate{
			{ID: c.ID, Position: 0},
			{ID: a.ID, Position: 1},
			{ID: b.ID, Position: 2},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[[]domain.Bookmark](t, w)
	require.Len(t, list, 3)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	w = h.do(http.MethodGet, "/api/bookmarks/category/none", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, c.ID, decode[[]domain.Bookmark](t, w)[0].ID)
}

func TestCategories(t *testing.T) {
	h := newHarness(t)
	token := h.login("alice", "alice-pass")

	w := h.do(http.MethodPost, "/api/categories", token, map[string]string{"name": "Dev"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dev := decode[domain.Category](t, w)

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/api/categories", token, map[string]string{"name": "Dev"}).Code)

	w = h.do(http.MethodPut, "/api/categories/"+dev.ID, token, map[string]string{"name": "Development"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Development", decode[domain.Category](t, w).Name)

	h.createBookmark(token, map[string]any{"url": "https://root", "title": "root"})
	inDev := h.createBookmark(token, map[string]any{"url": "https://gh", "title": "gh", "categoryId": dev.ID})
	require.NotNil(t, inDev.CategoryID)
	assert.Equal(t, 0, inDev.Position)

	w = h.do(http.MethodGet, "/api/bookmarks/category/"+dev.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Bookmark](t, w), 1)

	// deleting the category moves its bookmarks to the end of the uncategorized list
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/categories/"+dev.ID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/categories/"+dev.ID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/categories/"+dev.ID, token, nil).Code)

	w = h.do(http.MethodGet, "/api/bookmarks/"+inDev.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	moved := decode[domain.Bookmark](t, w)
	assert.Nil(t, moved.CategoryID)
	assert.Equal(t, 1, moved.Position)
}

func TestImportAndExport(t *testing.T) {
	h := newHarness(t)
	token := h.login("alice", "alice-pass")

	doc := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><A HREF="https://go.dev" TAGS="go">Go</A>
    <DT><H3>Dev</H3>
    <DL><p>
        <DT><A HREF="https://github.com">GitHub</A>
    </DL><p>
</DL><p>
`
	w := h.do(http.MethodPost, "/api/bookmarks/import", token, doc)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode[domain.AddResult](t, w).Added, 2)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/bookmarks/import?format=csv", token, doc).Code)

	w = h.do(http.MethodGet, "/api/categories", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[[]domain.Category](t, w)
	require.Len(t, cats, 1)
	assert.Equal(t, "Dev", cats[0].Name)

	w = h.do(http.MethodGet, "/api/bookmarks/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "bookmarks.html")

	entries, err := importer.ParseNetscape(strings.NewReader(w.Body.String()))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "", entries[0].Category)
	assert.Equal(t, "Dev", entries[1].Category)

	w = h.do(http.MethodGet, "/api/bookmarks?tag=go", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Bookmark](t, w), 1)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/bookmarks?limit=-1", token, nil).Code)

	w = h.do(http.MethodGet, "/api/bookmarks?limit=0", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.Bookmark](t, w))

	w = h.do(http.MethodGet, "/api/bookmarks", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Bookmark](t, w), 2)
}

func TestAdmin(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin", "admin-pass")

	w := h.do(http.MethodPost, "/api/admin", admin, map[string]any{"username": "bob", "password": "bob-pass"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bob := decode[domain.User](t, w)
	assert.False(t, bob.IsAdmin)
	assert.NotContains(t, w.Body.String(), "password")

	assert.Equal(t, http.StatusConflict,
		h.do(http.MethodPost, "/api/admin", admin, map[string]any{"username": "bob", "password": "x"}).Code)

	w = h.do(http.MethodGet, "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.User](t, w), 3)

	bobToken := h.login("bob", "bob-pass")

	// change with the current password
	w = h.do(http.MethodPut, "/api/admin/changePassword", admin, map[string]string{
		"username": "bob", "currentPassword": "wrong", "newPassword": "next",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = h.do(http.MethodPut, "/api/admin/changePassword", admin, map[string]string{
		"username": "ghost", "currentPassword": "x", "newPassword": "next",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.do(http.MethodPut, "/api/admin/changePassword", admin, map[string]string{
		"username": "bob", "currentPassword": "bob-pass", "newPassword": "bob-next",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/auth/me", bobToken, nil).Code)

	// reset without it
	w = h.do(http.MethodPut, "/api/admin/users/"+bob.ID+"/password", admin, map[string]string{"newPassword": "reset"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	bobToken = h.login("bob", "reset")

	// delete
	me := decode[domain.User](t, h.do(http.MethodGet, "/api/auth/me", admin, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodDelete, "/api/admin/"+me.ID, admin, nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/admin/"+bob.ID, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/admin/"+bob.ID, admin, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/bookmarks", bobToken, nil).Code)
}

func TestAdminFlagIsReadPerRequest(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin", "admin-pass")

	w := h.do(http.MethodPost, "/api/admin", admin, map[string]any{"username": "carol", "password": "carol-pass", "isAdmin": true})
	require.Equal(t, http.StatusCreated, w.Code)
	carol := h.login("carol", "carol-pass")
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/admin/users", carol, nil).Code)
}

func TestChangeOwnPassword(t *testing.T) {
	h := newHarness(t)
	token := h.login("alice", "alice-pass")
	other := h.login("alice", "alice-pass")

	w := h.do(http.MethodPut, "/api/auth/password", token, map[string]string{
		"currentPassword": "nope", "newPassword": "next-pass",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPut, "/api/auth/password", token, map[string]string{
		"currentPassword": "alice-pass", "newPassword": "next-pass",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/auth/me", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/auth/me", other, nil).Code)
	h.login("alice", "next-pass")
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/session"
)

type fakeUsers map[string]*domain.User

func (f fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
}

func newTestGate(t *testing.T) (*Gate, *session.Manager, *session.MemoryRegistry, fakeUsers) {
	t.Helper()
	tokens := session.NewManager("0123456789abcdef0123456789abcdef", time.Hour, "shelf")
	registry := session.NewMemoryRegistry()
	users := fakeUsers{
		"u-alice": {ID: "u-alice", Username: "alice"},
		"u-root":  {ID: "u-root", Username: "root", IsAdmin: true},
	}
	return NewGate(tokens, registry, users, logger.Nop()), tokens, registry, users
}

func login(t *testing.T, tokens *session.Manager, registry *session.MemoryRegistry, userID string) *session.Token {
	t.Helper()
	tok, err := tokens.Issue(userID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := registry.Add(context.Background(), tok.ID, userID, tok.ExpiresAt); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return tok
}

func TestClassify(t *testing.T) {
	gate, tokens, registry, users := newTestGate(t)
	ctx := context.Background()

	alice := login(t, tokens, registry, "u-alice")
	root := login(t, tokens, registry, "u-root")

	revoked := login(t, tokens, registry, "u-alice")
	_ = registry.Revoke(ctx, revoked.ID)

	// signed but never registered
	unregistered, _ := tokens.Issue("u-alice")

	users["u-gone"] = &domain.User{ID: "u-gone", Username: "gone"}
	gone := login(t, tokens, registry, "u-gone")
	delete(users, "u-gone")

	tests := []struct {
		name     string
		raw      string
		wantRole Role
		wantUser string
	}{
		{name: "no token", raw: "", wantRole: Anonymous},
		{name: "garbage", raw: "abc.def.ghi", wantRole: Anonymous},
		{name: "user", raw: alice.Value, wantRole: Authenticated, wantUser: "u-alice"},
		{name: "admin", raw: root.Value, wantRole: Admin, wantUser: "u-root"},
		{name: "revoked", raw: revoked.Value, wantRole: Anonymous},
		{name: "unregistered", raw: unregistered.Value, wantRole: Anonymous},
		{name: "deleted user", raw: gone.Value, wantRole: Anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := gate.Classify(ctx, tt.raw)
			if c.Role != tt.wantRole {
				t.Errorf("Role = %v, want %v", c.Role, tt.wantRole)
			}
			if c.UserID != tt.wantUser {
				t.Errorf("UserID = %q, want %q", c.UserID, tt.wantUser)
			}
		})
	}
}

func TestClassifyReadsCurrentAdminFlag(t *testing.T) {
	gate, tokens, registry, users := newTestGate(t)
	tok := login(t, tokens, registry, "u-root")

	users["u-root"].IsAdmin = false

	if c := gate.Classify(context.Background(), tok.Value); c.Role != Authenticated {
		t.Errorf("Role = %v after demotion, want %v", c.Role, Authenticated)
	}
}

func TestGuards(t *testing.T) {
	tests := []struct {
		name       string
		caller     Caller
		sessionErr error
		adminErr   error
	}{
		{name: "anonymous", caller: Caller{Role: Anonymous}, sessionErr: domain.ErrUnauthorized, adminErr: domain.ErrUnauthorized},
		{name: "user", caller: Caller{Role: Authenticated, UserID: "u"}, adminErr: domain.ErrForbidden},
		{name: "admin", caller: Caller{Role: Admin, UserID: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RequireSession(tt.caller); !errors.Is(err, tt.sessionErr) || (err == nil) != (tt.sessionErr == nil) {
				t.Errorf("RequireSession() = %v, want %v", err, tt.sessionErr)
			}
			if err := RequireAdmin(tt.caller); !errors.Is(err, tt.adminErr) || (err == nil) != (tt.adminErr == nil) {
				t.Errorf("RequireAdmin() = %v, want %v", err, tt.adminErr)
			}
		})
	}
}

func TestCallerContext(t *testing.T) {
	if c := CallerFrom(context.Background()); c.Role != Anonymous {
		t.Errorf("empty context Role = %v, want anonymous", c.Role)
	}

	ctx := WithCaller(context.Background(), Caller{Role: Admin, UserID: "a"})
	if c := CallerFrom(ctx); c.Role != Admin || c.UserID != "a" {
		t.Errorf("CallerFrom() = %+v", c)
	}
}

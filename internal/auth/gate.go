// Package auth classifies callers from their session token and provides the
// guards handlers use to short-circuit unauthorized requests.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/session"
)

type Role int

const (
	Anonymous Role = iota
	Authenticated
	Admin
)

func (r Role) String() string {
	switch r {
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "anonymous"
	}
}

// Caller is the outcome of classifying a request.
type Caller struct {
	Role     Role
	UserID   string
	Username string
	TokenID  string
}

var anonymous = Caller{Role: Anonymous}

// UserLookup resolves the account behind a token subject.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Gate turns a raw token into a Caller.
type Gate struct {
	tokens   *session.Manager
	registry session.Registry
	users    UserLookup
	logger   logger.Logger
}

func NewGate(tokens *session.Manager, registry session.Registry, users UserLookup, log logger.Logger) *Gate {
	return &Gate{
		tokens:   tokens,
		registry: registry,
		users:    users,
		logger:   log,
	}
}

// Classify never fails: any token that is missing, invalid, revoked or whose
// user no longer exists yields an anonymous caller. The admin flag is read
// from the current user record, so a demotion applies to live sessions.
func (g *Gate) Classify(ctx context.Context, raw string) Caller {
	if raw == "" {
		return anonymous
	}

	claims, err := g.tokens.Parse(raw)
	if err != nil {
		g.logger.Debug("rejected session token", logger.Error(err))
		return anonymous
	}

	active, err := g.registry.Active(ctx, claims.ID)
	if err != nil {
		g.logger.Warn("session registry lookup failed", logger.Error(err))
		return anonymous
	}
	if !active {
		return anonymous
	}

	u, err := g.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.Warn("session user lookup failed",
				logger.String("user_id", claims.Subject),
				logger.Error(err))
		}
		return anonymous
	}

	c := Caller{
		Role:     Authenticated,
		UserID:   u.ID,
		Username: u.Username,
		TokenID:  claims.ID,
	}
	if u.IsAdmin {
		c.Role = Admin
	}
	return c
}

// RequireSession fails unless the caller is signed in.
func RequireSession(c Caller) error {
	if c.Role == Anonymous {
		return fmt.Errorf("%w: sign in required", domain.ErrUnauthorized)
	}
	return nil
}

// RequireAdmin fails with ErrUnauthorized for anonymous callers and
// ErrForbidden for signed-in non-admins.
func RequireAdmin(c Caller) error {
	if err := RequireSession(c); err != nil {
		return err
	}
	if c.Role != Admin {
		return fmt.Errorf("%w: admin only", domain.ErrForbidden)
	}
	return nil
}

type ctxKey struct{}

// WithCaller stores c in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// CallerFrom returns the caller stored in ctx, or an anonymous one.
func CallerFrom(ctx context.Context) Caller {
	if c, ok := ctx.Value(ctxKey{}).(Caller); ok {
		return c
	}
	return anonymous
}

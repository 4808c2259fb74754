package session

import (
	"context"
	"sync"
	"time"
)

// Registry records live token ids so that a signed token can be revoked
// before it expires.
type Registry interface {
	Add(ctx context.Context, tokenID, userID string, expiresAt time.Time) error
	Active(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string) error
	// RevokeUser drops every session of userID and reports how many.
	RevokeUser(ctx context.Context, userID string) (int, error)
}

type entry struct {
	userID    string
	expiresAt time.Time
}

// MemoryRegistry keeps sessions in process memory. Entries past their expiry
// are treated as inactive and removed by Sweep.
type MemoryRegistry struct {
	mu        sync.RWMutex
	sessions  map[string]entry // token id -> entry
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

func (r *MemoryRegistry) Add(_ context.Context, tokenID, userID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[tokenID] = entry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *MemoryRegistry) Active(_ context.Context, tokenID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[tokenID]
	return ok && r.now().Before(e.expiresAt), nil
}

func (r *MemoryRegistry) Revoke(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, tokenID)
	return nil
}

func (r *MemoryRegistry) RevokeUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.sessions {
		if e.userID == userID {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (r *MemoryRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := 0
	for id, e := range r.sessions {
		if !now.Before(e.expiresAt) {
			delete(r.sessions, id)
			n++
		}
	}
	r.lastSweep = now
	return n
}

// Count returns the number of tracked sessions, expired ones included.
func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// LastSweep returns when Sweep last ran.
func (r *MemoryRegistry) LastSweep() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastSweep
}

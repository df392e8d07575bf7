package app

import (
	"context"
	"sync"
	"time"

	"assessment-engine/internal/domain"
)

// LocalStartGuard is an in-process lease table. Expired leases are reclaimed
// on the next Acquire for the same key.
type LocalStartGuard struct {
	mu     sync.Mutex
	now    func() time.Time
	leases map[string]lease
	seq    uint64
}

type lease struct {
	id        uint64
	expiresAt time.Time
}

func NewLocalStartGuard() *LocalStartGuard {
	return &LocalStartGuard{now: time.Now, leases: make(map[string]lease)}
}

func (g *LocalStartGuard) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if held, ok := g.leases[key]; ok && held.expiresAt.After(now) {
		return nil, domain.ErrStartInProgress
	}
	g.seq++
	mine := lease{id: g.seq, expiresAt: now.Add(ttl)}
	g.leases[key] = mine

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if cur, ok := g.leases[key]; ok && cur.id == mine.id {
			delete(g.leases, key)
		}
	}, nil
}

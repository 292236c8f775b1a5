package memory

import (
	"context"
	"sync"
)

// OnceGuard remembers keys for the life of the process
type OnceGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewOnceGuard() *OnceGuard {
	return &OnceGuard{seen: make(map[string]struct{})}
}

func (g *OnceGuard) First(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = struct{}{}
	return true, nil
}

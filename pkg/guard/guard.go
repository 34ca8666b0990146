package guard

import (
	"sync"
)

// Guard tracks the transitions applied in one synthesis run. It is safe for
// concurrent use, though a run normally uses it from a single goroutine.
type Guard struct {
	mu         sync.Mutex
	seen       map[pair]struct{}
	duplicates int
}

type pair struct {
	hash      string
	signature string
}

// New creates an empty guard.
func New() *Guard {
	return &Guard{seen: make(map[pair]struct{})}
}

// Seen records (hashBefore, signature) and reports whether the pair had
// already been recorded in this run.
func (g *Guard) Seen(hashBefore, signature string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := pair{hash: hashBefore, signature: signature}
	if _, ok := g.seen[p]; ok {
		g.duplicates++
		return true
	}
	g.seen[p] = struct{}{}
	return false
}

// Len returns the number of distinct transitions recorded.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// Duplicates returns how many repeats were short-circuited.
func (g *Guard) Duplicates() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.duplicates
}

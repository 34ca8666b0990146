package semantic

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"mercator-hq/gatekeeper/pkg/document"
)

// CachedAnalyzer memoizes successful findings by (question, excerpt). Failed
// calls are never cached so that a later call may succeed.
type CachedAnalyzer struct {
	next  Analyzer
	cache *lru.Cache[string, Finding]
}

// NewCachedAnalyzer wraps next with an LRU cache holding up to size findings.
func NewCachedAnalyzer(next Analyzer, size int) (*CachedAnalyzer, error) {
	if next == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}
	cache, err := lru.New[string, Finding](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}
	return &CachedAnalyzer{next: next, cache: cache}, nil
}

// Analyze returns a cached finding or delegates to the wrapped analyzer.
func (c *CachedAnalyzer) Analyze(ctx context.Context, excerpt, question string) (Finding, error) {
	key := document.HashParts(question, excerpt)
	if f, ok := c.cache.Get(key); ok {
		return f, nil
	}
	f, err := c.next.Analyze(ctx, excerpt, question)
	if err != nil {
		return Finding{}, err
	}
	c.cache.Add(key, f)
	return f, nil
}

// Len returns the number of cached findings.
func (c *CachedAnalyzer) Len() int {
	return c.cache.Len()
}

package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Item is one document in a batch.
type Item struct {
	// ID identifies the item for Cancel and in results. Empty ids are
	// replaced by the item's index.
	ID      string
	Request Request
}

// ItemResult is the outcome of one batch item.
type ItemResult struct {
	ID     string
	Result *Result
	Err    error
}

// Batch runs many independent syntheses on a bounded worker pool.
type Batch struct {
	engine  *Engine
	workers int
	logger  *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	onDone func(ItemResult)
}

// NewBatch creates a batch driver. workers below one default to GOMAXPROCS.
func NewBatch(engine *Engine, workers int, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Batch{
		engine:  engine,
		workers: workers,
		logger:  logger.With("component", "synthesis.batch"),
		cancels: make(map[string]context.CancelFunc),
	}
}

// OnItemDone registers fn to be called as each item finishes. fn runs on
// worker goroutines and must be safe for concurrent use. It must be set
// before Run.
func (b *Batch) OnItemDone(fn func(ItemResult)) {
	b.onDone = fn
}

// Run synthesizes every item and returns results in input order. A failing
// or cancelled item never affects its siblings.
func (b *Batch) Run(ctx context.Context, items []Item) []ItemResult {
	results := make([]ItemResult, len(items))
	ctxs := make([]context.Context, len(items))

	b.mu.Lock()
	for i, item := range items {
		id := item.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		results[i].ID = id
		if _, dup := b.cancels[id]; dup {
			results[i].Err = fmt.Errorf("%w: %q", ErrDuplicateItem, id)
			continue
		}
		itemCtx, cancel := context.WithCancel(ctx)
		ctxs[i] = itemCtx
		b.cancels[id] = cancel
	}
	b.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i := range items {
		if ctxs[i] == nil {
			continue
		}
		g.Go(func() error {
			defer b.release(results[i].ID)
			res, err := b.engine.Synthesize(ctxs[i], items[i].Request)
			results[i].Result = res
			results[i].Err = err
			if err != nil {
				b.logger.Warn("batch item failed", "id", results[i].ID, "error", err)
			}
			if b.onDone != nil {
				b.onDone(results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	b.logger.Info("batch completed", "items", len(items), "workers", b.workers)
	return results
}

// Cancel stops the item with the given id before its next iteration. It
// reports whether the item was pending or running.
func (b *Batch) Cancel(id string) bool {
	b.mu.Lock()
	cancel, ok := b.cancels[id]
	b.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (b *Batch) release(id string) {
	b.mu.Lock()
	cancel, ok := b.cancels[id]
	delete(b.cancels, id)
	b.mu.Unlock()
	if ok {
		cancel()
	}
}

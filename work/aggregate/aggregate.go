// Package aggregate fans one search query out across many sources under a
// bounded concurrency cap, deduplicates results across the whole session,
// and streams batches back to the caller as sources complete.
package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"vodmux/work/config"
	"vodmux/work/logger"
	"vodmux/work/metrics"
	"vodmux/work/types"
)

// DefaultCap is the concurrency cap used when the caller passes none.
const DefaultCap = 3

// SearchFunc performs one per-source search. Implementations own their
// timeouts and retries; a returned error is a source failure, never fatal to
// the session.
type SearchFunc func(ctx context.Context, query string, src *config.SourceConfig) ([]types.CatalogItem, error)

// BatchFunc receives each deduplicated batch as soon as its source task
// completes. It is never invoked concurrently with itself and never after
// the session's context is cancelled.
type BatchFunc func(items []types.CatalogItem)

// Aggregator runs aggregated searches over a search function.
type Aggregator struct {
	search SearchFunc
	limit  int
}

// New creates an Aggregator with the given default concurrency cap.
func New(search SearchFunc, limit int) *Aggregator {
	if limit <= 0 {
		limit = DefaultCap
	}
	return &Aggregator{search: search, limit: limit}
}

// session is the transient per-search state: dedup set, accumulated results,
// and the delivery lock gating onBatch against cancellation.
type session struct {
	ctx     context.Context
	seen    *xsync.MapOf[string, struct{}]
	mu      sync.Mutex
	results []types.CatalogItem
	onBatch BatchFunc
}

// Run searches all given sources concurrently, never exceeding the cap in
// simultaneous in-flight source queries. Each source's deduplicated batch is
// handed to onBatch as it arrives. Per-source failures contribute empty
// batches; the only error Run returns is the context's cancellation error.
// Cancelled sessions let in-flight tasks finish internally but discard their
// output and stop invoking onBatch.
func (a *Aggregator) Run(ctx context.Context, query string, sources []*config.SourceConfig, onBatch BatchFunc) ([]types.CatalogItem, error) {
	return a.RunCapped(ctx, query, sources, a.limit, onBatch)
}

// RunCapped is Run with an explicit concurrency cap for this session.
func (a *Aggregator) RunCapped(ctx context.Context, query string, sources []*config.SourceConfig, limit int, onBatch BatchFunc) ([]types.CatalogItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		logger.Warn("{aggregate - Run} No sources selected for query %q", query)
		return []types.CatalogItem{}, nil
	}
	if limit <= 0 {
		limit = a.limit
	}

	pool, err := ants.NewPool(limit)
	if err != nil {
		return nil, err
	}

	sess := &session{
		ctx:     ctx,
		seen:    xsync.NewMapOf[string, struct{}](),
		onBatch: onBatch,
	}

	var wg sync.WaitGroup
	for _, src := range sources {
		src := src
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			a.runSource(sess, query, src)
		}); err != nil {
			wg.Done()
			logger.Error("{aggregate - Run} Failed to submit task for source %s: %v", src.ID, err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		pool.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Pending tasks run to completion in the background; the session
		// lock keeps their output from reaching the caller.
		return nil, ctx.Err()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.results, nil
}

// runSource executes one source task: search, dedup, deliver.
func (a *Aggregator) runSource(sess *session, query string, src *config.SourceConfig) {
	if sess.ctx.Err() != nil {
		return
	}

	metrics.InFlightFetches.Inc()
	start := time.Now()
	items, err := a.search(sess.ctx, query, src)
	metrics.InFlightFetches.Dec()
	metrics.SourceSearchDuration.WithLabelValues(src.ID).Observe(time.Since(start).Seconds())

	if err != nil {
		if sess.ctx.Err() == nil {
			logger.Warn("{aggregate - runSource} Source %s search failed: %v", src.Name, err)
			metrics.SourceErrors.WithLabelValues(src.ID, "search").Inc()
		}
		return
	}

	fresh := make([]types.CatalogItem, 0, len(items))
	for _, item := range items {
		if _, loaded := sess.seen.LoadOrStore(item.DedupKey(), struct{}{}); loaded {
			metrics.ItemsDeduplicated.WithLabelValues(src.ID).Inc()
			continue
		}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return
	}

	// Delivery and the cancellation check share one lock so no batch can
	// slip out after the session is cancelled.
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.ctx.Err() != nil {
		return
	}
	metrics.SearchResults.WithLabelValues(src.ID).Add(float64(len(fresh)))
	if sess.onBatch != nil {
		sess.onBatch(fresh)
	}
	sess.results = append(sess.results, fresh...)
}

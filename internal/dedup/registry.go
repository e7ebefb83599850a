// Package dedup tracks which mention identities have already been processed
// within a rolling window, so the same project surfacing repeatedly from one
// source produces a single notification.
package dedup

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

// DefaultWindow is the retention window for seen entries.
const DefaultWindow = 24 * time.Hour

// Registry is a thread-safe seen-set keyed on (source, identifier). Insertion
// and age-based eviction are the only mutations; the registry is never
// cleared wholesale, because that would reopen a reprocessing window for
// mentions that arrived within the same period.
type Registry struct {
	logger *zap.Logger
	window time.Duration

	mu   sync.Mutex
	seen map[types.Key]time.Time
}

// New creates a Registry with the given retention window. A non-positive
// window falls back to DefaultWindow.
func New(logger *zap.Logger, window time.Duration) *Registry {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Registry{
		logger: logger.Named("dedup"),
		window: window,
		seen:   make(map[types.Key]time.Time),
	}
}

// Has reports whether the mention identity was marked within the window.
func (r *Registry) Has(source, identifier string) bool {
	key := types.Key{Source: source, Identifier: identifier}
	r.mu.Lock()
	defer r.mu.Unlock()
	seenAt, ok := r.seen[key]
	return ok && time.Since(seenAt) < r.window
}

// MarkSeen records the mention identity as processed.
func (r *Registry) MarkSeen(source, identifier string) {
	key := types.Key{Source: source, Identifier: identifier}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[key] = time.Now()
}

// TryMark atomically checks whether the identity was seen within the window
// and, if not, marks it. Returns true when the caller should process the
// mention. The check-and-mark is a single critical section to avoid a TOCTOU
// race between concurrent scan batches.
func (r *Registry) TryMark(source, identifier string) bool {
	key := types.Key{Source: source, Identifier: identifier}
	r.mu.Lock()
	defer r.mu.Unlock()
	if seenAt, ok := r.seen[key]; ok && time.Since(seenAt) < r.window {
		dedupDroppedTotal.WithLabelValues(source).Inc()
		return false
	}
	r.seen[key] = time.Now()
	return true
}

// Sweep evicts entries older than maxAge and returns the number removed.
// A non-positive maxAge uses the registry window.
func (r *Registry) Sweep(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = r.window
	}
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, seenAt := range r.seen {
		if seenAt.Before(cutoff) {
			delete(r.seen, key)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("Swept dedup registry",
			zap.Int("removed", removed),
			zap.Int("remaining", len(r.seen)),
		)
	}
	return removed
}

// Len returns the number of tracked entries, including any not yet swept.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

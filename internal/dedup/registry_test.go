package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

func TestRegistry_TryMark(t *testing.T) {
	r := New(zap.NewNop(), time.Hour)

	assert.True(t, r.TryMark("coingecko", "abc"))
	assert.False(t, r.TryMark("coingecko", "abc"), "second mark within window must be rejected")
	assert.True(t, r.TryMark("forum", "abc"), "same identifier from another source is a distinct mention")
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_HasAndMarkSeen(t *testing.T) {
	r := New(zap.NewNop(), time.Hour)

	assert.False(t, r.Has("x", "abc"))
	r.MarkSeen("x", "abc")
	assert.True(t, r.Has("x", "abc"))
}

func TestRegistry_WindowExpiry(t *testing.T) {
	r := New(zap.NewNop(), 10*time.Millisecond)

	require.True(t, r.TryMark("x", "abc"))
	time.Sleep(20 * time.Millisecond)

	// The entry aged out of the window, so the identity may be processed again
	// even before a sweep physically removes it.
	assert.False(t, r.Has("x", "abc"))
	assert.True(t, r.TryMark("x", "abc"))
}

func TestRegistry_SweepEvictsOnlyAgedEntries(t *testing.T) {
	r := New(zap.NewNop(), time.Hour)

	r.MarkSeen("x", "old")
	r.mu.Lock()
	r.seen[types.Key{Source: "x", Identifier: "old"}] = time.Now().Add(-2 * time.Hour)
	r.mu.Unlock()
	r.MarkSeen("x", "fresh")

	removed := r.Sweep(time.Hour)
	assert.Equal(t, 1, removed)
	assert.True(t, r.Has("x", "fresh"), "sweep must not clear entries inside the retention window")
	assert.False(t, r.Has("x", "old"))
}

func TestRegistry_ConcurrentTryMark(t *testing.T) {
	r := New(zap.NewNop(), time.Hour)

	const goroutines = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryMark("x", "contended") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one goroutine may win the mark")
}

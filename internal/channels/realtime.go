// Package channels implements the delivery endpoints. Each channel satisfies
// the delivery.Channel interface and classifies its failures as retryable or
// permanent.
package channels

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

const defaultRealtimeBuffer = 64

// Realtime fans delivered notifications out to in-process subscribers. It is
// always configured; a subscriber that cannot keep up has notifications
// dropped rather than blocking the delivery workers.
type Realtime struct {
	logger *zap.Logger
	buffer int

	mu   sync.RWMutex
	subs map[int]chan types.Notification
	next int
}

func NewRealtime(logger *zap.Logger, buffer int) *Realtime {
	if buffer <= 0 {
		buffer = defaultRealtimeBuffer
	}
	return &Realtime{
		logger: logger.Named("realtime"),
		buffer: buffer,
		subs:   make(map[int]chan types.Notification),
	}
}

func (r *Realtime) Name() string       { return "realtime" }
func (r *Realtime) IsConfigured() bool { return true }

// Subscribe registers a new receiver. The cancel function removes the
// subscription and closes the channel.
func (r *Realtime) Subscribe() (<-chan types.Notification, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	ch := make(chan types.Notification, r.buffer)
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (r *Realtime) Send(_ context.Context, n types.Notification) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- n:
		default:
			r.logger.Warn("Realtime subscriber lagging, notification dropped",
				zap.String("id", n.ID))
		}
	}
	return nil
}

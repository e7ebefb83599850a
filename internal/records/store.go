// Package records persists the write-once delivery audit trail. Exactly one
// record exists per terminal delivery job.
package records

import (
	"sync"
	"time"

	"github.com/coinsentry/coinsentry/internal/types"
)

// Store persists delivery records. Implementations must tolerate concurrent
// Save and Sweep calls.
type Store interface {
	Save(rec types.DeliveryRecord) error
	Get(notificationID string) (types.DeliveryRecord, bool, error)
	List(limit int) ([]types.DeliveryRecord, error)
	Sweep(maxAge time.Duration) (int, error)
	Close() error
}

// Memory is the default in-process Store.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]types.DeliveryRecord
	ordered []string // notification IDs, oldest first
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]types.DeliveryRecord)}
}

func (m *Memory) Save(rec types.DeliveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[rec.NotificationID]; !exists {
		m.ordered = append(m.ordered, rec.NotificationID)
	}
	m.byID[rec.NotificationID] = rec
	return nil
}

func (m *Memory) Get(notificationID string) (types.DeliveryRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[notificationID]
	return rec, ok, nil
}

// List returns the newest records first, at most limit of them.
func (m *Memory) List(limit int) ([]types.DeliveryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.DeliveryRecord, 0, min(limit, len(m.ordered)))
	for i := len(m.ordered) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.byID[m.ordered[i]])
	}
	return out, nil
}

func (m *Memory) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.ordered[:0]
	removed := 0
	for _, id := range m.ordered {
		if m.byID[id].StoredAt.Before(cutoff) {
			delete(m.byID, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.ordered = kept
	return removed, nil
}

func (m *Memory) Close() error { return nil }

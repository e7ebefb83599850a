package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

func notification(id string, p types.Priority) types.Notification {
	return types.Notification{ID: id, Priority: p}
}

func TestQueue_HighPriorityImmediatelyEligible(t *testing.T) {
	q := New(zap.NewNop(), Options{SmoothingDelay: time.Minute})

	q.Enqueue(notification("low-1", types.PriorityLow))
	q.Enqueue(notification("high-1", types.PriorityHigh))

	job, ok := q.Dequeue(time.Now())
	require.True(t, ok)
	assert.Equal(t, "high-1", job.Notification.ID)
	assert.Equal(t, StateActive, job.State)
	assert.Equal(t, 1, job.Attempts)

	_, ok = q.Dequeue(time.Now())
	assert.False(t, ok, "low job must wait out the smoothing delay")
}

func TestQueue_SmoothingDelayExpires(t *testing.T) {
	q := New(zap.NewNop(), Options{SmoothingDelay: time.Minute})

	q.Enqueue(notification("med-1", types.PriorityMedium))

	_, ok := q.Dequeue(time.Now())
	require.False(t, ok)

	job, ok := q.Dequeue(time.Now().Add(2 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, "med-1", job.Notification.ID)
}

func TestQueue_PriorityOrderThenArrival(t *testing.T) {
	q := New(zap.NewNop(), Options{SmoothingDelay: time.Nanosecond})

	q.Enqueue(notification("low-1", types.PriorityLow))
	q.Enqueue(notification("med-1", types.PriorityMedium))
	q.Enqueue(notification("med-2", types.PriorityMedium))
	q.Enqueue(notification("high-1", types.PriorityHigh))

	later := time.Now().Add(time.Second)
	var got []string
	for {
		job, ok := q.Dequeue(later)
		if !ok {
			break
		}
		got = append(got, job.Notification.ID)
	}
	assert.Equal(t, []string{"high-1", "med-1", "med-2", "low-1"}, got)
}

func TestQueue_RetryBackoffDoubles(t *testing.T) {
	q := New(zap.NewNop(), Options{BackoffBase: time.Second, MaxAttempts: 3})

	q.Enqueue(notification("high-1", types.PriorityHigh))
	now := time.Now()

	job, ok := q.Dequeue(now)
	require.True(t, ok)

	// First retry delays by base*2^0.
	require.True(t, q.Retry(job, now))
	assert.Equal(t, StateDelayed, job.State)
	_, ok = q.Dequeue(now.Add(500 * time.Millisecond))
	assert.False(t, ok)

	job, ok = q.Dequeue(now.Add(1100 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 2, job.Attempts)

	// Second retry delays by base*2^1.
	now2 := now.Add(1100 * time.Millisecond)
	require.True(t, q.Retry(job, now2))
	_, ok = q.Dequeue(now2.Add(1500 * time.Millisecond))
	assert.False(t, ok)
	job, ok = q.Dequeue(now2.Add(2100 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 3, job.Attempts)
}

func TestQueue_RetryExhaustionFailsTerminally(t *testing.T) {
	q := New(zap.NewNop(), Options{BackoffBase: time.Nanosecond, MaxAttempts: 2})

	q.Enqueue(notification("high-1", types.PriorityHigh))
	now := time.Now()

	job, ok := q.Dequeue(now)
	require.True(t, ok)
	require.True(t, q.Retry(job, now))

	job, ok = q.Dequeue(now.Add(time.Second))
	require.True(t, ok)
	require.Equal(t, 2, job.Attempts)

	assert.False(t, q.Retry(job, now), "attempt limit reached")
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, 0, q.InFlight(), "terminal jobs leave the queue")
}

func TestQueue_DrainStopsDequeueAndAbandonsPending(t *testing.T) {
	q := New(zap.NewNop(), Options{})

	q.Enqueue(notification("active-1", types.PriorityHigh))
	active, ok := q.Dequeue(time.Now())
	require.True(t, ok)
	q.Enqueue(notification("pending-1", types.PriorityHigh))

	abandoned := q.Drain()
	require.Len(t, abandoned, 1)
	assert.Equal(t, "pending-1", abandoned[0].Notification.ID)
	assert.Equal(t, StateFailed, abandoned[0].State)

	_, ok = q.Dequeue(time.Now())
	assert.False(t, ok, "no job is handed out once draining")
	assert.Equal(t, 1, q.InFlight(), "only the active job remains")

	q.Complete(active)
	assert.Equal(t, 0, q.InFlight())
}

func TestQueue_RetryDuringDrainFailsTerminally(t *testing.T) {
	q := New(zap.NewNop(), Options{MaxAttempts: 5})

	q.Enqueue(notification("high-1", types.PriorityHigh))
	job, ok := q.Dequeue(time.Now())
	require.True(t, ok)
	q.Drain()

	assert.False(t, q.Retry(job, time.Now()), "draining queues do not requeue")
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, 0, q.InFlight())
}

func TestQueue_FailSettlesActiveJob(t *testing.T) {
	q := New(zap.NewNop(), Options{})

	q.Enqueue(notification("high-1", types.PriorityHigh))
	job, ok := q.Dequeue(time.Now())
	require.True(t, ok)

	q.Fail(job)
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, 0, q.InFlight())
}

func TestQueue_CompleteSettles(t *testing.T) {
	q := New(zap.NewNop(), Options{})

	q.Enqueue(notification("high-1", types.PriorityHigh))
	require.Equal(t, 1, q.InFlight())

	job, ok := q.Dequeue(time.Now())
	require.True(t, ok)
	assert.Equal(t, 1, q.InFlight(), "active jobs still count as in flight")

	q.Complete(job)
	assert.Equal(t, StateCompleted, job.State)
	assert.Equal(t, 0, q.InFlight())
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_ArrivalOrderStableUnderLoad(t *testing.T) {
	q := New(zap.NewNop(), Options{})

	for i := 0; i < 20; i++ {
		q.Enqueue(notification(fmt.Sprintf("high-%02d", i), types.PriorityHigh))
	}

	now := time.Now()
	for i := 0; i < 20; i++ {
		job, ok := q.Dequeue(now)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("high-%02d", i), job.Notification.ID)
		q.Complete(job)
	}
}

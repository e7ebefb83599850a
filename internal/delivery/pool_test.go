package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/prefs"
	"github.com/coinsentry/coinsentry/internal/queue"
	"github.com/coinsentry/coinsentry/internal/records"
	"github.com/coinsentry/coinsentry/internal/types"
)

func newTestPool(t *testing.T, channels []Channel, opts queue.Options) (*Pool, *queue.Queue, *records.Memory) {
	t.Helper()
	q := queue.New(zap.NewNop(), opts)
	store := records.NewMemory()
	router := NewRouter(zap.NewNop(), prefs.NewStatic(prefs.Default()), channels)
	return NewPool(zap.NewNop(), q, router, store, PoolOptions{Concurrency: 1}), q, store
}

// runOne drives a single delivery attempt through the pool synchronously.
func runOne(t *testing.T, p *Pool, q *queue.Queue, now time.Time) {
	t.Helper()
	job, ok := q.Dequeue(now)
	require.True(t, ok)
	p.process(context.Background(), job)
}

func highNotification(id string) types.Notification {
	return types.Notification{ID: id, Priority: types.PriorityHigh}
}

func TestPool_SuccessfulDelivery(t *testing.T) {
	channels := []Channel{
		&stubChannel{name: "realtime", configured: true},
		&stubChannel{name: "telegram", configured: true},
		&stubChannel{name: "slack", configured: true},
	}
	p, q, store := newTestPool(t, channels, queue.Options{})

	q.Enqueue(highNotification("n-1"))
	runOne(t, p, q, time.Now())

	rec, ok, err := store.Get("n-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, rec.SuccessCount)
	assert.Equal(t, 0, rec.FailureCount)
	assert.Equal(t, 1, rec.Attempts)
	assert.False(t, rec.Failed)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, int64(1), stats.PerChannel["telegram"].Sent)
}

func TestPool_RetryableFailureRetriesOnlyFailedChannel(t *testing.T) {
	var telegramCalls, realtimeCalls int
	channels := []Channel{
		&stubChannel{name: "realtime", configured: true, send: func(context.Context, types.Notification) error {
			realtimeCalls++
			return nil
		}},
		&stubChannel{name: "telegram", configured: true, send: func(context.Context, types.Notification) error {
			telegramCalls++
			if telegramCalls == 1 {
				return Retryable("telegram", errors.New("upstream 502"))
			}
			return nil
		}},
	}
	p, q, store := newTestPool(t, channels, queue.Options{BackoffBase: time.Nanosecond})

	q.Enqueue(highNotification("n-1"))
	now := time.Now()
	runOne(t, p, q, now)

	_, ok, err := store.Get("n-1")
	require.NoError(t, err)
	assert.False(t, ok, "no record until the job is terminal")
	require.Equal(t, 1, q.InFlight(), "job requeued as delayed")

	runOne(t, p, q, now.Add(time.Second))

	rec, ok, err := store.Get("n-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, rec.SuccessCount)
	assert.Equal(t, 2, rec.Attempts)
	assert.False(t, rec.Failed)
	assert.Equal(t, 1, realtimeCalls, "succeeded channels are not re-sent")
	assert.Equal(t, 2, telegramCalls)
}

func TestPool_PermanentFailureDoesNotRetry(t *testing.T) {
	channels := []Channel{
		&stubChannel{name: "realtime", configured: true},
		&stubChannel{name: "telegram", configured: true, send: func(context.Context, types.Notification) error {
			return Permanent("telegram", errors.New("chat not found"))
		}},
	}
	p, q, store := newTestPool(t, channels, queue.Options{})

	q.Enqueue(highNotification("n-1"))
	runOne(t, p, q, time.Now())

	rec, ok, err := store.Get("n-1")
	require.NoError(t, err)
	require.True(t, ok, "permanent failures settle immediately")
	assert.Equal(t, 1, rec.SuccessCount)
	assert.Equal(t, 1, rec.FailureCount)
	assert.Equal(t, 1, rec.Attempts)
	assert.False(t, rec.Failed, "a channel failure is not a job failure")
	assert.Equal(t, 0, q.InFlight())
}

func TestPool_ExhaustedRetriesFailJob(t *testing.T) {
	channels := []Channel{
		&stubChannel{name: "realtime", configured: true, send: func(context.Context, types.Notification) error {
			return Retryable("realtime", errors.New("broadcast buffer full"))
		}},
	}
	p, q, store := newTestPool(t, channels, queue.Options{BackoffBase: time.Nanosecond, MaxAttempts: 2})

	q.Enqueue(highNotification("n-1"))
	now := time.Now()
	runOne(t, p, q, now)
	runOne(t, p, q, now.Add(time.Second))

	rec, ok, err := store.Get("n-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Failed)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, int64(1), p.Stats().Failed)
	assert.Equal(t, 0, q.InFlight())
}

func TestPool_ShutdownSettlesRetryableJobAsFailed(t *testing.T) {
	channels := []Channel{
		&stubChannel{name: "realtime", configured: true, send: func(context.Context, types.Notification) error {
			return Retryable("realtime", errors.New("stream closed"))
		}},
	}
	p, q, store := newTestPool(t, channels, queue.Options{})

	q.Enqueue(highNotification("n-1"))
	job, ok := q.Dequeue(time.Now())
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.process(ctx, job)

	assert.Equal(t, queue.StateFailed, job.State, "job state matches the audit record")
	rec, ok, err := store.Get("n-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Failed)
	assert.Equal(t, 0, q.InFlight())
}

func TestPool_AbandonRecordsUndeliveredJobs(t *testing.T) {
	channels := []Channel{&stubChannel{name: "realtime", configured: true}}
	p, q, store := newTestPool(t, channels, queue.Options{SmoothingDelay: time.Minute})

	q.Enqueue(types.Notification{ID: "n-1", Priority: types.PriorityLow})
	abandoned := q.Drain()
	require.Len(t, abandoned, 1)

	p.Abandon(abandoned)

	rec, ok, err := store.Get("n-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Failed)
	assert.Zero(t, rec.SuccessCount, "no channel was attempted")
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPool_NotConfiguredChannelsRecorded(t *testing.T) {
	channels := []Channel{
		&stubChannel{name: "realtime", configured: true},
		&stubChannel{name: "telegram", configured: false},
	}
	p, q, store := newTestPool(t, channels, queue.Options{})

	n := highNotification("n-1")
	n.RequestedChannels = []string{"realtime", "telegram"}
	q.Enqueue(n)
	runOne(t, p, q, time.Now())

	rec, ok, err := store.Get("n-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, rec.PerChannel, 2)

	statuses := map[string]types.ChannelStatus{}
	for _, res := range rec.PerChannel {
		statuses[res.Channel] = res.Status
	}
	assert.Equal(t, types.ChannelSuccess, statuses["realtime"])
	assert.Equal(t, types.ChannelNotConfigured, statuses["telegram"])
	assert.Equal(t, 1, rec.SuccessCount)
	assert.Equal(t, 0, rec.FailureCount, "not_configured is not a failure")
}

func TestPool_WorkersDrainQueue(t *testing.T) {
	channels := []Channel{&stubChannel{name: "realtime", configured: true}}
	p, q, _ := newTestPool(t, channels, queue.Options{})
	p.opts.PollInterval = 5 * time.Millisecond

	for i := 0; i < 10; i++ {
		q.Enqueue(highNotification(string(rune('a' + i))))
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	require.Eventually(t, func() bool { return q.InFlight() == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	p.Wait()

	assert.Equal(t, int64(10), p.Stats().Sent)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Retryable("x", errors.New("boom"))))
	assert.False(t, IsRetryable(Permanent("x", errors.New("boom"))))
	assert.True(t, IsRetryable(errors.New("unclassified")), "unknown errors default to retryable")
}

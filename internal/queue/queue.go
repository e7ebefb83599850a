// Package queue implements the priority-tiered delivery queue. Jobs move
// queued → active → completed, or back through delayed on retry until
// attempts are exhausted and the job fails. Once Drain is called no further
// job is handed out; pending jobs settle as failed.
package queue

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

// JobState is the lifecycle state of one delivery job.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateActive    JobState = "active"
	StateDelayed   JobState = "delayed"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Job is one notification's trip through delivery. Fields are owned by the
// queue; callers read them only between Dequeue and Complete/Retry.
type Job struct {
	Notification types.Notification
	State        JobState
	Attempts     int

	eligibleAt time.Time
	seq        uint64
}

// Options tune queue timing. Zero values take the documented defaults.
type Options struct {
	SmoothingDelay time.Duration // medium/low eligibility delay
	BackoffBase    time.Duration
	MaxAttempts    int
}

func (o *Options) fill() {
	if o.SmoothingDelay == 0 {
		o.SmoothingDelay = 5 * time.Second
	}
	if o.BackoffBase == 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
}

// Queue orders jobs by priority rank, then by arrival. High priority jobs are
// eligible immediately; medium and low wait out the smoothing delay so bursts
// of routine mentions do not crowd the workers.
type Queue struct {
	logger *zap.Logger
	opts   Options

	mu       sync.Mutex
	pending  []*Job
	active   int
	nextSeq  uint64
	draining bool
}

func New(logger *zap.Logger, opts Options) *Queue {
	opts.fill()
	return &Queue{logger: logger.Named("queue"), opts: opts}
}

// Enqueue admits a notification as a new queued job.
func (q *Queue) Enqueue(n types.Notification) *Job {
	now := time.Now()
	job := &Job{
		Notification: n,
		State:        StateQueued,
		eligibleAt:   now,
	}
	if n.Priority != types.PriorityHigh {
		job.eligibleAt = now.Add(q.opts.SmoothingDelay)
	}

	q.mu.Lock()
	job.seq = q.nextSeq
	q.nextSeq++
	q.pending = append(q.pending, job)
	depth := len(q.pending)
	q.mu.Unlock()

	enqueuedTotal.WithLabelValues(string(n.Priority)).Inc()
	queueDepth.Set(float64(depth))

	q.logger.Debug("Notification enqueued",
		zap.String("id", n.ID),
		zap.String("priority", string(n.Priority)),
	)
	return job
}

// Dequeue hands out the most urgent eligible job, marking it active. Among
// eligible jobs the highest priority rank wins; ties break on arrival order.
func (q *Queue) Dequeue(now time.Time) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		return nil, false
	}

	best := -1
	for i, job := range q.pending {
		if job.eligibleAt.After(now) {
			continue
		}
		if best == -1 || moreUrgent(job, q.pending[best]) {
			best = i
		}
	}
	if best == -1 {
		return nil, false
	}

	job := q.pending[best]
	q.pending = append(q.pending[:best], q.pending[best+1:]...)
	job.State = StateActive
	job.Attempts++
	q.active++
	queueDepth.Set(float64(len(q.pending)))
	return job, true
}

func moreUrgent(a, b *Job) bool {
	ra, rb := a.Notification.Priority.Rank(), b.Notification.Priority.Rank()
	if ra != rb {
		return ra > rb
	}
	return a.seq < b.seq
}

// Complete marks an active job terminally delivered.
func (q *Queue) Complete(job *Job) {
	q.mu.Lock()
	q.active--
	q.mu.Unlock()
	job.State = StateCompleted
}

// Fail settles an active job as terminally failed without another attempt.
func (q *Queue) Fail(job *Job) {
	q.mu.Lock()
	q.active--
	q.mu.Unlock()
	job.State = StateFailed
	failedTotal.WithLabelValues(string(job.Notification.Priority)).Inc()
}

// Drain switches the queue into shutdown mode: Dequeue hands out nothing
// further, Retry fails instead of requeueing, and every job still pending is
// returned to the caller marked failed. Active jobs are unaffected.
func (q *Queue) Drain() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.draining = true
	abandoned := q.pending
	q.pending = nil
	for _, job := range abandoned {
		job.State = StateFailed
		failedTotal.WithLabelValues(string(job.Notification.Priority)).Inc()
	}
	queueDepth.Set(0)
	if len(abandoned) > 0 {
		q.logger.Warn("Draining queue with undelivered jobs",
			zap.Int("abandoned", len(abandoned)))
	}
	return abandoned
}

// Retry puts a failed active job back as delayed with exponential backoff,
// or fails it terminally once attempts are exhausted. Returns true if the
// job was requeued.
func (q *Queue) Retry(job *Job, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active--
	if q.draining || job.Attempts >= q.opts.MaxAttempts {
		job.State = StateFailed
		failedTotal.WithLabelValues(string(job.Notification.Priority)).Inc()
		q.logger.Warn("Delivery job failed terminally",
			zap.String("id", job.Notification.ID),
			zap.Int("attempts", job.Attempts),
			zap.Bool("draining", q.draining),
		)
		return false
	}

	job.State = StateDelayed
	job.eligibleAt = now.Add(q.opts.BackoffBase << (job.Attempts - 1))
	q.pending = append(q.pending, job)
	queueDepth.Set(float64(len(q.pending)))
	retriedTotal.Inc()
	return true
}

// Pending reports jobs waiting in the queue, eligible or not.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight reports pending plus active jobs. Zero means the queue has fully
// settled, which is what Stop waits for.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + q.active
}

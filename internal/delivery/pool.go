package delivery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/queue"
	"github.com/coinsentry/coinsentry/internal/records"
	"github.com/coinsentry/coinsentry/internal/types"
)

const defaultPollInterval = 50 * time.Millisecond

// PoolOptions configures the worker pool.
type PoolOptions struct {
	Concurrency  int           // default 5
	PollInterval time.Duration // queue polling cadence, default 50ms
}

func (o *PoolOptions) fill() {
	if o.Concurrency == 0 {
		o.Concurrency = 5
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaultPollInterval
	}
}

// jobState carries per-channel progress across retry attempts. The channel
// set is resolved once, on the first attempt; preference changes mid-flight
// do not alter it.
type jobState struct {
	channels      []Channel
	notConfigured []string
	results       map[string]types.ChannelResult
	retriable     map[string]bool // failed channels worth another attempt
}

// ChannelCounts is the per-channel slice of the pool stats.
type ChannelCounts struct {
	Sent   int64
	Failed int64
}

// Pool drains the queue with a fixed set of workers.
type Pool struct {
	logger *zap.Logger
	queue  *queue.Queue
	router *Router
	store  records.Store
	opts   PoolOptions

	mu         sync.Mutex
	states     map[string]*jobState
	perChannel map[string]*ChannelCounts

	sent   atomic.Int64
	failed atomic.Int64

	wg sync.WaitGroup
}

func NewPool(logger *zap.Logger, q *queue.Queue, router *Router, store records.Store, opts PoolOptions) *Pool {
	opts.fill()
	return &Pool{
		logger:     logger.Named("delivery"),
		queue:      q,
		router:     router,
		store:      store,
		opts:       opts,
		states:     make(map[string]*jobState),
		perChannel: make(map[string]*ChannelCounts),
	}
}

// Start launches the workers. Non-blocking; cancel ctx to stop them.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.opts.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("Delivery workers started", zap.Int("concurrency", p.opts.Concurrency))
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		job, ok := p.queue.Dequeue(time.Now())
		if ok {
			p.process(ctx, job)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// process runs one delivery attempt for the job and settles its state.
func (p *Pool) process(ctx context.Context, job *queue.Job) {
	n := job.Notification
	state := p.stateFor(n)

	retryNeeded := false
	for _, ch := range state.channels {
		name := ch.Name()
		if prev, done := state.results[name]; done {
			// Re-send only the channels that failed retryably last attempt.
			if prev.Status == types.ChannelSuccess || !state.retriable[name] {
				continue
			}
		}

		start := time.Now()
		err := ch.Send(ctx, n)
		sendDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err != nil {
			state.results[name] = types.ChannelResult{
				Channel: name,
				Status:  types.ChannelFailed,
				Detail:  err.Error(),
			}
			p.bumpChannel(name, false)
			sendTotal.WithLabelValues(name, "failed").Inc()
			if IsRetryable(err) {
				state.retriable[name] = true
				retryNeeded = true
			} else {
				delete(state.retriable, name)
			}
			p.logger.Warn("Channel send failed",
				zap.String("id", n.ID),
				zap.String("channel", name),
				zap.Bool("retryable", IsRetryable(err)),
				zap.Error(err),
			)
			continue
		}

		delete(state.retriable, name)
		state.results[name] = types.ChannelResult{Channel: name, Status: types.ChannelSuccess}
		p.bumpChannel(name, true)
		sendTotal.WithLabelValues(name, "success").Inc()
	}

	if retryNeeded {
		if ctx.Err() == nil {
			if p.queue.Retry(job, time.Now()) {
				return
			}
			// Attempts exhausted; Retry already removed the job.
			p.finish(job, state, true)
			return
		}
		// Shutting down: no further attempts will happen, settle as failed.
		p.queue.Fail(job)
		p.finish(job, state, true)
		return
	}

	p.queue.Complete(job)
	p.finish(job, state, false)
}

// Abandon settles jobs the queue refused to hand out during shutdown. Each
// gets its delivery record without any further send attempt; channels that
// succeeded on an earlier attempt keep their results.
func (p *Pool) Abandon(jobs []*queue.Job) {
	for _, job := range jobs {
		p.mu.Lock()
		state, ok := p.states[job.Notification.ID]
		p.mu.Unlock()
		if !ok {
			state = &jobState{results: make(map[string]types.ChannelResult)}
		}
		p.finish(job, state, true)
	}
}

// finish writes the single DeliveryRecord for a terminal job.
func (p *Pool) finish(job *queue.Job, state *jobState, jobFailed bool) {
	n := job.Notification

	rec := types.DeliveryRecord{
		NotificationID: n.ID,
		Attempts:       job.Attempts,
		Failed:         jobFailed,
		StoredAt:       time.Now(),
	}
	for _, ch := range state.channels {
		res := state.results[ch.Name()]
		rec.PerChannel = append(rec.PerChannel, res)
		switch res.Status {
		case types.ChannelSuccess:
			rec.SuccessCount++
		case types.ChannelFailed:
			rec.FailureCount++
		}
	}
	for _, name := range state.notConfigured {
		rec.PerChannel = append(rec.PerChannel, types.ChannelResult{
			Channel: name,
			Status:  types.ChannelNotConfigured,
		})
	}

	if err := p.store.Save(rec); err != nil {
		p.logger.Error("Failed to store delivery record",
			zap.String("id", n.ID), zap.Error(err))
	}

	if jobFailed {
		p.failed.Add(1)
	} else {
		p.sent.Add(1)
	}

	p.mu.Lock()
	delete(p.states, n.ID)
	p.mu.Unlock()

	p.logger.Info("Delivery settled",
		zap.String("id", n.ID),
		zap.Int("attempts", job.Attempts),
		zap.Int("succeeded", rec.SuccessCount),
		zap.Int("failed", rec.FailureCount),
		zap.Bool("job_failed", jobFailed),
	)
}

func (p *Pool) stateFor(n types.Notification) *jobState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.states[n.ID]; ok {
		return s
	}
	channels, notConfigured := p.router.Resolve(n)
	s := &jobState{
		channels:      channels,
		notConfigured: notConfigured,
		results:       make(map[string]types.ChannelResult),
		retriable:     make(map[string]bool),
	}
	p.states[n.ID] = s
	return s
}

func (p *Pool) bumpChannel(name string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.perChannel[name]
	if !ok {
		c = &ChannelCounts{}
		p.perChannel[name] = c
	}
	if success {
		c.Sent++
	} else {
		c.Failed++
	}
}

// Stats is the pool's cumulative delivery outcome snapshot.
type Stats struct {
	Sent       int64
	Failed     int64
	Pending    int
	PerChannel map[string]ChannelCounts
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	per := make(map[string]ChannelCounts, len(p.perChannel))
	for name, c := range p.perChannel {
		per[name] = *c
	}
	p.mu.Unlock()

	return Stats{
		Sent:       p.sent.Load(),
		Failed:     p.failed.Load(),
		Pending:    p.queue.InFlight(),
		PerChannel: per,
	}
}

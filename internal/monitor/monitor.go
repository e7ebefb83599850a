// Package monitor is the pipeline facade: it accepts mentions from the scan
// layer and from direct submission, runs them through dedup, analysis, and
// preference filters, and hands surviving notifications to the delivery
// queue.
//
// # Contract
//
//   - Submit is safe for concurrent use and never blocks on delivery.
//   - Every accepted mention produces exactly one queued notification and
//     one event on the Events channel. Events are dropped, not blocked on,
//     when the subscriber lags.
//   - Stop is graceful: the scan schedule halts first, active deliveries are
//     given a bounded window to settle, and jobs still waiting in the queue
//     are recorded undelivered rather than sent.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/analysis"
	"github.com/coinsentry/coinsentry/internal/dedup"
	"github.com/coinsentry/coinsentry/internal/delivery"
	"github.com/coinsentry/coinsentry/internal/prefs"
	"github.com/coinsentry/coinsentry/internal/queue"
	"github.com/coinsentry/coinsentry/internal/records"
	"github.com/coinsentry/coinsentry/internal/scan"
	"github.com/coinsentry/coinsentry/internal/types"
)

const (
	stopPollInterval = 100 * time.Millisecond
	stopTimeout      = 30 * time.Second
	limiterIdleAge   = time.Hour
)

// ErrStopTimeout is returned by Stop when in-flight deliveries did not
// settle within the bounded wait.
var ErrStopTimeout = errors.New("monitor: in-flight deliveries did not settle before the stop deadline")

// Options tune the monitor itself; component tuning lives with each
// component.
type Options struct {
	SourceRateLimit float64 // accepted mentions per second per source
	SourceRateBurst int
	EventBuffer     int
	DedupSweep      time.Duration // cadence for dedup and limiter maintenance
	RecordSweep     time.Duration
	DedupWindow     time.Duration
	RecordRetention time.Duration
}

func (o *Options) fill() {
	if o.SourceRateLimit == 0 {
		o.SourceRateLimit = 1
	}
	if o.SourceRateBurst == 0 {
		o.SourceRateBurst = 5
	}
	if o.EventBuffer == 0 {
		o.EventBuffer = 64
	}
	if o.DedupSweep == 0 {
		o.DedupSweep = time.Hour
	}
	if o.RecordSweep == 0 {
		o.RecordSweep = time.Hour
	}
	if o.DedupWindow == 0 {
		o.DedupWindow = dedup.DefaultWindow
	}
	if o.RecordRetention == 0 {
		o.RecordRetention = 7 * 24 * time.Hour
	}
}

// Components are the pre-built pipeline stages the monitor coordinates.
type Components struct {
	Dedup        *dedup.Registry
	Fuser        *analysis.Fuser
	Prefs        prefs.Provider
	Queue        *queue.Queue
	Pool         *delivery.Pool
	Orchestrator *scan.Orchestrator
	Records      records.Store
}

// Monitor is the exposed pipeline surface.
type Monitor struct {
	logger *zap.Logger
	opts   Options
	c      Components

	limiter *sourceRateLimiter
	events  chan types.Notification

	// submitMu fences Submit against Stop: Submits hold the read side for
	// their whole run, Stop takes the write side once before it drains the
	// queue and closes the event channel.
	submitMu sync.RWMutex

	cancel  context.CancelFunc
	started atomic.Bool
	stopped atomic.Bool
}

func New(logger *zap.Logger, c Components, opts Options) *Monitor {
	opts.fill()
	return &Monitor{
		logger:  logger.Named("monitor"),
		opts:    opts,
		c:       c,
		limiter: newSourceRateLimiter(opts.SourceRateLimit, opts.SourceRateBurst),
		events:  make(chan types.Notification, opts.EventBuffer),
	}
}

// SetOrchestrator attaches the scan orchestrator. The orchestrator's sink is
// usually Submit, which needs the monitor built first; call this before
// Start.
func (m *Monitor) SetOrchestrator(o *scan.Orchestrator) {
	m.c.Orchestrator = o
}

// Events is the notification stream. One event per accepted mention, emitted
// when the notification is queued, not when it is delivered.
func (m *Monitor) Events() <-chan types.Notification {
	return m.events
}

// Start launches the delivery workers, the scan schedule, and the
// maintenance sweeps. Idempotent; only the first call has an effect.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if err := m.scheduleMaintenance(); err != nil {
		return err
	}

	m.c.Pool.Start(runCtx)
	m.c.Orchestrator.Start(runCtx)
	m.logger.Info("Monitor started")
	return nil
}

func (m *Monitor) scheduleMaintenance() error {
	sweepSpec := fmt.Sprintf("@every %s", m.opts.DedupSweep)
	err := m.c.Orchestrator.ScheduleFunc(sweepSpec, "dedup-sweep", func() {
		removed := m.c.Dedup.Sweep(m.opts.DedupWindow)
		m.limiter.Evict(limiterIdleAge)
		if removed > 0 {
			m.logger.Debug("Dedup sweep completed", zap.Int("removed", removed))
		}
	})
	if err != nil {
		return err
	}

	recordSpec := fmt.Sprintf("@every %s", m.opts.RecordSweep)
	return m.c.Orchestrator.ScheduleFunc(recordSpec, "record-sweep", func() {
		removed, err := m.c.Records.Sweep(m.opts.RecordRetention)
		if err != nil {
			m.logger.Warn("Record sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			m.logger.Debug("Record sweep completed", zap.Int("removed", removed))
		}
	})
}

// Stop halts scanning, drains the queue, and waits up to 30 seconds for
// active deliveries to settle before stopping the workers. Jobs that were
// still queued or delayed are not delivered; each gets a delivery record
// marking it undelivered. Returns ErrStopTimeout if active work remained.
func (m *Monitor) Stop() error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}

	// No new mentions once the schedule is down.
	m.c.Orchestrator.Stop()

	// Submits that passed the stopped gate may still be running; wait them
	// out before the queue drains and the event channel closes.
	m.submitMu.Lock()
	m.submitMu.Unlock()

	abandoned := m.c.Queue.Drain()

	var settleErr error
	deadline := time.Now().Add(stopTimeout)
	for m.c.Queue.InFlight() > 0 {
		if time.Now().After(deadline) {
			settleErr = ErrStopTimeout
			m.logger.Error("Stopping with unsettled deliveries",
				zap.Int("in_flight", m.c.Queue.InFlight()))
			break
		}
		time.Sleep(stopPollInterval)
	}

	if m.cancel != nil {
		m.cancel()
	}
	m.c.Pool.Wait()
	m.c.Pool.Abandon(abandoned)
	close(m.events)

	if err := m.c.Records.Close(); err != nil {
		m.logger.Warn("Closing record store failed", zap.Error(err))
	}

	m.logger.Info("Monitor stopped", zap.Error(settleErr))
	return settleErr
}

// Submit runs one mention through the pipeline. The scan orchestrator's sink
// is this method; external callers may also inject mentions directly.
func (m *Monitor) Submit(ctx context.Context, mention types.Mention) {
	m.submitMu.RLock()
	defer m.submitMu.RUnlock()
	if m.stopped.Load() {
		return
	}
	source := mention.Source

	if !m.limiter.Allow(source) {
		submittedTotal.WithLabelValues(source, "rate_limited").Inc()
		m.logger.Debug("Source rate limited", zap.String("source", source))
		return
	}

	if !m.c.Dedup.TryMark(source, mention.Identifier) {
		submittedTotal.WithLabelValues(source, "duplicate").Inc()
		return
	}

	result := m.c.Fuser.Analyze(ctx, mention)

	if !m.c.Prefs.Get().Allows(mention, result) {
		submittedTotal.WithLabelValues(source, "filtered").Inc()
		return
	}

	n := types.Notification{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Source:    source,
		Mention:   mention,
		Analysis:  result,
		Priority:  result.Priority,
	}
	m.c.Queue.Enqueue(n)
	submittedTotal.WithLabelValues(source, "accepted").Inc()

	select {
	case m.events <- n:
	default:
		eventsDroppedTotal.Inc()
	}

	m.logger.Info("Mention accepted",
		zap.String("id", n.ID),
		zap.String("mention", mention.Key().String()),
		zap.String("priority", string(n.Priority)),
		zap.Float64("legitimacy", result.LegitimacyScore),
	)
}

// ScanAll triggers one immediate pass over every registered source.
func (m *Monitor) ScanAll(ctx context.Context) {
	m.c.Orchestrator.ScanAll(ctx)
}

// Stats reports the cumulative delivery outcomes.
func (m *Monitor) Stats() delivery.Stats {
	return m.c.Pool.Stats()
}

// Package scan schedules source connectors and feeds their mentions into
// the pipeline.
//
// # Contract
//
// Each registered source runs on its own cron schedule. A source that is
// still scanning when its next slot arrives is skipped, never run twice
// concurrently. A full scan across all sources is refused outright when the
// in-flight scan count has reached the configured maximum; partial capacity
// starts what fits. Scheduled per-source runs are exempt from that gate.
// Stop waits for running scans to settle.
package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

// Source is one connector. Scan returns the mentions found in one polling
// pass; a partial result with an error is valid and both are consumed.
type Source interface {
	Name() string
	Scan(ctx context.Context) ([]types.Mention, error)
}

// Sink receives every mention a scan produces.
type Sink func(ctx context.Context, m types.Mention)

// Options tunes the orchestrator.
type Options struct {
	MaxConcurrentScans int           // full-scan gate, default 10
	ScanTimeout        time.Duration // per-source deadline, default 30s
}

func (o *Options) fill() {
	if o.MaxConcurrentScans == 0 {
		o.MaxConcurrentScans = 10
	}
	if o.ScanTimeout == 0 {
		o.ScanTimeout = 30 * time.Second
	}
}

// Orchestrator owns the cron schedule and the scan concurrency accounting.
type Orchestrator struct {
	logger *zap.Logger
	cron   *cron.Cron
	sink   Sink
	opts   Options

	baseCtx  context.Context
	inFlight atomic.Int32

	mu      sync.Mutex
	sources []Source
	running map[string]*atomic.Bool

	wg sync.WaitGroup
}

func NewOrchestrator(logger *zap.Logger, sink Sink, opts Options) *Orchestrator {
	opts.fill()
	return &Orchestrator{
		logger:  logger.Named("scan"),
		cron:    cron.New(),
		sink:    sink,
		opts:    opts,
		baseCtx: context.Background(),
		running: make(map[string]*atomic.Bool),
	}
}

// Register adds a source and schedules it with the given cron spec.
func (o *Orchestrator) Register(src Source, spec string) error {
	o.mu.Lock()
	o.sources = append(o.sources, src)
	o.running[src.Name()] = &atomic.Bool{}
	o.mu.Unlock()

	_, err := o.cron.AddFunc(spec, func() {
		o.runSource(o.baseCtx, src)
	})
	if err != nil {
		return fmt.Errorf("scheduling source %s (%q): %w", src.Name(), spec, err)
	}
	o.logger.Info("Source registered",
		zap.String("source", src.Name()),
		zap.String("schedule", spec),
	)
	return nil
}

// ScheduleFunc adds a named maintenance task to the cron schedule.
func (o *Orchestrator) ScheduleFunc(spec, name string, fn func()) error {
	_, err := o.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("scheduling task %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start begins the schedule. Non-blocking. Scans launched after ctx is
// cancelled are refused.
func (o *Orchestrator) Start(ctx context.Context) {
	o.baseCtx = ctx
	o.cron.Start()
	o.logger.Info("Scan schedule started", zap.Int("sources", len(o.Sources())))
}

// Stop halts the schedule and waits for running scans to finish.
func (o *Orchestrator) Stop() {
	<-o.cron.Stop().Done()
	o.wg.Wait()
	o.logger.Info("Scan schedule stopped")
}

// Sources returns a snapshot of the registered sources.
func (o *Orchestrator) Sources() []Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Source, len(o.sources))
	copy(out, o.sources)
	return out
}

// InFlight reports scans currently running.
func (o *Orchestrator) InFlight() int {
	return int(o.inFlight.Load())
}

// ScanAll triggers one pass over every registered source. When the in-flight
// count is already at the maximum the whole request is skipped; otherwise
// sources start up to the remaining capacity. Blocks until the started scans
// settle. The capacity gate applies to full scans only; scheduled per-source
// runs are subject to nothing but their own overlap guard.
func (o *Orchestrator) ScanAll(ctx context.Context) {
	capacity := o.opts.MaxConcurrentScans - o.InFlight()
	if capacity <= 0 {
		fullScansSkipped.Inc()
		o.logger.Warn("Full scan skipped, scan capacity exhausted",
			zap.Int("in_flight", o.InFlight()),
			zap.Int("max", o.opts.MaxConcurrentScans),
		)
		return
	}

	var wg sync.WaitGroup
	started := 0
	for _, src := range o.Sources() {
		if started >= capacity {
			scansSkipped.WithLabelValues(src.Name(), "capacity").Inc()
			continue
		}
		started++
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			o.runSource(ctx, src)
		}(src)
	}
	wg.Wait()
}

// runSource executes one scan pass with the overlap guard applied.
func (o *Orchestrator) runSource(ctx context.Context, src Source) {
	if ctx.Err() != nil {
		return
	}

	o.mu.Lock()
	guard := o.running[src.Name()]
	o.mu.Unlock()
	if guard == nil || !guard.CompareAndSwap(false, true) {
		scansSkipped.WithLabelValues(src.Name(), "overlap").Inc()
		o.logger.Debug("Scan still running, slot skipped", zap.String("source", src.Name()))
		return
	}
	defer guard.Store(false)

	o.inFlight.Add(1)
	defer o.inFlight.Add(-1)

	o.wg.Add(1)
	defer o.wg.Done()

	scanCtx, cancel := context.WithTimeout(ctx, o.opts.ScanTimeout)
	defer cancel()

	start := time.Now()
	mentions, err := src.Scan(scanCtx)
	scanDuration.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		scanErrors.WithLabelValues(src.Name()).Inc()
		o.logger.Warn("Scan pass failed",
			zap.String("source", src.Name()),
			zap.Int("partial_mentions", len(mentions)),
			zap.Error(err),
		)
	}

	// Partial results from a failed pass still flow downstream.
	for _, m := range mentions {
		mentionsTotal.WithLabelValues(src.Name()).Inc()
		o.sink(ctx, m)
	}
}

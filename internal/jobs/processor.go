package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/storage"
	"github.com/sevigo/commit-digest/internal/telemetry"
)

const (
	DefaultPollInterval        = 2 * time.Second
	DefaultMaxConcurrent       = 5
	DefaultJobTimeout          = 5 * time.Minute
	DefaultRetryBaseDelay      = time.Second
	DefaultRetryMaxDelay       = 30 * time.Second
	DefaultMaintenanceInterval = 5 * time.Minute
	DefaultRetentionDays       = 7
	DefaultShutdownTimeout     = 30 * time.Second

	staleGrace = time.Minute
)

// ErrAlreadyRunning is returned by Start on a processor that is running.
var ErrAlreadyRunning = errors.New("processor is already running")

// Options tune the processor. Zero fields select defaults in NewProcessor and
// keep the current value in Configure.
type Options struct {
	PollInterval        time.Duration `json:"poll_interval"`
	MaxConcurrent       int           `json:"max_concurrent"`
	JobTimeout          time.Duration `json:"job_timeout"`
	RetryBaseDelay      time.Duration `json:"retry_base_delay"`
	RetryMaxDelay       time.Duration `json:"retry_max_delay"`
	MaintenanceInterval time.Duration `json:"maintenance_interval"`
	RetentionDays       int           `json:"retention_days"`
	// StaleJobTimeout defaults to JobTimeout plus one minute.
	StaleJobTimeout time.Duration `json:"stale_job_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval:        DefaultPollInterval,
		MaxConcurrent:       DefaultMaxConcurrent,
		JobTimeout:          DefaultJobTimeout,
		RetryBaseDelay:      DefaultRetryBaseDelay,
		RetryMaxDelay:       DefaultRetryMaxDelay,
		MaintenanceInterval: DefaultMaintenanceInterval,
		RetentionDays:       DefaultRetentionDays,
		ShutdownTimeout:     DefaultShutdownTimeout,
	}
}

// merge overlays the non-zero fields of o onto base.
func (base Options) merge(o Options) Options {
	if o.PollInterval > 0 {
		base.PollInterval = o.PollInterval
	}
	if o.MaxConcurrent > 0 {
		base.MaxConcurrent = o.MaxConcurrent
	}
	if o.JobTimeout > 0 {
		base.JobTimeout = o.JobTimeout
	}
	if o.RetryBaseDelay > 0 {
		base.RetryBaseDelay = o.RetryBaseDelay
	}
	if o.RetryMaxDelay > 0 {
		base.RetryMaxDelay = o.RetryMaxDelay
	}
	if o.MaintenanceInterval > 0 {
		base.MaintenanceInterval = o.MaintenanceInterval
	}
	if o.RetentionDays > 0 {
		base.RetentionDays = o.RetentionDays
	}
	if o.StaleJobTimeout > 0 {
		base.StaleJobTimeout = o.StaleJobTimeout
	}
	if o.ShutdownTimeout > 0 {
		base.ShutdownTimeout = o.ShutdownTimeout
	}
	return base
}

func (o Options) staleTimeout() time.Duration {
	if o.StaleJobTimeout > 0 {
		return o.StaleJobTimeout
	}
	return o.JobTimeout + staleGrace
}

type Option func(*Processor)

// WithOptions overlays o on the defaults.
func WithOptions(o Options) Option {
	return func(p *Processor) { p.opts = p.opts.merge(o) }
}

// WithClock sets the clock used for retry times. Tests share it with the store.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithRegistry lets several components share one handler registry.
func WithRegistry(r *Registry) Option {
	return func(p *Processor) {
		if r != nil {
			p.registry = r
		}
	}
}

// Stats is a point-in-time view of the processor.
type Stats struct {
	Running           bool           `json:"running"`
	ActiveJobs        int            `json:"active_jobs"`
	Options           Options        `json:"options"`
	Dispatched        int64          `json:"dispatched"`
	Completed         int64          `json:"completed"`
	Retried           int64          `json:"retried"`
	Failed            int64          `json:"failed"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	LastPollAt        *time.Time     `json:"last_poll_at,omitempty"`
	LastMaintenanceAt *time.Time     `json:"last_maintenance_at,omitempty"`
	HandlerTypes      []core.JobType `json:"handler_types"`
}

// Processor polls the store for ready jobs and runs them on registered
// handlers. Each poll claims up to the free concurrency slots, runs the batch
// in parallel and waits for all of it before the next poll.
type Processor struct {
	store    storage.JobStore
	registry *Registry
	active   *activeSet
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time

	mu                sync.Mutex
	opts              Options
	running           bool
	cancel            context.CancelFunc
	abort             context.CancelFunc
	done              chan struct{}
	startedAt         time.Time
	lastPollAt        time.Time
	lastMaintenanceAt time.Time

	dispatched atomic.Int64
	completed  atomic.Int64
	retried    atomic.Int64
	failed     atomic.Int64
}

func NewProcessor(store storage.JobStore, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:    store,
		registry: NewRegistry(),
		active:   newActiveSet(),
		logger:   logger,
		now:      time.Now,
		opts:     DefaultOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterHandler adds h. A handler already registered for the same type is
// replaced.
func (p *Processor) RegisterHandler(h Handler) {
	if p.registry.Register(h) {
		p.logger.Warn("replacing registered job handler", "job_type", h.Type())
		return
	}
	p.logger.Debug("registered job handler", "job_type", h.Type())
}

// Configure updates the tunables. Zero fields keep their current value. A new
// poll interval takes effect after the next poll.
func (p *Processor) Configure(o Options) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = p.opts.merge(o)
}

func (p *Processor) options() Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts
}

// Start reconciles jobs orphaned by a previous run and starts the poll loop.
// In-flight jobs are not tied to ctx; use Stop to shut down.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.startedAt = p.now()
	loopCtx, cancel := context.WithCancel(ctx)
	workCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel, p.abort = cancel, abort
	done := make(chan struct{})
	p.done = done
	opts := p.opts
	p.mu.Unlock()

	if n, err := p.ReconcileOrphans(ctx); err != nil {
		p.logger.Error("failed to reconcile orphaned jobs", "error", err)
	} else if n > 0 {
		p.logger.Warn("reconciled jobs orphaned by a previous run", "count", n)
	}

	p.logger.Info("job processor started",
		"poll_interval", opts.PollInterval,
		"max_concurrent", opts.MaxConcurrent,
		"job_timeout", opts.JobTimeout,
		"handlers", p.registry.Types(),
	)
	go p.loop(loopCtx, workCtx, done)
	return nil
}

// Stop ends the poll loop and waits for in-flight jobs up to the shutdown
// timeout. Jobs still running after that are abandoned; they are reconciled
// on the next Start.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel, abort, done := p.cancel, p.abort, p.done
	timeout := p.opts.ShutdownTimeout
	p.mu.Unlock()

	p.logger.Info("stopping job processor", "active_jobs", p.active.len())
	cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		abort()
		p.logger.Info("job processor stopped")
		return nil
	case <-timer.C:
		abort()
		<-done
		return fmt.Errorf("job processor did not drain within %s", timeout)
	case <-ctx.Done():
		abort()
		<-done
		return ctx.Err()
	}
}

func (p *Processor) loop(ctx, workCtx context.Context, done chan struct{}) {
	defer close(done)

	opts := p.options()
	interval := opts.PollInterval
	poll := time.NewTicker(interval)
	defer poll.Stop()
	maintenance := time.NewTicker(opts.MaintenanceInterval)
	defer maintenance.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			if _, err := p.RunOnce(workCtx); err != nil {
				p.logger.Error("job poll failed", "error", err)
			}
			if d := p.options().PollInterval; d != interval {
				interval = d
				poll.Reset(d)
			}
		case <-maintenance.C:
			p.RunMaintenance(workCtx)
		}
	}
}

// RunOnce performs one poll: it claims up to the free slots of ready jobs,
// runs them concurrently and waits for all of them. It returns the number of
// jobs that were claimed.
func (p *Processor) RunOnce(ctx context.Context) (int, error) {
	opts := p.options()
	p.mu.Lock()
	p.lastPollAt = p.now()
	p.mu.Unlock()

	slots := opts.MaxConcurrent - p.active.len()
	if slots <= 0 {
		return 0, nil
	}
	ready, err := p.store.GetReadyJobs(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("failed to select ready jobs: %w", err)
	}

	var claimed atomic.Int32
	var g errgroup.Group
	for _, rj := range ready {
		if !p.active.tryAdd(rj.ID, rj.Type, p.now()) {
			continue
		}
		g.Go(func() error {
			if p.execute(ctx, rj, opts) {
				claimed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(claimed.Load()), nil
}

// execute claims and runs one job. It reports whether the claim succeeded.
func (p *Processor) execute(ctx context.Context, ready core.ReadyJob, opts Options) bool {
	defer p.active.remove(ready.ID)
	log := p.logger.With("job_id", ready.ID, "job_type", ready.Type)

	job, err := p.store.MarkJobAsRunning(ctx, ready.ID)
	if err != nil {
		if errors.Is(err, storage.ErrJobNotClaimable) || errors.Is(err, storage.ErrNotFound) {
			log.Debug("job was claimed elsewhere", "error", err)
			return false
		}
		log.Error("failed to claim job", "error", err)
		return false
	}

	p.dispatched.Add(1)
	if p.metrics != nil {
		p.metrics.JobsDispatched.WithLabelValues(string(job.Type)).Inc()
		p.metrics.ActiveJobs.Inc()
		defer p.metrics.ActiveJobs.Dec()
	}

	handler, ok := p.registry.Get(job.Type)
	if !ok {
		msg := fmt.Sprintf("no handler registered for job type %s", job.Type)
		_ = p.fail(ctx, job, msg, map[string]any{"reason": "no_handler"}, true, opts)
		return true
	}
	if v, ok := handler.(Validator); ok {
		if err := v.Validate(job); err != nil {
			_ = p.fail(ctx, job, "invalid job: "+err.Error(), map[string]any{"reason": "validation_failed"}, true, opts)
			return true
		}
	}
	var estimated time.Duration
	if e, ok := handler.(DurationEstimator); ok {
		estimated = e.EstimatedDuration(job)
	}
	p.active.markClaimed(job.ID, estimated)

	log.Info("job started", "attempt", job.Attempts+1, "max_attempts", job.MaxAttempts)
	start := time.Now()
	res, err := p.runWithTimeout(ctx, handler, job, opts.JobTimeout)
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(elapsed.Seconds())
	}

	if err == nil && res != nil && res.Success {
		if err := p.store.MarkJobAsCompleted(ctx, job.ID, res.Data); err != nil {
			if errors.Is(err, storage.ErrInvalidTransition) {
				log.Warn("job finished after leaving the running state", "error", err)
			} else {
				log.Error("failed to mark job completed", "error", err)
			}
			return true
		}
		p.completed.Add(1)
		if p.metrics != nil {
			p.metrics.JobsCompleted.WithLabelValues(string(job.Type)).Inc()
		}
		log.Info("job completed", "duration", elapsed)
		return true
	}

	if err == nil && res == nil {
		err = errors.New("handler returned no result")
	}
	details := map[string]any{"duration_ms": elapsed.Milliseconds()}
	if res != nil {
		for k, v := range res.Metadata {
			details[k] = v
		}
	}
	_ = p.fail(ctx, job, failureMessage(res, err), details, isNonRetryable(res, err), opts)
	return true
}

// runWithTimeout races the handler against the job timeout. A panicking
// handler is reported as a retryable failure.
func (p *Processor) runWithTimeout(ctx context.Context, h Handler, job *core.Job, timeout time.Duration) (*core.JobResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *core.JobResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("handler panicked: %v", r)}
			}
		}()
		res, err := h.Handle(ctx, job)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("job timed out after %s: %w", timeout, o.err)
		}
		return o.res, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("job timed out after %s", timeout)
		}
		return nil, fmt.Errorf("job interrupted: %w", ctx.Err())
	}
}

// fail records a failed execution, computing the retry time from the
// processor's backoff when attempts remain.
func (p *Processor) fail(ctx context.Context, job *core.Job, msg string, details map[string]any, terminal bool, opts Options) error {
	terminal = terminal || isNonRetryableMessage(msg)
	failure := core.JobFailure{Message: msg, Details: details, Terminal: terminal}
	if !terminal && job.Attempts+1 < job.MaxAttempts {
		retryAt := p.now().Add(storage.RetryDelay(job.Attempts, opts.RetryBaseDelay, opts.RetryMaxDelay))
		failure.RetryAfter = &retryAt
	}

	log := p.logger.With("job_id", job.ID, "job_type", job.Type)
	updated, err := p.store.MarkJobAsFailed(ctx, job.ID, failure)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			log.Warn("job left the running state before its failure was recorded", "error", msg)
		} else {
			log.Error("failed to record job failure", "error", err, "job_error", msg)
		}
		return err
	}

	outcome := "failed"
	if updated.Status == core.JobStatusPending {
		outcome = "retry"
		p.retried.Add(1)
		log.Warn("job failed, retry scheduled",
			"attempts", updated.Attempts,
			"max_attempts", updated.MaxAttempts,
			"retry_after", updated.RetryAfter,
			"error", msg,
		)
	} else {
		p.failed.Add(1)
		log.Error("job failed permanently",
			"attempts", updated.Attempts,
			"terminal", terminal,
			"error", msg,
		)
	}
	if p.metrics != nil {
		p.metrics.JobsFailed.WithLabelValues(string(job.Type), outcome).Inc()
	}
	return nil
}

// ReconcileOrphans routes every running job that this process is not
// executing through failure handling. Running it twice is harmless: the
// second pass finds nothing in the running state.
func (p *Processor) ReconcileOrphans(ctx context.Context) (int, error) {
	running, err := p.store.GetStaleRunningJobs(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list running jobs: %w", err)
	}
	opts := p.options()
	n := 0
	for _, job := range running {
		if p.active.has(job.ID) {
			continue
		}
		details := map[string]any{"reason": "orphaned_on_restart"}
		if err := p.fail(ctx, job, "orphaned on restart", details, false, opts); err == nil {
			n++
		}
	}
	return n, nil
}

// GetStats returns counters and settings.
func (p *Processor) GetStats() Stats {
	p.mu.Lock()
	s := Stats{
		Running: p.running,
		Options: p.opts,
	}
	s.Options.StaleJobTimeout = p.opts.staleTimeout()
	if !p.startedAt.IsZero() {
		t := p.startedAt
		s.StartedAt = &t
	}
	if !p.lastPollAt.IsZero() {
		t := p.lastPollAt
		s.LastPollAt = &t
	}
	if !p.lastMaintenanceAt.IsZero() {
		t := p.lastMaintenanceAt
		s.LastMaintenanceAt = &t
	}
	p.mu.Unlock()

	s.ActiveJobs = p.active.len()
	s.Dispatched = p.dispatched.Load()
	s.Completed = p.completed.Load()
	s.Retried = p.retried.Load()
	s.Failed = p.failed.Load()
	s.HandlerTypes = p.registry.Types()
	return s
}

// GetActiveJobs lists the jobs executing in this process.
func (p *Processor) GetActiveJobs() []ActiveJob {
	return p.active.snapshot()
}

// Package worker delivers crisis escalation alerts in the background. It is
// decoupled from the transports: the escalation package holds a worker.Enqueuer
// interface and calls Enqueue; it never imports the concrete Runner or Job
// types.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/mshauri-counselor-backend/internal/metrics"
	"github.com/nyashahama/mshauri-counselor-backend/internal/store"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is the narrow interface the escalation package uses to hand off an
// escalation once it is recorded.
//
// The concrete implementation is *Runner. In tests, any struct with an Enqueue
// method satisfies the interface.
type Enqueuer interface {
	Enqueue(ctx context.Context, escalationID uuid.UUID) error
}

// Observer receives escalation outcomes. *metrics.Collector satisfies it.
type Observer interface {
	ObserveEscalation(outcome string)
}

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero fields fall back
// to DefaultRunnerConfig.
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines.
	Workers int

	// PollInterval is how often the fallback poller checks the ledger for
	// escalations missed by the in-process channel (e.g. after a restart).
	PollInterval time.Duration

	// JobTimeout is the per-attempt context deadline.
	JobTimeout time.Duration

	// MaxRetries is the number of attempts before an escalation is marked
	// permanently failed.
	MaxRetries int

	// Backoff is the base delay between attempts; attempt n waits Backoff<<n.
	Backoff time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      2,
		PollInterval: 30 * time.Second,
		JobTimeout:   30 * time.Second,
		MaxRetries:   3,
		Backoff:      time.Second,
	}
}

// StaleAfter is how long a claimed escalation may stay in sending before the
// poller treats its worker as dead.
func (c RunnerConfig) StaleAfter() time.Duration {
	return 2 * c.JobTimeout
}

// Runner manages a pool of worker goroutines. It accepts escalations via an
// in-process channel (fast path) and also polls the ledger periodically to
// pick up anything in flight when the process last stopped (recovery path).
type Runner struct {
	job      *Job
	ledger   store.Ledger
	cfg      RunnerConfig
	observer Observer
	logger   *slog.Logger

	queue chan uuid.UUID
	wg    sync.WaitGroup

	// inflight holds the IDs a worker is currently running, including while it
	// sleeps between attempts with the row released back to pending.
	inflight sync.Map
}

// NewRunner constructs a Runner. Call Start to begin processing. observer may
// be nil.
func NewRunner(
	job *Job,
	ledger store.Ledger,
	cfg RunnerConfig,
	observer Observer,
	logger *slog.Logger,
) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if observer == nil {
		observer = nopObserver{}
	}

	return &Runner{
		job:      job,
		ledger:   ledger,
		cfg:      cfg,
		observer: observer,
		logger:   logger,
		// Buffer = Workers*16 so Enqueue never blocks a request under a burst.
		queue: make(chan uuid.UUID, cfg.Workers*16),
	}
}

type nopObserver struct{}

func (nopObserver) ObserveEscalation(string) {}

// Enqueue pushes an escalation ID onto the in-process channel. If the channel
// is full it returns an error rather than blocking the request; the poller
// will still find the row.
func (r *Runner) Enqueue(_ context.Context, escalationID uuid.UUID) error {
	select {
	case r.queue <- escalationID:
		r.logger.Debug("worker: enqueued escalation", "escalation_id", escalationID)
		return nil
	default:
		return errors.New("worker: queue is full, escalation will be picked up by poller")
	}
}

// Start launches the worker pool and the fallback poller. It blocks until ctx
// is cancelled and every goroutine has returned:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Debug("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("worker: goroutine stopping")
			return
		case escalationID := <-r.queue:
			if _, busy := r.inflight.LoadOrStore(escalationID, struct{}{}); busy {
				log.Debug("worker: escalation already in flight", "escalation_id", escalationID)
				continue
			}
			r.runWithRetry(ctx, escalationID, log)
			r.inflight.Delete(escalationID)
		}
	}
}

// poll checks the ledger on PollInterval for escalations that were not
// delivered via the channel.
func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	// Run once immediately on startup to pick up anything from before restart.
	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	staleBefore := time.Now().Add(-r.cfg.StaleAfter())
	rows, err := r.ledger.ListPendingEscalations(ctx, r.cfg.MaxRetries, staleBefore)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("worker: poll failed", "error", err)
		}
		return
	}
	for _, e := range rows {
		if _, busy := r.inflight.Load(e.ID); busy {
			continue
		}
		select {
		case r.queue <- e.ID:
			r.logger.Debug("worker: poller enqueued escalation", "escalation_id", e.ID)
		default:
			// Queue full — will be picked up next poll cycle.
		}
	}
}

// runWithRetry executes the job up to MaxRetries times. After exhausting
// retries it marks the escalation failed so the poller stops offering it.
func (r *Runner) runWithRetry(ctx context.Context, escalationID uuid.UUID, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, escalationID)
		cancel()

		if lastErr == nil {
			r.observer.ObserveEscalation(metrics.OutcomeNotified)
			return
		}
		if isNotPending(lastErr) {
			log.Debug("worker: escalation already handled", "escalation_id", escalationID)
			return
		}

		log.Warn("worker: job attempt failed",
			"escalation_id", escalationID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			// Exponential back-off: 2×, 4×, 8× Backoff …
			backoff := r.cfg.Backoff << attempt
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: escalation permanently failed", "escalation_id", escalationID, "error", lastErr)
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := r.ledger.MarkEscalationFailed(failCtx, escalationID, lastErr.Error()); err != nil {
		if !isNotPending(err) {
			log.Error("worker: failed to mark escalation as failed", "escalation_id", escalationID, "error", err)
		}
		return
	}
	r.observer.ObserveEscalation(metrics.OutcomeFailed)
}

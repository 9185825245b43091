package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/attendhub/internal/jobs"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/geocoder89/attendhub/internal/queue/redisqueue"
)

// ErrPermanent marks a failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

type Queue interface {
	ClaimNext(ctx context.Context) (jobs.Job, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, j jobs.Job, runAt time.Time, errMsg string) error
	MarkFailed(ctx context.Context, j jobs.Job, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// Handler runs one job. Wrap ErrPermanent to skip retries.
type Handler func(ctx context.Context, j jobs.Job) error

type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	Concurrency   int
	JobTimeout    time.Duration
	LockTTL       time.Duration
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg      Config
	queue    Queue
	handlers map[jobs.JobType]Handler
	prom     *observability.Prom
	log      *slog.Logger
	backoff  func(attempt int) time.Duration
	now      func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, q Queue, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.JobTimeout
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:      cfg,
		queue:    q,
		handlers: make(map[jobs.JobType]Handler),
		prom:     prom,
		log:      log.With("worker_id", cfg.WorkerID),
		backoff:  ExponentialBackoff,
		now:      time.Now,
	}
}

// Handle registers the handler for a job type. Call before Run.
func (w *Worker) Handle(t jobs.JobType, h Handler) {
	w.handlers[t] = h
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run polls until ctx is cancelled, then waits up to ShutdownGrace for jobs in
// flight. Jobs run on a context detached from ctx so shutdown does not abort
// them halfway.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	w.log.Info("worker started", "concurrency", w.cfg.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reaper(ctx)
	}()

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		return fmt.Errorf("shutdown grace %s exceeded", w.cfg.ShutdownGrace)
	}
}

func (w *Worker) loop(ctx context.Context, slot int) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessOne(context.WithoutCancel(ctx))
		if err != nil {
			w.log.Error("process job", "slot", slot, "err", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) reaper(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.LockTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.log.Error("requeue stale jobs", "err", err)
				continue
			}
			if n > 0 {
				w.log.Warn("requeued stale jobs", "count", n)
			}
		}
	}
}

// ProcessOne claims and runs at most one job. It reports whether a job was
// claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.queue.ClaimNext(claimCtx)
	cancel()

	if err != nil {
		if errors.Is(err, redisqueue.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	log := w.log.With("job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts)
	start := w.now()

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	err = w.execute(ctx, j)
	elapsed := w.now().Sub(start)

	if err != nil {
		result := w.handleFailure(ctx, j, err, log)
		w.observe(j.Type, result, elapsed)
		return true, nil
	}

	if err := w.queue.MarkDone(ctx, j.ID); err != nil {
		return true, fmt.Errorf("mark done %s: %w", j.ID, err)
	}

	log.Info("job done", "elapsed_ms", elapsed.Milliseconds())
	w.observe(j.Type, "done", elapsed)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j jobs.Job) (err error) {
	h, ok := w.handlers[j.Type]
	if !ok {
		return fmt.Errorf("%w: no handler for %q", ErrPermanent, j.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrPermanent, r)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	return h(runCtx, j)
}

func (w *Worker) handleFailure(ctx context.Context, j jobs.Job, jobErr error, log *slog.Logger) string {
	msg := jobErr.Error()

	if errors.Is(jobErr, ErrPermanent) || j.Exhausted() {
		if err := w.queue.MarkFailed(ctx, j, msg); err != nil {
			log.Error("dead-letter job", "err", err)
		}
		log.Error("job failed", "err", jobErr)
		return "failed"
	}

	runAt := w.now().Add(w.backoff(j.Attempts - 1))
	if err := w.queue.Reschedule(ctx, j, runAt, msg); err != nil {
		log.Error("reschedule job", "err", err)
	}
	log.Warn("job will retry", "err", jobErr, "run_at", runAt)
	return "retry"
}

func (w *Worker) observe(t jobs.JobType, result string, elapsed time.Duration) {
	if w.prom == nil {
		return
	}
	w.prom.ObserveJob(string(t), result, elapsed)
}

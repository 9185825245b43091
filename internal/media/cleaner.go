package media

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/attendhub/internal/jobs"
)

// Enqueuer accepts a job for later execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, j jobs.Job) error
}

// Cleaner removes images that are no longer referenced. It never fails the
// caller: errors are logged and, when a queue is configured, retried later.
type Cleaner struct {
	store Store
	queue Enqueuer
	log   *slog.Logger
}

func NewCleaner(store Store, queue Enqueuer, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	return &Cleaner{store: store, queue: queue, log: log}
}

// Remove deletes url from the media host. reason tags log lines and retries.
func (c *Cleaner) Remove(ctx context.Context, url, reason string) {
	if c == nil || url == "" {
		return
	}

	err := c.store.Delete(ctx, url)
	if err == nil {
		return
	}

	if errors.Is(err, ErrNotManaged) {
		c.log.WarnContext(ctx, "media delete skipped: url not managed", "url", url, "reason", reason)
		return
	}

	c.log.ErrorContext(ctx, "media delete failed", "url", url, "reason", reason, "err", err)

	if c.queue == nil {
		return
	}

	j, jerr := jobs.NewMediaDelete(jobs.MediaDeletePayload{URL: url, Reason: reason})
	if jerr != nil {
		c.log.ErrorContext(ctx, "media delete job build failed", "url", url, "err", jerr)
		return
	}

	// the request context may already be cancelled; the retry must still land
	qctx := context.WithoutCancel(ctx)
	if qerr := c.queue.Enqueue(qctx, j); qerr != nil {
		c.log.ErrorContext(ctx, "media delete enqueue failed", "url", url, "err", qerr)
		return
	}

	c.log.InfoContext(ctx, "media delete queued for retry", "url", url, "job_id", j.ID)
}

package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/attendhub/internal/jobs"
	"github.com/geocoder89/attendhub/internal/media"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/geocoder89/attendhub/internal/queue/redisqueue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeQueue struct {
	mu          sync.Mutex
	pending     []jobs.Job
	done        []string
	failed      []jobs.Job
	rescheduled []time.Time
}

func (q *fakeQueue) ClaimNext(context.Context) (jobs.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return jobs.Job{}, redisqueue.ErrJobNotFound
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	j.Attempts++
	return j, nil
}

func (q *fakeQueue) MarkDone(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.done = append(q.done, id)
	return nil
}

func (q *fakeQueue) Reschedule(_ context.Context, j jobs.Job, runAt time.Time, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rescheduled = append(q.rescheduled, runAt)
	q.pending = append(q.pending, j)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, j jobs.Job, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, j)
	return nil
}

func (q *fakeQueue) RequeueStaleProcessing(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (q *fakeQueue) Ping(context.Context) error { return nil }

func newTestWorker(q Queue) (*Worker, *observability.Prom) {
	prom := observability.NewProm(prometheus.NewRegistry())
	w := New(Config{WorkerID: "test"}, q, prom, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.backoff = func(int) time.Duration { return time.Second }
	return w, prom
}

func mediaJob(t *testing.T, url string) jobs.Job {
	t.Helper()
	j, err := jobs.NewMediaDelete(jobs.MediaDeletePayload{URL: url})
	if err != nil {
		t.Fatalf("NewMediaDelete: %v", err)
	}
	return j
}

func TestProcessOne_Empty(t *testing.T) {
	w, _ := newTestWorker(&fakeQueue{})

	processed, err := w.ProcessOne(context.Background())
	if err != nil || processed {
		t.Fatalf("got (%v, %v), want (false, nil)", processed, err)
	}
}

func TestProcessOne_Success(t *testing.T) {
	j := mediaJob(t, "https://media.test/a.jpg")
	q := &fakeQueue{pending: []jobs.Job{j}}
	w, prom := newTestWorker(q)

	var got string
	w.Handle(jobs.JobMediaDelete, func(_ context.Context, j jobs.Job) error {
		got = j.ID
		return nil
	})

	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("got (%v, %v), want (true, nil)", processed, err)
	}
	if got != j.ID || len(q.done) != 1 {
		t.Fatalf("job not executed and marked done: got=%q done=%v", got, q.done)
	}
	if v := testutil.ToFloat64(prom.JobResults.WithLabelValues(string(jobs.JobMediaDelete), "done")); v != 1 {
		t.Fatalf("done counter = %v, want 1", v)
	}
}

func TestProcessOne_RetryThenDeadLetter(t *testing.T) {
	j := mediaJob(t, "https://media.test/a.jpg")
	j.MaxAttempts = 2
	q := &fakeQueue{pending: []jobs.Job{j}}
	w, _ := newTestWorker(q)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }
	w.Handle(jobs.JobMediaDelete, func(context.Context, jobs.Job) error {
		return errors.New("host down")
	})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if len(q.rescheduled) != 1 || !q.rescheduled[0].Equal(base.Add(time.Second)) {
		t.Fatalf("expected one reschedule at +1s, got %v", q.rescheduled)
	}

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if len(q.failed) != 1 {
		t.Fatalf("expected job to be dead-lettered after max attempts, failed=%d", len(q.failed))
	}
}

func TestProcessOne_PermanentAndUnknown(t *testing.T) {
	tests := []struct {
		name    string
		handler Handler
	}{
		{"permanent", func(context.Context, jobs.Job) error { return ErrPermanent }},
		{"panic", func(context.Context, jobs.Job) error { panic("boom") }},
		{"unregistered", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{pending: []jobs.Job{mediaJob(t, "https://media.test/a.jpg")}}
			w, _ := newTestWorker(q)
			if tt.handler != nil {
				w.Handle(jobs.JobMediaDelete, tt.handler)
			}

			if _, err := w.ProcessOne(context.Background()); err != nil {
				t.Fatalf("ProcessOne: %v", err)
			}
			if len(q.failed) != 1 || len(q.rescheduled) != 0 {
				t.Fatalf("expected immediate dead-letter, failed=%d rescheduled=%d", len(q.failed), len(q.rescheduled))
			}
		})
	}
}

type fakeStore struct {
	err     error
	deleted []string
}

func (s *fakeStore) Upload(context.Context, *multipart.FileHeader, string) (string, error) {
	return "", nil
}

func (s *fakeStore) Delete(_ context.Context, url string) error {
	s.deleted = append(s.deleted, url)
	return s.err
}

func TestMediaDeleteHandler(t *testing.T) {
	j := mediaJob(t, "https://media.test/a.jpg")

	store := &fakeStore{}
	if err := MediaDeleteHandler(store)(context.Background(), j); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "https://media.test/a.jpg" {
		t.Fatalf("unexpected deletes: %v", store.deleted)
	}

	store = &fakeStore{err: media.ErrNotManaged}
	if err := MediaDeleteHandler(store)(context.Background(), j); !errors.Is(err, ErrPermanent) {
		t.Fatalf("got %v, want ErrPermanent", err)
	}

	store = &fakeStore{err: errors.New("timeout")}
	err := MediaDeleteHandler(store)(context.Background(), j)
	if err == nil || errors.Is(err, ErrPermanent) {
		t.Fatalf("transient failure should be retryable, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	q := &fakeQueue{}
	w, _ := newTestWorker(q)
	w.cfg.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !w.Ready() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !w.Ready() {
		t.Fatalf("worker never became ready")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if w.Ready() {
		t.Fatalf("worker still ready after shutdown")
	}
}

func TestHealthHandler(t *testing.T) {
	q := &fakeQueue{}
	w, _ := newTestWorker(q)
	h := w.HealthHandler(q, nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before Run = %d, want 503", rec.Code)
	}

	w.setReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz when ready = %d, want 200", rec.Code)
	}
}

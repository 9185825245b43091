package media

import (
	"context"
	"errors"
	"mime/multipart"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("media host circuit open")

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

type ProtectedConfig struct {
	Timeout          time.Duration // per call
	FailureThreshold int           // consecutive failures before opening
	Cooldown         time.Duration // time spent open before a trial call
	HalfOpenMaxCalls int
}

// OpsRecorder receives one observation per media call.
type OpsRecorder func(op, result string)

// ProtectedStore bounds every media host call with a timeout and stops
// calling a failing host for a cooldown period.
type ProtectedStore struct {
	inner  Store
	cfg    ProtectedConfig
	record OpsRecorder
	now    func() time.Time

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedStore(inner Store, cfg ProtectedConfig, record OpsRecorder) *ProtectedStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	if record == nil {
		record = func(string, string) {}
	}

	return &ProtectedStore{
		inner:  inner,
		cfg:    cfg,
		record: record,
		now:    time.Now,
		state:  stateClosed,
	}
}

func (p *ProtectedStore) Upload(ctx context.Context, fh *multipart.FileHeader, folder string) (string, error) {
	var url string
	err := p.call(ctx, "upload", func(ctx context.Context) error {
		var err error
		url, err = p.inner.Upload(ctx, fh, folder)
		return err
	})
	return url, err
}

func (p *ProtectedStore) Delete(ctx context.Context, url string) error {
	return p.call(ctx, "delete", func(ctx context.Context) error {
		return p.inner.Delete(ctx, url)
	})
}

// State is exposed for readiness reporting.
func (p *ProtectedStore) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.state)
}

func (p *ProtectedStore) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if !p.allow() {
		p.record(op, "rejected")
		return ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	err := fn(callCtx)

	// caller errors say nothing about the host's health
	countable := err != nil && !errors.Is(err, ErrNoFile) && !errors.Is(err, ErrNotManaged) && ctx.Err() == nil
	p.after(countable, err == nil)

	if err != nil {
		p.record(op, "error")
	} else {
		p.record(op, "ok")
	}
	return err
}

func (p *ProtectedStore) allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateOpen:
		if p.now().Sub(p.openedAt) < p.cfg.Cooldown {
			return false
		}
		p.state = stateHalfOpen
		p.halfOpenInFlight = 1
		return true
	case stateHalfOpen:
		if p.halfOpenInFlight >= p.cfg.HalfOpenMaxCalls {
			return false
		}
		p.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (p *ProtectedStore) after(failed, succeeded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateHalfOpen && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}

	if succeeded {
		p.consecutiveFailures = 0
		p.state = stateClosed
		return
	}
	if !failed {
		return
	}

	p.consecutiveFailures++

	if p.state == stateHalfOpen || p.consecutiveFailures >= p.cfg.FailureThreshold {
		p.state = stateOpen
		p.openedAt = p.now()
	}
}

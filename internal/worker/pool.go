package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Norgate-AV/pcs/internal/logger"
	"github.com/Norgate-AV/pcs/internal/metrics"
)

// ErrTerminated is returned by DoWork once the pool has been terminated
var ErrTerminated = errors.New("worker pool terminated")

// DefaultShutdownGrace is how long a worker gets to exit after its stdin closes
const DefaultShutdownGrace = 2 * time.Second

// Pool hands requests to at most capacity workers, spawning them lazily and
// reusing them between requests
type Pool struct {
	spawn    SpawnFunc
	capacity int
	sem      *semaphore.Weighted
	log      *zap.Logger
	recorder metrics.Recorder
	grace    time.Duration

	mu         sync.Mutex
	idle       []*Worker
	live       map[*Worker]struct{}
	busy       int
	nextID     int
	terminated bool
}

// Option configures a Pool
type Option func(*Pool)

// WithLogger sets the logger used by the pool and its workers
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) { p.log = logger.OrNop(l) }
}

// WithRecorder sets the metrics recorder used by the pool
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pool) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithShutdownGrace overrides DefaultShutdownGrace
func WithShutdownGrace(d time.Duration) Option {
	return func(p *Pool) { p.grace = d }
}

// NewPool creates a pool of up to capacity workers started by spawn
func NewPool(spawn SpawnFunc, capacity int, opts ...Option) *Pool {
	if capacity < 1 {
		capacity = 1
	}

	p := &Pool{
		spawn:    spawn,
		capacity: capacity,
		sem:      semaphore.NewWeighted(int64(capacity)),
		log:      zap.NewNop(),
		recorder: metrics.NoopRecorder{},
		grace:    DefaultShutdownGrace,
		live:     make(map[*Worker]struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Capacity returns the maximum number of concurrent workers
func (p *Pool) Capacity() int { return p.capacity }

// DoWork runs req on an idle worker, blocking while all workers are busy.
// A worker that fails is discarded and replaced on a later call.
func (p *Pool) DoWork(ctx context.Context, req WorkRequest) (WorkResponse, error) {
	if p.isTerminated() {
		return WorkResponse{}, ErrTerminated
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return WorkResponse{}, err
	}
	defer p.sem.Release(1)

	w, err := p.checkout()
	if err != nil {
		return WorkResponse{}, err
	}

	resp, err := w.do(ctx, req)
	if err != nil {
		p.discard(w)
		return WorkResponse{}, fmt.Errorf("worker %d failed: %w", w.id, err)
	}

	p.checkin(w)
	return resp, nil
}

// Terminate stops all workers. Later calls are no-ops.
func (p *Pool) Terminate() error {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return nil
	}

	p.terminated = true
	workers := make([]*Worker, 0, len(p.live))
	for w := range p.live {
		workers = append(workers, w)
	}
	p.live = make(map[*Worker]struct{})
	p.idle = nil
	p.mu.Unlock()

	var errs error
	for _, w := range workers {
		errs = multierr.Append(errs, w.close(p.grace))
	}

	p.log.Info("Terminated worker pool", zap.Int("workers", len(workers)))
	return errs
}

func (p *Pool) isTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.terminated
}

func (p *Pool) checkout() (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated {
		return nil, ErrTerminated
	}

	var w *Worker
	if n := len(p.idle); n > 0 {
		w = p.idle[n-1]
		p.idle = p.idle[:n-1]
	} else {
		p.nextID++

		var err error
		w, err = startWorker(p.spawn, p.nextID, p.log)
		if err != nil {
			return nil, err
		}

		p.live[w] = struct{}{}
	}

	p.busy++
	p.recorder.SetBusyWorkers(p.busy)

	return w, nil
}

func (p *Pool) checkin(w *Worker) {
	p.mu.Lock()
	p.busy--
	p.recorder.SetBusyWorkers(p.busy)

	if p.terminated {
		p.mu.Unlock()
		w.kill()
		return
	}

	p.idle = append(p.idle, w)
	p.mu.Unlock()
}

func (p *Pool) discard(w *Worker) {
	p.mu.Lock()
	p.busy--
	p.recorder.SetBusyWorkers(p.busy)
	delete(p.live, w)
	p.mu.Unlock()

	w.kill()
	p.log.Warn("Discarded worker", zap.Int("worker", w.id))
}

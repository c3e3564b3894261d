package explain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("ranking pool is closed")

// Request asks a worker to rank one model.
type Request struct {
	Model     string
	Locations Locations
}

// Reply is the single terminal message for a Request. Exactly one of Result
// and Err is set.
type Reply struct {
	Result *Result
	Err    string
}

// RunFunc computes the result for one request on a worker.
type RunFunc func(ctx context.Context, req Request) (*Result, error)

type job struct {
	ctx   context.Context
	req   Request
	reply chan Reply
}

// Pool runs ranking requests on a fixed set of workers. A dispatched request
// always runs to completion; the submitter may stop waiting on its reply
// channel at any time.
type Pool struct {
	jobs    chan job
	run     RunFunc
	timeout time.Duration
	logger  *slog.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines. timeout bounds a single request once a
// worker picks it up; zero means no bound.
func NewPool(workers int, timeout time.Duration, run RunFunc, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		jobs:    make(chan job),
		run:     run,
		timeout: timeout,
		logger:  logger,
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

// Submit hands req to a worker and returns the channel its reply arrives on.
// It blocks until a worker accepts the request or ctx ends.
func (p *Pool) Submit(ctx context.Context, req Request) (<-chan Reply, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	reply := make(chan Reply, 1)
	select {
	case p.jobs <- job{ctx: ctx, req: req, reply: reply}:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting requests and waits for in-flight ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		j.reply <- p.handle(j)
	}
}

func (p *Pool) handle(j job) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("ranking worker panicked", "model", j.req.Model, "panic", r)
			reply = Reply{Err: fmt.Sprintf("ranking %s failed unexpectedly", j.req.Model)}
		}
	}()

	ctx := context.WithoutCancel(j.ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res, err := p.run(ctx, j.req)
	if err != nil {
		return Reply{Err: err.Error()}
	}
	if res == nil {
		return Reply{Err: fmt.Sprintf("ranking %s produced no result", j.req.Model)}
	}
	return Reply{Result: res}
}

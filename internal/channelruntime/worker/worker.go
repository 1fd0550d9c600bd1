package worker

import (
	"context"
	"sync"
)

type StartOptions[J any] struct {
	Ctx    context.Context
	Sem    chan struct{}
	Jobs   <-chan J
	Handle func(context.Context, J)
}

// Start runs jobs from one queue in order. Sem bounds how many queues may be
// handling a job at the same time.
func Start[J any](opts StartOptions[J]) {
	go func() {
		for {
			select {
			case <-opts.Ctx.Done():
				return
			case job, ok := <-opts.Jobs:
				if !ok {
					return
				}
				select {
				case opts.Sem <- struct{}{}:
				case <-opts.Ctx.Done():
					return
				}
				func() {
					defer func() { <-opts.Sem }()
					opts.Handle(opts.Ctx, job)
				}()
			}
		}
	}()
}

func Enqueue[J any](ctx, workersCtx context.Context, jobs chan<- J, job J) error {
	if ctx == nil {
		ctx = workersCtx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-workersCtx.Done():
		return workersCtx.Err()
	case jobs <- job:
		return nil
	}
}

// Pool keeps one ordered queue per key, so jobs for the same key never run
// concurrently while different keys proceed in parallel.
type Pool[K comparable, J any] struct {
	ctx    context.Context
	sem    chan struct{}
	buffer int
	handle func(context.Context, J)

	mu     sync.Mutex
	queues map[K]chan J
}

func NewPool[K comparable, J any](ctx context.Context, maxConcurrency, buffer int, handle func(context.Context, J)) *Pool[K, J] {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Pool[K, J]{
		ctx:    ctx,
		sem:    make(chan struct{}, maxConcurrency),
		buffer: buffer,
		handle: handle,
		queues: make(map[K]chan J),
	}
}

func (p *Pool[K, J]) Enqueue(ctx context.Context, key K, job J) error {
	p.mu.Lock()
	q, ok := p.queues[key]
	if !ok {
		q = make(chan J, p.buffer)
		p.queues[key] = q
		Start(StartOptions[J]{
			Ctx:    p.ctx,
			Sem:    p.sem,
			Jobs:   q,
			Handle: p.handle,
		})
	}
	p.mu.Unlock()
	return Enqueue(ctx, p.ctx, q, job)
}

func (p *Pool[K, J]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues)
}

package work

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrWorkQueueClosed = errors.New("work queue closed")

// WorkHandler runs one job on a worker goroutine.
type WorkHandler func(ctx context.Context) error

type workItem struct {
	ctx     context.Context
	handler WorkHandler
	done    chan error
}

// WorkQueue runs submitted jobs on a fixed set of workers. Jobs wait in a
// bounded backlog when every worker is busy.
type WorkQueue struct {
	items      chan workItem
	stopChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	stopped    bool
	numWorkers int
	active     atomic.Int64
}

// NewWorkQueue starts numWorkers workers with room for backlog waiting jobs.
func NewWorkQueue(numWorkers, backlog int) *WorkQueue {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if backlog < 0 {
		backlog = 0
	}
	wq := &WorkQueue{
		items:      make(chan workItem, backlog),
		stopChan:   make(chan struct{}),
		numWorkers: numWorkers,
	}
	for i := 0; i < numWorkers; i++ {
		wq.wg.Add(1)
		go wq.run()
	}
	return wq
}

// Do queues handler and blocks until it has run. A job whose ctx ends
// before a worker picks it up is skipped and Do returns ctx.Err(). Once the
// queue stops, waiting and queued jobs are skipped with ErrWorkQueueClosed
// and callers of jobs still running are released with the same error.
func (wq *WorkQueue) Do(ctx context.Context, handler WorkHandler) error {
	if wq.IsStopped() {
		return ErrWorkQueueClosed
	}
	// done is buffered so a worker finishing after Stop never blocks
	item := workItem{ctx: ctx, handler: handler, done: make(chan error, 1)}
	select {
	case wq.items <- item:
	case <-ctx.Done():
		return ctx.Err()
	case <-wq.stopChan:
		return ErrWorkQueueClosed
	}

	select {
	case err := <-item.done:
		return err
	case <-wq.stopChan:
		return ErrWorkQueueClosed
	}
}

// Stop stops the workers and waits for running jobs without a limit.
func (wq *WorkQueue) Stop() {
	_ = wq.StopContext(context.Background())
}

// StopContext stops accepting jobs, skips the backlog and waits for
// running jobs until ctx ends. Jobs still running at that point are
// abandoned and ctx.Err() is returned.
func (wq *WorkQueue) StopContext(ctx context.Context) error {
	wq.mu.Lock()
	if !wq.stopped {
		wq.stopped = true
		close(wq.stopChan)
	}
	wq.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wq.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsStopped checks if the work queue is stopped
func (wq *WorkQueue) IsStopped() bool {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return wq.stopped
}

// Stats reports worker count, jobs running and jobs waiting.
func (wq *WorkQueue) Stats() (workers, active, queued int) {
	return wq.numWorkers, int(wq.active.Load()), len(wq.items)
}

func (wq *WorkQueue) run() {
	defer wq.wg.Done()
	for {
		select {
		case <-wq.stopChan:
			return
		case item := <-wq.items:
			wq.process(item)
		}
	}
}

func (wq *WorkQueue) process(item workItem) {
	select {
	case <-wq.stopChan:
		item.done <- ErrWorkQueueClosed
		return
	default:
	}
	if err := item.ctx.Err(); err != nil {
		item.done <- err
		return
	}
	wq.active.Add(1)
	defer wq.active.Add(-1)
	item.done <- item.handler(item.ctx)
}

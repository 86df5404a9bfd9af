package content

import (
	"context"
	"errors"
	"sync"
)

// ErrServiceClosed is returned for operations submitted after Close.
var ErrServiceClosed = errors.New("content: service closed")

const defaultQueueCapacity = 64

type documentTask struct {
	ctx  context.Context
	run  func(context.Context, DocumentStore) error
	done chan error
}

// documentQueue runs every document task on one worker goroutine so that
// read-modify-write cycles never interleave.
type documentQueue struct {
	store     DocumentStore
	tasks     chan documentTask
	closed    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newDocumentQueue(store DocumentStore, capacity int) *documentQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	queue := &documentQueue{
		store:   store,
		tasks:   make(chan documentTask, capacity),
		closed:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go queue.worker()
	return queue
}

// execute submits run and waits for its result. A context cancelled before the
// task starts skips it; cancellation after it starts does not abort the write.
func (q *documentQueue) execute(ctx context.Context, run func(context.Context, DocumentStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	task := documentTask{ctx: ctx, run: run, done: make(chan error, 1)}

	select {
	case <-q.closed:
		return ErrServiceClosed
	default:
	}

	select {
	case q.tasks <- task:
	case <-q.closed:
		return ErrServiceClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once queued the task either runs or is skipped by the worker. Its
	// result is returned in both cases.
	select {
	case err := <-task.done:
		return err
	case <-q.stopped:
		select {
		case err := <-task.done:
			return err
		default:
			return ErrServiceClosed
		}
	}
}

func (q *documentQueue) worker() {
	defer close(q.stopped)
	for {
		select {
		case <-q.closed:
			q.drain()
			return
		case task := <-q.tasks:
			q.runTask(task)
		}
	}
}

func (q *documentQueue) runTask(task documentTask) {
	if err := task.ctx.Err(); err != nil {
		task.done <- err
		return
	}
	task.done <- task.run(task.ctx, q.store)
}

// drain fails tasks that were accepted before close but never started.
func (q *documentQueue) drain() {
	for {
		select {
		case task := <-q.tasks:
			task.done <- ErrServiceClosed
		default:
			return
		}
	}
}

func (q *documentQueue) close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
	<-q.stopped
}

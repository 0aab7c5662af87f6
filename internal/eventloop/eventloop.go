// Package eventloop provides the single control thread every session call and
// every asynchronous backend result runs on.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work is posted to a stopped queue.
var ErrClosed = errors.New("eventloop: queue closed")

// Poster schedules fn on the control thread.
type Poster interface {
	Post(fn func())
}

// Queue runs posted functions one at a time on its own goroutine.
type Queue struct {
	tasks chan func()
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts a queue with the given backlog.
func NewQueue(backlog int) *Queue {
	if backlog <= 0 {
		backlog = 64
	}
	q := &Queue{
		tasks: make(chan func(), backlog),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for fn := range q.tasks {
		fn()
	}
}

// Post implements Poster. Work posted after Close is dropped.
func (q *Queue) Post(fn func()) {
	_ = q.TryPost(fn)
}

// TryPost is Post that reports a closed queue.
func (q *Queue) TryPost(fn func()) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.tasks <- fn
	return nil
}

// Do runs fn on the queue and waits for it to finish.
func (q *Queue) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := q.TryPost(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits until the backlog has drained.
// It must not be called from the queue goroutine.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.done
}

// Manual collects posted work until RunPending is called. Tests use it to
// make asynchronous delivery deterministic.
type Manual struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

// NewManual returns an empty manual queue.
func NewManual() *Manual {
	return &Manual{wake: make(chan struct{}, 1)}
}

// Post implements Poster.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued functions.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// RunPending runs everything queued so far, including work queued by the
// functions it runs, and returns how many ran.
func (m *Manual) RunPending() int {
	n := 0
	for {
		m.mu.Lock()
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

// Await blocks until at least one function is pending, then runs everything.
func (m *Manual) Await(ctx context.Context) (int, error) {
	for {
		if n := m.RunPending(); n > 0 {
			return n, nil
		}
		select {
		case <-m.wake:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Inline runs posted work immediately on the caller's goroutine.
type Inline struct{}

// Post implements Poster.
func (Inline) Post(fn func()) { fn() }

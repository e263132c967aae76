package platform

import "sync"

// Queue is an unbounded FIFO of funcs bound for the event loop. Push never
// blocks; Wake fires at least once after any Push.
type Queue struct {
	mu    sync.Mutex
	items []func()
	wake  chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends fn.
func (q *Queue) Push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Wake returns the channel signalled after a Push.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// Drain removes and returns every queued func in push order.
func (q *Queue) Drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len reports how many funcs are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

package mapcache

import (
	"sync"

	"github.com/AkatukiSora/mapassist/internal/game"
)

// batchQueue is an unbounded FIFO of prefetch batches with a single
// consumer. Pushing never blocks the poll loop.
type batchQueue struct {
	mu      sync.Mutex
	batches [][]game.Area
	wake    chan struct{}
	closed  bool
}

func newBatchQueue() *batchQueue {
	return &batchQueue{wake: make(chan struct{}, 1)}
}

// push appends a batch. It reports false once the queue is closed.
func (q *batchQueue) push(batch []game.Area) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.batches = append(q.batches, batch)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// pop blocks until a batch is available. After close it keeps returning the
// batches queued before the close, then reports false.
func (q *batchQueue) pop() ([]game.Area, bool) {
	for {
		q.mu.Lock()
		if len(q.batches) > 0 {
			batch := q.batches[0]
			q.batches[0] = nil
			q.batches = q.batches[1:]
			q.mu.Unlock()
			return batch, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.wake
	}
}

func (q *batchQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.wake)
	}
}

func (q *batchQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

package interview

import (
	"context"
	"sync"
)

type jobKind int

const (
	jobStart jobKind = iota
	jobUtterance
	jobTranscribe
)

type job struct {
	kind   jobKind
	text   string
	source string
	audio  []byte
	format string
}

// jobQueue is an unbounded FIFO drained by one worker. Push never blocks so
// the segmenter timer can enqueue from its own goroutine.
type jobQueue struct {
	mu     sync.Mutex
	items  []job
	closed bool
	notify chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{notify: make(chan struct{}, 1)}
}

func (q *jobQueue) push(j job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, j)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// pop blocks until a job is available, the queue is closed and drained, or
// ctx is done.
func (q *jobQueue) pop(ctx context.Context) (job, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			j := q.items[0]
			q.items[0] = job{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return j, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return job{}, false
		}

		select {
		case <-ctx.Done():
			return job{}, false
		case <-q.notify:
		}
	}
}

func (q *jobQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

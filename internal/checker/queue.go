package checker

import "sync"

// queue is the cross-goroutine submission queue: unbounded, multi-producer,
// consumed only by the worker. Producers never block, which rules out a
// plain buffered channel; pop blocks optionally so the worker can wait for
// the next submission without spinning.
type queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []message
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(m message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *queue) pop(block bool) (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if !block {
			return message{}, false
		}
		q.cond.Wait()
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

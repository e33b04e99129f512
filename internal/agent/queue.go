package agent

import "sync"

// Queue is the outbound message FIFO (OMQ). Multiple producers (the router,
// job executors, the heartbeat ticker) enqueue; the session is the single
// consumer that drains it on writable events. enqueue additionally signals a
// writable-turn request through notify so the session does not need to poll.
type Queue struct {
	mu     sync.Mutex
	items  []string
	notify chan struct{}
}

// NewQueue constructs an empty outbound queue.
func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends text to the tail of the queue and requests a writable turn.
func (q *Queue) Enqueue(text string) {
	q.mu.Lock()
	q.items = append(q.items, text)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
		// A writable turn is already pending; no need to double-signal.
	}
}

// Dequeue removes and returns the head of the queue. ok is false when the
// queue was empty.
func (q *Queue) Dequeue() (text string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	text = q.items[0]
	q.items = q.items[1:]
	return text, true
}

// Len reports the number of messages currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify returns the channel the session selects on to learn a writable turn
// was requested. It is buffered to size 1: a burst of enqueues during a
// single busy tick collapses to one wakeup, and the session's drain loop is
// responsible for draining until empty before waiting again.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// Package queue implements MainQueuePolicy (a bounded per-monitor FIFO) and
// WindowQueuePolicy (a per-window FIFO with an in-flight flag).
package queue

import (
	"sync"

	"github.com/deskmux/deskmux/pkg/models"
)

// EnqueueResult is the outcome of MainQueue.Enqueue.
type EnqueueResult string

const (
	Queued       EnqueueResult = "queued"
	RejectedFull EnqueueResult = "rejected_full"
)

// MainQueue is a bounded FIFO of tasks for one monitor, tie-broken by
// arrival. No priorities.
type MainQueue struct {
	mu     sync.Mutex
	items  chan models.Task
	closed bool
}

// NewMainQueue builds a MainQueue with the given capacity (spec default 10).
func NewMainQueue(capacity int) *MainQueue {
	return &MainQueue{items: make(chan models.Task, capacity)}
}

// Enqueue appends task, or reports rejected_full if the queue is at capacity.
func (q *MainQueue) Enqueue(task models.Task) EnqueueResult {
	select {
	case q.items <- task:
		return Queued
	default:
		return RejectedFull
	}
}

// Dequeue blocks for the next task, or returns ok=false once the queue is
// drained and Close has been called.
func (q *MainQueue) Dequeue() (models.Task, bool) {
	t, ok := <-q.items
	return t, ok
}

// Len reports the number of currently queued tasks.
func (q *MainQueue) Len() int {
	return len(q.items)
}

// Clear discards all pending tasks, used on reset.
func (q *MainQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case <-q.items:
		default:
			return
		}
	}
}

// Close marks the queue drained; Dequeue returns ok=false once empty.
func (q *MainQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.items)
}

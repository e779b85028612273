package queue

import (
	"sync"

	"github.com/deskmux/deskmux/pkg/models"
)

type windowState struct {
	pending  []models.Task
	inFlight bool
}

// WindowQueue holds, per window, an independent FIFO plus an in-flight
// flag. Invariant: at any instant, at most one task per window is being
// handled.
type WindowQueue struct {
	mu      sync.Mutex
	windows map[string]*windowState
}

// NewWindowQueue builds an empty WindowQueue.
func NewWindowQueue() *WindowQueue {
	return &WindowQueue{windows: make(map[string]*windowState)}
}

func (q *WindowQueue) stateLocked(windowID string) *windowState {
	st, ok := q.windows[windowID]
	if !ok {
		st = &windowState{}
		q.windows[windowID] = st
	}
	return st
}

// Enqueue appends task to windowID's queue and returns its 1-based position
// (1 means it will run next).
func (q *WindowQueue) Enqueue(windowID string, task models.Task) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := q.stateLocked(windowID)
	st.pending = append(st.pending, task)
	return len(st.pending)
}

// Next returns the next task for windowID if one is pending and none is
// in-flight, marking it in-flight.
func (q *WindowQueue) Next(windowID string) (models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.windows[windowID]
	if !ok || st.inFlight || len(st.pending) == 0 {
		return models.Task{}, false
	}
	t := st.pending[0]
	st.pending = st.pending[1:]
	st.inFlight = true
	return t, true
}

// MarkInFlight flags windowID as currently handling a task.
func (q *WindowQueue) MarkInFlight(windowID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stateLocked(windowID).inFlight = true
}

// MarkDone clears the in-flight flag.
func (q *WindowQueue) MarkDone(windowID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.windows[windowID]; ok {
		st.inFlight = false
	}
}

// IsInFlight reports whether a task is currently being handled for windowID.
func (q *WindowQueue) IsInFlight(windowID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.windows[windowID]
	return ok && st.inFlight
}

// Clear drops windowID's queue and in-flight flag and returns the pending
// tasks it dropped, used on window close.
func (q *WindowQueue) Clear(windowID string) []models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.windows[windowID]
	if !ok {
		return nil
	}
	dropped := st.pending
	delete(q.windows, windowID)
	return dropped
}

// Len returns the number of pending (not in-flight) tasks for windowID.
func (q *WindowQueue) Len(windowID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.windows[windowID]; ok {
		return len(st.pending)
	}
	return 0
}

// Package queue provides the bounded FIFO of pending WIP requests.
package queue

import (
	"errors"
	"sync"

	"github.com/Arimodu/wipbot/internal/domain/request"
)

// Errors
var (
	ErrQueueFull     = errors.New("request queue is full")
	ErrQuotaExceeded = errors.New("user request quota exceeded")
)

// Listener receives a queue snapshot whenever the queue changes.
type Listener func(items []request.QueueItem)

// Queue is a bounded, quota-aware FIFO of pending requests. All mutations
// are serialized through a single mutex; the queue is low-contention.
type Queue struct {
	mu        sync.Mutex
	items     []request.QueueItem
	capacity  int
	listeners []Listener
}

// New creates a queue with the given capacity.
func New(capacity int) *Queue {
	return &Queue{
		items:    make([]request.QueueItem, 0, capacity),
		capacity: capacity,
	}
}

// Subscribe registers a listener for queue-changed notifications.
func (q *Queue) Subscribe(l Listener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, l)
}

// Enqueue appends an item. The requester's limit is re-checked here so the
// per-user invariant holds at the moment of insertion regardless of what the
// interpreter saw earlier.
func (q *Queue) Enqueue(item request.QueueItem, limit int) error {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	if q.countForLocked(item.UserName) >= limit {
		q.mu.Unlock()
		return ErrQuotaExceeded
	}
	q.items = append(q.items, item)
	snapshot, listeners := q.snapshotLocked()
	q.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// CancelFirstMatching removes the oldest item belonging to the given user.
// The queue-changed notification fires even when nothing was removed; the UI
// relies on the unconditional refresh.
func (q *Queue) CancelFirstMatching(userName string) (request.QueueItem, bool) {
	q.mu.Lock()
	var removed request.QueueItem
	found := false
	for i, item := range q.items {
		if item.UserName == userName {
			removed = item
			q.items = append(q.items[:i], q.items[i+1:]...)
			found = true
			break
		}
	}
	snapshot, listeners := q.snapshotLocked()
	q.mu.Unlock()

	notify(listeners, snapshot)
	return removed, found
}

// Dequeue removes and returns the head item.
func (q *Queue) Dequeue() (request.QueueItem, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return request.QueueItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	snapshot, listeners := q.snapshotLocked()
	q.mu.Unlock()

	notify(listeners, snapshot)
	return item, true
}

// Snapshot returns a copy of the queued items in FIFO order.
func (q *Queue) Snapshot() []request.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	snapshot := make([]request.QueueItem, len(q.items))
	copy(snapshot, q.items)
	return snapshot
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// CountFor returns the number of queued items belonging to a user.
func (q *Queue) CountFor(userName string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.countForLocked(userName)
}

func (q *Queue) countForLocked(userName string) int {
	count := 0
	for _, item := range q.items {
		if item.UserName == userName {
			count++
		}
	}
	return count
}

// snapshotLocked copies the items and listeners so notifications can run
// outside the lock. Must be called with the lock held.
func (q *Queue) snapshotLocked() ([]request.QueueItem, []Listener) {
	snapshot := make([]request.QueueItem, len(q.items))
	copy(snapshot, q.items)
	listeners := make([]Listener, len(q.listeners))
	copy(listeners, q.listeners)
	return snapshot, listeners
}

func notify(listeners []Listener, snapshot []request.QueueItem) {
	for _, l := range listeners {
		l(snapshot)
	}
}

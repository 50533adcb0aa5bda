// Package pending tracks players with an in-flight refresh so the same
// player is never queued twice at once.
package pending

import (
	"context"
	"sync"
	"sync/atomic"
)

// Tracker records players whose refresh is queued or running.
type Tracker interface {
	// MarkPending atomically checks whether playerID already has a refresh
	// in flight and marks it if not. Returns true if one was already
	// pending, false if it was newly marked.
	MarkPending(ctx context.Context, playerID string) bool

	// Clear removes a player from the pending set, allowing the next
	// refresh to be queued. Called by the worker when a task finishes, and
	// by the enqueuer when the queue rejects a task.
	Clear(ctx context.Context, playerID string)

	Size() int64
}

// node is a single entry in the eviction list.
type node struct {
	id   string
	next *node
}

func (n *node) reset() {
	n.id = ""
	n.next = nil
}

// inMemoryTracker implements Tracker with a map plus a linked list for
// bounded LIFO eviction. With maxSize <= 0 the tracker is unbounded and the
// list is unused. Eviction is a safety valve against workers that die
// without clearing; an evicted player simply becomes refreshable again.
type inMemoryTracker struct {
	mu       sync.Mutex
	marked   map[string]*node
	head     *node
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryTracker creates a tracker with configuration options.
func NewInMemoryTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.marked = make(map[string]*node)
	if t.maxSize > 0 {
		t.nodePool = sync.Pool{
			New: func() interface{} {
				return &node{}
			},
		}
	}
	return t
}

func (t *inMemoryTracker) MarkPending(ctx context.Context, playerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.marked[playerID]; exists {
		return true
	}

	if t.maxSize > 0 {
		if len(t.marked) >= t.maxSize {
			t.evictOldest()
		}
		n := t.nodePool.Get().(*node)
		n.id = playerID
		n.next = t.head
		t.head = n
		t.marked[playerID] = n
	} else {
		t.marked[playerID] = nil
	}
	t.size.Add(1)
	return false
}

func (t *inMemoryTracker) Clear(ctx context.Context, playerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, exists := t.marked[playerID]
	if !exists {
		return
	}
	delete(t.marked, playerID)
	t.size.Add(-1)

	if t.maxSize <= 0 {
		return
	}
	if t.head == n {
		t.head = n.next
	} else {
		current := t.head
		for current != nil && current.next != n {
			current = current.next
		}
		if current != nil {
			current.next = n.next
		}
	}
	n.reset()
	t.nodePool.Put(n)
}

// evictOldest drops the tail of the list. Must be called with t.mu held.
func (t *inMemoryTracker) evictOldest() {
	if len(t.marked) == 0 || t.head == nil {
		return
	}

	current := t.head
	if current.next == nil {
		delete(t.marked, current.id)
		current.reset()
		t.nodePool.Put(current)
		t.head = nil
		t.size.Add(-1)
		return
	}

	var prev *node
	for current.next != nil {
		prev = current
		current = current.next
	}
	prev.next = nil
	delete(t.marked, current.id)
	current.reset()
	t.nodePool.Put(current)
	t.size.Add(-1)
}

func (t *inMemoryTracker) Size() int64 {
	return t.size.Load()
}

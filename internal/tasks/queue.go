package tasks

import "sync"

// Queue is an ordered set of pending IDs. Pushing an ID that is already queued keeps the single entry.
type Queue struct {
	mu    sync.Mutex
	items []string
	index map[string]struct{}
}

// NewQueue creates an empty Queue
func NewQueue() *Queue {
	return &Queue{index: make(map[string]struct{})}
}

// Push appends id unless it is already queued and reports whether it was added.
func (q *Queue) Push(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[id]; ok {
		return false
	}
	q.index[id] = struct{}{}
	q.items = append(q.items, id)
	return true
}

// Pop removes and returns the oldest ID.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items = q.items[1:]
	delete(q.index, id)
	return id, true
}

// Remove drops id if queued.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[id]; !ok {
		return
	}
	delete(q.index, id)
	for i, item := range q.items {
		if item == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Clear drops every queued ID.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	q.index = make(map[string]struct{})
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queued IDs in order.
func (q *Queue) Items() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.items...)
}

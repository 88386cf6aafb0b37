// Package mailbox bridges the network goroutine and the simulation goroutine.
// Each peer owns a Queue guarded by its own lock, so a slow or busy peer never
// stalls another peer's traffic.
package mailbox

import "sync"

// DefaultLimit bounds a queue when no limit is given.
const DefaultLimit = 256

// Queue is a FIFO safe for concurrent producers and a single consumer. Push
// and Pop never block on each other for longer than a slice copy.
type Queue[M any] struct {
	mu    sync.Mutex
	data  []M
	head  int
	count int
	limit int
}

func NewQueue[M any](limit int) *Queue[M] {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Queue[M]{data: make([]M, 8), limit: limit}
}

// Push appends m, returning false if the queue is full.
func (q *Queue[M]) Push(m M) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == q.limit {
		return false
	}
	if q.count == len(q.data) {
		q.growLocked()
	}
	q.data[(q.head+q.count)%len(q.data)] = m
	q.count++
	return true
}

// Pop removes the oldest message. It returns immediately when empty.
func (q *Queue[M]) Pop() (M, bool) {
	var zero M
	if q == nil {
		return zero, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return zero, false
	}
	m := q.data[q.head]
	q.data[q.head] = zero
	q.head = (q.head + 1) % len(q.data)
	q.count--
	return m, true
}

// Drain returns all queued messages in FIFO order and empties the queue.
func (q *Queue[M]) Drain() []M {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	out := make([]M, q.count)
	var zero M
	for i := range out {
		idx := (q.head + i) % len(q.data)
		out[i] = q.data[idx]
		q.data[idx] = zero
	}
	q.head = 0
	q.count = 0
	return out
}

func (q *Queue[M]) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue[M]) growLocked() {
	size := len(q.data) * 2
	if size > q.limit {
		size = q.limit
	}
	data := make([]M, size)
	for i := 0; i < q.count; i++ {
		data[i] = q.data[(q.head+i)%len(q.data)]
	}
	q.data = data
	q.head = 0
}

// Set keys queues by peer. The set lock only guards the map; message traffic
// takes the per-queue lock.
type Set[K comparable, M any] struct {
	mu     sync.RWMutex
	queues map[K]*Queue[M]
	limit  int
}

func NewSet[K comparable, M any](limit int) *Set[K, M] {
	return &Set[K, M]{queues: make(map[K]*Queue[M]), limit: limit}
}

// Open creates the queue for k. It reports false and returns the existing
// queue if k was already open.
func (s *Set[K, M]) Open(k K) (*Queue[M], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[k]; ok {
		return q, false
	}
	q := NewQueue[M](s.limit)
	s.queues[k] = q
	return q, true
}

// Get returns the queue for k, or nil.
func (s *Set[K, M]) Get(k K) *Queue[M] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queues[k]
}

// Push queues m for k. It returns false if k has no queue or the queue is full.
func (s *Set[K, M]) Push(k K, m M) bool {
	return s.Get(k).Push(m)
}

func (s *Set[K, M]) Pop(k K) (M, bool) {
	return s.Get(k).Pop()
}

// Close destroys the queue for k along with anything still in it.
func (s *Set[K, M]) Close(k K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, k)
}

func (s *Set[K, M]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, 0, len(s.queues))
	for k := range s.queues {
		keys = append(keys, k)
	}
	return keys
}

func (s *Set[K, M]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queues)
}

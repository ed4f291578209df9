package engine

import (
	"container/heap"
	"time"
)

type (
	// eventID identifies a scheduled action so that it can be cancelled. The
	// zero eventID is never used.
	eventID uint64

	event struct {
		at    time.Duration
		seq   uint64
		id    eventID
		fn    func()
		index int
	}

	eventHeap []*event

	// scheduler is a priority queue of actions ordered by time, ties broken
	// by the order they were scheduled in. It is driven by a virtual clock:
	// nothing happens until the owner drains it.
	scheduler struct {
		events eventHeap
		byID   map[eventID]*event
		seq    uint64
	}
)

func newScheduler() *scheduler {
	return &scheduler{byID: map[eventID]*event{}}
}

func (s *scheduler) schedule(at time.Duration, fn func()) eventID {
	s.seq++
	ev := &event{at: at, seq: s.seq, id: eventID(s.seq), fn: fn}
	heap.Push(&s.events, ev)
	s.byID[ev.id] = ev
	return ev.id
}

// cancel removes a pending action; cancelling an action that already ran or
// was already cancelled is a no-op.
func (s *scheduler) cancel(id eventID) bool {
	ev, ok := s.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&s.events, ev.index)
	delete(s.byID, id)
	return true
}

// popDue removes and returns the earliest action if it is due at or before
// now.
func (s *scheduler) popDue(now time.Duration) *event {
	if len(s.events) == 0 || s.events[0].at > now {
		return nil
	}
	ev := heap.Pop(&s.events).(*event)
	delete(s.byID, ev.id)
	return ev
}

func (s *scheduler) len() int { return len(s.events) }

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*event)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}

package schedule

import (
	"container/heap"
	"sync"
	"time"

	"github.com/jitrealm/jitrealm/internal/clock"
	"github.com/jitrealm/jitrealm/internal/scripting"
)

// Callout is one scheduled future invocation: call Method on ObjectID with
// Args, optionally repeating every Interval (spec §4.G: "each entry stores
// (target, method name, due time, optional interval, args)").
type Callout struct {
	ID       uint64
	ObjectID string
	Method   string
	Args     []scripting.Arg
	fireAt   time.Time
	interval time.Duration // zero means one-shot
	heapIdx  int
}

type calloutHeap []*Callout

func (h calloutHeap) Len() int            { return len(h) }
func (h calloutHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h calloutHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *calloutHeap) Push(x any) {
	c := x.(*Callout)
	c.heapIdx = len(*h)
	*h = append(*h, c)
}
func (h *calloutHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// CalloutScheduler tracks one-shot and repeating timed invocations
// targeting a method on an object (spec §4.G). Unlike the heartbeat
// scheduler, callouts name a specific method so many independent timers
// can coexist on a single object.
type CalloutScheduler struct {
	mu     sync.Mutex
	clk    clock.Clock
	items  calloutHeap
	nextID uint64
}

// NewCalloutScheduler returns a scheduler driven by clk.
func NewCalloutScheduler(clk clock.Clock) *CalloutScheduler {
	return &CalloutScheduler{clk: clk}
}

// Schedule registers a one-shot callout to fire after delay, carrying args
// to be passed to method when it fires. It returns the callout's ID, which
// Cancel accepts.
func (s *CalloutScheduler) Schedule(objectID, method string, delay time.Duration, args ...scripting.Arg) uint64 {
	return s.schedule(objectID, method, delay, 0, args)
}

// ScheduleEvery registers a repeating callout: it fires once after the
// first interval, then reschedules itself for exactly one more interval
// each time it fires (spec §4.G: drift does not accumulate against the
// clock, each reschedule is relative to the fire time, not wall time).
// The same args are redelivered on every firing.
func (s *CalloutScheduler) ScheduleEvery(objectID, method string, interval time.Duration, args ...scripting.Arg) uint64 {
	return s.schedule(objectID, method, interval, interval, args)
}

func (s *CalloutScheduler) schedule(objectID, method string, delay, interval time.Duration, args []scripting.Arg) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	c := &Callout{
		ID:       s.nextID,
		ObjectID: objectID,
		Method:   method,
		Args:     args,
		fireAt:   s.clk.Now().Add(delay),
		interval: interval,
	}
	heap.Push(&s.items, c)
	return c.ID
}

// Cancel removes a single callout by ID. Safe to call on an unknown or
// already-fired ID.
func (s *CalloutScheduler) Cancel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.items {
		if c.ID == id {
			heap.Remove(&s.items, i)
			return
		}
	}
}

// CancelAll removes every callout targeting objectID, so none of them
// fires against an instance that is gone. object.Manager.Destruct does
// not call it; whoever destructs an instance calls it separately.
func (s *CalloutScheduler) CancelAll(objectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept calloutHeap
	for _, c := range s.items {
		if c.ObjectID != objectID {
			kept = append(kept, c)
		}
	}
	s.items = kept
	heap.Init(&s.items)
}

// Due returns every callout due as of now, removing one-shots from the
// schedule and rescheduling repeating ones by exactly one interval.
func (s *CalloutScheduler) Due() []Callout {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	var due []Callout
	for s.items.Len() > 0 {
		top := s.items[0]
		if top.fireAt.After(now) {
			break
		}
		due = append(due, *top)
		if top.interval > 0 {
			top.fireAt = top.fireAt.Add(top.interval)
			heap.Fix(&s.items, 0)
		} else {
			heap.Pop(&s.items)
		}
	}
	return due
}

// Len returns the number of pending callouts.
func (s *CalloutScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Len()
}

// Package schedule implements the heartbeat and callout schedulers of
// spec §4.F/§4.G: the two mechanisms world code uses to run on a timer
// instead of in direct response to a command.
package schedule

import (
	"container/heap"
	"time"

	"github.com/jitrealm/jitrealm/internal/clock"
)

// HeartbeatScheduler tracks which object IDs are due for a heartbeat tick
// and when each one next fires, without the tick loop having to scan
// every registered object every tick (spec §4.F's O(1) `Due()`
// requirement). Internally it is a min-heap ordered by next-fire time.
type HeartbeatScheduler struct {
	clk     clock.Clock
	items   heartbeatHeap
	index   map[string]*heartbeatEntry
	defInterval time.Duration
}

type heartbeatEntry struct {
	objectID string
	interval time.Duration
	nextFire time.Time
	heapIdx  int
}

type heartbeatHeap []*heartbeatEntry

func (h heartbeatHeap) Len() int { return len(h) }
func (h heartbeatHeap) Less(i, j int) bool { return h[i].nextFire.Before(h[j].nextFire) }
func (h heartbeatHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *heartbeatHeap) Push(x any) {
	e := x.(*heartbeatEntry)
	e.heapIdx = len(*h)
	*h = append(*h, e)
}
func (h *heartbeatHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// NewHeartbeatScheduler returns a scheduler driven by clk, with
// defaultInterval applied to any object registered without an explicit
// one (the config document's GameLoop.DefaultHeartbeatSeconds).
func NewHeartbeatScheduler(clk clock.Clock, defaultInterval time.Duration) *HeartbeatScheduler {
	return &HeartbeatScheduler{
		clk:         clk,
		items:       heartbeatHeap{},
		index:       make(map[string]*heartbeatEntry),
		defInterval: defaultInterval,
	}
}

// Register starts objectID ticking every interval, starting one interval
// from now. interval of zero uses the scheduler's default. Registering an
// already-registered ID replaces its interval and resets its next-fire
// time.
func (s *HeartbeatScheduler) Register(objectID string, interval time.Duration) {
	if interval <= 0 {
		interval = s.defInterval
	}
	if e, ok := s.index[objectID]; ok {
		e.interval = interval
		e.nextFire = s.clk.Now().Add(interval)
		heap.Fix(&s.items, e.heapIdx)
		return
	}
	e := &heartbeatEntry{
		objectID: objectID,
		interval: interval,
		nextFire: s.clk.Now().Add(interval),
	}
	heap.Push(&s.items, e)
	s.index[objectID] = e
}

// Unregister stops objectID's heartbeat entirely. Safe to call on an ID
// that was never registered.
func (s *HeartbeatScheduler) Unregister(objectID string) {
	e, ok := s.index[objectID]
	if !ok {
		return
	}
	heap.Remove(&s.items, e.heapIdx)
	delete(s.index, objectID)
}

// Due returns every object ID whose heartbeat is due as of now, advancing
// each to its next fire time as it's collected. Cost is O(k log n) for k
// due entries out of n registered — the heap root is checked, not the
// whole set, satisfying spec §4.F's O(1)-per-miss contract.
func (s *HeartbeatScheduler) Due() []string {
	now := s.clk.Now()
	var due []string
	for s.items.Len() > 0 {
		top := s.items[0]
		if top.nextFire.After(now) {
			break
		}
		due = append(due, top.objectID)
		top.nextFire = now.Add(top.interval)
		heap.Fix(&s.items, 0)
	}
	return due
}

// Len returns the number of registered objects.
func (s *HeartbeatScheduler) Len() int { return s.items.Len() }

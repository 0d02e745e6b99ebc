package disk

import (
	"fmt"
	"sync"
	"time"
)

const slowThreshold = 10 * time.Second

// AccessLog records events whose round trip exceeded a threshold, in a
// fixed-capacity ring: once full, the oldest entry is overwritten.
type AccessLog struct {
	mu        sync.Mutex
	entries   []string
	capacity  int
	next      int
	threshold time.Duration
	started   map[*Event]time.Time
}

// NewAccessLog returns a ring of the given capacity. threshold overrides
// slowThreshold when non-zero (NewManager passes 50ms).
func NewAccessLog(capacity int, threshold time.Duration) *AccessLog {
	if threshold <= 0 {
		threshold = slowThreshold
	}
	return &AccessLog{
		entries:   make([]string, 0, capacity),
		capacity:  capacity,
		threshold: threshold,
		started:   make(map[*Event]time.Time),
	}
}

// Submitted records an event's start time so Observe can compute how long
// it took; manager.submit calls this when it hands the event to a worker.
func (a *AccessLog) Submitted(e *Event, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started[e] = at
}

// Observe is called once an event is reaped. If its round trip exceeded the
// threshold it is appended to the ring.
func (a *AccessLog) Observe(e *Event) {
	a.mu.Lock()
	started, ok := a.started[e]
	if ok {
		delete(a.started, e)
	}
	a.mu.Unlock()
	if !ok {
		return
	}
	elapsed := time.Since(started)
	if elapsed < a.threshold {
		return
	}
	line := fmt.Sprintf("%s fd=%d op=%s offset=%d retval=%d <%.6f>",
		started.Format("2006.01.02 15:04:05.000000"), e.Fd, e.Op, e.Offset, e.retval, elapsed.Seconds())

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) < a.capacity {
		a.entries = append(a.entries, line)
	} else {
		a.entries[a.next] = line
		a.next = (a.next + 1) % a.capacity
	}
}

// Recent returns a snapshot of the ring's contents, oldest first.
func (a *AccessLog) Recent() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	if len(a.entries) < a.capacity {
		out = append(out, a.entries...)
		return out
	}
	out = append(out, a.entries[a.next:]...)
	out = append(out, a.entries[:a.next]...)
	return out
}

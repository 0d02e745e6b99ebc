// Manager owns the in-flight Event list, issues the actual I/O, and —
// ticked by netio.Loop as a TimeoutHandler — reaps completions and
// dispatches callbacks.
//
// Go has no aio_read/aio_write; the substitute for "kernel async I/O
// reported through a completion callback" is a bounded worker pool that
// performs the blocking syscall and reports back through a channel, which
// Timeout drains non-blockingly.

package disk

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/ratelimit"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"kfscore/pkg/buffer"
	"kfscore/pkg/kfserr"
)

// defaultMaxOutstanding mirrors DiskManager's mMaxOutstandingIOs default.
const defaultMaxOutstanding = 5000

type submission struct {
	event *Event
	n     int
}

type completion struct {
	event  *Event
	retval int
	err    error
}

// Manager submits reads, writes and syncs to a worker pool and reaps their
// completions once per event-loop tick.
type Manager struct {
	mu       sync.Mutex
	inFlight *list.List
	elemOf   map[*Event]*list.Element

	submissions chan submission
	completed   chan completion

	maxOutstanding int
	overloaded     bool
	bucket         *ratelimit.Bucket // backpressure once overloaded

	syncOnce *singleflightGroup
	access   *AccessLog

	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewManager starts a Manager with the given worker-pool size. maxOutstanding
// of 0 uses the DiskManager default (5000, per DiskManager::DiskManager()).
func NewManager(workers, maxOutstanding int) *Manager {
	if maxOutstanding <= 0 {
		maxOutstanding = defaultMaxOutstanding
	}
	m := &Manager{
		inFlight:       list.New(),
		elemOf:         make(map[*Event]*list.Element),
		submissions:    make(chan submission, workers*4),
		completed:      make(chan completion, workers*4),
		maxOutstanding: maxOutstanding,
		bucket:         ratelimit.NewBucketWithRate(float64(maxOutstanding), int64(maxOutstanding)),
		syncOnce:       newSingleflightGroup(),
		access:         NewAccessLog(256, 50*time.Millisecond),
		stop:           make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.work()
	}
	return m
}

// Close stops the worker pool. In-flight submissions already accepted are
// allowed to finish; their completions are simply never reaped.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
}

func (m *Manager) work() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case s := <-m.submissions:
			retval, err := m.perform(s.event, s.n)
			select {
			case m.completed <- completion{event: s.event, retval: retval, err: err}:
			case <-m.stop:
				return
			}
		}
	}
}

func (m *Manager) perform(e *Event, n int) (int, error) {
	switch e.Op {
	case OpRead:
		buf := e.Block.Producer()[:n]
		got, err := unix.Pread(e.Fd, buf, e.Offset)
		return got, err
	case OpWrite:
		buf := e.Block.Consumer()[:n]
		got, err := unix.Pwrite(e.Fd, buf, e.Offset)
		return got, err
	case OpSync:
		// Data-sync only: persist data, not inode metadata, saving one I/O
		// on the critical path. Fall back to full Fsync on platforms where
		// Fdatasync is unavailable.
		if err := unix.Fdatasync(e.Fd); err != nil {
			if err := unix.Fsync(e.Fd); err != nil {
				return -1, err
			}
		}
		return 0, nil
	default:
		return -1, errors.New("disk: unknown op")
	}
}

// Read issues an async read of n bytes at offset into block's producer
// window and returns the resulting Event.
func (m *Manager) Read(conn Connection, fd int, block *buffer.Block, offset int64, n int) (*Event, error) {
	if n > block.SpaceAvailable() {
		return nil, errors.Wrap(kfserr.ErrPrecondition, "disk: Read n exceeds space available")
	}
	return m.submit(&Event{ID: uuid.New(), Op: OpRead, Fd: fd, Offset: offset, Block: block, Conn: conn}, n)
}

// Write issues an async write of n bytes from block's consumer window at
// offset. Precondition: n <= block.BytesConsumable().
func (m *Manager) Write(conn Connection, fd int, block *buffer.Block, offset int64, n int) (*Event, error) {
	if n > block.BytesConsumable() {
		return nil, errors.Wrap(kfserr.ErrPrecondition, "disk: Write n exceeds bytes consumable")
	}
	return m.submit(&Event{ID: uuid.New(), Op: OpWrite, Fd: fd, Offset: offset, Block: block, Conn: conn}, n)
}

// Sync issues an async data-sync of fd. Sync calls against the same fd that
// arrive while another one is being submitted share that call's Event (see
// singleflight.go); its one HandleDone goes to the first caller's conn.
// A Sync made after that submission returns issues a new Event, even while
// the earlier one is still outstanding.
func (m *Manager) Sync(conn Connection, fd int) (*Event, error) {
	return m.syncOnce.do(fd, func() (*Event, error) {
		return m.submit(&Event{ID: uuid.New(), Op: OpSync, Fd: fd, Conn: conn}, 0)
	})
}

func (m *Manager) submit(e *Event, n int) (*Event, error) {
	m.mu.Lock()
	if m.inFlight.Len() >= m.maxOutstanding {
		m.mu.Unlock()
		return nil, errors.Wrap(kfserr.ErrSubmissionRefused, "disk: too many outstanding IOs")
	}
	elem := m.inFlight.PushBack(e)
	m.elemOf[e] = elem
	overloaded := m.checkOverloadLocked()
	m.mu.Unlock()

	if overloaded {
		// Backpressure: make new submitters pay for the overload before
		// the kernel (here, the worker pool) even sees the request.
		m.bucket.Wait(1)
	}

	select {
	case m.submissions <- submission{event: e, n: n}:
		e.status = StatusQueued
		m.access.Submitted(e, time.Now())
		return e, nil
	default:
		m.mu.Lock()
		m.removeLocked(e)
		m.mu.Unlock()
		return nil, errors.Wrap(kfserr.ErrSubmissionRefused, "disk: worker queue full")
	}
}

// checkOverloadLocked mirrors DiskManager::IOInitiated/IOCompleted's
// hysteresis: overloaded flips on above the max, and only clears once
// outstanding drops below half the max.
func (m *Manager) checkOverloadLocked() bool {
	n := m.inFlight.Len()
	if n > m.maxOutstanding {
		m.overloaded = true
	} else if m.overloaded && n <= m.maxOutstanding/2 {
		m.overloaded = false
	}
	return m.overloaded
}

// Overloaded reports whether the Manager currently considers itself
// overloaded and is applying backpressure to new submissions.
func (m *Manager) Overloaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overloaded
}

func (m *Manager) removeLocked(e *Event) {
	if elem, ok := m.elemOf[e]; ok {
		m.inFlight.Remove(elem)
		delete(m.elemOf, e)
	}
	m.checkOverloadLocked()
}

// Timeout implements netio.TimeoutHandler: first drop any event the
// issuer cancelled before it was reaped, then drain whatever the worker
// pool has finished (our stand-in for polling kernel async-I/O status)
// and dispatch callbacks in submission order, not worker-finish order —
// with workers > 1, two events can finish out of order, but the list
// walk below always hands HandleDone the events in the order they were
// submitted.
func (m *Manager) Timeout() {
	m.mu.Lock()
	for elem := m.inFlight.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*Event)
		if e.status == StatusCancelled {
			m.inFlight.Remove(elem)
			delete(m.elemOf, e)
		}
		elem = next
	}
	m.checkOverloadLocked()
	m.mu.Unlock()

	ready := m.drainCompleted()
	if len(ready) == 0 {
		return
	}

	m.mu.Lock()
	var finished []completion
	for elem := m.inFlight.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*Event)
		if c, ok := ready[e]; ok {
			finished = append(finished, c)
			m.inFlight.Remove(elem)
			delete(m.elemOf, e)
		}
		elem = next
	}
	m.checkOverloadLocked()
	m.mu.Unlock()

	for _, c := range finished {
		m.finish(c)
	}
}

// drainCompleted empties the completed channel without blocking, keyed by
// event so Timeout can replay them against inFlight in list order instead
// of channel-arrival order.
func (m *Manager) drainCompleted() map[*Event]completion {
	ready := make(map[*Event]completion)
	for {
		select {
		case c := <-m.completed:
			ready[c.event] = c
		default:
			return ready
		}
	}
}

// finish applies a completion's result to its event and dispatches
// HandleDone. The event has already been removed from inFlight by the
// caller, under lock, in list order.
func (m *Manager) finish(c completion) {
	e := c.event
	e.retval = c.retval
	e.err = c.err
	if e.Op == OpRead && c.retval > 0 {
		e.Block.Fill(c.retval)
	}
	e.status = StatusDone

	m.access.Observe(e)
	e.Conn.HandleDone(e, c.err)
}

// Outstanding returns the number of events currently in flight.
func (m *Manager) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight.Len()
}

// AccessLog exposes the slow-event ring buffer.
func (m *Manager) AccessLog() *AccessLog { return m.access }

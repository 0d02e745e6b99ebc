// Event represents one outstanding async-I/O submission: its op, status,
// retval, a back-reference to the issuing connection, and — for read/write
// — a target Block.
package disk

import (
	"github.com/google/uuid"

	"kfscore/pkg/buffer"
)

// Op identifies the kind of I/O an Event performs.
type Op int

const (
	OpRead Op = iota
	OpWrite
	OpSync
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpSync:
		return "SYNC"
	default:
		return "UNKNOWN"
	}
}

// Status is an Event's lifecycle state.
type Status int

const (
	StatusQueued Status = iota
	StatusCancelled
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "QUEUED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Event is one outstanding read, write, or sync submission. It is created
// on submit, held in the Manager's in-flight list, and destroyed after its
// callback returns (or after an unobserved cancelled reap).
type Event struct {
	ID     uuid.UUID
	Op     Op
	Fd     int
	Offset int64
	Block  *buffer.Block // nil for OpSync
	Conn   Connection

	status Status
	retval int // bytes transferred, or negative errno
	err    error
}

// Status returns the event's current lifecycle state.
func (e *Event) Status() Status { return e.status }

// Retval returns the raw result: bytes transferred on success, or a
// negative count on failure.
func (e *Event) Retval() int { return e.retval }

// Cancel marks the event CANCELLED. It stays in the Manager's queue until
// the next Timeout tick, which drops it without invoking HandleDone. It
// does not interrupt any in-flight syscall; the caller's Block must remain
// valid until the worker goroutine actually finishes.
func (e *Event) Cancel() {
	e.status = StatusCancelled
}

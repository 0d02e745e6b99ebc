// Package buffer provides the zero-copy, refcounted byte regions the rest
// of the I/O layer is built from: Block, a single backing array with a
// [start,end) window and independent producer/consumer cursors, and Chain,
// a scatter/gather sequence of Blocks.
package buffer

import (
	"io"

	"github.com/pkg/errors"
)

// ErrPrecondition is returned when a caller violates an operation's stated
// precondition (e.g. Write with n greater than what's consumable).
var ErrPrecondition = errors.New("buffer: precondition violated")

// backing is the heap-allocated array a Block, and any views over it, share.
// Its lifetime is the longest-living Block that references it; Go's GC does
// the refcounting for us; the parent field only keeps a chain of views'
// ancestors reachable.
type backing struct {
	data []byte
}

// Block is a fixed-capacity byte region with producer/consumer cursors
// against a backing array's [start, end) window.
type Block struct {
	back   *backing
	start  int
	end    int
	prod   int
	cons   int
	parent *Block // non-nil if this Block is a view over another's backing array
}

// New allocates a Block with a fresh backing array of the given capacity.
func New(capacity int) *Block {
	return &Block{
		back: &backing{data: make([]byte, capacity)},
		end:  capacity,
	}
}

// NewUnit allocates a Block using the process-wide unit size.
func NewUnit() *Block {
	return New(int(UnitSize()))
}

// View constructs a new Block aliasing b's backing array over [start, end),
// relative to b's own window. The returned view shares ownership of the
// backing array (Go's GC keeps it alive as long as any view does) and its
// producer starts equal to its end, so a view is read-only by
// construction — it never grants write access to a shared window.
func (b *Block) View(start, end int) *Block {
	if start < 0 || end > b.Cap() || start > end {
		panic("buffer: View out of range")
	}
	abs := func(off int) int { return b.start + off }
	return &Block{
		back:   b.back,
		start:  abs(start),
		end:    abs(end),
		prod:   abs(end), // producer == end: no further writes possible
		cons:   abs(start),
		parent: b,
	}
}

// Cap returns the block's total capacity (end - start).
func (b *Block) Cap() int { return b.end - b.start }

// BytesConsumable returns producer - consumer.
func (b *Block) BytesConsumable() int { return b.prod - b.cons }

// SpaceAvailable returns end - producer.
func (b *Block) SpaceAvailable() int { return b.end - b.prod }

// IsFull reports whether the producer has reached the end of the window.
func (b *Block) IsFull() bool { return b.prod == b.end }

// IsEmpty reports whether there is nothing left to consume.
func (b *Block) IsEmpty() bool { return b.prod == b.cons }

// Producer returns the backing-array slice starting at the producer cursor,
// with length equal to the space available. Writing into it and calling
// Fill is the standard write pattern (e.g. an async read completion).
func (b *Block) Producer() []byte { return b.back.data[b.prod:b.end] }

// Consumer returns the backing-array slice starting at the consumer cursor,
// with length equal to bytes consumable.
func (b *Block) Consumer() []byte { return b.back.data[b.cons:b.prod] }

// Fill advances the producer cursor by min(n, SpaceAvailable()) and returns
// the actual amount advanced.
func (b *Block) Fill(n int) int {
	n = clamp(n, 0, b.SpaceAvailable())
	b.prod += n
	return n
}

// ZeroFill writes n zero bytes starting at the producer cursor, then Fills
// that count.
func (b *Block) ZeroFill(n int) int {
	n = clamp(n, 0, b.SpaceAvailable())
	dst := b.back.data[b.prod : b.prod+n]
	for i := range dst {
		dst[i] = 0
	}
	return b.Fill(n)
}

// Consume advances the consumer cursor by min(n, BytesConsumable()) and
// returns the actual amount advanced. It does not alter any bytes.
func (b *Block) Consume(n int) int {
	n = clamp(n, 0, b.BytesConsumable())
	b.cons += n
	return n
}

// Trim shrinks the consumable region to exactly n bytes by moving the
// producer cursor down to consumer+n. It never grows the consumable region:
// if n exceeds it already, Trim is a no-op and returns the current count.
func (b *Block) Trim(n int) int {
	consumable := b.BytesConsumable()
	if n >= consumable {
		return consumable
	}
	if n < 0 {
		n = 0
	}
	b.prod = b.cons + n
	return n
}

// CopyIn copies up to n bytes from src into the producer window, then Fills
// the copied count. A short copy occurs if space available < n.
func (b *Block) CopyIn(src []byte, n int) int {
	if n > len(src) {
		n = len(src)
	}
	n = clamp(n, 0, b.SpaceAvailable())
	copy(b.back.data[b.prod:b.prod+n], src[:n])
	return b.Fill(n)
}

// CopyInBlock copies up to n consumable bytes from other into this block's
// producer window, then Fills the copied count.
func (b *Block) CopyInBlock(other *Block, n int) int {
	if n > other.BytesConsumable() {
		n = other.BytesConsumable()
	}
	return b.CopyIn(other.Consumer(), n)
}

// CopyOut copies at most min(n, BytesConsumable()) bytes starting at the
// consumer cursor into dst, without advancing the consumer cursor.
func (b *Block) CopyOut(dst []byte, n int) int {
	if n > len(dst) {
		n = len(dst)
	}
	n = clamp(n, 0, b.BytesConsumable())
	copy(dst[:n], b.back.data[b.cons:b.cons+n])
	return n
}

// ReadFromFD performs a single synchronous read into the writable window
// and, on a positive count, advances the producer cursor accordingly. It
// returns the raw byte count and error the reader produced. Callers on the
// event-loop thread must not use this directly — it blocks — and it exists
// for pkg/worker's checkpoint flushing and offline CLIs.
func (b *Block) ReadFromFD(r io.Reader) (int, error) {
	n, err := r.Read(b.Producer())
	if n > 0 {
		b.Fill(n)
	}
	return n, err
}

// WriteToFD performs a single synchronous write from the readable window
// and, on a positive count, advances the consumer cursor accordingly.
func (b *Block) WriteToFD(w io.Writer) (int, error) {
	n, err := w.Write(b.Consumer())
	if n > 0 {
		b.Consume(n)
	}
	return n, err
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

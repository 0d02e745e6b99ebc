// Chain is an ordered sequence of Block views supporting scatter/gather
// I/O across block boundaries: splice, move, and clone operate in terms
// of a single logical byte stream backed by possibly many Blocks.

package buffer

import (
	"container/list"
	"io"

	"github.com/pkg/errors"
)

// ErrShortSource is returned by Move/Splice when the source chain has fewer
// bytes than requested. Callers are expected to request no more than
// BytesConsumable(); this only fires on a genuine programmer error.
var ErrShortSource = errors.New("buffer: source chain has fewer bytes than requested")

// Chain is an ordered, single-owner sequence of shared Block references.
type Chain struct {
	blocks *list.List // of *Block
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{blocks: list.New()}
}

// Append pushes block at the tail of the chain.
func (c *Chain) Append(b *Block) {
	c.blocks.PushBack(b)
}

// AppendChain moves all blocks from other onto the tail of c; other becomes
// empty.
func (c *Chain) AppendChain(other *Chain) {
	for e := other.blocks.Front(); e != nil; {
		next := e.Next()
		other.blocks.Remove(e)
		c.blocks.PushBack(e.Value)
		e = next
	}
}

// BytesConsumable returns the sum of each block's BytesConsumable.
func (c *Chain) BytesConsumable() int {
	total := 0
	for e := c.blocks.Front(); e != nil; e = e.Next() {
		total += e.Value.(*Block).BytesConsumable()
	}
	return total
}

// Empty reports whether the chain holds no consumable bytes.
func (c *Chain) Empty() bool {
	return c.BytesConsumable() == 0
}

// Consume peels n bytes off the head of the chain across as many blocks as
// necessary, discarding any block emptied in the process. It consumes at
// most BytesConsumable() bytes.
func (c *Chain) Consume(n int) int {
	consumed := 0
	for n > 0 {
		e := c.blocks.Front()
		if e == nil {
			break
		}
		b := e.Value.(*Block)
		got := b.Consume(n)
		consumed += got
		n -= got
		if b.IsEmpty() {
			c.blocks.Remove(e)
			continue
		}
		if got == 0 {
			break
		}
	}
	return consumed
}

// Trim truncates the chain's logical length to n bytes. Blocks entirely
// past the cut are dropped; the block straddling the cut is Trimmed in
// place. Trim never grows the chain.
func (c *Chain) Trim(n int) {
	if n < 0 {
		n = 0
	}
	remaining := n
	var toDrop []*list.Element
	for e := c.blocks.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Block)
		consumable := b.BytesConsumable()
		if remaining >= consumable {
			remaining -= consumable
			continue
		}
		b.Trim(remaining)
		remaining = 0
		toDrop = append(toDrop, laterElements(c.blocks, e)...)
		break
	}
	for _, e := range toDrop {
		c.blocks.Remove(e)
	}
}

func laterElements(l *list.List, after *list.Element) []*list.Element {
	var out []*list.Element
	for e := after.Next(); e != nil; e = e.Next() {
		out = append(out, e)
	}
	return out
}

// ZeroFill appends newly allocated, zero-filled blocks of the process-wide
// unit size until n zero bytes have been appended.
func (c *Chain) ZeroFill(n int) {
	for n > 0 {
		b := NewUnit()
		got := b.ZeroFill(min(n, b.SpaceAvailable()))
		c.Append(b)
		n -= got
		if got == 0 {
			break
		}
	}
}

// CopyIn appends bytes from src to the chain, allocating new unit-sized
// blocks as needed. It returns the number of bytes copied.
func (c *Chain) CopyIn(src []byte, n int) int {
	if n > len(src) {
		n = len(src)
	}
	copied := 0
	// Try to top off the current tail first.
	if e := c.blocks.Back(); e != nil {
		tail := e.Value.(*Block)
		got := tail.CopyIn(src[copied:], n-copied)
		copied += got
	}
	for copied < n {
		b := NewUnit()
		got := b.CopyIn(src[copied:], n-copied)
		c.Append(b)
		copied += got
		if got == 0 {
			break
		}
	}
	return copied
}

// CopyOut performs a non-destructive read of up to n bytes from the head of
// the chain into dst.
func (c *Chain) CopyOut(dst []byte, n int) int {
	if n > len(dst) {
		n = len(dst)
	}
	copied := 0
	for e := c.blocks.Front(); e != nil && copied < n; e = e.Next() {
		b := e.Value.(*Block)
		got := b.CopyOut(dst[copied:], n-copied)
		copied += got
		if got == 0 && b.BytesConsumable() > 0 {
			break
		}
	}
	return copied
}

// Move takes exactly n bytes from the head of other and appends them to c.
// Whole blocks are moved by reference; a block that only needs to donate a
// prefix is split zero-copy via View, and the source retains (and consumes)
// the remainder.
func (c *Chain) Move(other *Chain, n int) error {
	if n > other.BytesConsumable() {
		return ErrShortSource
	}
	remaining := n
	for remaining > 0 {
		e := other.blocks.Front()
		b := e.Value.(*Block)
		consumable := b.BytesConsumable()
		if consumable <= remaining {
			other.blocks.Remove(e)
			c.Append(b)
			remaining -= consumable
			continue
		}
		// Only a prefix of b is needed: zero-copy view over the prefix,
		// the source consumes that prefix and keeps the rest.
		view := b.View(b.cons-b.start, b.cons-b.start+remaining)
		c.Append(view)
		b.Consume(remaining)
		remaining = 0
	}
	return nil
}

// Splice replaces the byte range [offset, offset+n) of c with the entirety
// of other — not just n bytes of it. If offset exceeds c's current length,
// the gap is zero-filled. other is fully transferred into c (ownership
// moves) and ends empty.
func (c *Chain) Splice(other *Chain, offset, n int) error {
	length := c.BytesConsumable()
	if offset > length {
		gap := NewChain()
		gap.ZeroFill(offset - length)
		c.AppendChain(gap)
	}

	// Split c into head=[0,offset) and the remainder, [offset,length).
	head := NewChain()
	if err := head.Move(c, offset); err != nil {
		return err
	}

	// Drop the overlap [offset, offset+n) from the remainder, keeping
	// whatever tail is left past it.
	overlap := n
	if remaining := c.BytesConsumable(); overlap > remaining {
		overlap = remaining
	}
	c.Consume(overlap)

	head.AppendChain(other)
	head.AppendChain(c)
	c.blocks = head.blocks
	return nil
}

// Clone returns a new chain whose blocks are read-only views aliasing c's
// backing arrays over the currently readable window — a zero-copy snapshot
// of c's contents at this instant. Later Consume calls on either chain do
// not affect the other's BytesConsumable.
func (c *Chain) Clone() *Chain {
	clone := NewChain()
	for e := c.blocks.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Block)
		clone.Append(b.View(b.cons-b.start, b.prod-b.start))
	}
	return clone
}

// ReadFrom repeatedly reads from r into the tail block, allocating a new
// tail block when the current one fills, until r returns a non-positive
// count. A unit allocated for a read that returned no bytes is not kept.
// It maps io.EOF to a clean stop (not an error) but otherwise
// propagates the reader's error: callers should treat io.EOF as
// end-of-stream and anything else as a permanent I/O failure.
func (c *Chain) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		var tail *Block
		if e := c.blocks.Back(); e != nil {
			tail = e.Value.(*Block)
		}
		fresh := false
		if tail == nil || tail.IsFull() {
			tail = NewUnit()
			c.Append(tail)
			fresh = true
		}
		n, err := tail.ReadFromFD(r)
		total += int64(n)
		if fresh && n <= 0 {
			c.blocks.Remove(c.blocks.Back())
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
		if n <= 0 {
			return total, nil
		}
	}
}

// WriteTo repeatedly writes from the head block to w, discarding emptied
// heads, until a write returns a non-positive count or an error.
func (c *Chain) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		e := c.blocks.Front()
		if e == nil {
			return total, nil
		}
		head := e.Value.(*Block)
		if head.IsEmpty() {
			c.blocks.Remove(e)
			continue
		}
		n, err := head.WriteToFD(w)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n <= 0 {
			return total, nil
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

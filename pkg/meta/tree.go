// Tree is the minimal metadata state Restore and Replay mutate: the
// chunk-version-increment counter and the monotonic sequence number.
// Semantic tree operations (create/mkdir/open/...) are out of scope here.

package meta

import "sync"

// Tree holds the small slice of metadata state this substrate actually
// needs to exercise checkpoint/replay determinism.
type Tree struct {
	mu sync.RWMutex

	chunkVersionInc int64
	seq             int64
}

// NewTree returns an empty Tree (sequence 0, chunkVersionInc 0).
func NewTree() *Tree {
	return &Tree{}
}

// ChunkVersionInc returns the current chunk-version-increment counter.
func (t *Tree) ChunkVersionInc() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.chunkVersionInc
}

// SetChunkVersionInc sets the counter directly — used for chunkVersionInc
// and setintbase records, in checkpoints and in log segments alike.
func (t *Tree) SetChunkVersionInc(v int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunkVersionInc = v
}

// BumpChunkVersionInc increments the counter by one and returns the new
// value. Replay does not call it: a chunkVersionInc log record sets the
// counter to the record's value.
func (t *Tree) BumpChunkVersionInc() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunkVersionInc++
	return t.chunkVersionInc
}

// Seq returns the last applied sequence number.
func (t *Tree) Seq() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seq
}

// SetSeq seeds the sequence counter — used by Restore(setintbase) and by
// Replay after applying each record.
func (t *Tree) SetSeq(v int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq = v
}

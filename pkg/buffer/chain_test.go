package buffer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainCopyInSplitsAcrossUnits(t *testing.T) {
	old := UnitSize()
	SetUnitSize(8)
	defer SetUnitSize(old)

	c := NewChain()
	n := c.CopyIn([]byte("hello world!"), 12)
	assert.Equal(t, 12, n)
	assert.Equal(t, 12, c.BytesConsumable())
	assert.Equal(t, 2, c.blocks.Len())

	dst := make([]byte, 12)
	got := c.CopyOut(dst, 12)
	assert.Equal(t, 12, got)
	assert.Equal(t, "hello world!", string(dst))
}

func TestChainConsumeAcrossBlocks(t *testing.T) {
	old := UnitSize()
	SetUnitSize(8)
	defer SetUnitSize(old)

	c := NewChain()
	c.CopyIn([]byte("hello world!"), 12)

	consumed := c.Consume(7)
	assert.Equal(t, 7, consumed)
	assert.Equal(t, 5, c.BytesConsumable())

	dst := make([]byte, 5)
	c.CopyOut(dst, 5)
	assert.Equal(t, "orld!", string(dst))
}

func TestChainTrimDropsTrailingBlocks(t *testing.T) {
	old := UnitSize()
	SetUnitSize(4)
	defer SetUnitSize(old)

	c := NewChain()
	c.CopyIn([]byte("aaaabbbbcccc"), 12)
	require.Equal(t, 3, c.blocks.Len())

	c.Trim(5)
	assert.Equal(t, 5, c.BytesConsumable())
	dst := make([]byte, 5)
	c.CopyOut(dst, 5)
	assert.Equal(t, "aaaab", string(dst))
}

func TestChainZeroFill(t *testing.T) {
	old := UnitSize()
	SetUnitSize(4)
	defer SetUnitSize(old)

	c := NewChain()
	c.ZeroFill(10)
	assert.Equal(t, 10, c.BytesConsumable())
	dst := make([]byte, 10)
	c.CopyOut(dst, 10)
	for _, b := range dst {
		assert.Equal(t, byte(0), b)
	}
}

func TestChainMoveWholeAndPartialBlocks(t *testing.T) {
	old := UnitSize()
	SetUnitSize(4)
	defer SetUnitSize(old)

	src := NewChain()
	src.CopyIn([]byte("aaaabbbbcccc"), 12)

	dst := NewChain()
	err := dst.Move(src, 6)
	require.NoError(t, err)

	assert.Equal(t, 6, dst.BytesConsumable())
	assert.Equal(t, 6, src.BytesConsumable())

	got := make([]byte, 6)
	dst.CopyOut(got, 6)
	assert.Equal(t, "aaaabb", string(got))

	rest := make([]byte, 6)
	src.CopyOut(rest, 6)
	assert.Equal(t, "bbcccc", string(rest))
}

func TestChainMoveShortSourceErrors(t *testing.T) {
	c := NewChain()
	c.CopyIn([]byte("ab"), 2)
	dst := NewChain()
	err := dst.Move(c, 10)
	assert.ErrorIs(t, err, ErrShortSource)
}

func TestChainSpliceReplacesRange(t *testing.T) {
	old := UnitSize()
	SetUnitSize(4)
	defer SetUnitSize(old)

	c := NewChain()
	c.CopyIn([]byte("aaaabbbbcccc"), 12)

	patch := NewChain()
	patch.CopyIn([]byte("XY"), 2)

	err := c.Splice(patch, 4, 4)
	require.NoError(t, err)

	assert.Equal(t, 10, c.BytesConsumable())
	got := make([]byte, 10)
	c.CopyOut(got, 10)
	assert.Equal(t, "aaaaXYcccc", string(got))
	assert.True(t, patch.Empty())
}

func TestChainSplicePastEndZeroFillsGap(t *testing.T) {
	c := NewChain()
	c.CopyIn([]byte("ab"), 2)

	patch := NewChain()
	patch.CopyIn([]byte("Z"), 1)

	err := c.Splice(patch, 5, 0)
	require.NoError(t, err)

	assert.Equal(t, 6, c.BytesConsumable())
	got := make([]byte, 6)
	c.CopyOut(got, 6)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 'Z'}, got)
}

func TestChainCloneIsIndependent(t *testing.T) {
	c := NewChain()
	c.CopyIn([]byte("hello"), 5)

	clone := c.Clone()
	assert.Equal(t, 5, clone.BytesConsumable())

	c.Consume(3)
	assert.Equal(t, 2, c.BytesConsumable())
	assert.Equal(t, 5, clone.BytesConsumable())

	got := make([]byte, 5)
	clone.CopyOut(got, 5)
	assert.Equal(t, "hello", string(got))
}

func TestChainReadFromAllocatesNewUnits(t *testing.T) {
	old := UnitSize()
	SetUnitSize(4)
	defer SetUnitSize(old)

	c := NewChain()
	n, err := c.ReadFrom(strings.NewReader("abcdefgh"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, 8, c.BytesConsumable())
	assert.Equal(t, 2, c.blocks.Len())
}

func TestChainWriteToDrainsWholeChain(t *testing.T) {
	c := NewChain()
	c.CopyIn([]byte("abcdef"), 6)

	var sb strings.Builder
	n, err := c.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, "abcdef", sb.String())
	assert.True(t, c.Empty())
}

func TestChainEmpty(t *testing.T) {
	c := NewChain()
	assert.True(t, c.Empty())
	c.CopyIn([]byte("x"), 1)
	assert.False(t, c.Empty())
}

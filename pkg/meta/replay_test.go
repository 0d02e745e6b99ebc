package meta

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kfscore/pkg/kfserr"
)

func writeLogSegment(t *testing.T, dir string, number int64, contents string) string {
	path := filepath.Join(dir, "log."+strconv.FormatInt(number, 10))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestReplayOpenlogExtractsNumber(t *testing.T) {
	dir := t.TempDir()
	path := writeLogSegment(t, dir, 7, "")

	r := NewReplay(NewTree())
	require.NoError(t, r.Openlog(path))
	assert.EqualValues(t, 7, r.Logno())
}

func TestReplayOpenlogRejectsMissingSuffix(t *testing.T) {
	r := NewReplay(NewTree())
	err := r.Openlog(filepath.Join(t.TempDir(), "nosuffix"))
	assert.Equal(t, kfserr.ErrMalformedRecord, pkgerrors.Cause(err))
}

func TestReplayAppliesRecordsInOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeLogSegment(t, dir, 1, "1/inc_seq\n2/chunkVersionInc/5\n3/inc_seq\n")

	tree := NewTree()
	r := NewReplay(tree)
	require.NoError(t, r.Openlog(path))
	n, err := r.Playlog()
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.EqualValues(t, 3, tree.Seq())
	assert.EqualValues(t, 5, tree.ChunkVersionInc())
}

func TestReplayDetectsSequenceGap(t *testing.T) {
	dir := t.TempDir()
	path := writeLogSegment(t, dir, 1, "1/inc_seq\n3/inc_seq\n")

	r := NewReplay(NewTree())
	require.NoError(t, r.Openlog(path))
	applied, err := r.Playlog()

	assert.Equal(t, 1, applied)
	assert.Equal(t, kfserr.ErrSequenceGap, pkgerrors.Cause(err))
}

func TestReplayCompressedSegment(t *testing.T) {
	dir := t.TempDir()
	tree := NewTree()
	tree.SetSeq(0)

	lw, err := NewLogWriter(dir, 1, "lz4")
	require.NoError(t, err)
	require.NoError(t, lw.Append("1/inc_seq"))
	require.NoError(t, lw.Append("2/chunkVersionInc/9"))
	require.NoError(t, lw.Rotate())
	require.NoError(t, lw.Close())

	r := NewReplay(tree)
	require.NoError(t, r.Openlog(filepath.Join(dir, "log.1.lz4")))
	applied, err := r.Playlog()
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.EqualValues(t, 9, tree.ChunkVersionInc())
}

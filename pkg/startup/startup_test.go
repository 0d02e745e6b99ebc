package startup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kfscore/pkg/kfserr"
	"kfscore/pkg/meta"
)

func TestRunWithNoCheckpointOrLogs(t *testing.T) {
	cpDir := t.TempDir()
	logDir := t.TempDir()

	result, err := Run(context.Background(), Config{
		CheckpointDir: cpDir,
		LogDir:        logDir,
		CompressAlgo:  "none",
	}, nil)
	require.NoError(t, err)
	defer result.LogWriter.Close()

	assert.EqualValues(t, 0, result.Tree.Seq())
	assert.EqualValues(t, 1, result.LogWriter.Number())
}

func TestRunRestoresCheckpointThenReplaysLogs(t *testing.T) {
	cpDir := t.TempDir()
	logDir := t.TempDir()

	tree := meta.NewTree()
	tree.SetSeq(2)
	tree.SetChunkVersionInc(1)
	ckpt, err := meta.NewCheckpointer(tree, "none")
	require.NoError(t, err)
	_, err = ckpt.WriteTo(filepath.Join(cpDir, "checkpoint.2"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(logDir, "log.3"), []byte("3/chunkVersionInc/5\n"), 0644))

	result, err := Run(context.Background(), Config{
		CheckpointDir: cpDir,
		LogDir:        logDir,
		CompressAlgo:  "none",
	}, nil)
	require.NoError(t, err)
	defer result.LogWriter.Close()

	assert.EqualValues(t, 3, result.Tree.Seq())
	assert.EqualValues(t, 5, result.Tree.ChunkVersionInc())
	assert.EqualValues(t, 4, result.LogWriter.Number())
}

func TestRunDetectsMissingLogSegment(t *testing.T) {
	cpDir := t.TempDir()
	logDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(logDir, "log.2"), []byte("2/inc_seq\n"), 0644))

	_, err := Run(context.Background(), Config{
		CheckpointDir: cpDir,
		LogDir:        logDir,
		CompressAlgo:  "none",
	}, nil)
	assert.Equal(t, kfserr.ErrSequenceGap, pkgerrors.Cause(err))
}

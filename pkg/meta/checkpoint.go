// pkg/meta/checkpoint.go
//
// Checkpointer serializes a Tree to the same line format Restore reads back
// and compresses it with the chosen algorithm (SUPPLEMENTED FEATURES:
// checkpoint compression).
// It is meant to run on a pkg/worker.Worker goroutine, off the event-loop
// thread, grounded on original_source/trunk/src/cc/meta/metaserver_main.cc's
// periodic checkpoint scheduling.

package meta

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"kfscore/pkg/compress"
	"kfscore/pkg/kfserr"
)

// Checkpointer writes point-in-time snapshots of a Tree.
type Checkpointer struct {
	tree       *Tree
	compressor compress.Compressor
}

// NewCheckpointer returns a Checkpointer snapshotting tree, compressing
// with the named algorithm ("zstd", "lz4", or "none").
func NewCheckpointer(tree *Tree, algo string) (*Checkpointer, error) {
	c, err := compress.NewCompressor(algo)
	if err != nil {
		return nil, err
	}
	return &Checkpointer{tree: tree, compressor: c}, nil
}

// Snapshot renders the current Tree state in Restore's line format.
func (c *Checkpointer) Snapshot() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "setintbase/seq/%d\n", c.tree.Seq())
	fmt.Fprintf(&b, "setintbase/chunkVersionInc/%d\n", c.tree.ChunkVersionInc())
	return []byte(b.String())
}

// suffixFor returns the filename suffix Restore expects for a given
// compressor, so a checkpoint is self-describing on disk.
func suffixFor(name string) string {
	switch name {
	case "zstd":
		return ".zst"
	case "lz4":
		return ".lz4"
	default:
		return ""
	}
}

// WriteTo compresses the current snapshot and atomically replaces
// path+suffixFor(algo): it writes to a ".tmp" file first and renames over
// the destination, so a crash mid-write never leaves a half-written
// checkpoint for Restore to trip over. It returns the final path written.
func (c *Checkpointer) WriteTo(path string) (string, error) {
	data, err := c.compressor.Compress(c.Snapshot())
	if err != nil {
		return "", err
	}
	dest := path + suffixFor(c.compressor.Name())
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}
	return dest, nil
}

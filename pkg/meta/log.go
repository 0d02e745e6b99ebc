// LogWriter appends records to the active log segment and rotates to a
// fresh one on demand, compressing the segment it just rotated away from.
package meta

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"kfscore/pkg/compress"
	"kfscore/pkg/kfserr"
)

// LogWriter owns the single currently-active, uncompressed log segment and
// appends sequence-numbered records to it.
type LogWriter struct {
	dir        string
	number     int64
	f          *os.File
	compressor compress.Compressor
}

// NewLogWriter opens (creating if necessary) segment number n under dir as
// the active segment, ready to Append. Rotated-away segments are compressed
// with compressAlgo ("zstd" or "lz4"); "none" or "" leaves them plain.
func NewLogWriter(dir string, n int64, compressAlgo string) (*LogWriter, error) {
	c, err := compress.NewCompressor(compressAlgo)
	if err != nil {
		return nil, err
	}
	path := segmentPath(dir, n)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}
	return &LogWriter{dir: dir, number: n, f: f, compressor: c}, nil
}

func segmentPath(dir string, n int64) string {
	return filepath.Join(dir, fmt.Sprintf("log.%d", n))
}

// Append writes one record ("<seq>/<keyword>/<fields...>", already
// formatted by the caller) followed by a newline, and flushes it to stable
// storage — this is the event-loop thread's synchronous fallback path;
// pkg/disk.Manager.Sync is the async one used once an fd is wired to it.
func (w *LogWriter) Append(line string) error {
	if _, err := w.f.WriteString(line + "\n"); err != nil {
		return errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}
	if err := w.f.Sync(); err != nil {
		return errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}
	return nil
}

// Number returns the active segment's log number.
func (w *LogWriter) Number() int64 { return w.number }

// Rotate closes the active segment, compresses it in place under a
// uuid-disambiguated temp name (so a concurrent reader never observes a
// half-renamed file), and opens a fresh plain segment numbered number+1.
func (w *LogWriter) Rotate() error {
	oldPath := segmentPath(w.dir, w.number)
	if err := w.f.Close(); err != nil {
		return errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}

	if w.compressor.Name() != "none" {
		if err := compressSegment(oldPath, w.compressor); err != nil {
			return err
		}
	}

	next := w.number + 1
	f, err := os.OpenFile(segmentPath(w.dir, next), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}
	w.f = f
	w.number = next
	return nil
}

func compressSegment(path string, c compress.Compressor) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}
	data, err := c.Compress(raw)
	if err != nil {
		return err
	}
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}
	dest := path + suffixFor(c.Name())
	if err := os.Rename(tmp, dest); err != nil {
		return errors.Wrap(kfserr.ErrTransientIO, err.Error())
	}
	return os.Remove(path)
}

// Close closes the active segment without rotating.
func (w *LogWriter) Close() error {
	return errors.Wrap(w.f.Close(), "meta: close log segment")
}

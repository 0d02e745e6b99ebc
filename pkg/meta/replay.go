// Replay applies a log segment's records against a Tree, enforcing the
// monotonic sequence-number invariant (openlog/playlog/logno), with the
// numeric suffix extraction and per-record dispatch independently
// testable.

package meta

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"kfscore/pkg/compress"
	"kfscore/pkg/kfserr"
)

// replayHandlers extends restoreHandlers with keywords only valid in a log
// segment, not a checkpoint.
var replayHandlers = func() map[string]restoreHandler {
	m := make(map[string]restoreHandler, len(restoreHandlers)+1)
	for k, v := range restoreHandlers {
		m[k] = v
	}
	m["inc_seq"] = func(tree *Tree, fields []string) error { return nil }
	return m
}()

// Replay applies one log segment's records to a Tree.
type Replay struct {
	tree   *Tree
	path   string
	number int64
}

// NewReplay returns a Replay targeting tree.
func NewReplay(tree *Tree) *Replay {
	return &Replay{tree: tree, number: -1}
}

// Openlog records path for a subsequent Playlog and extracts its numeric
// suffix (the segment's log number, "log.<n>", optionally followed by a
// compression suffix), used by the startup orchestrator to apply segments
// in order and detect missing ones.
func (r *Replay) Openlog(path string) error {
	base := strings.TrimSuffix(strings.TrimSuffix(path, ".zst"), ".lz4")
	idx := strings.LastIndexByte(base, '.')
	if idx < 0 || idx == len(base)-1 {
		return errors.Wrapf(kfserr.ErrMalformedRecord, "replay: %q has no log number suffix", path)
	}
	n, err := strconv.ParseInt(base[idx+1:], 10, 64)
	if err != nil {
		return errors.Wrapf(kfserr.ErrMalformedRecord, "replay: %q has non-numeric log number", path)
	}
	r.path = path
	r.number = n
	return nil
}

// Logno returns the log number extracted by the last Openlog call, or -1
// if Openlog has not been called.
func (r *Replay) Logno() int64 { return r.number }

// Playlog reads r.path record by record. Each record is
// "<seq>/<keyword>/<fields...>"; seq must equal the tree's current sequence
// plus one, or Playlog stops and returns ErrSequenceGap, so replay never
// silently skips a missing record. A ".zst" or ".lz4" suffix on r.path
// transparently decompresses the segment first — a rotated-away segment
// LogWriter has already compressed; the currently active segment is always
// plain. It returns the count of records successfully applied.
func (r *Replay) Playlog() (int, error) {
	var algo string
	switch {
	case strings.HasSuffix(r.path, ".zst"):
		algo = "zstd"
	case strings.HasSuffix(r.path, ".lz4"):
		algo = "lz4"
	}
	var scanner *bufio.Scanner
	if algo != "" {
		raw, err := os.ReadFile(r.path)
		if err != nil {
			return 0, errors.Wrap(kfserr.ErrPermanentIO, err.Error())
		}
		c, err := compress.NewCompressor(algo)
		if err != nil {
			return 0, err
		}
		plain, err := c.Decompress(raw)
		if err != nil {
			return 0, errors.Wrap(kfserr.ErrMalformedRecord, err.Error())
		}
		scanner = bufio.NewScanner(strings.NewReader(string(plain)))
	} else {
		f, err := os.Open(r.path)
		if err != nil {
			return 0, errors.Wrap(kfserr.ErrPermanentIO, err.Error())
		}
		defer f.Close()
		scanner = bufio.NewScanner(f)
	}

	applied := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "/")
		if len(fields) < 2 {
			return applied, errors.Wrapf(kfserr.ErrMalformedRecord, "replay: line %d has too few fields", lineNo)
		}
		seq, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return applied, errors.Wrapf(kfserr.ErrMalformedRecord, "replay: line %d has non-numeric seq", lineNo)
		}
		want := r.tree.Seq() + 1
		if seq != want {
			return applied, errors.Wrapf(kfserr.ErrSequenceGap, "replay: line %d has seq %d, wanted %d", lineNo, seq, want)
		}

		keyword := fields[1]
		handler, ok := replayHandlers[keyword]
		if !ok {
			return applied, errors.Wrapf(kfserr.ErrMalformedRecord, "replay: unknown keyword %q at line %d", keyword, lineNo)
		}
		if err := handler(r.tree, fields[2:]); err != nil {
			return applied, errors.Wrapf(err, "replay: line %d", lineNo)
		}
		r.tree.SetSeq(seq)
		applied++
	}
	return applied, errors.Wrap(scanner.Err(), "replay: scan")
}

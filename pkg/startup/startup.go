// Package startup runs the boot sequence: locate and apply the latest
// checkpoint, replay every log segment written since, open a fresh
// segment, and — once chunkservers have registered — release control to
// the event loop.
package startup

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"kfscore/pkg/kfserr"
	"kfscore/pkg/meta"
	"kfscore/pkg/registry"
)

// Config holds the directories and tunables the orchestrator needs. Flags
// in cmd/metaserverd populate this directly.
type Config struct {
	CheckpointDir        string
	LogDir               string
	CompressAlgo         string
	MinChunkservers      int64
	RegistryWaitInterval time.Duration
}

// Result is what a successful Run hands back to the caller: the rebuilt
// tree and a writer for the freshly opened log segment.
type Result struct {
	Tree      *meta.Tree
	LogWriter *meta.LogWriter
}

// Run executes the full startup sequence. reg may be nil, in which case the
// chunkserver-registration gate is skipped — useful for cmd/kfsck, which
// only wants Restore+Replay.
func Run(ctx context.Context, cfg Config, reg *registry.Registry) (*Result, error) {
	tree := meta.NewTree()

	cpPath, cpNumber, err := latestCheckpoint(cfg.CheckpointDir)
	if err != nil {
		return nil, err
	}
	if cpPath != "" {
		if err := meta.NewRestore(tree).Rebuild(cpPath); err != nil {
			return nil, errors.Wrap(err, "startup: restore checkpoint")
		}
	}

	segments, err := logSegmentsAfter(cfg.LogDir, cpNumber)
	if err != nil {
		return nil, err
	}
	last := cpNumber
	for _, seg := range segments {
		if seg.number != last+1 {
			return nil, errors.Wrapf(kfserr.ErrSequenceGap, "startup: missing log segment between %d and %d", last, seg.number)
		}
		replay := meta.NewReplay(tree)
		if err := replay.Openlog(seg.path); err != nil {
			return nil, errors.Wrap(err, "startup: open log segment")
		}
		if _, err := replay.Playlog(); err != nil {
			return nil, errors.Wrapf(err, "startup: replay segment %d", seg.number)
		}
		last = seg.number
	}

	lw, err := meta.NewLogWriter(cfg.LogDir, last+1, cfg.CompressAlgo)
	if err != nil {
		return nil, errors.Wrap(err, "startup: open fresh log segment")
	}

	if reg != nil && cfg.MinChunkservers > 0 {
		interval := cfg.RegistryWaitInterval
		if interval <= 0 {
			interval = time.Second
		}
		if err := reg.WaitForMinimum(ctx, cfg.MinChunkservers, interval); err != nil {
			return nil, errors.Wrap(err, "startup: wait for chunkservers")
		}
	}

	return &Result{Tree: tree, LogWriter: lw}, nil
}

// latestCheckpoint returns the checkpoint with the highest numeric suffix
// in dir (stripping a trailing compression suffix first), or "" if none
// exist.
func latestCheckpoint(dir string) (path string, number int64, err error) {
	matches, err := filepath.Glob(filepath.Join(dir, "checkpoint.*"))
	if err != nil {
		return "", 0, errors.Wrap(err, "startup: glob checkpoints")
	}
	best := int64(-1)
	bestPath := ""
	for _, m := range matches {
		base := filepath.Base(m)
		base = strings.TrimSuffix(strings.TrimSuffix(base, ".zst"), ".lz4")
		idx := strings.LastIndexByte(base, '.')
		if idx < 0 {
			continue
		}
		n, err := strconv.ParseInt(base[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		if n > best {
			best = n
			bestPath = m
		}
	}
	if best < 0 {
		return "", 0, nil
	}
	return bestPath, best, nil
}

type logSegment struct {
	number int64
	path   string
}

// logSegmentsAfter returns every log segment in dir numbered strictly
// greater than after, sorted ascending by number.
func logSegmentsAfter(dir string, after int64) ([]logSegment, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "log.*"))
	if err != nil {
		return nil, errors.Wrap(err, "startup: glob log segments")
	}
	var segs []logSegment
	for _, m := range matches {
		base := filepath.Base(m)
		base = strings.TrimSuffix(strings.TrimSuffix(base, ".zst"), ".lz4")
		idx := strings.LastIndexByte(base, '.')
		if idx < 0 {
			continue
		}
		n, err := strconv.ParseInt(base[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		if n > after {
			segs = append(segs, logSegment{number: n, path: m})
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].number < segs[j].number })
	return segs, nil
}

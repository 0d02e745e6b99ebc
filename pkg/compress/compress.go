// Package compress wraps checkpoint and log-segment compression behind a
// single interface: zstd, lz4, or no compression, chosen by name by the
// caller for checkpoint snapshots and rotated log segments alike.
package compress

import (
	"bytes"
	"io"

	"github.com/DataDog/zstd"
	lz4 "github.com/bkaradzic/go-lz4"
	"github.com/pkg/errors"
)

// Compressor compresses and decompresses whole buffers. Checkpoints and log
// segments are written and read in one pass, so there is no need for a
// streaming interface.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NewCompressor returns the Compressor named by algo: "zstd", "lz4", or
// "none". An unrecognized name returns an error rather than silently
// falling back, since picking the wrong one would make an existing
// checkpoint or log segment unreadable.
func NewCompressor(algo string) (Compressor, error) {
	switch algo {
	case "zstd":
		return zstdCompressor{}, nil
	case "lz4":
		return lz4Compressor{}, nil
	case "none", "":
		return noneCompressor{}, nil
	default:
		return nil, errors.Errorf("compress: unsupported algorithm %q", algo)
	}
}

type zstdCompressor struct{}

func (zstdCompressor) Name() string { return "zstd" }

func (zstdCompressor) Compress(data []byte) ([]byte, error) {
	out, err := zstd.Compress(nil, data)
	return out, errors.Wrap(err, "compress: zstd compress")
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := zstd.Decompress(nil, data)
	return out, errors.Wrap(err, "compress: zstd decompress")
}

type lz4Compressor struct{}

func (lz4Compressor) Name() string { return "lz4" }

func (lz4Compressor) Compress(data []byte) ([]byte, error) {
	out, err := lz4.Encode(nil, data)
	return out, errors.Wrap(err, "compress: lz4 encode")
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	out, err := lz4.Decode(nil, data)
	return out, errors.Wrap(err, "compress: lz4 decode")
}

type noneCompressor struct{}

func (noneCompressor) Name() string { return "none" }

func (noneCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (noneCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

// CopyCompressed decompresses all of r with c and writes the result to w,
// for reading from a stream rather than an in-memory buffer.
func CopyCompressed(w io.Writer, r io.Reader, c Compressor) (int64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, errors.Wrap(err, "compress: read")
	}
	out, err := c.Decompress(raw)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, bytes.NewReader(out))
	return n, errors.Wrap(err, "compress: write")
}

// pkg/buffer/config.go

package buffer

import "sync/atomic"

// defaultUnitSize is the fallback capacity for a Block allocated by Chain
// operations (ZeroFill, CopyIn) when nothing has called SetUnitSize yet.
const defaultUnitSize = 4096

var unitSize atomic.Uint32

func init() {
	unitSize.Store(defaultUnitSize)
}

// SetUnitSize sets the process-wide Block allocation unit. It should be
// called once, before any Chain is constructed; changing it afterwards only
// affects blocks allocated from then on.
func SetUnitSize(n uint32) {
	unitSize.Store(n)
}

// UnitSize returns the current process-wide Block allocation unit.
func UnitSize() uint32 {
	return unitSize.Load()
}

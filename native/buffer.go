package native

import (
	"sync"

	"github.com/wippyai/audio-decoder/resource"
)

type stagingBuffer struct {
	table   *resource.Table
	handle  resource.Handle
	samples []float32
	once    sync.Once
}

func (m *Module) newStagingBuffer() *stagingBuffer {
	b := &stagingBuffer{table: m.table}
	b.handle = m.table.Insert(resource.TypeStagingBuffer, b)
	return b
}

func (b *stagingBuffer) Len() int {
	return len(b.samples)
}

func (b *stagingBuffer) CopyTo(dst []float32) int {
	return copy(dst, b.samples)
}

// Release is guarded by once: handles are reused after removal.
func (b *stagingBuffer) Release() {
	b.once.Do(func() {
		if b.handle != 0 {
			b.table.Remove(b.handle)
		}
	})
}

// Drop implements resource.Dropper.
func (b *stagingBuffer) Drop() {
	b.samples = nil
}

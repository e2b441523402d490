package engine

import (
	"context"
	"sync"
)

// guestBuffer is a samples buffer in guest memory. Release calls
// ad_release exactly once.
type guestBuffer struct {
	inst  *WazeroInstance
	ptr   uint32
	count int
	once  sync.Once
}

func (b *guestBuffer) Len() int {
	return b.count
}

func (b *guestBuffer) CopyTo(dst []float32) int {
	n := min(len(dst), b.count)
	for k := 0; k < n; k++ {
		v, ok := b.inst.memory.ReadFloat32Le(b.ptr + uint32(4*k))
		if !ok {
			return k
		}
		dst[k] = v
	}
	return n
}

func (b *guestBuffer) Release() {
	b.once.Do(func() {
		b.inst.live--
		if b.inst.isClosed() {
			return
		}
		b.inst.release(context.Background(), b.ptr)
	})
}

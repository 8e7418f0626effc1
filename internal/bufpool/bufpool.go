// Package bufpool holds the scratch-buffer pool shared by every
// pkg/buffer.WriteBuffer so that per-frame writes don't allocate on the
// hot path.
package bufpool

import "sync"

// defaultCapacity is the starting capacity for a fresh WriteBuffer. Most
// RPC frames are tiny; doubling handles the rest.
const defaultCapacity = 256

var rawPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, defaultCapacity)
		return &b
	},
}

// GetRaw returns a zero-length, pooled []byte with spare capacity.
func GetRaw() *[]byte {
	p := rawPool.Get().(*[]byte)
	*p = (*p)[:0]
	return p
}

// PutRaw returns b to the pool.
func PutRaw(b *[]byte) {
	rawPool.Put(b)
}

// Package mempool keeps sized pools of byte buffers for frame luma planes so
// that a stream of equally sized frames reuses the same allocations.
package mempool

import (
	"sync"
)

var bytePools sync.Map // key: size class (int), value: *sync.Pool

const (
	minClass  = 4 * 1024
	classStep = 64 * 1024
)

// sizeClass rounds n up to a bucket so that frames of one preview size share a pool.
func sizeClass(n int) int {
	if n <= minClass {
		return minClass
	}
	r := (n + classStep - 1) / classStep
	return r * classStep
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]byte, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

// GetBytes retrieves a []byte buffer of length n from the pool. Contents are
// not zeroed. The caller must return it via PutBytes when done.
func GetBytes(n int) []byte {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	p := poolFor(cls)
	if p == nil {
		return make([]byte, n, cls)
	}
	buf, ok := p.Get().([]byte)
	if !ok || cap(buf) < cls {
		buf = make([]byte, cls)
	}
	return buf[:n]
}

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
// Buffers whose capacity does not match a size class are dropped.
func PutBytes(buf []byte) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		return
	}
	p := poolFor(cls)
	if p == nil {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

package ringbuffer

import "sync/atomic"

// cursor is a machine-word-wide position, in [0, capacity), updated with
// atomic loads/stores. It's a thin wrapper rather than a bare
// atomic.Uint64 field so read and write cursors can't be mixed up by
// accident at call sites.
type cursor struct {
	v atomic.Uint64
}

func (c *cursor) load() uint64   { return c.v.Load() }
func (c *cursor) store(n uint64) { c.v.Store(n) }

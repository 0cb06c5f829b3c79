package ringbuffer

import "encoding/binary"

// Fixed-width and length-prefixed encode/decode helpers. These exist only
// for internal transport between cooperating goroutines on the same host
// (e.g. handing a control message to a worker pool); the wire protocol this
// buffer backs (RESP) is length-prefixed ASCII and never uses these.
//
// They replace the original C++ implementation's raw-cast
// `operator<<`/`operator>>` overloads (memcpy'ing a struct's bytes in and
// out of the buffer) with explicit, typed functions: raw-cast
// serialization via operator overloads is incidental to the source
// language, not a requirement of the format.

// PutUint16 appends v in host byte order. It returns false, writing
// nothing, if the buffer has no room for both bytes.
func (b *Buffer) PutUint16(v uint16) bool {
	var tmp [2]byte
	binary.NativeEndian.PutUint16(tmp[:], v)
	return b.Push(tmp[:])
}

// GetUint16 reads a uint16 in host byte order, advancing the read cursor.
func (b *Buffer) GetUint16() (uint16, bool) {
	var tmp [2]byte
	if !b.Peek(tmp[:]) {
		return 0, false
	}
	return binary.NativeEndian.Uint16(tmp[:]), true
}

// PutUint32 appends v in host byte order.
func (b *Buffer) PutUint32(v uint32) bool {
	var tmp [4]byte
	binary.NativeEndian.PutUint32(tmp[:], v)
	return b.Push(tmp[:])
}

// GetUint32 reads a uint32 in host byte order, advancing the read cursor.
func (b *Buffer) GetUint32() (uint32, bool) {
	var tmp [4]byte
	if !b.Peek(tmp[:]) {
		return 0, false
	}
	return binary.NativeEndian.Uint32(tmp[:]), true
}

// PutUint64 appends v in host byte order.
func (b *Buffer) PutUint64(v uint64) bool {
	var tmp [8]byte
	binary.NativeEndian.PutUint64(tmp[:], v)
	return b.Push(tmp[:])
}

// GetUint64 reads a uint64 in host byte order, advancing the read cursor.
func (b *Buffer) GetUint64() (uint64, bool) {
	var tmp [8]byte
	if !b.Peek(tmp[:]) {
		return 0, false
	}
	return binary.NativeEndian.Uint64(tmp[:]), true
}

// PutString appends s as a uint16 length prefix followed by its bytes. If
// the payload doesn't fit, the length prefix itself is rolled back via
// AdvanceWrite(-2) so no partial frame is left in the buffer.
func (b *Buffer) PutString(s string) bool {
	if !b.PutUint16(uint16(len(s))) {
		return false
	}
	if !b.Push([]byte(s)) {
		b.AdvanceWrite(-2)
		return false
	}
	return true
}

// GetString reads a uint16-length-prefixed string, advancing the read
// cursor past both the prefix and the payload.
func (b *Buffer) GetString() (string, bool) {
	n, ok := b.peekUint16At(0)
	if !ok {
		return "", false
	}
	out := make([]byte, n)
	if !b.PeekAt(out, 2) {
		return "", false
	}
	b.AdvanceRead(2 + int(n))
	return string(out), true
}

// PutStrings appends a uint16 element count followed by each string
// length-prefixed in turn. On failure partway through, the buffer is left
// unchanged: the count and any strings already written are rolled back.
func (b *Buffer) PutStrings(v []string) bool {
	mark := b.w.load()
	if !b.PutUint16(uint16(len(v))) {
		return false
	}
	for _, s := range v {
		if !b.PutString(s) {
			b.w.store(mark)
			return false
		}
	}
	return true
}

// GetStrings reads a uint16 count followed by that many length-prefixed
// strings, advancing the read cursor past all of it.
func (b *Buffer) GetStrings() ([]string, bool) {
	n, ok := b.GetUint16()
	if !ok {
		return nil, false
	}
	out := make([]string, 0, n)
	for i := uint16(0); i < n; i++ {
		s, ok := b.GetString()
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func (b *Buffer) peekUint16At(offset int) (uint16, bool) {
	var tmp [2]byte
	if !b.PeekAt(tmp[:], offset) {
		return 0, false
	}
	return binary.NativeEndian.Uint16(tmp[:]), true
}

package ringbuffer

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRoundsUpCapacity(t *testing.T) {
	tests := []struct {
		requested uint64
		expected  uint64
	}{
		{0, 2},
		{1, 2},
		{2, 4},
		{3, 4},
		{7, 8},
		{100, 128},
		{1023, 1024},
		{1024, 2048},
	}

	for _, tt := range tests {
		rb := New(tt.requested)
		assert.Equalf(t, tt.expected, rb.Capacity(), "New(%d)", tt.requested)
		assert.Zerof(t, rb.Capacity()&(rb.Capacity()-1), "New(%d): capacity %d is not a power of two", tt.requested, rb.Capacity())
	}
}

func TestPushPeekFIFO(t *testing.T) {
	rb := New(16)

	data := []byte("hello")
	if !rb.Push(data) {
		t.Fatal("Push failed")
	}
	if rb.ReadableSize() != uint64(len(data)) {
		t.Errorf("ReadableSize: expected %d, got %d", len(data), rb.ReadableSize())
	}

	out := make([]byte, len(data))
	if !rb.Peek(out) {
		t.Fatal("Peek failed")
	}
	if !bytes.Equal(out, data) {
		t.Errorf("Peek: expected %s, got %s", data, out)
	}
	if !rb.IsEmpty() {
		t.Error("expected buffer empty after peeking all data")
	}
}

func TestWrapAround(t *testing.T) {
	rb := New(7) // rounds to 8

	rb.Push([]byte("abc"))
	buf := make([]byte, 3)
	rb.Peek(buf)

	data := []byte("defghij")
	if !rb.Push(data) {
		t.Fatal("Push of wrapping data failed")
	}

	out := make([]byte, len(data))
	if !rb.Peek(out) {
		t.Fatal("Peek of wrapping data failed")
	}
	if !bytes.Equal(out, data) {
		t.Errorf("expected %s, got %s", data, out)
	}
}

func TestPushFailsWithoutPartialWrite(t *testing.T) {
	rb := New(7) // capacity 8, 7 writable

	if rb.Push(make([]byte, 8)) {
		t.Fatal("expected Push to fail when n+1 > writable")
	}
	if rb.ReadableSize() != 0 {
		t.Errorf("Push failure must not write partial data, readable=%d", rb.ReadableSize())
	}

	if !rb.Push(make([]byte, 7)) {
		t.Fatal("expected Push of exactly writable bytes to succeed")
	}
	if !rb.IsFull() {
		t.Error("expected buffer full after pushing all writable bytes")
	}
	if rb.Push([]byte{1}) {
		t.Fatal("expected Push to fail on a full buffer")
	}
}

func TestPeekFailsWithoutAdvancing(t *testing.T) {
	rb := New(16)
	rb.Push([]byte("hi"))

	out := make([]byte, 10)
	if rb.Peek(out) {
		t.Fatal("expected Peek to fail when insufficient data available")
	}
	if rb.ReadableSize() != 2 {
		t.Errorf("failed Peek must not advance read cursor, readable=%d", rb.ReadableSize())
	}
}

func TestPushAtDoesNotAdvanceWrite(t *testing.T) {
	rb := New(16)
	before := rb.ReadableSize()

	if !rb.PushAt([]byte("xy"), 0) {
		t.Fatal("PushAt failed")
	}
	if rb.ReadableSize() != before {
		t.Error("PushAt must not advance the write cursor")
	}

	rb.AdvanceWrite(2)
	out := make([]byte, 2)
	rb.Peek(out)
	if string(out) != "xy" {
		t.Errorf("expected xy, got %s", out)
	}
}

func TestPeekAtDoesNotAdvanceRead(t *testing.T) {
	rb := New(16)
	rb.Push([]byte("abcdef"))

	out := make([]byte, 3)
	if !rb.PeekAt(out, 3) {
		t.Fatal("PeekAt failed")
	}
	if string(out) != "def" {
		t.Errorf("expected def, got %s", out)
	}
	if rb.ReadableSize() != 6 {
		t.Error("PeekAt must not advance the read cursor")
	}
}

func TestReadableWritableComplement(t *testing.T) {
	rb := New(31) // capacity 32
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		if rb.ReadableSize()+rb.WritableSize() != rb.Capacity()-1 {
			t.Fatalf("invariant broken at step %d: readable=%d writable=%d capacity=%d",
				i, rb.ReadableSize(), rb.WritableSize(), rb.Capacity())
		}

		if rng.Intn(2) == 0 {
			n := rng.Intn(5) + 1
			if uint64(n) <= rb.WritableSize() {
				rb.Push(make([]byte, n))
			}
		} else {
			n := rng.Intn(5) + 1
			if uint64(n) <= rb.ReadableSize() {
				rb.Peek(make([]byte, n))
			}
		}
	}
}

func TestReadableViewContiguous(t *testing.T) {
	rb := New(16)
	data := []byte("hello")
	rb.Push(data)

	spans := rb.ReadableView(100, 0)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span for contiguous data, got %d", len(spans))
	}
	if !bytes.Equal(spans[0], data) {
		t.Errorf("expected %s, got %s", data, spans[0])
	}
}

func TestReadableViewWrapped(t *testing.T) {
	rb := New(7) // capacity 8

	rb.Push([]byte("abc"))
	rb.Peek(make([]byte, 3))
	data := []byte("defghij")
	rb.Push(data)

	spans := rb.ReadableView(100, 0)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans for wrapped data, got %d", len(spans))
	}
	combined := append(append([]byte{}, spans[0]...), spans[1]...)
	if !bytes.Equal(combined, data) {
		t.Errorf("expected %s, got %s", data, combined)
	}
}

func TestReadableViewCapsAtMax(t *testing.T) {
	rb := New(16)
	rb.Push([]byte("hello world"))

	spans := rb.ReadableView(5, 0)
	total := 0
	for _, s := range spans {
		total += len(s)
	}
	if total != 5 {
		t.Errorf("expected view capped to 5 bytes, got %d", total)
	}
}

func TestWritableViewExcludesReservedSlot(t *testing.T) {
	rb := New(7) // capacity 8, 7 writable when empty

	spans := rb.WritableView(0)
	total := 0
	for _, s := range spans {
		total += len(s)
	}
	if total != 7 {
		t.Errorf("expected writable view of 7 bytes (capacity-1), got %d", total)
	}
}

func TestWritableViewWrapsAroundHead(t *testing.T) {
	rb := New(7) // capacity 8

	rb.Push(make([]byte, 5))
	rb.Peek(make([]byte, 5)) // read catches up to write; r==w==5

	spans := rb.WritableView(0)
	total := 0
	for _, s := range spans {
		total += len(s)
	}
	if uint64(total) != rb.WritableSize() {
		t.Errorf("span total %d does not match WritableSize %d", total, rb.WritableSize())
	}
}

func TestClearSetsReadToWrite(t *testing.T) {
	rb := New(16)
	rb.Push([]byte("data"))
	rb.Clear()
	if !rb.IsEmpty() {
		t.Error("expected buffer empty after Clear")
	}
}

func TestFIFOProperty(t *testing.T) {
	rb := New(63) // capacity 64
	rng := rand.New(rand.NewSource(42))

	var written, read []byte
	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 {
			n := rng.Intn(10) + 1
			chunk := make([]byte, n)
			rng.Read(chunk)
			if uint64(n) <= rb.WritableSize() {
				rb.Push(chunk)
				written = append(written, chunk...)
			}
		} else {
			n := rng.Intn(10) + 1
			if uint64(n) <= rb.ReadableSize() {
				chunk := make([]byte, n)
				rb.Peek(chunk)
				read = append(read, chunk...)
			}
		}
	}
	remaining := make([]byte, rb.ReadableSize())
	rb.Peek(remaining)
	read = append(read, remaining...)

	if !bytes.Equal(written, read) {
		t.Fatalf("FIFO order violated: wrote %d bytes, read %d bytes, mismatch", len(written), len(read))
	}
}

func TestUint16RoundTrip(t *testing.T) {
	rb := New(16)
	if !rb.PutUint16(4242) {
		t.Fatal("PutUint16 failed")
	}
	got, ok := rb.GetUint16()
	if !ok || got != 4242 {
		t.Errorf("expected 4242, got %d ok=%v", got, ok)
	}
}

func TestStringRoundTrip(t *testing.T) {
	rb := New(64)
	if !rb.PutString("hello, ring buffer") {
		t.Fatal("PutString failed")
	}
	got, ok := rb.GetString()
	if !ok || got != "hello, ring buffer" {
		t.Errorf("expected round-trip string, got %q ok=%v", got, ok)
	}
}

func TestStringRollbackOnOverflow(t *testing.T) {
	rb := New(7) // capacity 8, 7 writable: 2-byte prefix fits, 10-byte payload doesn't

	before := rb.WritableSize()
	if rb.PutString("0123456789") {
		t.Fatal("expected PutString to fail for an oversized payload")
	}
	if rb.WritableSize() != before {
		t.Errorf("expected length-prefix rollback to restore writable size, got %d want %d",
			rb.WritableSize(), before)
	}
}

func TestStringsRoundTrip(t *testing.T) {
	rb := New(128)
	in := []string{"set", "mykey", "myvalue"}
	if !rb.PutStrings(in) {
		t.Fatal("PutStrings failed")
	}
	out, ok := rb.GetStrings()
	if !ok {
		t.Fatal("GetStrings failed")
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d strings, got %d", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("element %d: expected %q, got %q", i, in[i], out[i])
		}
	}
}

func TestNewFromSpansTwoSegments(t *testing.T) {
	src := New(15) // capacity 16
	src.Push([]byte("abc"))
	src.Peek(make([]byte, 3))
	src.Push([]byte("wraparound-data"))

	spans := src.ReadableView(100, 0)
	if len(spans) != 2 {
		t.Fatalf("test setup expected a wrapped view, got %d spans", len(spans))
	}

	coalesced := NewFromSpans(spans)
	if coalesced.Mode() != AttachedCoalesced {
		t.Errorf("expected AttachedCoalesced mode, got %v", coalesced.Mode())
	}

	want := append(append([]byte{}, spans[0]...), spans[1]...)
	got := make([]byte, len(want))
	if !coalesced.Peek(got) {
		t.Fatal("Peek on coalesced buffer failed")
	}
	if !bytes.Equal(got, want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestNewFromSpansSingleSegment(t *testing.T) {
	b := NewFromSpans([]Span{[]byte("single")})
	if b.Mode() != Owning {
		t.Errorf("expected Owning mode for a single span, got %v", b.Mode())
	}
	out := make([]byte, 6)
	b.Peek(out)
	if string(out) != "single" {
		t.Errorf("expected single, got %s", out)
	}
}

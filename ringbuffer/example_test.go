package ringbuffer_test

import (
	"fmt"

	"github.com/qedis-go/qedis/ringbuffer"
)

func Example() {
	rb := ringbuffer.New(1024)

	rb.Push([]byte("*1\r\n$4\r\nPING\r\n"))

	spans := rb.ReadableView(int(rb.ReadableSize()), 0)
	total := 0
	for _, s := range spans {
		total += len(s)
	}
	fmt.Printf("readable in %d span(s), %d bytes\n", len(spans), total)
	// Output:
	// readable in 1 span(s), 14 bytes
}

func ExampleBuffer_ReadableView_wrapped() {
	rb := ringbuffer.New(7) // capacity 8

	rb.Push([]byte("abcd"))
	rb.Peek(make([]byte, 4))
	rb.Push([]byte("efghij"))

	spans := rb.ReadableView(100, 0)
	fmt.Printf("spans: %d\n", len(spans))
	for _, s := range spans {
		fmt.Printf("  %q\n", string(s))
	}
	// Output:
	// spans: 2
	//   "efgh"
	//   "ij"
}

func ExampleBuffer_WritableView() {
	rb := ringbuffer.New(15) // capacity 16

	spans := rb.WritableView(0)
	total := 0
	for _, s := range spans {
		total += len(s)
	}
	fmt.Printf("writable bytes: %d (capacity-1)\n", total)
	// Output:
	// writable bytes: 15 (capacity-1)
}

func ExampleBuffer_PutString() {
	rb := ringbuffer.New(64)

	rb.PutString("mykey")
	s, ok := rb.GetString()
	fmt.Println(s, ok)
	// Output:
	// mykey true
}

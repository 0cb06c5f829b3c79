package resp

import "strconv"

// QueuedReply is the fixed reply to any command accepted into a MULTI
// queue instead of executed immediately.
const QueuedReply = "+QUEUED\r\n"

// NullArrayReply is the RESP encoding of a null array, sent in place of a
// multi-bulk reply when there is nothing to return (e.g. BLPOP timeout).
const NullArrayReply = "*-1\r\n"

// NullBulkReply is the RESP encoding of a null bulk string, sent for a
// missing key (e.g. GET on an absent key).
const NullBulkReply = "$-1\r\n"

// AppendSimpleString appends a RESP simple-string reply ("+OK\r\n") to dst
// and returns the extended slice. s must not itself contain CR or LF.
func AppendSimpleString(dst []byte, s string) []byte {
	dst = append(dst, '+')
	dst = append(dst, s...)
	return append(dst, '\r', '\n')
}

// AppendError appends a RESP error reply ("-ERR message\r\n") to dst.
func AppendError(dst []byte, msg string) []byte {
	dst = append(dst, '-')
	dst = append(dst, msg...)
	return append(dst, '\r', '\n')
}

// AppendInteger appends a RESP integer reply (":123\r\n") to dst.
func AppendInteger(dst []byte, n int64) []byte {
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, '\r', '\n')
}

// AppendBulkString appends a RESP bulk-string reply ("$5\r\nhello\r\n") to
// dst. A nil b encodes as NullBulkReply.
func AppendBulkString(dst []byte, b []byte) []byte {
	if b == nil {
		return append(dst, NullBulkReply...)
	}
	dst = append(dst, '$')
	dst = strconv.AppendInt(dst, int64(len(b)), 10)
	dst = append(dst, '\r', '\n')
	dst = append(dst, b...)
	return append(dst, '\r', '\n')
}

// AppendArrayHeader appends a RESP array header ("*3\r\n") for an array of
// n elements; the caller appends each element's own encoding afterward. A
// negative n encodes the RESP null array.
func AppendArrayHeader(dst []byte, n int) []byte {
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, '\r', '\n')
}

// AppendBulkStringArray appends a complete array of bulk strings, handy
// for encoding a Frame's argv back out (e.g. when propagating to
// replicas).
func AppendBulkStringArray(dst []byte, elems [][]byte) []byte {
	dst = AppendArrayHeader(dst, len(elems))
	for _, e := range elems {
		dst = AppendBulkString(dst, e)
	}
	return dst
}

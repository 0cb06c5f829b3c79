// Package netio wires a ringbuffer.Buffer pair to a file descriptor using
// vectored reads and writes, so bytes move between the socket and the
// buffer's backing array without an intermediate linear copy.
package netio

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/qedis-go/qedis/ringbuffer"
)

// Conn pairs one socket with a read ring and a write ring. It implements
// session.Sender so a ClientSession can hand it reply bytes directly.
type Conn struct {
	fd int
	tc *net.TCPConn

	readBuf  *ringbuffer.Buffer
	writeBuf *ringbuffer.Buffer

	replyHighWater uint64
}

// New wraps tc with read/write ring buffers of the given capacity each.
// tc must be backed by a raw file descriptor this process owns (a plain
// *net.TCPConn from Accept satisfies this). replyHighWater bounds how many
// bytes may sit unflushed in the write ring before the connection is
// considered a lagging peer and Send starts failing; 0 disables the check.
func New(tc *net.TCPConn, bufCapacity uint64, replyHighWater uint64) (*Conn, error) {
	fd, err := fdFromConn(tc)
	if err != nil {
		return nil, err
	}
	return &Conn{
		fd:             fd,
		tc:             tc,
		readBuf:        ringbuffer.New(bufCapacity),
		writeBuf:       ringbuffer.New(bufCapacity),
		replyHighWater: replyHighWater,
	}, nil
}

// fdFromConn extracts the underlying file descriptor, duplicating it so
// that runtime-managed net.Conn and our raw syscalls never race over the
// same descriptor's non-blocking state. The duplicate is what Conn
// performs Readv/Writev against; the original net.TCPConn is kept only
// to satisfy deadlines and Close.
func fdFromConn(tc *net.TCPConn) (int, error) {
	sc, err := tc.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("netio: get syscall conn: %w", err)
	}
	var dupFd int
	var dupErr error
	err = sc.Control(func(fd uintptr) {
		dupFd, dupErr = unix.Dup(int(fd))
	})
	if err != nil {
		return 0, fmt.Errorf("netio: control syscall conn: %w", err)
	}
	if dupErr != nil {
		return 0, fmt.Errorf("netio: dup fd: %w", dupErr)
	}
	return dupFd, nil
}

// FillReadBuffer performs one Readv into the read ring's writable spans
// and advances its write cursor by the number of bytes actually read. It
// returns the byte count and true, or (0, false) on EOF.
func (c *Conn) FillReadBuffer() (int, bool, error) {
	spans := c.readBuf.WritableView(0)
	if len(spans) == 0 {
		return 0, true, nil
	}

	iovecs := make([][]byte, len(spans))
	for i, s := range spans {
		iovecs[i] = s
	}

	n, err := unix.Readv(c.fd, iovecs)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0, true, nil
		}
		return 0, true, fmt.Errorf("netio: readv: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	c.readBuf.AdvanceWrite(n)
	return n, true, nil
}

// ReadBuffer exposes the read ring for the session to drain via
// ReadableView/AdvanceRead after a successful FillReadBuffer.
func (c *Conn) ReadBuffer() *ringbuffer.Buffer { return c.readBuf }

// Send satisfies session.Sender: it queues p into the write ring and
// flushes as much as the socket accepts right away. Bytes that don't fit
// the socket's buffer in one Writev stay queued and are retried on the
// next Flush call (e.g. triggered by the event loop's writable callback).
// If the backlog left after flushing still exceeds replyHighWater, Send
// reports an error so the caller can drop this connection as an unhealthy,
// too-far-behind peer.
func (c *Conn) Send(p []byte) error {
	if !c.writeBuf.Push(p) {
		return fmt.Errorf("netio: write ring overflowed, %d bytes dropped", len(p))
	}
	if err := c.Flush(); err != nil {
		return err
	}
	if backlogExceedsHighWater(c.writeBuf.ReadableSize(), c.replyHighWater) {
		return fmt.Errorf("netio: reply backlog %d bytes exceeds high water mark %d, peer too slow",
			c.writeBuf.ReadableSize(), c.replyHighWater)
	}
	return nil
}

// backlogExceedsHighWater reports whether an unflushed backlog of this
// size should be treated as an unhealthy, too-far-behind peer. A zero
// highWater disables the check.
func backlogExceedsHighWater(backlog, highWater uint64) bool {
	return highWater > 0 && backlog > highWater
}

// Flush writes the write ring's readable bytes to the socket with
// repeated Writev calls until the ring is empty or the socket stops
// accepting bytes (EAGAIN, EINTR or a zero-byte write), advancing the read
// cursor by exactly what was sent.
func (c *Conn) Flush() error {
	for c.writeBuf.ReadableSize() > 0 {
		spans := c.writeBuf.ReadableView(int(c.writeBuf.ReadableSize()), 0)
		if len(spans) == 0 {
			return nil
		}
		iovecs := make([][]byte, len(spans))
		for i, s := range spans {
			iovecs[i] = s
		}

		n, err := unix.Writev(c.fd, iovecs)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				return nil
			}
			return fmt.Errorf("netio: writev: %w", err)
		}
		if n == 0 {
			return nil
		}
		c.writeBuf.AdvanceRead(n)
	}
	return nil
}

// PendingWrite reports whether Send has bytes queued that Flush hasn't
// yet delivered to the socket.
func (c *Conn) PendingWrite() bool { return c.writeBuf.ReadableSize() > 0 }

// Close releases both the duplicated descriptor and the wrapped
// net.TCPConn.
func (c *Conn) Close() error {
	unix.Close(c.fd)
	return c.tc.Close()
}

// RemoteAddr returns the peer address string, used as a session's
// PeerAddr for monitor output and logging.
func (c *Conn) RemoteAddr() string {
	if c.tc == nil {
		return ""
	}
	return c.tc.RemoteAddr().String()
}

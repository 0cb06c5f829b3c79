// Package replication defines the replica-side gate a ClientSession
// consults before handing bytes to the RESP parser, plus the write-
// propagation hook used once a write command succeeds.
package replication

import "github.com/qedis-go/qedis/resp"

// MasterState is this session's view of its upstream master link,
// mirroring the reference implementation's QReplState.
type MasterState int

const (
	// StateNone: not replicating from a master; bytes are ordinary
	// client traffic.
	StateNone MasterState = iota
	// StateConnecting: a PSYNC/REPLCONF handshake is underway; bytes are
	// still ordinary client traffic from the gate's point of view.
	StateConnecting
	// StateWaitRdb: the handshake finished and an RDB snapshot is being
	// streamed; bytes are RDB payload, not RESP commands.
	StateWaitRdb
	// StateConnected: steady-state replication; bytes arriving on this
	// link are the master's command stream, not fed through RESP parsing
	// on the same path as client input.
	StateConnected
)

// Replication is the collaborator a Gate consults and feeds: state,
// RDB-size handshake, RDB byte sink, and command propagation. Its
// internals (the actual replication protocol and the RDB format) are out
// of scope for this module.
type Replication interface {
	// MasterState reports the current link state.
	MasterState() MasterState
	// RdbSize returns the expected RDB payload size and whether it's
	// known yet; ok is false before the "$<n>\r\n" size header has been
	// parsed off the wire.
	RdbSize() (size int, ok bool)
	// SetRdbSize records the parsed RDB payload size.
	SetRdbSize(size int)
	// SaveRdbChunk appends a chunk of RDB payload bytes.
	SaveRdbChunk(chunk []byte)
	// Propagate forwards a completed write command's argv to connected
	// replicas.
	Propagate(argv [][]byte)
}

// Action is the routing decision a Gate makes for a chunk of readable
// bytes.
type Action int

const (
	// Normal means the bytes are ordinary RESP/inline client traffic;
	// hand them to the resp.Parser as usual.
	Normal Action = iota
	// Discarded means the bytes were swallowed whole (steady-state
	// replication traffic arriving on a link the gate doesn't parse).
	Discarded
	// NeedMore means the gate needs more bytes to make progress (e.g.
	// the RDB size header is still incomplete); nothing was consumed.
	NeedMore
	// CapturedRdbChunk means some bytes were consumed as RDB payload or
	// as the RDB size header.
	CapturedRdbChunk
)

// Gate routes readable bytes to client-command parsing, to the bit
// bucket, or into RDB capture, based on the current MasterState — the
// same three-way split as the reference implementation's
// _HandlePacket replication-state preamble.
type Gate struct {
	repl Replication
}

// NewGate returns a Gate backed by repl.
func NewGate(repl Replication) *Gate {
	return &Gate{repl: repl}
}

// Route inspects data and decides how to dispose of it. For Normal it
// consumes nothing (the caller proceeds to feed data to its RESP
// parser); for every other Action it reports how many bytes of data it
// consumed itself.
func (g *Gate) Route(data []byte) (consumed int, action Action) {
	switch g.repl.MasterState() {
	case StateConnected:
		return len(data), Discarded

	case StateWaitRdb:
		size, ok := g.repl.RdbSize()
		if !ok {
			if len(data) == 0 || data[0] != '$' {
				return 0, NeedMore
			}
			n, used, err := resp.ParseIntUntilCRLF(data[1:])
			if err == resp.ErrNeedMore {
				return 0, NeedMore
			}
			if err != nil || n < 0 {
				return 0, NeedMore
			}
			g.repl.SetRdbSize(n)
			return 1 + used, CapturedRdbChunk
		}

		n := len(data)
		if n > size {
			n = size
		}
		if n == 0 {
			return 0, NeedMore
		}
		g.repl.SaveRdbChunk(data[:n])
		return n, CapturedRdbChunk

	default: // StateNone, StateConnecting
		return 0, Normal
	}
}

// Package command defines the collaborator surface a ClientSession
// dispatches through: looking up a command by name, checking its arity,
// and executing it against whatever Store implementation is wired in.
// The table's contents — the actual SET/GET/EXPIRE/... implementations —
// are out of scope here; this package only names the shape a table must
// have for session.ClientSession to drive it.
package command

import "github.com/qedis-go/qedis/store"

// Attr is a bitset of command attributes, checked by the dispatcher
// before and after execution (write-gating under replication, write
// propagation to replicas).
type Attr uint32

const (
	// AttrWrite marks a command that mutates the keyspace. The dispatcher
	// refuses to run a write command while acting as a read-only replica,
	// and propagates any write command that completes without error.
	AttrWrite Attr = 1 << iota
	// AttrAdmin marks a command reserved for administrative use (e.g.
	// SHUTDOWN, CONFIG SET) — reserved for future ACL-style gating.
	AttrAdmin
)

// Info describes one registered command: enough for the dispatcher to
// validate arity and decide write-gating without knowing how to run it.
type Info struct {
	Name  string
	Attr  Attr
	Arity int // positive: exact argc incl. name; negative: minimum argc (-n means "at least n")
}

// CheckArity reports whether argc (the number of argv elements, including
// the command name itself) satisfies this command's declared arity.
func (i *Info) CheckArity(argc int) bool {
	if i.Arity >= 0 {
		return argc == i.Arity
	}
	return argc >= -i.Arity
}

// IsWrite reports whether this command is gated under replica mode and
// propagated to replicas once it succeeds.
func (i *Info) IsWrite() bool {
	return i.Attr&AttrWrite != 0
}

// Table looks up and executes registered commands. A concrete
// implementation (not part of this module) owns the name-to-handler
// registry; session.ClientSession only needs this interface.
type Table interface {
	// Lookup returns the Info for a lowercased command name, or nil if
	// the command isn't registered.
	Lookup(name string) *Info
	// Execute runs argv[0]'s handler against db, appending any reply
	// bytes to reply. db is the selected database handle, not the
	// session — handlers don't need session state beyond the keyspace
	// and the reply sink.
	Execute(db store.DB, argv [][]byte, reply *[]byte) error
}

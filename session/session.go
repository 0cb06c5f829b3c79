// Package session implements ClientSession, the per-connection dispatcher
// that drives a resp.Parser and a replication.Gate over inbound bytes and
// runs the twelve-step command-processing order: replication gate, parse,
// current-session slot, auth gate, command lookup, monitor fan-out, MULTI
// queueing, replica write-guard, bracketed execution, reply flush,
// write-propagation, and scoped per-frame reset.
package session

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/qedis-go/qedis/command"
	"github.com/qedis-go/qedis/qlog"
	"github.com/qedis-go/qedis/replication"
	"github.com/qedis-go/qedis/resp"
	"github.com/qedis-go/qedis/slowlog"
	"github.com/qedis-go/qedis/store"
	"github.com/qedis-go/qedis/txn"
)

// Flag is a bitset of per-session state, mirroring the reference
// implementation's ClientFlag_* bits.
type Flag uint32

const (
	// FlagMulti: a MULTI block is open; non-control commands are queued
	// instead of executed.
	FlagMulti Flag = 1 << iota
	// FlagWrongExec: a queued command failed arity validation; EXEC must
	// abort without running anything.
	FlagWrongExec
	// FlagMaster: this session is the replication link to our master;
	// its writes bypass the read-only-replica guard.
	FlagMaster
)

// Sender delivers reply bytes to the peer. A concrete implementation
// (netio) wraps a socket; tests can use an in-memory fake. Send must not
// retain p past the call — the session reuses its reply buffer's backing
// array for the next frame.
type Sender interface {
	Send(p []byte) error
}

// current holds the session presently being dispatched, mirroring the
// reference implementation's QClient::s_pCurrentClient. It exists for
// parity with command handlers that need ambient access to "the client
// running right now" (e.g. CLIENT LIST); set at the start of a frame's
// processing and cleared when the frame's scoped reset runs.
var current atomic.Pointer[ClientSession]

// Current returns the session currently being dispatched, or nil between
// frames.
func Current() *ClientSession { return current.Load() }

// ClientSession is one connection's protocol state machine and command
// dispatcher.
type ClientSession struct {
	id       uint64
	peerAddr string

	db   int
	auth bool
	flag Flag

	parser *resp.Parser
	reply  []byte

	queueCmds [][][]byte

	waitingKeys map[string]struct{}
	target      string

	slaveInfo *SlaveInfo

	dirty atomic.Bool // set asynchronously by txn.Broker.Publish from another session's goroutine

	sendErr error

	sender Sender
	store  store.Store
	table  command.Table
	slog   slowlog.SlowLog
	repl   replication.Replication
	gate   *replication.Gate
	broker *txn.Broker
	mons   Monitors
	log    qlog.Logger
}

// SlaveInfo records this session's role as a replica link, set once a
// replica completes its handshake.
type SlaveInfo struct {
	ListenPort int
}

// Monitors is the subset of monitor.Registry[ClientSession] a session
// feeds command traffic into and registers itself with on MONITOR.
type Monitors interface {
	Feed(dbNo int, peerAddr string, argv [][]byte)
	AddCurrent(sess *ClientSession)
}

// Deps bundles a ClientSession's collaborators.
type Deps struct {
	Sender      Sender
	Store       store.Store
	Table       command.Table
	SlowLog     slowlog.SlowLog
	Replication replication.Replication
	Broker      *txn.Broker
	Monitors    Monitors
	Logger      qlog.Logger
	RequirePass bool

	// MaxInlineBytes bounds how long an inline (non-multibulk) command
	// line may grow before the parser treats the connection as abusive.
	// Zero disables the check.
	MaxInlineBytes int
}

// New returns a ClientSession ready to dispatch bytes from peerAddr. If
// deps.RequirePass is false, the session starts pre-authenticated,
// mirroring QClient::OnConnect's "no password configured" shortcut.
func New(id uint64, peerAddr string, deps Deps) *ClientSession {
	s := &ClientSession{
		id:          id,
		peerAddr:    peerAddr,
		parser:      resp.New(),
		waitingKeys: make(map[string]struct{}),
		sender:      deps.Sender,
		store:       deps.Store,
		table:       deps.Table,
		slog:        deps.SlowLog,
		repl:        deps.Replication,
		broker:      deps.Broker,
		mons:        deps.Monitors,
		log:         deps.Logger,
		auth:        !deps.RequirePass,
	}
	if s.repl != nil {
		s.gate = replication.NewGate(s.repl)
	}
	if deps.MaxInlineBytes > 0 {
		s.parser.SetMaxInline(deps.MaxInlineBytes)
	}
	return s
}

// ID returns this session's connection identifier.
func (s *ClientSession) ID() uint64 { return s.id }

// PeerAddr satisfies monitor.Target.
func (s *ClientSession) PeerAddr() string { return s.peerAddr }

// Deliver satisfies monitor.Target: sends a pre-formatted monitor echo
// line straight to the wire, bypassing the reply buffer and frame
// lifecycle (a monitor line isn't a reply to anything this session sent).
func (s *ClientSession) Deliver(line string) {
	if s.sender != nil {
		s.sender.Send([]byte(line))
	}
}

// MarkDirty satisfies txn.Mailbox. It may run on another session's
// goroutine (the one publishing the write that touched a watched key),
// so it only ever sets an atomic flag — never touches queueCmds or any
// other field the owning goroutine mutates without synchronization.
func (s *ClientSession) MarkDirty(db int, key string) {
	s.dirty.Store(true)
}

// IsMaster reports whether this session is this server's upstream
// replication link.
func (s *ClientSession) IsMaster() bool { return s.flag&FlagMaster != 0 }

// SetMaster marks this session as the replication link to our master.
func (s *ClientSession) SetMaster() { s.flag |= FlagMaster }

// SetSlaveInfo marks this session as a replica that completed its
// handshake.
func (s *ClientSession) SetSlaveInfo(listenPort int) {
	s.slaveInfo = &SlaveInfo{ListenPort: listenPort}
}

// SelectDB validates and switches this session's active database,
// mirroring QClient::SelectDB. A SELECT command handler (registered in
// the external command.Table, not part of this module) reaches this
// through Current() — the same pattern the reference implementation
// uses via QClient::Current() — since an opaque Table.Execute call has
// no other way to mutate session state.
func (s *ClientSession) SelectDB(n int) bool {
	if s.store.SelectDB(n) < 0 {
		return false
	}
	s.db = n
	return true
}

// WaitFor registers this session as blocked on key, optionally recording
// target as the handoff destination once the wait resolves. It reports
// false if key was already registered, mirroring QClient::WaitFor's
// insert-into-set-and-return-success semantics: re-registering an
// already-waited-on key is reported as failure, and target is left
// untouched in that case.
func (s *ClientSession) WaitFor(key string, target string) bool {
	if _, already := s.waitingKeys[key]; already {
		return false
	}
	if target != "" {
		if s.target != "" && s.target != target {
			return false
		}
		s.target = target
	}
	s.waitingKeys[key] = struct{}{}
	return true
}

// Close releases this session's blocking-wait and watch state, mirroring
// the reference implementation's requirement that closing a session
// cancels any blocking wait it was party to. The caller (server.serveConn)
// runs this once the connection's read loop exits for any reason.
func (s *ClientSession) Close() {
	s.waitingKeys = make(map[string]struct{})
	s.target = ""
	s.clearWatch()
}

// OnReadable drives the replication gate and the RESP parser over data —
// the bytes currently readable off the wire — processing as many
// complete frames as are available and returning the total number of
// bytes consumed. The caller (server.serveConn) advances the connection's
// read ring cursor by the returned amount.
func (s *ClientSession) OnReadable(data []byte) (consumed int) {
	for consumed < len(data) {
		// The replication gate only governs the one connection that is
		// this server's master link: it decides whether bytes on *that*
		// socket are RDB payload or steady-state replication traffic.
		// An ordinary client connection always goes through RESP parsing
		// regardless of this server's own upstream replication state.
		if s.gate != nil && s.IsMaster() {
			n, action := s.gate.Route(data[consumed:])
			switch action {
			case replication.Discarded, replication.CapturedRdbChunk:
				if n == 0 {
					return consumed
				}
				consumed += n
				continue
			case replication.NeedMore:
				return consumed
			}
			// replication.Normal falls through to RESP parsing below.
		}

		n, status := s.parser.Feed(data[consumed:])
		consumed += n
		switch status {
		case resp.Ready:
			s.handleFrame()
			s.parser.Reset()
		case resp.Error:
			if s.log != nil {
				s.log.Warnf("session %d: malformed request, closing", s.id)
			}
			return consumed
		default: // NeedMore
			if n == 0 {
				return consumed
			}
		}
	}
	return consumed
}

func (s *ClientSession) handleFrame() {
	frame := s.parser.Frame()
	argv := frame.Argv
	if len(argv) == 0 || len(argv[0]) == 0 {
		return
	}

	current.Store(s)
	defer current.Store(nil)

	cmdName := strings.ToLower(string(argv[0]))

	if !s.auth && cmdName != "auth" {
		s.appendError("NOAUTH Authentication required.")
		s.flush()
		return
	}
	if cmdName == "auth" {
		s.handleAuth(argv)
		s.flush()
		return
	}

	s.store.SelectDB(s.db)

	txnCmd := isTxnControlCmd(cmdName)
	var info *command.Info
	if !txnCmd {
		info = s.table.Lookup(cmdName)
		if info == nil {
			s.appendError("ERR unknown command '" + cmdName + "'")
			s.flush()
			return
		}
	}

	if s.mons != nil {
		s.mons.Feed(s.db, s.peerAddr, argv)
	}

	if txnCmd {
		s.handleTxnCommand(cmdName, argv)
		s.flush()
		return
	}

	if s.flag&FlagMulti != 0 {
		if !info.CheckArity(len(argv)) {
			s.flag |= FlagWrongExec
			s.appendError("ERR wrong number of arguments for '" + cmdName + "' command")
		} else {
			if s.flag&FlagWrongExec == 0 {
				s.queueCmds = append(s.queueCmds, argv)
			}
			s.reply = append(s.reply, resp.QueuedReply...)
		}
		s.flush()
		return
	}

	var execErr error
	if s.repl != nil && s.repl.MasterState() != replication.StateNone && !s.IsMaster() && info.IsWrite() {
		s.appendError("READONLY You can't write against a read only replica.")
		execErr = errReadonlySlave
	} else {
		var tok slowlog.Token
		if s.slog != nil {
			tok = s.slog.Begin()
		}
		execErr = s.table.Execute(s.store.GetDB(), argv, &s.reply)
		if s.slog != nil {
			s.slog.EndAndStat(tok, argv)
		}
	}

	s.flush()

	if execErr == nil && info.IsWrite() && s.repl != nil {
		s.repl.Propagate(argv)
	}
}

func (s *ClientSession) handleAuth(argv [][]byte) {
	if len(argv) != 2 {
		s.appendError("ERR wrong number of arguments for 'auth' command")
		return
	}
	if s.store.Password() == "" {
		s.appendError("ERR Client sent AUTH, but no password is set")
		return
	}
	if string(argv[1]) != s.store.Password() {
		s.appendError("ERR invalid password")
		return
	}
	s.auth = true
	s.reply = resp.AppendSimpleString(s.reply, "OK")
}

func (s *ClientSession) appendError(msg string) {
	s.reply = resp.AppendError(s.reply, msg)
}

// flush sends any accumulated reply bytes to the peer and resets the
// reply buffer, scoped to this one frame — the same QEDIS_DEFER-scoped
// reset the reference implementation performs per packet. A Send failure
// (including the transport reporting the reply backlog over its high
// water mark) is latched in sendErr for the caller to observe via Err.
func (s *ClientSession) flush() {
	if len(s.reply) > 0 && s.sender != nil {
		if err := s.sender.Send(s.reply); err != nil {
			s.sendErr = err
		}
	}
	s.reply = s.reply[:0]
}

// Err returns the most recent Sender.Send failure, if any. The caller
// (server.serveConn) checks this after each OnReadable call and drops the
// connection once it's set, since a failing or backlogged peer can't
// usefully keep receiving replies.
func (s *ClientSession) Err() error { return s.sendErr }

var errReadonlySlave = errors.New("session: write rejected, acting as read-only replica")

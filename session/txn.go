package session

import (
	"strings"

	"github.com/qedis-go/qedis/resp"
)

func isTxnControlCmd(cmdName string) bool {
	switch cmdName {
	case "multi", "exec", "watch", "unwatch", "discard", "monitor":
		return true
	}
	return false
}

func (s *ClientSession) handleTxnCommand(cmdName string, argv [][]byte) {
	switch cmdName {
	case "multi":
		s.handleMulti()
	case "watch":
		s.handleWatch(argv)
	case "unwatch":
		s.clearWatch()
		s.reply = resp.AppendSimpleString(s.reply, "OK")
	case "discard":
		s.handleDiscard()
	case "exec":
		s.handleExec()
	case "monitor":
		if s.mons != nil {
			s.mons.AddCurrent(s)
		}
		s.reply = resp.AppendSimpleString(s.reply, "OK")
	}
}

func (s *ClientSession) handleMulti() {
	if s.flag&FlagMulti != 0 {
		s.appendError("ERR MULTI calls can not be nested")
		return
	}
	s.flag |= FlagMulti
	s.flag &^= FlagWrongExec
	s.queueCmds = nil
	s.reply = resp.AppendSimpleString(s.reply, "OK")
}

func (s *ClientSession) handleWatch(argv [][]byte) {
	if s.flag&FlagMulti != 0 {
		s.appendError("ERR WATCH inside MULTI is not allowed")
		return
	}
	if len(argv) < 2 {
		s.appendError("ERR wrong number of arguments for 'watch' command")
		return
	}
	if s.broker != nil {
		for _, k := range argv[1:] {
			s.broker.Watch(s, s.db, string(k))
		}
	}
	s.reply = resp.AppendSimpleString(s.reply, "OK")
}

func (s *ClientSession) handleDiscard() {
	if s.flag&FlagMulti == 0 {
		s.appendError("ERR DISCARD without MULTI")
		return
	}
	s.clearMulti()
	s.clearWatch()
	s.reply = resp.AppendSimpleString(s.reply, "OK")
}

// handleExec runs every queued command in order, mirroring
// QClient::Exec: an EXECABORT if a queued command previously failed
// arity validation, a null array if a watched key went dirty, otherwise
// one reply per queued command wrapped in an array header. The watch set
// and queue are always cleared on the way out, queued or not.
func (s *ClientSession) handleExec() {
	defer func() {
		s.clearMulti()
		s.clearWatch()
	}()

	if s.flag&FlagMulti == 0 {
		s.appendError("ERR EXEC without MULTI")
		return
	}
	if s.flag&FlagWrongExec != 0 {
		s.appendError("EXECABORT Transaction discarded because of previous errors.")
		return
	}
	if s.dirty.Load() {
		s.reply = append(s.reply, resp.NullArrayReply...)
		return
	}

	s.reply = resp.AppendArrayHeader(s.reply, len(s.queueCmds))
	for _, cmd := range s.queueCmds {
		name := strings.ToLower(string(cmd[0]))
		info := s.table.Lookup(name)
		err := s.table.Execute(s.store.GetDB(), cmd, &s.reply)
		if err == nil && info != nil && info.IsWrite() && s.repl != nil {
			s.repl.Propagate(cmd)
		}
	}
}

func (s *ClientSession) clearMulti() {
	s.queueCmds = nil
	s.flag &^= FlagMulti | FlagWrongExec
}

func (s *ClientSession) clearWatch() {
	if s.broker != nil {
		s.broker.UnwatchAll(s)
	}
	s.dirty.Store(false)
}

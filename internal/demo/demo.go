// Package demo provides a minimal in-memory store and command table so
// cmd/qedis-server has something to dispatch against out of the box. A
// real deployment supplies its own store.Store and command.Table; this
// package exists for the binary to be runnable without one, not as a
// production keyspace.
package demo

import (
	"strings"
	"sync"

	"github.com/qedis-go/qedis/command"
	"github.com/qedis-go/qedis/resp"
	"github.com/qedis-go/qedis/store"
)

// Store is a trivially small multi-database in-memory keyspace.
type Store struct {
	password string

	mu  sync.Mutex
	dbs []map[string][]byte
	cur int
}

// NewStore returns a Store with numDBs selectable databases.
func NewStore(password string, numDBs int) *Store {
	if numDBs < 1 {
		numDBs = 1
	}
	dbs := make([]map[string][]byte, numDBs)
	for i := range dbs {
		dbs[i] = make(map[string][]byte)
	}
	return &Store{password: password, dbs: dbs}
}

// SelectDB satisfies store.Store. It returns -1 for an out-of-range index,
// mirroring the negative-on-failure convention session.SelectDB expects.
func (s *Store) SelectDB(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 || n >= len(s.dbs) {
		return -1
	}
	s.cur = n
	return n
}

// GetDB satisfies store.Store, returning the currently selected database
// as an opaque store.DB handle (here, the map itself).
func (s *Store) GetDB() store.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbs[s.cur]
}

// Password satisfies store.Store.
func (s *Store) Password() string { return s.password }

// Table is a command.Table covering a handful of keyspace commands,
// enough to exercise session's dispatch path end to end. Execute locks
// around every call since the underlying map may be shared by sessions
// on other connections that selected the same database.
type Table struct {
	mu    sync.Mutex
	infos map[string]*command.Info
}

// NewTable returns a Table registering PING, ECHO, GET, SET, and DEL.
func NewTable() *Table {
	return &Table{infos: map[string]*command.Info{
		"ping": {Name: "ping", Arity: -1},
		"echo": {Name: "echo", Arity: 2},
		"get":  {Name: "get", Arity: 2},
		"set":  {Name: "set", Attr: command.AttrWrite, Arity: -3},
		"del":  {Name: "del", Attr: command.AttrWrite, Arity: -2},
	}}
}

// Lookup satisfies command.Table.
func (t *Table) Lookup(name string) *command.Info { return t.infos[strings.ToLower(name)] }

// Execute satisfies command.Table, dispatching on argv[0] against the
// map handed back by Store.GetDB.
func (t *Table) Execute(db store.DB, argv [][]byte, reply *[]byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, _ := db.(map[string][]byte)
	name := strings.ToLower(string(argv[0]))
	switch name {
	case "ping":
		if len(argv) > 1 {
			*reply = resp.AppendBulkString(*reply, argv[1])
		} else {
			*reply = resp.AppendSimpleString(*reply, "PONG")
		}
	case "echo":
		*reply = resp.AppendBulkString(*reply, argv[1])
	case "get":
		v, ok := m[string(argv[1])]
		if !ok {
			*reply = resp.AppendBulkString(*reply, nil)
		} else {
			*reply = resp.AppendBulkString(*reply, v)
		}
	case "set":
		m[string(argv[1])] = append([]byte{}, argv[2]...)
		*reply = resp.AppendSimpleString(*reply, "OK")
	case "del":
		n := 0
		for _, k := range argv[1:] {
			if _, ok := m[string(k)]; ok {
				delete(m, string(k))
				n++
			}
		}
		*reply = resp.AppendInteger(*reply, int64(n))
	default:
		*reply = resp.AppendError(*reply, "ERR unknown command '"+name+"'")
	}
	return nil
}

package demo

import "github.com/qedis-go/qedis/replication"

// NoneReplication is a replication.Replication that never replicates: it
// reports StateNone permanently and discards everything Propagate is
// given. It lets the demo server run standalone without a real
// replication manager.
type NoneReplication struct{}

// NewNoneReplication returns a Replication stub for a standalone server.
func NewNoneReplication() *NoneReplication { return &NoneReplication{} }

func (NoneReplication) MasterState() replication.MasterState { return replication.StateNone }
func (NoneReplication) RdbSize() (int, bool)                 { return 0, false }
func (NoneReplication) SetRdbSize(int)                       {}
func (NoneReplication) SaveRdbChunk([]byte)                  {}
func (NoneReplication) Propagate([][]byte)                   {}

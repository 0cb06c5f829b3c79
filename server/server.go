// Package server accepts client connections and runs each one's read loop
// on its own goroutine, supervised by an errgroup.Group the way the
// balancer and route coordinator modules supervise their gRPC listeners.
package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/qedis-go/qedis/command"
	"github.com/qedis-go/qedis/config"
	"github.com/qedis-go/qedis/monitor"
	"github.com/qedis-go/qedis/netio"
	"github.com/qedis-go/qedis/qlog"
	"github.com/qedis-go/qedis/replication"
	"github.com/qedis-go/qedis/ringbuffer"
	"github.com/qedis-go/qedis/session"
	"github.com/qedis-go/qedis/slowlog"
	"github.com/qedis-go/qedis/store"
	"github.com/qedis-go/qedis/txn"
)

// Collaborators bundles the shared, server-lifetime state every accepted
// session is wired against. Store and Table are the only pieces that
// actually hold keyspace data or command logic; everything else here is
// infrastructure this package owns.
type Collaborators struct {
	Store       store.Store
	Table       command.Table
	SlowLog     slowlog.SlowLog
	Replication replication.Replication
	Logger      qlog.Logger
}

// Server accepts TCP connections on cfg.Listen and runs one ClientSession
// per connection until ctx is cancelled.
type Server struct {
	cfg  *config.Config
	deps Collaborators

	broker *txn.Broker
	mons   *monitor.Registry[session.ClientSession]

	nextID atomic.Uint64
}

// New builds a Server ready to Run. The broker and monitor registry are
// server-lifetime singletons shared by every session it accepts.
func New(cfg *config.Config, deps Collaborators) *Server {
	return &Server{
		cfg:    cfg,
		deps:   deps,
		broker: txn.NewBroker(),
		mons:   monitor.NewRegistry[session.ClientSession](),
	}
}

// Run listens on s.cfg.Listen and accepts connections until ctx is
// cancelled, at which point the listener is closed and Run waits for
// every in-flight session goroutine to return.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Listen, err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	if s.deps.Logger != nil {
		s.deps.Logger.Infof("server: listening on %s", ln.Addr())
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return group.Wait()
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}

		tc, ok := conn.(*net.TCPConn)
		if !ok {
			conn.Close()
			continue
		}

		group.Go(func() error {
			s.serveConn(tc)
			return nil
		})
	}
}

func (s *Server) serveConn(tc *net.TCPConn) {
	id := s.nextID.Add(1)

	nc, err := netio.New(tc, s.cfg.RingBufferCapacity, s.cfg.ReplyHighWaterBytes)
	if err != nil {
		if s.deps.Logger != nil {
			s.deps.Logger.Errorf("server: wrap connection %d: %v", id, err)
		}
		tc.Close()
		return
	}
	defer nc.Close()

	sess := session.New(id, nc.RemoteAddr(), session.Deps{
		Sender:         nc,
		Store:          s.deps.Store,
		Table:          s.deps.Table,
		SlowLog:        s.deps.SlowLog,
		Replication:    s.deps.Replication,
		Broker:         s.broker,
		Monitors:       s.mons,
		Logger:         s.deps.Logger,
		RequirePass:    s.cfg.Password != "",
		MaxInlineBytes: s.cfg.MaxInlineBytes,
	})
	defer sess.Close()

	if s.deps.Logger != nil {
		s.deps.Logger.Infof("server: accepted connection %d from %s", id, nc.RemoteAddr())
	}

	for {
		n, ok, err := nc.FillReadBuffer()
		if err != nil {
			if s.deps.Logger != nil {
				s.deps.Logger.Warnf("server: connection %d read error: %v", id, err)
			}
			return
		}
		if !ok {
			return // peer closed
		}
		if n == 0 {
			continue
		}

		readable := nc.ReadBuffer().ReadableSize()
		spans := nc.ReadBuffer().ReadableView(int(readable), 0)
		data := coalesce(spans)

		consumed := sess.OnReadable(data)
		nc.ReadBuffer().AdvanceRead(consumed)
		if consumed < len(data) && consumed == 0 {
			// Parser made no progress on a full buffer of unconsumed
			// bytes: a frame larger than the ring's capacity. Drop the
			// connection rather than spin.
			if s.deps.Logger != nil {
				s.deps.Logger.Warnf("server: connection %d stalled, frame too large for buffer", id)
			}
			return
		}
		if err := sess.Err(); err != nil {
			if s.deps.Logger != nil {
				s.deps.Logger.Warnf("server: connection %d: %v", id, err)
			}
			return
		}
	}
}

func coalesce(spans []ringbuffer.Span) []byte {
	if len(spans) == 1 {
		return spans[0]
	}
	var out []byte
	for _, s := range spans {
		out = append(out, s...)
	}
	return out
}

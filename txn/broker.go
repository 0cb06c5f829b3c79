// Package txn implements cross-session dirty-key notification as
// message passing: a process-wide Broker that writers publish (db, key)
// events to, and that watching sessions subscribe a mailbox against —
// replacing the reference implementation's approach of each client
// directly mutating every other client's watch set.
package txn

import "sync"

// Key identifies a watched key within a specific database.
type Key struct {
	DB  int
	Key string
}

// Mailbox receives dirty notifications. A session implements this by
// setting its own "this transaction is dirty" flag; the broker never
// touches session state beyond this one call.
type Mailbox interface {
	MarkDirty(db int, key string)
}

// Broker is a process-wide (db,key) to subscribed-mailboxes registry.
// All methods are safe for concurrent use.
type Broker struct {
	mu     sync.Mutex
	byKey  map[Key]map[Mailbox]struct{}
	byMbox map[Mailbox]map[Key]struct{}
}

// NewBroker returns an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		byKey:  make(map[Key]map[Mailbox]struct{}),
		byMbox: make(map[Mailbox]map[Key]struct{}),
	}
}

// Watch subscribes mb to dirty notifications for (db, key). It reports
// false if mb was already watching that key, mirroring WATCH's
// idempotent-insert semantics.
func (b *Broker) Watch(mb Mailbox, db int, key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := Key{DB: db, Key: key}
	subs := b.byKey[k]
	if subs == nil {
		subs = make(map[Mailbox]struct{})
		b.byKey[k] = subs
	}
	if _, already := subs[mb]; already {
		return false
	}
	subs[mb] = struct{}{}

	keys := b.byMbox[mb]
	if keys == nil {
		keys = make(map[Key]struct{})
		b.byMbox[mb] = keys
	}
	keys[k] = struct{}{}
	return true
}

// Unwatch removes one (db, key) subscription for mb.
func (b *Broker) Unwatch(mb Mailbox, db int, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unwatchLocked(mb, Key{DB: db, Key: key})
}

// UnwatchAll removes every subscription belonging to mb, mirroring
// ClearWatch's "drop the whole watch set" semantics (called on EXEC,
// DISCARD, UNWATCH, or connection close).
func (b *Broker) UnwatchAll(mb Mailbox) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.byMbox[mb] {
		b.unwatchLocked(mb, k)
	}
}

func (b *Broker) unwatchLocked(mb Mailbox, k Key) {
	if subs, ok := b.byKey[k]; ok {
		delete(subs, mb)
		if len(subs) == 0 {
			delete(b.byKey, k)
		}
	}
	if keys, ok := b.byMbox[mb]; ok {
		delete(keys, k)
		if len(keys) == 0 {
			delete(b.byMbox, mb)
		}
	}
}

// Publish notifies every mailbox subscribed to (db, key) that it's now
// dirty. Nothing in this module calls it: the session dispatcher does not
// publish the keys its write commands touch, so a watcher is marked dirty
// only when some other code calls Publish for the written key.
// Delivery happens synchronously on the caller's goroutine; Mailbox
// implementations must not block or take locks the publisher could be
// holding.
func (b *Broker) Publish(db int, key string) {
	b.mu.Lock()
	k := Key{DB: db, Key: key}
	subs := b.byKey[k]
	targets := make([]Mailbox, 0, len(subs))
	for mb := range subs {
		targets = append(targets, mb)
	}
	b.mu.Unlock()

	for _, mb := range targets {
		mb.MarkDirty(db, key)
	}
}

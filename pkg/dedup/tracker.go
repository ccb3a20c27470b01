// Package dedup remembers which neighbor first delivered each message GUID.
// The record drives both loop suppression and reverse-path routing.
package dedup

import (
    "time"

    "pearnet/pkg/memkv"
    "pearnet/pkg/protocol"
)

// Tracker maps GUID to origin address. Safe for concurrent use.
type Tracker struct {
    kv     *memkv.Store
    prefix string
    ttl    time.Duration
}

// New returns a tracker storing its records in kv under prefix. A ttl of 0
// keeps records forever; a positive ttl evicts them after that long.
func New(kv *memkv.Store, prefix string, ttl time.Duration) *Tracker {
    return &Tracker{kv: kv, prefix: prefix, ttl: ttl}
}

func (t *Tracker) key(g protocol.GUID) string { return t.prefix + string(g[:]) }

// Remember records guid against addr unless a record already exists.
// It reports whether this call created the record; an existing mapping is
// never overwritten.
func (t *Tracker) Remember(g protocol.GUID, addr string) bool {
    return t.kv.SetNX(t.key(g), []byte(addr), t.ttl)
}

// Lookup returns the address guid was first recorded against.
func (t *Tracker) Lookup(g protocol.GUID) (string, bool) {
    b, ok := t.kv.Get(t.key(g))
    if !ok { return "", false }
    return string(b), true
}

func (t *Tracker) Seen(g protocol.GUID) bool { return t.kv.Exists(t.key(g)) }

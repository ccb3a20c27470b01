// Package peers tracks the live neighbor connections of a node.
package peers

import (
    "sync"

    "go.uber.org/zap"

    "pearnet/pkg/protocol"
)

// Peer is the registry's view of one live connection.
type Peer interface {
    Address() string
    Send(*protocol.Message) error
    Close() error
}

// Advertiser is implemented by peers that know the listen address their
// remote end advertised. The registry treats that address as an alias.
type Advertiser interface {
    Advertised() string
}

// Admission is the outcome of TryAdd.
type Admission int

const (
    Accepted Admission = iota
    RejectedFull
    RejectedDuplicate
)

func (a Admission) String() string {
    switch a {
    case Accepted:
        return "accepted"
    case RejectedFull:
        return "rejected(full)"
    case RejectedDuplicate:
        return "rejected(duplicate)"
    default:
        return "unknown"
    }
}

// Registry maps peer address to its connection and bounds the neighbor count.
// All methods are safe for concurrent use.
type Registry struct {
    mu     sync.RWMutex
    max    int
    order  []string
    byAddr map[string]Peer
}

// New returns a registry admitting at most max peers (protocol.DefaultMaxPeers when max <= 0).
func New(max int) *Registry {
    if max <= 0 { max = protocol.DefaultMaxPeers }
    return &Registry{max: max, byAddr: make(map[string]Peer)}
}

// TryAdd registers p under addr. The bound is checked and the entry written
// under one lock, so concurrent callers can never overshoot it.
func (r *Registry) TryAdd(addr string, p Peer) Admission {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.containsLocked(addr) {
        zap.L().Debug("peer admission", zap.String("peer", addr), zap.Stringer("result", RejectedDuplicate))
        return RejectedDuplicate
    }
    if len(r.byAddr) >= r.max {
        zap.L().Debug("peer admission", zap.String("peer", addr), zap.Stringer("result", RejectedFull))
        return RejectedFull
    }
    r.byAddr[addr] = p
    r.order = append(r.order, addr)
    zap.L().Debug("peer admission", zap.String("peer", addr), zap.Stringer("result", Accepted), zap.Int("size", len(r.byAddr)))
    return Accepted
}

// Remove deletes addr. It is a no-op when addr is absent.
func (r *Registry) Remove(addr string) bool {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.removeLocked(addr)
}

// RemovePeer deletes addr only while it still maps to p, so a closing
// connection cannot evict a newer connection registered under the same address.
func (r *Registry) RemovePeer(addr string, p Peer) bool {
    r.mu.Lock()
    defer r.mu.Unlock()
    if cur, ok := r.byAddr[addr]; !ok || cur != p { return false }
    return r.removeLocked(addr)
}

func (r *Registry) removeLocked(addr string) bool {
    if _, ok := r.byAddr[addr]; !ok { return false }
    delete(r.byAddr, addr)
    for i, a := range r.order {
        if a == addr {
            r.order = append(r.order[:i], r.order[i+1:]...)
            break
        }
    }
    zap.L().Debug("peer removed", zap.String("peer", addr), zap.Int("size", len(r.byAddr)))
    return true
}

// Get returns the connection registered under addr.
func (r *Registry) Get(addr string) (Peer, bool) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    p, ok := r.byAddr[addr]
    return p, ok
}

// Contains reports whether addr is registered, either as a key or as the
// advertised address of a registered peer.
func (r *Registry) Contains(addr string) bool {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return r.containsLocked(addr)
}

func (r *Registry) containsLocked(addr string) bool {
    if _, ok := r.byAddr[addr]; ok { return true }
    for _, p := range r.byAddr {
        if a, ok := p.(Advertiser); ok && addr != "" && a.Advertised() == addr { return true }
    }
    return false
}

func (r *Registry) IsFull() bool {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return len(r.byAddr) >= r.max
}

func (r *Registry) Len() int {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return len(r.byAddr)
}

func (r *Registry) Max() int { return r.max }

// Snapshot returns the registered connections in admission order. The slice
// is a copy; callers may iterate it while the registry changes.
func (r *Registry) Snapshot() []Peer {
    r.mu.RLock()
    defer r.mu.RUnlock()
    out := make([]Peer, 0, len(r.order))
    for _, a := range r.order {
        out = append(out, r.byAddr[a])
    }
    return out
}

package dedup

import (
    "sync"
    "sync/atomic"
    "testing"

    "github.com/stretchr/testify/require"

    "pearnet/pkg/memkv"
    "pearnet/pkg/protocol"
)

func newTracker(t *testing.T, prefix string) (*Tracker, *memkv.Store) {
    kv := memkv.New(memkv.Options{})
    t.Cleanup(kv.Close)
    return New(kv, prefix, 0), kv
}

func TestRememberFirstWriterWins(t *testing.T) {
    tr, _ := newTracker(t, "ping:")
    g := protocol.NewGUID()

    require.False(t, tr.Seen(g))
    _, ok := tr.Lookup(g)
    require.False(t, ok)

    require.True(t, tr.Remember(g, "10.0.0.1:22222"))
    require.False(t, tr.Remember(g, "10.0.0.2:22222"))

    addr, ok := tr.Lookup(g)
    require.True(t, ok)
    require.Equal(t, "10.0.0.1:22222", addr)
    require.True(t, tr.Seen(g))
}

func TestPrefixesAreIndependent(t *testing.T) {
    kv := memkv.New(memkv.Options{})
    defer kv.Close()
    pings := New(kv, "ping:", 0)
    chats := New(kv, "chat:", 0)
    g := protocol.NewGUID()

    require.True(t, pings.Remember(g, "a"))
    require.False(t, chats.Seen(g))
    require.True(t, chats.Remember(g, "b"))
}

func TestConcurrentRememberRecordsOnce(t *testing.T) {
    tr, _ := newTracker(t, "chat:")
    g := protocol.NewGUID()

    var fresh atomic.Int32
    var wg sync.WaitGroup
    for i := 0; i < 32; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            if tr.Remember(g, "peer") { fresh.Add(1) }
        }()
    }
    wg.Wait()
    require.Equal(t, int32(1), fresh.Load())
}

package overlay

import (
    "context"
    "errors"
    "net"
    "sync"
    "testing"
    "time"

    "github.com/sony/gobreaker"
    "github.com/stretchr/testify/require"

    "pearnet/pkg/chatlog"
    "pearnet/pkg/core/peering"
    "pearnet/pkg/protocol"
    "pearnet/pkg/transport"
    "pearnet/pkg/transport/mem"
)

type recSink struct {
    mu    sync.Mutex
    lines []chatlog.Line
}

func (s *recSink) AppendChatLine(u, text string, ts time.Time) error {
    s.mu.Lock(); defer s.mu.Unlock()
    s.lines = append(s.lines, chatlog.Line{Username: u, Text: text, Time: ts})
    return nil
}

func (s *recSink) snapshot() []chatlog.Line {
    s.mu.Lock(); defer s.mu.Unlock()
    return append([]chatlog.Line(nil), s.lines...)
}

var quietPings = peering.PingSchedule{InitialMin: time.Hour, InitialMax: time.Hour, PeriodMin: time.Hour, PeriodMax: time.Hour}

type node struct {
    *Service
    sink *recSink
}

func startMem(t *testing.T, n *mem.Network, name string, max int, ping peering.PingSchedule) node {
    t.Helper()
    sink := &recSink{}
    s, err := New(Options{
        Listen:      name,
        Advertise:   name,
        Link:        mem.NewOn(n, transport.Options{WriteTimeout: 2 * time.Second}),
        MaxPeers:    max,
        Ping:        ping,
        StopTimeout: 2 * time.Second,
        Breaker:     BreakerSettings{MaxFailures: 100},
        Sink:        sink,
    })
    require.NoError(t, err)
    require.NoError(t, s.Start(context.Background(), nil))
    t.Cleanup(func() { _ = s.Stop() })
    return node{Service: s, sink: sink}
}

// openPeers waits for at least n registered connections, all open.
func openPeers(s *Service, n int) func() bool {
    return func() bool {
        ps := s.Peers()
        if len(ps) < n { return false }
        for _, p := range ps {
            if p.State != peering.StateOpen { return false }
        }
        return true
    }
}

func TestConnectAndChat(t *testing.T) {
    n := mem.NewNetwork()
    a := startMem(t, n, "a", 5, quietPings)
    b := startMem(t, n, "b", 5, quietPings)

    require.NoError(t, b.Connect(context.Background(), "a"))
    require.Eventually(t, openPeers(a.Service, 1), 2*time.Second, 5*time.Millisecond)

    sent, err := a.SendChat("alice", "hi")
    require.NoError(t, err)
    require.Equal(t, 1, sent)

    require.Eventually(t, func() bool { return len(b.sink.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
    got := b.sink.snapshot()[0]
    require.Equal(t, "alice", got.Username)
    require.Equal(t, "hi", got.Text)

    // the sender keeps its own line and never sees it come back
    time.Sleep(50 * time.Millisecond)
    require.Len(t, a.sink.snapshot(), 1)
}

func TestChatFloodsAcrossChain(t *testing.T) {
    n := mem.NewNetwork()
    a := startMem(t, n, "a", 5, quietPings)
    b := startMem(t, n, "b", 5, quietPings)
    c := startMem(t, n, "c", 5, quietPings)

    require.NoError(t, a.Connect(context.Background(), "b"))
    require.NoError(t, c.Connect(context.Background(), "b"))
    require.Eventually(t, openPeers(b.Service, 2), 2*time.Second, 5*time.Millisecond)
    require.Eventually(t, openPeers(a.Service, 1), 2*time.Second, 5*time.Millisecond)

    _, err := a.SendChat("alice", "over the hill")
    require.NoError(t, err)

    require.Eventually(t, func() bool { return len(c.sink.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
    time.Sleep(50 * time.Millisecond)
    require.Len(t, b.sink.snapshot(), 1)
    require.Len(t, c.sink.snapshot(), 1)
    require.Len(t, a.sink.snapshot(), 1)
}

func TestPongDiscoveryDialsNewPeer(t *testing.T) {
    fast := peering.PingSchedule{InitialMin: 10 * time.Millisecond, InitialMax: 20 * time.Millisecond, PeriodMin: 30 * time.Millisecond, PeriodMax: 40 * time.Millisecond}
    n := mem.NewNetwork()
    a := startMem(t, n, "a", 5, fast)
    _ = startMem(t, n, "b", 5, fast)
    c := startMem(t, n, "c", 5, fast)

    require.NoError(t, a.Connect(context.Background(), "b"))
    require.NoError(t, c.Connect(context.Background(), "b"))

    knows := func(s *Service, addr string) bool {
        for _, p := range s.Peers() {
            if p.Address == addr || p.Advertised == addr { return true }
        }
        return false
    }
    require.Eventually(t, func() bool { return knows(a.Service, "c") }, 3*time.Second, 10*time.Millisecond)
    require.Eventually(t, func() bool { return knows(c.Service, "a") }, 3*time.Second, 10*time.Millisecond)
}

func TestInboundOverCapacityIsRefused(t *testing.T) {
    n := mem.NewNetwork()
    a := startMem(t, n, "a", 1, quietPings)
    b := startMem(t, n, "b", 5, quietPings)
    c := startMem(t, n, "c", 5, quietPings)

    require.NoError(t, b.Connect(context.Background(), "a"))
    require.Eventually(t, openPeers(a.Service, 1), 2*time.Second, 5*time.Millisecond)

    // c's dial succeeds at the link level; a answers with Bye and hangs up
    _ = c.Connect(context.Background(), "a")
    require.Eventually(t, func() bool { return len(c.Peers()) == 0 }, 2*time.Second, 5*time.Millisecond)
    require.Len(t, a.Peers(), 1)
    require.Equal(t, "a#1", a.Peers()[0].Address)
}

func TestConnectRejectsDuplicatesAndSelf(t *testing.T) {
    n := mem.NewNetwork()
    a := startMem(t, n, "a", 5, quietPings)
    b := startMem(t, n, "b", 5, quietPings)

    require.NoError(t, b.Connect(context.Background(), "a"))
    require.ErrorIs(t, b.Connect(context.Background(), "a"), ErrAlreadyConnected)
    require.ErrorIs(t, b.Connect(context.Background(), "b"), ErrSelfConnect)
    require.Eventually(t, openPeers(a.Service, 1), 2*time.Second, 5*time.Millisecond)
}

func TestConnectFullRegistry(t *testing.T) {
    n := mem.NewNetwork()
    a := startMem(t, n, "a", 1, quietPings)
    _ = startMem(t, n, "b", 5, quietPings)
    _ = startMem(t, n, "c", 5, quietPings)

    require.NoError(t, a.Connect(context.Background(), "b"))
    require.ErrorIs(t, a.Connect(context.Background(), "c"), ErrRegistryFull)
}

func TestDialBreakerOpens(t *testing.T) {
    n := mem.NewNetwork()
    s, err := New(Options{
        Listen:  "a",
        Link:    mem.NewOn(n, transport.Options{}),
        Breaker: BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute},
    })
    require.NoError(t, err)
    require.NoError(t, s.Start(context.Background(), nil))
    t.Cleanup(func() { _ = s.Stop() })

    for i := 0; i < 2; i++ {
        err := s.Connect(context.Background(), "nowhere")
        require.Error(t, err)
        require.False(t, errors.Is(err, gobreaker.ErrOpenState))
    }
    require.ErrorIs(t, s.Connect(context.Background(), "nowhere"), gobreaker.ErrOpenState)
}

func TestStopSaysBye(t *testing.T) {
    n := mem.NewNetwork()
    a := startMem(t, n, "a", 5, quietPings)
    b := startMem(t, n, "b", 5, quietPings)

    require.NoError(t, b.Connect(context.Background(), "a"))
    require.Eventually(t, openPeers(a.Service, 1), 2*time.Second, 5*time.Millisecond)

    require.NoError(t, a.Stop())
    require.Eventually(t, func() bool { return len(b.Peers()) == 0 }, 2*time.Second, 5*time.Millisecond)

    _, err := a.SendChat("alice", "anyone?")
    require.ErrorIs(t, err, ErrNotRunning)
    require.ErrorIs(t, a.Connect(context.Background(), "b"), ErrNotRunning)
    require.NoError(t, a.Stop())
}

func TestStartBindError(t *testing.T) {
    busy, err := net.Listen("tcp", "127.0.0.1:0")
    require.NoError(t, err)
    defer busy.Close()

    s, err := New(Options{Listen: busy.Addr().String()})
    require.NoError(t, err)
    err = s.Start(context.Background(), nil)

    var be *BindError
    require.True(t, errors.As(err, &be))
    require.Equal(t, busy.Addr().String(), be.Addr)
    require.Nil(t, s.Addr())
    require.NoError(t, s.Stop())
}

func TestTCPLoopbackChat(t *testing.T) {
    start := func() (*Service, *recSink) {
        sink := &recSink{}
        s, err := New(Options{
            Listen:           "127.0.0.1:0",
            TransportOptions: transport.Options{WriteTimeout: 2 * time.Second},
            Ping:             quietPings,
            Format:           protocol.FormatJSON,
            Sink:             sink,
        })
        require.NoError(t, err)
        require.NoError(t, s.Start(context.Background(), nil))
        t.Cleanup(func() { _ = s.Stop() })
        return s, sink
    }
    a, _ := start()
    b, bSink := start()

    require.NoError(t, b.Connect(context.Background(), a.Addr().String()))
    require.Eventually(t, openPeers(a, 1), 2*time.Second, 5*time.Millisecond)

    // the inbound side learns b's listen address from its SYN
    require.Eventually(t, func() bool {
        ps := a.Peers()
        return len(ps) == 1 && ps[0].Advertised == b.Addr().String()
    }, 2*time.Second, 5*time.Millisecond)

    _, err := a.SendChat("alice", "over tcp")
    require.NoError(t, err)
    require.Eventually(t, func() bool { return len(bSink.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
    require.Equal(t, "over tcp", bSink.snapshot()[0].Text)

    info := b.Peers()[0]
    require.Equal(t, transport.KindTCP, info.Kind)
    require.True(t, info.Outbound)
    require.Equal(t, peering.StateOpen, info.State)
}

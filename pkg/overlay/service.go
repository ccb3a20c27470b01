// Package overlay is the node orchestrator: it binds the listener, admits
// inbound sessions, dials bootstrap and discovered peers, and exposes the
// chat surface used by front-ends.
package overlay

import (
    "context"
    "net"
    "strconv"
    "sync"
    "time"

    "go.uber.org/zap"

    "pearnet/pkg/chatlog"
    "pearnet/pkg/core/peering"
    "pearnet/pkg/dedup"
    "pearnet/pkg/memkv"
    "pearnet/pkg/peers"
    "pearnet/pkg/protocol"
    "pearnet/pkg/transport"
)

// Options configures a Service. Zero values fall back to protocol defaults.
type Options struct {
    // Listen is the local bind address; a bare port means all interfaces.
    Listen string
    // Advertise overrides the address sent in Pongs and SYNs.
    Advertise string
    // Transport names the link kind (tcp, quic, mem, winpipe). Ignored when Link is set.
    Transport        string
    TransportOptions transport.Options
    // Link, when set, is used instead of building a transport from Transport.
    Link transport.Transport

    MaxPeers    int
    Format      protocol.Format
    Ping        peering.PingSchedule
    ChatTTL     uint8
    DialTimeout time.Duration
    Breaker     BreakerSettings
    // DedupTTL evicts remembered GUIDs after this long; 0 keeps them forever.
    DedupTTL time.Duration
    // DefaultPort completes bootstrap hosts given without a port.
    DefaultPort int
    // StopTimeout bounds how long Stop waits for connections to wind down.
    StopTimeout time.Duration

    Sink     chatlog.Sink
    Notifier chatlog.Notifier
}

// Service is one overlay node.
type Service struct {
    opts Options
    tr   transport.Transport
    kv   *memkv.Store
    reg  *peers.Registry
    env  *peering.Env
    dial *dialer

    mu      sync.Mutex
    ln      transport.Listener
    ctx     context.Context
    cancel  context.CancelFunc
    pending map[string]struct{}
    started bool
    stopped bool

    wg sync.WaitGroup
}

// New builds a stopped service. Nothing is bound until Start.
func New(opts Options) (*Service, error) {
    tr := opts.Link
    if tr == nil {
        var err error
        tr, err = NewTransport(opts.Transport, opts.TransportOptions)
        if err != nil { return nil, err }
    }
    if opts.DefaultPort <= 0 { opts.DefaultPort = protocol.DefaultPort }
    if opts.Format == protocol.FormatUnknown { opts.Format = protocol.FormatCBOR }
    if opts.StopTimeout <= 0 { opts.StopTimeout = 5 * time.Second }

    kv := memkv.New(memkv.Options{})
    reg := peers.New(opts.MaxPeers)
    s := &Service{
        opts:    opts,
        tr:      tr,
        kv:      kv,
        reg:     reg,
        dial:    newDialer(tr, opts.DialTimeout, opts.Breaker),
        pending: make(map[string]struct{}),
    }
    s.env = &peering.Env{
        Registry:     reg,
        Pings:        dedup.New(kv, "ping:", opts.DedupTTL),
        Chats:        dedup.New(kv, "chat:", opts.DedupTTL),
        Sink:         opts.Sink,
        Notifier:     opts.Notifier,
        Dialer:       s,
        Format:       opts.Format,
        Advertise:    opts.Advertise,
        Ping:         opts.Ping,
        ChatTTL:      opts.ChatTTL,
        AckThreshold: reg.Max(),
    }
    return s, nil
}

// Start binds the listener and dials every bootstrap address in the
// background. A bind failure is returned as *BindError.
func (s *Service) Start(ctx context.Context, bootstrap []string) error {
    s.mu.Lock()
    if s.stopped {
        s.mu.Unlock()
        return ErrNotRunning
    }
    if s.started {
        s.mu.Unlock()
        return nil
    }
    addr := ListenAddr(s.opts.Listen)
    if addr == "" { addr = ":" + strconv.Itoa(s.opts.DefaultPort) }
    // The node outlives the caller's ctx; Stop ends it.
    sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
    ln, err := s.tr.Listen(sctx, addr)
    if err != nil {
        cancel()
        s.mu.Unlock()
        return &BindError{Addr: addr, Err: err}
    }
    s.ln, s.ctx, s.cancel = ln, sctx, cancel
    s.env.ListenPort = portOf(ln.Addr())
    s.started = true
    s.mu.Unlock()

    zap.L().Info("overlay listening", zap.String("addr", ln.Addr().String()), zap.String("kind", s.tr.Kind().String()), zap.Int("max_peers", s.reg.Max()))

    s.wg.Add(1)
    go s.acceptLoop(s.ctx, ln)

    for _, b := range bootstrap {
        s.wg.Add(1)
        go func() {
            defer s.wg.Done()
            if err := s.Connect(s.ctx, b); err != nil {
                zap.L().Warn("bootstrap dial failed", zap.String("addr", b), zap.Error(err))
            }
        }()
    }
    return nil
}

// Addr is the bound listener address, or nil before Start.
func (s *Service) Addr() net.Addr {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.ln == nil { return nil }
    return s.ln.Addr()
}

func (s *Service) running() bool {
    s.mu.Lock(); defer s.mu.Unlock()
    return s.started && !s.stopped
}

func (s *Service) normalize(addr string) (string, error) {
    switch s.tr.Kind() {
    case transport.KindTCP, transport.KindQUIC:
        return NormalizeAddr(addr, s.opts.DefaultPort)
    }
    return addr, nil
}

func (s *Service) isSelf(addr string) bool {
    if s.opts.Advertise != "" && addr == s.opts.Advertise { return true }
    if a := s.Addr(); a != nil && a.String() == addr { return true }
    return false
}

// Connect dials addr and admits the session as an outbound connection.
func (s *Service) Connect(ctx context.Context, addr string) error {
    if !s.running() { return ErrNotRunning }
    addr, err := s.normalize(addr)
    if err != nil { return err }
    if s.isSelf(addr) { return ErrSelfConnect }
    if s.reg.Contains(addr) { return ErrAlreadyConnected }
    if s.reg.IsFull() { return ErrRegistryFull }

    s.mu.Lock()
    if _, busy := s.pending[addr]; busy {
        s.mu.Unlock()
        return ErrAlreadyConnected
    }
    s.pending[addr] = struct{}{}
    s.mu.Unlock()
    defer func() { s.mu.Lock(); delete(s.pending, addr); s.mu.Unlock() }()

    sess, err := s.dial.dial(ctx, addr)
    if err != nil { return err }
    zap.L().Info("outbound session", zap.String("peer", addr), zap.String("kind", sess.Kind().String()))
    return s.admit(addr, sess, true)
}

// Discover dials an address learned from a Pong without blocking the caller.
func (s *Service) Discover(addr string) {
    if !s.running() { return }
    s.wg.Add(1)
    go func() {
        defer s.wg.Done()
        if err := s.Connect(s.ctx, addr); err != nil {
            zap.L().Debug("discovered peer not dialed", zap.String("addr", addr), zap.Error(err))
        }
    }()
}

// admit registers sess under addr and starts its connection handler.
func (s *Service) admit(addr string, sess transport.Session, outbound bool) error {
    if !s.running() {
        refuse(sess)
        return ErrNotRunning
    }
    c := peering.NewConn(addr, sess, s.env, outbound)
    switch s.reg.TryAdd(addr, c) {
    case peers.RejectedFull:
        refuse(sess)
        return ErrRegistryFull
    case peers.RejectedDuplicate:
        refuse(sess)
        return ErrAlreadyConnected
    }
    s.wg.Add(1)
    go func() {
        defer s.wg.Done()
        c.Run(s.ctx)
    }()
    return nil
}

// SendChat floods a new chat line to every neighbor and returns how many
// accepted it. The line is persisted locally first.
func (s *Service) SendChat(username, text string) (int, error) {
    if !s.running() { return 0, ErrNotRunning }
    m := protocol.NewChat(username, text, s.opts.Format)
    if s.opts.ChatTTL > 0 { m.TTL = s.opts.ChatTTL }
    s.env.Chats.Remember(m.GUID, "")

    if s.opts.Sink != nil {
        if err := s.opts.Sink.AppendChatLine(username, text, time.Now()); err != nil {
            zap.L().Warn("chat not persisted", zap.Error(err))
        }
    }
    sent := 0
    for _, p := range s.reg.Snapshot() {
        if err := p.Send(m); err != nil {
            zap.L().Debug("chat send failed", zap.String("to", p.Address()), zap.Error(err))
            continue
        }
        sent++
    }
    zap.L().Debug("chat sent", zap.Stringer("guid", m.GUID), zap.Int("peers", sent))
    return sent, nil
}

// Peers returns a snapshot of every registered connection in admission order.
func (s *Service) Peers() []peering.Info {
    snap := s.reg.Snapshot()
    out := make([]peering.Info, 0, len(snap))
    for _, p := range snap {
        if c, ok := p.(*peering.Conn); ok { out = append(out, c.Info()) }
    }
    return out
}

// Stop says Bye to every neighbor, closes the listener and waits at most
// StopTimeout for the workers to exit. Safe to call more than once.
func (s *Service) Stop() error {
    s.mu.Lock()
    if !s.started || s.stopped {
        s.stopped = true
        s.mu.Unlock()
        s.kv.Close()
        return nil
    }
    s.stopped = true
    ln := s.ln
    s.mu.Unlock()

    err := ln.Close()

    var byes sync.WaitGroup
    for _, p := range s.reg.Snapshot() {
        byes.Add(1)
        go func(p peers.Peer) {
            defer byes.Done()
            if c, ok := p.(*peering.Conn); ok {
                _ = c.Shutdown()
                return
            }
            _ = p.Close()
        }(p)
    }
    if !waitTimeout(&byes, s.opts.StopTimeout) {
        zap.L().Warn("bye phase timed out")
    }
    s.cancel()
    if !waitTimeout(&s.wg, s.opts.StopTimeout) {
        zap.L().Warn("overlay workers still running after stop timeout")
    }
    s.kv.Close()
    zap.L().Info("overlay stopped")
    return err
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
    done := make(chan struct{})
    go func() { wg.Wait(); close(done) }()
    select {
    case <-done:
        return true
    case <-time.After(d):
        return false
    }
}

func portOf(a net.Addr) int {
    switch v := a.(type) {
    case *net.TCPAddr:
        return v.Port
    case *net.UDPAddr:
        return v.Port
    }
    return 0
}

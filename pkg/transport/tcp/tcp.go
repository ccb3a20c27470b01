// Package tcp is the default overlay link: one TCP connection per peer with
// keep-alive enabled and length-prefixed frames.
package tcp

import (
    "context"
    "net"

    "go.uber.org/zap"

    "pearnet/pkg/transport"
)

// Transport implements a stream-based TCP transport with length-prefixed frames (u32 LE).
type Transport struct{ opts transport.Options }

func New(opts transport.Options) *Transport { return &Transport{opts: opts} }

func (t *Transport) Kind() transport.Kind { return transport.KindTCP }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    lc := net.ListenConfig{KeepAlive: t.opts.KeepAlive}
    l, err := lc.Listen(ctx, "tcp", address)
    if err != nil { return nil, err }
    tl := &listener{l: l, q: transport.NewAcceptQueue(16), opts: t.opts}
    go tl.acceptLoop()
    go func() { <-ctx.Done(); _ = tl.Close() }()
    return tl, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
    d := &net.Dialer{KeepAlive: t.opts.KeepAlive}
    c, err := d.DialContext(ctx, "tcp", address)
    if err != nil { return nil, err }
    return transport.NewFramedConn(transport.KindTCP, c, t.opts), nil
}

type listener struct {
    l    net.Listener
    q    *transport.AcceptQueue
    opts transport.Options
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) { return l.q.Accept(ctx) }

func (l *listener) Close() error {
    l.q.Close()
    return l.l.Close()
}

func (l *listener) acceptLoop() {
    defer l.q.Close()
    for {
        c, err := l.l.Accept()
        if err != nil {
            zap.L().Debug("tcp accept loop stopped", zap.String("addr", l.l.Addr().String()), zap.Error(err))
            return
        }
        if tc, ok := c.(*net.TCPConn); ok { _ = tc.SetKeepAlive(true) }
        l.q.Push(transport.NewFramedConn(transport.KindTCP, c, l.opts))
    }
}

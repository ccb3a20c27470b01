//go:build windows

// Package winpipe carries the overlay over Windows named pipes, for nodes
// sharing one host.
package winpipe

import (
    "context"
    "net"

    "github.com/Microsoft/go-winio"
    "go.uber.org/zap"

    "pearnet/pkg/transport"
)

type Transport struct{ opts transport.Options }

func New(opts transport.Options) *Transport { return &Transport{opts: opts} }

func (t *Transport) Kind() transport.Kind { return transport.KindWinPipe }

func (t *Transport) Listen(ctx context.Context, pipeName string) (transport.Listener, error) {
    l, err := winio.ListenPipe(pipeName, &winio.PipeConfig{MessageMode: false})
    if err != nil { return nil, err }
    wl := &listener{l: l, q: transport.NewAcceptQueue(16), opts: t.opts}
    go wl.acceptLoop()
    go func() { <-ctx.Done(); _ = wl.Close() }()
    return wl, nil
}

func (t *Transport) Dial(ctx context.Context, pipeName string) (transport.Session, error) {
    conn, err := winio.DialPipeContext(ctx, pipeName)
    if err != nil { return nil, err }
    return transport.NewFramedConn(transport.KindWinPipe, conn, t.opts), nil
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
            zap.L().Debug("winpipe accept loop stopped", zap.Error(err))
            return
        }
        l.q.Push(transport.NewFramedConn(transport.KindWinPipe, c, l.opts))
    }
}

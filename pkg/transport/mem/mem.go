// Package mem is an in-process transport over buffered pipes, used by tests and
// for running several nodes inside one process.
package mem

import (
    "context"
    "errors"
    "net"
    "strconv"
    "sync"

    "pearnet/pkg/transport"
)

// Network is a namespace of named listeners. Transports sharing a Network can
// reach each other.
type Network struct {
    mu        sync.Mutex
    listeners map[string]*listener
}

func NewNetwork() *Network { return &Network{listeners: make(map[string]*listener)} }

var defaultNetwork = NewNetwork()

// Transport dials and listens on a Network.
type Transport struct {
    net  *Network
    opts transport.Options
}

// New returns a transport on the process-wide network.
func New(opts transport.Options) *Transport { return &Transport{net: defaultNetwork, opts: opts} }

// NewOn returns a transport on n.
func NewOn(n *Network, opts transport.Options) *Transport { return &Transport{net: n, opts: opts} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (transport.Listener, error) {
    t.net.mu.Lock(); defer t.net.mu.Unlock()
    if _, ok := t.net.listeners[name]; ok {
        return nil, errors.New("mem: listener already exists: " + name)
    }
    l := &listener{name: name, q: transport.NewAcceptQueue(16), net: t.net}
    t.net.listeners[name] = l
    go func() { <-ctx.Done(); _ = l.Close() }()
    return l, nil
}

// Dial connects to the listener registered as name. The dialer's local
// address is reported as "<name>#<n>" so each pipe has a distinct identity.
func (t *Transport) Dial(ctx context.Context, name string) (transport.Session, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    t.net.mu.Lock(); l := t.net.listeners[name]; t.net.mu.Unlock()
    if l == nil { return nil, errors.New("mem: no such listener: " + name) }
    c1, c2 := newPipe()
    client := l.nextClientAddr()
    srv := transport.NewFramed(transport.KindMem, c1, Addr(name), client, t.opts)
    cli := transport.NewFramed(transport.KindMem, c2, client, Addr(name), t.opts)
    if !l.q.Push(srv) {
        _ = cli.Close()
        return nil, transport.ErrListenerClosed
    }
    return cli, nil
}

type listener struct {
    name string
    q    *transport.AcceptQueue
    net  *Network

    mu    sync.Mutex
    count int
}

func (l *listener) nextClientAddr() Addr {
    l.mu.Lock(); defer l.mu.Unlock()
    l.count++
    return Addr(l.name + "#" + strconv.Itoa(l.count))
}

func (l *listener) Addr() net.Addr { return Addr(l.name) }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) { return l.q.Accept(ctx) }

func (l *listener) Close() error {
    l.q.Close()
    l.net.mu.Lock()
    if l.net.listeners[l.name] == l { delete(l.net.listeners, l.name) }
    l.net.mu.Unlock()
    return nil
}

// Addr is a mem endpoint name.
type Addr string

func (a Addr) Network() string { return "mem" }
func (a Addr) String() string  { return string(a) }

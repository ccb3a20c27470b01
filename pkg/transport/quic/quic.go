// Package quic carries the overlay over QUIC: one connection per peer with a
// single bidirectional stream holding length-prefixed frames.
package quic

import (
    "context"
    "crypto/ecdsa"
    "crypto/elliptic"
    "crypto/rand"
    "crypto/tls"
    "crypto/x509"
    "math/big"
    "net"
    "time"

    quicgo "github.com/quic-go/quic-go"
    "go.uber.org/zap"

    "pearnet/pkg/transport"
)

const alpn = "pearnet"

// Transport implements QUIC-based sessions.
//
// The stream is opened by the dialer and becomes visible to the listener
// only once the dialer writes its first frame.
type Transport struct {
    tlsConf  *tls.Config
    quicConf *quicgo.Config
    opts     transport.Options
}

func New(opts transport.Options) (*Transport, error) {
    cert, err := selfSignedCert()
    if err != nil { return nil, err }
    tlsConf := &tls.Config{
        Certificates: []tls.Certificate{cert},
        NextProtos:   []string{alpn},
        MinVersion:   tls.VersionTLS13,
    }
    qconf := &quicgo.Config{KeepAlivePeriod: opts.KeepAlive, MaxIdleTimeout: 2 * time.Minute}
    return &Transport{tlsConf: tlsConf, quicConf: qconf, opts: opts}, nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    l, err := quicgo.ListenAddr(address, t.tlsConf, t.quicConf)
    if err != nil { return nil, err }
    ctx, cancel := context.WithCancel(ctx)
    ql := &listener{l: l, q: transport.NewAcceptQueue(16), cancel: cancel, opts: t.opts}
    go ql.acceptLoop(ctx)
    go func() { <-ctx.Done(); _ = ql.Close() }()
    return ql, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
    // Peers are not authenticated; the overlay has no identities to verify.
    tlsClient := &tls.Config{
        InsecureSkipVerify: true,
        NextProtos:         []string{alpn},
        MinVersion:         tls.VersionTLS13,
    }
    c, err := quicgo.DialAddr(ctx, address, tlsClient, t.quicConf)
    if err != nil { return nil, err }
    st, err := c.OpenStreamSync(ctx)
    if err != nil {
        _ = c.CloseWithError(0, "open stream failed")
        return nil, err
    }
    return newSession(c, st, t.opts), nil
}

type listener struct {
    l      *quicgo.Listener
    q      *transport.AcceptQueue
    cancel context.CancelFunc
    opts   transport.Options
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) { return l.q.Accept(ctx) }

func (l *listener) Close() error {
    l.cancel()
    l.q.Close()
    return l.l.Close()
}

func (l *listener) acceptLoop(ctx context.Context) {
    defer l.q.Close()
    for {
        c, err := l.l.Accept(ctx)
        if err != nil {
            zap.L().Debug("quic accept loop stopped", zap.Error(err))
            return
        }
        go func() {
            st, err := c.AcceptStream(ctx)
            if err != nil {
                zap.L().Debug("quic accept stream", zap.String("raddr", c.RemoteAddr().String()), zap.Error(err))
                _ = c.CloseWithError(0, "no stream")
                return
            }
            l.q.Push(newSession(c, st, l.opts))
        }()
    }
}

// streamConn closes the whole QUIC connection when the framed session closes.
type streamConn struct {
    c  *quicgo.Conn
    st *quicgo.Stream
}

func (s streamConn) Read(p []byte) (int, error)  { return s.st.Read(p) }
func (s streamConn) Write(p []byte) (int, error) { return s.st.Write(p) }
func (s streamConn) SetWriteDeadline(t time.Time) error { return s.st.SetWriteDeadline(t) }
func (s streamConn) Close() error {
    _ = s.st.Close()
    return s.c.CloseWithError(0, "closed")
}

func newSession(c *quicgo.Conn, st *quicgo.Stream, opts transport.Options) *transport.Framed {
    return transport.NewFramed(transport.KindQUIC, streamConn{c: c, st: st}, c.LocalAddr(), c.RemoteAddr(), opts)
}

func selfSignedCert() (tls.Certificate, error) {
    priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
    if err != nil { return tls.Certificate{}, err }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(time.Now().UnixNano()),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(365 * 24 * time.Hour),
        KeyUsage:              x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        BasicConstraintsValid: true,
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil { return tls.Certificate{}, err }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}

package transport

import (
    "bufio"
    "encoding/binary"
    "io"
    "net"
    "sync"
    "sync/atomic"
    "time"
)

type writeDeadliner interface{ SetWriteDeadline(time.Time) error }

// Framed turns any byte stream into a Session with u32 LE length-prefixed frames.
type Framed struct {
    kind   Kind
    rwc    io.ReadWriteCloser
    local  net.Addr
    remote net.Addr
    opts   Options

    mu sync.Mutex // guards bw
    br *bufio.Reader
    bw *bufio.Writer

    establishedAt time.Time
    lastSeen      atomic.Int64
    closeOnce     sync.Once
    closeErr      error
}

// NewFramed wraps rwc. local and remote are reported as-is.
func NewFramed(kind Kind, rwc io.ReadWriteCloser, local, remote net.Addr, opts Options) *Framed {
    f := &Framed{
        kind:          kind,
        rwc:           rwc,
        local:         local,
        remote:        remote,
        opts:          opts,
        br:            bufio.NewReader(rwc),
        bw:            bufio.NewWriter(rwc),
        establishedAt: time.Now(),
    }
    f.lastSeen.Store(f.establishedAt.UnixNano())
    return f
}

// NewFramedConn wraps a net.Conn.
func NewFramedConn(kind Kind, c net.Conn, opts Options) *Framed {
    return NewFramed(kind, c, c.LocalAddr(), c.RemoteAddr(), opts)
}

func (f *Framed) Kind() Kind            { return f.kind }
func (f *Framed) LocalAddr() net.Addr   { return f.local }
func (f *Framed) RemoteAddr() net.Addr  { return f.remote }

func (f *Framed) Quality() Quality {
    return Quality{EstablishedAt: f.establishedAt, LastSeen: time.Unix(0, f.lastSeen.Load())}
}

// SendBytes writes one frame under the session's send lock.
func (f *Framed) SendBytes(b []byte) error {
    if len(b) > f.opts.maxFrame() { return ErrFrameTooLarge }
    f.mu.Lock(); defer f.mu.Unlock()
    if d, ok := f.rwc.(writeDeadliner); ok && f.opts.WriteTimeout > 0 {
        _ = d.SetWriteDeadline(time.Now().Add(f.opts.WriteTimeout))
    }
    var lenbuf [4]byte
    binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(b)))
    if _, err := f.bw.Write(lenbuf[:]); err != nil { return err }
    if _, err := f.bw.Write(b); err != nil { return err }
    if err := f.bw.Flush(); err != nil { return err }
    f.lastSeen.Store(time.Now().UnixNano())
    return nil
}

// RecvBytes reads the next frame. A frame above MaxFrame is a fatal framing
// error; the stream cannot be resynchronized after it.
func (f *Framed) RecvBytes() ([]byte, error) {
    var lenbuf [4]byte
    if _, err := io.ReadFull(f.br, lenbuf[:]); err != nil { return nil, err }
    n := binary.LittleEndian.Uint32(lenbuf[:])
    if int64(n) > int64(f.opts.maxFrame()) { return nil, ErrFrameTooLarge }
    buf := make([]byte, n)
    if _, err := io.ReadFull(f.br, buf); err != nil { return nil, err }
    f.lastSeen.Store(time.Now().UnixNano())
    return buf, nil
}

// Close is idempotent.
func (f *Framed) Close() error {
    f.closeOnce.Do(func() { f.closeErr = f.rwc.Close() })
    return f.closeErr
}

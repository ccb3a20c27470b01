package mem

import (
    "context"
    "io"
    "testing"

    "github.com/stretchr/testify/require"

    "pearnet/pkg/transport"
)

func TestMemDialAccept(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    tr := NewOn(NewNetwork(), transport.Options{})

    l, err := tr.Listen(ctx, "node-a")
    require.NoError(t, err)
    _, err = tr.Listen(ctx, "node-a")
    require.Error(t, err)

    cli, err := tr.Dial(ctx, "node-a")
    require.NoError(t, err)
    srv, err := l.Accept(ctx)
    require.NoError(t, err)
    require.Equal(t, "node-a#1", srv.RemoteAddr().String())
    require.Equal(t, "node-a", cli.RemoteAddr().String())

    go func() { _ = cli.SendBytes([]byte("x")) }()
    got, err := srv.RecvBytes()
    require.NoError(t, err)
    require.Equal(t, "x", string(got))

    require.NoError(t, l.Close())
    _, err = tr.Dial(ctx, "node-a")
    require.Error(t, err)
}

func TestPipeBuffersBothDirections(t *testing.T) {
    a, b := newPipe()
    _, err := a.Write([]byte("ping"))
    require.NoError(t, err)
    _, err = b.Write([]byte("pong"))
    require.NoError(t, err)

    buf := make([]byte, 8)
    n, err := b.Read(buf)
    require.NoError(t, err)
    require.Equal(t, "ping", string(buf[:n]))

    // queued data survives Close, then EOF
    _, err = b.Write([]byte("bye"))
    require.NoError(t, err)
    require.NoError(t, b.Close())
    n, err = a.Read(buf)
    require.NoError(t, err)
    require.Equal(t, "pong", string(buf[:n]))
    n, err = a.Read(buf)
    require.NoError(t, err)
    require.Equal(t, "bye", string(buf[:n]))
    _, err = a.Read(buf)
    require.ErrorIs(t, err, io.EOF)
    _, err = a.Write([]byte("late"))
    require.ErrorIs(t, err, io.ErrClosedPipe)
}

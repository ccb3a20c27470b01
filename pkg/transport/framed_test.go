package transport

import (
    "context"
    "net"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
)

func pipePair(opts Options) (*Framed, *Framed) {
    a, b := net.Pipe()
    return NewFramedConn(KindMem, a, opts), NewFramedConn(KindMem, b, opts)
}

func TestFramedRoundtrip(t *testing.T) {
    a, b := pipePair(Options{})
    defer a.Close()
    defer b.Close()

    go func() { _ = a.SendBytes([]byte("hello")) }()
    got, err := b.RecvBytes()
    require.NoError(t, err)
    require.Equal(t, "hello", string(got))
    require.False(t, b.Quality().LastSeen.Before(b.Quality().EstablishedAt))
}

func TestFramedConcurrentSendersKeepFramesWhole(t *testing.T) {
    a, b := pipePair(Options{})
    defer a.Close()
    defer b.Close()

    const senders, each = 4, 25
    var wg sync.WaitGroup
    for i := 0; i < senders; i++ {
        wg.Add(1)
        go func(id byte) {
            defer wg.Done()
            payload := make([]byte, 100)
            for j := range payload { payload[j] = id }
            for k := 0; k < each; k++ { _ = a.SendBytes(payload) }
        }(byte(i + 1))
    }
    for n := 0; n < senders*each; n++ {
        got, err := b.RecvBytes()
        require.NoError(t, err)
        require.Len(t, got, 100)
        for _, c := range got { require.Equal(t, got[0], c) }
    }
    wg.Wait()
}

func TestFramedRejectsOversizeFrames(t *testing.T) {
    a, b := pipePair(Options{MaxFrame: 8})
    defer a.Close()
    defer b.Close()
    require.ErrorIs(t, a.SendBytes(make([]byte, 9)), ErrFrameTooLarge)
}

func TestFramedCloseUnblocksRecv(t *testing.T) {
    a, b := pipePair(Options{})
    defer b.Close()
    done := make(chan error, 1)
    go func() { _, err := a.RecvBytes(); done <- err }()
    require.NoError(t, a.Close())
    require.NoError(t, a.Close())
    select {
    case err := <-done:
        require.Error(t, err)
    case <-time.After(2 * time.Second):
        t.Fatalf("recv not unblocked by close")
    }
}

func TestAcceptQueue(t *testing.T) {
    q := NewAcceptQueue(1)
    a, b := pipePair(Options{})
    defer b.Close()
    require.True(t, q.Push(a))

    s, err := q.Accept(context.Background())
    require.NoError(t, err)
    require.Equal(t, a, s)

    q.Close()
    _, err = q.Accept(context.Background())
    require.ErrorIs(t, err, ErrListenerClosed)
}

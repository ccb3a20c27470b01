package mem

import (
    "io"
    "sync"
)

// pipeDepth is how many writes a pipe end buffers before Write blocks.
const pipeDepth = 256

// pipe is a buffered in-memory duplex link. Unlike net.Pipe, a Write returns
// once the chunk is queued, so two ends can write to each other at the same
// time without a reader on either side, as with socket buffers.
type pipe struct {
    rd   <-chan []byte
    wr   chan<- []byte
    done chan struct{}
    once *sync.Once
    buf  []byte
}

func newPipe() (*pipe, *pipe) {
    ab := make(chan []byte, pipeDepth)
    ba := make(chan []byte, pipeDepth)
    done := make(chan struct{})
    once := &sync.Once{}
    return &pipe{rd: ba, wr: ab, done: done, once: once}, &pipe{rd: ab, wr: ba, done: done, once: once}
}

// Read drains chunks queued before Close, then reports io.EOF.
func (p *pipe) Read(b []byte) (int, error) {
    if len(p.buf) == 0 {
        select {
        case p.buf = <-p.rd:
        case <-p.done:
            select {
            case p.buf = <-p.rd:
            default:
                return 0, io.EOF
            }
        }
    }
    n := copy(b, p.buf)
    p.buf = p.buf[n:]
    return n, nil
}

func (p *pipe) Write(b []byte) (int, error) {
    select {
    case <-p.done:
        return 0, io.ErrClosedPipe
    default:
    }
    chunk := append([]byte(nil), b...)
    select {
    case p.wr <- chunk:
        return len(b), nil
    case <-p.done:
        return 0, io.ErrClosedPipe
    }
}

// Close closes both ends.
func (p *pipe) Close() error {
    p.once.Do(func() { close(p.done) })
    return nil
}

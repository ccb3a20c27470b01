package transport

import (
    "context"
    "sync"
)

// AcceptQueue hands sessions from a transport's accept goroutine to Listener.Accept.
// When the backlog is full new sessions are closed.
type AcceptQueue struct {
    newCh     chan Session
    closeCh   chan struct{}
    closeOnce sync.Once
}

func NewAcceptQueue(backlog int) *AcceptQueue {
    if backlog <= 0 { backlog = 16 }
    return &AcceptQueue{newCh: make(chan Session, backlog), closeCh: make(chan struct{})}
}

// Push enqueues s, closing it when the queue is closed or full.
func (q *AcceptQueue) Push(s Session) bool {
    select {
    case <-q.closeCh:
        _ = s.Close()
        return false
    default:
    }
    select {
    case q.newCh <- s:
        return true
    default:
        _ = s.Close()
        return false
    }
}

func (q *AcceptQueue) Accept(ctx context.Context) (Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-q.closeCh:
        return nil, ErrListenerClosed
    case s := <-q.newCh:
        return s, nil
    }
}

// Close unblocks Accept and drops queued sessions.
func (q *AcceptQueue) Close() {
    q.closeOnce.Do(func() {
        close(q.closeCh)
        for {
            select {
            case s := <-q.newCh:
                _ = s.Close()
            default:
                return
            }
        }
    })
}

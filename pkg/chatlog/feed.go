package chatlog

import (
    "sync"

    "go.uber.org/zap"
)

// Feed is a Notifier that fans received lines out to subscribers over
// buffered channels. A subscriber that falls behind loses lines rather than
// stalling delivery.
type Feed struct {
    mu     sync.Mutex
    subs   map[chan Line]struct{}
    buffer int
    closed bool
}

func NewFeed(buffer int) *Feed {
    if buffer <= 0 { buffer = 64 }
    return &Feed{subs: make(map[chan Line]struct{}), buffer: buffer}
}

// Subscribe returns a channel of lines and a function that ends the subscription.
func (f *Feed) Subscribe() (<-chan Line, func()) {
    ch := make(chan Line, f.buffer)
    f.mu.Lock()
    if f.closed {
        f.mu.Unlock()
        close(ch)
        return ch, func() {}
    }
    f.subs[ch] = struct{}{}
    f.mu.Unlock()
    var once sync.Once
    return ch, func() {
        once.Do(func() {
            f.mu.Lock()
            if _, ok := f.subs[ch]; ok {
                delete(f.subs, ch)
                close(ch)
            }
            f.mu.Unlock()
        })
    }
}

func (f *Feed) OnChatReceived(l Line) {
    f.mu.Lock(); defer f.mu.Unlock()
    for ch := range f.subs {
        select {
        case ch <- l:
        default:
            zap.L().Debug("feed subscriber lagging; line dropped", zap.String("user", l.Username))
        }
    }
}

// Close ends every subscription.
func (f *Feed) Close() {
    f.mu.Lock(); defer f.mu.Unlock()
    if f.closed { return }
    f.closed = true
    for ch := range f.subs {
        delete(f.subs, ch)
        close(ch)
    }
}

package overlay

import (
    "context"
    "sync"
    "time"

    "github.com/sony/gobreaker"
    "go.uber.org/zap"

    "pearnet/pkg/transport"
)

// BreakerSettings controls the per-address dial circuit breaker.
type BreakerSettings struct {
    // MaxFailures consecutive dial failures open the breaker.
    MaxFailures uint32
    // OpenTimeout is how long an open breaker rejects dials before probing again.
    OpenTimeout time.Duration
}

// dialer dials through one circuit breaker per address, so peers that keep
// advertising a dead address do not cost a dial timeout every time.
type dialer struct {
    tr       transport.Transport
    timeout  time.Duration
    settings BreakerSettings

    mu       sync.Mutex
    breakers map[string]*gobreaker.CircuitBreaker
}

func newDialer(tr transport.Transport, timeout time.Duration, bs BreakerSettings) *dialer {
    if timeout <= 0 { timeout = 5 * time.Second }
    if bs.MaxFailures == 0 { bs.MaxFailures = 3 }
    if bs.OpenTimeout <= 0 { bs.OpenTimeout = time.Minute }
    return &dialer{tr: tr, timeout: timeout, settings: bs, breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (d *dialer) breaker(addr string) *gobreaker.CircuitBreaker {
    d.mu.Lock(); defer d.mu.Unlock()
    cb := d.breakers[addr]
    if cb == nil {
        limit := d.settings.MaxFailures
        cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
            Name:        addr,
            MaxRequests: 1,
            Timeout:     d.settings.OpenTimeout,
            ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= limit },
            OnStateChange: func(name string, from, to gobreaker.State) {
                zap.L().Debug("dial breaker", zap.String("addr", name), zap.Stringer("from", from), zap.Stringer("to", to))
            },
        })
        d.breakers[addr] = cb
    }
    return cb
}

func (d *dialer) dial(ctx context.Context, addr string) (transport.Session, error) {
    out, err := d.breaker(addr).Execute(func() (interface{}, error) {
        dctx, cancel := context.WithTimeout(ctx, d.timeout)
        defer cancel()
        return d.tr.Dial(dctx, addr)
    })
    if err != nil { return nil, err }
    return out.(transport.Session), nil
}

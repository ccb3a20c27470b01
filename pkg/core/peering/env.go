package peering

import (
    "math/rand/v2"
    "net"
    "strconv"
    "time"

    "pearnet/pkg/chatlog"
    "pearnet/pkg/dedup"
    "pearnet/pkg/peers"
    "pearnet/pkg/protocol"
)

// Dialer opens outbound connections to addresses learned from Pongs.
// Discover must not block the caller.
type Dialer interface {
    Discover(addr string)
}

// PingSchedule controls the periodic liveness probe of every connection.
type PingSchedule struct {
    InitialMin time.Duration
    InitialMax time.Duration
    PeriodMin  time.Duration
    PeriodMax  time.Duration
    TTL        uint8
}

// DefaultPingSchedule: first ping after [8s,16s), then every [9s,11s).
func DefaultPingSchedule() PingSchedule {
    return PingSchedule{
        InitialMin: 8 * time.Second,
        InitialMax: 16 * time.Second,
        PeriodMin:  9 * time.Second,
        PeriodMax:  11 * time.Second,
        TTL:        protocol.DefaultTTL,
    }
}

// withDefaults fills unset fields from DefaultPingSchedule.
func (p PingSchedule) withDefaults() PingSchedule {
    d := DefaultPingSchedule()
    if p.InitialMin <= 0 && p.InitialMax <= 0 { p.InitialMin, p.InitialMax = d.InitialMin, d.InitialMax }
    if p.PeriodMin <= 0 && p.PeriodMax <= 0 { p.PeriodMin, p.PeriodMax = d.PeriodMin, d.PeriodMax }
    if p.TTL == 0 { p.TTL = d.TTL }
    return p
}

func (p PingSchedule) initial() time.Duration { p = p.withDefaults(); return between(p.InitialMin, p.InitialMax) }
func (p PingSchedule) period() time.Duration  { p = p.withDefaults(); return between(p.PeriodMin, p.PeriodMax) }
func (p PingSchedule) ttl() uint8             { return p.withDefaults().TTL }

// between returns a uniform duration in [lo, hi).
func between(lo, hi time.Duration) time.Duration {
    if hi <= lo { return lo }
    return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}

// Env is the node-wide state every connection and router shares.
type Env struct {
    Registry *peers.Registry
    Pings    *dedup.Tracker
    Chats    *dedup.Tracker
    Sink     chatlog.Sink
    Notifier chatlog.Notifier
    Dialer   Dialer

    // Format encodes bodies of locally built messages.
    Format protocol.Format
    // Advertise, when set, is the address sent in Pongs and SYNs.
    Advertise string
    // ListenPort completes the advertised address when Advertise is empty.
    ListenPort int

    Ping         PingSchedule
    ChatTTL      uint8
    AckThreshold int
}

// SelfAddr is the address this node advertises on a connection whose local
// end is local.
func (e *Env) SelfAddr(local net.Addr) string {
    if e.Advertise != "" { return e.Advertise }
    if local == nil { return "" }
    var ip net.IP
    switch a := local.(type) {
    case *net.TCPAddr:
        ip = a.IP
    case *net.UDPAddr:
        ip = a.IP
    default:
        return local.String()
    }
    return net.JoinHostPort(ip.String(), strconv.Itoa(e.ListenPort))
}

func (e *Env) chatTTL() uint8 {
    if e.ChatTTL == 0 { return protocol.ChatTTL }
    return e.ChatTTL
}

func (e *Env) ackThreshold() int {
    if e.AckThreshold <= 0 { return protocol.DefaultMaxPeers }
    return e.AckThreshold
}

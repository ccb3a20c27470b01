package peering

import (
    "time"

    "go.uber.org/zap"

    "pearnet/pkg/chatlog"
    "pearnet/pkg/protocol"
)

// Router applies the routing rules to every message its connection receives.
// Ping and Chat GUIDs are recorded before anything is forwarded, so a copy
// arriving back over a cycle is always recognised.
type Router struct {
    origin *Conn
    env    *Env
    log    *zap.Logger
}

// Route dispatches m by type. m belongs to the router and may be mutated.
func (r *Router) Route(m *protocol.Message) {
    if ce := r.log.Check(zap.DebugLevel, "route"); ce != nil {
        ce.Write(zap.Stringer("type", m.Type), zap.Stringer("guid", m.GUID), zap.Uint8("ttl", m.TTL), zap.Uint8("hops", m.Hops))
    }
    switch m.Type {
    case protocol.TypePing:
        r.ping(m)
    case protocol.TypePong:
        r.pong(m)
    case protocol.TypeChat:
        r.chat(m)
    case protocol.TypeSyn:
        r.syn(m)
    case protocol.TypeAck:
        r.ack(m)
    case protocol.TypeBye:
        r.log.Info("peer said bye")
        _ = r.origin.Close()
    default:
        // query, query-hit and push carry no routing behavior
    }
}

// flood sends m to every registered connection except the origin.
func (r *Router) flood(m *protocol.Message) int {
    n := 0
    for _, p := range r.env.Registry.Snapshot() {
        if p.Address() == r.origin.Address() { continue }
        if err := p.Send(m); err != nil {
            r.log.Debug("forward failed", zap.String("to", p.Address()), zap.Stringer("type", m.Type), zap.Error(err))
            continue
        }
        n++
    }
    return n
}

func (r *Router) ping(m *protocol.Message) {
    m.DecrementTTL()
    m.IncrementHops()
    if m.TTL == 0 { return }
    if !r.env.Pings.Remember(m.GUID, r.origin.Address()) { return }

    r.flood(m)
    pong := protocol.NewPong(m.GUID, r.origin.SelfAddr(), r.env.Format)
    if err := r.origin.Send(pong); err != nil {
        r.log.Debug("pong not sent", zap.Error(err))
    }
}

func (r *Router) pong(m *protocol.Message) {
    m.DecrementTTL()
    m.IncrementHops()

    if body, ok := m.PongBody(); ok {
        r.discover(body.Address)
    }
    if m.TTL == 0 { return }
    back, ok := r.env.Pings.Lookup(m.GUID)
    if !ok { return }
    if p, ok := r.env.Registry.Get(back); ok {
        if err := p.Send(m); err != nil {
            r.log.Debug("pong reverse path failed", zap.String("to", back), zap.Error(err))
        }
    }
}

// discover dials an address advertised in a Pong when there is room for it.
func (r *Router) discover(addr string) {
    if addr == "" || r.env.Dialer == nil { return }
    if r.env.Registry.IsFull() { return }
    if addr == r.origin.Address() || addr == r.origin.Advertised() || addr == r.origin.SelfAddr() { return }
    if r.env.Registry.Contains(addr) { return }
    r.env.Dialer.Discover(addr)
}

func (r *Router) chat(m *protocol.Message) {
    if !r.env.Chats.Remember(m.GUID, r.origin.Address()) { return }
    body, _ := m.ChatBody()
    now := time.Now()
    if r.env.Sink != nil {
        if err := r.env.Sink.AppendChatLine(body.Username, body.Text, now); err != nil {
            r.log.Warn("chat not persisted", zap.Error(err))
        }
    }
    if r.env.Notifier != nil {
        r.env.Notifier.OnChatReceived(chatlog.Line{Username: body.Username, Text: body.Text, Time: now})
    }
    m.TTL = r.env.chatTTL()
    r.flood(m)
}

func (r *Router) syn(m *protocol.Message) {
    if body, ok := m.SynBody(); ok && body.Address != "" {
        r.origin.setAdvertised(body.Address)
    }
    accepted := r.env.Registry.Len() <= r.env.ackThreshold()
    if err := r.origin.Send(protocol.NewAck(accepted, r.env.Format)); err != nil {
        r.log.Debug("ack not sent", zap.Error(err))
    }
}

func (r *Router) ack(m *protocol.Message) {
    body, _ := m.AckBody()
    if !body.Accepted {
        r.log.Warn("peer did not accept connection")
        return
    }
    r.log.Debug("peer accepted connection")
}

package protocol

import (
    "fmt"
)

// Message is the wire unit.
//
// Typed bodies (Pong, Chat, SYN, ACK) live in Body; Payload holds the raw
// bytes as received. Encode reuses Payload when present so forwarded frames
// leave the node byte-for-byte as they arrived.
type Message struct {
    GUID    GUID
    Type    Type
    TTL     uint8
    Hops    uint8
    Format  Format
    Body    any
    Payload []byte
}

// DecrementTTL lowers the TTL by one, stopping at zero.
func (m *Message) DecrementTTL() {
    if m.TTL > 0 { m.TTL-- }
}

// IncrementHops raises the hop count by one, saturating at MaxHops.
func (m *Message) IncrementHops() {
    if m.Hops < MaxHops { m.Hops++ }
}

// Clone returns a copy that can be mutated independently.
func (m *Message) Clone() *Message {
    c := *m
    if m.Payload != nil {
        c.Payload = append([]byte(nil), m.Payload...)
    }
    return &c
}

// PongBody returns the decoded pong body, if m carries one.
func (m *Message) PongBody() (PongBody, bool) { b, ok := m.Body.(PongBody); return b, ok }

// ChatBody returns the decoded chat body, if m carries one.
func (m *Message) ChatBody() (ChatBody, bool) { b, ok := m.Body.(ChatBody); return b, ok }

// AckBody returns the decoded ack body, if m carries one.
func (m *Message) AckBody() (AckBody, bool) { b, ok := m.Body.(AckBody); return b, ok }

// SynBody returns the decoded syn body, if m carries one.
func (m *Message) SynBody() (SynBody, bool) { b, ok := m.Body.(SynBody); return b, ok }

func (m *Message) String() string {
    return fmt.Sprintf("%s guid=%s ttl=%d hops=%d", m.Type, m.GUID, m.TTL, m.Hops)
}

// Encode serializes m into a single frame: header followed by payload.
func Encode(m *Message) ([]byte, error) {
    if !m.Type.Known() {
        return nil, &EncodeError{Type: m.Type, Err: ErrUnknownType}
    }
    payload := m.Payload
    if payload == nil && m.Body != nil {
        f := m.Format
        if f == FormatUnknown { f = FormatCBOR }
        b, err := EncodeBody(DefaultRegistry(), f, m.Body)
        if err != nil { return nil, &EncodeError{Type: m.Type, Err: err} }
        payload = b
    }
    h := Header{GUID: m.GUID, Type: m.Type, TTL: m.TTL, Hops: m.Hops, PayloadLen: uint32(len(payload))}
    buf := make([]byte, HeaderSize+len(payload))
    h.put(buf)
    copy(buf[HeaderSize:], payload)
    return buf, nil
}

// Decode parses one frame. Typed bodies are decoded eagerly so a malformed
// sub-message surfaces as a DecodeError here. Reserved types keep their raw
// payload.
func Decode(buf []byte) (*Message, error) {
    var h Header
    if err := h.UnmarshalBinary(buf); err != nil {
        return nil, &DecodeError{Err: err}
    }
    if !h.Type.Known() {
        return nil, &DecodeError{Type: h.Type, Err: fmt.Errorf("%w: 0x%02x", ErrUnknownType, uint8(h.Type))}
    }
    rest := len(buf) - HeaderSize
    switch {
    case rest < int(h.PayloadLen):
        return nil, &DecodeError{Type: h.Type, Err: ErrTruncated}
    case rest > int(h.PayloadLen):
        return nil, &DecodeError{Type: h.Type, Err: ErrLengthMismatch}
    }
    m := &Message{GUID: h.GUID, Type: h.Type, TTL: h.TTL, Hops: h.Hops}
    if h.PayloadLen > 0 {
        m.Payload = append([]byte(nil), buf[HeaderSize:]...)
    }
    if err := m.decodeBody(); err != nil {
        return nil, &DecodeError{Type: h.Type, Err: err}
    }
    return m, nil
}

func (m *Message) decodeBody() error {
    reg := DefaultRegistry()
    var err error
    switch m.Type {
    case TypePong:
        var b PongBody
        m.Format, err = DecodeBody(reg, m.Payload, &b)
        m.Body = b
    case TypeChat:
        var b ChatBody
        m.Format, err = DecodeBody(reg, m.Payload, &b)
        m.Body = b
    case TypeAck:
        var b AckBody
        m.Format, err = DecodeBody(reg, m.Payload, &b)
        m.Body = b
    case TypeSyn:
        // SYN bodies are optional.
        if len(m.Payload) == 0 { m.Body = SynBody{}; return nil }
        var b SynBody
        m.Format, err = DecodeBody(reg, m.Payload, &b)
        m.Body = b
    }
    return err
}

// NewPing builds a ping with a fresh GUID.
func NewPing(ttl uint8) *Message {
    return &Message{GUID: NewGUID(), Type: TypePing, TTL: ttl}
}

// NewPong answers the ping identified by guid, advertising addr.
func NewPong(guid GUID, addr string, f Format) *Message {
    return &Message{GUID: guid, Type: TypePong, TTL: DefaultTTL, Format: f, Body: PongBody{Address: addr}}
}

// NewChat builds a chat line with a fresh GUID.
func NewChat(username, text string, f Format) *Message {
    return &Message{GUID: NewGUID(), Type: TypeChat, TTL: ChatTTL, Format: f, Body: ChatBody{Username: username, Text: text}}
}

// NewSyn builds an admission probe carrying the sender's listen address.
func NewSyn(addr string, f Format) *Message {
    return &Message{GUID: NewGUID(), Type: TypeSyn, TTL: AckTTL, Format: f, Body: SynBody{Address: addr}}
}

// NewAck answers a SYN.
func NewAck(accepted bool, f Format) *Message {
    return &Message{GUID: NewGUID(), Type: TypeAck, TTL: AckTTL, Format: f, Body: AckBody{Accepted: accepted}}
}

// NewBye asks the peer to close the connection.
func NewBye() *Message {
    return &Message{GUID: NewGUID(), Type: TypeBye, TTL: 1}
}

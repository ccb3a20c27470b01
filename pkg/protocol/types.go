package protocol

// Type is the one-byte message tag carried in every header.
type Type uint8

// Message types. Query, QueryHit and Push are reserved: they decode but are
// never routed.
const (
    TypePing     Type = 0x00
    TypePong     Type = 0x01
    TypeQuery    Type = 0x02
    TypeQueryHit Type = 0x03
    TypePush     Type = 0x04
    TypeBye      Type = 0x05
    TypeChat     Type = 0x06
    TypeSyn      Type = 0x10
    TypeAck      Type = 0x11
)

func (t Type) String() string {
    switch t {
    case TypePing:
        return "ping"
    case TypePong:
        return "pong"
    case TypeQuery:
        return "query"
    case TypeQueryHit:
        return "query-hit"
    case TypePush:
        return "push"
    case TypeBye:
        return "bye"
    case TypeChat:
        return "chat"
    case TypeSyn:
        return "syn"
    case TypeAck:
        return "ack"
    default:
        return "unknown"
    }
}

// Known reports whether t is part of the wire vocabulary.
func (t Type) Known() bool { return t.String() != "unknown" }

// Reserved reports whether t is accepted on the wire but carries no routing behavior.
func (t Type) Reserved() bool { return t == TypeQuery || t == TypeQueryHit || t == TypePush }

// Protocol defaults.
const (
    DefaultPort     = 22222
    DefaultMaxPeers = 5
    DefaultTTL      = 5 // ping and pong
    ChatTTL         = 2
    AckTTL          = 1
    MaxHops         = 5
)

// ContentType is optional hint for payload decoding.
// Kept as constants to avoid coupling; not serialized in header.
const (
    ContentUnknown = "application/octet-stream"
    ContentCBOR    = "application/cbor"
    ContentJSON    = "application/json"
    ContentProto   = "application/x-protobuf"
)

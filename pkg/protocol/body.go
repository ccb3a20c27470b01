package protocol

import (
    "fmt"
    "strings"
    "sync"

    "google.golang.org/protobuf/types/known/structpb"

    "pearnet/pkg/protocol/codec"
)

// Format is a compact on-wire indicator of body encoding.
// It is carried as the first byte of every typed payload (Pong, Chat, SYN, ACK).
type Format uint8

const (
    FormatUnknown Format = iota
    FormatJSON
    FormatCBOR
    FormatProto
)

func (f Format) String() string {
    switch f {
    case FormatJSON:
        return ContentJSON
    case FormatCBOR:
        return ContentCBOR
    case FormatProto:
        return ContentProto
    default:
        return ContentUnknown
    }
}

// ParseFormat maps a config value (cbor, json, proto) to a Format.
func ParseFormat(s string) (Format, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "", "cbor":
        return FormatCBOR, nil
    case "json":
        return FormatJSON, nil
    case "proto", "protobuf":
        return FormatProto, nil
    default:
        return FormatUnknown, fmt.Errorf("unknown payload format: %q", s)
    }
}

var (
    defaultOnce sync.Once
    defaultReg  *codec.Registry
)

// DefaultRegistry returns the process-wide codec registry. It is read-only
// after construction.
func DefaultRegistry() *codec.Registry {
    defaultOnce.Do(func() { defaultReg = codec.NewRegistry() })
    return defaultReg
}

// CodecFor returns a codec instance for a given format.
func CodecFor(r *codec.Registry, f Format) (codec.Codec, error) {
    switch f {
    case FormatJSON:
        if c := r.Get(ContentJSON); c != nil { return c, nil }
        return codec.JSON(), nil
    case FormatCBOR:
        if c := r.Get(ContentCBOR); c != nil { return c, nil }
        return codec.CBOR()
    case FormatProto:
        if c := r.Get(ContentProto); c != nil { return c, nil }
        return codec.Proto(), nil
    default:
        return nil, fmt.Errorf("unknown format: %d", f)
    }
}

// PongBody advertises the address a node accepts connections on.
type PongBody struct {
    Address string `json:"address" cbor:"1,keyasint"`
}

// ChatBody is one line of chat.
type ChatBody struct {
    Username string `json:"username" cbor:"1,keyasint"`
    Text     string `json:"text" cbor:"2,keyasint"`
}

// AckBody answers a SYN.
type AckBody struct {
    Accepted bool `json:"accepted" cbor:"1,keyasint"`
}

// SynBody optionally carries the dialer's listen address.
type SynBody struct {
    Address string `json:"address,omitempty" cbor:"1,keyasint,omitempty"`
}

// structEncoder and structDecoder let typed bodies travel as a structpb.Struct
// when FormatProto is used.
type structEncoder interface{ toStruct() (*structpb.Struct, error) }
type structDecoder interface{ fromStruct(*structpb.Struct) error }

func (b PongBody) toStruct() (*structpb.Struct, error) {
    return structpb.NewStruct(map[string]any{"address": b.Address})
}

func (b *PongBody) fromStruct(s *structpb.Struct) error {
    b.Address = s.GetFields()["address"].GetStringValue()
    return nil
}

func (b ChatBody) toStruct() (*structpb.Struct, error) {
    return structpb.NewStruct(map[string]any{"username": b.Username, "text": b.Text})
}

func (b *ChatBody) fromStruct(s *structpb.Struct) error {
    f := s.GetFields()
    b.Username = f["username"].GetStringValue()
    b.Text = f["text"].GetStringValue()
    return nil
}

func (b AckBody) toStruct() (*structpb.Struct, error) {
    return structpb.NewStruct(map[string]any{"accepted": b.Accepted})
}

func (b *AckBody) fromStruct(s *structpb.Struct) error {
    v, ok := s.GetFields()["accepted"]
    if !ok { return fmt.Errorf("ack: missing accepted field") }
    b.Accepted = v.GetBoolValue()
    return nil
}

func (b SynBody) toStruct() (*structpb.Struct, error) {
    return structpb.NewStruct(map[string]any{"address": b.Address})
}

func (b *SynBody) fromStruct(s *structpb.Struct) error {
    b.Address = s.GetFields()["address"].GetStringValue()
    return nil
}

// EncodeBody serializes v using the codec for f and prefixes the payload
// with a single format byte.
func EncodeBody(r *codec.Registry, f Format, v any) ([]byte, error) {
    c, err := CodecFor(r, f)
    if err != nil { return nil, err }
    if f == FormatProto {
        if sb, ok := v.(structEncoder); ok {
            s, err := sb.toStruct()
            if err != nil { return nil, err }
            v = s
        }
    }
    b, err := c.Marshal(v)
    if err != nil { return nil, err }
    out := make([]byte, 1+len(b))
    out[0] = byte(f)
    copy(out[1:], b)
    return out, nil
}

// DecodeBody decodes payload produced by EncodeBody into v.
func DecodeBody(r *codec.Registry, payload []byte, v any) (Format, error) {
    if len(payload) == 0 { return FormatUnknown, ErrEmptyBody }
    f := Format(payload[0])
    c, err := CodecFor(r, f)
    if err != nil { return f, err }
    if f == FormatProto {
        if sb, ok := v.(structDecoder); ok {
            var s structpb.Struct
            if err := c.Unmarshal(payload[1:], &s); err != nil { return f, err }
            return f, sb.fromStruct(&s)
        }
    }
    if err := c.Unmarshal(payload[1:], v); err != nil { return f, err }
    return f, nil
}

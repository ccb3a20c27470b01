package protocol

import (
    "testing"

    "pearnet/pkg/protocol/codec"
)

func TestEncodeDecodeBodyAllFormats(t *testing.T) {
    reg := codec.NewRegistry()
    for _, f := range []Format{FormatJSON, FormatCBOR, FormatProto} {
        in := ChatBody{Username: "alice", Text: "hello mesh"}
        b, err := EncodeBody(reg, f, in)
        if err != nil { t.Fatalf("%s encode: %v", f, err) }
        if b[0] != byte(f) { t.Fatalf("%s: format prefix mismatch", f) }
        var out ChatBody
        got, err := DecodeBody(reg, b, &out)
        if err != nil { t.Fatalf("%s decode: %v", f, err) }
        if got != f { t.Fatalf("format mismatch: %s vs %s", got, f) }
        if out != in { t.Fatalf("%s roundtrip mismatch: %#v", f, out) }
    }
}

func TestAckBodyProtoKeepsFalse(t *testing.T) {
    reg := codec.NewRegistry()
    b, err := EncodeBody(reg, FormatProto, AckBody{Accepted: false})
    if err != nil { t.Fatalf("encode: %v", err) }
    out := AckBody{Accepted: true}
    if _, err := DecodeBody(reg, b, &out); err != nil { t.Fatalf("decode: %v", err) }
    if out.Accepted { t.Fatalf("expected accepted=false") }
}

func TestDecodeBodyErrors(t *testing.T) {
    reg := codec.NewRegistry()
    var out PongBody
    if _, err := DecodeBody(reg, nil, &out); err != ErrEmptyBody { t.Fatalf("expected ErrEmptyBody, got %v", err) }
    if _, err := DecodeBody(reg, []byte{0x7f, 1, 2}, &out); err == nil { t.Fatalf("expected unknown format error") }
    if _, err := DecodeBody(reg, []byte{byte(FormatCBOR), 0xff, 0x00}, &out); err == nil { t.Fatalf("expected cbor error") }
}

func TestParseFormat(t *testing.T) {
    cases := map[string]Format{"": FormatCBOR, "cbor": FormatCBOR, "JSON": FormatJSON, "protobuf": FormatProto}
    for in, want := range cases {
        got, err := ParseFormat(in)
        if err != nil || got != want { t.Fatalf("ParseFormat(%q) = %v, %v", in, got, err) }
    }
    if _, err := ParseFormat("xml"); err == nil { t.Fatalf("expected error for xml") }
}

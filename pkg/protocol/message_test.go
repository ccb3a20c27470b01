package protocol

import (
    "errors"
    "testing"

    "github.com/stretchr/testify/require"
)

func TestHeaderRoundtrip(t *testing.T) {
    h := Header{GUID: NewGUID(), Type: TypeChat, TTL: 2, Hops: 3, PayloadLen: 1234}
    b, err := h.MarshalBinary()
    require.NoError(t, err)
    require.Len(t, b, HeaderSize)

    var h2 Header
    require.NoError(t, h2.UnmarshalBinary(b))
    require.Equal(t, h, h2)
    require.ErrorIs(t, h2.UnmarshalBinary(b[:HeaderSize-1]), ErrTruncated)
}

func TestEncodeDecodeTypedMessages(t *testing.T) {
    g := NewGUID()
    msgs := []*Message{
        NewPing(DefaultTTL),
        NewPong(g, "10.0.0.7:22222", FormatCBOR),
        NewChat("alice", "hi", FormatJSON),
        NewSyn("10.0.0.9:22222", FormatProto),
        NewAck(true, FormatCBOR),
        NewBye(),
    }
    for _, m := range msgs {
        buf, err := Encode(m)
        require.NoError(t, err, m.Type.String())
        got, err := Decode(buf)
        require.NoError(t, err, m.Type.String())
        require.Equal(t, m.GUID, got.GUID)
        require.Equal(t, m.Type, got.Type)
        require.Equal(t, m.TTL, got.TTL)
        require.Equal(t, m.Hops, got.Hops)
        if m.Body != nil {
            require.Equal(t, m.Body, got.Body)
            require.Equal(t, m.Format, got.Format)
        }
    }
}

func TestEncodeReusesReceivedPayload(t *testing.T) {
    buf, err := Encode(NewChat("bob", "yo", FormatCBOR))
    require.NoError(t, err)
    m, err := Decode(buf)
    require.NoError(t, err)
    m.TTL = ChatTTL
    again, err := Encode(m)
    require.NoError(t, err)
    require.Equal(t, buf[HeaderSize:], again[HeaderSize:])
}

func TestDecodeReservedTypesKeepRawPayload(t *testing.T) {
    for _, typ := range []Type{TypeQuery, TypeQueryHit, TypePush} {
        m := &Message{GUID: NewGUID(), Type: typ, TTL: 3, Payload: []byte("opaque")}
        buf, err := Encode(m)
        require.NoError(t, err)
        got, err := Decode(buf)
        require.NoError(t, err)
        require.True(t, got.Type.Reserved())
        require.Equal(t, []byte("opaque"), got.Payload)
        require.Nil(t, got.Body)
    }
}

func TestDecodeErrors(t *testing.T) {
    good, err := Encode(NewChat("alice", "hi", FormatCBOR))
    require.NoError(t, err)

    var de *DecodeError
    _, err = Decode(good[:10])
    require.True(t, errors.As(err, &de))
    require.ErrorIs(t, err, ErrTruncated)

    _, err = Decode(good[:len(good)-1])
    require.ErrorIs(t, err, ErrTruncated)

    _, err = Decode(append(append([]byte(nil), good...), 0x00))
    require.ErrorIs(t, err, ErrLengthMismatch)

    unknown := append([]byte(nil), good...)
    unknown[16] = 0x42
    _, err = Decode(unknown)
    require.ErrorIs(t, err, ErrUnknownType)

    // valid header, garbage body
    bad := &Message{GUID: NewGUID(), Type: TypePong, TTL: 5, Payload: []byte{byte(FormatCBOR), 0xff}}
    buf, err := Encode(bad)
    require.NoError(t, err)
    _, err = Decode(buf)
    require.True(t, errors.As(err, &de))
    require.Equal(t, TypePong, de.Type)
}

func TestEncodeErrors(t *testing.T) {
    var ee *EncodeError
    _, err := Encode(&Message{Type: Type(0x42)})
    require.True(t, errors.As(err, &ee))

    _, err = Encode(&Message{Type: TypeChat, Format: Format(9), Body: ChatBody{Username: "a"}})
    require.True(t, errors.As(err, &ee))
    require.Equal(t, TypeChat, ee.Type)
}

func TestTTLAndHopsSaturate(t *testing.T) {
    m := &Message{TTL: 1, Hops: MaxHops - 1}
    m.DecrementTTL()
    m.IncrementHops()
    require.Equal(t, uint8(0), m.TTL)
    require.Equal(t, uint8(MaxHops), m.Hops)
    m.DecrementTTL()
    m.IncrementHops()
    require.Equal(t, uint8(0), m.TTL)
    require.Equal(t, uint8(MaxHops), m.Hops)
}

func TestCloneIsIndependent(t *testing.T) {
    m := &Message{GUID: NewGUID(), Type: TypeQuery, TTL: 4, Payload: []byte{1, 2}}
    c := m.Clone()
    c.TTL = 1
    c.Payload[0] = 9
    require.Equal(t, uint8(4), m.TTL)
    require.Equal(t, byte(1), m.Payload[0])
}

func TestNewGUIDUnique(t *testing.T) {
    seen := make(map[GUID]struct{}, 1000)
    for i := 0; i < 1000; i++ {
        g := NewGUID()
        _, dup := seen[g]
        require.False(t, dup)
        seen[g] = struct{}{}
    }
}

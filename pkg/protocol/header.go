package protocol

import (
    "encoding/binary"
    "encoding/hex"

    "github.com/google/uuid"
)

// Fixed header layout (23 bytes). Integers are little-endian.
//
//  0  ..15  GUID       [16]byte
//  16       Type       u8
//  17       TTL        u8
//  18       Hops       u8
//  19 ..22  PayloadLen u32
const HeaderSize = 23

// GUID identifies an originally-created message across every hop.
type GUID [16]byte

// NewGUID returns a random GUID. Uniqueness is probabilistic.
func NewGUID() GUID { return GUID(uuid.New()) }

func (g GUID) String() string { return hex.EncodeToString(g[:]) }

// Header describes one message frame.
type Header struct {
    GUID       GUID
    Type       Type
    TTL        uint8
    Hops       uint8
    PayloadLen uint32
}

// MarshalBinary encodes the header to a HeaderSize buffer.
func (h *Header) MarshalBinary() ([]byte, error) {
    buf := make([]byte, HeaderSize)
    h.put(buf)
    return buf, nil
}

func (h *Header) put(buf []byte) {
    copy(buf[0:16], h.GUID[:])
    buf[16] = byte(h.Type)
    buf[17] = h.TTL
    buf[18] = h.Hops
    binary.LittleEndian.PutUint32(buf[19:23], h.PayloadLen)
}

// UnmarshalBinary decodes a header from the first HeaderSize bytes of buf.
func (h *Header) UnmarshalBinary(buf []byte) error {
    if len(buf) < HeaderSize {
        return ErrTruncated
    }
    copy(h.GUID[:], buf[0:16])
    h.Type = Type(buf[16])
    h.TTL = buf[17]
    h.Hops = buf[18]
    h.PayloadLen = binary.LittleEndian.Uint32(buf[19:23])
    return nil
}

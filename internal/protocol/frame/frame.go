package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	ClientIDLen       = 16
	RequestHeaderLen  = ClientIDLen + 1 + 2 + 4
	ResponseHeaderLen = 1 + 2 + 4

	// versionShift is added to the raw response version byte on decode. Requests
	// carry the version unshifted.
	versionShift = '0'
)

var (
	ErrShortHeader     = errors.New("frame: short fixed header")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// RequestHeader is the fixed client->server header.
type RequestHeader struct {
	ClientID    [ClientIDLen]byte
	Version     uint8
	Code        uint16
	PayloadSize uint32
}

// ResponseHeader is the fixed server->client header.
type ResponseHeader struct {
	Version     uint8
	Code        uint16
	PayloadSize uint32
}

// Limits constrains decode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 64 * 1024 * 1024,
	}
}

// Check rejects a declared payload size above the limit before any payload
// bytes are read.
func (l Limits) Check(size uint32) error {
	if l.MaxPayloadBytes > 0 && size > l.MaxPayloadBytes {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, size, l.MaxPayloadBytes)
	}
	return nil
}

func EncodeRequestHeader(h RequestHeader) []byte {
	buf := make([]byte, RequestHeaderLen)
	copy(buf[0:16], h.ClientID[:])
	buf[16] = h.Version
	binary.BigEndian.PutUint16(buf[17:19], h.Code)
	binary.BigEndian.PutUint32(buf[19:23], h.PayloadSize)
	return buf
}

func DecodeRequestHeader(b []byte) (RequestHeader, error) {
	if len(b) != RequestHeaderLen {
		return RequestHeader{}, fmt.Errorf("%w: request header %d bytes", ErrShortHeader, len(b))
	}
	var h RequestHeader
	copy(h.ClientID[:], b[0:16])
	h.Version = b[16]
	h.Code = binary.BigEndian.Uint16(b[17:19])
	h.PayloadSize = binary.BigEndian.Uint32(b[19:23])
	return h, nil
}

// EncodeResponseHeader writes the version byte raw, the way the server does.
func EncodeResponseHeader(h ResponseHeader) []byte {
	buf := make([]byte, ResponseHeaderLen)
	buf[0] = h.Version
	binary.BigEndian.PutUint16(buf[1:3], h.Code)
	binary.BigEndian.PutUint32(buf[3:7], h.PayloadSize)
	return buf
}

// DecodeResponseHeader shifts the version byte into the printable digit range,
// so a raw 3 on the wire decodes as '3'.
func DecodeResponseHeader(b []byte) (ResponseHeader, error) {
	if len(b) != ResponseHeaderLen {
		return ResponseHeader{}, fmt.Errorf("%w: response header %d bytes", ErrShortHeader, len(b))
	}
	return ResponseHeader{
		Version:     b[0] + versionShift,
		Code:        binary.BigEndian.Uint16(b[1:3]),
		PayloadSize: binary.BigEndian.Uint32(b[3:7]),
	}, nil
}

package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/danmuck/xferctl/internal/protocol/frame"
	"github.com/google/uuid"
)

const (
	// Version is sent raw in every request header.
	Version uint8 = 3

	ClientIDSize   = frame.ClientIDLen
	NameFieldSize  = 255
	ContentLenSize = 4
	ChecksumSize   = 4
)

// ClientID is the server-assigned 16-byte client identifier. The zero value
// means "not yet assigned".
type ClientID [ClientIDSize]byte

func (id ClientID) IsZero() bool {
	return id == ClientID{}
}

// String renders the id in canonical UUID form for logs.
func (id ClientID) String() string {
	return uuid.UUID(id).String()
}

// Hex renders the id as 32 lowercase hex digits, the persisted form.
func (id ClientID) Hex() string {
	return hex.EncodeToString(id[:])
}

// ParseClientID accepts 32 hex digits or any form uuid.Parse understands.
func ParseClientID(raw string) (ClientID, error) {
	u, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ClientID{}, fmt.Errorf("%w: %v", ErrInvalidClientID, err)
	}
	return ClientID(u), nil
}

// ClientIDFromBytes copies the first 16 bytes of b.
func ClientIDFromBytes(b []byte) (ClientID, error) {
	if len(b) < ClientIDSize {
		return ClientID{}, fmt.Errorf("%w: %d bytes", ErrInvalidClientID, len(b))
	}
	var id ClientID
	copy(id[:], b[:ClientIDSize])
	return id, nil
}

// Request is one client->server frame. PayloadSize always equals
// len(Payload); NewRequest keeps them in step.
type Request struct {
	ClientID    ClientID
	Version     uint8
	Code        RequestCode
	PayloadSize uint32
	Payload     []byte
}

func NewRequest(id ClientID, version uint8, code RequestCode, payload []byte) Request {
	if payload == nil {
		payload = []byte{}
	}
	return Request{
		ClientID:    id,
		Version:     version,
		Code:        code,
		PayloadSize: uint32(len(payload)),
		Payload:     payload,
	}
}

// Response is one server->client frame. Version holds the shifted,
// printable form of the wire byte.
type Response struct {
	Version     uint8
	Code        ResponseCode
	PayloadSize uint32
	Payload     []byte
}

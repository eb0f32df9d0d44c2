package protocol

import (
	"fmt"

	"github.com/danmuck/xferctl/internal/protocol/frame"
)

// EncodeRequest lays out clientId | version | code | payloadSize | payload as
// one owned buffer.
func EncodeRequest(req Request) ([]byte, error) {
	if uint64(len(req.Payload)) != uint64(req.PayloadSize) {
		return nil, fmt.Errorf("%w: code=%s declared=%d actual=%d",
			ErrPayloadSizeMismatch, req.Code, req.PayloadSize, len(req.Payload))
	}
	head := frame.EncodeRequestHeader(frame.RequestHeader{
		ClientID:    req.ClientID,
		Version:     req.Version,
		Code:        uint16(req.Code),
		PayloadSize: req.PayloadSize,
	})
	buf := make([]byte, 0, len(head)+len(req.Payload))
	buf = append(buf, head...)
	buf = append(buf, req.Payload...)
	return buf, nil
}

// EncodeResponse is the server-side counterpart of DecodeResponse. The
// version byte is written as given.
func EncodeResponse(resp Response) ([]byte, error) {
	if uint64(len(resp.Payload)) != uint64(resp.PayloadSize) {
		return nil, fmt.Errorf("%w: code=%s declared=%d actual=%d",
			ErrPayloadSizeMismatch, resp.Code, resp.PayloadSize, len(resp.Payload))
	}
	head := frame.EncodeResponseHeader(frame.ResponseHeader{
		Version:     resp.Version,
		Code:        uint16(resp.Code),
		PayloadSize: resp.PayloadSize,
	})
	return append(head, resp.Payload...), nil
}

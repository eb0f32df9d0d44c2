package protocol

import (
	"fmt"
	"io"

	"github.com/danmuck/xferctl/internal/protocol/frame"
)

// DecodeResponse builds a Response from a 7-byte header and the payload that
// was read as a separate transfer. Either segment being shorter than declared
// is an error; a partially populated Response is never returned.
func DecodeResponse(header, payload []byte) (Response, error) {
	h, err := frame.DecodeResponseHeader(header)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if uint64(len(payload)) != uint64(h.PayloadSize) {
		return Response{}, fmt.Errorf("%w: declared=%d got=%d", ErrTruncated, h.PayloadSize, len(payload))
	}
	body := make([]byte, len(payload))
	copy(body, payload)
	return Response{
		Version:     h.Version,
		Code:        ResponseCode(h.Code),
		PayloadSize: h.PayloadSize,
		Payload:     body,
	}, nil
}

// ReadResponse reads exactly one response frame from r.
func ReadResponse(r io.Reader, limits frame.Limits) (Response, error) {
	header := make([]byte, frame.ResponseHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Response{}, fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}
	h, err := frame.DecodeResponseHeader(header)
	if err != nil {
		return Response{}, err
	}
	if err := limits.Check(h.PayloadSize); err != nil {
		return Response{}, err
	}
	payload := make([]byte, h.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Response{}, fmt.Errorf("%w: payload: %v", ErrTruncated, err)
	}
	return DecodeResponse(header, payload)
}

// ReadRequest reads exactly one request frame from r.
func ReadRequest(r io.Reader, limits frame.Limits) (Request, error) {
	header := make([]byte, frame.RequestHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Request{}, fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}
	h, err := frame.DecodeRequestHeader(header)
	if err != nil {
		return Request{}, err
	}
	if err := limits.Check(h.PayloadSize); err != nil {
		return Request{}, err
	}
	payload := make([]byte, h.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Request{}, fmt.Errorf("%w: payload: %v", ErrTruncated, err)
	}
	return Request{
		ClientID:    ClientID(h.ClientID),
		Version:     h.Version,
		Code:        RequestCode(h.Code),
		PayloadSize: h.PayloadSize,
		Payload:     payload,
	}, nil
}

package protocol

import "errors"

var (
	ErrTruncated           = errors.New("protocol: truncated data")
	ErrPayloadSizeMismatch = errors.New("protocol: payload length does not match declared size")
	ErrInvalidClientID     = errors.New("protocol: invalid client id")
	ErrFieldTooSmall       = errors.New("protocol: field width too small")
	ErrShortPayload        = errors.New("protocol: response payload too short")
	ErrContentTooLarge     = errors.New("protocol: content too large")
)

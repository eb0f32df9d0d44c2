package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/xferctl/internal/protocol"
	"github.com/danmuck/xferctl/internal/transport"
)

// Kind categorizes session failures so callers can branch on them.
type Kind uint8

const (
	KindTransport Kind = iota + 1
	KindTimeout
	KindProtocol
	KindCrypto
	KindIntegrity
	KindRetryExhausted
	KindStorage
	KindConfig
	KindInternal
)

var kindNames = map[Kind]string{
	KindTransport:      "transport",
	KindTimeout:        "timeout",
	KindProtocol:       "protocol",
	KindCrypto:         "crypto",
	KindIntegrity:      "integrity",
	KindRetryExhausted: "retry_exhausted",
	KindStorage:        "storage",
	KindConfig:         "config",
	KindInternal:       "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error carries the state a failure happened in and, for protocol failures,
// the response code received and the one expected.
type Error struct {
	Kind  Kind
	State State
	Msg   string
	Got   protocol.ResponseCode
	Want  protocol.ResponseCode
	Inner error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "client: %s: %s", e.State, e.Msg)
	if e.Got != 0 || e.Want != 0 {
		fmt.Fprintf(&b, " (got=%s want=%s)", e.Got, e.Want)
	}
	if e.Inner != nil {
		b.WriteString(": ")
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Inner }

func newError(kind Kind, state State, msg string, inner error) *Error {
	return &Error{Kind: kind, State: state, Msg: msg, Inner: inner}
}

// transportError tags deadline expiry as KindTimeout.
func transportError(state State, msg string, inner error) *Error {
	kind := KindTransport
	if transport.IsTimeout(inner) {
		kind = KindTimeout
	}
	return newError(kind, state, msg, inner)
}

func unexpectedCode(state State, got, want protocol.ResponseCode) *Error {
	msg := "unexpected response code"
	if !got.Valid() {
		msg = "unknown response code"
	}
	return &Error{Kind: KindProtocol, State: state, Msg: msg, Got: got, Want: want}
}

// IsKind reports whether err is, or wraps, an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

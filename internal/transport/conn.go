// Package transport owns the single blocking stream to the server.
//
// Retry policy does not live here: every failed connect, short write or short
// read is reported once to the caller.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

var (
	ErrAddressRequired = errors.New("transport: address required")
	ErrClosed          = errors.New("transport: connection closed")
	ErrShortRead       = errors.New("transport: short read")
	ErrShortWrite      = errors.New("transport: short write")
	ErrTimeout         = errors.New("transport: timeout")
)

// Config bounds each blocking call. Zero durations disable the deadline.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Conn is one connected stream. It is not safe for concurrent use; the
// protocol is strict request/response.
type Conn struct {
	conn net.Conn
	cfg  Config
	addr string
}

// Dial resolves addr and opens a TCP stream.
func Dial(ctx context.Context, addr string, cfg Config) (*Conn, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, ErrAddressRequired
	}
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classify(fmt.Errorf("transport: dial %s: %w", addr, err))
	}
	return New(raw, cfg), nil
}

// New wraps an already connected stream.
func New(conn net.Conn, cfg Config) *Conn {
	addr := ""
	if conn != nil && conn.RemoteAddr() != nil {
		addr = conn.RemoteAddr().String()
	}
	return &Conn{conn: conn, cfg: cfg, addr: addr}
}

func (c *Conn) RemoteAddr() string {
	return c.addr
}

// Close is safe to call more than once.
func (c *Conn) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// SendAll writes the whole buffer or reports why it could not.
func (c *Conn) SendAll(ctx context.Context, b []byte) error {
	if c == nil || c.conn == nil {
		return ErrClosed
	}
	if err := c.conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout)); err != nil {
		return classify(err)
	}
	stop := context.AfterFunc(ctx, interrupt(c.conn))
	defer stop()

	n, err := c.conn.Write(b)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx, "send")
		}
		return classify(fmt.Errorf("transport: send %d/%d bytes: %w", n, len(b), err))
	}
	if n != len(b) {
		return fmt.Errorf("%w: %d/%d bytes", ErrShortWrite, n, len(b))
	}
	return nil
}

// RecvExact blocks until exactly n bytes arrive. Fewer bytes followed by EOF
// is ErrShortRead; short data is never returned as success.
func (c *Conn) RecvExact(ctx context.Context, n int) ([]byte, error) {
	if c == nil || c.conn == nil {
		return nil, ErrClosed
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if err := c.conn.SetReadDeadline(deadline(ctx, c.cfg.ReadTimeout)); err != nil {
		return nil, classify(err)
	}
	stop := context.AfterFunc(ctx, interrupt(c.conn))
	defer stop()

	got, err := io.ReadFull(c.conn, buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx, "recv")
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %d/%d bytes: %v", ErrShortRead, got, n, err)
		}
		return nil, classify(fmt.Errorf("transport: recv %d/%d bytes: %w", got, n, err))
	}
	return buf, nil
}

// interrupt unblocks a pending Read or Write when ctx is cancelled.
func interrupt(conn net.Conn) func() {
	return func() {
		_ = conn.SetDeadline(time.Now())
	}
}

func cancelled(ctx context.Context, op string) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	}
	return fmt.Errorf("transport: %s: %w", op, err)
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// classify tags deadline expiry with ErrTimeout so callers can tell a hung
// peer apart from a broken one.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

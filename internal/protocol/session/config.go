package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/xferctl/internal/protocol"
	"github.com/danmuck/xferctl/internal/protocol/frame"
	"github.com/danmuck/xferctl/internal/transport"
)

const DefaultMaxAttempts = 3

var (
	ErrInvalidMaxAttempts = errors.New("session: max attempts must be at least 1")
	ErrInvalidFieldSize   = errors.New("session: field size must be at least 2")
	ErrInvalidTimeout     = errors.New("session: timeouts must not be negative")
)

// Config defines protocol and reliability parameters for one session.
// AwaitConfirm reads the server's CONFIRM_RECEIPT after the final CRC
// notification.
type Config struct {
	Version           uint8
	NameFieldSize     int
	FileNameFieldSize int
	MaxAttempts       int
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	AwaitConfirm      bool
	Limits            frame.Limits
}

func DefaultConfig() Config {
	return Config{
		Version:           protocol.Version,
		NameFieldSize:     protocol.NameFieldSize,
		FileNameFieldSize: protocol.NameFieldSize,
		MaxAttempts:       DefaultMaxAttempts,
		ConnectTimeout:    10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		AwaitConfirm:      true,
		Limits:            frame.DefaultLimits(),
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig, so a zero timeout
// here selects the default rather than disabling the deadline.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Version == 0 {
		c.Version = def.Version
	}
	if c.NameFieldSize == 0 {
		c.NameFieldSize = def.NameFieldSize
	}
	if c.FileNameFieldSize == 0 {
		c.FileNameFieldSize = def.FileNameFieldSize
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	return c
}

func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxAttempts, c.MaxAttempts)
	}
	if c.NameFieldSize < 2 || c.FileNameFieldSize < 2 {
		return fmt.Errorf("%w: name=%d file=%d", ErrInvalidFieldSize, c.NameFieldSize, c.FileNameFieldSize)
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Transport returns the per-call timeouts for the stream.
func (c Config) Transport() transport.Config {
	return transport.Config{
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
	}
}

package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/xferctl/internal/logging"
	"github.com/danmuck/xferctl/internal/protocol/session"
	"github.com/danmuck/xferctl/internal/store"
)

var ErrInvalidConfig = errors.New("config: invalid")

// ClientConfig is the resolved runtime configuration for the client binary.
type ClientConfig struct {
	TransferInfo    string
	MeInfo          string
	PrivKey         string
	MetricsTextfile string
	LogLevel        string
	Session         session.Config
}

type fileConfig struct {
	TransferInfo    string      `toml:"transfer_info"`
	MeInfo          string      `toml:"me_info"`
	PrivKey         string      `toml:"priv_key"`
	MetricsTextfile string      `toml:"metrics_textfile"`
	LogLevel        string      `toml:"log_level"`
	Session         sessionFile `toml:"session"`
}

type sessionFile struct {
	Version         int    `toml:"version"`
	MaxAttempts     int    `toml:"max_attempts"`
	ConnectTimeout  string `toml:"connect_timeout"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	AwaitConfirm    bool   `toml:"await_confirm"`
	MaxPayloadBytes int64  `toml:"max_payload_bytes"`
}

func DefaultClientConfig() ClientConfig {
	files := store.DefaultFiles()
	return ClientConfig{
		TransferInfo: files.TransferInfoPath,
		MeInfo:       files.IdentityPath,
		PrivKey:      files.PrivateKeyPath,
		LogLevel:     "info",
		Session:      session.DefaultConfig(),
	}
}

// LoadClientConfig overlays the keys present in the TOML file at path on
// DefaultClientConfig. An empty path returns the defaults.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ClientConfig{}, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalidConfig, path, undecoded)
	}

	if meta.IsDefined("transfer_info") {
		cfg.TransferInfo = strings.TrimSpace(raw.TransferInfo)
	}
	if meta.IsDefined("me_info") {
		cfg.MeInfo = strings.TrimSpace(raw.MeInfo)
	}
	if meta.IsDefined("priv_key") {
		cfg.PrivKey = strings.TrimSpace(raw.PrivKey)
	}
	if meta.IsDefined("metrics_textfile") {
		cfg.MetricsTextfile = strings.TrimSpace(raw.MetricsTextfile)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	s := &cfg.Session
	if meta.IsDefined("session", "version") {
		if raw.Session.Version < 1 || raw.Session.Version > math.MaxUint8 {
			return ClientConfig{}, fmt.Errorf("%w: session.version %d out of range", ErrInvalidConfig, raw.Session.Version)
		}
		s.Version = uint8(raw.Session.Version)
	}
	if meta.IsDefined("session", "max_attempts") {
		s.MaxAttempts = raw.Session.MaxAttempts
	}
	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.Session.ConnectTimeout, &s.ConnectTimeout},
		{"read_timeout", raw.Session.ReadTimeout, &s.ReadTimeout},
		{"write_timeout", raw.Session.WriteTimeout, &s.WriteTimeout},
	} {
		if !meta.IsDefined("session", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse session.%s: %w", d.key, err)
		}
		if v <= 0 {
			return ClientConfig{}, fmt.Errorf("%w: session.%s must be positive, got %s", ErrInvalidConfig, d.key, v)
		}
		*d.dst = v
	}
	if meta.IsDefined("session", "await_confirm") {
		s.AwaitConfirm = raw.Session.AwaitConfirm
	}
	if meta.IsDefined("session", "max_payload_bytes") {
		if raw.Session.MaxPayloadBytes <= 0 || raw.Session.MaxPayloadBytes > math.MaxUint32 {
			return ClientConfig{}, fmt.Errorf("%w: session.max_payload_bytes %d out of range", ErrInvalidConfig, raw.Session.MaxPayloadBytes)
		}
		s.Limits.MaxPayloadBytes = uint32(raw.Session.MaxPayloadBytes)
	}

	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c ClientConfig) Validate() error {
	if c.TransferInfo == "" {
		return fmt.Errorf("%w: transfer_info is required", ErrInvalidConfig)
	}
	if c.MeInfo == "" {
		return fmt.Errorf("%w: me_info is required", ErrInvalidConfig)
	}
	if c.PrivKey == "" {
		return fmt.Errorf("%w: priv_key is required", ErrInvalidConfig)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Files returns the on-disk store described by c.
func (c ClientConfig) Files() store.Files {
	return store.Files{
		TransferInfoPath: c.TransferInfo,
		IdentityPath:     c.MeInfo,
		PrivateKeyPath:   c.PrivKey,
	}
}

func toFile(c ClientConfig) fileConfig {
	return fileConfig{
		TransferInfo:    c.TransferInfo,
		MeInfo:          c.MeInfo,
		PrivKey:         c.PrivKey,
		MetricsTextfile: c.MetricsTextfile,
		LogLevel:        c.LogLevel,
		Session: sessionFile{
			Version:         int(c.Session.Version),
			MaxAttempts:     c.Session.MaxAttempts,
			ConnectTimeout:  c.Session.ConnectTimeout.String(),
			ReadTimeout:     c.Session.ReadTimeout.String(),
			WriteTimeout:    c.Session.WriteTimeout.String(),
			AwaitConfirm:    c.Session.AwaitConfirm,
			MaxPayloadBytes: int64(c.Session.Limits.MaxPayloadBytes),
		},
	}
}
